package vectorstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Registry owns the namespace -> collection mapping. It is constructed once
// and passed by handle to every component; there is no ambient global state.
type Registry struct {
	dimension int
	logger    *zap.Logger

	mu          sync.RWMutex
	collections map[string]*Collection
}

// NewRegistry creates a registry whose collections all share one embedding
// dimension.
func NewRegistry(dimension int, logger *zap.Logger) (*Registry, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", ErrInvalidConfig, dimension)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		dimension:   dimension,
		logger:      logger,
		collections: make(map[string]*Collection),
	}, nil
}

// Dimension returns the embedding dimension shared by all collections.
func (r *Registry) Dimension() int {
	return r.dimension
}

// Create provisions a collection for the namespace. Creation is idempotent:
// concurrent callers may race to provision the same namespace, so creating
// an existing one is a no-op success.
func (r *Registry) Create(ctx context.Context, namespaceID string) (*Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.collections[namespaceID]; ok {
		return existing, nil
	}

	col, err := NewCollection(namespaceID, r.dimension, r.logger)
	if err != nil {
		return nil, err
	}
	r.collections[namespaceID] = col
	CollectionsTotal.Set(float64(len(r.collections)))

	r.logger.Info("created collection",
		zap.String("namespace", namespaceID),
		zap.Int("dimension", r.dimension),
	)

	return col, nil
}

// Get returns the namespace's collection. An unknown namespace is a fatal
// ErrNamespaceNotFound, never an empty result: silently answering queries
// for a typo'd namespace is a correctness hazard.
func (r *Registry) Get(ctx context.Context, namespaceID string) (*Collection, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	col, ok := r.collections[namespaceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNamespaceNotFound, namespaceID)
	}
	return col, nil
}

// GetOrCreate returns the namespace's collection, provisioning it if needed.
func (r *Registry) GetOrCreate(ctx context.Context, namespaceID string) (*Collection, error) {
	r.mu.RLock()
	col, ok := r.collections[namespaceID]
	r.mu.RUnlock()
	if ok {
		return col, nil
	}
	return r.Create(ctx, namespaceID)
}

// Delete irreversibly removes the namespace's collection and all its
// chunks. Callers are responsible for updating dependent document records;
// otherwise they become ghost records with no retrievable content.
func (r *Registry) Delete(ctx context.Context, namespaceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	col, ok := r.collections[namespaceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNamespaceNotFound, namespaceID)
	}

	col.Clear(ctx)
	delete(r.collections, namespaceID)
	CollectionsTotal.Set(float64(len(r.collections)))

	r.logger.Info("deleted collection", zap.String("namespace", namespaceID))

	return nil
}

// List returns all namespace ids in sorted order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.collections))
	for name := range r.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
