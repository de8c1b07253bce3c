// Package chunker splits raw document text into ordered chunks for embedding.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// ErrInvalidOptions indicates malformed chunking parameters.
// It is returned before any text is processed, so the caller can
// adjust parameters and retry.
var ErrInvalidOptions = errors.New("invalid chunking options")

// Strategy selects the chunking algorithm.
type Strategy string

const (
	// StrategySentence accumulates sentences up to MaxSize characters.
	StrategySentence Strategy = "sentence"
	// StrategyParagraph accumulates blank-line-separated paragraphs.
	// Paragraphs are never split, even when oversized.
	StrategyParagraph Strategy = "paragraph"
	// StrategyToken slides a window of MaxSize whitespace-delimited words.
	StrategyToken Strategy = "token"
	// StrategyTitle is sentence accumulation with a slightly more
	// permissive overflow test, yielding fractionally larger chunks.
	StrategyTitle Strategy = "title"
)

// Options holds chunking parameters.
type Options struct {
	// Strategy is the chunking algorithm. Default: StrategySentence.
	Strategy Strategy

	// MaxSize is the chunk size limit: characters for sentence, paragraph
	// and title strategies, words for the token strategy. Default: 1000.
	MaxSize int

	// Overlap carries trailing content of a closed chunk into the next one:
	// characters (approximated by Overlap/5 words) for sentence and title,
	// words for token. Paragraph chunks never overlap. Default: 0.
	Overlap int
}

// ApplyDefaults sets default values for unset fields.
func (o *Options) ApplyDefaults() {
	if o.Strategy == "" {
		o.Strategy = StrategySentence
	}
	if o.MaxSize == 0 {
		o.MaxSize = 1000
	}
}

// Validate validates the options.
func (o Options) Validate() error {
	switch o.Strategy {
	case StrategySentence, StrategyParagraph, StrategyToken, StrategyTitle:
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidOptions, o.Strategy)
	}
	if o.MaxSize <= 0 {
		return fmt.Errorf("%w: max size must be positive, got %d", ErrInvalidOptions, o.MaxSize)
	}
	if o.Overlap < 0 {
		return fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidOptions, o.Overlap)
	}
	if o.Overlap >= o.MaxSize {
		return fmt.Errorf("%w: overlap %d must be smaller than max size %d", ErrInvalidOptions, o.Overlap, o.MaxSize)
	}
	return nil
}

// Chunk splits text into an ordered list of chunks.
//
// The input is never mutated and no returned chunk is empty. Empty or
// whitespace-only text yields an empty list; any other input yields at
// least one chunk.
func Chunk(text string, opts Options) ([]string, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	switch opts.Strategy {
	case StrategySentence:
		return accumulateSentences(text, opts.MaxSize, opts.Overlap, false), nil
	case StrategyTitle:
		return accumulateSentences(text, opts.MaxSize, opts.Overlap, true), nil
	case StrategyParagraph:
		return chunkParagraphs(text, opts.MaxSize), nil
	case StrategyToken:
		return chunkTokens(text, opts.MaxSize, opts.Overlap), nil
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidOptions, opts.Strategy)
	}
}

// splitSentences splits text on sentence terminators (., !, ?) followed by
// whitespace or end of input. Terminators stay attached to their sentence.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if isTerminator(r) && (i+1 == len(runes) || unicode.IsSpace(runes[i+1])) {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if tail := strings.TrimSpace(b.String()); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

// accumulateSentences greedily packs sentences into chunks of at most
// maxSize characters.
//
// The sentence strategy closes a chunk as soon as the joined buffer would
// reach maxSize; the title variant closes only once it would exceed it, so
// the two diverge exactly at boundary sizes. Overlap is approximated by
// carrying the last overlap/5 words of the closed chunk into the next one,
// a word-count approximation of character overlap kept for compatibility
// with existing corpora.
func accumulateSentences(text string, maxSize, overlap int, permissive bool) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return []string{strings.TrimSpace(text)}
	}

	overlapWords := overlap / 5

	var chunks []string
	var buf string
	for _, s := range sentences {
		if buf == "" {
			buf = s
			continue
		}
		joined := len(buf) + 1 + len(s)
		overflow := joined >= maxSize
		if permissive {
			overflow = joined > maxSize
		}
		if overflow {
			chunks = append(chunks, buf)
			buf = seedOverlap(buf, overlapWords, s)
		} else {
			buf += " " + s
		}
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}
	return chunks
}

// seedOverlap opens a new buffer with the last n words of the closed chunk
// followed by the next sentence.
func seedOverlap(closed string, n int, next string) string {
	if n <= 0 {
		return next
	}
	words := strings.Fields(closed)
	if n > len(words) {
		n = len(words)
	}
	tail := strings.Join(words[len(words)-n:], " ")
	if tail == "" {
		return next
	}
	return tail + " " + next
}

var paragraphSplitter = regexp.MustCompile(`\n\s*\n`)

// chunkParagraphs accumulates whole paragraphs until maxSize characters is
// exceeded. A single paragraph larger than maxSize becomes its own
// oversized chunk; paragraphs are never split.
func chunkParagraphs(text string, maxSize int) []string {
	var paragraphs []string
	for _, p := range paragraphSplitter.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return []string{strings.TrimSpace(text)}
	}

	var chunks []string
	var buf string
	for _, p := range paragraphs {
		if buf == "" {
			buf = p
			continue
		}
		if len(buf)+2+len(p) > maxSize {
			chunks = append(chunks, buf)
			buf = p
		} else {
			buf += "\n\n" + p
		}
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}
	return chunks
}

// chunkTokens slides a window of maxTokens whitespace-delimited words,
// advancing by maxTokens-overlap words each step. Validate guarantees the
// stride is at least one word, so the walk always terminates.
func chunkTokens(text string, maxTokens, overlap int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{strings.TrimSpace(text)}
	}

	stride := maxTokens - overlap

	var chunks []string
	for start := 0; start < len(words); start += stride {
		end := start + maxTokens
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}
