package main

import (
	"github.com/spf13/cobra"
)

var namespaceCmd = &cobra.Command{
	Use:   "namespace",
	Short: "Manage namespaces",
}

var namespaceCreateCmd = &cobra.Command{
	Use:   "create <id>",
	Short: "Create a namespace (no-op when it already exists)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()
		if err := svc.CreateNamespace(cmd.Context(), args[0]); err != nil {
			return err
		}
		return printJSON(map[string]string{"namespace_id": args[0], "status": "created"})
	},
}

var namespaceDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a namespace and all of its vectors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()
		if err := svc.DeleteNamespace(cmd.Context(), args[0]); err != nil {
			return err
		}
		return printJSON(map[string]string{"namespace_id": args[0], "status": "deleted"})
	},
}

var namespaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List namespaces",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()
		return printJSON(svc.ListNamespaces())
	},
}

var namespaceStatsCmd = &cobra.Command{
	Use:   "stats <id>",
	Short: "Show chunk and document counts for a namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()
		stats, err := svc.NamespaceStats(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(stats)
	},
}

var namespaceLoadCmd = &cobra.Command{
	Use:   "load <id>",
	Short: "Restore a namespace's vectors from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, _, cleanup, err := buildService()
		if err != nil {
			return err
		}
		defer cleanup()
		restored, err := svc.LoadNamespace(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(map[string]any{"namespace_id": args[0], "documents_restored": restored})
	},
}

func init() {
	namespaceCmd.AddCommand(namespaceCreateCmd)
	namespaceCmd.AddCommand(namespaceDeleteCmd)
	namespaceCmd.AddCommand(namespaceListCmd)
	namespaceCmd.AddCommand(namespaceStatsCmd)
	namespaceCmd.AddCommand(namespaceLoadCmd)
}
