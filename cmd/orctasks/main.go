// Package main implements the orctasks CLI: the task ledger server, its
// stdio MCP transport, and a few local and remote helper commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	dbPath     string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "orctasks",
		Short: "Task coordination ledger for orchestrator and implementer agents",
		Long: `orctasks records tasks for git worktrees and exposes them to agents
over MCP, either through the HTTP gateway (orctasks serve) or over stdio
(orctasks stdio).

The calling agent's role is inferred from its working directory: paths
inside an "orc" directory belong to the orchestrator, paths under
"worktrees/<name>" belong to that worktree's implementer.`,
		SilenceUsage: true,
		Version:      version,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/orctasks/config.yaml)")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "ledger database path (overrides database.path)")

	root.AddCommand(
		newServeCmd(),
		newStdioCmd(),
		newSeedCmd(),
		newWhoamiCmd(),
		newToolsCmd(),
		newCallCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "orctasks by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}
