package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fyrsmithlabs/orctasks/internal/identity"
	"github.com/fyrsmithlabs/orctasks/internal/tools"
	"github.com/fyrsmithlabs/orctasks/pkg/mcp"
	"github.com/fyrsmithlabs/orctasks/pkg/oauth"
	"github.com/spf13/cobra"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami [dir]",
		Short: "Show the agent identity for a directory",
		Long: `Resolve the role, agent id and worktree the ledger would assign to a
caller working in dir (default: the current directory).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := identity.ProcessDir()
			if len(args) == 1 {
				dir = args[0]
			}
			a, err := bootstrap(cmd.Context(), appOptions{logOutput: os.Stderr})
			if err != nil {
				return err
			}
			defer a.Close()

			caller, err := a.resolver.Resolve(cmd.Context(), dir)
			if err != nil {
				return err
			}
			printIdentity(cmd.OutOrStdout(), caller)
			return nil
		},
	}
}

func printIdentity(w io.Writer, c identity.Context) {
	worktree := c.WorktreeName()
	if worktree == "" {
		worktree = "-"
	}
	fmt.Fprintf(w, "Role:      %s\n", c.Role)
	fmt.Fprintf(w, "Agent ID:  %s\n", c.AgentID)
	fmt.Fprintf(w, "Worktree:  %s\n", worktree)
	if c.Worktree != nil {
		if branch := c.Worktree.CurrentBranch(); branch != "" {
			fmt.Fprintf(w, "Branch:    %s\n", branch)
		}
	}
	fmt.Fprintf(w, "Directory: %s\n", c.WorkingDir)
}

func newToolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalogue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), appOptions{logOutput: os.Stderr})
			if err != nil {
				return err
			}
			defer a.Close()
			return printTools(cmd.OutOrStdout(), a.catalogue.List())
		},
	}
}

func printTools(w io.Writer, ops []tools.Operation) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCATEGORY\tARGUMENTS\tDESCRIPTION")
	for _, op := range ops {
		args := make([]string, 0, len(op.Schema))
		for _, p := range op.Schema {
			name := p.Name
			if p.Required {
				name += "*"
			}
			args = append(args, name)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", op.Name, op.Category, strings.Join(args, ","), op.Description)
	}
	return tw.Flush()
}

func newCallCmd() *cobra.Command {
	var workdir string
	cmd := &cobra.Command{
		Use:   "call <tool> [key=value ...]",
		Short: "Call a tool through a running gateway",
		Long: `Register a client with the gateway, obtain a client_credentials token,
and invoke a tool with tools/call. Values that parse as JSON (numbers,
booleans, null) are sent as such; anything else is sent as a string.

Examples:
  orctasks call list_my_tasks
  orctasks call create_task title="Fix DLQ" worktree_name=ml-dlq priority=high
  orctasks call update_task task_id=3 status=completed --workdir ~/src/worktrees/ml-dlq`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseCallArgs(args[1:])
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if workdir == "" {
				workdir = identity.ProcessDir()
			}

			ctx := cmd.Context()
			base := strings.TrimRight(cfg.Gateway.BaseURL, "/")
			httpClient, err := oauth.NewAuthorizedClient(ctx, base, "orctasks-cli")
			if err != nil {
				return fmt.Errorf("authorizing with %s: %w", base, err)
			}
			client := mcp.NewClient(base+cfg.Gateway.Prefix, workdir, httpClient)

			res, err := client.CallTool(ctx, args[0], params)
			if err != nil {
				return err
			}
			for _, c := range res.Content {
				fmt.Fprintln(cmd.OutOrStdout(), c.Text)
			}
			if res.IsError {
				return fmt.Errorf("tool %s reported an error", args[0])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&workdir, "workdir", "", "working directory sent as the caller identity")
	return cmd
}

// parseCallArgs turns key=value pairs into tool arguments.
func parseCallArgs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("argument %q is not key=value", pair)
		}
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("argument %q given twice", key)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		switch v.(type) {
		case map[string]any, []any:
			v = raw
		}
		out[key] = v
	}
	return out, nil
}
