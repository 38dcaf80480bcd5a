package main

import (
	"fmt"

	"github.com/fyrsmithlabs/orctasks/internal/seed"
	"github.com/spf13/cobra"
)

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load sample repositories, worktrees and tasks",
		Long: `Load repositories, worktrees and tasks from a YAML file, or from the
built-in sample when --file is not given. Existing entries are left alone,
so seeding twice is harmless.

Examples:
  # Load the built-in sample data
  orctasks seed

  # Load your own layout
  orctasks seed --file ~/orc/seed.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := seed.Default()
			if file != "" {
				doc, err = seed.Load(file)
			}
			if err != nil {
				return err
			}

			a, err := bootstrap(cmd.Context(), appOptions{events: true})
			if err != nil {
				return err
			}
			defer a.Close()

			sum, err := seed.New(a.ledger, seed.WithLogger(a.logger.Underlying().Named("seed"))).
				Apply(cmd.Context(), doc)
			if err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✅ Seeding complete: %s\n", sum)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file (default: built-in sample)")
	return cmd
}
