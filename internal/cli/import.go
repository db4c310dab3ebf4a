package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"faturas/internal/log"
	"faturas/internal/sources/memory"
	"faturas/internal/storage"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var (
		file    string
		replace bool
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSON or YAML fixture into the SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file is required")
			}
			logger := opts.logger()
			cfg, err := opts.config()
			if err != nil {
				return err
			}

			invoices, err := memory.ReadFile(file)
			if err != nil {
				return err
			}

			repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger.WithComponent(log.ComponentStorage))
			if err != nil {
				return err
			}
			defer repo.Close()

			ctx := cmd.Context()
			if replace {
				if err := repo.Truncate(ctx); err != nil {
					return err
				}
			}
			if err := repo.InsertInvoices(ctx, invoices); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d record(s) into %s\n", len(invoices), cfg.SQLiteDBPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Fixture file (.json, .yaml or .yml)")
	cmd.Flags().BoolVar(&replace, "replace", false, "Delete existing records first")
	return cmd
}
