package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/finmesh/portfolio"
)

type seedEntry struct {
	UserID      int64              `json:"user_id"`
	Portfolio   portfolio.Document `json:"portfolio"`
	UserProfile map[string]any     `json:"user_profile,omitempty"`
}

func newMigrateCmd() *cobra.Command {
	var seedFile string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the portfolio schema and optionally seed portfolios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if cfg.Database.Driver == "" {
				return errors.New("migrate requires a database driver (--db-driver or FINMESH_DATABASE_DRIVER)")
			}

			store, err := portfolio.Open(cfg.Database.Driver, cfg.Database.DSN)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "portfolio schema is up to date")

			if seedFile == "" {
				return nil
			}

			raw, err := os.ReadFile(seedFile)
			if err != nil {
				return fmt.Errorf("read seed file: %w", err)
			}

			var entries []seedEntry
			if err := json.Unmarshal(raw, &entries); err != nil {
				return fmt.Errorf("decode seed file: %w", err)
			}

			for _, e := range entries {
				if e.UserID <= 0 {
					return fmt.Errorf("seed entry has invalid user_id %d", e.UserID)
				}
				if _, err := store.Create(cmd.Context(), e.UserID, e.Portfolio, e.UserProfile); err != nil {
					return err
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d portfolios\n", len(entries))

			return nil
		},
	}

	cmd.Flags().StringVar(&seedFile, "seed", "", "JSON file with [{user_id, portfolio, user_profile}] entries to insert")

	return cmd
}
