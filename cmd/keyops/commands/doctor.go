package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/keyops/internal/config"
	kerrors "github.com/systmms/keyops/internal/errors"
	"github.com/systmms/keyops/internal/repositories"
)

// StoreHealth holds the check result for one configured store.
type StoreHealth struct {
	Name   string
	Type   string
	Status string
	Detail string
}

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	var storeName string

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check store connectivity and configuration",
		Long: `Verify that the configured stores are reachable and usable.

This command checks:
- Configuration file validity
- Store authentication and connectivity

Use --store to check a single store instead of all of them.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg.Logger.Info("Checking keyops configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg.Logger.Info("Configuration loaded successfully")

			names := cfg.StoreNames()
			if storeName != "" {
				names = []string{storeName}
			}

			registry := repositories.NewRegistry(cfg.Logger)
			results := make([]StoreHealth, 0, len(names))
			failures := 0

			for _, name := range names {
				storeCfg, err := cfg.GetStore(name)
				if err != nil {
					return err
				}

				health := StoreHealth{Name: name, Type: storeCfg.Type}

				store, err := registry.CreateStore(ctx, name, storeCfg)
				if err != nil {
					health.Status = "error"
					health.Detail = err.Error()
					results = append(results, health)
					failures++
					continue
				}

				if err := store.Validate(ctx); err != nil {
					health.Status = "error"
					health.Detail = kerrors.RepositoryError(storeCfg.Type, "validate", err).Error()
					failures++
				} else {
					health.Status = "ok"
				}
				store.Close()
				results = append(results, health)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STORE\tTYPE\tSTATUS\tDETAIL")
			for _, health := range results {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", health.Name, health.Type, health.Status, health.Detail)
			}
			w.Flush()

			if failures > 0 {
				return fmt.Errorf("%d of %d store(s) failed the health check", failures, len(results))
			}
			cfg.Logger.Info("All %d store(s) healthy", len(results))
			return nil
		},
	}

	cmd.Flags().StringVar(&storeName, "store", "", "Check a single store")

	return cmd
}
