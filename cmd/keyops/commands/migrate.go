package commands

import (
	"github.com/spf13/cobra"

	"github.com/systmms/keyops/internal/config"
	kerrors "github.com/systmms/keyops/internal/errors"
	"github.com/systmms/keyops/internal/repositories"
)

func NewMigrateCommand(cfg *config.Config) *cobra.Command {
	var (
		fromStore string
		toStore   string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy key documents between stores",
		Long: `Read every key document from one store and write it to another.

Documents the target already holds are skipped, so the command is safe
to re-run after a partial migration. Source documents are never deleted.

Examples:
  # Move a ring from local disk into Secrets Manager
  keyops migrate --from local --to production

  # See what would be copied
  keyops migrate --from local --to production --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if fromStore == "" || toStore == "" {
				return kerrors.UserError{
					Message:    "Both source and target stores are required",
					Suggestion: "Use --from <store> and --to <store>",
				}
			}
			if fromStore == toStore {
				return kerrors.UserError{
					Message:    "Source and target stores are the same",
					Suggestion: "Pick two different stores from your keyops.yaml",
				}
			}

			source, err := openStore(ctx, cfg, fromStore)
			if err != nil {
				return err
			}
			defer source.Close()

			target, err := openStore(ctx, cfg, toStore)
			if err != nil {
				return err
			}
			defer target.Close()

			documents, err := source.GetAllElements(ctx)
			if err != nil {
				return err
			}
			if len(documents) == 0 {
				cfg.Logger.Info("Store %s holds no key documents", fromStore)
				return nil
			}

			copied, skipped := 0, 0
			for _, doc := range documents {
				name := doc.ID()
				if name == "" {
					name = "(no id)"
				}

				if dryRun {
					cfg.Logger.Info("Would copy %s to %s", name, toStore)
					copied++
					continue
				}

				err := target.StoreElement(ctx, doc, doc.ID())
				switch {
				case err == nil:
					cfg.Logger.Info("Copied %s to %s", name, toStore)
					copied++
				case repositories.IsAlreadyExists(err):
					cfg.Logger.Warn("Skipping %s: already present in %s", name, toStore)
					skipped++
				default:
					return err
				}
			}

			cfg.Logger.Info("Migration finished: %d copied, %d skipped", copied, skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&fromStore, "from", "", "Source store name")
	cmd.Flags().StringVar(&toStore, "to", "", "Target store name")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be copied without writing")

	return cmd
}
