package commands

import (
	"context"

	"github.com/systmms/keyops/internal/config"
	kerrors "github.com/systmms/keyops/internal/errors"
	"github.com/systmms/keyops/internal/repositories"
)

// openStore loads the configuration and builds the named store.
func openStore(ctx context.Context, cfg *config.Config, name string) (repositories.KeyRingStore, error) {
	if name == "" {
		return nil, kerrors.UserError{
			Message:    "Store name is required",
			Suggestion: "Use --store <store-name> to pick a store from your keyops.yaml",
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}

	storeCfg, err := cfg.GetStore(name)
	if err != nil {
		return nil, err
	}

	registry := repositories.NewRegistry(cfg.Logger)
	return registry.CreateStore(ctx, name, storeCfg)
}
