package repositories

import (
	"context"
	"fmt"
	"sort"

	"github.com/systmms/keyops/internal/config"
	"github.com/systmms/keyops/internal/logging"
	"github.com/systmms/keyops/pkg/keyring"
)

// Store type identifiers accepted in configuration.
const (
	TypeAWSSecretsManager = "aws.secretsmanager"
	TypeAWSParameterStore = "aws.ssm"
	TypeGCPSecretManager  = "gcp.secretmanager"
	TypeAzureKeyVault     = "azure.keyvault"
	TypeSQL               = "sql"
	TypeFilesystem        = "filesystem"
)

// Validator is implemented by repositories that can check their backing
// store for connectivity and permissions.
type Validator interface {
	Validate(ctx context.Context) error
}

// Closer is implemented by every repository built by the registry.
type Closer interface {
	Close() error
}

// KeyRingStore is the full surface a configured store exposes.
type KeyRingStore interface {
	keyring.Repository
	Validator
	Closer
}

type builderFunc func(ctx context.Context, configMap map[string]interface{}, logger *logging.Logger) (KeyRingStore, error)

// Registry builds repositories from store configurations.
type Registry struct {
	builders map[string]builderFunc
	logger   *logging.Logger
}

// NewRegistry creates a registry with all built-in store types.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.Nop()
	}
	r := &Registry{
		builders: make(map[string]builderFunc),
		logger:   logger,
	}

	r.builders[TypeAWSSecretsManager] = func(ctx context.Context, cfg map[string]interface{}, logger *logging.Logger) (KeyRingStore, error) {
		return NewSecretsManagerRepositoryFromConfig(ctx, cfg, WithSecretsManagerLogger(logger))
	}
	r.builders[TypeAWSParameterStore] = func(ctx context.Context, cfg map[string]interface{}, logger *logging.Logger) (KeyRingStore, error) {
		return NewParameterStoreRepositoryFromConfig(ctx, cfg, WithParameterStoreLogger(logger))
	}
	r.builders[TypeGCPSecretManager] = func(ctx context.Context, cfg map[string]interface{}, logger *logging.Logger) (KeyRingStore, error) {
		return NewGCPRepositoryFromConfig(ctx, cfg, WithGCPLogger(logger))
	}
	r.builders[TypeAzureKeyVault] = func(ctx context.Context, cfg map[string]interface{}, logger *logging.Logger) (KeyRingStore, error) {
		return NewKeyVaultRepositoryFromConfig(ctx, cfg, WithKeyVaultLogger(logger))
	}
	r.builders[TypeSQL] = func(ctx context.Context, cfg map[string]interface{}, logger *logging.Logger) (KeyRingStore, error) {
		return NewSQLRepositoryFromConfig(ctx, cfg, WithSQLLogger(logger))
	}
	r.builders[TypeFilesystem] = func(ctx context.Context, cfg map[string]interface{}, logger *logging.Logger) (KeyRingStore, error) {
		return NewFilesystemRepositoryFromConfig(cfg, WithFilesystemLogger(logger))
	}

	return r
}

// CreateStore builds a repository from a named store configuration.
func (r *Registry) CreateStore(ctx context.Context, name string, cfg config.StoreConfig) (KeyRingStore, error) {
	builder, ok := r.builders[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unknown store type %q for store %q (supported: %v)", cfg.Type, name, r.SupportedTypes())
	}
	store, err := builder(ctx, cfg.Config, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create store %q: %w", name, err)
	}
	return store, nil
}

// IsSupported checks whether a store type is registered.
func (r *Registry) IsSupported(storeType string) bool {
	_, ok := r.builders[storeType]
	return ok
}

// SupportedTypes returns the registered store types in sorted order.
func (r *Registry) SupportedTypes() []string {
	types := make([]string, 0, len(r.builders))
	for storeType := range r.builders {
		types = append(types, storeType)
	}
	sort.Strings(types)
	return types
}
