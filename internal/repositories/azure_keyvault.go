package repositories

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	kerrors "github.com/systmms/keyops/internal/errors"
	"github.com/systmms/keyops/internal/logging"
	"github.com/systmms/keyops/internal/metrics"
	"github.com/systmms/keyops/pkg/keyring"
)

// KeyVaultAPI defines the Azure Key Vault operations the repository
// depends on. Fakes can build list pagers with runtime.NewPager.
type KeyVaultAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
	NewListSecretPropertiesPager(options *azsecrets.ListSecretPropertiesOptions) *runtime.Pager[azsecrets.ListSecretPropertiesResponse]
}

// KeyVaultRepository persists key documents as tagged secrets in Azure
// Key Vault. Key Vault has no server-side tag filter, so discovery
// filters the listing client-side on the discovery tag.
type KeyVaultRepository struct {
	client KeyVaultAPI
	prefix string
	logger *logging.Logger

	mu     sync.Mutex
	closed bool
}

// KeyVaultOption configures a KeyVaultRepository.
type KeyVaultOption func(*KeyVaultRepository)

// WithKeyVaultLogger sets the logger used for skip and failure
// diagnostics.
func WithKeyVaultLogger(logger *logging.Logger) KeyVaultOption {
	return func(r *KeyVaultRepository) {
		r.logger = logger
	}
}

// NewKeyVaultRepository creates a repository over the given client.
func NewKeyVaultRepository(client KeyVaultAPI, prefix string, opts ...KeyVaultOption) (*KeyVaultRepository, error) {
	if client == nil {
		return nil, keyring.ValidationError{Store: "azure.keyvault", Message: "client must not be nil"}
	}
	if prefix == "" {
		return nil, keyring.ValidationError{Store: "azure.keyvault", Message: "prefix must not be empty"}
	}

	r := &KeyVaultRepository{
		client: client,
		prefix: prefix,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewKeyVaultRepositoryFromConfig builds a repository from an inline store
// config, constructing the SDK client with managed identity, service
// principal, or default credentials.
func NewKeyVaultRepositoryFromConfig(ctx context.Context, configMap map[string]interface{}, opts ...KeyVaultOption) (*KeyVaultRepository, error) {
	vaultURL, _ := configMap["vault_url"].(string)
	if vaultURL == "" {
		return nil, kerrors.ConfigError{
			Field:      "vault_url",
			Message:    "vault_url is required for Azure Key Vault",
			Suggestion: "Provide the Key Vault URL (e.g., https://my-vault.vault.azure.net/)",
		}
	}
	if _, err := url.Parse(vaultURL); err != nil {
		return nil, kerrors.ConfigError{
			Field:      "vault_url",
			Message:    "Invalid vault_url format",
			Suggestion: "Use format: https://vault-name.vault.azure.net/",
		}
	}

	// Key Vault has no KMS key or replication knobs; the vault itself owns
	// encryption and redundancy.
	if _, ok := configMap["kms_key_id"]; ok {
		return nil, kerrors.ConfigError{
			Field:      "kms_key_id",
			Message:    "kms_key_id is not supported for Azure Key Vault",
			Suggestion: "Key Vault encrypts all secrets with vault-level keys; remove kms_key_id",
		}
	}
	if _, ok := configMap["replica_region"]; ok {
		return nil, kerrors.ConfigError{
			Field:      "replica_region",
			Message:    "replica_region is not supported for Azure Key Vault",
			Suggestion: "Key Vault redundancy is a vault property; remove replica_region",
		}
	}

	prefix, _ := configMap["prefix"].(string)

	cred, err := azureCredential(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	client, err := azsecrets.NewClient(vaultURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}

	return NewKeyVaultRepository(client, prefix, opts...)
}

func azureCredential(configMap map[string]interface{}) (azcore.TokenCredential, error) {
	useMI := true
	if v, ok := configMap["use_managed_identity"].(bool); ok {
		useMI = v
	}
	clientSecret, _ := configMap["client_secret"].(string)

	if useMI {
		if userAssignedID, ok := configMap["user_assigned_identity_id"].(string); ok && userAssignedID != "" {
			return azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
				ID: azidentity.ClientID(userAssignedID),
			})
		}
		return azidentity.NewManagedIdentityCredential(nil)
	}
	if clientSecret != "" {
		tenantID, _ := configMap["tenant_id"].(string)
		clientID, _ := configMap["client_id"].(string)
		return azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	}
	return azidentity.NewDefaultAzureCredential(nil)
}

// GetAllElements pages through the vault's secrets, keeps the ones
// carrying the discovery tag, and parses each value as a key document.
func (r *KeyVaultRepository) GetAllElements(ctx context.Context) ([]*keyring.KeyDocument, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	metrics.RecordList("azure.keyvault")

	var documents []*keyring.KeyDocument
	pager := r.client.NewListSecretPropertiesPager(nil)

	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			metrics.RecordTransportError("azure.keyvault", "list")
			r.logger.Error("Failed to list secrets: %v", err)
			return nil, keyring.StoreError{Store: "azure.keyvault", Op: "list", Err: err}
		}

		for _, props := range page.Value {
			if props == nil || props.ID == nil {
				continue
			}
			if props.Tags == nil {
				continue
			}
			tag, ok := props.Tags[keyring.DiscoveryTagKey]
			if !ok || tag == nil || *tag != keyring.DiscoveryTagValue {
				continue
			}

			name := props.ID.Name()
			resp, err := r.client.GetSecret(ctx, name, "", nil)
			if err != nil {
				metrics.RecordTransportError("azure.keyvault", "get")
				r.logger.Error("Failed to read secret %s: %v", name, err)
				return nil, keyring.StoreError{Store: "azure.keyvault", Op: "get", Err: err}
			}
			if resp.Value == nil {
				metrics.RecordSkipped("azure.keyvault")
				r.logger.Error("Skipping secret %s: no value", name)
				continue
			}

			doc, err := keyring.ParseKeyDocument(*resp.Value)
			if err != nil {
				metrics.RecordSkipped("azure.keyvault")
				r.logger.Error("Skipping secret %s: %v", name, err)
				continue
			}
			documents = append(documents, doc)
		}
	}

	return documents, nil
}

// StoreElement writes a key document as a tagged secret. Key Vault secret
// names allow only alphanumerics and dashes, so the record name is
// flattened before use. A name the vault already holds is rejected rather
// than versioned over.
func (r *KeyVaultRepository) StoreElement(ctx context.Context, element *keyring.KeyDocument, friendlyName string) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := checkElement("azure.keyvault", element); err != nil {
		return err
	}
	metrics.RecordStore("azure.keyvault")

	name := keyVaultSecretName(keyring.RecordName(r.prefix, element, friendlyName))

	text, err := element.Serialize()
	if err != nil {
		return keyring.StoreError{Store: "azure.keyvault", Op: "store", Err: err}
	}

	// SetSecret silently adds a version to an existing name, so name
	// collisions are rejected with a read before the write. A concurrent
	// writer can still land between the check and the write; that window
	// is inherent to Key Vault's versioned model.
	if _, err := r.client.GetSecret(ctx, name, "", nil); err == nil {
		return keyring.StoreError{
			Store: "azure.keyvault",
			Op:    "store",
			Err:   fmt.Errorf("secret %s: %w", name, ErrRecordExists),
		}
	} else if !IsNotFound(err) {
		metrics.RecordTransportError("azure.keyvault", "store")
		r.logger.Error("Failed to check secret %s: %v", name, err)
		return keyring.StoreError{Store: "azure.keyvault", Op: "store", Err: err}
	}

	tagValue := keyring.DiscoveryTagValue
	params := azsecrets.SetSecretParameters{
		Value: &text,
		Tags:  map[string]*string{keyring.DiscoveryTagKey: &tagValue},
	}

	if _, err := r.client.SetSecret(ctx, name, params, nil); err != nil {
		metrics.RecordTransportError("azure.keyvault", "store")
		r.logger.Error("Failed to store secret %s: %v", name, err)
		return keyring.StoreError{Store: "azure.keyvault", Op: "store", Err: err}
	}

	r.logger.Debug("Stored key document as secret %s", name)
	return nil
}

// keyVaultSecretName maps a record name onto Key Vault's restricted
// character set.
func keyVaultSecretName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, name)
}

// Validate checks connectivity by fetching the first page of the listing.
func (r *KeyVaultRepository) Validate(ctx context.Context) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	pager := r.client.NewListSecretPropertiesPager(nil)
	if pager.More() {
		if _, err := pager.NextPage(ctx); err != nil {
			return keyring.StoreError{Store: "azure.keyvault", Op: "validate", Err: err}
		}
	}
	return nil
}

// Close marks the repository closed. Close is idempotent.
func (r *KeyVaultRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *KeyVaultRepository) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return keyring.ErrRepositoryClosed
	}
	return nil
}

var _ keyring.Repository = (*KeyVaultRepository)(nil)
