package repositories

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/impersonate"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	kerrors "github.com/systmms/keyops/internal/errors"
	"github.com/systmms/keyops/internal/logging"
	"github.com/systmms/keyops/internal/metrics"
	"github.com/systmms/keyops/pkg/keyring"
)

// GCPSecretManagerAPI defines the Secret Manager operations the repository
// depends on. The concrete SDK client is wrapped by gcpClient so tests can
// substitute a fake.
type GCPSecretManagerAPI interface {
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error)
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) SecretIterator
	Close() error
}

// SecretIterator abstracts the SDK's secret iterator so fakes can supply
// their own.
type SecretIterator interface {
	Next() (*secretmanagerpb.Secret, error)
}

// gcpClient adapts *secretmanager.Client to GCPSecretManagerAPI.
type gcpClient struct {
	client *secretmanager.Client
}

func (c *gcpClient) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	return c.client.CreateSecret(ctx, req)
}

func (c *gcpClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	return c.client.AddSecretVersion(ctx, req)
}

func (c *gcpClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return c.client.AccessSecretVersion(ctx, req)
}

func (c *gcpClient) ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) SecretIterator {
	return c.client.ListSecrets(ctx, req)
}

func (c *gcpClient) Close() error {
	return c.client.Close()
}

// GCPRepository persists key documents as labeled secrets in Google Cloud
// Secret Manager. Each document lives in its own secret with a single
// version.
type GCPRepository struct {
	client        GCPSecretManagerAPI
	projectID     string
	prefix        string
	replicaRegion string
	kmsKeyName    string
	logger        *logging.Logger

	mu     sync.Mutex
	closed bool
}

// GCPOption configures a GCPRepository.
type GCPOption func(*GCPRepository)

// WithGCPReplicaLocation pins new secrets to user-managed replication in
// the given location. The default is automatic replication.
func WithGCPReplicaLocation(location string) GCPOption {
	return func(r *GCPRepository) {
		r.replicaRegion = location
	}
}

// WithGCPKMSKeyName sets a customer-managed encryption key for new
// secrets. Only valid together with a replica location.
func WithGCPKMSKeyName(keyName string) GCPOption {
	return func(r *GCPRepository) {
		r.kmsKeyName = keyName
	}
}

// WithGCPLogger sets the logger used for skip and failure diagnostics.
func WithGCPLogger(logger *logging.Logger) GCPOption {
	return func(r *GCPRepository) {
		r.logger = logger
	}
}

// NewGCPRepository creates a repository over the given client.
func NewGCPRepository(client GCPSecretManagerAPI, projectID, prefix string, opts ...GCPOption) (*GCPRepository, error) {
	if client == nil {
		return nil, keyring.ValidationError{Store: "gcp.secretmanager", Message: "client must not be nil"}
	}
	if projectID == "" {
		return nil, keyring.ValidationError{Store: "gcp.secretmanager", Message: "project id must not be empty"}
	}
	if prefix == "" {
		return nil, keyring.ValidationError{Store: "gcp.secretmanager", Message: "prefix must not be empty"}
	}

	r := &GCPRepository{
		client:    client,
		projectID: projectID,
		prefix:    prefix,
		logger:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.kmsKeyName != "" && r.replicaRegion == "" {
		return nil, keyring.ValidationError{
			Store:   "gcp.secretmanager",
			Message: "customer-managed encryption requires a replica location",
		}
	}
	return r, nil
}

// NewGCPRepositoryFromConfig builds a repository from an inline store
// config, constructing the SDK client with optional service account key
// or impersonation credentials.
func NewGCPRepositoryFromConfig(ctx context.Context, configMap map[string]interface{}, opts ...GCPOption) (*GCPRepository, error) {
	projectID, _ := configMap["project_id"].(string)
	if projectID == "" {
		if env := os.Getenv("GOOGLE_CLOUD_PROJECT"); env != "" {
			projectID = env
		} else {
			return nil, kerrors.ConfigError{
				Field:      "project_id",
				Message:    "project_id is required for GCP Secret Manager",
				Suggestion: "Set project_id in config or GOOGLE_CLOUD_PROJECT environment variable",
			}
		}
	}
	prefix, _ := configMap["prefix"].(string)

	var clientOptions []option.ClientOption
	if keyPath, ok := configMap["service_account_key_path"].(string); ok && keyPath != "" {
		if strings.HasPrefix(keyPath, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			keyPath = filepath.Join(home, keyPath[2:])
		}
		clientOptions = append(clientOptions, option.WithCredentialsFile(keyPath))
	}
	if account, ok := configMap["impersonate_service_account"].(string); ok && account != "" {
		ts, err := impersonate.CredentialsTokenSource(ctx, impersonate.CredentialsConfig{
			TargetPrincipal: account,
			Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create impersonated credentials: %w", err)
		}
		clientOptions = append(clientOptions, option.WithTokenSource(ts))
	}

	sdkClient, err := secretmanager.NewClient(ctx, clientOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCP Secret Manager client: %w", err)
	}

	if location, ok := configMap["replica_location"].(string); ok && location != "" {
		opts = append(opts, WithGCPReplicaLocation(location))
	}
	if kms, ok := configMap["kms_key_name"].(string); ok && kms != "" {
		opts = append(opts, WithGCPKMSKeyName(kms))
	}
	return NewGCPRepository(&gcpClient{client: sdkClient}, projectID, prefix, opts...)
}

// GetAllElements lists secrets carrying the discovery label, reads the
// latest version of each, and parses the payload as a key document.
func (r *GCPRepository) GetAllElements(ctx context.Context) ([]*keyring.KeyDocument, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	metrics.RecordList("gcp.secretmanager")

	it := r.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent: fmt.Sprintf("projects/%s", r.projectID),
		Filter: fmt.Sprintf("labels.%s=%s", keyring.DiscoveryTagKey, keyring.DiscoveryTagValue),
	})

	var documents []*keyring.KeyDocument
	for {
		secret, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			metrics.RecordTransportError("gcp.secretmanager", "list")
			r.logger.Error("Failed to list secrets: %v", err)
			return nil, keyring.StoreError{Store: "gcp.secretmanager", Op: "list", Err: err}
		}

		resp, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
			Name: secret.Name + "/versions/latest",
		})
		if err != nil {
			metrics.RecordTransportError("gcp.secretmanager", "get")
			r.logger.Error("Failed to read secret %s: %v", secret.Name, err)
			return nil, keyring.StoreError{Store: "gcp.secretmanager", Op: "get", Err: err}
		}
		if resp.Payload == nil {
			metrics.RecordSkipped("gcp.secretmanager")
			r.logger.Error("Skipping secret %s: empty payload", secret.Name)
			continue
		}

		doc, err := keyring.ParseKeyDocument(string(resp.Payload.Data))
		if err != nil {
			metrics.RecordSkipped("gcp.secretmanager")
			r.logger.Error("Skipping secret %s: %v", secret.Name, err)
			continue
		}
		documents = append(documents, doc)
	}

	return documents, nil
}

// StoreElement creates a labeled secret and adds the serialized document
// as its first version. Secret Manager rejects "/" in secret ids, so the
// record name is flattened before use.
func (r *GCPRepository) StoreElement(ctx context.Context, element *keyring.KeyDocument, friendlyName string) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := checkElement("gcp.secretmanager", element); err != nil {
		return err
	}
	metrics.RecordStore("gcp.secretmanager")

	name := strings.ReplaceAll(keyring.RecordName(r.prefix, element, friendlyName), "/", "-")

	text, err := element.Serialize()
	if err != nil {
		return keyring.StoreError{Store: "gcp.secretmanager", Op: "store", Err: err}
	}

	secret, err := r.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
		Parent:   fmt.Sprintf("projects/%s", r.projectID),
		SecretId: name,
		Secret: &secretmanagerpb.Secret{
			Labels:      map[string]string{keyring.DiscoveryTagKey: keyring.DiscoveryTagValue},
			Replication: r.replication(),
		},
	})
	if err != nil {
		metrics.RecordTransportError("gcp.secretmanager", "store")
		r.logger.Error("Failed to create secret %s: %v", name, err)
		return keyring.StoreError{Store: "gcp.secretmanager", Op: "store", Err: err}
	}

	if _, err := r.client.AddSecretVersion(ctx, &secretmanagerpb.AddSecretVersionRequest{
		Parent:  secret.Name,
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(text)},
	}); err != nil {
		metrics.RecordTransportError("gcp.secretmanager", "store")
		r.logger.Error("Failed to add version to secret %s: %v", name, err)
		return keyring.StoreError{Store: "gcp.secretmanager", Op: "store", Err: err}
	}

	r.logger.Debug("Stored key document as secret %s", name)
	return nil
}

// replication builds the replication policy for new secrets: automatic by
// default, user-managed when a replica location is configured.
func (r *GCPRepository) replication() *secretmanagerpb.Replication {
	if r.replicaRegion == "" {
		return &secretmanagerpb.Replication{
			Replication: &secretmanagerpb.Replication_Automatic_{
				Automatic: &secretmanagerpb.Replication_Automatic{},
			},
		}
	}

	replica := &secretmanagerpb.Replication_UserManaged_Replica{
		Location: r.replicaRegion,
	}
	if r.kmsKeyName != "" {
		replica.CustomerManagedEncryption = &secretmanagerpb.CustomerManagedEncryption{
			KmsKeyName: r.kmsKeyName,
		}
	}
	return &secretmanagerpb.Replication{
		Replication: &secretmanagerpb.Replication_UserManaged_{
			UserManaged: &secretmanagerpb.Replication_UserManaged{
				Replicas: []*secretmanagerpb.Replication_UserManaged_Replica{replica},
			},
		},
	}
}

// Validate checks connectivity by starting a listing.
func (r *GCPRepository) Validate(ctx context.Context) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	it := r.client.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent:   fmt.Sprintf("projects/%s", r.projectID),
		PageSize: 1,
	})
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return keyring.StoreError{Store: "gcp.secretmanager", Op: "validate", Err: err}
	}
	return nil
}

// Close releases the underlying client. Close is idempotent; only the
// first call reaches the client.
func (r *GCPRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	return r.client.Close()
}

func (r *GCPRepository) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return keyring.ErrRepositoryClosed
	}
	return nil
}

var _ keyring.Repository = (*GCPRepository)(nil)
