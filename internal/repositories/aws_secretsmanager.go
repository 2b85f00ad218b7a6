package repositories

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/systmms/keyops/internal/logging"
	"github.com/systmms/keyops/internal/metrics"
	"github.com/systmms/keyops/pkg/keyring"
)

// SecretsManagerAPI defines the AWS Secrets Manager operations the
// repository depends on. It allows mocking in tests.
type SecretsManagerAPI interface {
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// SecretsManagerRepository persists key documents as tagged secrets in
// AWS Secrets Manager.
type SecretsManagerRepository struct {
	client        SecretsManagerAPI
	prefix        string
	kmsKeyID      string
	replicaRegion string
	logger        *logging.Logger

	mu     sync.Mutex
	closed bool
}

// SecretsManagerOption configures a SecretsManagerRepository.
type SecretsManagerOption func(*SecretsManagerRepository)

// WithKMSKeyID sets a customer-managed KMS key for new secrets.
func WithKMSKeyID(keyID string) SecretsManagerOption {
	return func(r *SecretsManagerRepository) {
		r.kmsKeyID = keyID
	}
}

// WithReplicaRegion replicates each new secret to an additional region.
func WithReplicaRegion(region string) SecretsManagerOption {
	return func(r *SecretsManagerRepository) {
		r.replicaRegion = region
	}
}

// WithSecretsManagerLogger sets the logger used for skip and failure
// diagnostics.
func WithSecretsManagerLogger(logger *logging.Logger) SecretsManagerOption {
	return func(r *SecretsManagerRepository) {
		r.logger = logger
	}
}

// NewSecretsManagerRepository creates a repository over the given client.
// The prefix namespaces every secret name written by this repository and
// must be non-empty.
func NewSecretsManagerRepository(client SecretsManagerAPI, prefix string, opts ...SecretsManagerOption) (*SecretsManagerRepository, error) {
	if client == nil {
		return nil, keyring.ValidationError{Store: "aws.secretsmanager", Message: "client must not be nil"}
	}
	if prefix == "" {
		return nil, keyring.ValidationError{Store: "aws.secretsmanager", Message: "prefix must not be empty"}
	}

	r := &SecretsManagerRepository{
		client: client,
		prefix: prefix,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewSecretsManagerRepositoryFromConfig builds a repository from an inline
// store config, constructing the SDK client from the shared AWS settings.
func NewSecretsManagerRepositoryFromConfig(ctx context.Context, configMap map[string]interface{}, opts ...SecretsManagerOption) (*SecretsManagerRepository, error) {
	prefix, _ := configMap["prefix"].(string)
	settings := awsSettingsFromMap(configMap)

	cfg, err := loadAWSConfig(ctx, settings)
	if err != nil {
		return nil, err
	}

	client := secretsmanager.NewFromConfig(cfg, func(o *secretsmanager.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
		}
	})

	if kms, ok := configMap["kms_key_id"].(string); ok && kms != "" {
		opts = append(opts, WithKMSKeyID(kms))
	}
	if replica, ok := configMap["replica_region"].(string); ok && replica != "" {
		opts = append(opts, WithReplicaRegion(replica))
	}
	return NewSecretsManagerRepository(client, prefix, opts...)
}

// GetAllElements lists every secret carrying the discovery tag, fetches
// each value, and parses it as a key document. Unparseable values are
// logged and skipped; transport failures abort the listing with no
// partial results.
func (r *SecretsManagerRepository) GetAllElements(ctx context.Context) ([]*keyring.KeyDocument, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	metrics.RecordList("aws.secretsmanager")

	var documents []*keyring.KeyDocument
	var nextToken *string

	for {
		out, err := r.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
			Filters: []types.Filter{
				{Key: types.FilterNameStringTypeTagKey, Values: []string{keyring.DiscoveryTagKey}},
				{Key: types.FilterNameStringTypeTagValue, Values: []string{keyring.DiscoveryTagValue}},
			},
			NextToken: nextToken,
		})
		if err != nil {
			metrics.RecordTransportError("aws.secretsmanager", "list")
			r.logger.Error("Failed to list secrets: %v", err)
			return nil, keyring.StoreError{Store: "aws.secretsmanager", Op: "list", Err: err}
		}

		for _, entry := range out.SecretList {
			name := aws.ToString(entry.Name)

			value, err := r.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
				SecretId: entry.ARN,
			})
			if err != nil {
				metrics.RecordTransportError("aws.secretsmanager", "get")
				r.logger.Error("Failed to read secret %s: %v", name, err)
				return nil, keyring.StoreError{Store: "aws.secretsmanager", Op: "get", Err: err}
			}

			doc, err := keyring.ParseKeyDocument(aws.ToString(value.SecretString))
			if err != nil {
				metrics.RecordSkipped("aws.secretsmanager")
				r.logger.Error("Skipping secret %s: %v", name, err)
				continue
			}
			documents = append(documents, doc)
		}

		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return documents, nil
}

// StoreElement writes a key document as a new secret. The secret name is
// derived from the friendly name, the document id, or a fresh UUID, in
// that order, and always carries the repository prefix.
func (r *SecretsManagerRepository) StoreElement(ctx context.Context, element *keyring.KeyDocument, friendlyName string) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := checkElement("aws.secretsmanager", element); err != nil {
		return err
	}
	metrics.RecordStore("aws.secretsmanager")

	name := keyring.RecordName(r.prefix, element, friendlyName)

	text, err := element.Serialize()
	if err != nil {
		return keyring.StoreError{Store: "aws.secretsmanager", Op: "store", Err: err}
	}

	input := &secretsmanager.CreateSecretInput{
		Name:         aws.String(name),
		SecretString: aws.String(text),
		Tags: []types.Tag{
			{Key: aws.String(keyring.DiscoveryTagKey), Value: aws.String(keyring.DiscoveryTagValue)},
		},
	}
	if r.kmsKeyID != "" {
		input.KmsKeyId = aws.String(r.kmsKeyID)
	}
	if r.replicaRegion != "" {
		input.AddReplicaRegions = []types.ReplicaRegionType{
			{Region: aws.String(r.replicaRegion)},
		}
	}

	if _, err := r.client.CreateSecret(ctx, input); err != nil {
		metrics.RecordTransportError("aws.secretsmanager", "store")
		r.logger.Error("Failed to store secret %s: %v", name, err)
		return keyring.StoreError{Store: "aws.secretsmanager", Op: "store", Err: err}
	}

	r.logger.Debug("Stored key document as secret %s", name)
	return nil
}

// Validate checks connectivity by issuing a minimal list call.
func (r *SecretsManagerRepository) Validate(ctx context.Context) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	_, err := r.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		return keyring.StoreError{Store: "aws.secretsmanager", Op: "validate", Err: err}
	}
	return nil
}

// Close marks the repository closed. Subsequent operations return
// keyring.ErrRepositoryClosed. Close is idempotent.
func (r *SecretsManagerRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *SecretsManagerRepository) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return keyring.ErrRepositoryClosed
	}
	return nil
}

// Prefix returns the name prefix applied to stored secrets.
func (r *SecretsManagerRepository) Prefix() string {
	return r.prefix
}

var _ keyring.Repository = (*SecretsManagerRepository)(nil)
