package repositories

import (
	"context"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/systmms/keyops/internal/logging"
	"github.com/systmms/keyops/internal/metrics"
	"github.com/systmms/keyops/pkg/keyring"
)

// ParameterStoreAPI defines the SSM Parameter Store operations the
// repository depends on.
type ParameterStoreAPI interface {
	GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// ParameterStoreRepository persists key documents as SecureString
// parameters under a path prefix in AWS SSM Parameter Store.
type ParameterStoreRepository struct {
	client   ParameterStoreAPI
	prefix   string
	kmsKeyID string
	logger   *logging.Logger

	mu     sync.Mutex
	closed bool
}

// ParameterStoreOption configures a ParameterStoreRepository.
type ParameterStoreOption func(*ParameterStoreRepository)

// WithParameterStoreKMSKeyID sets a customer-managed KMS key for new
// parameters.
func WithParameterStoreKMSKeyID(keyID string) ParameterStoreOption {
	return func(r *ParameterStoreRepository) {
		r.kmsKeyID = keyID
	}
}

// WithParameterStoreLogger sets the logger used for skip and failure
// diagnostics.
func WithParameterStoreLogger(logger *logging.Logger) ParameterStoreOption {
	return func(r *ParameterStoreRepository) {
		r.logger = logger
	}
}

// NewParameterStoreRepository creates a repository over the given client.
// The prefix is an SSM path and must start with "/".
func NewParameterStoreRepository(client ParameterStoreAPI, prefix string, opts ...ParameterStoreOption) (*ParameterStoreRepository, error) {
	if client == nil {
		return nil, keyring.ValidationError{Store: "aws.ssm", Message: "client must not be nil"}
	}
	if !strings.HasPrefix(prefix, "/") {
		return nil, keyring.ValidationError{Store: "aws.ssm", Message: "prefix must be an SSM path starting with /"}
	}

	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	r := &ParameterStoreRepository{
		client: client,
		prefix: prefix,
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// NewParameterStoreRepositoryFromConfig builds a repository from an inline
// store config.
func NewParameterStoreRepositoryFromConfig(ctx context.Context, configMap map[string]interface{}, opts ...ParameterStoreOption) (*ParameterStoreRepository, error) {
	prefix, _ := configMap["prefix"].(string)
	settings := awsSettingsFromMap(configMap)

	cfg, err := loadAWSConfig(ctx, settings)
	if err != nil {
		return nil, err
	}

	client := ssm.NewFromConfig(cfg, func(o *ssm.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
		}
	})

	if kms, ok := configMap["kms_key_id"].(string); ok && kms != "" {
		opts = append(opts, WithParameterStoreKMSKeyID(kms))
	}
	return NewParameterStoreRepository(client, prefix, opts...)
}

// GetAllElements fetches every parameter under the path prefix and parses
// each decrypted value as a key document. Parameter Store has no
// server-side tag filter on GetParametersByPath, so the path itself is
// the discovery boundary.
func (r *ParameterStoreRepository) GetAllElements(ctx context.Context) ([]*keyring.KeyDocument, error) {
	if err := r.checkOpen(); err != nil {
		return nil, err
	}
	metrics.RecordList("aws.ssm")

	var documents []*keyring.KeyDocument
	var nextToken *string

	for {
		out, err := r.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
			Path:           aws.String(strings.TrimSuffix(r.prefix, "/")),
			Recursive:      aws.Bool(true),
			WithDecryption: aws.Bool(true),
			NextToken:      nextToken,
		})
		if err != nil {
			metrics.RecordTransportError("aws.ssm", "list")
			r.logger.Error("Failed to list parameters under %s: %v", r.prefix, err)
			return nil, keyring.StoreError{Store: "aws.ssm", Op: "list", Err: err}
		}

		for _, param := range out.Parameters {
			name := aws.ToString(param.Name)
			doc, err := keyring.ParseKeyDocument(aws.ToString(param.Value))
			if err != nil {
				metrics.RecordSkipped("aws.ssm")
				r.logger.Error("Skipping parameter %s: %v", name, err)
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

// StoreElement writes a key document as a new SecureString parameter.
// Overwrite is left unset so an existing parameter with the same name
// fails instead of being replaced.
func (r *ParameterStoreRepository) StoreElement(ctx context.Context, element *keyring.KeyDocument, friendlyName string) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	if err := checkElement("aws.ssm", element); err != nil {
		return err
	}
	metrics.RecordStore("aws.ssm")

	name := keyring.RecordName(r.prefix, element, friendlyName)

	text, err := element.Serialize()
	if err != nil {
		return keyring.StoreError{Store: "aws.ssm", Op: "store", Err: err}
	}

	input := &ssm.PutParameterInput{
		Name:  aws.String(name),
		Value: aws.String(text),
		Type:  types.ParameterTypeSecureString,
		Tags: []types.Tag{
			{Key: aws.String(keyring.DiscoveryTagKey), Value: aws.String(keyring.DiscoveryTagValue)},
		},
	}
	if r.kmsKeyID != "" {
		input.KeyId = aws.String(r.kmsKeyID)
	}

	if _, err := r.client.PutParameter(ctx, input); err != nil {
		metrics.RecordTransportError("aws.ssm", "store")
		r.logger.Error("Failed to store parameter %s: %v", name, err)
		return keyring.StoreError{Store: "aws.ssm", Op: "store", Err: err}
	}

	r.logger.Debug("Stored key document as parameter %s", name)
	return nil
}

// Validate checks connectivity by issuing a minimal list call.
func (r *ParameterStoreRepository) Validate(ctx context.Context) error {
	if err := r.checkOpen(); err != nil {
		return err
	}
	_, err := r.client.GetParametersByPath(ctx, &ssm.GetParametersByPathInput{
		Path:       aws.String(strings.TrimSuffix(r.prefix, "/")),
		MaxResults: aws.Int32(1),
	})
	if err != nil {
		return keyring.StoreError{Store: "aws.ssm", Op: "validate", Err: err}
	}
	return nil
}

// Close marks the repository closed. Close is idempotent.
func (r *ParameterStoreRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *ParameterStoreRepository) checkOpen() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return keyring.ErrRepositoryClosed
	}
	return nil
}

var _ keyring.Repository = (*ParameterStoreRepository)(nil)
