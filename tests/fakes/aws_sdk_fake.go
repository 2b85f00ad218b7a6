package fakes

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
)

// FakeSecretData holds the data for one fake secret.
type FakeSecretData struct {
	ARN          string
	SecretString string
	Tags         map[string]string
}

// FakeSecretsManagerClient is an in-memory implementation of the Secrets
// Manager subset the repository uses.
type FakeSecretsManagerClient struct {
	// Secrets maps secret names to their data, in insertion order
	Secrets map[string]*FakeSecretData
	order   []string

	// PageSize splits ListSecrets results into pages when > 0
	PageSize int

	// Errors to return from each operation
	ListError   error
	GetError    error
	CreateError error

	// Call counters
	ListCalls   int
	GetCalls    map[string]int
	CreateCalls []*secretsmanager.CreateSecretInput
}

// NewFakeSecretsManagerClient creates an empty fake client.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets:  make(map[string]*FakeSecretData),
		GetCalls: make(map[string]int),
	}
}

// AddSecret seeds a tagged secret.
func (f *FakeSecretsManagerClient) AddSecret(name, value string, tags map[string]string) {
	f.Secrets[name] = &FakeSecretData{
		ARN:          "arn:aws:secretsmanager:us-east-1:123456789012:secret:" + name,
		SecretString: value,
		Tags:         tags,
	}
	f.order = append(f.order, name)
}

// ListSecrets returns the seeded secrets that match the tag filters,
// paginated when PageSize is set.
func (f *FakeSecretsManagerClient) ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error) {
	f.ListCalls++
	if f.ListError != nil {
		return nil, f.ListError
	}

	var tagKeys, tagValues []string
	for _, filter := range params.Filters {
		switch filter.Key {
		case types.FilterNameStringTypeTagKey:
			tagKeys = filter.Values
		case types.FilterNameStringTypeTagValue:
			tagValues = filter.Values
		}
	}

	var matched []string
	for _, name := range f.order {
		data := f.Secrets[name]
		if matchesTagFilter(data.Tags, tagKeys, tagValues) {
			matched = append(matched, name)
		}
	}

	start := 0
	if params.NextToken != nil {
		fmt.Sscanf(*params.NextToken, "page-%d", &start)
	}
	end := len(matched)
	var nextToken *string
	if f.PageSize > 0 && start+f.PageSize < len(matched) {
		end = start + f.PageSize
		nextToken = aws.String(fmt.Sprintf("page-%d", end))
	}

	out := &secretsmanager.ListSecretsOutput{NextToken: nextToken}
	for _, name := range matched[start:end] {
		data := f.Secrets[name]
		out.SecretList = append(out.SecretList, types.SecretListEntry{
			ARN:  aws.String(data.ARN),
			Name: aws.String(name),
		})
	}
	return out, nil
}

func matchesTagFilter(tags map[string]string, tagKeys, tagValues []string) bool {
	for _, key := range tagKeys {
		value, ok := tags[key]
		if !ok {
			return false
		}
		for _, want := range tagValues {
			if value != want {
				return false
			}
		}
	}
	return true
}

// GetSecretValue returns the seeded value for a secret, looked up by name
// or ARN.
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	id := aws.ToString(params.SecretId)
	f.GetCalls[id]++
	if f.GetError != nil {
		return nil, f.GetError
	}

	for name, data := range f.Secrets {
		if id == name || id == data.ARN {
			return &secretsmanager.GetSecretValueOutput{
				ARN:          aws.String(data.ARN),
				Name:         aws.String(name),
				SecretString: aws.String(data.SecretString),
			}, nil
		}
	}
	return nil, &types.ResourceNotFoundException{Message: aws.String("Secrets Manager can't find the specified secret.")}
}

// CreateSecret records the request and stores the secret. A name that is
// already taken returns ResourceExistsException.
func (f *FakeSecretsManagerClient) CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.CreateCalls = append(f.CreateCalls, params)
	if f.CreateError != nil {
		return nil, f.CreateError
	}

	name := aws.ToString(params.Name)
	if _, exists := f.Secrets[name]; exists {
		return nil, &types.ResourceExistsException{Message: aws.String("A resource with the ID you requested already exists.")}
	}

	tags := make(map[string]string, len(params.Tags))
	for _, tag := range params.Tags {
		tags[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	f.AddSecret(name, aws.ToString(params.SecretString), tags)

	return &secretsmanager.CreateSecretOutput{
		ARN:  aws.String(f.Secrets[name].ARN),
		Name: params.Name,
	}, nil
}

// FakeParameterData holds the data for one fake SSM parameter.
type FakeParameterData struct {
	Value string
	Tags  map[string]string
}

// FakeSSMClient is an in-memory implementation of the SSM subset the
// repository uses.
type FakeSSMClient struct {
	Parameters map[string]*FakeParameterData
	order      []string

	PageSize int

	ListError error
	PutError  error

	GetByPathCalls int
	PutCalls       []*ssm.PutParameterInput
}

// NewFakeSSMClient creates an empty fake client.
func NewFakeSSMClient() *FakeSSMClient {
	return &FakeSSMClient{Parameters: make(map[string]*FakeParameterData)}
}

// AddParameter seeds a parameter.
func (f *FakeSSMClient) AddParameter(name, value string) {
	f.Parameters[name] = &FakeParameterData{Value: value}
	f.order = append(f.order, name)
}

// GetParametersByPath returns the seeded parameters under the path,
// paginated when PageSize is set.
func (f *FakeSSMClient) GetParametersByPath(ctx context.Context, params *ssm.GetParametersByPathInput, optFns ...func(*ssm.Options)) (*ssm.GetParametersByPathOutput, error) {
	f.GetByPathCalls++
	if f.ListError != nil {
		return nil, f.ListError
	}

	path := aws.ToString(params.Path)
	var matched []string
	for _, name := range f.order {
		if strings.HasPrefix(name, path+"/") {
			matched = append(matched, name)
		}
	}

	start := 0
	if params.NextToken != nil {
		fmt.Sscanf(*params.NextToken, "page-%d", &start)
	}
	end := len(matched)
	var nextToken *string
	if f.PageSize > 0 && start+f.PageSize < len(matched) {
		end = start + f.PageSize
		nextToken = aws.String(fmt.Sprintf("page-%d", end))
	}

	out := &ssm.GetParametersByPathOutput{NextToken: nextToken}
	for _, name := range matched[start:end] {
		out.Parameters = append(out.Parameters, ssmtypes.Parameter{
			Name:  aws.String(name),
			Value: aws.String(f.Parameters[name].Value),
			Type:  ssmtypes.ParameterTypeSecureString,
		})
	}
	return out, nil
}

// PutParameter records the request and stores the parameter. A name that
// is already taken returns ParameterAlreadyExists.
func (f *FakeSSMClient) PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error) {
	f.PutCalls = append(f.PutCalls, params)
	if f.PutError != nil {
		return nil, f.PutError
	}

	name := aws.ToString(params.Name)
	if _, exists := f.Parameters[name]; exists {
		return nil, &ssmtypes.ParameterAlreadyExists{Message: aws.String("The parameter already exists.")}
	}
	f.AddParameter(name, aws.ToString(params.Value))

	return &ssm.PutParameterOutput{Version: 1}, nil
}
