package fakes

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/keyops/internal/repositories"
)

// FakeGCPSecretData holds the data for one fake GCP secret.
type FakeGCPSecretData struct {
	Name    string
	Labels  map[string]string
	Payload []byte
}

// FakeGCPSecretManagerClient is an in-memory implementation of the Secret
// Manager subset the repository uses.
type FakeGCPSecretManagerClient struct {
	// Secrets maps full resource names (projects/X/secrets/Y) to their data
	Secrets map[string]*FakeGCPSecretData
	order   []string

	ListError   error
	AccessError error
	CreateError error

	CreateCalls     []*secretmanagerpb.CreateSecretRequest
	AddVersionCalls []*secretmanagerpb.AddSecretVersionRequest
	AccessCalls     map[string]int
	CloseCalls      int
}

// NewFakeGCPSecretManagerClient creates an empty fake client.
func NewFakeGCPSecretManagerClient() *FakeGCPSecretManagerClient {
	return &FakeGCPSecretManagerClient{
		Secrets:     make(map[string]*FakeGCPSecretData),
		AccessCalls: make(map[string]int),
	}
}

// AddSecret seeds a labeled secret with a payload.
func (f *FakeGCPSecretManagerClient) AddSecret(projectID, secretID string, labels map[string]string, payload []byte) {
	fullName := fmt.Sprintf("projects/%s/secrets/%s", projectID, secretID)
	f.Secrets[fullName] = &FakeGCPSecretData{
		Name:    fullName,
		Labels:  labels,
		Payload: payload,
	}
	f.order = append(f.order, fullName)
}

// CreateSecret records the request and stores the secret without a
// payload. A taken id returns AlreadyExists.
func (f *FakeGCPSecretManagerClient) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	f.CreateCalls = append(f.CreateCalls, req)
	if f.CreateError != nil {
		return nil, f.CreateError
	}

	fullName := fmt.Sprintf("%s/secrets/%s", req.Parent, req.SecretId)
	if _, exists := f.Secrets[fullName]; exists {
		return nil, status.Error(codes.AlreadyExists, "secret already exists")
	}

	f.Secrets[fullName] = &FakeGCPSecretData{
		Name:   fullName,
		Labels: req.GetSecret().GetLabels(),
	}
	f.order = append(f.order, fullName)

	return &secretmanagerpb.Secret{
		Name:        fullName,
		Labels:      req.GetSecret().GetLabels(),
		Replication: req.GetSecret().GetReplication(),
	}, nil
}

// AddSecretVersion records the request and attaches the payload to the
// parent secret.
func (f *FakeGCPSecretManagerClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	f.AddVersionCalls = append(f.AddVersionCalls, req)

	data, ok := f.Secrets[req.Parent]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret not found")
	}
	data.Payload = req.GetPayload().GetData()

	return &secretmanagerpb.SecretVersion{
		Name:  req.Parent + "/versions/1",
		State: secretmanagerpb.SecretVersion_ENABLED,
	}, nil
}

// AccessSecretVersion returns the payload of the parent secret.
func (f *FakeGCPSecretManagerClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.AccessCalls[req.Name]++
	if f.AccessError != nil {
		return nil, f.AccessError
	}

	secretName := strings.TrimSuffix(req.Name, "/versions/latest")
	data, ok := f.Secrets[secretName]
	if !ok {
		return nil, status.Error(codes.NotFound, "secret version not found")
	}

	return &secretmanagerpb.AccessSecretVersionResponse{
		Name:    req.Name,
		Payload: &secretmanagerpb.SecretPayload{Data: data.Payload},
	}, nil
}

// ListSecrets iterates the seeded secrets that match the label filter.
func (f *FakeGCPSecretManagerClient) ListSecrets(ctx context.Context, req *secretmanagerpb.ListSecretsRequest) repositories.SecretIterator {
	if f.ListError != nil {
		return &fakeSecretIterator{err: f.ListError}
	}

	var matched []*secretmanagerpb.Secret
	for _, name := range f.order {
		data := f.Secrets[name]
		if !strings.HasPrefix(name, req.Parent+"/") {
			continue
		}
		if !matchesLabelFilter(data.Labels, req.Filter) {
			continue
		}
		matched = append(matched, &secretmanagerpb.Secret{
			Name:   name,
			Labels: data.Labels,
		})
	}
	return &fakeSecretIterator{secrets: matched}
}

// matchesLabelFilter handles the labels.key=value filter form.
func matchesLabelFilter(labels map[string]string, filter string) bool {
	if filter == "" {
		return true
	}
	expr := strings.TrimPrefix(filter, "labels.")
	parts := strings.SplitN(expr, "=", 2)
	if len(parts) != 2 {
		return false
	}
	return labels[parts[0]] == parts[1]
}

// Close records the call.
func (f *FakeGCPSecretManagerClient) Close() error {
	f.CloseCalls++
	return nil
}

type fakeSecretIterator struct {
	secrets []*secretmanagerpb.Secret
	pos     int
	err     error
}

func (it *fakeSecretIterator) Next() (*secretmanagerpb.Secret, error) {
	if it.err != nil {
		return nil, it.err
	}
	if it.pos >= len(it.secrets) {
		return nil, iterator.Done
	}
	secret := it.secrets[it.pos]
	it.pos++
	return secret, nil
}
