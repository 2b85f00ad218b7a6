package repositories_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/keyops/internal/repositories"
	"github.com/systmms/keyops/pkg/keyring"
	"github.com/systmms/keyops/tests/fakes"
)

func gcpLabels() map[string]string {
	return map[string]string{keyring.DiscoveryTagKey: keyring.DiscoveryTagValue}
}

func TestNewGCPRepositoryValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		client    repositories.GCPSecretManagerAPI
		projectID string
		prefix    string
		opts      []repositories.GCPOption
		wantErr   bool
	}{
		{name: "nil_client", client: nil, projectID: "proj", prefix: "keyring-", wantErr: true},
		{name: "empty_project", client: fakes.NewFakeGCPSecretManagerClient(), projectID: "", prefix: "keyring-", wantErr: true},
		{name: "empty_prefix", client: fakes.NewFakeGCPSecretManagerClient(), projectID: "proj", prefix: "", wantErr: true},
		{
			name:      "cmek_without_replica_location",
			client:    fakes.NewFakeGCPSecretManagerClient(),
			projectID: "proj",
			prefix:    "keyring-",
			opts:      []repositories.GCPOption{repositories.WithGCPKMSKeyName("projects/p/locations/l/keyRings/r/cryptoKeys/k")},
			wantErr:   true,
		},
		{name: "valid", client: fakes.NewFakeGCPSecretManagerClient(), projectID: "proj", prefix: "keyring-", wantErr: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := repositories.NewGCPRepository(tt.client, tt.projectID, tt.prefix, tt.opts...)
			if tt.wantErr {
				var verr keyring.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Equal(t, "gcp.secretmanager", verr.Store)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGCPStoreElement(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	repo, err := repositories.NewGCPRepository(client, "proj", "keyring-")
	require.NoError(t, err)

	doc := mustParse(t, testKeyXML)
	require.NoError(t, repo.StoreElement(context.Background(), doc, "primary"))

	require.Len(t, client.CreateCalls, 1)
	create := client.CreateCalls[0]
	assert.Equal(t, "projects/proj", create.Parent)
	assert.Equal(t, "keyring-primary", create.SecretId)
	assert.Equal(t, gcpLabels(), create.GetSecret().GetLabels())
	assert.NotNil(t, create.GetSecret().GetReplication().GetAutomatic())

	require.Len(t, client.AddVersionCalls, 1)
	text, err := doc.Serialize()
	require.NoError(t, err)
	assert.Equal(t, []byte(text), client.AddVersionCalls[0].GetPayload().GetData())
}

func TestGCPStoreElementFlattensSlashes(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	repo, err := repositories.NewGCPRepository(client, "proj", "keyring/")
	require.NoError(t, err)

	require.NoError(t, repo.StoreElement(context.Background(), mustParse(t, testKeyXML), "primary"))

	require.Len(t, client.CreateCalls, 1)
	assert.Equal(t, "keyring-primary", client.CreateCalls[0].SecretId)
}

func TestGCPStoreElementUserManagedReplication(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	repo, err := repositories.NewGCPRepository(client, "proj", "keyring-",
		repositories.WithGCPReplicaLocation("europe-west1"),
		repositories.WithGCPKMSKeyName("projects/p/locations/l/keyRings/r/cryptoKeys/k"),
	)
	require.NoError(t, err)

	require.NoError(t, repo.StoreElement(context.Background(), mustParse(t, testKeyXML), "primary"))

	require.Len(t, client.CreateCalls, 1)
	userManaged := client.CreateCalls[0].GetSecret().GetReplication().GetUserManaged()
	require.NotNil(t, userManaged)
	require.Len(t, userManaged.Replicas, 1)
	assert.Equal(t, "europe-west1", userManaged.Replicas[0].Location)
	assert.Equal(t, "projects/p/locations/l/keyRings/r/cryptoKeys/k",
		userManaged.Replicas[0].GetCustomerManagedEncryption().GetKmsKeyName())
}

func TestGCPRoundTrip(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	repo, err := repositories.NewGCPRepository(client, "proj", "keyring-")
	require.NoError(t, err)

	stored := mustParse(t, testKeyXML)
	require.NoError(t, repo.StoreElement(context.Background(), stored, "primary"))

	documents, err := repo.GetAllElements(context.Background())
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.True(t, stored.Equal(documents[0]))
}

func TestGCPGetAllElementsFiltersByLabel(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	client.AddSecret("proj", "keyring-k1", gcpLabels(), []byte(`<key id="k1"/>`))
	client.AddSecret("proj", "db-password", nil, []byte("hunter2"))

	repo, err := repositories.NewGCPRepository(client, "proj", "keyring-")
	require.NoError(t, err)

	documents, err := repo.GetAllElements(context.Background())
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.Equal(t, "k1", documents[0].ID())
}

func TestGCPGetAllElementsSkipsMalformed(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	client.AddSecret("proj", "keyring-good", gcpLabels(), []byte(`<key id="good"/>`))
	client.AddSecret("proj", "keyring-bad", gcpLabels(), []byte("\x00\x01 binary junk"))

	repo, err := repositories.NewGCPRepository(client, "proj", "keyring-")
	require.NoError(t, err)

	documents, err := repo.GetAllElements(context.Background())
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.Equal(t, "good", documents[0].ID())
}

func TestGCPGetAllElementsAccessFailure(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	client.AddSecret("proj", "keyring-k1", gcpLabels(), []byte(`<key id="k1"/>`))
	client.AccessError = errors.New("permission denied")

	repo, err := repositories.NewGCPRepository(client, "proj", "keyring-")
	require.NoError(t, err)

	documents, err := repo.GetAllElements(context.Background())
	require.Error(t, err)
	assert.Nil(t, documents)

	var serr keyring.StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "get", serr.Op)
}

func TestGCPDuplicateSecretID(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	repo, err := repositories.NewGCPRepository(client, "proj", "keyring-")
	require.NoError(t, err)

	doc := mustParse(t, testKeyXML)
	require.NoError(t, repo.StoreElement(context.Background(), doc, "primary"))

	err = repo.StoreElement(context.Background(), doc, "primary")
	require.Error(t, err)
	assert.True(t, repositories.IsAlreadyExists(err))
}

func TestGCPCloseReleasesClientOnce(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeGCPSecretManagerClient()
	repo, err := repositories.NewGCPRepository(client, "proj", "keyring-")
	require.NoError(t, err)

	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())
	assert.Equal(t, 1, client.CloseCalls)

	_, err = repo.GetAllElements(context.Background())
	assert.ErrorIs(t, err, keyring.ErrRepositoryClosed)
}
