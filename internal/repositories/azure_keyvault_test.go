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

func azureTags() map[string]*string {
	value := keyring.DiscoveryTagValue
	return map[string]*string{keyring.DiscoveryTagKey: &value}
}

func TestNewKeyVaultRepositoryValidation(t *testing.T) {
	t.Parallel()

	_, err := repositories.NewKeyVaultRepository(nil, "keyring-")
	var verr keyring.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "azure.keyvault", verr.Store)

	_, err = repositories.NewKeyVaultRepository(fakes.NewFakeKeyVaultClient(), "")
	require.ErrorAs(t, err, &verr)

	_, err = repositories.NewKeyVaultRepository(fakes.NewFakeKeyVaultClient(), "keyring-")
	assert.NoError(t, err)
}

func TestKeyVaultStoreElement(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeKeyVaultClient()
	repo, err := repositories.NewKeyVaultRepository(client, "keyring-")
	require.NoError(t, err)

	doc := mustParse(t, testKeyXML)
	require.NoError(t, repo.StoreElement(context.Background(), doc, "primary"))

	require.Len(t, client.SetCalls, 1)
	assert.Equal(t, "keyring-primary", client.SetCalls[0])

	data := client.Secrets["keyring-primary"]
	require.NotNil(t, data)
	tag, ok := data.Tags[keyring.DiscoveryTagKey]
	require.True(t, ok)
	assert.Equal(t, keyring.DiscoveryTagValue, *tag)

	text, err := doc.Serialize()
	require.NoError(t, err)
	assert.Equal(t, text, data.Value)
}

func TestKeyVaultStoreElementFlattensInvalidRunes(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeKeyVaultClient()
	repo, err := repositories.NewKeyVaultRepository(client, "keyring/")
	require.NoError(t, err)

	require.NoError(t, repo.StoreElement(context.Background(), mustParse(t, testKeyXML), "key_2026.08"))

	require.Len(t, client.SetCalls, 1)
	assert.Equal(t, "keyring-key-2026-08", client.SetCalls[0])
}

func TestKeyVaultDuplicateName(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeKeyVaultClient()
	repo, err := repositories.NewKeyVaultRepository(client, "keyring-")
	require.NoError(t, err)

	doc := mustParse(t, testKeyXML)
	require.NoError(t, repo.StoreElement(context.Background(), doc, "primary"))

	// SetSecret would version over the existing name, so the repository
	// must reject the collision itself
	err = repo.StoreElement(context.Background(), doc, "primary")
	require.Error(t, err)
	assert.True(t, repositories.IsAlreadyExists(err))
	assert.Len(t, client.SetCalls, 1, "duplicate must not be written")
}

func TestKeyVaultStoreElementPrecheckFailure(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeKeyVaultClient()
	client.GetError = errors.New("forbidden")

	repo, err := repositories.NewKeyVaultRepository(client, "keyring-")
	require.NoError(t, err)

	err = repo.StoreElement(context.Background(), mustParse(t, testKeyXML), "primary")
	require.Error(t, err)

	var serr keyring.StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "store", serr.Op)
	assert.Empty(t, client.SetCalls)
}

func TestKeyVaultRoundTrip(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeKeyVaultClient()
	repo, err := repositories.NewKeyVaultRepository(client, "keyring-")
	require.NoError(t, err)

	stored := mustParse(t, testKeyXML)
	require.NoError(t, repo.StoreElement(context.Background(), stored, "primary"))

	documents, err := repo.GetAllElements(context.Background())
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.True(t, stored.Equal(documents[0]))
}

func TestKeyVaultGetAllElementsFiltersByTag(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeKeyVaultClient()
	client.AddSecret("keyring-k1", `<key id="k1"/>`, azureTags())
	client.AddSecret("db-password", "hunter2", nil)
	client.AddSecret("certificate", "pem data", map[string]*string{})

	repo, err := repositories.NewKeyVaultRepository(client, "keyring-")
	require.NoError(t, err)

	documents, err := repo.GetAllElements(context.Background())
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.Equal(t, "k1", documents[0].ID())

	// Untagged secrets are never fetched
	assert.Zero(t, client.GetCalls["db-password"])
	assert.Zero(t, client.GetCalls["certificate"])
}

func TestKeyVaultGetAllElementsPagination(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeKeyVaultClient()
	client.PageSize = 2
	client.AddSecret("keyring-k1", `<key id="k1"/>`, azureTags())
	client.AddSecret("keyring-k2", `<key id="k2"/>`, azureTags())
	client.AddSecret("keyring-k3", `<key id="k3"/>`, azureTags())

	repo, err := repositories.NewKeyVaultRepository(client, "keyring-")
	require.NoError(t, err)

	documents, err := repo.GetAllElements(context.Background())
	require.NoError(t, err)
	assert.Len(t, documents, 3)
}

func TestKeyVaultGetAllElementsSkipsMalformed(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeKeyVaultClient()
	client.AddSecret("keyring-good", `<key id="good"/>`, azureTags())
	client.AddSecret("keyring-bad", "plain text", azureTags())

	repo, err := repositories.NewKeyVaultRepository(client, "keyring-")
	require.NoError(t, err)

	documents, err := repo.GetAllElements(context.Background())
	require.NoError(t, err)
	require.Len(t, documents, 1)
	assert.Equal(t, "good", documents[0].ID())
}

func TestKeyVaultGetAllElementsGetFailure(t *testing.T) {
	t.Parallel()

	client := fakes.NewFakeKeyVaultClient()
	client.AddSecret("keyring-k1", `<key id="k1"/>`, azureTags())
	client.GetError = errors.New("forbidden")

	repo, err := repositories.NewKeyVaultRepository(client, "keyring-")
	require.NoError(t, err)

	documents, err := repo.GetAllElements(context.Background())
	require.Error(t, err)
	assert.Nil(t, documents)

	var serr keyring.StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "get", serr.Op)
}

func TestKeyVaultClose(t *testing.T) {
	t.Parallel()

	repo, err := repositories.NewKeyVaultRepository(fakes.NewFakeKeyVaultClient(), "keyring-")
	require.NoError(t, err)

	require.NoError(t, repo.Close())
	require.NoError(t, repo.Close())

	err = repo.StoreElement(context.Background(), mustParse(t, testKeyXML), "primary")
	assert.ErrorIs(t, err, keyring.ErrRepositoryClosed)
}
