package fakes

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeKeyVaultSecretData holds the data for one fake Key Vault secret.
type FakeKeyVaultSecretData struct {
	Value string
	Tags  map[string]*string
}

// FakeKeyVaultClient is an in-memory implementation of the Key Vault
// subset the repository uses.
type FakeKeyVaultClient struct {
	// Secrets maps secret names to their data, in insertion order
	Secrets  map[string]*FakeKeyVaultSecretData
	order    []string
	VaultURL string

	// PageSize splits the properties listing into pages when > 0
	PageSize int

	ListError error
	GetError  error
	SetError  error

	GetCalls map[string]int
	SetCalls []string
}

// NewFakeKeyVaultClient creates an empty fake client.
func NewFakeKeyVaultClient() *FakeKeyVaultClient {
	return &FakeKeyVaultClient{
		Secrets:  make(map[string]*FakeKeyVaultSecretData),
		VaultURL: "https://fake-vault.vault.azure.net",
		GetCalls: make(map[string]int),
	}
}

// AddSecret seeds a tagged secret.
func (f *FakeKeyVaultClient) AddSecret(name, value string, tags map[string]*string) {
	f.Secrets[name] = &FakeKeyVaultSecretData{Value: value, Tags: tags}
	f.order = append(f.order, name)
}

func (f *FakeKeyVaultClient) secretID(name string) *azsecrets.ID {
	id := azsecrets.ID(fmt.Sprintf("%s/secrets/%s/0000000000000000", f.VaultURL, name))
	return &id
}

// GetSecret returns the seeded value for a secret.
func (f *FakeKeyVaultClient) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.GetCalls[name]++
	if f.GetError != nil {
		return azsecrets.GetSecretResponse{}, f.GetError
	}

	data, ok := f.Secrets[name]
	if !ok {
		return azsecrets.GetSecretResponse{}, &azcore.ResponseError{
			StatusCode: http.StatusNotFound,
			ErrorCode:  "SecretNotFound",
		}
	}

	value := data.Value
	return azsecrets.GetSecretResponse{
		Secret: azsecrets.Secret{
			ID:    f.secretID(name),
			Value: &value,
			Tags:  data.Tags,
		},
	}, nil
}

// SetSecret records the call and stores the secret.
func (f *FakeKeyVaultClient) SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	f.SetCalls = append(f.SetCalls, name)
	if f.SetError != nil {
		return azsecrets.SetSecretResponse{}, f.SetError
	}

	value := ""
	if parameters.Value != nil {
		value = *parameters.Value
	}
	f.AddSecret(name, value, parameters.Tags)

	return azsecrets.SetSecretResponse{
		Secret: azsecrets.Secret{
			ID:    f.secretID(name),
			Value: parameters.Value,
			Tags:  parameters.Tags,
		},
	}, nil
}

// NewListSecretPropertiesPager pages over the seeded secrets' properties.
func (f *FakeKeyVaultClient) NewListSecretPropertiesPager(options *azsecrets.ListSecretPropertiesOptions) *runtime.Pager[azsecrets.ListSecretPropertiesResponse] {
	pos := 0
	return runtime.NewPager(runtime.PagingHandler[azsecrets.ListSecretPropertiesResponse]{
		More: func(page azsecrets.ListSecretPropertiesResponse) bool {
			return pos < len(f.order)
		},
		Fetcher: func(ctx context.Context, page *azsecrets.ListSecretPropertiesResponse) (azsecrets.ListSecretPropertiesResponse, error) {
			if f.ListError != nil {
				return azsecrets.ListSecretPropertiesResponse{}, f.ListError
			}

			end := len(f.order)
			if f.PageSize > 0 && pos+f.PageSize < end {
				end = pos + f.PageSize
			}

			var resp azsecrets.ListSecretPropertiesResponse
			for _, name := range f.order[pos:end] {
				resp.Value = append(resp.Value, &azsecrets.SecretProperties{
					ID:   f.secretID(name),
					Tags: f.Secrets[name].Tags,
				})
			}
			pos = end
			return resp, nil
		},
	})
}
