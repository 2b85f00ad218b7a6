package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	kerrors "github.com/systmms/keyops/internal/errors"
)

func TestUserError(t *testing.T) {
	t.Parallel()

	inner := stderrors.New("boom")
	err := kerrors.UserError{
		Message:    "Failed to store key document",
		Details:    "boom",
		Suggestion: "Check the store configuration",
		Err:        inner,
	}

	assert.Contains(t, err.Error(), "Failed to store key document")
	assert.Contains(t, err.Error(), "Details: boom")
	assert.Contains(t, err.Error(), "Check the store configuration")
	assert.True(t, stderrors.Is(err, inner))
}

func TestConfigError(t *testing.T) {
	t.Parallel()

	err := kerrors.ConfigError{
		Field:      "prefix",
		Message:    "must not be empty",
		Suggestion: "Set prefix in keyops.yaml",
	}

	assert.Contains(t, err.Error(), "field 'prefix'")
	assert.Contains(t, err.Error(), "must not be empty")
	assert.Contains(t, err.Error(), "Set prefix in keyops.yaml")
}

func TestRepositoryErrorSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		storeType string
		err       error
		want      string
	}{
		{
			name:      "aws access denied",
			storeType: "aws.secretsmanager",
			err:       stderrors.New("AccessDenied: not allowed"),
			want:      "IAM permissions",
		},
		{
			name:      "aws name collision",
			storeType: "aws.secretsmanager",
			err:       stderrors.New("ResourceExistsException: already exists"),
			want:      "different friendly name",
		},
		{
			name:      "gcp unauthenticated",
			storeType: "gcp.secretmanager",
			err:       stderrors.New("rpc error: code = Unauthenticated"),
			want:      "gcloud auth",
		},
		{
			name:      "azure forbidden",
			storeType: "azure.keyvault",
			err:       stderrors.New("403 Forbidden"),
			want:      "access policies",
		},
		{
			name:      "generic timeout",
			storeType: "sql",
			err:       stderrors.New("i/o timeout"),
			want:      "timed out",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			wrapped := kerrors.RepositoryError(tt.storeType, "list", tt.err)
			assert.Contains(t, wrapped.Error(), tt.want)
			assert.True(t, stderrors.Is(wrapped, tt.err))
		})
	}
}
