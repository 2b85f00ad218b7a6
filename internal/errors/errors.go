package errors

import (
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  💡 Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  💡 " + e.Suggestion
	}

	return msg
}

// RepositoryError enhances store-specific errors with context
func RepositoryError(storeType string, operation string, err error) error {
	suggestion := getStoreSuggestion(storeType, err)

	return UserError{
		Message:    fmt.Sprintf("%s store error during %s", storeType, operation),
		Suggestion: suggestion,
		Err:        err,
	}
}

// getStoreSuggestion returns helpful suggestions based on store type and error
func getStoreSuggestion(storeType string, err error) string {
	errStr := err.Error()

	switch {
	case strings.HasPrefix(storeType, "aws"):
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:ListSecrets, GetSecretValue, and CreateSecret"
		}
		if strings.Contains(errStr, "ResourceExistsException") {
			return "A secret with the derived name already exists. Pick a different friendly name"
		}
		if strings.Contains(errStr, "ResourceNotFoundException") {
			return "Verify the secret name and region. List secrets with: 'aws secretsmanager list-secrets'"
		}
		if strings.Contains(errStr, "ThrottlingException") {
			return "AWS rate limit exceeded. Wait a moment and try again"
		}

	case strings.HasPrefix(storeType, "gcp"):
		if strings.Contains(errStr, "PermissionDenied") {
			return "Check IAM permissions: secretmanager.secrets.create, list, and versions.access"
		}
		if strings.Contains(errStr, "Unauthenticated") {
			return "Check authentication: set GOOGLE_APPLICATION_CREDENTIALS or run 'gcloud auth application-default login'"
		}
		if strings.Contains(errStr, "AlreadyExists") {
			return "A secret with the derived name already exists. Pick a different friendly name"
		}
		if strings.Contains(errStr, "NotFound") {
			return "Verify the project ID and that the Secret Manager API is enabled"
		}

	case strings.HasPrefix(storeType, "azure"):
		if strings.Contains(errStr, "Forbidden") || strings.Contains(errStr, "403") {
			return "Check Key Vault access policies: 'Get', 'List', and 'Set' permissions are required for secrets"
		}
		if strings.Contains(errStr, "401") || strings.Contains(errStr, "Unauthorized") {
			return "Check authentication: verify managed identity, service principal, or Azure CLI login"
		}
		if strings.Contains(errStr, "404") {
			return "Check the vault URL format and that the Key Vault exists"
		}

	case storeType == "sql":
		if strings.Contains(errStr, "connection refused") {
			return "Check the database DSN and that the server is reachable"
		}
		if strings.Contains(errStr, "duplicate") || strings.Contains(errStr, "Duplicate") {
			return "A row with the derived name already exists. Pick a different friendly name"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and store configuration"
	}

	return ""
}
