package repositories

import (
	"errors"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/keyops/pkg/keyring"
)

// ErrRecordExists is returned by backends that detect a name collision
// themselves rather than receiving a typed rejection from the store.
var ErrRecordExists = errors.New("record already exists")

// checkElement rejects a nil key document before any remote call is made.
func checkElement(store string, element *keyring.KeyDocument) error {
	if element == nil {
		return keyring.ValidationError{Store: store, Message: "key document must not be nil"}
	}
	return nil
}

// IsAlreadyExists reports whether err means the record name is already
// taken in the backing store. Callers migrating between stores use it to
// skip documents that were copied on a previous run.
func IsAlreadyExists(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrRecordExists) {
		return true
	}
	var smExists *smtypes.ResourceExistsException
	if errors.As(err, &smExists) {
		return true
	}
	var ssmExists *ssmtypes.ParameterAlreadyExists
	if errors.As(err, &ssmExists) {
		return true
	}
	if status.Code(err) == codes.AlreadyExists {
		return true
	}
	var azErr *azcore.ResponseError
	if errors.As(err, &azErr) && azErr.StatusCode == 409 {
		return true
	}

	// Relational stores surface the unique constraint as a driver error
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "file exists")
}

// IsNotFound reports whether err means the requested record does not
// exist in the backing store.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var smNotFound *smtypes.ResourceNotFoundException
	if errors.As(err, &smNotFound) {
		return true
	}
	var ssmNotFound *ssmtypes.ParameterNotFound
	if errors.As(err, &ssmNotFound) {
		return true
	}
	if status.Code(err) == codes.NotFound {
		return true
	}
	var azErr *azcore.ResponseError
	if errors.As(err, &azErr) && azErr.StatusCode == 404 {
		return true
	}
	return false
}
