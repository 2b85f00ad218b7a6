package keyring

import (
	"context"

	"github.com/google/uuid"
)

// Discovery tag attached to every record a repository creates. Listing
// filters on this tag (or the backend's closest equivalent), so a listing
// returns exactly the set of records written by keyops or a compatible
// writer.
const (
	DiscoveryTagKey   = "keyops-keyring"
	DiscoveryTagValue = "key-document"
)

// Repository persists key-ring entries in a remote store.
//
// Implementations must be safe for concurrent use, must never retry failed
// remote calls, and must honor the skip-and-log policy for records whose
// stored value does not parse as a key document: such records are excluded
// from GetAllElements results without failing the call, and each produces
// exactly one error log entry.
type Repository interface {
	// GetAllElements returns every key document in the store. Transport
	// failures abort the call with no partial results. Result order is not
	// significant; the host resolves key material by document content.
	GetAllElements(ctx context.Context) ([]*KeyDocument, error)

	// StoreElement persists one key document under a name derived from
	// friendlyName, the document's id attribute, or a fresh random token,
	// in that priority. Every call creates a new record; name collisions
	// are left to the remote store to reject.
	StoreElement(ctx context.Context, element *KeyDocument, friendlyName string) error
}

// RecordName derives the remote record name for a document.
// Priority: friendly name, then the document's id attribute, then a freshly
// generated UUID. The prefix is always prepended.
func RecordName(prefix string, element *KeyDocument, friendlyName string) string {
	switch {
	case friendlyName != "":
		return prefix + friendlyName
	case element.ID() != "":
		return prefix + element.ID()
	default:
		return prefix + uuid.NewString()
	}
}
