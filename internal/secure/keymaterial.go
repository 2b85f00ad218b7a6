package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrEmptyKeyMaterial is returned when zero bytes are offered for sealing.
// memguard cannot allocate a zero-length buffer, and an empty key document
// is never valid anyway.
var ErrEmptyKeyMaterial = errors.New("key material is empty")

// ErrKeyMaterialDestroyed is returned by Open after Destroy.
var ErrKeyMaterialDestroyed = errors.New("key material already destroyed")

// KeyMaterial holds the plaintext of a key document in protected memory
// while it transits the CLI: between reading it from a file or stdin and
// handing it to a repository. The plaintext is encrypted at rest in memory
// and the backing pages are mlocked where the platform allows it.
type KeyMaterial struct {
	enclave *memguard.Enclave
	mu      sync.RWMutex
	// destroyed allows idempotent Destroy() calls and prevents use after destroy
	destroyed bool
}

// NewKeyMaterial seals the given bytes into a protected buffer. memguard
// wipes the source slice as part of sealing, so callers must not reuse it.
// Empty input is rejected with ErrEmptyKeyMaterial.
func NewKeyMaterial(data []byte) (*KeyMaterial, error) {
	if len(data) == 0 {
		return nil, ErrEmptyKeyMaterial
	}
	return &KeyMaterial{
		enclave: memguard.NewEnclave(data),
	}, nil
}

// Open decrypts the material into a locked buffer. The caller MUST call
// Destroy() on the returned buffer when done to wipe the plaintext.
//
//	locked, err := km.Open()
//	if err != nil {
//	    return err
//	}
//	defer locked.Destroy()
//	element, err := keyring.ParseKeyDocument(string(locked.Bytes()))
func (k *KeyMaterial) Open() (*memguard.LockedBuffer, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if k.destroyed || k.enclave == nil {
		return nil, ErrKeyMaterialDestroyed
	}
	return k.enclave.Open()
}

// Destroy marks the material as destroyed and prevents further use.
// Idempotent: calling it again has no effect. After Destroy(), Open()
// returns ErrKeyMaterialDestroyed.
func (k *KeyMaterial) Destroy() {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.destroyed {
		return
	}
	k.enclave = nil
	k.destroyed = true
}
