package secure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/keyops/internal/secure"
)

func TestKeyMaterialRoundTrip(t *testing.T) {
	data := []byte(`<key id="abc"/>`)
	km, err := secure.NewKeyMaterial(append([]byte(nil), data...))
	require.NoError(t, err)
	defer km.Destroy()

	locked, err := km.Open()
	require.NoError(t, err)
	defer locked.Destroy()

	assert.Equal(t, `<key id="abc"/>`, string(locked.Bytes()))
}

func TestKeyMaterialRejectsEmptyInput(t *testing.T) {
	_, err := secure.NewKeyMaterial(nil)
	assert.ErrorIs(t, err, secure.ErrEmptyKeyMaterial)

	_, err = secure.NewKeyMaterial([]byte{})
	assert.ErrorIs(t, err, secure.ErrEmptyKeyMaterial)
}

func TestKeyMaterialDestroyIsIdempotent(t *testing.T) {
	km, err := secure.NewKeyMaterial([]byte("secret"))
	require.NoError(t, err)

	km.Destroy()
	km.Destroy() // second call must be a no-op

	_, err = km.Open()
	assert.ErrorIs(t, err, secure.ErrKeyMaterialDestroyed)
}
