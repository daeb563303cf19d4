package secstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/pkg/faults"
)

func TestAESGCMSealer_RoundTrip(t *testing.T) {
	sealer, err := NewAESGCMSealer("device-secret")
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("plaintext payload"))
	require.NoError(t, err)
	assert.NotEqual(t, []byte("plaintext payload"), sealed)

	opened, err := sealer.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, []byte("plaintext payload"), opened)
}

func TestAESGCMSealer_EmptySecretRejected(t *testing.T) {
	_, err := NewAESGCMSealer("")
	assert.True(t, faults.HasCode(err, faults.CodeValidation))
}

func TestAESGCMSealer_SealIsNondeterministic(t *testing.T) {
	sealer, err := NewAESGCMSealer("device-secret")
	require.NoError(t, err)

	a, err := sealer.Seal([]byte("same input"))
	require.NoError(t, err)
	b, err := sealer.Seal([]byte("same input"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAESGCMSealer_TamperedValueRejected(t *testing.T) {
	sealer, err := NewAESGCMSealer("device-secret")
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("payload"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0xff

	_, err = sealer.Open(sealed)
	assert.True(t, faults.HasCode(err, faults.CodeDecryptionError))
}

func TestAESGCMSealer_DifferentSecretCannotOpen(t *testing.T) {
	alice, err := NewAESGCMSealer("secret-a")
	require.NoError(t, err)
	bob, err := NewAESGCMSealer("secret-b")
	require.NoError(t, err)

	sealed, err := alice.Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = bob.Open(sealed)
	assert.Error(t, err)
}

func TestAESGCMSealer_ShortValueRejected(t *testing.T) {
	sealer, err := NewAESGCMSealer("device-secret")
	require.NoError(t, err)

	_, err = sealer.Open([]byte{0x01, 0x02})
	assert.True(t, faults.HasCode(err, faults.CodeDecryptionError))
}
