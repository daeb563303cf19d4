package securecodec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/internal/secstore"
	"aegis/pkg/faults"
	"aegis/pkg/platform/clock"
)

var testEpoch = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) secstore.Store {
	t.Helper()
	sealer, err := secstore.NewAESGCMSealer("codec-test-secret")
	require.NoError(t, err)
	return secstore.NewInMemoryStore(secstore.WithMemorySealer(sealer))
}

func newTestCodec(t *testing.T, clk clock.Clock) *Codec {
	t.Helper()
	keyring, err := LoadKeyring(context.Background(), newTestStore(t))
	require.NoError(t, err)
	codec, err := NewCodec(keyring, WithClock(clk))
	require.NoError(t, err)
	return codec
}

func TestNewCodec_RequiresKeyring(t *testing.T) {
	_, err := NewCodec(nil)
	assert.True(t, faults.HasCode(err, faults.CodeValidation))
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))

	type payload struct {
		Name   string `json:"name"`
		Amount int    `json:"amount"`
	}
	env, err := codec.EncryptRequest(payload{Name: "transfer", Amount: 250})
	require.NoError(t, err)
	require.NotEmpty(t, env.Ciphertext)
	require.NotEmpty(t, env.IV)
	require.NotEmpty(t, env.Salt)
	assert.Equal(t, testEpoch.UnixMilli(), env.Timestamp)

	var out payload
	require.NoError(t, codec.DecryptInto(env, &out))
	assert.Equal(t, payload{Name: "transfer", Amount: 250}, out)
}

func TestEncryptBytes_EnvelopesNeverShareSaltOrIV(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))

	a, err := codec.EncryptBytes([]byte("same plaintext"))
	require.NoError(t, err)
	b, err := codec.EncryptBytes([]byte("same plaintext"))
	require.NoError(t, err)

	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecryptResponse_StaleEnvelopeRejected(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	codec := newTestCodec(t, clk)

	env, err := codec.EncryptBytes([]byte("payload"))
	require.NoError(t, err)

	// One millisecond inside the window still decrypts.
	clk.Advance(5*time.Minute - time.Millisecond)
	_, err = codec.DecryptResponse(env)
	require.NoError(t, err)

	clk.Advance(2 * time.Millisecond)
	_, err = codec.DecryptResponse(env)
	assert.True(t, faults.HasCode(err, faults.CodeDecryptionError))
}

func TestDecryptResponse_CustomStalenessWindow(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	keyring, err := LoadKeyring(context.Background(), newTestStore(t))
	require.NoError(t, err)
	codec, err := NewCodec(keyring, WithClock(clk), WithStalenessWindow(time.Second))
	require.NoError(t, err)

	env, err := codec.EncryptBytes([]byte("payload"))
	require.NoError(t, err)

	clk.Advance(2 * time.Second)
	_, err = codec.DecryptResponse(env)
	assert.True(t, faults.HasCode(err, faults.CodeDecryptionError))
}

func TestDecryptResponse_TamperedCiphertextRejected(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))

	env, err := codec.EncryptBytes([]byte(`{"ok":true}`))
	require.NoError(t, err)
	env.Ciphertext = "not-base64!!"

	_, err = codec.DecryptResponse(env)
	assert.True(t, faults.HasCode(err, faults.CodeDecryptionError))
}

func TestDecryptResponse_WrongKeyFailsPadding(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	codec := newTestCodec(t, clk)
	other := newTestCodec(t, clk)

	env, err := codec.EncryptBytes([]byte("payload"))
	require.NoError(t, err)

	// Wrong key yields garbage: either the padding check fails or the
	// plaintext comes out mangled.
	out, err := other.DecryptResponse(env)
	if err == nil {
		assert.NotEqual(t, []byte("payload"), out)
	} else {
		assert.True(t, faults.HasCode(err, faults.CodeDecryptionError))
	}
}

func TestDecryptResponse_NilEnvelope(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))
	_, err := codec.DecryptResponse(nil)
	assert.True(t, faults.HasCode(err, faults.CodeDecryptionError))
}

func TestHashData_VerifyHash(t *testing.T) {
	digest := HashData([]byte("content"))
	assert.Len(t, digest, 64)
	assert.True(t, VerifyHash([]byte("content"), digest))
	assert.False(t, VerifyHash([]byte("tampered"), digest))
	assert.False(t, VerifyHash([]byte("content"), "deadbeef"))
}

func TestPKCS7_FullBlockPadding(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))

	// Exactly one block of plaintext forces a full block of padding.
	plaintext := []byte("0123456789abcdef")
	env, err := codec.EncryptBytes(plaintext)
	require.NoError(t, err)

	out, err := codec.DecryptResponse(env)
	require.NoError(t, err)
	assert.Equal(t, plaintext, out)
}

func TestEncryptBytes_EmptyPayloadRoundTrips(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))

	env, err := codec.EncryptBytes(nil)
	require.NoError(t, err)
	out, err := codec.DecryptResponse(env)
	require.NoError(t, err)
	assert.Empty(t, out)
}
