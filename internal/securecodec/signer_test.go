package securecodec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aegis/pkg/faults"
	"aegis/pkg/platform/clock"
)

func TestSignRequest_VerifyRoundTrip(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))
	body := []byte(`{"amount":100}`)

	sig, err := codec.SignRequest("POST", "https://api.example.com/transfer", body)
	require.NoError(t, err)
	assert.Len(t, sig.Value, 64)
	assert.NotEmpty(t, sig.Nonce)
	assert.Equal(t, testEpoch.UnixMilli(), sig.Timestamp)

	ok := codec.VerifySignature(sig.Value, SignParams{
		Method:    "POST",
		URL:       "https://api.example.com/transfer",
		Body:      body,
		Timestamp: sig.Timestamp,
		Nonce:     sig.Nonce,
	})
	assert.True(t, ok)
}

func TestVerifySignature_MethodIsCaseInsensitive(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))

	sig, err := codec.SignRequest("post", "https://api.example.com/x", nil)
	require.NoError(t, err)

	ok := codec.VerifySignature(sig.Value, SignParams{
		Method:    "POST",
		URL:       "https://api.example.com/x",
		Timestamp: sig.Timestamp,
		Nonce:     sig.Nonce,
	})
	assert.True(t, ok)
}

func TestVerifySignature_TamperedBodyFails(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))
	body := []byte(`{"amount":100}`)

	sig, err := codec.SignRequest("POST", "https://api.example.com/transfer", body)
	require.NoError(t, err)

	ok := codec.VerifySignature(sig.Value, SignParams{
		Method:    "POST",
		URL:       "https://api.example.com/transfer",
		Body:      []byte(`{"amount":9999}`),
		Timestamp: sig.Timestamp,
		Nonce:     sig.Nonce,
	})
	assert.False(t, ok)
}

func TestVerifySignature_TamperedNonceFails(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))

	sig, err := codec.SignRequest("GET", "https://api.example.com/x", nil)
	require.NoError(t, err)

	ok := codec.VerifySignature(sig.Value, SignParams{
		Method:    "GET",
		URL:       "https://api.example.com/x",
		Timestamp: sig.Timestamp,
		Nonce:     "different-nonce",
	})
	assert.False(t, ok)
}

func TestVerifySignature_AgedSignatureFails(t *testing.T) {
	clk := clock.NewFake(testEpoch)
	codec := newTestCodec(t, clk)

	sig, err := codec.SignRequest("GET", "https://api.example.com/x", nil)
	require.NoError(t, err)

	clk.Advance(5*time.Minute + time.Second)
	ok := codec.VerifySignature(sig.Value, SignParams{
		Method:    "GET",
		URL:       "https://api.example.com/x",
		Timestamp: sig.Timestamp,
		Nonce:     sig.Nonce,
	})
	assert.False(t, ok)
}

func TestVerifySignature_FutureTimestampBeyondWindowFails(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))

	future := testEpoch.Add(6 * time.Minute).UnixMilli()
	ok := codec.VerifySignature("irrelevant", SignParams{
		Method:    "GET",
		URL:       "https://api.example.com/x",
		Timestamp: future,
		Nonce:     "n",
	})
	assert.False(t, ok)
}

func TestSignRequest_RequiresMethodAndURL(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))

	_, err := codec.SignRequest("", "https://api.example.com/x", nil)
	assert.True(t, faults.HasCode(err, faults.CodeValidation))

	_, err = codec.SignRequest("GET", "", nil)
	assert.True(t, faults.HasCode(err, faults.CodeValidation))
}

func TestSignRequest_NoncesAreUnique(t *testing.T) {
	codec := newTestCodec(t, clock.NewFake(testEpoch))

	a, err := codec.SignRequest("GET", "https://api.example.com/x", nil)
	require.NoError(t, err)
	b, err := codec.SignRequest("GET", "https://api.example.com/x", nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Value, b.Value)
}
