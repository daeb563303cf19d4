package securecodec

import (
	"crypto/hmac"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"aegis/pkg/faults"
)

// Signature carries the values attached to a signed request.
type Signature struct {
	Value string
	// Timestamp is epoch milliseconds at signing time.
	Timestamp int64
	Nonce     string
}

// SignParams holds the request parts covered by a signature.
type SignParams struct {
	Method    string
	URL       string
	Body      []byte
	Timestamp int64
	Nonce     string
}

// SignRequest signs a request with the keyring's signing key. The canonical
// string is METHOD\nURL\nTIMESTAMP\nNONCE\nHASH(BODY).
func (c *Codec) SignRequest(method, url string, body []byte) (*Signature, error) {
	if method == "" || url == "" {
		return nil, faults.New(faults.CodeValidation, "method and url are required")
	}
	sig := &Signature{
		Timestamp: c.clock.Now().UnixMilli(),
		Nonce:     uuid.NewString(),
	}
	canonical := canonicalString(SignParams{
		Method:    method,
		URL:       url,
		Body:      body,
		Timestamp: sig.Timestamp,
		Nonce:     sig.Nonce,
	})
	sig.Value = hex.EncodeToString(hmacSHA256(c.keyring.SigningKey(), []byte(canonical)))
	return sig, nil
}

// VerifySignature recomputes the HMAC over params and reports whether it
// matches signature and the timestamp is within the staleness window.
func (c *Codec) VerifySignature(signature string, params SignParams) bool {
	age := c.clock.Now().UnixMilli() - params.Timestamp
	if age > c.stalenessWindow.Milliseconds() || age < -c.stalenessWindow.Milliseconds() {
		return false
	}
	expected := hex.EncodeToString(hmacSHA256(c.keyring.SigningKey(), []byte(canonicalString(params))))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func canonicalString(p SignParams) string {
	return strings.Join([]string{
		strings.ToUpper(p.Method),
		p.URL,
		fmt.Sprintf("%d", p.Timestamp),
		p.Nonce,
		HashData(p.Body),
	}, "\n")
}
