package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"io"

	"aegis/pkg/faults"
)

// newCSRFToken generates a random anti-forgery token.
func newCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", faults.Wrap(err, faults.CodeInternal, "could not generate csrf token")
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// csrfTokensEqual compares tokens in constant time to avoid timing
// side-channels.
func csrfTokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
