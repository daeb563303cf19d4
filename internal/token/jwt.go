package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// claimsFromAccessToken parses a JWT access token without verifying its
// signature and returns the expiry (epoch ms) and subject. Verification is
// the server's job; the client only needs the timestamps to schedule
// refresh. Returns zeros for opaque (non-JWT) tokens.
func claimsFromAccessToken(accessToken string) (expiresAt int64, subject string) {
	parser := jwt.NewParser()
	parsed, _, err := parser.ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return 0, ""
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ""
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiresAt = exp.UnixMilli()
	}
	if sub, err := claims.GetSubject(); err == nil {
		subject = sub
	}
	return expiresAt, subject
}
