package token

// Bundle is the access/refresh token pair for the active identity.
// One valid bundle exists per user per process; it is replaced wholesale on
// refresh and deleted on sign-out, refresh failure, or detected expiry.
type Bundle struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	// ExpiresAt is epoch milliseconds. Zero means unknown; the manager will
	// try to recover it from the access token's JWT claims.
	ExpiresAt int64  `json:"expires_at"`
	UserID    string `json:"user_id"`
}
