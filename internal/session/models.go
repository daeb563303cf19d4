package session

import "time"

// Session is the singleton per-process session record.
// Invariant while Active: LastActivity <= now <= ExpiresAt.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	StartTime time.Time `json:"start_time"`
	// LastActivity advances on every activity ping and resets the
	// inactivity clock.
	LastActivity time.Time `json:"last_activity"`
	// ExpiresAt is the absolute-duration limit, fixed at start.
	ExpiresAt time.Time  `json:"expires_at"`
	IsActive  bool       `json:"is_active"`
	CSRFToken string     `json:"csrf_token"`
	Device    DeviceInfo `json:"device"`
	// BackgroundedAt is set while the app is backgrounded, nil otherwise.
	BackgroundedAt *time.Time `json:"backgrounded_at,omitempty"`
}

// clone returns a copy safe to hand to callers.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	dup := *s
	if s.BackgroundedAt != nil {
		t := *s.BackgroundedAt
		dup.BackgroundedAt = &t
	}
	return &dup
}
