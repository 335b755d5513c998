package session

import "time"

// Session is a stored sign-in: the key a caller presents, the claims it
// resolves to and the provider token used on the caller's behalf.
type Session struct {
	ID                string     `json:"id"`
	KeyHash           string     `json:"-"`
	PreferredUsername string     `json:"preferred_username,omitempty"`
	AccessToken       string     `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
	LastUsed          *time.Time `json:"last_used,omitempty"`
	RevokedAt         *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the session can no longer be used.
func (s *Session) Revoked() bool {
	return s.RevokedAt != nil
}
