package domain

import "time"

// Session is the resolved view of the caller: who they are and which role they act as.
// Role is empty when it could not be resolved.
type Session struct {
	Identity  Identity
	Role      Role
	TokenID   string
	ExpiresAt time.Time
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Identity.ID != ""
}

// Credentials for the password provider.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignedSession is handed back to clients after a successful sign-in.
type SignedSession struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	Profile   Profile   `json:"profile"`
}
