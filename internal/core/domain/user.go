package domain

import "time"

type IdentityProvider string

const (
	ProviderPassword IdentityProvider = "password"
	ProviderGoogle   IdentityProvider = "google"
)

// Identity is what the identity provider knows about a subject.
type Identity struct {
	ID           string           `json:"id"`
	Email        string           `json:"email"`
	DisplayName  string           `json:"displayName"`
	Provider     IdentityProvider `json:"provider"`
	PasswordHash string           `json:"-"`
	CreatedAt    time.Time        `json:"createdAt"`
}

// Profile is the application record keyed by the identity id. It carries the role.
type Profile struct {
	ID           string    `json:"uid"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	Role         Role      `json:"role"`
	AssignedArea string    `json:"assignedArea,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NewProfile builds the record provisioned lazily on first authentication.
func NewProfile(identity Identity, role Role, now time.Time) Profile {
	if !role.Valid() {
		role = RoleCitizen
	}
	return Profile{
		ID:          identity.ID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Role:        role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// ProfileUpdate is a privileged write. Nil fields are left untouched.
type ProfileUpdate struct {
	Role         *Role
	AssignedArea *string
}
