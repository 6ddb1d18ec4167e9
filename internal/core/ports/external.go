package ports

import (
	"context"
	"time"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
)

// ObjectStore holds report attachments and hands back retrievable URLs.
type ObjectStore interface {
	Upload(ctx context.Context, key string, file domain.Attachment) (string, error)
	Delete(ctx context.Context, url string) error
}

// Geocoder resolves coordinates to a human readable address.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// FederatedProvider is an external sign-in provider (Google).
type FederatedProvider interface {
	AuthURL(state string) string
	// Exchange trades an authorization code for a verified identity. The returned
	// identity has no ID; the caller links it to a local one by email.
	Exchange(ctx context.Context, code string) (domain.Identity, error)
}

// SessionStore keeps revoked session tokens and the per-subject role cache.
type SessionStore interface {
	Ping(ctx context.Context) error
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	CachedRole(ctx context.Context, subjectID string) (domain.Role, bool, error)
	CacheRole(ctx context.Context, subjectID string, role domain.Role, ttl time.Duration) error
	ClearRole(ctx context.Context, subjectID string) error
}

// CredentialProvider is the email and password identity provider.
type CredentialProvider interface {
	SignIn(ctx context.Context, creds domain.Credentials) (*domain.Identity, error)
	SignUp(ctx context.Context, creds domain.Credentials, displayName string) (*domain.Identity, error)
}
