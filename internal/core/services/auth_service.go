package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

type AuthService struct {
	credentials ports.CredentialProvider
	federated   ports.FederatedProvider
	identities  ports.IdentityRepository
	profiles    ports.ProfileRepository
	tokens      *TokenIssuer
	sessions    *SessionManager
	log         *zap.SugaredLogger
	now         func() time.Time
}

var _ ports.AuthService = (*AuthService)(nil)

// NewAuthService wires the sign-in flows. federated may be nil when Google sign-in is not configured.
func NewAuthService(
	credentials ports.CredentialProvider,
	federated ports.FederatedProvider,
	identities ports.IdentityRepository,
	profiles ports.ProfileRepository,
	tokens *TokenIssuer,
	sessions *SessionManager,
	log *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		credentials: credentials,
		federated:   federated,
		identities:  identities,
		profiles:    profiles,
		tokens:      tokens,
		sessions:    sessions,
		log:         log,
		now:         time.Now,
	}
}

func (s *AuthService) Login(ctx context.Context, creds domain.Credentials) (*domain.SignedSession, error) {
	identity, err := s.credentials.SignIn(ctx, creds)
	if err != nil {
		s.log.Infow("sign-in rejected", "email", creds.Email, "error", err)
		return nil, asAuthError("sign-in failed", err)
	}
	return s.establish(ctx, *identity, domain.RoleCitizen)
}

// RegisterAndProvision creates the identity, then the profile record if none exists yet.
// An empty role means citizen.
func (s *AuthService) RegisterAndProvision(
	ctx context.Context,
	creds domain.Credentials,
	displayName string,
	role domain.Role,
) (*domain.SignedSession, error) {
	if role == "" {
		role = domain.RoleCitizen
	}
	if !role.Valid() {
		return nil, domain.NewAuthError("unknown role", domain.ErrValidation)
	}

	identity, err := s.credentials.SignUp(ctx, creds, strings.TrimSpace(displayName))
	if err != nil {
		s.log.Infow("sign-up rejected", "email", creds.Email, "error", err)
		return nil, asAuthError("sign-up failed", err)
	}
	s.log.Infow("identity registered", "subject", identity.ID, "role", role)
	return s.establish(ctx, *identity, role)
}

func (s *AuthService) FederatedLoginURL() (string, string, error) {
	if s.federated == nil {
		return "", "", domain.NewAuthError("federated sign-in not configured", nil)
	}
	state, err := generateState()
	if err != nil {
		return "", "", domain.NewAuthError("state generation failed", err)
	}
	return s.federated.AuthURL(state), state, nil
}

// LoginWithFederatedProvider links the provider's identity to a local one by email, creating it on first use.
func (s *AuthService) LoginWithFederatedProvider(ctx context.Context, code string) (*domain.SignedSession, error) {
	if s.federated == nil {
		return nil, domain.NewAuthError("federated sign-in not configured", nil)
	}

	external, err := s.federated.Exchange(ctx, code)
	if err != nil {
		s.log.Warnw("federated exchange failed", "error", err)
		return nil, asAuthError("federated sign-in failed", err)
	}

	email := strings.ToLower(strings.TrimSpace(external.Email))
	identity, err := s.identities.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		created := domain.Identity{
			ID:          uuid.NewString(),
			Email:       email,
			DisplayName: external.DisplayName,
			Provider:    domain.ProviderGoogle,
			CreatedAt:   s.now().UTC(),
		}
		if err := s.identities.Create(ctx, created); err != nil {
			s.log.Errorw("federated identity create failed", "email", email, "error", err)
			return nil, domain.NewAuthError("federated sign-in failed", err)
		}
		identity = &created
	case err != nil:
		s.log.Errorw("identity lookup failed", "email", email, "error", err)
		return nil, domain.NewAuthError("federated sign-in failed", err)
	}

	return s.establish(ctx, *identity, domain.RoleCitizen)
}

// Logout clears the cached role first, then revokes the token.
func (s *AuthService) Logout(ctx context.Context, session *domain.Session) error {
	if !session.Authenticated() {
		return domain.NewAuthError("not signed in", domain.ErrUnauthenticated)
	}
	if err := s.sessions.forgetRole(ctx, session.Identity.ID); err != nil {
		s.log.Warnw("role cache clear failed", "subject", session.Identity.ID, "error", err)
		return domain.NewAuthError("sign-out failed", err)
	}
	if err := s.sessions.revoke(ctx, session); err != nil {
		s.log.Warnw("session revoke failed", "subject", session.Identity.ID, "error", err)
		return domain.NewAuthError("sign-out failed", err)
	}
	return nil
}

// establish provisions the profile lazily and signs a session token for identity.
func (s *AuthService) establish(ctx context.Context, identity domain.Identity, role domain.Role) (*domain.SignedSession, error) {
	profile, created, err := s.profiles.CreateIfAbsent(ctx, domain.NewProfile(identity, role, s.now().UTC()))
	if err != nil {
		s.log.Errorw("profile provisioning failed", "subject", identity.ID, "error", err)
		return nil, domain.NewAuthError("profile provisioning failed", err)
	}
	if created {
		s.log.Infow("profile provisioned", "subject", identity.ID, "role", profile.Role)
	}

	token, exp, err := s.tokens.Issue(identity)
	if err != nil {
		return nil, domain.NewAuthError("session issue failed", err)
	}
	return &domain.SignedSession{Token: token, ExpiresAt: exp, Profile: profile}, nil
}

func asAuthError(reason string, err error) error {
	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return err
	}
	return domain.NewAuthError(reason, err)
}

// generateState creates a random state for CSRF protection
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
