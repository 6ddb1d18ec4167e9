package identity

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

// MinPasswordLength is the provider's password rule.
const MinPasswordLength = 6

// PasswordProvider is the email and password identity provider backed by the identities table.
type PasswordProvider struct {
	identities ports.IdentityRepository
	cost       int
}

var _ ports.CredentialProvider = (*PasswordProvider)(nil)

func NewPasswordProvider(identities ports.IdentityRepository, cost int) *PasswordProvider {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordProvider{identities: identities, cost: cost}
}

func (p *PasswordProvider) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Identity, error) {
	email := normalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, domain.NewAuthError("invalid credentials", domain.ErrUnauthenticated)
	}

	identity, err := p.identities.FindByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewAuthError("invalid credentials", domain.ErrUnauthenticated)
	}
	if err != nil {
		return nil, domain.NewAuthError("sign-in unavailable", err)
	}

	if identity.Provider != domain.ProviderPassword || identity.PasswordHash == "" {
		return nil, domain.NewAuthError("invalid credentials", domain.ErrUnauthenticated)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(identity.PasswordHash), []byte(creds.Password)); err != nil {
		return nil, domain.NewAuthError("invalid credentials", domain.ErrUnauthenticated)
	}
	return identity, nil
}

func (p *PasswordProvider) SignUp(ctx context.Context, creds domain.Credentials, displayName string) (*domain.Identity, error) {
	email := normalizeEmail(creds.Email)
	if _, err := mail.ParseAddress(email); err != nil || email == "" {
		return nil, domain.NewAuthError("invalid email", domain.ErrValidation)
	}
	if len(creds.Password) < MinPasswordLength {
		return nil, domain.NewAuthError("weak password", domain.ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), p.cost)
	if err != nil {
		return nil, domain.NewAuthError("sign-up failed", err)
	}

	identity := domain.Identity{
		ID:           uuid.NewString(),
		Email:        email,
		DisplayName:  displayName,
		Provider:     domain.ProviderPassword,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.NewAuthError("email already in use", err)
		}
		return nil, domain.NewAuthError("sign-up failed", err)
	}
	return &identity, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
