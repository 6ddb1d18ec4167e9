package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

type ProfileService struct {
	profiles ports.ProfileRepository
	sessions ports.SessionStore
	log      *zap.SugaredLogger
	now      func() time.Time
}

var _ ports.ProfileService = (*ProfileService)(nil)

func NewProfileService(profiles ports.ProfileRepository, sessions ports.SessionStore, log *zap.SugaredLogger) *ProfileService {
	return &ProfileService{
		profiles: profiles,
		sessions: sessions,
		log:      log,
		now:      time.Now,
	}
}

// Me returns the caller's profile, provisioning it when the subject has none yet.
func (s *ProfileService) Me(ctx context.Context, session *domain.Session) (*domain.Profile, error) {
	if !session.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}

	p, err := s.profiles.FindByID(ctx, session.Identity.ID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.log.Errorw("profile lookup failed", "subject", session.Identity.ID, "error", err)
		return nil, asFetchError("find profile", err)
	}

	created, _, err := s.profiles.CreateIfAbsent(ctx, domain.NewProfile(session.Identity, domain.RoleCitizen, s.now().UTC()))
	if err != nil {
		s.log.Errorw("profile provisioning failed", "subject", session.Identity.ID, "error", err)
		return nil, asWriteError("provision profile", err)
	}
	return &created, nil
}

func (s *ProfileService) ListUsers(ctx context.Context, role domain.Role) ([]domain.Profile, error) {
	if role != "" && !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, role)
	}
	users, err := s.profiles.List(ctx, role)
	if err != nil {
		s.log.Errorw("profile list failed", "role", role, "error", err)
		return nil, asFetchError("list profiles", err)
	}
	if users == nil {
		users = []domain.Profile{}
	}
	return users, nil
}

// UpdateUser is the privileged write for role and assigned area. Only cleaners carry an area; moving a
// subject out of the cleaner role clears it. The subject's cached role is dropped after the write.
func (s *ProfileService) UpdateUser(
	ctx context.Context,
	actor *domain.Session,
	id string,
	upd domain.ProfileUpdate,
) (*domain.Profile, error) {
	if !actor.Authenticated() {
		return nil, domain.ErrUnauthenticated
	}
	if actor.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: only admins manage users", domain.ErrForbidden)
	}
	if upd.Role == nil && upd.AssignedArea == nil {
		return nil, fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}
	if upd.Role != nil && !upd.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrValidation, *upd.Role)
	}

	current, err := s.profiles.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, asFetchError("find profile", err)
	}

	role := current.Role
	if upd.Role != nil {
		role = *upd.Role
	}
	if upd.AssignedArea != nil {
		area := strings.TrimSpace(*upd.AssignedArea)
		if area != "" && role != domain.RoleCleaner {
			return nil, fmt.Errorf("%w: only cleaners have an assigned area", domain.ErrValidation)
		}
		upd.AssignedArea = &area
	} else if role != domain.RoleCleaner && current.AssignedArea != "" {
		cleared := ""
		upd.AssignedArea = &cleared
	}

	updated, err := s.profiles.Update(ctx, id, upd, s.now().UTC())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		s.log.Errorw("profile update failed", "subject", id, "error", err)
		return nil, asWriteError("update profile", err)
	}

	if err := s.sessions.ClearRole(ctx, id); err != nil {
		s.log.Warnw("role cache invalidation failed", "subject", id, "error", err)
	}
	s.log.Infow("profile updated", "subject", id, "actor", actor.Identity.ID, "role", updated.Role)
	return updated, nil
}
