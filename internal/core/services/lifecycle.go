package services

import (
	"fmt"
	"time"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
)

// Transition decides whether actor may move current to status and returns the change to write.
//
// Admins may set any status and reassign freely. Cleaners accept pending reports (which assigns the
// report to them) and resolve reports assigned to them. Citizens have no status writes.
// A nil assignee keeps the current one where the target status allows an assignee and clears it otherwise.
func Transition(
	actor *domain.Session,
	current domain.Report,
	status domain.ReportStatus,
	assignee *string,
	now time.Time,
) (domain.StatusChange, error) {
	if !actor.Authenticated() {
		return domain.StatusChange{}, domain.ErrUnauthenticated
	}
	if !status.Valid() {
		return domain.StatusChange{}, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}

	change := domain.StatusChange{Status: status, UpdatedAt: now}
	if current.UpdatedAt.After(now) {
		change.UpdatedAt = current.UpdatedAt
	}

	self := actor.Identity.ID
	switch actor.Role {
	case domain.RoleAdmin:
		switch {
		case assignee != nil && *assignee != "" && !status.AllowsAssignee():
			return domain.StatusChange{}, fmt.Errorf("%w: %s reports cannot be assigned", domain.ErrInvalidTransition, status)
		case assignee != nil:
			change.AssignedTo = *assignee
		case status.AllowsAssignee():
			change.AssignedTo = current.AssignedTo
		}
		return change, nil

	case domain.RoleCleaner:
		if assignee != nil && *assignee != self {
			return domain.StatusChange{}, fmt.Errorf("%w: cleaners can only assign themselves", domain.ErrForbidden)
		}
		switch {
		case current.Status == domain.StatusPending && status == domain.StatusInProgress:
			change.AssignedTo = self
			return change, nil
		case current.Status == domain.StatusInProgress && status == domain.StatusResolved:
			if current.AssignedTo != self {
				return domain.StatusChange{}, fmt.Errorf("%w: report is assigned to another cleaner", domain.ErrForbidden)
			}
			change.AssignedTo = self
			return change, nil
		}
		return domain.StatusChange{}, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, current.Status, status)
	}

	return domain.StatusChange{}, fmt.Errorf("%w: role %q cannot change report status", domain.ErrForbidden, actor.Role)
}
