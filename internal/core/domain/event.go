package domain

import "time"

type ReportEventType string

const (
	EventReportCreated       ReportEventType = "report.created"
	EventReportStatusChanged ReportEventType = "report.status_changed"
	EventReportDeleted       ReportEventType = "report.deleted"
)

// ReportEvent is published after every successful mutation so that consumers re-read the store.
type ReportEvent struct {
	ID         string          `json:"id"`
	Type       ReportEventType `json:"type"`
	ReportID   string          `json:"report_id"`
	Status     ReportStatus    `json:"status,omitempty"`
	AssignedTo string          `json:"assigned_to,omitempty"`
	ActorID    string          `json:"actor_id"`
	OccurredAt time.Time       `json:"occurred_at"`
}
