package repository

import (
	"context"
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

// OutboxWriter records report events in outbox_events. The insert trigger notifies the relay,
// which forwards the event to the broker.
type OutboxWriter struct {
	db *sqlx.DB
}

var _ ports.ReportEventPublisher = (*OutboxWriter)(nil)

func NewOutboxWriter(db *sqlx.DB) *OutboxWriter {
	return &OutboxWriter{db: db}
}

func (w *OutboxWriter) PublishReportEvent(ctx context.Context, evt domain.ReportEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = w.db.ExecContext(ctx,
		`INSERT INTO outbox_events (id, event_type, payload, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO NOTHING`,
		evt.ID, string(evt.Type), payload, evt.OccurredAt,
	)
	return err
}
