package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/lib/pq"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/config"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

const (
	// PostgreSQL NOTIFY/LISTEN configuration
	listenerMinReconnectInterval = 10 * time.Second
	listenerMaxReconnectInterval = time.Minute
	outboxChannelName            = "outbox_channel"

	// Event processing timeouts
	eventProcessTimeout     = 30 * time.Second
	batchProcessTimeout     = 60 * time.Second
	periodicProcessInterval = 90 * time.Second

	healthCheckStaleThreshold = 5 * time.Minute

	maxEventsPerBatch = 100
)

var errNoPublisher = errors.New("outbox relay has no broker")

// Relay listens for PostgreSQL NOTIFY signals on the outbox_channel
// and forwards report events to the broker.
type Relay struct {
	db            *sql.DB
	publisher     ports.ReportEventPublisher
	listener      *pq.Listener
	dbURL         string
	dbCB          *gobreaker.CircuitBreaker
	log           *zap.SugaredLogger
	lastProcessed atomic.Int64
	healthy       atomic.Bool
}

func NewRelay(db *sql.DB, dbURL string, publisher ports.ReportEventPublisher, log *zap.SugaredLogger) *Relay {
	r := &Relay{
		db:        db,
		dbURL:     dbURL,
		publisher: publisher,
		dbCB:      config.NewCircuitBreaker("Relay-PostgreSQL", log),
		log:       log,
	}
	r.markProcessed()
	r.healthy.Store(true)
	return r
}

// IsHealthy reports whether the relay process is alive. An open breaker is degraded but
// recoverable, so it is only considered by IsReady.
func (r *Relay) IsHealthy() bool {
	return r.healthy.Load()
}

// IsReady returns true if the relay can process events (for readiness probes).
func (r *Relay) IsReady() bool {
	if r.publisher == nil {
		return false
	}
	if r.dbCB.State() == gobreaker.StateOpen {
		return false
	}
	if time.Since(time.Unix(0, r.lastProcessed.Load())) > healthCheckStaleThreshold {
		return false
	}
	return r.healthy.Load()
}

// Start begins listening for outbox notifications and processing events.
// This is a blocking call that runs until the context is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	reportProblem := func(ev pq.ListenerEventType, err error) {
		if err != nil {
			r.log.Warnw("outbox listener error", "event", ev, "error", err)
		}
	}

	r.listener = pq.NewListener(r.dbURL, listenerMinReconnectInterval, listenerMaxReconnectInterval, reportProblem)
	defer r.listener.Close()

	if err := r.listener.Listen(outboxChannelName); err != nil {
		return err
	}

	r.log.Infow("outbox relay listening", "channel", outboxChannelName)

	// Catch up on events written while the relay was down.
	if err := r.processUnprocessedEvents(ctx); err != nil {
		r.log.Errorw("error processing startup backlog", "error", err)
	}

	ticker := time.NewTicker(periodicProcessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("outbox relay shutting down")
			return ctx.Err()

		case notification := <-r.listener.Notify:
			if notification == nil {
				r.log.Warn("received nil notification, listener reconnecting")
				r.healthy.Store(false)
				continue
			}

			if err := r.processEventByID(ctx, notification.Extra); err != nil {
				r.log.Errorw("error processing event", "event_id", notification.Extra, "error", err)
			} else {
				r.markProcessed()
				r.healthy.Store(true)
			}

		case <-ticker.C:
			go r.listener.Ping()

			// Safety net for missed notifications.
			if err := r.processUnprocessedEvents(ctx); err != nil {
				r.log.Errorw("error in periodic processing", "error", err)
			} else {
				r.markProcessed()
			}
		}
	}
}

func (r *Relay) markProcessed() {
	r.lastProcessed.Store(time.Now().UnixNano())
}

// processEventByID processes a single event by its ID.
func (r *Relay) processEventByID(ctx context.Context, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, eventProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		var rec record
		err = tx.QueryRowContext(ctx, `
			SELECT id, event_type, payload
			FROM outbox_events
			WHERE id = $1 AND processed_at IS NULL
			FOR UPDATE SKIP LOCKED`, eventID).Scan(&rec.ID, &rec.EventType, &rec.Payload)
		if errors.Is(err, sql.ErrNoRows) {
			// Already handled by another relay or by the periodic sweep.
			return nil, nil
		}
		if err != nil {
			return nil, err
		}

		if err := r.forward(ctx, rec); err != nil {
			return nil, err
		}
		if err := markDone(ctx, tx, rec.ID); err != nil {
			return nil, err
		}
		return nil, tx.Commit()
	})
	return err
}

// processUnprocessedEvents processes all unprocessed events (catch-up/recovery).
func (r *Relay) processUnprocessedEvents(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, batchProcessTimeout)
	defer cancel()

	_, err := r.dbCB.Execute(func() (interface{}, error) {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer tx.Rollback()

		rows, err := tx.QueryContext(ctx, `
			SELECT id, event_type, payload
			FROM outbox_events
			WHERE processed_at IS NULL
			ORDER BY created_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, maxEventsPerBatch)
		if err != nil {
			return nil, err
		}

		var records []record
		for rows.Next() {
			var rec record
			if err := rows.Scan(&rec.ID, &rec.EventType, &rec.Payload); err != nil {
				rows.Close()
				return nil, err
			}
			records = append(records, rec)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}

		for _, rec := range records {
			if err := r.forward(ctx, rec); err != nil {
				r.log.Warnw("failed to publish event", "event_id", rec.ID, "error", err)
				continue
			}
			if err := markDone(ctx, tx, rec.ID); err != nil {
				return nil, err
			}
			r.log.Debugw("processed event", "event_id", rec.ID, "type", rec.EventType)
		}

		return nil, tx.Commit()
	})
	return err
}

type record struct {
	ID        string
	EventType string
	Payload   []byte
}

// forward publishes a report event. Rows that cannot be decoded, or that carry an event type
// this relay does not know, are dropped so they are not retried forever.
func (r *Relay) forward(ctx context.Context, rec record) error {
	if !knownEventType(rec.EventType) {
		r.log.Warnw("skipping outbox event with unknown type", "event_id", rec.ID, "type", rec.EventType)
		return nil
	}

	var evt domain.ReportEvent
	if err := json.Unmarshal(rec.Payload, &evt); err != nil {
		r.log.Warnw("invalid outbox payload", "event_id", rec.ID, "error", err)
		return nil
	}
	if r.publisher == nil {
		return errNoPublisher
	}
	return r.publisher.PublishReportEvent(ctx, evt)
}

func knownEventType(t string) bool {
	switch domain.ReportEventType(t) {
	case domain.EventReportCreated, domain.EventReportStatusChanged, domain.EventReportDeleted:
		return true
	}
	return false
}

func markDone(ctx context.Context, tx *sql.Tx, id string) error {
	_, err := tx.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	return err
}
