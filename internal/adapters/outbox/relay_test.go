package outbox

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/test/mocks"
)

const payload = `{"id":"evt-1","type":"report.created","report_id":"r-1","actor_id":"u-1","occurred_at":"2026-05-04T09:30:00Z"}`

var (
	selectOne   = regexp.QuoteMeta(`SELECT id, event_type, payload`)
	markDoneSQL = regexp.QuoteMeta(`UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`)
)

func newTestRelay(t *testing.T) (*Relay, sqlmock.Sqlmock, *mocks.MockPublisher) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	pub := &mocks.MockPublisher{}
	return NewRelay(db, "postgres://unused", pub, zap.NewNop().Sugar()), mock, pub
}

func TestProcessEventByID_PublishesAndMarksProcessed(t *testing.T) {
	relay, mock, pub := newTestRelay(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectOne).WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "payload"}).
			AddRow("evt-1", "report.created", []byte(payload)))
	mock.ExpectExec(markDoneSQL).WithArgs("evt-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, relay.processEventByID(context.Background(), "evt-1"))
	require.Len(t, pub.Events, 1)
	assert.Equal(t, "r-1", pub.Events[0].ReportID)
	assert.Equal(t, domain.EventReportCreated, pub.Events[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessEventByID_AlreadyProcessed(t *testing.T) {
	relay, mock, pub := newTestRelay(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectOne).WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "payload"}))
	mock.ExpectRollback()

	require.NoError(t, relay.processEventByID(context.Background(), "evt-1"))
	assert.Empty(t, pub.Events)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessEventByID_PublishFailureKeepsEvent(t *testing.T) {
	relay, mock, pub := newTestRelay(t)
	pub.PublishError = errors.New("broker down")

	mock.ExpectBegin()
	mock.ExpectQuery(selectOne).WithArgs("evt-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "payload"}).
			AddRow("evt-1", "report.created", []byte(payload)))
	mock.ExpectRollback()

	assert.Error(t, relay.processEventByID(context.Background(), "evt-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessUnprocessedEvents_SkipsBadRows(t *testing.T) {
	relay, mock, pub := newTestRelay(t)

	mock.ExpectBegin()
	mock.ExpectQuery(selectOne).WithArgs(maxEventsPerBatch).
		WillReturnRows(sqlmock.NewRows([]string{"id", "event_type", "payload"}).
			AddRow("evt-1", "report.created", []byte(payload)).
			AddRow("evt-2", "report.created", []byte(`{`)).
			AddRow("evt-3", "profile.archived", []byte(`{}`)))
	mock.ExpectExec(markDoneSQL).WithArgs("evt-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(markDoneSQL).WithArgs("evt-2").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(markDoneSQL).WithArgs("evt-3").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, relay.processUnprocessedEvents(context.Background()))
	assert.Len(t, pub.Events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelayHealth(t *testing.T) {
	relay, _, _ := newTestRelay(t)
	assert.True(t, relay.IsHealthy())
	assert.True(t, relay.IsReady())

	relay.healthy.Store(false)
	assert.False(t, relay.IsReady())
}

func TestRelayWithoutBrokerIsNotReady(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	relay := NewRelay(db, "postgres://unused", nil, zap.NewNop().Sugar())
	assert.True(t, relay.IsHealthy())
	assert.False(t, relay.IsReady())

	err = relay.forward(context.Background(), record{ID: "evt-1", EventType: string(domain.EventReportCreated), Payload: []byte(`{}`)})
	assert.ErrorIs(t, err, errNoPublisher)
}
