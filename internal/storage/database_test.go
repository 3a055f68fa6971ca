package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

func newTestDatabaseStore(t *testing.T) *DatabaseStore {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	store := NewDatabaseStore(db)
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	require.NoError(t, store.AutoMigrate())
	return store
}

func TestDatabaseSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := newTestDatabaseStore(t)

	s, err := store.CreateSession(ctx, "+15550001", models.FlowEightQuestion)
	require.NoError(t, err)

	again, err := store.CreateSession(ctx, "+15550001", models.FlowSupport)
	require.NoError(t, err)
	assert.Equal(t, s.ID, again.ID)

	s, err = store.RecordAnswer(ctx, s.ID, s.Version, "stage", models.SingleSelectAnswer("Idea"))
	require.NoError(t, err)
	s, err = store.AdvanceStep(ctx, s.ID, s.Version)
	require.NoError(t, err)
	assert.Equal(t, 1, s.CurrentStep)
	assert.EqualValues(t, 3, s.Version)

	active, err := store.GetActive(ctx, "+15550001")
	require.NoError(t, err)
	assert.Equal(t, "Idea", active.Answers["stage"].Text)

	_, err = store.AdvanceStep(ctx, s.ID, 2)
	assert.True(t, errors.Is(err, ErrStaleVersion))

	done, err := store.MarkCompleted(ctx, s.ID, s.Version)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, done.Status)

	_, err = store.GetActive(ctx, "+15550001")
	assert.True(t, errors.Is(err, ErrNoActiveSession))

	next, err := store.CreateSession(ctx, "+15550001", models.FlowSupport)
	require.NoError(t, err)
	assert.NotEqual(t, s.ID, next.ID)
}

func TestDatabaseSwitchFlowResetsQuestionnaire(t *testing.T) {
	ctx := context.Background()
	store := newTestDatabaseStore(t)

	s, err := store.CreateSession(ctx, "+15550001", models.FlowEightQuestion)
	require.NoError(t, err)
	s, err = store.RecordAnswer(ctx, s.ID, s.Version, "project_name", models.FreeTextAnswer("Atlas"))
	require.NoError(t, err)
	s, err = store.SwitchFlow(ctx, s.ID, s.Version, models.FlowHuman)
	require.NoError(t, err)
	s, err = store.SetOperatorActive(ctx, s.ID, true)
	require.NoError(t, err)
	assert.True(t, s.OperatorActive)

	s, err = store.SwitchFlow(ctx, s.ID, s.Version, models.FlowEightQuestion)
	require.NoError(t, err)
	assert.Equal(t, models.FlowEightQuestion, s.FlowType)
	assert.Equal(t, 0, s.CurrentStep)
	assert.Empty(t, s.Answers)
	assert.False(t, s.OperatorActive)
}

func TestDatabaseMessagesAndTickets(t *testing.T) {
	ctx := context.Background()
	store := newTestDatabaseStore(t)
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, models.NewInboundMessage("s1", "+15550001", "hello", "wamid.1", at)))
	require.NoError(t, store.Append(ctx, models.NewOutboundMessage("s1", "+15550001", "welcome", at.Add(time.Second))))
	require.NoError(t, store.Append(ctx, models.NewOutboundMessage("s1", "+15550001", "question", at.Add(2*time.Second))))

	err := store.Append(ctx, models.NewInboundMessage("s1", "+15550001", "hello", "wamid.1", at))
	assert.True(t, errors.Is(err, ErrDuplicateMessage))

	msgs, err := store.ListMessages(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "hello", msgs[0].Body)
	assert.Equal(t, "question", msgs[2].Body)

	ticket, err := store.CreateSupportTicket(ctx, &models.SupportTicket{
		SessionID:   "s1",
		UserPhone:   "+15550001",
		Description: "cannot log in",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ticket.TicketID)

	tickets, err := store.GetSupportTicketsByUser(ctx, "+15550001")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, "cannot log in", tickets[0].Description)
}

func TestDatabaseListIdleAndFilter(t *testing.T) {
	ctx := context.Background()
	store := newTestDatabaseStore(t)
	base := store.now()

	old, err := store.CreateSession(ctx, "+15550001", models.FlowEightQuestion)
	require.NoError(t, err)
	recent, err := store.CreateSession(ctx, "+15550002", models.FlowSupport)
	require.NoError(t, err)
	require.NoError(t, store.TouchInbound(ctx, recent.ID, base.Add(2*time.Hour)))

	idle, err := store.ListIdle(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, idle, 1)
	assert.Equal(t, old.ID, idle[0].ID)

	listed, err := store.ListSessions(ctx, SessionFilter{UserPhone: "+15550002"})
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, recent.ID, listed[0].ID)

	assert.True(t, errors.Is(store.TouchInbound(ctx, "missing", base), ErrSessionNotFound))
}
