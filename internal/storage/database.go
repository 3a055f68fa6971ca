package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/Ananth-NQI/intake-backend/internal/models"
)

// pgErrUniqueViolation is the Postgres unique_violation code (class 23)
const pgErrUniqueViolation = "23505"

// DatabaseStore persists sessions, transcripts and tickets through gorm
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewDatabaseStore wraps an open gorm connection
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db, now: time.Now}
}

// AutoMigrate creates or updates every table the store uses
func (d *DatabaseStore) AutoMigrate() error {
	return d.db.AutoMigrate(&models.Session{}, &models.Message{}, &models.SupportTicket{})
}

// Session operations

func (d *DatabaseStore) GetActive(ctx context.Context, userPhone string) (*models.Session, error) {
	var s models.Session
	err := d.db.WithContext(ctx).
		Where("user_phone = ? AND status = ?", userPhone, models.StatusActive).
		Order("created_at DESC").
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active session for %s: %w", userPhone, err)
	}
	return &s, nil
}

func (d *DatabaseStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return d.getSession(d.db.WithContext(ctx), id)
}

func (d *DatabaseStore) getSession(tx *gorm.DB, id string) (*models.Session, error) {
	var s models.Session
	err := tx.Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return &s, nil
}

func (d *DatabaseStore) CreateSession(ctx context.Context, userPhone string, flow models.FlowType) (*models.Session, error) {
	if !flow.Valid() {
		return nil, fmt.Errorf("cannot create session: unknown flow %q", flow)
	}

	existing, err := d.GetActive(ctx, userPhone)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNoActiveSession) {
		return nil, err
	}

	s := models.NewSession(userPhone, flow, d.now())
	if err := d.db.WithContext(ctx).Create(s).Error; err != nil {
		// Partial unique index on active sessions: a concurrent create won, use its row.
		if isUniqueViolation(err) {
			return d.GetActive(ctx, userPhone)
		}
		return nil, fmt.Errorf("failed to create session for %s: %w", userPhone, err)
	}
	return s, nil
}

func (d *DatabaseStore) SwitchFlow(ctx context.Context, id string, expectedVersion int64, flow models.FlowType) (*models.Session, error) {
	if !flow.Valid() {
		return nil, fmt.Errorf("cannot switch session %s: unknown flow %q", id, flow)
	}
	return d.mutate(ctx, id, expectedVersion, func(s *models.Session) (map[string]any, error) {
		if !s.IsActive() {
			return nil, ErrSessionNotActive
		}
		if s.FlowType == flow {
			return nil, nil
		}
		updates := map[string]any{
			"flow_type":       flow,
			"current_step":    0,
			"operator_active": false,
		}
		if flow == models.FlowEightQuestion {
			raw, err := models.EncodeAnswers(models.Answers{})
			if err != nil {
				return nil, err
			}
			updates["answers_json"] = raw
		}
		return updates, nil
	})
}

func (d *DatabaseStore) AdvanceStep(ctx context.Context, id string, expectedVersion int64) (*models.Session, error) {
	return d.mutate(ctx, id, expectedVersion, func(s *models.Session) (map[string]any, error) {
		if !s.IsActive() {
			return nil, ErrSessionNotActive
		}
		return map[string]any{"current_step": s.CurrentStep + 1}, nil
	})
}

func (d *DatabaseStore) RecordAnswer(ctx context.Context, id string, expectedVersion int64, questionID string, answer models.Answer) (*models.Session, error) {
	return d.mutate(ctx, id, expectedVersion, func(s *models.Session) (map[string]any, error) {
		if !s.IsActive() {
			return nil, ErrSessionNotActive
		}
		answers := s.Answers.Clone()
		answers[questionID] = answer.Clone()
		raw, err := models.EncodeAnswers(answers)
		if err != nil {
			return nil, err
		}
		return map[string]any{"answers_json": raw}, nil
	})
}

func (d *DatabaseStore) MarkCompleted(ctx context.Context, id string, expectedVersion int64) (*models.Session, error) {
	return d.mutate(ctx, id, expectedVersion, func(s *models.Session) (map[string]any, error) {
		next, err := models.NextStatus(s.Status, models.EventComplete)
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": next}, nil
	})
}

func (d *DatabaseStore) Close(ctx context.Context, id string) (*models.Session, error) {
	return d.mutate(ctx, id, -1, func(s *models.Session) (map[string]any, error) {
		next, err := models.NextStatus(s.Status, models.EventClose)
		if err != nil {
			return nil, err
		}
		return map[string]any{"status": next}, nil
	})
}

func (d *DatabaseStore) SetOperatorActive(ctx context.Context, id string, active bool) (*models.Session, error) {
	return d.mutate(ctx, id, -1, func(s *models.Session) (map[string]any, error) {
		if !s.IsActive() {
			return nil, ErrSessionNotActive
		}
		return map[string]any{"operator_active": active}, nil
	})
}

func (d *DatabaseStore) TouchInbound(ctx context.Context, id string, at time.Time) error {
	res := d.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ?", id).
		UpdateColumn("last_inbound_at", at)
	if res.Error != nil {
		return fmt.Errorf("failed to touch session %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

func (d *DatabaseStore) ListIdle(ctx context.Context, before time.Time) ([]*models.Session, error) {
	var sessions []*models.Session
	err := d.db.WithContext(ctx).
		Where("status = ? AND last_inbound_at < ?", models.StatusActive, before).
		Order("created_at ASC").
		Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list idle sessions: %w", err)
	}
	return sessions, nil
}

func (d *DatabaseStore) ListSessions(ctx context.Context, filter SessionFilter) ([]*models.Session, error) {
	q := d.db.WithContext(ctx).Model(&models.Session{})
	if filter.UserPhone != "" {
		q = q.Where("user_phone = ?", filter.UserPhone)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var sessions []*models.Session
	if err := q.Order("created_at ASC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// mutate loads the session, asks fn for the column updates and applies them with a
// compare-and-swap on version. A nil update map means nothing changed.
func (d *DatabaseStore) mutate(ctx context.Context, id string, expectedVersion int64, fn func(*models.Session) (map[string]any, error)) (*models.Session, error) {
	tx := d.db.WithContext(ctx)

	current, err := d.getSession(tx, id)
	if err != nil {
		return nil, err
	}
	if expectedVersion >= 0 && current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: session %s at version %d, expected %d", ErrStaleVersion, id, current.Version, expectedVersion)
	}

	updates, err := fn(current)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", id, err)
	}
	if updates == nil {
		return current, nil
	}

	updates["version"] = current.Version + 1
	updates["updated_at"] = d.now()

	res := tx.Model(&models.Session{}).
		Where("id = ? AND version = ?", id, current.Version).
		Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update session %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: session %s changed concurrently", ErrStaleVersion, id)
	}

	return d.getSession(tx, id)
}

// Message operations

func (d *DatabaseStore) Append(ctx context.Context, msg *models.Message) error {
	if msg.ChannelMessageID != nil {
		seen, err := d.HasChannelMessage(ctx, *msg.ChannelMessageID)
		if err != nil {
			return err
		}
		if seen {
			return fmt.Errorf("%w: %s", ErrDuplicateMessage, *msg.ChannelMessageID)
		}
	}
	// The unique index still catches two deliveries racing past the check above.
	if err := d.db.WithContext(ctx).Create(msg).Error; err != nil {
		if isUniqueViolation(err) && msg.ChannelMessageID != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateMessage, *msg.ChannelMessageID)
		}
		return fmt.Errorf("failed to append message: %w", err)
	}
	return nil
}

func (d *DatabaseStore) HasChannelMessage(ctx context.Context, channelMessageID string) (bool, error) {
	var count int64
	err := d.db.WithContext(ctx).Model(&models.Message{}).
		Where("channel_message_id = ?", channelMessageID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to look up channel message %s: %w", channelMessageID, err)
	}
	return count > 0, nil
}

func (d *DatabaseStore) ListMessages(ctx context.Context, sessionID string) ([]*models.Message, error) {
	var messages []*models.Message
	err := d.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for session %s: %w", sessionID, err)
	}
	return messages, nil
}

// Support operations

func (d *DatabaseStore) CreateSupportTicket(ctx context.Context, ticket *models.SupportTicket) (*models.SupportTicket, error) {
	if err := d.db.WithContext(ctx).Create(ticket).Error; err != nil {
		return nil, fmt.Errorf("failed to create support ticket: %w", err)
	}
	return ticket, nil
}

func (d *DatabaseStore) GetSupportTicketsByUser(ctx context.Context, userPhone string) ([]*models.SupportTicket, error) {
	var tickets []*models.SupportTicket
	err := d.db.WithContext(ctx).
		Where("user_phone = ?", userPhone).
		Order("created_at ASC").
		Find(&tickets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets for %s: %w", userPhone, err)
	}
	return tickets, nil
}

// isUniqueViolation recognises duplicate-key errors from Postgres and from drivers that
// translate them into gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
