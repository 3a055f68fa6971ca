package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Session is one user's conversation instance. A phone has at most one active session.
type Session struct {
	ID             string         `json:"id" gorm:"primaryKey;size:36"`
	UserPhone      string         `json:"user_phone" gorm:"size:32;not null;index;uniqueIndex:idx_sessions_active_phone,where:status = 'active'"`
	FlowType       FlowType       `json:"flow_type" gorm:"size:32;not null"`
	CurrentStep    int            `json:"current_step" gorm:"not null;default:0"`
	Status         SessionStatus  `json:"status" gorm:"size:16;not null;index"`
	AnswersJSON    datatypes.JSON `json:"-" gorm:"column:answers_json"`
	Answers        Answers        `json:"answers" gorm:"-"`
	OperatorActive bool           `json:"operator_active" gorm:"not null;default:false"`
	Version        int64          `json:"version" gorm:"not null;default:1"`
	LastInboundAt  time.Time      `json:"last_inbound_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewSession builds an active session for the given phone and flow
func NewSession(userPhone string, flow FlowType, now time.Time) *Session {
	return &Session{
		ID:            uuid.NewString(),
		UserPhone:     userPhone,
		FlowType:      flow,
		Status:        StatusActive,
		Answers:       Answers{},
		Version:       1,
		LastInboundAt: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// IsActive reports whether the session still accepts turns
func (s *Session) IsActive() bool {
	return s.Status == StatusActive
}

// Clone returns a copy that shares no mutable state with s
func (s *Session) Clone() *Session {
	c := *s
	c.Answers = s.Answers.Clone()
	if s.AnswersJSON != nil {
		c.AnswersJSON = append(datatypes.JSON(nil), s.AnswersJSON...)
	}
	return &c
}

// EncodeAnswers serialises Answers into the answers_json column value
func EncodeAnswers(answers Answers) (datatypes.JSON, error) {
	if answers == nil {
		answers = Answers{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// DecodeAnswers parses an answers_json column value
func DecodeAnswers(raw datatypes.JSON) (Answers, error) {
	answers := Answers{}
	if len(raw) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(raw, &answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}
	return answers, nil
}

// BeforeCreate fills the id and encodes answers before insert
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	raw, err := EncodeAnswers(s.Answers)
	if err != nil {
		return err
	}
	s.AnswersJSON = raw
	return nil
}

// AfterFind decodes answers after a read
func (s *Session) AfterFind(tx *gorm.DB) error {
	answers, err := DecodeAnswers(s.AnswersJSON)
	if err != nil {
		return err
	}
	s.Answers = answers
	return nil
}
