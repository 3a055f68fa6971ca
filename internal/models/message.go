package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Message is one append-only transcript record
type Message struct {
	ID               string    `json:"id" gorm:"primaryKey;size:36"`
	SessionID        string    `json:"session_id" gorm:"size:36;not null;index"`
	UserPhone        string    `json:"user_phone" gorm:"size:32;not null;index"`
	Direction        Direction `json:"direction" gorm:"size:16;not null"`
	Body             string    `json:"body" gorm:"type:text"`
	ChannelMessageID *string   `json:"channel_message_id,omitempty" gorm:"size:128;uniqueIndex"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewInboundMessage builds a transcript record for a message received from the user
func NewInboundMessage(sessionID, userPhone, body, channelMessageID string, at time.Time) *Message {
	m := &Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserPhone: userPhone,
		Direction: DirectionInbound,
		Body:      body,
		CreatedAt: at,
	}
	if channelMessageID != "" {
		id := channelMessageID
		m.ChannelMessageID = &id
	}
	return m
}

// NewOutboundMessage builds a transcript record for a reply sent to the user
func NewOutboundMessage(sessionID, userPhone, body string, at time.Time) *Message {
	return &Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserPhone: userPhone,
		Direction: DirectionOutbound,
		Body:      body,
		CreatedAt: at,
	}
}

// BeforeCreate fills the id when the caller didn't
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}

// InboundMessage is a channel-neutral message received from a webhook
type InboundMessage struct {
	From             string    `json:"from"`
	Type             string    `json:"type"`
	Body             string    `json:"body"`
	ChannelMessageID string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
}

// Routable reports whether the core should route this message
func (m InboundMessage) Routable() bool {
	return m.Type == "text" && m.From != "" && strings.TrimSpace(m.Body) != ""
}

// Lead is the payload handed to the completion notifier
type Lead struct {
	SessionID   string    `json:"session_id"`
	UserPhone   string    `json:"user_phone"`
	Answers     Answers   `json:"answers"`
	QualifiedAt time.Time `json:"qualified_at"`
}
