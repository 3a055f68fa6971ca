package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// SupportTicket records a free-text request left in the support flow
type SupportTicket struct {
	gorm.Model
	TicketID    string     `gorm:"uniqueIndex;not null" json:"ticket_id"`
	SessionID   string     `gorm:"size:36;index;not null" json:"session_id"`
	UserPhone   string     `gorm:"size:32;index;not null" json:"user_phone"`
	IssueType   string     `json:"issue_type"`
	Description string     `gorm:"type:text" json:"description"`
	Status      string     `gorm:"default:'open'" json:"status"` // open, in_progress, resolved
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

const (
	IssueTypeApplication = "application"
	IssueTypeTechnical   = "technical"
	IssueTypeGeneral     = "general"
)

const TicketStatusOpen = "open"

// BeforeCreate assigns a ticket id and default issue type
func (st *SupportTicket) BeforeCreate(tx *gorm.DB) error {
	if st.TicketID == "" {
		st.TicketID = NewTicketID(time.Now())
	}
	if st.IssueType == "" {
		st.IssueType = IssueTypeGeneral
	}
	if st.Status == "" {
		st.Status = TicketStatusOpen
	}
	return nil
}

// NewTicketID formats a ticket id from a timestamp
func NewTicketID(at time.Time) string {
	return fmt.Sprintf("TK%d", at.UnixNano())
}
