package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Invitation statuses.
const (
	InviteStatusPending  = "PENDING"
	InviteStatusAccepted = "ACCEPTED"
)

type Invitation struct {
	ID                   string         `json:"id" gorm:"primaryKey"`
	SessionID            string         `json:"session_id" gorm:"not null;index"`
	InviterID            string         `json:"inviter_id" gorm:"not null"`
	Contact              string         `json:"contact" gorm:"not null"`
	Status               string         `json:"status" gorm:"not null;default:'PENDING'"`
	InviteeParticipantID *string        `json:"invitee_participant_id"`
	LastReminderAt       *time.Time     `json:"last_reminder_at"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	DeletedAt            gorm.DeletedAt `json:"-" gorm:"index"`
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
