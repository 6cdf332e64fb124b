package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Participant statuses. Voters stay in the session but no longer score.
const (
	ParticipantStatusActive = "ACTIVE"
	ParticipantStatusVoter  = "VOTER"
)

type Participant struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	SessionID   string         `json:"session_id" gorm:"not null;index"`
	Name        string         `json:"name" gorm:"not null"`
	Status      string         `json:"status" gorm:"not null;default:'ACTIVE'"`
	TotalPoints int            `json:"total_points" gorm:"not null;default:0"`
	IsFinalist  bool           `json:"is_finalist" gorm:"not null;default:false"`
	IsCreator   bool           `json:"is_creator" gorm:"not null;default:false"`
	InvitedByID *string        `json:"invited_by_id"` // lookup edge only, never ownership
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

func (p *Participant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
