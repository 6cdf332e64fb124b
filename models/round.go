package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Round statuses. Transitions are monotonic: IDLE -> ACTIVE -> COMPLETE.
const (
	RoundStatusIdle     = "IDLE"
	RoundStatusActive   = "ACTIVE"
	RoundStatusComplete = "COMPLETE"
)

type Round struct {
	ID             string         `json:"id" gorm:"primaryKey"`
	SessionID      string         `json:"session_id" gorm:"not null;index"`
	QuestionID     string         `json:"question_id" gorm:"not null"`
	Index          int            `json:"index" gorm:"not null"`
	IsChampionship bool           `json:"is_championship" gorm:"not null;default:false"`
	Status         string         `json:"status" gorm:"not null;default:'IDLE'"`
	EndsAt         *time.Time     `json:"ends_at"` // set on activation, cleared on completion
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Question Question `json:"question,omitempty"`
}

func (r *Round) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
