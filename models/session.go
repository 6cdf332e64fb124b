package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session lifecycle statuses.
const (
	SessionStatusLobby        = "LOBBY"
	SessionStatusRunning      = "RUNNING"
	SessionStatusChampionship = "CHAMPIONSHIP"
	SessionStatusComplete     = "COMPLETE"
)

// Invite modes. LOCKED sessions require an invite to join.
const (
	InviteModeLocked = "LOCKED"
	InviteModeOpen   = "OPEN"
)

type Session struct {
	ID                string         `json:"id" gorm:"primaryKey"`
	Code              string         `json:"code" gorm:"uniqueIndex;not null"`
	Status            string         `json:"status" gorm:"not null;default:'LOBBY'"` // LOBBY, RUNNING, CHAMPIONSHIP, COMPLETE
	InviteMode        string         `json:"invite_mode" gorm:"not null;default:'OPEN'"`
	TimerSeconds      int            `json:"timer_seconds" gorm:"not null"`
	GeneralRoundCount int            `json:"general_round_count" gorm:"not null"`
	FinalistCount     int            `json:"finalist_count" gorm:"not null"`
	PrizeAmount       int            `json:"prize_amount" gorm:"not null;default:0"`
	CurrentRoundID    *string        `json:"current_round_id"` // non-nil iff a round is ACTIVE
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`

	// Relationships
	Rounds       []Round       `json:"rounds,omitempty" gorm:"foreignKey:SessionID"`
	Participants []Participant `json:"participants,omitempty" gorm:"foreignKey:SessionID"`
	Invitations  []Invitation  `json:"invitations,omitempty" gorm:"foreignKey:SessionID"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
