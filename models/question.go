package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Question struct {
	ID        string         `json:"id" gorm:"primaryKey"`
	Text      string         `json:"text" gorm:"not null"`
	Category  string         `json:"category"`
	OptionA   string         `json:"option_a" gorm:"not null"`
	OptionB   string         `json:"option_b" gorm:"not null"`
	OptionC   string         `json:"option_c" gorm:"not null"`
	OptionD   string         `json:"option_d" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

// Options returns the four answer options in display order.
func (q *Question) Options() []string {
	return []string{q.OptionA, q.OptionB, q.OptionC, q.OptionD}
}
