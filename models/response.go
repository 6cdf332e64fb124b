package models

import "time"

// Response records one participant's pick for one round. At most one per
// participant per round; resubmission while the round is ACTIVE overwrites.
type Response struct {
	RoundID        string    `json:"round_id" gorm:"primaryKey"`
	ParticipantID  string    `json:"participant_id" gorm:"primaryKey"`
	SelectedOption string    `json:"selected_option" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
