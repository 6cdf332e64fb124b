package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"herdmind/models"
)

// SessionSnapshot is the complete immutable view of one session that gets
// pushed to every subscriber after a successful mutation. It is built only
// after the mutation has been applied, never mid-transition.
type SessionSnapshot struct {
	ID                string                      `json:"id"`
	Code              string                      `json:"code"`
	Status            string                      `json:"status"`
	InviteMode        string                      `json:"invite_mode"`
	PrizeAmount       int                         `json:"prize_amount"`
	TimerSeconds      int                         `json:"timer_seconds"`
	GeneralRoundCount int                         `json:"general_round_count"`
	FinalistCount     int                         `json:"finalist_count"`
	CurrentRoundID    *string                     `json:"current_round_id"`
	CreatedAt         time.Time                   `json:"created_at"`
	Rounds            []RoundSnapshot             `json:"rounds"`
	Participants      []ParticipantSnapshot       `json:"participants"`
	Invitations       []InvitationSnapshot        `json:"invitations"`
	Responses         map[string]ResponseSnapshot `json:"responses"` // keyed roundID:participantID
}

type RoundSnapshot struct {
	ID             string          `json:"id"`
	Index          int             `json:"index"`
	IsChampionship bool            `json:"is_championship"`
	Status         string          `json:"status"`
	EndsAt         *time.Time      `json:"ends_at"`
	Question       models.Question `json:"question"`
}

type ParticipantSnapshot struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Status        string  `json:"status"`
	TotalPoints   int     `json:"total_points"`
	IsFinalist    bool    `json:"is_finalist"`
	IsCreator     bool    `json:"is_creator"`
	InvitedByID   *string `json:"invited_by_id"`
	InvitedByName *string `json:"invited_by_name"`
}

type InvitationSnapshot struct {
	ID             string     `json:"id"`
	Contact        string     `json:"contact"`
	Status         string     `json:"status"`
	InviterID      string     `json:"inviter_id"`
	InviterName    string     `json:"inviter_name"`
	LastReminderAt *time.Time `json:"last_reminder_at"`
}

type ResponseSnapshot struct {
	RoundID        string `json:"round_id"`
	ParticipantID  string `json:"participant_id"`
	SelectedOption string `json:"selected_option"`
}

func responseKey(roundID, participantID string) string {
	return fmt.Sprintf("%s:%s", roundID, participantID)
}

// buildSnapshot assembles the full session view. Callers hold the session
// lock, so the read set is consistent with the mutation that just applied.
func buildSnapshot(db *gorm.DB, sessionID string) (*SessionSnapshot, error) {
	var session models.Session
	err := db.Where("id = ?", sessionID).
		Preload("Rounds", func(db *gorm.DB) *gorm.DB {
			return db.Order("rounds.\"index\" ASC")
		}).
		Preload("Rounds.Question").
		Preload("Participants", func(db *gorm.DB) *gorm.DB {
			return db.Order("participants.created_at ASC")
		}).
		Preload("Invitations", func(db *gorm.DB) *gorm.DB {
			return db.Order("invitations.created_at ASC")
		}).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	roundIDs := make([]string, len(session.Rounds))
	for i, r := range session.Rounds {
		roundIDs[i] = r.ID
	}
	var responses []models.Response
	if len(roundIDs) > 0 {
		if err := db.Where("round_id IN ?", roundIDs).Find(&responses).Error; err != nil {
			return nil, err
		}
	}

	nameByID := make(map[string]string, len(session.Participants))
	for _, p := range session.Participants {
		nameByID[p.ID] = p.Name
	}

	snapshot := &SessionSnapshot{
		ID:                session.ID,
		Code:              session.Code,
		Status:            session.Status,
		InviteMode:        session.InviteMode,
		PrizeAmount:       session.PrizeAmount,
		TimerSeconds:      session.TimerSeconds,
		GeneralRoundCount: session.GeneralRoundCount,
		FinalistCount:     session.FinalistCount,
		CurrentRoundID:    session.CurrentRoundID,
		CreatedAt:         session.CreatedAt,
		Rounds:            make([]RoundSnapshot, 0, len(session.Rounds)),
		Participants:      make([]ParticipantSnapshot, 0, len(session.Participants)),
		Invitations:       make([]InvitationSnapshot, 0, len(session.Invitations)),
		Responses:         make(map[string]ResponseSnapshot, len(responses)),
	}

	for _, r := range session.Rounds {
		snapshot.Rounds = append(snapshot.Rounds, RoundSnapshot{
			ID:             r.ID,
			Index:          r.Index,
			IsChampionship: r.IsChampionship,
			Status:         r.Status,
			EndsAt:         r.EndsAt,
			Question:       r.Question,
		})
	}

	for _, p := range session.Participants {
		var invitedByName *string
		if p.InvitedByID != nil {
			if name, ok := nameByID[*p.InvitedByID]; ok {
				invitedByName = &name
			}
		}
		snapshot.Participants = append(snapshot.Participants, ParticipantSnapshot{
			ID:            p.ID,
			Name:          p.Name,
			Status:        p.Status,
			TotalPoints:   p.TotalPoints,
			IsFinalist:    p.IsFinalist,
			IsCreator:     p.IsCreator,
			InvitedByID:   p.InvitedByID,
			InvitedByName: invitedByName,
		})
	}

	for _, inv := range session.Invitations {
		snapshot.Invitations = append(snapshot.Invitations, InvitationSnapshot{
			ID:             inv.ID,
			Contact:        inv.Contact,
			Status:         inv.Status,
			InviterID:      inv.InviterID,
			InviterName:    nameByID[inv.InviterID],
			LastReminderAt: inv.LastReminderAt,
		})
	}

	for _, r := range responses {
		snapshot.Responses[responseKey(r.RoundID, r.ParticipantID)] = ResponseSnapshot{
			RoundID:        r.RoundID,
			ParticipantID:  r.ParticipantID,
			SelectedOption: r.SelectedOption,
		}
	}

	return snapshot, nil
}
