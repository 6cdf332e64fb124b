package services

import (
	"errors"
	"sort"
	"time"

	"gorm.io/gorm"

	"herdmind/models"
)

// The round engine is pure state-transition logic over one session's
// aggregate. Every function here runs inside the caller's transaction and
// under the caller's session lock; the engine never owns wall-clock
// scheduling, it only stamps deadlines for the scheduler to act on.

// activateRound flips the chronologically-next IDLE round to ACTIVE. The
// session must have no other ACTIVE round; the invariant is that
// CurrentRoundID is non-nil iff exactly one round is ACTIVE.
func activateRound(tx *gorm.DB, session *models.Session, round *models.Round, now time.Time) error {
	var activeCount int64
	if err := tx.Model(&models.Round{}).
		Where("session_id = ? AND status = ?", session.ID, models.RoundStatusActive).
		Count(&activeCount).Error; err != nil {
		return err
	}
	if activeCount > 0 {
		return ErrRoundAlreadyActive
	}
	if round.Status != models.RoundStatusIdle {
		return ErrRoundNotActive
	}

	// Only the lowest-index IDLE round may activate; a championship round
	// never starts before every general round is COMPLETE.
	var next models.Round
	if err := tx.Where("session_id = ? AND status = ?", session.ID, models.RoundStatusIdle).
		Order("\"index\" ASC").First(&next).Error; err != nil {
		return err
	}
	if next.ID != round.ID {
		return ErrRoundNotActive
	}

	endsAt := now.Add(time.Duration(session.TimerSeconds) * time.Second)
	round.Status = models.RoundStatusActive
	round.EndsAt = &endsAt
	if err := tx.Model(&models.Round{}).Where("id = ?", round.ID).
		Updates(map[string]interface{}{"status": models.RoundStatusActive, "ends_at": endsAt}).Error; err != nil {
		return err
	}

	session.CurrentRoundID = &round.ID
	return tx.Model(&models.Session{}).Where("id = ?", session.ID).
		Update("current_round_id", round.ID).Error
}

// finalizeActiveRound tallies the round, awards majority points to eligible
// respondents, and completes the round. Tallying counts every recorded
// response, but only eligible participants score: finalists in a
// championship round, ACTIVE participants otherwise.
func finalizeActiveRound(tx *gorm.DB, sessionID, roundID string) error {
	var round models.Round
	err := tx.Where("id = ? AND session_id = ?", roundID, sessionID).First(&round).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRoundNotFound
	}
	if err != nil {
		return err
	}
	switch round.Status {
	case models.RoundStatusComplete:
		return ErrRoundAlreadyComplete
	case models.RoundStatusIdle:
		return ErrRoundNotActive
	}

	var responses []models.Response
	if err := tx.Where("round_id = ?", round.ID).Find(&responses).Error; err != nil {
		return err
	}

	var participants []models.Participant
	if err := tx.Where("session_id = ?", sessionID).Find(&participants).Error; err != nil {
		return err
	}
	eligible := make(map[string]bool, len(participants))
	for _, p := range participants {
		if round.IsChampionship {
			eligible[p.ID] = p.IsFinalist
		} else {
			eligible[p.ID] = p.Status == models.ParticipantStatusActive
		}
	}

	counts := make(map[string]int, 4)
	for _, r := range responses {
		counts[r.SelectedOption]++
	}
	majority := majoritySet(counts)

	for _, r := range responses {
		if !eligible[r.ParticipantID] {
			continue
		}
		if _, won := majority[r.SelectedOption]; !won {
			continue
		}
		if err := tx.Model(&models.Participant{}).Where("id = ?", r.ParticipantID).
			Update("total_points", gorm.Expr("total_points + ?", 1)).Error; err != nil {
			return err
		}
	}

	if err := tx.Model(&models.Round{}).Where("id = ?", round.ID).
		Updates(map[string]interface{}{"status": models.RoundStatusComplete, "ends_at": nil}).Error; err != nil {
		return err
	}
	return tx.Model(&models.Session{}).Where("id = ?", sessionID).
		Update("current_round_id", nil).Error
}

// majoritySet returns every option tied for the highest response count.
// An empty response set yields no majority and no scoring.
func majoritySet(counts map[string]int) map[string]struct{} {
	top := 0
	for _, c := range counts {
		if c > top {
			top = c
		}
	}
	set := make(map[string]struct{})
	if top == 0 {
		return set
	}
	for option, c := range counts {
		if c == top {
			set[option] = struct{}{}
		}
	}
	return set
}

// advanceSession moves the session to its next round, promoting finalists
// the first time the championship round comes up, or completes the session
// when no IDLE rounds remain. The caller must have finalized any active
// round first; advancing never auto-finalizes.
//
// Returns the activated round, or nil when the session completed.
func advanceSession(tx *gorm.DB, sessionID string, now time.Time) (*models.Round, error) {
	var session models.Session
	err := tx.Where("id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusComplete {
		return nil, ErrSessionAlreadyComplete
	}

	var rounds []models.Round
	if err := tx.Where("session_id = ?", sessionID).Order("\"index\" ASC").Find(&rounds).Error; err != nil {
		return nil, err
	}
	for _, r := range rounds {
		if r.Status == models.RoundStatusActive {
			return nil, ErrRoundAlreadyActive
		}
	}

	var next *models.Round
	for i := range rounds {
		if rounds[i].Status == models.RoundStatusIdle {
			next = &rounds[i]
			break
		}
	}
	if next == nil {
		if err := tx.Model(&models.Session{}).Where("id = ?", sessionID).
			Updates(map[string]interface{}{"status": models.SessionStatusComplete, "current_round_id": nil}).Error; err != nil {
			return nil, err
		}
		return nil, nil
	}

	if next.IsChampionship && session.Status != models.SessionStatusChampionship {
		if err := promoteFinalists(tx, &session); err != nil {
			return nil, err
		}
		session.Status = models.SessionStatusChampionship
		if err := tx.Model(&models.Session{}).Where("id = ?", sessionID).
			Update("status", models.SessionStatusChampionship).Error; err != nil {
			return nil, err
		}
	} else if session.Status == models.SessionStatusLobby {
		session.Status = models.SessionStatusRunning
		if err := tx.Model(&models.Session{}).Where("id = ?", sessionID).
			Update("status", models.SessionStatusRunning).Error; err != nil {
			return nil, err
		}
	}

	if err := activateRound(tx, &session, next, now); err != nil {
		return nil, err
	}
	return next, nil
}

// promoteFinalists runs exactly once per session, at the advance that first
// reaches the championship round. Participants at or above the cutoff score
// become finalists; everyone else is demoted to VOTER. Ties at the cutoff
// admit more than FinalistCount participants so no one is cut on a tie.
func promoteFinalists(tx *gorm.DB, session *models.Session) error {
	var participants []models.Participant
	if err := tx.Where("session_id = ?", session.ID).Find(&participants).Error; err != nil {
		return err
	}
	finalists := selectFinalists(participants, session.FinalistCount)

	for _, p := range participants {
		if finalists[p.ID] {
			if err := tx.Model(&models.Participant{}).Where("id = ?", p.ID).
				Updates(map[string]interface{}{"is_finalist": true, "status": models.ParticipantStatusActive}).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Model(&models.Participant{}).Where("id = ?", p.ID).
				Updates(map[string]interface{}{"is_finalist": false, "status": models.ParticipantStatusVoter}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// selectFinalists returns the ids of every participant whose point total
// meets the cutoff score. Sort order is points descending with join order as
// the tiebreak, so the cutoff is reproducible across runs.
func selectFinalists(participants []models.Participant, finalistCount int) map[string]bool {
	if len(participants) == 0 {
		return map[string]bool{}
	}
	sorted := make([]models.Participant, len(participants))
	copy(sorted, participants)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TotalPoints != sorted[j].TotalPoints {
			return sorted[i].TotalPoints > sorted[j].TotalPoints
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	cutoffIndex := finalistCount - 1
	if cutoffIndex < 0 {
		cutoffIndex = 0
	}
	if cutoffIndex > len(sorted)-1 {
		cutoffIndex = len(sorted) - 1
	}
	cutoffScore := sorted[cutoffIndex].TotalPoints

	finalists := make(map[string]bool)
	for _, p := range sorted {
		if p.TotalPoints >= cutoffScore {
			finalists[p.ID] = true
		}
	}
	return finalists
}
