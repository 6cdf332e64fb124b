package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"herdmind/models"
)

// SessionService is the public facade over the session aggregate. Every
// mutating operation runs under the session's lock inside one transaction,
// then publishes a fresh snapshot to the cache and the broadcast hub.
type SessionService struct {
	db        *gorm.DB
	redis     *redis.Client
	hub       *Hub
	scheduler *RoundScheduler
	clock     clockwork.Clock
	locks     *sessionLocks
}

func NewSessionService(db *gorm.DB, redisClient *redis.Client, hub *Hub, scheduler *RoundScheduler, clock clockwork.Clock) *SessionService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &SessionService{
		db:        db,
		redis:     redisClient,
		hub:       hub,
		scheduler: scheduler,
		clock:     clock,
		locks:     newSessionLocks(),
	}
}

type CreateSessionRequest struct {
	CreatorName       string   `json:"creator_name" binding:"required"`
	InviteMode        string   `json:"invite_mode" binding:"required,oneof=LOCKED OPEN"`
	TimerSeconds      int      `json:"timer_seconds" binding:"required,min=20,max=90"`
	GeneralRoundCount int      `json:"general_round_count" binding:"required,min=1,max=5"`
	FinalistCount     int      `json:"finalist_count" binding:"required,min=2,max=6"`
	PrizeAmount       int      `json:"prize_amount" binding:"min=0"`
	QuestionIDs       []string `json:"question_ids" binding:"required,min=2"`
}

type CreateSessionResult struct {
	SessionID     string `json:"session_id"`
	Code          string `json:"code"`
	ParticipantID string `json:"participant_id"`
}

type JoinSessionRequest struct {
	Username               string  `json:"username" binding:"required"`
	InviteID               *string `json:"invite_id"`
	InvitedByParticipantID *string `json:"invited_by_participant_id"`
}

type InvitationRequest struct {
	Contact              string `json:"contact" binding:"required"`
	InviterParticipantID string `json:"inviter_participant_id" binding:"required"`
}

type ResponseRequest struct {
	ParticipantID  string `json:"participant_id" binding:"required"`
	SelectedOption string `json:"selected_option" binding:"required"`
}

// CreateSession builds the whole session aggregate up front: one round per
// selected question in the given order, the last flagged championship, plus
// the creator participant.
func (s *SessionService) CreateSession(req *CreateSessionRequest) (*CreateSessionResult, error) {
	creatorName := strings.TrimSpace(req.CreatorName)
	if creatorName == "" {
		creatorName = "Creator"
	}

	questions, err := questionsByIDs(s.db, req.QuestionIDs)
	if err != nil {
		return nil, err
	}
	// One round per general round plus the championship round.
	roundCount := req.GeneralRoundCount + 1
	if len(questions) < roundCount {
		return nil, ErrInsufficientQuestions
	}
	questions = questions[:roundCount]

	code, err := uniqueJoinCode(s.db)
	if err != nil {
		return nil, err
	}

	session := models.Session{
		Code:              code,
		Status:            models.SessionStatusLobby,
		InviteMode:        req.InviteMode,
		TimerSeconds:      req.TimerSeconds,
		GeneralRoundCount: req.GeneralRoundCount,
		FinalistCount:     req.FinalistCount,
		PrizeAmount:       req.PrizeAmount,
	}
	var creator models.Participant

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&session).Error; err != nil {
			return err
		}
		for i, question := range questions {
			round := models.Round{
				SessionID:      session.ID,
				QuestionID:     question.ID,
				Index:          i,
				IsChampionship: i == len(questions)-1,
				Status:         models.RoundStatusIdle,
			}
			if err := tx.Create(&round).Error; err != nil {
				return err
			}
		}
		creator = models.Participant{
			SessionID: session.ID,
			Name:      creatorName,
			Status:    models.ParticipantStatusActive,
			IsCreator: true,
		}
		return tx.Create(&creator).Error
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("session_id", session.ID).Str("code", session.Code).
		Int("rounds", len(questions)).Msg("session created")

	s.publishState(session.ID)

	return &CreateSessionResult{
		SessionID:     session.ID,
		Code:          session.Code,
		ParticipantID: creator.ID,
	}, nil
}

// FetchSession resolves a session by id or join code and returns its
// snapshot, read through the cache.
func (s *SessionService) FetchSession(identifier string) (*SessionSnapshot, error) {
	var session models.Session
	err := s.db.Where("id = ? OR code = ?", identifier, strings.ToUpper(identifier)).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Snapshot(session.ID)
}

// Snapshot returns the current session snapshot, preferring the cache and
// rebuilding on a miss.
func (s *SessionService) Snapshot(sessionID string) (*SessionSnapshot, error) {
	if cached := s.cachedSnapshot(sessionID); cached != nil {
		return cached, nil
	}
	snapshot, err := buildSnapshot(s.db, sessionID)
	if err != nil {
		return nil, err
	}
	s.storeSnapshot(snapshot)
	return snapshot, nil
}

// StartSession moves the lobby into play by activating the first round.
func (s *SessionService) StartSession(sessionID string) (*SessionSnapshot, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	var activated *models.Round
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var session models.Session
		err := tx.Where("id = ?", sessionID).First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		if session.Status == models.SessionStatusComplete {
			return ErrSessionAlreadyComplete
		}

		var first models.Round
		err = tx.Where("session_id = ?", sessionID).Order("\"index\" ASC").First(&first).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoRoundsConfigured
		}
		if err != nil {
			return err
		}

		session.Status = models.SessionStatusRunning
		if err := tx.Model(&models.Session{}).Where("id = ?", sessionID).
			Update("status", models.SessionStatusRunning).Error; err != nil {
			return err
		}
		if err := activateRound(tx, &session, &first, s.clock.Now()); err != nil {
			return err
		}
		activated = &first
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.scheduleDeadline(sessionID, activated)
	log.Info().Str("session_id", sessionID).Str("round_id", activated.ID).Msg("session started")

	return s.publishState(sessionID)
}

// JoinSession adds a participant. LOCKED sessions require either an invite
// id or an inviting participant; an accepted invite is linked to the new
// participant.
func (s *SessionService) JoinSession(sessionID string, req *JoinSessionRequest) (string, error) {
	name := strings.TrimSpace(req.Username)
	if name == "" {
		name = "Guest"
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	var participant models.Participant
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var session models.Session
		err := tx.Where("id = ?", sessionID).First(&session).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSessionNotFound
		}
		if err != nil {
			return err
		}
		if session.Status == models.SessionStatusComplete {
			return ErrSessionAlreadyComplete
		}
		if session.InviteMode == models.InviteModeLocked && req.InviteID == nil && req.InvitedByParticipantID == nil {
			return ErrInviteRequired
		}

		if req.InvitedByParticipantID != nil {
			var inviter models.Participant
			err := tx.Where("id = ? AND session_id = ?", *req.InvitedByParticipantID, sessionID).
				First(&inviter).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInviterNotFound
			}
			if err != nil {
				return err
			}
		}

		participant = models.Participant{
			SessionID:   sessionID,
			Name:        name,
			Status:      models.ParticipantStatusActive,
			InvitedByID: req.InvitedByParticipantID,
		}
		if err := tx.Create(&participant).Error; err != nil {
			return err
		}

		if req.InviteID != nil {
			var invitation models.Invitation
			err := tx.Where("id = ? AND session_id = ?", *req.InviteID, sessionID).
				First(&invitation).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvitationNotFound
			}
			if err != nil {
				return err
			}
			if err := tx.Model(&models.Invitation{}).Where("id = ?", invitation.ID).
				Updates(map[string]interface{}{
					"status":                 models.InviteStatusAccepted,
					"invitee_participant_id": participant.ID,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	log.Info().Str("session_id", sessionID).Str("participant_id", participant.ID).
		Str("name", name).Msg("participant joined")

	s.publishState(sessionID)
	return participant.ID, nil
}

// CreateInvitation records a pending invite from a participant of the
// session. Delivery of the invite is someone else's job.
func (s *SessionService) CreateInvitation(sessionID string, req *InvitationRequest) (*models.Invitation, error) {
	contact := strings.TrimSpace(req.Contact)
	if contact == "" {
		return nil, ErrContactRequired
	}

	unlock := s.locks.Lock(sessionID)
	defer unlock()

	var invitation models.Invitation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var inviter models.Participant
		err := tx.Where("id = ? AND session_id = ?", req.InviterParticipantID, sessionID).
			First(&inviter).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInviterNotFound
		}
		if err != nil {
			return err
		}

		invitation = models.Invitation{
			SessionID: sessionID,
			InviterID: inviter.ID,
			Contact:   contact,
			Status:    models.InviteStatusPending,
		}
		return tx.Create(&invitation).Error
	})
	if err != nil {
		return nil, err
	}

	s.publishState(sessionID)
	return &invitation, nil
}

// RemindInvitation stamps the invite's last-reminder time.
func (s *SessionService) RemindInvitation(inviteID string) (*models.Invitation, error) {
	var invitation models.Invitation
	err := s.db.Where("id = ?", inviteID).First(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(invitation.SessionID)
	defer unlock()

	now := s.clock.Now()
	if err := s.db.Model(&models.Invitation{}).Where("id = ?", inviteID).
		Update("last_reminder_at", now).Error; err != nil {
		return nil, err
	}
	invitation.LastReminderAt = &now

	s.publishState(invitation.SessionID)
	return &invitation, nil
}

// RecordResponse upserts a participant's pick for an active round.
// Resubmission overwrites; anything after the round leaves ACTIVE is
// rejected, never silently recorded.
func (s *SessionService) RecordResponse(sessionID, roundID string, req *ResponseRequest) (*SessionSnapshot, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var round models.Round
		err := tx.Where("id = ? AND session_id = ?", roundID, sessionID).First(&round).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrRoundNotFound
		}
		if err != nil {
			return err
		}
		if round.Status != models.RoundStatusActive {
			return ErrRoundNotActive
		}

		var participant models.Participant
		err = tx.Where("id = ? AND session_id = ?", req.ParticipantID, sessionID).
			First(&participant).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParticipantNotFound
		}
		if err != nil {
			return err
		}

		response := models.Response{
			RoundID:        roundID,
			ParticipantID:  req.ParticipantID,
			SelectedOption: req.SelectedOption,
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "round_id"}, {Name: "participant_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"selected_option", "updated_at"}),
		}).Create(&response).Error
	})
	if err != nil {
		return nil, err
	}

	return s.publishState(sessionID)
}

// FinalizeRound tallies and completes the round, cancelling its deadline
// timer. Finalizing a round that is not ACTIVE is rejected, not ignored.
func (s *SessionService) FinalizeRound(sessionID, roundID string) (*SessionSnapshot, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	err := s.db.Transaction(func(tx *gorm.DB) error {
		return finalizeActiveRound(tx, sessionID, roundID)
	})
	if err != nil {
		return nil, err
	}

	if s.scheduler != nil {
		s.scheduler.Cancel(roundID)
	}
	log.Info().Str("session_id", sessionID).Str("round_id", roundID).Msg("round finalized")

	return s.publishState(sessionID)
}

// AdvanceSession activates the next idle round, promoting finalists on the
// way into the championship, or completes the session when nothing remains.
// The current round must be finalized first; advancing never auto-finalizes.
func (s *SessionService) AdvanceSession(sessionID string) (*SessionSnapshot, error) {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	var activated *models.Round
	err := s.db.Transaction(func(tx *gorm.DB) error {
		round, err := advanceSession(tx, sessionID, s.clock.Now())
		if err != nil {
			return err
		}
		activated = round
		return nil
	})
	if err != nil {
		return nil, err
	}

	if activated != nil {
		s.scheduleDeadline(sessionID, activated)
		log.Info().Str("session_id", sessionID).Str("round_id", activated.ID).
			Int("index", activated.Index).Msg("advanced to next round")
	} else {
		log.Info().Str("session_id", sessionID).Msg("session complete")
	}

	return s.publishState(sessionID)
}

func (s *SessionService) scheduleDeadline(sessionID string, round *models.Round) {
	if s.scheduler == nil || round == nil || round.EndsAt == nil {
		return
	}
	s.scheduler.Schedule(sessionID, round.ID, *round.EndsAt)
}

// publishState builds the post-mutation snapshot, refreshes the cache, and
// fans it out. Cache and broadcast failures are logged and dropped; they
// never fail the mutation that produced the snapshot.
func (s *SessionService) publishState(sessionID string) (*SessionSnapshot, error) {
	snapshot, err := buildSnapshot(s.db, sessionID)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to build snapshot")
		return nil, err
	}

	s.storeSnapshot(snapshot)

	if s.hub != nil {
		s.hub.BroadcastSession(sessionID, snapshot)
	}
	return snapshot, nil
}

const snapshotTTL = 2 * time.Hour

func (s *SessionService) storeSnapshot(snapshot *SessionSnapshot) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		log.Error().Err(err).Str("session_id", snapshot.ID).Msg("failed to marshal snapshot")
		return
	}
	if err := s.redis.Set(context.Background(), "session:"+snapshot.ID, data, snapshotTTL).Err(); err != nil {
		log.Warn().Err(err).Str("session_id", snapshot.ID).Msg("failed to cache snapshot")
	}
}

func (s *SessionService) cachedSnapshot(sessionID string) *SessionSnapshot {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(context.Background(), "session:"+sessionID).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("snapshot cache read failed")
		}
		return nil
	}
	var snapshot SessionSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to unmarshal cached snapshot")
		return nil
	}
	return &snapshot
}
