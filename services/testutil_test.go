package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"herdmind/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	// A pooled second connection would see a different :memory: database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Question{},
		&models.Session{},
		&models.Round{},
		&models.Participant{},
		&models.Response{},
		&models.Invitation{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedQuestions(t *testing.T, db *gorm.DB, n int) []string {
	t.Helper()

	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		q := models.Question{
			Text:    fmt.Sprintf("Question %d", i+1),
			OptionA: "A", OptionB: "B", OptionC: "C", OptionD: "D",
		}
		if err := db.Create(&q).Error; err != nil {
			t.Fatalf("seed question: %v", err)
		}
		ids = append(ids, q.ID)
	}
	return ids
}

type testEnv struct {
	db        *gorm.DB
	svc       *SessionService
	scheduler *RoundScheduler
	clock     *clockwork.FakeClock
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := openTestDB(t)
	clock := clockwork.NewFakeClock()
	scheduler := NewRoundScheduler(clock)
	svc := NewSessionService(db, nil, nil, scheduler, clock)
	scheduler.SetFinalizer(func(sessionID, roundID string) error {
		_, err := svc.FinalizeRound(sessionID, roundID)
		return err
	})
	return &testEnv{db: db, svc: svc, scheduler: scheduler, clock: clock}
}

// createSession builds a session with the given shape and returns the create
// result; generalRoundCount+1 questions are seeded and selected.
func (e *testEnv) createSession(t *testing.T, generalRounds, finalists int, inviteMode string) *CreateSessionResult {
	t.Helper()

	ids := seedQuestions(t, e.db, generalRounds+1)
	result, err := e.svc.CreateSession(&CreateSessionRequest{
		CreatorName:       "Host",
		InviteMode:        inviteMode,
		TimerSeconds:      30,
		GeneralRoundCount: generalRounds,
		FinalistCount:     finalists,
		QuestionIDs:       ids,
	})
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return result
}

func (e *testEnv) join(t *testing.T, sessionID, name string) string {
	t.Helper()

	id, err := e.svc.JoinSession(sessionID, &JoinSessionRequest{Username: name})
	if err != nil {
		t.Fatalf("join %s: %v", name, err)
	}
	return id
}

func (e *testEnv) rounds(t *testing.T, sessionID string) []models.Round {
	t.Helper()

	var rounds []models.Round
	if err := e.db.Where("session_id = ?", sessionID).Order("\"index\" ASC").Find(&rounds).Error; err != nil {
		t.Fatalf("load rounds: %v", err)
	}
	return rounds
}

func (e *testEnv) session(t *testing.T, sessionID string) models.Session {
	t.Helper()

	var session models.Session
	if err := e.db.Where("id = ?", sessionID).First(&session).Error; err != nil {
		t.Fatalf("load session: %v", err)
	}
	return session
}

func (e *testEnv) participant(t *testing.T, id string) models.Participant {
	t.Helper()

	var p models.Participant
	if err := e.db.Where("id = ?", id).First(&p).Error; err != nil {
		t.Fatalf("load participant: %v", err)
	}
	return p
}

func (e *testEnv) respond(t *testing.T, sessionID, roundID, participantID, option string) {
	t.Helper()

	if _, err := e.svc.RecordResponse(sessionID, roundID, &ResponseRequest{
		ParticipantID:  participantID,
		SelectedOption: option,
	}); err != nil {
		t.Fatalf("record response: %v", err)
	}
}

// waitFor polls until the condition holds or the deadline passes; used for
// assertions against the scheduler's asynchronous finalize.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return condition()
}
