package services

import (
	"sync"
	"testing"
	"time"

	"herdmind/models"
)

func TestDeadlineFinalizesRound(t *testing.T) {
	env := newTestEnv(t)
	created := env.createSession(t, 1, 2, models.InviteModeOpen)
	p2 := env.join(t, created.SessionID, "Bea")

	if _, err := env.svc.StartSession(created.SessionID); err != nil {
		t.Fatalf("start: %v", err)
	}
	round := env.rounds(t, created.SessionID)[0]
	if round.EndsAt == nil {
		t.Fatal("active round missing deadline")
	}

	env.respond(t, created.SessionID, round.ID, created.ParticipantID, "A")
	env.respond(t, created.SessionID, round.ID, p2, "A")

	env.clock.Advance(31 * time.Second)

	if !waitFor(t, time.Second, func() bool {
		return env.rounds(t, created.SessionID)[0].Status == models.RoundStatusComplete
	}) {
		t.Fatal("round not finalized after deadline")
	}
	if got := env.participant(t, p2).TotalPoints; got != 1 {
		t.Errorf("points after deadline finalize = %d, want 1", got)
	}
}

func TestManualFinalizeCancelsDeadline(t *testing.T) {
	env := newTestEnv(t)
	created := env.createSession(t, 2, 2, models.InviteModeOpen)

	if _, err := env.svc.StartSession(created.SessionID); err != nil {
		t.Fatalf("start: %v", err)
	}
	rounds := env.rounds(t, created.SessionID)

	if _, err := env.svc.FinalizeRound(created.SessionID, rounds[0].ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := env.svc.AdvanceSession(created.SessionID); err != nil {
		t.Fatalf("advance: %v", err)
	}

	// The first round's timer is gone; advancing the clock past its original
	// deadline must not touch the now-active second round.
	env.clock.Advance(31 * time.Second)

	if !waitFor(t, time.Second, func() bool {
		return env.rounds(t, created.SessionID)[1].Status == models.RoundStatusComplete
	}) {
		t.Fatal("second round's own deadline never fired")
	}
	if got := env.session(t, created.SessionID).Status; got != models.SessionStatusRunning {
		t.Errorf("session status = %s, want RUNNING", got)
	}
}

func TestScheduleReplacesExistingTimer(t *testing.T) {
	env := newTestEnv(t)
	scheduler := env.scheduler

	var mu sync.Mutex
	var fired []string
	scheduler.SetFinalizer(func(sessionID, roundID string) error {
		mu.Lock()
		fired = append(fired, roundID)
		mu.Unlock()
		return nil
	})

	now := env.clock.Now()
	scheduler.Schedule("s1", "r1", now.Add(10*time.Second))
	scheduler.Schedule("s1", "r1", now.Add(30*time.Second))

	env.clock.Advance(15 * time.Second)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	early := len(fired)
	mu.Unlock()
	if early != 0 {
		t.Fatalf("replaced timer fired early: %v", fired)
	}

	env.clock.Advance(20 * time.Second)
	if !waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(fired) == 1 && fired[0] == "r1"
	}) {
		t.Fatalf("rescheduled timer did not fire once: %v", fired)
	}
}

func TestCancelStopsTimer(t *testing.T) {
	env := newTestEnv(t)
	scheduler := env.scheduler

	var mu sync.Mutex
	fired := 0
	scheduler.SetFinalizer(func(sessionID, roundID string) error {
		mu.Lock()
		fired++
		mu.Unlock()
		return nil
	})

	scheduler.Schedule("s1", "r1", env.clock.Now().Add(10*time.Second))
	scheduler.Cancel("r1")

	env.clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if fired != 0 {
		t.Fatalf("cancelled timer fired %d times", fired)
	}
}
