package services

import (
	"encoding/json"
	"testing"
	"time"
)

func newHubClient(h *Hub, sessionID string, buffer int) *Client {
	return &Client{
		hub:       h,
		id:        sessionID + "-client",
		send:      make(chan []byte, buffer),
		sessionID: sessionID,
	}
}

func TestBroadcastSessionTargetsSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	subscriber := newHubClient(hub, "s1", 4)
	bystander := newHubClient(hub, "s2", 4)
	hub.register <- subscriber
	hub.register <- bystander

	if !waitFor(t, time.Second, func() bool { return hub.SubscriberCount("s1") == 1 }) {
		t.Fatal("subscriber never registered")
	}

	snapshot := &SessionSnapshot{ID: "s1", Code: "ABCDEF"}
	hub.BroadcastSession("s1", snapshot)

	select {
	case data := <-subscriber.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if msg.Type != MessageSessionUpdate {
			t.Errorf("message type = %s, want %s", msg.Type, MessageSessionUpdate)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber never received the update")
	}

	select {
	case data := <-bystander.send:
		t.Fatalf("bystander received another session's update: %s", data)
	default:
	}
}

func TestBroadcastSessionDropsSlowSubscriber(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	slow := newHubClient(hub, "s1", 1)
	hub.register <- slow
	if !waitFor(t, time.Second, func() bool { return hub.SubscriberCount("s1") == 1 }) {
		t.Fatal("subscriber never registered")
	}

	snapshot := &SessionSnapshot{ID: "s1"}
	// First broadcast fills the buffer; the second finds it full and drops
	// the subscriber instead of blocking.
	hub.BroadcastSession("s1", snapshot)
	hub.BroadcastSession("s1", snapshot)

	if got := hub.SubscriberCount("s1"); got != 0 {
		t.Fatalf("subscriber count = %d, want 0 after drop", got)
	}

	// The drop leaves the send channel open; only the read pump's
	// unregister closes it.
	select {
	case _, ok := <-slow.send:
		if !ok {
			t.Fatal("send channel closed by the drop path")
		}
	default:
		t.Fatal("expected one buffered message to survive the drop")
	}

	hub.unregister <- slow
	if !waitFor(t, time.Second, func() bool {
		select {
		case _, ok := <-slow.send:
			return !ok
		default:
			return false
		}
	}) {
		t.Fatal("send channel not closed on unregister")
	}
}

func TestDroppedSubscriberMessagesIgnored(t *testing.T) {
	hub := NewHub()
	hub.SetSnapshotSource(func(sessionID string) (*SessionSnapshot, error) {
		return &SessionSnapshot{ID: sessionID}, nil
	})
	go hub.Run()

	slow := newHubClient(hub, "s1", 1)
	hub.register <- slow
	if !waitFor(t, time.Second, func() bool { return hub.SubscriberCount("s1") == 1 }) {
		t.Fatal("subscriber never registered")
	}

	snapshot := &SessionSnapshot{ID: "s1"}
	hub.BroadcastSession("s1", snapshot)
	hub.BroadcastSession("s1", snapshot)
	if got := hub.SubscriberCount("s1"); got != 0 {
		t.Fatalf("subscriber count = %d, want 0 after drop", got)
	}

	// The client's read pump may still deliver messages between the drop
	// and its unregister; they must be ignored, not answered or panicked on.
	slow.handleMessage(Message{Type: "ping"})
	slow.handleMessage(Message{Type: "request_state"})

	// Drain the one buffered message; no pong or state sync may follow it.
	<-slow.send
	select {
	case data := <-slow.send:
		t.Fatalf("dropped client received %s", data)
	default:
	}
}

func TestRegisterSendsStateSync(t *testing.T) {
	hub := NewHub()
	hub.SetSnapshotSource(func(sessionID string) (*SessionSnapshot, error) {
		return &SessionSnapshot{ID: sessionID, Status: "LOBBY"}, nil
	})
	go hub.Run()

	client := newHubClient(hub, "s1", 4)
	hub.register <- client

	select {
	case data := <-client.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal sync: %v", err)
		}
		if msg.Type != MessageSessionUpdate {
			t.Errorf("message type = %s, want %s", msg.Type, MessageSessionUpdate)
		}
	case <-time.After(time.Second):
		t.Fatal("no state sync on register")
	}
}
