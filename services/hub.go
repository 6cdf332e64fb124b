package services

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Hub fans serialized session snapshots out to every subscriber of a session
// id. Delivery is fire-and-forget: a slow or dead subscriber is dropped, not
// waited on, and never blocks a state transition.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex

	// snapshot supplies the current session state for sync-on-subscribe.
	// Set after construction to break the cycle with the session service.
	snapshot func(sessionID string) (*SessionSnapshot, error)
}

type Client struct {
	hub       *Hub
	id        string
	socket    *websocket.Conn
	send      chan []byte
	sessionID string
}

type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// MessageSessionUpdate carries a full SessionSnapshot after every successful
// mutating operation.
const MessageSessionUpdate = "SESSION_UPDATE"

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// SetSnapshotSource wires the hub to the facade's snapshot reader.
func (h *Hub) SetSnapshotSource(fn func(sessionID string) (*SessionSnapshot, error)) {
	h.snapshot = fn
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			log.Info().Str("client_id", client.id).Str("session_id", client.sessionID).
				Int("total_clients", h.clientCount()).Msg("subscriber registered")
			h.sendStateSync(client)

		case client := <-h.unregister:
			h.mutex.Lock()
			delete(h.clients, client)
			close(client.send)
			h.mutex.Unlock()
			log.Info().Str("client_id", client.id).Str("session_id", client.sessionID).
				Int("total_clients", h.clientCount()).Msg("subscriber unregistered")
		}
	}
}

func (h *Hub) clientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// dropLocked removes a subscriber that cannot keep up. Only the socket is
// closed here; the read pump's deferred unregister owns the send channel, so
// a message arriving from a dropped client can never hit a closed channel.
// Caller holds h.mutex.
func (h *Hub) dropLocked(client *Client) {
	delete(h.clients, client)
	if client.socket != nil {
		client.socket.Close()
	}
}

// trySend delivers to the client only while it is still registered. Slow
// delivery is skipped, not dropped; the broadcast path decides drops.
func (h *Hub) trySend(client *Client, data []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if !h.clients[client] {
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

// BroadcastSession pushes a snapshot to every subscriber of the session.
// Subscribers whose send buffer is full are dropped on the spot.
func (h *Hub) BroadcastSession(sessionID string, snapshot *SessionSnapshot) {
	message := Message{
		Type:    MessageSessionUpdate,
		Payload: snapshot,
	}

	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("failed to marshal session update")
		return
	}

	h.mutex.Lock()
	sent := 0
	for client := range h.clients {
		if client.sessionID != sessionID {
			continue
		}
		select {
		case client.send <- data:
			sent++
		default:
			h.dropLocked(client)
			log.Warn().Str("client_id", client.id).Str("session_id", sessionID).
				Msg("dropped slow subscriber")
		}
	}
	h.mutex.Unlock()

	log.Debug().Str("session_id", sessionID).Int("subscribers", sent).Msg("session update broadcast")
}

// SubscriberCount reports how many clients are subscribed to a session.
func (h *Hub) SubscriberCount(sessionID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	count := 0
	for client := range h.clients {
		if client.sessionID == sessionID {
			count++
		}
	}
	return count
}

// sendStateSync pushes the current snapshot to a newly registered client so
// late joiners do not wait for the next mutation to see state.
func (h *Hub) sendStateSync(client *Client) {
	if h.snapshot == nil {
		return
	}
	snapshot, err := h.snapshot(client.sessionID)
	if err != nil {
		log.Warn().Err(err).Str("session_id", client.sessionID).Msg("state sync failed")
		return
	}

	message := Message{Type: MessageSessionUpdate, Payload: snapshot}
	data, err := json.Marshal(message)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal state sync")
		return
	}

	h.mutex.Lock()
	if h.clients[client] {
		select {
		case client.send <- data:
		default:
			h.dropLocked(client)
		}
	}
	h.mutex.Unlock()
}

// RegisterClient attaches a websocket connection as a subscriber of one
// session and starts its pumps.
func (h *Hub) RegisterClient(conn *websocket.Conn, sessionID string) *Client {
	client := &Client{
		hub:       h,
		id:        uuid.NewString(),
		socket:    conn,
		send:      make(chan []byte, 256),
		sessionID: sessionID,
	}

	h.register <- client

	go client.writePump()
	go client.readPump()

	return client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

func (c *Client) readPump() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.socket.Close()
	}()

	for {
		_, message, err := c.socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("client_id", c.id).Msg("websocket read error")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump() {
	defer c.socket.Close()

	for message := range c.send {
		w, err := c.socket.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(message)
		if err := w.Close(); err != nil {
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		data, _ := json.Marshal(Message{Type: "pong"})
		c.hub.trySend(c, data)

	case "request_state":
		c.hub.sendStateSync(c)
	}
}
