// Package chat is the real-time presence and chat channel: one broadcast
// domain, ephemeral sessions, a joined counter. Display names are free text
// supplied by the client and are never checked against the authenticated
// identity; the channel is deliberately decoupled from the user store and
// that is a known trust boundary gap.
package chat

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	EventJoined            = "joined"
	EventUserJoined        = "user-joined"
	EventUserLeft          = "user-left"
	EventChatMessage       = "chat-message"
	EventWallMessage       = "wall-message"
	EventTyping            = "typing"
	EventStopTyping        = "stop-typing"
	EventFriendRequestHint = "friend-request-hint"
	EventDisconnected      = "disconnected"

	eventJoin = "join"
)

// Event is both the inbound frame and the broadcast payload.
type Event struct {
	Name     string `json:"event"`
	Username string `json:"username,omitempty"`
	Sender   string `json:"sender,omitempty"`
	Text     string `json:"text,omitempty"`
	Message  string `json:"message,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// Session is one connection's ephemeral identity. name and joined are only
// touched while holding the hub lock.
type Session struct {
	ID     string
	hub    *Hub
	conn   *websocket.Conn
	send   chan Event
	name   string
	joined bool
}

// Hub is the connection registry. All session and counter mutation happens
// under mu; handlers for a single connection run one at a time but
// interleave freely across connections.
type Hub struct {
	mu       sync.Mutex
	sessions map[*Session]bool
	joined   int
}

func NewHub() *Hub {
	return &Hub{sessions: make(map[*Session]bool)}
}

// NewSession registers a fresh session for the given connection. conn may be
// nil when the transport is driven elsewhere.
func (h *Hub) NewSession(conn *websocket.Conn) *Session {
	s := &Session{
		ID:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan Event, 32),
	}
	h.mu.Lock()
	h.sessions[s] = true
	h.mu.Unlock()
	return s
}

// Count reports how many sessions have joined with a display name.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.joined
}

// Handle dispatches one inbound frame from a session.
func (h *Hub) Handle(s *Session, ev Event) {
	switch ev.Name {
	case eventJoin:
		h.Join(s, ev.Username)
	case EventChatMessage:
		h.Chat(s, ev.Text)
	case EventWallMessage:
		h.Wall(s, ev.Text)
	case EventTyping:
		h.Typing(s)
	case EventStopTyping:
		h.StopTyping(s)
	case EventFriendRequestHint:
		h.FriendRequestHint(s)
	}
}

// Join attaches a display name to the session, counts it exactly once and
// announces it. Repeat joins on the same session are ignored.
func (h *Hub) Join(s *Session, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.joined || !h.sessions[s] {
		return
	}
	s.name = name
	s.joined = true
	h.joined++
	h.reply(s, Event{Name: EventJoined, Count: h.joined})
	h.broadcastLocked(s, Event{Name: EventUserJoined, Username: name, Count: h.joined})
}

// Chat relays a message to every other session. Senders who never joined
// are dropped rather than broadcast with no name.
func (h *Hub) Chat(s *Session, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !s.joined {
		return
	}
	h.broadcastLocked(s, Event{Name: EventChatMessage, Sender: s.name, Text: text})
}

// Wall relays an anonymous wall message; no sender identity is attached and
// joining is not required.
func (h *Hub) Wall(s *Session, text string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(s, Event{Name: EventWallMessage, Text: text})
}

func (h *Hub) Typing(s *Session) {
	h.relayTyping(s, EventTyping)
}

func (h *Hub) StopTyping(s *Session) {
	h.relayTyping(s, EventStopTyping)
}

func (h *Hub) relayTyping(s *Session, name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !s.joined {
		return
	}
	h.broadcastLocked(s, Event{Name: name, Username: s.name})
}

// FriendRequestHint nudges everyone else with a generic prompt. It carries
// no target.
func (h *Hub) FriendRequestHint(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcastLocked(s, Event{Name: EventFriendRequestHint, Message: "You have received a contact request"})
}

// Unregister tears the session down, decrementing the counter at most once
// and announcing the departure if the session had joined.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.sessions[s] {
		return
	}
	// Best effort: the connection is usually already closing.
	h.reply(s, Event{Name: EventDisconnected})
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *Session) {
	if !h.sessions[s] {
		return
	}
	delete(h.sessions, s)
	close(s.send)
	if s.joined {
		s.joined = false
		h.joined--
		h.broadcastLocked(nil, Event{Name: EventUserLeft, Username: s.name, Count: h.joined})
	}
}

func (h *Hub) reply(s *Session, ev Event) {
	select {
	case s.send <- ev:
	default:
	}
}

// broadcastLocked fans out to every session except the originator. Sessions
// whose outbound queue is full are dropped.
func (h *Hub) broadcastLocked(except *Session, ev Event) {
	var dead []*Session
	for s := range h.sessions {
		if s == except {
			continue
		}
		select {
		case s.send <- ev:
		default:
			dead = append(dead, s)
		}
	}
	for _, s := range dead {
		h.removeLocked(s)
	}
}
