package handlers

import (
	"sync"

	"conference-backend/internal/utils"
)

// Peer is the send side of one signaling channel. The websocket connection
// implements it in production; tests substitute a recorder.
type Peer interface {
	SendJSON(v interface{}) error
}

// Member is one connected channel's room metadata.
type Member struct {
	UserID   string
	Username string
	Peer     Peer
}

// PresenceTracker is the live, in-memory map of who currently holds an open
// channel in which room. It is the source of truth for "live now"; the
// session ledger lags it and must never be used to answer that question.
// State is keyed room ID -> connection ID -> member, so one user with
// several tabs counts as a single participant.
type PresenceTracker struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Member
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		rooms: make(map[string]map[string]Member),
	}
}

// Join adds a connection to a room, creating the room entry on first join.
func (t *PresenceTracker) Join(room, connID string, m Member) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.rooms[room]; !ok {
		t.rooms[room] = make(map[string]Member)
	}
	t.rooms[room][connID] = m
}

// JoinAndSnapshot adds a connection to a room and returns the distinct
// users present before it, in one critical section: a concurrent join
// either precedes the snapshot or observes the new member when it
// broadcasts. userNew reports whether this is the user's first connection
// in the room; the roster never lists the joining user's own other tabs.
func (t *PresenceTracker) JoinAndSnapshot(room, connID string, m Member) (roster []Member, userNew bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.rooms[room]
	if !ok {
		conns = make(map[string]Member)
		t.rooms[room] = conns
	}

	userNew = true
	seen := make(map[string]bool)
	for _, other := range conns {
		if other.UserID == m.UserID {
			userNew = false
			continue
		}
		if seen[other.UserID] {
			continue
		}
		seen[other.UserID] = true
		roster = append(roster, other)
	}
	conns[connID] = m
	return roster, userNew
}

// Leave removes a connection from a room. userGone reports whether that was
// the user's last connection in the room; roomEmpty whether the room entry
// was destroyed because no connections remain.
func (t *PresenceTracker) Leave(room, connID string) (userGone, roomEmpty bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	conns, ok := t.rooms[room]
	if !ok {
		return false, false
	}
	m, ok := conns[connID]
	if !ok {
		return false, false
	}
	delete(conns, connID)

	if len(conns) == 0 {
		delete(t.rooms, room)
		return true, true
	}
	for _, other := range conns {
		if other.UserID == m.UserID {
			return false, false
		}
	}
	return true, false
}

// Participants returns a snapshot of the room's members, one entry per
// distinct user.
func (t *PresenceTracker) Participants(room string) []Member {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var members []Member
	seen := make(map[string]bool)
	for _, m := range t.rooms[room] {
		if seen[m.UserID] {
			continue
		}
		seen[m.UserID] = true
		members = append(members, m)
	}
	return members
}

// ParticipantIDs returns the set of user IDs currently in the room.
func (t *PresenceTracker) ParticipantIDs(room string) []string {
	members := t.Participants(room)
	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	return ids
}

func (t *PresenceTracker) IsEmpty(room string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms[room]) == 0
}

func (t *PresenceTracker) IsUserInRoom(userID, room string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, m := range t.rooms[room] {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// Broadcast sends a message to every connection in the room except
// excludeConnID. Pass an empty string to include everyone. It holds the
// write lock for the whole fan-out: concurrent broadcasts cannot interleave,
// so every member observes the same delivery order.
func (t *PresenceTracker) Broadcast(room string, message interface{}, excludeConnID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, m := range t.rooms[room] {
		if id == excludeConnID {
			continue
		}
		// A failed write is left for the connection's read loop to
		// notice and clean up.
		if err := m.Peer.SendJSON(message); err != nil {
			utils.LogError(err, "Broadcast")
		}
	}
}

// SendToUser delivers a message to every connection the target user holds in
// the room. It reports whether the user was present; an absent target is the
// caller's silent-drop case.
func (t *PresenceTracker) SendToUser(room, userID string, message interface{}) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	delivered := false
	for _, m := range t.rooms[room] {
		if m.UserID != userID {
			continue
		}
		delivered = true
		if err := m.Peer.SendJSON(message); err != nil {
			utils.LogError(err, "SendToUser")
		}
	}
	return delivered
}
