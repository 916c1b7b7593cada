package handlers

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	mu       sync.Mutex
	messages []interface{}
}

func (p *fakePeer) SendJSON(v interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, v)
	return nil
}

func (p *fakePeer) received() []interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]interface{}(nil), p.messages...)
}

func member(userID string) Member {
	return Member{UserID: userID, Username: "user " + userID, Peer: &fakePeer{}}
}

func TestPresenceJoinLeave(t *testing.T) {
	tracker := NewPresenceTracker()

	assert.True(t, tracker.IsEmpty("standup"))

	tracker.Join("standup", "c1", member("alice"))
	tracker.Join("standup", "c2", member("bob"))

	assert.False(t, tracker.IsEmpty("standup"))
	assert.ElementsMatch(t, []string{"alice", "bob"}, tracker.ParticipantIDs("standup"))
	assert.True(t, tracker.IsUserInRoom("alice", "standup"))
	assert.False(t, tracker.IsUserInRoom("alice", "retro"))

	userGone, roomEmpty := tracker.Leave("standup", "c1")
	assert.True(t, userGone)
	assert.False(t, roomEmpty)
	assert.ElementsMatch(t, []string{"bob"}, tracker.ParticipantIDs("standup"))

	userGone, roomEmpty = tracker.Leave("standup", "c2")
	assert.True(t, userGone)
	assert.True(t, roomEmpty)
	assert.True(t, tracker.IsEmpty("standup"))
}

func TestPresenceLeaveUnknown(t *testing.T) {
	tracker := NewPresenceTracker()

	userGone, roomEmpty := tracker.Leave("nowhere", "c1")
	assert.False(t, userGone)
	assert.False(t, roomEmpty)

	tracker.Join("standup", "c1", member("alice"))
	userGone, roomEmpty = tracker.Leave("standup", "c2")
	assert.False(t, userGone)
	assert.False(t, roomEmpty)
	assert.ElementsMatch(t, []string{"alice"}, tracker.ParticipantIDs("standup"))
}

func TestPresenceMultipleTabsCountOnce(t *testing.T) {
	tracker := NewPresenceTracker()

	tracker.Join("standup", "c1", member("alice"))
	tracker.Join("standup", "c2", member("alice"))

	require.ElementsMatch(t, []string{"alice"}, tracker.ParticipantIDs("standup"))

	// First tab closing does not announce the user gone.
	userGone, roomEmpty := tracker.Leave("standup", "c1")
	assert.False(t, userGone)
	assert.False(t, roomEmpty)
	assert.True(t, tracker.IsUserInRoom("alice", "standup"))

	userGone, roomEmpty = tracker.Leave("standup", "c2")
	assert.True(t, userGone)
	assert.True(t, roomEmpty)
}

func TestJoinAndSnapshot(t *testing.T) {
	tracker := NewPresenceTracker()

	roster, userNew := tracker.JoinAndSnapshot("standup", "c1", member("alice"))
	assert.Empty(t, roster)
	assert.True(t, userNew)

	roster, userNew = tracker.JoinAndSnapshot("standup", "c2", member("bob"))
	require.Len(t, roster, 1)
	assert.Equal(t, "alice", roster[0].UserID)
	assert.True(t, userNew)

	// A second tab of an existing user: not a new user, and the roster
	// lists the others but not the user's own first tab.
	roster, userNew = tracker.JoinAndSnapshot("standup", "c3", member("alice"))
	require.Len(t, roster, 1)
	assert.Equal(t, "bob", roster[0].UserID)
	assert.False(t, userNew)

	assert.ElementsMatch(t, []string{"alice", "bob"}, tracker.ParticipantIDs("standup"))
}

func TestPresenceBroadcastExcludesSender(t *testing.T) {
	tracker := NewPresenceTracker()
	alice := &fakePeer{}
	bob := &fakePeer{}
	tracker.Join("standup", "c1", Member{UserID: "alice", Username: "Alice", Peer: alice})
	tracker.Join("standup", "c2", Member{UserID: "bob", Username: "Bob", Peer: bob})

	tracker.Broadcast("standup", "hello", "c1")
	assert.Empty(t, alice.received())
	assert.Equal(t, []interface{}{"hello"}, bob.received())

	tracker.Broadcast("standup", "all", "")
	assert.Equal(t, []interface{}{"all"}, alice.received())
	assert.Equal(t, []interface{}{"hello", "all"}, bob.received())
}

func TestPresenceSendToUser(t *testing.T) {
	tracker := NewPresenceTracker()
	alice := &fakePeer{}
	bob := &fakePeer{}
	tracker.Join("standup", "c1", Member{UserID: "alice", Username: "Alice", Peer: alice})
	tracker.Join("standup", "c2", Member{UserID: "bob", Username: "Bob", Peer: bob})

	delivered := tracker.SendToUser("standup", "bob", "offer")
	assert.True(t, delivered)
	assert.Equal(t, []interface{}{"offer"}, bob.received())
	assert.Empty(t, alice.received())

	// Absent target is reported so the relay can drop silently.
	assert.False(t, tracker.SendToUser("standup", "carol", "offer"))
	assert.False(t, tracker.SendToUser("retro", "bob", "offer"))
}

func TestPresenceConcurrentJoinLeave(t *testing.T) {
	tracker := NewPresenceTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := fmt.Sprintf("c%d", i)
			userID := fmt.Sprintf("u%d", i)
			tracker.Join("standup", connID, member(userID))
			if i%2 == 0 {
				tracker.Leave("standup", connID)
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, tracker.ParticipantIDs("standup"), 25)
}
