package handlers

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"conference-backend/internal/models"
	"conference-backend/internal/utils"
)

// Ledger is what the relay needs from persistence. Every call is best
// effort: failures are logged and the in-memory presence transition goes
// ahead regardless, with the cleanup sweeper as the consistency backstop.
type Ledger interface {
	EnsureUser(ctx context.Context, userID, name string) error
	OpenSession(ctx context.Context, roomID, userID string) (*models.Session, error)
	CloseOpenSessions(ctx context.Context, roomID, userID string) (int64, error)
	DeactivateRoom(ctx context.Context, roomID string) error
}

// HandleSignal routes one inbound event from a channel. Malformed events and
// events addressed to absent targets are dropped silently; signaling is best
// effort and the media layer above retries on its own.
func HandleSignal(client *Client, data []byte, tracker *PresenceTracker, ledger Ledger) {
	var msg models.SignalMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		utils.LogError(err, "SignalParse")
		return
	}

	switch msg.Event {
	case models.EventJoinRoom:
		handleJoin(client, &msg, tracker, ledger)
	case models.EventLeaveRoom:
		leaveRoom(client, tracker, ledger)
	case models.EventOffer, models.EventAnswer, models.EventICECandidate:
		handleForward(client, &msg, tracker)
	case models.EventScreenShareStarted, models.EventScreenShareStopped:
		handleScreenShare(client, &msg, tracker)
	case models.EventSendMessage:
		handleChat(client, &msg, tracker)
	default:
		log.Printf("Unknown signaling event: %s", msg.Event)
	}
}

// HandleDisconnect runs when a channel's transport closes, explicitly left
// or not.
func HandleDisconnect(client *Client, tracker *PresenceTracker, ledger Ledger) {
	leaveRoom(client, tracker, ledger)
}

func handleJoin(client *Client, msg *models.SignalMessage, tracker *PresenceTracker, ledger Ledger) {
	if msg.Room == "" {
		return
	}
	// An identity from an authenticated upgrade wins over the announced one.
	if client.UserID == "" {
		client.UserID = msg.UserID
	}
	if client.Username == "" {
		client.Username = msg.UserName
	}
	if client.UserID == "" {
		return
	}

	// A channel holds at most one room; joining another leaves the first.
	if client.Room != "" {
		leaveRoom(client, tracker, ledger)
	}
	client.Room = msg.Room

	// Roster snapshot and insert share one critical section, so two
	// channels joining at once cannot each miss the other.
	roster, userNew := tracker.JoinAndSnapshot(client.Room, client.ConnID, Member{
		UserID:   client.UserID,
		Username: client.Username,
		Peer:     client,
	})

	// Only the user's first channel in the room opens a ledger row and
	// announces them; extra tabs ride the already-open session, mirroring
	// the last-tab gate on the close side. At most one session per
	// (user, room) is ever open.
	if userNew {
		ctx := context.Background()
		if err := ledger.EnsureUser(ctx, client.UserID, client.Username); err != nil {
			utils.LogError(err, "EnsureUser")
		}
		if _, err := ledger.OpenSession(ctx, client.Room, client.UserID); err != nil {
			utils.LogError(err, "OpenSession")
		}

		tracker.Broadcast(client.Room, models.SignalMessage{
			Event:    models.EventUserConnected,
			Room:     client.Room,
			UserID:   client.UserID,
			UserName: client.Username,
		}, client.ConnID)
	}

	peers := make([]models.PeerInfo, 0, len(roster))
	for _, m := range roster {
		peers = append(peers, models.PeerInfo{ID: m.UserID, Name: m.Username})
	}
	if err := client.SendJSON(models.SignalMessage{
		Event: models.EventConnectedUsers,
		Room:  client.Room,
		Peers: peers,
	}); err != nil {
		utils.LogError(err, "SendRoster")
	}
}

func leaveRoom(client *Client, tracker *PresenceTracker, ledger Ledger) {
	room := client.Room
	if room == "" {
		return
	}
	client.Room = ""

	userGone, roomEmpty := tracker.Leave(room, client.ConnID)
	if !userGone {
		// Another tab of the same user is still in the room.
		return
	}

	tracker.Broadcast(room, models.SignalMessage{
		Event:  models.EventUserDisconnected,
		Room:   room,
		UserID: client.UserID,
	}, client.ConnID)

	if _, err := ledger.CloseOpenSessions(context.Background(), room, client.UserID); err != nil {
		utils.LogError(err, "CloseOpenSessions")
	}

	if roomEmpty {
		// Latency optimization only; the sweeper is authoritative.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := ledger.DeactivateRoom(ctx, room); err != nil {
				utils.LogError(err, "DeactivateRoom")
			}
		}()
	}
}

// handleForward relays an offer, answer or ICE candidate to the single user
// it is addressed to, payload untouched. No target in the room means the
// message is dropped; nothing is queued or retried.
func handleForward(client *Client, msg *models.SignalMessage, tracker *PresenceTracker) {
	if client.Room == "" || msg.Target == "" {
		return
	}
	tracker.SendToUser(client.Room, msg.Target, models.SignalMessage{
		Event:    msg.Event,
		Room:     client.Room,
		From:     client.UserID,
		FromName: client.Username,
		Payload:  msg.Payload,
	})
}

func handleScreenShare(client *Client, msg *models.SignalMessage, tracker *PresenceTracker) {
	if client.Room == "" {
		return
	}
	tracker.Broadcast(client.Room, models.SignalMessage{
		Event:    msg.Event,
		Room:     client.Room,
		From:     client.UserID,
		FromName: client.Username,
	}, client.ConnID)
}

// handleChat fans a chat message out to everyone in the room, sender
// included. Clients render only what comes back from the relay, so every
// member observes the same message order.
func handleChat(client *Client, msg *models.SignalMessage, tracker *PresenceTracker) {
	if client.Room == "" || msg.Text == "" {
		return
	}
	tracker.Broadcast(client.Room, models.SignalMessage{
		Event:     models.EventReceiveMessage,
		Room:      client.Room,
		From:      client.UserID,
		FromName:  client.Username,
		Text:      msg.Text,
		Timestamp: time.Now().UnixMilli(),
	}, "")
}
