package models

import "encoding/json"

// SignalMessage is the envelope for every event on a signaling channel, in
// both directions. Addressing is by user ID within the sender's current
// room: Target names the recipient for 1:1 forwards, From/FromName are
// stamped by the server on everything it relays. Payload is carried
// verbatim; the relay never inspects it.
type SignalMessage struct {
	Event     string          `json:"event"`
	Room      string          `json:"room,omitempty"`
	Target    string          `json:"target,omitempty"`
	From      string          `json:"from,omitempty"`
	FromName  string          `json:"fromName,omitempty"`
	UserID    string          `json:"userId,omitempty"`
	UserName  string          `json:"userName,omitempty"`
	Text      string          `json:"text,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Peers     []PeerInfo      `json:"peers,omitempty"`
	Timestamp int64           `json:"timestamp,omitempty"`
}

// PeerInfo is one roster entry sent to a newly joined channel.
type PeerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Inbound events.
const (
	EventJoinRoom           = "join-room"
	EventLeaveRoom          = "leave-room"
	EventOffer              = "offer"
	EventAnswer             = "answer"
	EventICECandidate       = "ice-candidate"
	EventScreenShareStarted = "screen-share-started"
	EventScreenShareStopped = "screen-share-stopped"
	EventSendMessage        = "send-message"
)

// Outbound events.
const (
	EventUserConnected    = "user-connected"
	EventConnectedUsers   = "connected-users"
	EventUserDisconnected = "user-disconnected"
	EventReceiveMessage   = "receive-message"
)
