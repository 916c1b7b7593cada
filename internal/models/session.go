package models

import "time"

// Session is one user's presence interval in one room. A row is opened on
// join and closed (LeftAt set) on disconnect or by the cleanup sweeper;
// rows are never deleted or reused.
type Session struct {
	ID       string     `json:"id"`
	RoomID   string     `json:"roomId"`
	UserID   string     `json:"userId"`
	JoinedAt time.Time  `json:"joinedAt"`
	LeftAt   *time.Time `json:"leftAt,omitempty"`
}
