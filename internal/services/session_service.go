package services

import (
	"context"
	"fmt"

	"conference-backend/internal/db"
	"conference-backend/internal/models"

	"github.com/google/uuid"
)

// SessionService is the session ledger: an append-only record of presence
// intervals. It also owns the best-effort room deactivation taken when the
// last participant leaves; the cleanup sweeper is the authoritative backstop.
type SessionService struct{}

func NewSessionService() *SessionService {
	return &SessionService{}
}

// EnsureUser creates a placeholder identity for a socket-only participant.
// Registered users already exist and are left untouched.
func (s *SessionService) EnsureUser(ctx context.Context, userID, name string) error {
	query := `INSERT INTO users (id, name, email) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`
	_, err := db.Pool.Exec(ctx, query, userID, name, fmt.Sprintf("%s@example.com", userID))
	return err
}

// OpenSession appends a new ledger row. Rapid join/leave/join cycles each
// get their own row; nothing is overwritten.
func (s *SessionService) OpenSession(ctx context.Context, roomID, userID string) (*models.Session, error) {
	session := models.Session{
		ID:     uuid.New().String(),
		RoomID: roomID,
		UserID: userID,
	}
	query := `INSERT INTO sessions (id, room_id, user_id) VALUES ($1, $2, $3) RETURNING joined_at`
	err := db.Pool.QueryRow(ctx, query, session.ID, session.RoomID, session.UserID).Scan(&session.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// CloseOpenSessions sets left_at on every open session the user holds in the
// room. Closing when none are open is a no-op; it returns the number of rows
// actually closed.
func (s *SessionService) CloseOpenSessions(ctx context.Context, roomID, userID string) (int64, error) {
	query := `UPDATE sessions SET left_at = now() WHERE room_id = $1 AND user_id = $2 AND left_at IS NULL`
	tag, err := db.Pool.Exec(ctx, query, roomID, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeactivateRoom flags the room inactive and closes any open sessions still
// pointing at it. Taken when presence reports the room empty; safe to run
// against a room that is already inactive.
func (s *SessionService) DeactivateRoom(ctx context.Context, roomID string) error {
	query := `UPDATE rooms SET is_active = false, updated_at = now() WHERE id = $1`
	if _, err := db.Pool.Exec(ctx, query, roomID); err != nil {
		return err
	}
	query = `UPDATE sessions SET left_at = now() WHERE room_id = $1 AND left_at IS NULL`
	_, err := db.Pool.Exec(ctx, query, roomID)
	return err
}
