package services

import (
	"context"
	"errors"

	"conference-backend/internal/db"
	"conference-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrRoomNotFound = errors.New("room not found")

// RoomService is the directory of rooms: thin CRUD over the rooms table.
// Rooms are never deleted, only flagged inactive.
type RoomService struct{}

func NewRoomService() *RoomService {
	return &RoomService{}
}

func (s *RoomService) CreateRoom(ctx context.Context, name string, isPrivate bool) (*models.Room, error) {
	room := models.Room{
		ID:        uuid.New().String(),
		Name:      name,
		IsPrivate: isPrivate,
	}
	query := `INSERT INTO rooms (id, name, is_private) VALUES ($1, $2, $3)
		RETURNING is_active, created_at, updated_at`
	err := db.Pool.QueryRow(ctx, query, room.ID, room.Name, room.IsPrivate).
		Scan(&room.IsActive, &room.CreatedAt, &room.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *RoomService) GetRoomByID(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	query := `SELECT id, name, is_private, is_active, created_at, updated_at FROM rooms WHERE id = $1`
	err := db.Pool.QueryRow(ctx, query, id).Scan(
		&room.ID, &room.Name, &room.IsPrivate, &room.IsActive, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

// ListRooms returns active rooms, newest first. Private rooms are included
// only for authenticated callers.
func (s *RoomService) ListRooms(ctx context.Context, includePrivate bool) ([]models.Room, error) {
	query := `SELECT id, name, is_private, is_active, created_at, updated_at FROM rooms
		WHERE is_active AND ($1 OR NOT is_private)
		ORDER BY created_at DESC`
	rows, err := db.Pool.Query(ctx, query, includePrivate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rooms := []models.Room{}
	for rows.Next() {
		var room models.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.IsPrivate, &room.IsActive,
			&room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}
