package services

import (
	"context"
	"log"
	"time"

	"conference-backend/internal/db"
	"conference-backend/internal/utils"
)

// CleanupService reconciles the room directory with the session ledger on a
// fixed interval: rooms whose every session closed longer ago than the idle
// threshold are flagged inactive. The sweep is idempotent; flagging an
// already-inactive room changes nothing, and nothing ever flips a room back
// to active.
type CleanupService struct {
	interval  time.Duration
	idleAfter time.Duration
}

func NewCleanupService(interval, idleAfter time.Duration) *CleanupService {
	return &CleanupService{interval: interval, idleAfter: idleAfter}
}

// Start runs the sweep loop until ctx is cancelled.
func (s *CleanupService) Start(ctx context.Context) {
	log.Printf("Room cleanup service started (interval %s, idle threshold %s)", s.interval, s.idleAfter)
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Println("Room cleanup service stopped")
				return
			case <-ticker.C:
				n, err := s.SweepOnce(ctx)
				if err != nil {
					utils.LogError(err, "RoomCleanup")
					continue
				}
				if n > 0 {
					log.Printf("Room cleanup: flagged %d rooms inactive", n)
				}
			}
		}
	}()
}

// SweepOnce flags every active room with no open session and no session
// closed within the idle threshold. Rooms younger than the threshold are
// left alone so a freshly created room survives until someone joins.
func (s *CleanupService) SweepOnce(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.idleAfter)
	query := `UPDATE rooms SET is_active = false, updated_at = now()
		WHERE is_active
		  AND created_at < $1
		  AND NOT EXISTS (
			SELECT 1 FROM sessions s
			WHERE s.room_id = rooms.id
			  AND (s.left_at IS NULL OR s.left_at >= $1)
		  )`
	tag, err := db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
