package services

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timeNear matches a time argument within a tolerance of the expected value.
type timeNear struct {
	want time.Time
	tol  time.Duration
}

func (m timeNear) Match(v any) bool {
	ts, ok := v.(time.Time)
	if !ok {
		return false
	}
	d := ts.Sub(m.want)
	if d < 0 {
		d = -d
	}
	return d <= m.tol
}

// The sweep is a single guarded UPDATE: only rooms older than the cutoff
// with no open session and none closed since the cutoff are flagged, so a
// freshly created room survives until someone joins.
const sweepQuery = `(?s)UPDATE rooms SET is_active = false.*` +
	`WHERE is_active.*AND created_at < \$1.*AND NOT EXISTS.*` +
	`s\.left_at IS NULL OR s\.left_at >= \$1`

func TestSweepOnceFlagsIdleRooms(t *testing.T) {
	mock := newMockPool(t)
	svc := NewCleanupService(time.Hour, 24*time.Hour)

	mock.ExpectExec(sweepQuery).
		WithArgs(timeNear{want: time.Now().Add(-24 * time.Hour), tol: time.Minute}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))

	n, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepOnceIdleThresholdConfigurable(t *testing.T) {
	mock := newMockPool(t)
	svc := NewCleanupService(time.Hour, time.Hour)

	mock.ExpectExec(sweepQuery).
		WithArgs(timeNear{want: time.Now().Add(-time.Hour), tol: time.Minute}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	n, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSweepOnceIdempotent(t *testing.T) {
	mock := newMockPool(t)
	svc := NewCleanupService(time.Hour, 24*time.Hour)

	mock.ExpectExec(sweepQuery).WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	// A second pass over already-inactive rooms touches nothing.
	mock.ExpectExec(sweepQuery).WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	n, err := svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = svc.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
