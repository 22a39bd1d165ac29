package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	return gdb
}

func newTestRetrier(t *testing.T) *Retrier {
	t.Helper()
	r := NewRetrier(newTestDB(t))
	r.baseDelay = time.Millisecond
	return r
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), true},
		{"connection refused", errors.New("dial tcp 10.0.0.1:5432: connection refused"), true},
		{"connection reset", errors.New("read: connection reset by peer"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"pool limit", errors.New("FATAL: pool limit reached"), true},
		{"too many clients", errors.New("FATAL: sorry, too many clients already"), true},
		{"starting up", errors.New("FATAL: the database system is starting up"), true},
		{"mixed case", errors.New("Connection Refused"), true},
		{"unique violation", errors.New(`duplicate key value violates unique constraint "games_pkey"`), false},
		{"syntax error", errors.New("syntax error at or near SELECT"), false},
		{"not found", gorm.ErrRecordNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRunReturnsOnFirstSuccess(t *testing.T) {
	r := newTestRetrier(t)

	attempts := 0
	err := r.Run(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRunRetriesTransientErrors(t *testing.T) {
	r := newTestRetrier(t)

	attempts := 0
	err := r.Run(context.Background(), func(tx *gorm.DB) error {
		attempts++
		if attempts < 3 {
			return errors.New("connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRunGivesUpAfterMaxAttempts(t *testing.T) {
	r := newTestRetrier(t)

	attempts := 0
	err := r.Run(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return errors.New("connection refused")
	})
	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRunDoesNotRetryNonTransient(t *testing.T) {
	r := newTestRetrier(t)

	permanent := errors.New(`duplicate key value violates unique constraint "games_pkey"`)
	attempts := 0
	err := r.Run(context.Background(), func(tx *gorm.DB) error {
		attempts++
		return permanent
	})
	assert.Equal(t, 1, attempts)
	assert.Equal(t, permanent, err)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	r := newTestRetrier(t)
	// Long enough that cancellation always beats the backoff timer.
	r.baseDelay = 500 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := r.Run(ctx, func(tx *gorm.DB) error {
		attempts++
		cancel()
		return errors.New("connection refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRunFiresWakeProbeOnFirstTransientFailure(t *testing.T) {
	r := newTestRetrier(t)
	require.True(t, r.LastWake().IsZero())

	_ = r.Run(context.Background(), func(tx *gorm.DB) error {
		return errors.New("connection refused")
	})

	// The probe runs async; give it a moment to land.
	assert.Eventually(t, func() bool {
		return !r.LastWake().IsZero()
	}, time.Second, 5*time.Millisecond)
}

func TestWakeProbeRespectsCooldown(t *testing.T) {
	r := newTestRetrier(t)

	recent := time.Now()
	r.wakeMu.Lock()
	r.lastWake = recent
	r.wakeMu.Unlock()

	r.wakeIfCold()
	assert.True(t, r.LastWake().Equal(recent), "probe inside cooldown should not run")
}

func TestWakeRecordsTimestampAndLatency(t *testing.T) {
	r := newTestRetrier(t)

	elapsed, err := r.Wake(context.Background())
	require.NoError(t, err)
	assert.Greater(t, elapsed, time.Duration(0))
	assert.False(t, r.LastWake().IsZero())
}
