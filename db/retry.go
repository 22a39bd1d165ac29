// db/retry.go
package db

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"
)

// transientFragments are message substrings that indicate the database
// was unreachable or overloaded rather than the query being wrong.
// Matching is case-insensitive.
var transientFragments = []string{
	"timeout",
	"connection timed out",
	"connection refused",
	"connection reset",
	"pool limit",
	"too many clients",
	"the database system is starting up",
}

// IsTransient reports whether err looks like a temporary connectivity
// failure worth retrying. Constraint violations, syntax errors and
// not-found results are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, fragment := range transientFragments {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}

// Retrier wraps database operations with bounded retry and exponential
// backoff. On the first transient failure of an operation it fires a
// single async wake probe so a scaled-to-zero database starts resuming
// while the caller backs off.
type Retrier struct {
	db          *gorm.DB
	maxAttempts int
	baseDelay   time.Duration

	wakeMu       sync.Mutex
	lastWake     time.Time
	wakeCooldown time.Duration
}

func NewRetrier(gdb *gorm.DB) *Retrier {
	return &Retrier{
		db:           gdb,
		maxAttempts:  3,
		baseDelay:    time.Second,
		wakeCooldown: 30 * time.Second,
	}
}

// Run executes op up to maxAttempts times. Non-transient errors are
// returned to the caller unchanged on the first occurrence.
func (r *Retrier) Run(ctx context.Context, op func(tx *gorm.DB) error) error {
	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		err := op(r.db.WithContext(ctx))
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		lastErr = err
		log.Printf("⚠️  Transient database error (attempt %d/%d): %v", attempt+1, r.maxAttempts, err)

		if attempt == 0 {
			go r.wakeIfCold()
		}
		if attempt == r.maxAttempts-1 {
			break
		}

		delay := r.baseDelay*time.Duration(1<<attempt) + time.Duration(rand.Int63n(int64(r.baseDelay)))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("database unavailable after %d attempts: %w", r.maxAttempts, lastErr)
}

// wakeIfCold runs a wake probe unless one already ran within the
// cooldown window. At most one probe per window, process-wide.
func (r *Retrier) wakeIfCold() {
	r.wakeMu.Lock()
	if time.Since(r.lastWake) < r.wakeCooldown {
		r.wakeMu.Unlock()
		return
	}
	r.lastWake = time.Now()
	r.wakeMu.Unlock()

	if _, err := r.Wake(context.Background()); err != nil {
		log.Printf("⚠️  Database wake probe failed: %v", err)
	}
}

// Wake issues a trivial query to pull an idle database out of its
// scaled-down state and reports how long it took to answer.
func (r *Retrier) Wake(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	if err := r.db.WithContext(ctx).Exec("SELECT 1 as wake_test").Error; err != nil {
		return 0, err
	}
	elapsed := time.Since(start)

	r.wakeMu.Lock()
	r.lastWake = time.Now()
	r.wakeMu.Unlock()

	log.Printf("✅ Database wake probe completed in %s", elapsed)
	return elapsed, nil
}

// LastWake returns when the most recent wake probe ran, zero if never.
func (r *Retrier) LastWake() time.Time {
	r.wakeMu.Lock()
	defer r.wakeMu.Unlock()
	return r.lastWake
}
