// db/partitions.go
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const scoreLogTable = "game_score_logs"

// PartitionResult tells the caller whether EnsurePartition had to do
// anything. Both values mean the partition exists afterwards.
type PartitionResult int

const (
	PartitionCreated PartitionResult = iota
	PartitionExists
)

// PartitionManager creates monthly range partitions for the score log
// table. Creation is idempotent: concurrent callers racing on the same
// month all succeed, with exactly one of them doing the DDL.
type PartitionManager struct {
	db *gorm.DB

	mu    sync.Mutex
	known map[string]bool

	maxAttempts int
	baseDelay   time.Duration
}

func NewPartitionManager(gdb *gorm.DB) *PartitionManager {
	return &PartitionManager{
		db:          gdb,
		known:       make(map[string]bool),
		maxAttempts: 3,
		baseDelay:   100 * time.Millisecond,
	}
}

// PartitionName returns the child table name for the month containing t,
// e.g. game_score_logs_2026_08.
func PartitionName(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("%s_%04d_%02d", scoreLogTable, t.Year(), int(t.Month()))
}

// MonthBounds returns the first instant of t's month and of the next
// month, both UTC. The range is half-open: [start, end).
func MonthBounds(t time.Time) (start, end time.Time) {
	t = t.UTC()
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end = start.AddDate(0, 1, 0)
	return start, end
}

// EnsureSchema creates the partitioned parent table and its indexes.
// The parent holds no rows itself; inserts land in monthly children.
// AutoMigrate cannot emit PARTITION BY, so the DDL is raw.
func (m *PartitionManager) EnsureSchema() error {
	parent := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id UUID NOT NULL,
			user_id UUID NOT NULL,
			game_id UUID NOT NULL,
			content_id UUID NOT NULL,
			score DECIMAL(10,2) NOT NULL,
			accuracy DECIMAL(5,2),
			attempts INTEGER NOT NULL DEFAULT 1,
			start_time TIMESTAMP,
			end_time TIMESTAMP,
			cycles INTEGER,
			level_config JSONB,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			PRIMARY KEY (id, created_at)
		) PARTITION BY RANGE (created_at)`, scoreLogTable)
	if err := m.db.Exec(parent).Error; err != nil {
		return fmt.Errorf("failed to create %s: %w", scoreLogTable, err)
	}

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_user_id ON %s (user_id)", scoreLogTable, scoreLogTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_game_id ON %s (game_id)", scoreLogTable, scoreLogTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_content_id ON %s (content_id)", scoreLogTable, scoreLogTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at)", scoreLogTable, scoreLogTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_user_recent ON %s (user_id, created_at DESC)", scoreLogTable, scoreLogTable),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_game_recent ON %s (game_id, created_at DESC)", scoreLogTable, scoreLogTable),
	}
	for _, stmt := range indexes {
		if err := m.db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create score log index: %w", err)
		}
	}
	return nil
}

// EnsurePartition guarantees the partition covering t exists. Safe to
// call from concurrent writers; a lost creation race counts as success.
func (m *PartitionManager) EnsurePartition(t time.Time) (PartitionResult, error) {
	name := PartitionName(t)

	m.mu.Lock()
	if m.known[name] {
		m.mu.Unlock()
		return PartitionExists, nil
	}
	m.mu.Unlock()

	var result PartitionResult
	var lastErr error
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(m.baseDelay * time.Duration(1<<(attempt-1)))
		}
		var err error
		result, err = m.ensureOnce(t, name)
		if err == nil {
			m.mu.Lock()
			m.known[name] = true
			m.mu.Unlock()
			return result, nil
		}
		lastErr = err
		log.Printf("⚠️  Partition ensure failed for %s (attempt %d/%d): %v", name, attempt+1, m.maxAttempts, err)
	}
	return result, fmt.Errorf("failed to ensure partition %s after %d attempts: %w", name, m.maxAttempts, lastErr)
}

func (m *PartitionManager) ensureOnce(t time.Time, name string) (PartitionResult, error) {
	var reg sql.NullString
	if err := m.db.Raw("SELECT to_regclass(?)::text", name).Scan(&reg).Error; err != nil {
		return PartitionExists, err
	}
	if reg.Valid && reg.String != "" {
		return PartitionExists, nil
	}

	start, end := MonthBounds(t)
	stmt := fmt.Sprintf(
		"CREATE TABLE %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')",
		name, scoreLogTable,
		start.Format("2006-01-02"), end.Format("2006-01-02"),
	)
	if err := m.db.Exec(stmt).Error; err != nil {
		if isDuplicateTable(err) {
			return PartitionExists, nil
		}
		return PartitionExists, err
	}

	log.Printf("✅ Created score log partition %s [%s, %s)", name, start.Format("2006-01-02"), end.Format("2006-01-02"))
	return PartitionCreated, nil
}

// isDuplicateTable matches Postgres duplicate_table (42P07), raised
// when a concurrent writer created the partition between our existence
// check and the CREATE. That race is a success, not a failure.
func isDuplicateTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P07" {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// EnsureCurrentAndNext provisions the partition for the current month
// and the next one, so writes never stall at a month boundary.
func (m *PartitionManager) EnsureCurrentAndNext() error {
	now := time.Now().UTC()
	if _, err := m.EnsurePartition(now); err != nil {
		return err
	}
	_, next := MonthBounds(now)
	if _, err := m.EnsurePartition(next); err != nil {
		return err
	}
	return nil
}
