// models/score_log.go
package models

import (
	"time"

	"gorm.io/datatypes"
)

// GameScoreLog is one immutable play-attempt fact. Rows are only ever
// inserted; corrections are new rows, never updates. The table is
// range-partitioned by created_at into monthly children, so created_at
// is part of the primary key.
type GameScoreLog struct {
	ID        string   `json:"id" gorm:"primaryKey"`
	UserID    string   `json:"user_id" gorm:"index;not null"`
	GameID    string   `json:"game_id" gorm:"index;not null"`
	ContentID string   `json:"content_id" gorm:"index;not null"`
	Score     float64  `json:"score" gorm:"not null"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Attempts  int      `json:"attempts" gorm:"default:1"` // caller-supplied session counter

	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Cycles    *int       `json:"cycles,omitempty"`

	// opaque per-session settings (difficulty, tempo, ...)
	LevelConfig datatypes.JSON `json:"level_config,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"primaryKey;index"`
}

func (GameScoreLog) TableName() string { return "game_score_logs" }
