// models/content.go
package models

import "time"

const (
	ContentTypeNotation = "notation"
	ContentTypeMedia    = "media"
	ContentTypeLink     = "link"
)

// Content is a user-owned playable item (a notation sheet, a media clip,
// an external link). The owner is an opaque ID from the profile service.
type Content struct {
	ID          string `json:"id" gorm:"primaryKey"`
	UserID      string `json:"user_id" gorm:"index;not null"` // owner, assigned by the profile service
	Title       string `json:"title" gorm:"not null"`
	Slug        string `json:"slug" gorm:"index"`
	Description string `json:"description"`
	ContentType string `json:"content_type" gorm:"default:'notation'"`

	// No column default: a zero value here must land as false, and GORM
	// skips fields with defaults when their value is the zero value.
	IsPublic bool `json:"is_public"`

	Timestamps
}

// ContentGame links a content item to a game it can be played in. Score
// writes are rejected unless the (game, content) pair has a row here.
// Rows are hard-deleted on unlink so the pair can be re-linked later.
type ContentGame struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ContentID string    `json:"content_id" gorm:"uniqueIndex:idx_content_game;not null"`
	GameID    string    `json:"game_id" gorm:"uniqueIndex:idx_content_game;index;not null"`
	PlayCount int64     `json:"play_count" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
