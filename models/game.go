// models/game.go
package models

const (
	GameStatusDraft     = "draft"
	GameStatusPublished = "published"
)

// Game is one playable mini-game in the catalog. Games are referenced by
// score logs through an opaque ID, so deleting a game never touches the
// log; read-side joins simply stop surfacing it.
type Game struct {
	ID           string `json:"id" gorm:"primaryKey"`
	Name         string `json:"name" gorm:"not null"`
	Slug         string `json:"slug" gorm:"index"`
	Description  string `json:"description"`
	Genre        string `json:"genre"`
	ThumbnailURL string `json:"thumbnail_url"`

	// draft | published; only published games appear in the catalog
	Status string `json:"status" gorm:"default:'published'"`

	Timestamps
}
