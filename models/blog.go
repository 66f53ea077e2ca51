package models

import "time"

// Blog is a titled rich-text article with an optional cover image.
// ImageKey references an object in the blob store; it is assigned the
// first time a cover image is uploaded and reused afterwards.
type Blog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	ImageKey  string    `gorm:"size:255" json:"image_key"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	User      User      `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"author"`
	Comments  []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`

	// ImageURL is a signed link resolved per request, never stored.
	ImageURL string `gorm:"-" json:"image_url,omitempty"`
}
