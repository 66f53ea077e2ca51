package models

import "time"

// Attachment is an image associated with a comment, stored by opaque key.
// Keys are random, collision-free names generated at creation time and
// never change afterwards.
type Attachment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CommentID uint      `gorm:"index;not null" json:"comment_id"`
	Key       string    `gorm:"size:255;not null" json:"key"`
	CreatedAt time.Time `json:"created_at"`

	// Link is a signed URL resolved on read when the backing object
	// still exists; empty means the object is gone and the attachment
	// should be filtered from image grids.
	Link string `gorm:"-" json:"link,omitempty"`
}
