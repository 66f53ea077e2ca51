package models

import "time"

// Comment is a reply to a blog. UserID is nullable: comments left by
// unauthenticated visitors have no owner and render as anonymous.
type Comment struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	BlogID      uint         `gorm:"index;not null" json:"blog_id"`
	UserID      *uint        `gorm:"index" json:"user_id"`
	Content     string       `gorm:"type:text;not null" json:"content"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	User        *User        `json:"author"`
	Attachments []Attachment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"attachments"`
}
