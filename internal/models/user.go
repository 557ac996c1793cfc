package models

import (
	"time"

	"gorm.io/gorm"
)

// User status values
const (
	UserStatusActive  = "active"
	UserStatusBlocked = "blocked"
)

// User is an end user identified by their WhatsApp phone number.
type User struct {
	gorm.Model
	Phone        string     `json:"phone" gorm:"uniqueIndex;not null"` // canonical digits, country code first
	DisplayName  string     `json:"display_name"`
	Status       string     `json:"status" gorm:"type:varchar(20);default:active"`
	LastActiveAt *time.Time `json:"last_active_at"`
}

// BeforeCreate fills defaults for new users
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	if u.LastActiveAt == nil {
		now := time.Now()
		u.LastActiveAt = &now
	}
	return nil
}
