package models

import (
	"strings"

	"gorm.io/gorm"
)

// SavedNumber is a recipient number a user has bought for before.
type SavedNumber struct {
	gorm.Model
	UserID         uint   `json:"user_id" gorm:"uniqueIndex:ux_saved_number_user_sub,priority:1;not null"`
	SubscriptionID string `json:"subscription_id" gorm:"uniqueIndex:ux_saved_number_user_sub,priority:2;not null"`
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	IsActive       bool   `json:"is_active" gorm:"default:true"`
	IsPrimary      bool   `json:"is_primary" gorm:"default:false"`
}

// SubscriberName joins the first and last name.
func (n *SavedNumber) SubscriberName() string {
	return strings.TrimSpace(n.FirstName + " " + n.LastName)
}

// Ref converts the record into its session representation.
func (n *SavedNumber) Ref() SavedNumberRef {
	return SavedNumberRef{
		SubscriptionID: n.SubscriptionID,
		SubscriberName: n.SubscriberName(),
	}
}
