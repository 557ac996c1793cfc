package models

import "time"

// Message directions
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// MessageLog is the audit trail of WhatsApp text in and out.
type MessageLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Phone     string    `json:"phone" gorm:"index;not null"`
	Direction string    `json:"direction" gorm:"type:varchar(10);not null"`
	Body      string    `json:"body" gorm:"type:text"`
	MessageID string    `json:"message_id" gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}
