package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SessionState names a step of the conversation state machine.
type SessionState string

const (
	StateIdle                     SessionState = "idle"
	StateAwaitingNumber           SessionState = "awaiting_number"
	StateSelectingBundle          SessionState = "selecting_bundle"
	StateSelectingSavedNumber     SessionState = "selecting_saved_number"
	StateEnteringAmount           SessionState = "entering_amount"
	StateConfirmingPurchase       SessionState = "confirming_purchase"
	StateConfirmingAirtime        SessionState = "confirming_airtime"
	StateNumberSelected           SessionState = "number_selected"
	StateSelectingBundleForNumber SessionState = "selecting_bundle_for_number"
	StateEnteringAmountForNumber  SessionState = "entering_amount_for_number"
)

// SessionAction tells shared states which purchase flow they belong to.
type SessionAction string

const (
	ActionNone            SessionAction = ""
	ActionBundleSelection SessionAction = "bundle_selection"
	ActionBundlePurchase  SessionAction = "bundle_purchase"
	ActionAirtimePurchase SessionAction = "airtime_purchase"
	ActionNumberLookup    SessionAction = "number_lookup"
)

// Session stores the conversation progress of one user. Data holds the
// versioned flow payload produced by EncodeFlow.
type Session struct {
	gorm.Model
	UserID        uint           `json:"user_id" gorm:"uniqueIndex;not null"`
	State         SessionState   `json:"state" gorm:"type:varchar(40);not null;default:idle"`
	CurrentAction *SessionAction `json:"current_action" gorm:"type:varchar(40)"`
	Data          datatypes.JSON `json:"data"`
	ExpiresAt     time.Time      `json:"expires_at" gorm:"index"`
}

// Action returns the current action or ActionNone.
func (s *Session) Action() SessionAction {
	if s.CurrentAction == nil {
		return ActionNone
	}
	return *s.CurrentAction
}

// IsExpired reports whether the session has passed its expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}
