package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TransactionType distinguishes what was bought.
type TransactionType string

// TransactionStatus tracks a purchase attempt.
type TransactionStatus string

const (
	TransactionTypeBundle  TransactionType = "bundle"
	TransactionTypeAirtime TransactionType = "airtime"

	TransactionStatusPending TransactionStatus = "pending"
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// IsTerminal reports whether the status can no longer change.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

// Transaction records one purchase attempt against the reseller API.
type Transaction struct {
	gorm.Model
	TransactionID         string            `json:"transaction_id" gorm:"uniqueIndex;not null"`
	UserID                uint              `json:"user_id" gorm:"index;not null"`
	Type                  TransactionType   `json:"type" gorm:"type:varchar(20);not null"`
	Amount                int64             `json:"amount" gorm:"not null"`
	SubscriptionID        string            `json:"subscription_id" gorm:"not null"`
	BundleToken           *string           `json:"bundle_token"`
	Status                TransactionStatus `json:"status" gorm:"type:varchar(20);index;not null;default:pending"`
	ProviderTransactionID *string           `json:"provider_transaction_id"`
	ErrorCode             *string           `json:"error_code"`
	ErrorMessage          *string           `json:"error_message"`
	Metadata              datatypes.JSON    `json:"metadata"`
	CompletedAt           *time.Time        `json:"completed_at"`
}

// TransactionMetadata is stored alongside a transaction for display and support.
type TransactionMetadata struct {
	BundleName     string `json:"bundle_name,omitempty"`
	BundleToken    string `json:"bundle_token,omitempty"`
	SubscriberName string `json:"subscriber_name,omitempty"`
}

// TransactionOutcome carries what the provider returned for a finished attempt.
type TransactionOutcome struct {
	ProviderTransactionID string
	ErrorCode             string
	ErrorMessage          string
	CompletedAt           time.Time
}

// TransactionStats aggregates a user's purchase history.
type TransactionStats struct {
	TotalTransactions      int64 `json:"total_transactions"`
	SuccessfulTransactions int64 `json:"successful_transactions"`
	TotalSpent             int64 `json:"total_spent"`
}
