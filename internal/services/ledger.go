package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ananth-NQI/lycapay-backend/internal/logging"
	"github.com/Ananth-NQI/lycapay-backend/internal/models"
	"github.com/Ananth-NQI/lycapay-backend/internal/storage"
)

// DefaultHistoryLimit is how many transactions a history request returns.
const DefaultHistoryLimit = 10

// NewTransaction describes a purchase about to be attempted.
type NewTransaction struct {
	UserID         uint
	Type           models.TransactionType
	Amount         int64
	SubscriptionID string
	TransactionID  string
	Metadata       models.TransactionMetadata
}

// Ledger records purchase attempts and their outcomes.
type Ledger struct {
	store storage.Store
	now   func() time.Time
	log   *logrus.Entry
}

// NewLedger creates a ledger on top of the given storage.
func NewLedger(store storage.Store) *Ledger {
	return &Ledger{
		store: store,
		now:   time.Now,
		log:   logging.WithComponent("ledger"),
	}
}

// Create writes a pending transaction. Errors propagate: a purchase must not be
// attempted without this record.
func (l *Ledger) Create(ctx context.Context, in NewTransaction) (*models.Transaction, error) {
	meta, err := json.Marshal(in.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode transaction metadata: %w", err)
	}

	txn := &models.Transaction{
		TransactionID:  in.TransactionID,
		UserID:         in.UserID,
		Type:           in.Type,
		Amount:         in.Amount,
		SubscriptionID: in.SubscriptionID,
		Status:         models.TransactionStatusPending,
		Metadata:       meta,
	}
	if in.Metadata.BundleToken != "" {
		token := in.Metadata.BundleToken
		txn.BundleToken = &token
	}

	if err := l.store.CreateTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("create transaction %s: %w", in.TransactionID, err)
	}

	l.log.WithFields(logrus.Fields{
		"transaction_id": txn.TransactionID,
		"type":           txn.Type,
		"amount":         txn.Amount,
	}).Info("Transaction created")
	return txn, nil
}

// UpdateStatus moves a pending transaction to a terminal status. Failures are
// logged and swallowed.
func (l *Ledger) UpdateStatus(ctx context.Context, transactionID string, status models.TransactionStatus, outcome models.TransactionOutcome) {
	if outcome.CompletedAt.IsZero() {
		outcome.CompletedAt = l.now()
	}
	if status == models.TransactionStatusFailed && outcome.ErrorMessage == "" {
		outcome.ErrorMessage = MsgUnexpectedError
	}

	entry := l.log.WithFields(logrus.Fields{
		"transaction_id": transactionID,
		"status":         status,
	})
	if err := l.store.CompleteTransaction(ctx, transactionID, status, outcome); err != nil {
		entry.WithError(err).Error("Failed to update transaction status")
		return
	}
	entry.Info("Transaction updated")
}

// MarkSuccess records a provider-confirmed purchase.
func (l *Ledger) MarkSuccess(ctx context.Context, transactionID, providerRef string) {
	l.UpdateStatus(ctx, transactionID, models.TransactionStatusSuccess, models.TransactionOutcome{
		ProviderTransactionID: providerRef,
	})
}

// MarkFailed records a failed purchase with a readable reason.
func (l *Ledger) MarkFailed(ctx context.Context, transactionID, code, reason string) {
	l.UpdateStatus(ctx, transactionID, models.TransactionStatusFailed, models.TransactionOutcome{
		ErrorCode:    code,
		ErrorMessage: reason,
	})
}

// History returns the user's most recent transactions, newest first.
func (l *Ledger) History(ctx context.Context, userID uint, limit int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return l.store.GetTransactionsByUser(ctx, userID, limit)
}

// Stats aggregates the user's transactions; spend counts successful ones only.
func (l *Ledger) Stats(ctx context.Context, userID uint) (*models.TransactionStats, error) {
	return l.store.GetTransactionStats(ctx, userID)
}

// Metadata decodes the display metadata stored with a transaction.
func Metadata(txn *models.Transaction) models.TransactionMetadata {
	var meta models.TransactionMetadata
	if len(txn.Metadata) > 0 {
		_ = json.Unmarshal(txn.Metadata, &meta)
	}
	return meta
}
