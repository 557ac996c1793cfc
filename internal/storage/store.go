package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Ananth-NQI/lycapay-backend/internal/models"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("duplicate record")
)

// Store defines the interface for storage operations
type Store interface {
	// User operations
	GetOrCreateUser(ctx context.Context, phone string) (*models.User, error)
	TouchUser(ctx context.Context, userID uint, at time.Time) error

	// Session operations
	GetSession(ctx context.Context, userID uint) (*models.Session, error)
	SaveSession(ctx context.Context, session *models.Session) error

	// Saved number operations
	UpsertSavedNumber(ctx context.Context, number *models.SavedNumber) error
	GetSavedNumbers(ctx context.Context, userID uint, limit int) ([]*models.SavedNumber, error)
	CountSavedNumbers(ctx context.Context, userID uint) (int64, error)

	// Transaction operations
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error)
	CompleteTransaction(ctx context.Context, transactionID string, status models.TransactionStatus, outcome models.TransactionOutcome) error
	GetTransactionsByUser(ctx context.Context, userID uint, limit int) ([]*models.Transaction, error)
	GetTransactionStats(ctx context.Context, userID uint) (*models.TransactionStats, error)
	CountRecentTransactions(ctx context.Context, subscriptionID string, since time.Time) (int64, error)
	GetPendingTransactions(ctx context.Context, olderThan time.Time, limit int) ([]*models.Transaction, error)

	// Audit operations
	CreateMessageLog(ctx context.Context, entry *models.MessageLog) error

	Ping(ctx context.Context) error
}
