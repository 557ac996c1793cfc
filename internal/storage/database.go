package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ananth-NQI/lycapay-backend/internal/models"
)

// DatabaseStore implements Store on PostgreSQL through gorm.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore wraps an open gorm connection.
func NewDatabaseStore(db *gorm.DB) *DatabaseStore {
	return &DatabaseStore{db: db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// limitTo applies a LIMIT only for positive values.
func limitTo(limit int) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if limit > 0 {
			return db.Limit(limit)
		}
		return db
	}
}

// User operations
func (d *DatabaseStore) GetOrCreateUser(ctx context.Context, phone string) (*models.User, error) {
	user := models.User{Phone: phone}
	err := d.db.WithContext(ctx).
		Where(models.User{Phone: phone}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("get or create user %s: %w", phone, translate(err))
	}
	return &user, nil
}

func (d *DatabaseStore) TouchUser(ctx context.Context, userID uint, at time.Time) error {
	return translate(d.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_active_at", at).Error)
}

// Session operations
func (d *DatabaseStore) GetSession(ctx context.Context, userID uint) (*models.Session, error) {
	var session models.Session
	err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// SaveSession inserts the user's session or overwrites the existing row in place.
func (d *DatabaseStore) SaveSession(ctx context.Context, session *models.Session) error {
	db := d.db.WithContext(ctx)
	if session.ID != 0 {
		return translate(db.Save(session).Error)
	}
	return translate(db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "current_action", "data", "expires_at", "updated_at"}),
	}).Create(session).Error)
}

// Saved number operations
func (d *DatabaseStore) UpsertSavedNumber(ctx context.Context, number *models.SavedNumber) error {
	number.IsActive = true
	return translate(d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "subscription_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"first_name", "last_name", "is_active", "updated_at"}),
	}).Create(number).Error)
}

func (d *DatabaseStore) GetSavedNumbers(ctx context.Context, userID uint, limit int) ([]*models.SavedNumber, error) {
	var numbers []*models.SavedNumber
	err := d.db.WithContext(ctx).
		Where("user_id = ? AND is_active = ?", userID, true).
		Order("is_primary DESC").
		Order("updated_at DESC").
		Scopes(limitTo(limit)).
		Find(&numbers).Error
	return numbers, translate(err)
}

func (d *DatabaseStore) CountSavedNumbers(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.SavedNumber{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return count, translate(err)
}

// Transaction operations
func (d *DatabaseStore) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}
	return translate(d.db.WithContext(ctx).Create(txn).Error)
}

func (d *DatabaseStore) GetTransaction(ctx context.Context, transactionID string) (*models.Transaction, error) {
	var txn models.Transaction
	err := d.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&txn).Error
	if err != nil {
		return nil, translate(err)
	}
	return &txn, nil
}

// CompleteTransaction moves a pending transaction to a terminal status. Rows that
// are already terminal are left alone and reported as ErrNotFound.
func (d *DatabaseStore) CompleteTransaction(ctx context.Context, transactionID string, status models.TransactionStatus, outcome models.TransactionOutcome) error {
	updates := map[string]interface{}{
		"status":       status,
		"completed_at": outcome.CompletedAt,
	}
	if outcome.ProviderTransactionID != "" {
		updates["provider_transaction_id"] = outcome.ProviderTransactionID
	}
	if outcome.ErrorCode != "" {
		updates["error_code"] = outcome.ErrorCode
	}
	if outcome.ErrorMessage != "" {
		updates["error_message"] = outcome.ErrorMessage
	}

	res := d.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("transaction_id = ? AND status = ?", transactionID, models.TransactionStatusPending).
		Updates(updates)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("pending transaction %s: %w", transactionID, ErrNotFound)
	}
	return nil
}

func (d *DatabaseStore) GetTransactionsByUser(ctx context.Context, userID uint, limit int) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	err := d.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Scopes(limitTo(limit)).
		Find(&txns).Error
	return txns, translate(err)
}

func (d *DatabaseStore) GetTransactionStats(ctx context.Context, userID uint) (*models.TransactionStats, error) {
	var stats models.TransactionStats
	err := d.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select(`COUNT(*) AS total_transactions,
			COUNT(*) FILTER (WHERE status = ?) AS successful_transactions,
			COALESCE(SUM(amount) FILTER (WHERE status = ?), 0) AS total_spent`,
			models.TransactionStatusSuccess, models.TransactionStatusSuccess).
		Where("user_id = ?", userID).
		Scan(&stats).Error
	if err != nil {
		return nil, translate(err)
	}
	return &stats, nil
}

// CountRecentTransactions counts non-failed purchases for a number since the given time.
func (d *DatabaseStore) CountRecentTransactions(ctx context.Context, subscriptionID string, since time.Time) (int64, error) {
	var count int64
	err := d.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("subscription_id = ? AND status <> ? AND created_at >= ?", subscriptionID, models.TransactionStatusFailed, since).
		Count(&count).Error
	return count, translate(err)
}

func (d *DatabaseStore) GetPendingTransactions(ctx context.Context, olderThan time.Time, limit int) ([]*models.Transaction, error) {
	var txns []*models.Transaction
	err := d.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", models.TransactionStatusPending, olderThan).
		Order("created_at ASC").
		Scopes(limitTo(limit)).
		Find(&txns).Error
	return txns, translate(err)
}

// Audit operations
func (d *DatabaseStore) CreateMessageLog(ctx context.Context, entry *models.MessageLog) error {
	return translate(d.db.WithContext(ctx).Create(entry).Error)
}

func (d *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
