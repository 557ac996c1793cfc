package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Ananth-NQI/lycapay-backend/internal/models"
)

// MemoryStore holds all data in memory. It is used by tests and local runs
// without a database; records are copied in and out so callers never share state.
type MemoryStore struct {
	users        map[uint]*models.User
	usersByPhone map[string]uint
	sessions     map[uint]*models.Session
	savedNumbers map[uint][]*models.SavedNumber
	transactions map[string]*models.Transaction
	messageLogs  []*models.MessageLog

	// Mutexes for thread safety
	userMu    sync.RWMutex
	sessionMu sync.RWMutex
	numberMu  sync.RWMutex
	txnMu     sync.RWMutex
	logMu     sync.Mutex

	// Counters for ID generation
	userCounter    uint
	sessionCounter uint
	numberCounter  uint
	txnCounter     uint
	logCounter     uint

	now func() time.Time
}

// NewMemoryStore creates a new in-memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[uint]*models.User),
		usersByPhone: make(map[string]uint),
		sessions:     make(map[uint]*models.Session),
		savedNumbers: make(map[uint][]*models.SavedNumber),
		transactions: make(map[string]*models.Transaction),
		now:          time.Now,
	}
}

// SetClock overrides the time source used for timestamps.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.now = now
}

// User operations
func (m *MemoryStore) GetOrCreateUser(_ context.Context, phone string) (*models.User, error) {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	if id, ok := m.usersByPhone[phone]; ok {
		u := *m.users[id]
		return &u, nil
	}

	m.userCounter++
	now := m.now()
	user := &models.User{
		Phone:        phone,
		Status:       models.UserStatusActive,
		LastActiveAt: &now,
	}
	user.ID = m.userCounter
	user.CreatedAt = now
	user.UpdatedAt = now

	m.users[user.ID] = user
	m.usersByPhone[phone] = user.ID
	u := *user
	return &u, nil
}

func (m *MemoryStore) TouchUser(_ context.Context, userID uint, at time.Time) error {
	m.userMu.Lock()
	defer m.userMu.Unlock()

	user, exists := m.users[userID]
	if !exists {
		return ErrNotFound
	}
	user.LastActiveAt = &at
	user.UpdatedAt = at
	return nil
}

// Session operations
func (m *MemoryStore) GetSession(_ context.Context, userID uint) (*models.Session, error) {
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	session, exists := m.sessions[userID]
	if !exists {
		return nil, ErrNotFound
	}
	return copySession(session), nil
}

func (m *MemoryStore) SaveSession(_ context.Context, session *models.Session) error {
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	now := m.now()
	if existing, ok := m.sessions[session.UserID]; ok {
		session.ID = existing.ID
		session.CreatedAt = existing.CreatedAt
	} else {
		m.sessionCounter++
		session.ID = m.sessionCounter
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	m.sessions[session.UserID] = copySession(session)
	return nil
}

func copySession(s *models.Session) *models.Session {
	c := *s
	if s.CurrentAction != nil {
		a := *s.CurrentAction
		c.CurrentAction = &a
	}
	c.Data = append([]byte(nil), s.Data...)
	return &c
}

// Saved number operations
func (m *MemoryStore) UpsertSavedNumber(_ context.Context, number *models.SavedNumber) error {
	m.numberMu.Lock()
	defer m.numberMu.Unlock()

	now := m.now()
	for _, existing := range m.savedNumbers[number.UserID] {
		if existing.SubscriptionID == number.SubscriptionID {
			existing.FirstName = number.FirstName
			existing.LastName = number.LastName
			existing.IsActive = true
			existing.UpdatedAt = now
			*number = *existing
			return nil
		}
	}

	m.numberCounter++
	n := *number
	n.ID = m.numberCounter
	n.IsActive = true
	n.CreatedAt = now
	n.UpdatedAt = now
	m.savedNumbers[number.UserID] = append(m.savedNumbers[number.UserID], &n)
	*number = n
	return nil
}

func (m *MemoryStore) GetSavedNumbers(_ context.Context, userID uint, limit int) ([]*models.SavedNumber, error) {
	m.numberMu.RLock()
	defer m.numberMu.RUnlock()

	var numbers []*models.SavedNumber
	for _, n := range m.savedNumbers[userID] {
		if n.IsActive {
			c := *n
			numbers = append(numbers, &c)
		}
	}
	sort.SliceStable(numbers, func(i, j int) bool {
		if numbers[i].IsPrimary != numbers[j].IsPrimary {
			return numbers[i].IsPrimary
		}
		if !numbers[i].UpdatedAt.Equal(numbers[j].UpdatedAt) {
			return numbers[i].UpdatedAt.After(numbers[j].UpdatedAt)
		}
		return numbers[i].ID > numbers[j].ID
	})
	if limit > 0 && len(numbers) > limit {
		numbers = numbers[:limit]
	}
	return numbers, nil
}

func (m *MemoryStore) CountSavedNumbers(_ context.Context, userID uint) (int64, error) {
	m.numberMu.RLock()
	defer m.numberMu.RUnlock()

	var count int64
	for _, n := range m.savedNumbers[userID] {
		if n.IsActive {
			count++
		}
	}
	return count, nil
}

// Transaction operations
func (m *MemoryStore) CreateTransaction(_ context.Context, txn *models.Transaction) error {
	m.txnMu.Lock()
	defer m.txnMu.Unlock()

	if _, exists := m.transactions[txn.TransactionID]; exists {
		return fmt.Errorf("%w: transaction %s", ErrDuplicate, txn.TransactionID)
	}

	m.txnCounter++
	now := m.now()
	txn.ID = m.txnCounter
	txn.CreatedAt = now
	txn.UpdatedAt = now
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}
	c := *txn
	m.transactions[txn.TransactionID] = &c
	return nil
}

func (m *MemoryStore) GetTransaction(_ context.Context, transactionID string) (*models.Transaction, error) {
	m.txnMu.RLock()
	defer m.txnMu.RUnlock()

	txn, exists := m.transactions[transactionID]
	if !exists {
		return nil, ErrNotFound
	}
	c := *txn
	return &c, nil
}

func (m *MemoryStore) CompleteTransaction(_ context.Context, transactionID string, status models.TransactionStatus, outcome models.TransactionOutcome) error {
	m.txnMu.Lock()
	defer m.txnMu.Unlock()

	txn, exists := m.transactions[transactionID]
	if !exists || txn.Status != models.TransactionStatusPending {
		return fmt.Errorf("pending transaction %s: %w", transactionID, ErrNotFound)
	}

	txn.Status = status
	completed := outcome.CompletedAt
	txn.CompletedAt = &completed
	txn.UpdatedAt = m.now()
	if outcome.ProviderTransactionID != "" {
		v := outcome.ProviderTransactionID
		txn.ProviderTransactionID = &v
	}
	if outcome.ErrorCode != "" {
		v := outcome.ErrorCode
		txn.ErrorCode = &v
	}
	if outcome.ErrorMessage != "" {
		v := outcome.ErrorMessage
		txn.ErrorMessage = &v
	}
	return nil
}

// sortedTransactions returns copies matching keep, newest first.
func (m *MemoryStore) sortedTransactions(keep func(*models.Transaction) bool) []*models.Transaction {
	var txns []*models.Transaction
	for _, t := range m.transactions {
		if keep(t) {
			c := *t
			txns = append(txns, &c)
		}
	}
	sort.Slice(txns, func(i, j int) bool {
		if !txns[i].CreatedAt.Equal(txns[j].CreatedAt) {
			return txns[i].CreatedAt.After(txns[j].CreatedAt)
		}
		return txns[i].ID > txns[j].ID
	})
	return txns
}

func (m *MemoryStore) GetTransactionsByUser(_ context.Context, userID uint, limit int) ([]*models.Transaction, error) {
	m.txnMu.RLock()
	defer m.txnMu.RUnlock()

	txns := m.sortedTransactions(func(t *models.Transaction) bool { return t.UserID == userID })
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

func (m *MemoryStore) GetTransactionStats(_ context.Context, userID uint) (*models.TransactionStats, error) {
	m.txnMu.RLock()
	defer m.txnMu.RUnlock()

	stats := &models.TransactionStats{}
	for _, t := range m.transactions {
		if t.UserID != userID {
			continue
		}
		stats.TotalTransactions++
		if t.Status == models.TransactionStatusSuccess {
			stats.SuccessfulTransactions++
			stats.TotalSpent += t.Amount
		}
	}
	return stats, nil
}

func (m *MemoryStore) CountRecentTransactions(_ context.Context, subscriptionID string, since time.Time) (int64, error) {
	m.txnMu.RLock()
	defer m.txnMu.RUnlock()

	var count int64
	for _, t := range m.transactions {
		if t.SubscriptionID == subscriptionID && t.Status != models.TransactionStatusFailed && !t.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) GetPendingTransactions(_ context.Context, olderThan time.Time, limit int) ([]*models.Transaction, error) {
	m.txnMu.RLock()
	defer m.txnMu.RUnlock()

	txns := m.sortedTransactions(func(t *models.Transaction) bool {
		return t.Status == models.TransactionStatusPending && t.CreatedAt.Before(olderThan)
	})
	// oldest first
	for i, j := 0, len(txns)-1; i < j; i, j = i+1, j-1 {
		txns[i], txns[j] = txns[j], txns[i]
	}
	if limit > 0 && len(txns) > limit {
		txns = txns[:limit]
	}
	return txns, nil
}

// Audit operations
func (m *MemoryStore) CreateMessageLog(_ context.Context, entry *models.MessageLog) error {
	m.logMu.Lock()
	defer m.logMu.Unlock()

	m.logCounter++
	entry.ID = m.logCounter
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now()
	}
	c := *entry
	m.messageLogs = append(m.messageLogs, &c)
	return nil
}

// MessageLogs returns a snapshot of the audit trail.
func (m *MemoryStore) MessageLogs() []models.MessageLog {
	m.logMu.Lock()
	defer m.logMu.Unlock()

	logs := make([]models.MessageLog, 0, len(m.messageLogs))
	for _, l := range m.messageLogs {
		logs = append(logs, *l)
	}
	return logs
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
