package services

import (
	"context"
	"sync"

	"github.com/Ananth-NQI/lycapay-backend/internal/models"
)

// fakeReseller is a scripted ResellerAPI.
type fakeReseller struct {
	mu sync.Mutex

	plans       []models.Plan
	plansErr    error
	balance     float64
	balanceErr  error
	subscribers map[string]*SubscriberInfo
	lookupErr   error
	purchaseErr error
	providerRef string
	statuses    map[string]*TransactionStatusResult
	statusErr   error

	bundleCalls  []string
	airtimeCalls []int64
	lookups      int
}

func newFakeReseller() *fakeReseller {
	return &fakeReseller{
		plans: []models.Plan{
			{Name: "Daily 1GB", Price: 1000, Description: "1GB valid for 24 hours", Token: "tok-daily"},
			{Name: "Weekly 5GB", Price: 5000, Description: "5GB valid for 7 days", Token: "tok-weekly"},
			{Name: "Monthly 20GB", Price: 20000, Description: "20GB valid for 30 days", Token: "tok-monthly"},
		},
		balance:     250000,
		subscribers: map[string]*SubscriberInfo{},
		statuses:    map[string]*TransactionStatusResult{},
		providerRef: "AG-0001",
	}
}

func (f *fakeReseller) GetWalletBalance(context.Context) (*WalletBalance, error) {
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return &WalletBalance{Balance: f.balance, Currency: "UGX"}, nil
}

func (f *fakeReseller) GetSubscriptionInfo(_ context.Context, id string) (*SubscriberInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if info, ok := f.subscribers[id]; ok {
		return info, nil
	}
	return &SubscriberInfo{SubscriptionID: id}, nil
}

func (f *fakeReseller) GetBundles(context.Context) ([]models.Plan, error) {
	return f.plans, f.plansErr
}

func (f *fakeReseller) PurchaseBundle(_ context.Context, sub, token, txnID string) (*PurchaseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bundleCalls = append(f.bundleCalls, token)
	if f.purchaseErr != nil {
		return nil, f.purchaseErr
	}
	return &PurchaseResult{ResponseCode: "1", TransactionID: txnID, ProviderTransactionID: f.providerRef}, nil
}

func (f *fakeReseller) PurchaseAirtime(_ context.Context, sub string, amount int64, txnID string) (*PurchaseResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.airtimeCalls = append(f.airtimeCalls, amount)
	if f.purchaseErr != nil {
		return nil, f.purchaseErr
	}
	return &PurchaseResult{ResponseCode: "1", TransactionID: txnID, ProviderTransactionID: f.providerRef}, nil
}

func (f *fakeReseller) CheckTransactionStatus(_ context.Context, txnID, sub string) (*TransactionStatusResult, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if st, ok := f.statuses[txnID]; ok {
		return st, nil
	}
	return &TransactionStatusResult{TransactionID: txnID, TransactionStatus: ProviderStatusPending}, nil
}
