package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ananth-NQI/lycapay-backend/internal/logging"
	"github.com/Ananth-NQI/lycapay-backend/internal/models"
	"github.com/Ananth-NQI/lycapay-backend/internal/services"
	"github.com/Ananth-NQI/lycapay-backend/internal/storage"
)

const reconcileBatchSize = 50

// ReconcileJob settles transactions left pending, e.g. after a crash between
// the reseller call and the ledger update.
type ReconcileJob struct {
	store    storage.Store
	api      services.ResellerAPI
	ledger   *services.Ledger
	interval time.Duration
	age      time.Duration
	now      func() time.Time
	log      *logrus.Entry

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewReconcileJob creates the job. interval is how often it runs, age how old a
// pending transaction must be before the provider is asked about it.
func NewReconcileJob(store storage.Store, api services.ResellerAPI, ledger *services.Ledger, interval, age time.Duration) *ReconcileJob {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if age <= 0 {
		age = 10 * time.Minute
	}
	return &ReconcileJob{
		store:    store,
		api:      api,
		ledger:   ledger,
		interval: interval,
		age:      age,
		now:      time.Now,
		log:      logging.WithComponent("reconcile"),
	}
}

// Start runs the job in the background until Stop is called.
func (j *ReconcileJob) Start() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.cancel != nil {
		j.log.Info("Reconcile job already running")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	j.cancel = cancel
	j.stopped = make(chan struct{})

	go j.loop(ctx, j.stopped)
	j.log.WithField("interval", j.interval).Info("🔄 Reconcile job started")
}

// Stop halts the job and waits for an in-flight run to finish.
func (j *ReconcileJob) Stop() {
	j.mu.Lock()
	cancel, stopped := j.cancel, j.stopped
	j.cancel = nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-stopped
	j.log.Info("Reconcile job stopped")
}

func (j *ReconcileJob) loop(ctx context.Context, stopped chan struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := j.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				j.log.WithError(err).Error("Reconcile run failed")
			}
		}
	}
}

// RunOnce checks one batch of stale pending transactions and returns how many
// were settled.
func (j *ReconcileJob) RunOnce(ctx context.Context) (int, error) {
	pending, err := j.store.GetPendingTransactions(ctx, j.now().Add(-j.age), reconcileBatchSize)
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, txn := range pending {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		if j.settle(ctx, txn) {
			settled++
		}
	}

	if len(pending) > 0 {
		j.log.WithFields(logrus.Fields{"checked": len(pending), "settled": settled}).Info("Reconcile run finished")
	}
	return settled, nil
}

func (j *ReconcileJob) settle(ctx context.Context, txn *models.Transaction) bool {
	entry := j.log.WithField("transaction_id", txn.TransactionID)

	result, err := j.api.CheckTransactionStatus(ctx, txn.TransactionID, txn.SubscriptionID)
	if err != nil {
		var apiErr *services.APIError
		var transportErr *services.TransportError
		if errors.As(err, &apiErr) && !errors.As(err, &transportErr) {
			j.ledger.MarkFailed(ctx, txn.TransactionID, apiErr.Code, apiErr.Message)
			return true
		}
		entry.WithError(err).Warn("Status check failed, will retry next run")
		return false
	}

	switch result.TransactionStatus {
	case services.ProviderStatusSuccess:
		ref := result.ProviderTransactionID
		j.ledger.MarkSuccess(ctx, txn.TransactionID, ref)
		return true
	case services.ProviderStatusFailed:
		code := string(result.FailureCode)
		j.ledger.MarkFailed(ctx, txn.TransactionID, code, services.TranslateErrorCode(code))
		return true
	}
	entry.WithField("provider_status", result.TransactionStatus).Debug("Still pending at provider")
	return false
}
