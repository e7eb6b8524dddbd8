package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
	"github.com/likecodingloveproblems/matchticketselling/internal/metrics"
	"github.com/likecodingloveproblems/matchticketselling/internal/repository"
	"github.com/likecodingloveproblems/matchticketselling/internal/service"
	"github.com/likecodingloveproblems/matchticketselling/pkg/logger"
)

// ExpiryWorkerConfig contains configuration for the expiry worker
type ExpiryWorkerConfig struct {
	// HoldTimeout is how long an unpaid seat hold survives
	HoldTimeout time.Duration
	// SweepInterval is the interval between sweeps
	SweepInterval time.Duration
	// BatchSize is the number of invoices to process in each sweep
	BatchSize int
	// DeleteEmptiedInvoices removes an invoice whose holds all expired
	DeleteEmptiedInvoices bool
}

// DefaultExpiryWorkerConfig returns default configuration
func DefaultExpiryWorkerConfig() *ExpiryWorkerConfig {
	return &ExpiryWorkerConfig{
		HoldTimeout:   10 * time.Minute,
		SweepInterval: 5 * time.Minute,
		BatchSize:     100,
	}
}

// ExpiryWorker periodically expires stale seat holds. Each invoice is
// swept in its own transaction, so one failing invoice does not block
// the rest of the batch.
type ExpiryWorker struct {
	store          repository.ReservationStore
	eventPublisher service.EventPublisher
	config         *ExpiryWorkerConfig
	log            *logger.Logger
	now            func() time.Time
	stopCh         chan struct{}
	wg             sync.WaitGroup
	mu             sync.Mutex
	running        bool

	// Stats
	totalInvoicesSwept int64
	totalItemsExpired  int64
	totalSeatsReleased int64
	lastSweepTime      time.Time
	lastSweptCount     int
}

// NewExpiryWorker creates a new expiry worker
func NewExpiryWorker(store repository.ReservationStore, eventPublisher service.EventPublisher, config *ExpiryWorkerConfig) *ExpiryWorker {
	if config == nil {
		config = DefaultExpiryWorkerConfig()
	}
	if config.HoldTimeout <= 0 {
		config.HoldTimeout = 10 * time.Minute
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = 5 * time.Minute
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if eventPublisher == nil {
		eventPublisher = service.NewNoOpEventPublisher()
	}

	return &ExpiryWorker{
		store:          store,
		eventPublisher: eventPublisher,
		config:         config,
		log:            logger.Get(),
		now:            time.Now,
		stopCh:         make(chan struct{}),
	}
}

// Start starts the expiry worker
func (w *ExpiryWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry worker already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting expiry worker")

	w.wg.Add(1)
	go w.sweepLoop(ctx)

	return nil
}

// Stop stops the expiry worker
func (w *ExpiryWorker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping expiry worker")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Expiry worker stopped")
}

// sweepLoop runs one sweep immediately, then one per interval
func (w *ExpiryWorker) sweepLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep expires all stale holds visible at the time of the call.
// Exported so a scheduler or test can trigger a pass directly.
func (w *ExpiryWorker) Sweep(ctx context.Context) {
	started := w.now()
	cutoff := started.UTC().Add(-w.config.HoldTimeout)

	w.mu.Lock()
	w.lastSweepTime = started
	w.mu.Unlock()

	invoiceIDs, err := w.store.ListExpirableInvoices(ctx, cutoff, w.config.BatchSize)
	if err != nil {
		w.log.Error(fmt.Sprintf("Failed to list expirable invoices: %v", err))
		return
	}
	if len(invoiceIDs) == 0 {
		return
	}

	w.log.Info(fmt.Sprintf("Found %d invoices with stale holds to sweep", len(invoiceIDs)))

	var sweptInvoices, expiredItems, releasedSeats int64
	for _, invoiceID := range invoiceIDs {
		result, err := w.expireInvoice(ctx, invoiceID, cutoff)
		if err != nil {
			w.log.Error(fmt.Sprintf("Failed to sweep invoice %s: %v", invoiceID, err))
			continue
		}
		if result.ItemsExpired == 0 {
			continue
		}
		sweptInvoices++
		expiredItems += int64(result.ItemsExpired)
		releasedSeats += int64(result.SeatsReleased)
	}

	w.mu.Lock()
	w.totalInvoicesSwept += sweptInvoices
	w.totalItemsExpired += expiredItems
	w.totalSeatsReleased += releasedSeats
	w.lastSweptCount = int(sweptInvoices)
	w.mu.Unlock()

	metrics.RecordSweep(ctx, sweptInvoices, expiredItems, releasedSeats, w.now().Sub(started).Seconds())
}

// expireInvoice sweeps a single invoice in its own transaction
func (w *ExpiryWorker) expireInvoice(ctx context.Context, invoiceID string, cutoff time.Time) (*repository.InvoiceSweepResult, error) {
	result, err := w.store.ExpireInvoiceItems(ctx, invoiceID, cutoff, w.config.DeleteEmptiedInvoices)
	if err != nil {
		return nil, err
	}

	if result.ItemsExpired > 0 {
		w.log.Info(fmt.Sprintf("Swept invoice %s: %d items expired, %d seats released, new total %d",
			invoiceID, result.ItemsExpired, result.SeatsReleased, result.NewTotal))

		event := domain.NewInvoiceEvent(domain.InvoiceEventExpired, invoiceID, "", "")
		event.TotalPrice = result.NewTotal
		if err := w.eventPublisher.PublishInvoiceExpired(ctx, event); err != nil {
			w.log.Warn(fmt.Sprintf("Failed to publish invoice expired event for %s: %v", invoiceID, err))
		}
	}

	return result, nil
}

// GetStats returns worker statistics
func (w *ExpiryWorker) GetStats() *ExpiryWorkerStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &ExpiryWorkerStats{
		IsRunning:          w.running,
		TotalInvoicesSwept: w.totalInvoicesSwept,
		TotalItemsExpired:  w.totalItemsExpired,
		TotalSeatsReleased: w.totalSeatsReleased,
		LastSweepTime:      w.lastSweepTime,
		LastSweptCount:     w.lastSweptCount,
	}
}

// ExpiryWorkerStats contains worker statistics
type ExpiryWorkerStats struct {
	IsRunning          bool      `json:"is_running"`
	TotalInvoicesSwept int64     `json:"total_invoices_swept"`
	TotalItemsExpired  int64     `json:"total_items_expired"`
	TotalSeatsReleased int64     `json:"total_seats_released"`
	LastSweepTime      time.Time `json:"last_sweep_time"`
	LastSweptCount     int       `json:"last_swept_count"`
}
