package metrics

import (
	"context"
	"sync"

	"github.com/likecodingloveproblems/matchticketselling/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// Reservation counters
	SeatsClaimed   *telemetry.Counter
	SeatsReleased  *telemetry.Counter
	ClaimConflicts *telemetry.Counter
	ClaimFailures  *telemetry.Counter

	// Invoice counters
	InvoicesPaid    *telemetry.Counter
	InvoicesExpired *telemetry.Counter
	ItemsExpired    *telemetry.Counter

	// Histograms
	RequestDuration *telemetry.Histogram
	SweepDuration   *telemetry.Histogram

	// Gauges
	PendingInvoices *telemetry.UpDownCounter

	initOnce sync.Once
	initErr  error
)

// Init initializes all reservation metrics
func Init() error {
	initOnce.Do(func() {
		initErr = initMetrics()
	})
	return initErr
}

func initMetrics() error {
	var err error

	SeatsClaimed, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "ticket_seats_claimed_total",
		Description: "Total number of seats claimed onto invoices",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	SeatsReleased, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "ticket_seats_released_total",
		Description: "Total number of seats released back to inventory",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ClaimConflicts, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "ticket_claim_conflicts_total",
		Description: "Total number of claims rejected because the seat was taken",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ClaimFailures, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "ticket_claim_failures_total",
		Description: "Total number of claims aborted by lock contention",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	InvoicesPaid, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "ticket_invoices_paid_total",
		Description: "Total number of invoices paid",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	InvoicesExpired, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "ticket_invoices_swept_total",
		Description: "Total number of invoices touched by the expiry sweep",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	ItemsExpired, err = telemetry.NewCounter(telemetry.MetricOpts{
		Name:        "ticket_items_expired_total",
		Description: "Total number of invoice items expired by the sweep",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	RequestDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "ticket_request_duration_seconds",
		Description: "HTTP request duration in seconds",
		Unit:        "s",
	}, []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10})
	if err != nil {
		return err
	}

	SweepDuration, err = telemetry.NewHistogramWithBuckets(telemetry.MetricOpts{
		Name:        "ticket_sweep_duration_seconds",
		Description: "Duration of one expiry sweep pass",
		Unit:        "s",
	}, []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60})
	if err != nil {
		return err
	}

	PendingInvoices, err = telemetry.NewUpDownCounter(telemetry.MetricOpts{
		Name:        "ticket_pending_invoices",
		Description: "Current number of pending invoices",
		Unit:        "1",
	})
	if err != nil {
		return err
	}

	return nil
}

// RecordClaim records a successful seat claim
func RecordClaim(ctx context.Context, matchID string) {
	if SeatsClaimed != nil {
		SeatsClaimed.Inc(ctx, attribute.String("match_id", matchID))
	}
}

// RecordClaimConflict records a claim rejected because the seat was taken
func RecordClaimConflict(ctx context.Context, matchID string) {
	if ClaimConflicts != nil {
		ClaimConflicts.Inc(ctx, attribute.String("match_id", matchID))
	}
}

// RecordClaimFailure records a claim aborted by lock contention
func RecordClaimFailure(ctx context.Context) {
	if ClaimFailures != nil {
		ClaimFailures.Inc(ctx)
	}
}

// RecordRelease records seats released back to inventory
func RecordRelease(ctx context.Context, count int64) {
	if SeatsReleased != nil && count > 0 {
		SeatsReleased.Add(ctx, count)
	}
}

// RecordPayment records a paid invoice
func RecordPayment(ctx context.Context, total int64) {
	if InvoicesPaid != nil {
		InvoicesPaid.Inc(ctx, attribute.Int64("total_price", total))
	}
}

// RecordSweep records the outcome of one expiry sweep pass
func RecordSweep(ctx context.Context, invoices, items, seats int64, durationSeconds float64) {
	if InvoicesExpired != nil && invoices > 0 {
		InvoicesExpired.Add(ctx, invoices)
	}
	if ItemsExpired != nil && items > 0 {
		ItemsExpired.Add(ctx, items)
	}
	RecordRelease(ctx, seats)
	if SweepDuration != nil {
		SweepDuration.Record(ctx, durationSeconds)
	}
}
