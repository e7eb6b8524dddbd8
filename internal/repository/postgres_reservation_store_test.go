package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
	"github.com/likecodingloveproblems/matchticketselling/migrations"
)

func skipIfNoIntegration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run.")
	}
}

// getPostgresPool creates a PostgreSQL connection pool for testing
func getPostgresPool(t *testing.T) *pgxpool.Pool {
	skipIfNoIntegration(t)

	host := os.Getenv("TEST_POSTGRES_HOST")
	if host == "" {
		host = "localhost"
	}

	port := os.Getenv("TEST_POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}

	user := os.Getenv("TEST_POSTGRES_USER")
	if user == "" {
		user = "postgres"
	}

	password := os.Getenv("TEST_POSTGRES_PASSWORD")
	if password == "" {
		password = "postgres"
	}

	dbname := os.Getenv("TEST_POSTGRES_DB")
	if dbname == "" {
		dbname = "matchticketselling_test"
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		user, password, host, port, dbname)

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to create PostgreSQL pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping PostgreSQL: %v", err)
	}

	if err := migrations.Apply(ctx, pool); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	cleanupTestData(t, pool)

	return pool
}

func cleanupTestData(t *testing.T, pool *pgxpool.Pool) {
	ctx := context.Background()
	// Clean up in reverse order of dependencies
	tables := []string{
		"invoice_items",
		"invoices",
		"seats",
		"matches",
	}
	for _, table := range tables {
		if _, err := pool.Exec(ctx, "DELETE FROM "+table); err != nil {
			t.Fatalf("Failed to clean table %s: %v", table, err)
		}
	}
}

func createTestMatch(t *testing.T, pool *pgxpool.Pool, capacity int, price int64) (*domain.Match, []domain.Seat) {
	t.Helper()

	repo := NewPostgresMatchRepository(pool)
	match := &domain.Match{
		HostTeam:  "Persepolis",
		GuestTeam: "Esteghlal",
		Stadium:   fmt.Sprintf("Azadi-%d", time.Now().UnixNano()),
		StartsAt:  time.Now().UTC().Add(24 * time.Hour).Truncate(time.Second),
		SeatPrice: price,
		Capacity:  capacity,
	}
	if err := repo.Create(context.Background(), match); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	seats, err := repo.ListSeats(context.Background(), match.ID)
	if err != nil {
		t.Fatalf("ListSeats() error = %v", err)
	}
	return match, seats
}

func TestPostgresMatchRepository_CreateAndList(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	match, seats := createTestMatch(t, pool, 10, 1500)

	if len(seats) != 10 {
		t.Fatalf("got %d seats, want 10", len(seats))
	}
	for i, seat := range seats {
		if seat.Number != i+1 || seat.Price != 1500 || seat.IsReserved {
			t.Errorf("seat[%d] = %+v", i, seat)
		}
	}

	repo := NewPostgresMatchRepository(pool)
	got, err := repo.GetByID(context.Background(), match.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Stadium != match.Stadium {
		t.Errorf("Stadium = %s, want %s", got.Stadium, match.Stadium)
	}

	// Same stadium, same slot
	conflicting := &domain.Match{
		HostTeam:  "Sepahan",
		GuestTeam: "Tractor",
		Stadium:   match.Stadium,
		StartsAt:  match.StartsAt.Add(30 * time.Minute),
		SeatPrice: 1000,
		Capacity:  5,
	}
	if err := repo.Create(context.Background(), conflicting); !errors.Is(err, domain.ErrStadiumMatchConflict) {
		t.Errorf("Create() conflicting error = %v, want ErrStadiumMatchConflict", err)
	}
}

func TestPostgresReservationStore_AddPayFlow(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	_, seats := createTestMatch(t, pool, 3, 1500)
	store := NewPostgresReservationStore(pool)
	ctx := context.Background()

	first, err := store.AddItem(ctx, AddItemParams{BuyerID: "buyer-1", SeatID: seats[0].ID, FullName: "Ali Karimi"})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	second, err := store.AddItem(ctx, AddItemParams{BuyerID: "buyer-1", SeatID: seats[1].ID, FullName: "Ali Karimi"})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	if second.InvoiceID != first.InvoiceID {
		t.Errorf("claims split across invoices: %s != %s", second.InvoiceID, first.InvoiceID)
	}
	if second.Total != 3000 {
		t.Errorf("Total = %d, want 3000", second.Total)
	}

	if _, err := store.AddItem(ctx, AddItemParams{BuyerID: "buyer-2", SeatID: seats[0].ID, FullName: "X"}); !errors.Is(err, domain.ErrSeatAlreadyReserved) {
		t.Errorf("AddItem() taken seat error = %v, want ErrSeatAlreadyReserved", err)
	}

	invoice, err := store.PayInvoice(ctx, first.InvoiceID, "buyer-1", time.Now().UTC())
	if err != nil {
		t.Fatalf("PayInvoice() error = %v", err)
	}
	if invoice.Status != domain.InvoiceStatusPaid || invoice.TotalPrice != 3000 {
		t.Errorf("paid invoice = %+v", invoice)
	}

	if _, err := store.PayInvoice(ctx, first.InvoiceID, "buyer-1", time.Now().UTC()); !errors.Is(err, domain.ErrInvoiceNotFound) {
		t.Errorf("PayInvoice() again error = %v, want ErrInvoiceNotFound", err)
	}
}

func TestPostgresReservationStore_ConcurrentClaim(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	_, seats := createTestMatch(t, pool, 1, 1000)
	store := NewPostgresReservationStore(pool)
	ctx := context.Background()

	const claimants = 10
	errs := make([]error, claimants)
	var wg sync.WaitGroup
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.AddItem(ctx, AddItemParams{
				BuyerID:  fmt.Sprintf("buyer-%d", i),
				SeatID:   seats[0].ID,
				FullName: "Racer",
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for i, err := range errs {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, domain.ErrSeatAlreadyReserved), errors.Is(err, domain.ErrProcessFailed):
		default:
			t.Errorf("claim %d: unexpected error %v", i, err)
		}
	}
	if winners != 1 {
		t.Errorf("%d claims won the seat, want exactly 1", winners)
	}
}

func TestPostgresReservationStore_RemoveItem(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	_, seats := createTestMatch(t, pool, 2, 1000)
	store := NewPostgresReservationStore(pool)
	ctx := context.Background()

	first, err := store.AddItem(ctx, AddItemParams{BuyerID: "buyer-1", SeatID: seats[0].ID, FullName: "A"})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	if err := store.RemoveItem(ctx, first.Item.ID, "intruder"); !errors.Is(err, domain.ErrNotInvoiceOwner) {
		t.Errorf("RemoveItem() error = %v, want ErrNotInvoiceOwner", err)
	}

	// Removing the only item deletes the invoice and frees the seat
	if err := store.RemoveItem(ctx, first.Item.ID, "buyer-1"); err != nil {
		t.Fatalf("RemoveItem() error = %v", err)
	}
	if _, err := store.GetInvoice(ctx, first.InvoiceID, "buyer-1"); !errors.Is(err, domain.ErrInvoiceNotFound) {
		t.Errorf("GetInvoice() error = %v, want ErrInvoiceNotFound", err)
	}

	retry, err := store.AddItem(ctx, AddItemParams{BuyerID: "buyer-2", SeatID: seats[0].ID, FullName: "B"})
	if err != nil {
		t.Fatalf("AddItem() released seat error = %v", err)
	}
	if retry.Seat.FullName != "B" {
		t.Errorf("reclaimed seat = %+v", retry.Seat)
	}
}

func TestPostgresReservationStore_Sweep(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	clock := base
	_, seats := createTestMatch(t, pool, 2, 1000)
	store := NewPostgresReservationStore(pool, WithPostgresClock(func() time.Time { return clock }))
	ctx := context.Background()

	stale, err := store.AddItem(ctx, AddItemParams{BuyerID: "buyer-1", SeatID: seats[0].ID, FullName: "A"})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	clock = base.Add(20 * time.Minute)
	if _, err := store.AddItem(ctx, AddItemParams{BuyerID: "buyer-1", SeatID: seats[1].ID, FullName: "A"}); err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	cutoff := base.Add(10 * time.Minute)

	ids, err := store.ListExpirableInvoices(ctx, cutoff, 100)
	if err != nil {
		t.Fatalf("ListExpirableInvoices() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != stale.InvoiceID {
		t.Fatalf("ListExpirableInvoices() = %v, want [%s]", ids, stale.InvoiceID)
	}

	result, err := store.ExpireInvoiceItems(ctx, stale.InvoiceID, cutoff, false)
	if err != nil {
		t.Fatalf("ExpireInvoiceItems() error = %v", err)
	}
	if result.ItemsExpired != 1 || result.SeatsReleased != 1 || result.NewTotal != 1000 {
		t.Errorf("sweep = %+v", result)
	}

	// Idempotent
	again, err := store.ExpireInvoiceItems(ctx, stale.InvoiceID, cutoff, false)
	if err != nil {
		t.Fatalf("ExpireInvoiceItems() again error = %v", err)
	}
	if again.ItemsExpired != 0 {
		t.Errorf("second sweep = %+v, want no-op", again)
	}

	detail, err := store.GetInvoice(ctx, stale.InvoiceID, "buyer-1")
	if err != nil {
		t.Fatalf("GetInvoice() error = %v", err)
	}
	if detail.TotalPrice != 1000 {
		t.Errorf("TotalPrice = %d, want 1000", detail.TotalPrice)
	}
	if len(detail.Details) != 2 {
		t.Errorf("invoice has %d items, want 2 (expired item kept as history)", len(detail.Details))
	}
}

// A sweep snapshots its stale items before taking the seat locks. If an
// item is removed and its seat reclaimed by another buyer while the sweep
// waits for a lock, the reclaimed seat must be left alone.
func TestPostgresReservationStore_SweepLeavesReclaimedSeat(t *testing.T) {
	pool := getPostgresPool(t)
	defer pool.Close()

	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	clock := base
	match, seats := createTestMatch(t, pool, 2, 1000)
	store := NewPostgresReservationStore(pool, WithPostgresClock(func() time.Time { return clock }))
	ctx := context.Background()

	first, err := store.AddItem(ctx, AddItemParams{BuyerID: "buyer-1", SeatID: seats[0].ID, FullName: "A"})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}
	second, err := store.AddItem(ctx, AddItemParams{BuyerID: "buyer-1", SeatID: seats[1].ID, FullName: "A"})
	if err != nil {
		t.Fatalf("AddItem() error = %v", err)
	}

	// The sweep locks seats in sorted id order. Holding the first lock
	// stalls it after the snapshot but before it touches either seat.
	ordered := []string{seats[0].ID, seats[1].ID}
	sort.Strings(ordered)
	itemsBySeat := map[string]domain.InvoiceItem{
		first.Item.SeatID:  first.Item,
		second.Item.SeatID: second.Item,
	}
	removed := itemsBySeat[ordered[1]]

	blocker, err := pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	defer blocker.Rollback(ctx)
	if _, err := blocker.Exec(ctx, `SELECT 1 FROM seats WHERE id = $1 FOR UPDATE`, ordered[0]); err != nil {
		t.Fatalf("blocking lock error = %v", err)
	}

	cutoff := base.Add(10 * time.Minute)
	type sweepOutcome struct {
		result *InvoiceSweepResult
		err    error
	}
	done := make(chan sweepOutcome, 1)
	go func() {
		result, err := store.ExpireInvoiceItems(ctx, first.InvoiceID, cutoff, false)
		done <- sweepOutcome{result, err}
	}()

	// Let the sweep take its snapshot and park on the held seat lock
	time.Sleep(300 * time.Millisecond)

	if err := store.RemoveItem(ctx, removed.ID, "buyer-1"); err != nil {
		t.Fatalf("RemoveItem() error = %v", err)
	}
	reclaim, err := store.AddItem(ctx, AddItemParams{BuyerID: "buyer-2", SeatID: ordered[1], FullName: "B"})
	if err != nil {
		t.Fatalf("AddItem() reclaim error = %v", err)
	}

	if err := blocker.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	outcome := <-done
	if outcome.err != nil {
		t.Fatalf("ExpireInvoiceItems() error = %v", outcome.err)
	}
	if outcome.result.ItemsExpired != 1 || outcome.result.SeatsReleased != 1 {
		t.Errorf("sweep = %+v, want 1 item expired and 1 seat released", outcome.result)
	}

	repo := NewPostgresMatchRepository(pool)
	listed, err := repo.ListSeats(ctx, match.ID)
	if err != nil {
		t.Fatalf("ListSeats() error = %v", err)
	}
	for _, seat := range listed {
		switch seat.ID {
		case ordered[0]:
			if seat.IsReserved {
				t.Errorf("stale seat %s still reserved after sweep", seat.ID)
			}
		case ordered[1]:
			if !seat.IsReserved || seat.FullName != "B" {
				t.Errorf("reclaimed seat = %+v, want reserved by the new holder", seat)
			}
		}
	}

	detail, err := store.GetInvoice(ctx, reclaim.InvoiceID, "buyer-2")
	if err != nil {
		t.Fatalf("GetInvoice() error = %v", err)
	}
	if detail.TotalPrice != 1000 {
		t.Errorf("reclaimer's TotalPrice = %d, want 1000", detail.TotalPrice)
	}
}

func TestTranslateLockError(t *testing.T) {
	tests := []struct {
		name   string
		code   string
		mapped bool
	}{
		{"lock not available", pgLockNotAvailable, true},
		{"deadlock detected", pgDeadlockDetected, true},
		{"unique violation", pgUniqueViolation, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &pgconn.PgError{Code: tt.code}
			got := translateLockError(in)
			if errors.Is(got, domain.ErrProcessFailed) != tt.mapped {
				t.Errorf("translateLockError(%s) = %v, want mapped = %v", tt.code, got, tt.mapped)
			}
		})
	}

	plain := errors.New("connection reset")
	if got := translateLockError(plain); got != plain {
		t.Errorf("translateLockError(plain) = %v, want the error unchanged", got)
	}
}

func TestTranslateSeatWriteError(t *testing.T) {
	raised := &pgconn.PgError{Code: pgRaiseException, Message: "seat is reserved"}
	if got := translateSeatWriteError(raised); !errors.Is(got, domain.ErrSeatProtected) {
		t.Errorf("translateSeatWriteError(P0001) = %v, want ErrSeatProtected", got)
	}

	unique := &pgconn.PgError{Code: pgUniqueViolation}
	if got := translateSeatWriteError(unique); errors.Is(got, domain.ErrSeatProtected) {
		t.Errorf("translateSeatWriteError(23505) = %v, must not map to ErrSeatProtected", got)
	}

	plain := errors.New("connection reset")
	if got := translateSeatWriteError(plain); got != plain {
		t.Errorf("translateSeatWriteError(plain) = %v, want the error unchanged", got)
	}
}
