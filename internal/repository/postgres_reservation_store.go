package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
	"github.com/likecodingloveproblems/matchticketselling/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostgreSQL error codes the store maps to domain errors
const (
	pgUniqueViolation  = "23505"
	pgLockNotAvailable = "55P03"
	pgDeadlockDetected = "40P01"
	pgRaiseException   = "P0001"
)

// translateLockError maps lock timeouts and deadlocks to ErrProcessFailed
// so callers can retry without inspecting driver internals
func translateLockError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgLockNotAvailable, pgDeadlockDetected:
			return domain.ErrProcessFailed
		}
	}
	return err
}

// translateSeatWriteError surfaces the reserved-seat protect trigger,
// which rejects any write to a reserved seat that is not a release
func translateSeatWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgRaiseException {
		return domain.ErrSeatProtected
	}
	return err
}

const matchNameExpr = `m.host_team || ':' || m.guest_team || ' at ' ||
	to_char(m.starts_at AT TIME ZONE 'UTC', 'YYYY-MM-DD"T"HH24:MI:SS"Z"') ||
	' in ' || m.stadium`

// PostgresReservationStore implements ReservationStore on PostgreSQL.
// Every operation runs in its own transaction. Row locks are bounded by
// the pool's lock_timeout, so a contended claim fails fast with
// ErrProcessFailed instead of queueing behind the holder.
type PostgresReservationStore struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// PostgresStoreOption configures a PostgresReservationStore
type PostgresStoreOption func(*PostgresReservationStore)

// WithPostgresClock overrides the store's time source
func WithPostgresClock(now func() time.Time) PostgresStoreOption {
	return func(s *PostgresReservationStore) { s.now = now }
}

// NewPostgresReservationStore creates a new PostgresReservationStore
func NewPostgresReservationStore(pool *pgxpool.Pool, opts ...PostgresStoreOption) *PostgresReservationStore {
	s := &PostgresReservationStore{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddItem claims a seat and attaches it to the buyer's pending invoice,
// creating the invoice when the buyer has no pending one
func (s *PostgresReservationStore) AddItem(ctx context.Context, params AddItemParams) (*AddItemResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.add_item")
	defer span.End()
	span.SetAttributes(
		attribute.String("buyer_id", params.BuyerID),
		attribute.String("seat_id", params.SeatID),
	)

	if params.BuyerID == "" {
		return nil, domain.ErrInvalidBuyerID
	}
	if params.SeatID == "" {
		return nil, domain.ErrInvalidSeatID
	}
	if params.FullName == "" {
		return nil, domain.ErrFullNameRequired
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, domain.ErrProcessFailed
	}
	defer tx.Rollback(ctx)

	// Lock the seat row first. The seat-before-invoice order is shared
	// with ExpireInvoiceItems so the two cannot deadlock each other.
	var seat domain.Seat
	var matchName string
	err = tx.QueryRow(ctx, `
		SELECT s.id, s.match_id, s.number, s.price, s.is_reserved, s.full_name,
		       `+matchNameExpr+`
		FROM seats s
		JOIN matches m ON m.id = s.match_id
		WHERE s.id = $1
		FOR UPDATE OF s`, params.SeatID,
	).Scan(&seat.ID, &seat.MatchID, &seat.Number, &seat.Price,
		&seat.IsReserved, &seat.FullName, &matchName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "seat not found")
			return nil, domain.ErrSeatNotFound
		}
		if tErr := translateLockError(err); errors.Is(tErr, domain.ErrProcessFailed) {
			span.SetStatus(codes.Error, "seat lock timeout")
			return nil, tErr
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to lock seat: %w", err)
	}

	if err := seat.Claim(params.FullName); err != nil {
		span.SetStatus(codes.Error, "seat already reserved")
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE seats SET is_reserved = TRUE, full_name = $2 WHERE id = $1`,
		seat.ID, params.FullName)
	if err != nil {
		if tErr := translateSeatWriteError(err); errors.Is(tErr, domain.ErrSeatProtected) {
			span.SetStatus(codes.Error, "seat protected")
			return nil, tErr
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to reserve seat: %w", err)
	}

	invoiceID, total, err := s.pendingInvoiceForUpdate(ctx, tx, params.BuyerID)
	if err != nil {
		if tErr := translateLockError(err); errors.Is(tErr, domain.ErrProcessFailed) {
			span.SetStatus(codes.Error, "invoice lock timeout")
			return nil, tErr
		}
		span.RecordError(err)
		return nil, err
	}

	item := domain.InvoiceItem{
		ID:        uuid.New().String(),
		InvoiceID: invoiceID,
		SeatID:    seat.ID,
		FullName:  params.FullName,
		CreatedAt: s.now().UTC(),
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO invoice_items (id, invoice_id, seat_id, full_name, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		item.ID, item.InvoiceID, item.SeatID, item.FullName, item.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			span.SetStatus(codes.Error, "seat already on invoice")
			return nil, domain.ErrSeatAlreadyReserved
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create invoice item: %w", err)
	}

	total += seat.Price
	_, err = tx.Exec(ctx, `
		UPDATE invoices SET total_price = $2, updated_at = now() WHERE id = $1`,
		invoiceID, total)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update invoice total: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, domain.ErrProcessFailed
	}

	span.SetStatus(codes.Ok, "")
	return &AddItemResult{
		Item:      item,
		InvoiceID: invoiceID,
		Total:     total,
		Seat:      seat,
		MatchName: matchName,
	}, nil
}

// pendingInvoiceForUpdate returns the buyer's pending invoice locked for
// update, inserting one when absent. The insert relies on the partial
// unique index on (buyer_id) WHERE status = 'PENDING', so two concurrent
// claims by the same buyer converge on one invoice row.
func (s *PostgresReservationStore) pendingInvoiceForUpdate(ctx context.Context, tx pgx.Tx, buyerID string) (string, int64, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO invoices (id, buyer_id, status, total_price)
		VALUES ($1, $2, 'PENDING', 0)
		ON CONFLICT (buyer_id) WHERE status = 'PENDING' DO NOTHING`,
		uuid.New().String(), buyerID)
	if err != nil {
		return "", 0, fmt.Errorf("failed to ensure pending invoice: %w", err)
	}

	var invoiceID string
	var total int64
	err = tx.QueryRow(ctx, `
		SELECT id, total_price FROM invoices
		WHERE buyer_id = $1 AND status = 'PENDING'
		FOR UPDATE`, buyerID,
	).Scan(&invoiceID, &total)
	if err != nil {
		return "", 0, fmt.Errorf("failed to lock pending invoice: %w", err)
	}
	return invoiceID, total, nil
}

// RemoveItem deletes an item, releases its seat and shrinks the invoice.
// The invoice row is deleted when its last item goes.
func (s *PostgresReservationStore) RemoveItem(ctx context.Context, itemID, buyerID string) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.remove_item")
	defer span.End()
	span.SetAttributes(
		attribute.String("item_id", itemID),
		attribute.String("buyer_id", buyerID),
	)

	if itemID == "" {
		return domain.ErrInvalidItemID
	}
	if buyerID == "" {
		return domain.ErrInvalidBuyerID
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.ErrProcessFailed
	}
	defer tx.Rollback(ctx)

	// Lock the seat before the invoice, same order as AddItem
	var invoiceID, seatID string
	var expired bool
	err = tx.QueryRow(ctx, `
		SELECT it.invoice_id, it.seat_id, it.expired
		FROM invoice_items it
		JOIN seats s ON s.id = it.seat_id
		WHERE it.id = $1
		FOR UPDATE OF s`, itemID,
	).Scan(&invoiceID, &seatID, &expired)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "item not found")
			return domain.ErrItemNotFound
		}
		if tErr := translateLockError(err); errors.Is(tErr, domain.ErrProcessFailed) {
			return tErr
		}
		span.RecordError(err)
		return fmt.Errorf("failed to lock invoice item: %w", err)
	}

	var invoiceBuyerID string
	var status domain.InvoiceStatus
	var total int64
	err = tx.QueryRow(ctx, `
		SELECT buyer_id, status, total_price FROM invoices
		WHERE id = $1 FOR UPDATE`, invoiceID,
	).Scan(&invoiceBuyerID, &status, &total)
	if err != nil {
		if tErr := translateLockError(err); errors.Is(tErr, domain.ErrProcessFailed) {
			return tErr
		}
		span.RecordError(err)
		return fmt.Errorf("failed to lock invoice: %w", err)
	}
	if invoiceBuyerID != buyerID {
		span.SetStatus(codes.Error, "not owner")
		return domain.ErrNotInvoiceOwner
	}
	if status != domain.InvoiceStatusPending {
		span.SetStatus(codes.Error, "not pending")
		return domain.ErrOnlyPendingInvoice
	}

	var seatPrice int64
	if !expired {
		err = tx.QueryRow(ctx, `
			UPDATE seats SET is_reserved = FALSE, full_name = ''
			WHERE id = $1 AND is_reserved
			RETURNING price`, seatID,
		).Scan(&seatPrice)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			if tErr := translateSeatWriteError(err); errors.Is(tErr, domain.ErrSeatProtected) {
				span.SetStatus(codes.Error, "seat protected")
				return tErr
			}
			span.RecordError(err)
			return fmt.Errorf("failed to release seat: %w", err)
		}
	}

	if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE id = $1`, itemID); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete invoice item: %w", err)
	}

	var remaining int
	err = tx.QueryRow(ctx, `
		SELECT count(*) FROM invoice_items WHERE invoice_id = $1`, invoiceID,
	).Scan(&remaining)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to count invoice items: %w", err)
	}

	if remaining == 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, invoiceID); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to delete emptied invoice: %w", err)
		}
	} else {
		total -= seatPrice
		if total < 0 {
			total = 0
		}
		_, err = tx.Exec(ctx, `
			UPDATE invoices SET total_price = $2, updated_at = now() WHERE id = $1`,
			invoiceID, total)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to update invoice total: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return domain.ErrProcessFailed
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetInvoice returns an invoice with item, seat and match details
func (s *PostgresReservationStore) GetInvoice(ctx context.Context, invoiceID, buyerID string) (*InvoiceDetail, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.get_invoice")
	defer span.End()
	span.SetAttributes(
		attribute.String("invoice_id", invoiceID),
		attribute.String("buyer_id", buyerID),
	)

	if invoiceID == "" {
		return nil, domain.ErrInvalidInvoiceID
	}
	if buyerID == "" {
		return nil, domain.ErrInvalidBuyerID
	}

	detail := &InvoiceDetail{Details: []ItemDetail{}}
	err := s.pool.QueryRow(ctx, `
		SELECT id, buyer_id, status, total_price, paid_at, created_at, updated_at
		FROM invoices WHERE id = $1`, invoiceID,
	).Scan(&detail.ID, &detail.BuyerID, &detail.Status, &detail.TotalPrice,
		&detail.PaidAt, &detail.CreatedAt, &detail.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrInvoiceNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	if detail.BuyerID != buyerID {
		span.SetStatus(codes.Error, "not owner")
		return nil, domain.ErrNotInvoiceOwner
	}

	rows, err := s.pool.Query(ctx, `
		SELECT it.id, it.invoice_id, it.seat_id, it.full_name, it.created_at, it.expired,
		       s.number, s.price,
		       `+matchNameExpr+`
		FROM invoice_items it
		JOIN seats s ON s.id = it.seat_id
		JOIN matches m ON m.id = s.match_id
		WHERE it.invoice_id = $1
		ORDER BY it.created_at`, invoiceID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list invoice items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d ItemDetail
		if err := rows.Scan(&d.ID, &d.InvoiceID, &d.SeatID,
			&d.FullName, &d.CreatedAt, &d.Expired,
			&d.SeatNumber, &d.SeatPrice, &d.MatchName); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan invoice item: %w", err)
		}
		detail.Details = append(detail.Details, d)
		detail.Items = append(detail.Items, d.InvoiceItem)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read invoice items: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return detail, nil
}

// PayInvoice marks the buyer's pending invoice as paid. A paid or
// cancelled invoice is filtered out, indistinguishable from one that
// never existed.
func (s *PostgresReservationStore) PayInvoice(ctx context.Context, invoiceID, buyerID string, now time.Time) (*domain.Invoice, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.pay_invoice")
	defer span.End()
	span.SetAttributes(
		attribute.String("invoice_id", invoiceID),
		attribute.String("buyer_id", buyerID),
	)

	if invoiceID == "" {
		return nil, domain.ErrInvalidInvoiceID
	}
	if buyerID == "" {
		return nil, domain.ErrInvalidBuyerID
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, domain.ErrProcessFailed
	}
	defer tx.Rollback(ctx)

	invoice := &domain.Invoice{}
	err = tx.QueryRow(ctx, `
		SELECT id, buyer_id, status, total_price, created_at, updated_at
		FROM invoices
		WHERE id = $1 AND status = 'PENDING'
		FOR UPDATE`, invoiceID,
	).Scan(&invoice.ID, &invoice.BuyerID, &invoice.Status,
		&invoice.TotalPrice, &invoice.CreatedAt, &invoice.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "no pending invoice")
			return nil, domain.ErrInvoiceNotFound
		}
		if tErr := translateLockError(err); errors.Is(tErr, domain.ErrProcessFailed) {
			return nil, tErr
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to lock invoice: %w", err)
	}
	if invoice.BuyerID != buyerID {
		span.SetStatus(codes.Error, "not owner")
		return nil, domain.ErrNotInvoiceOwner
	}

	if err := invoice.Pay(now); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE invoices SET status = 'PAID', paid_at = $2, updated_at = now()
		WHERE id = $1`, invoiceID, invoice.PaidAt)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to mark invoice paid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, domain.ErrProcessFailed
	}

	span.SetStatus(codes.Ok, "")
	return invoice, nil
}

// ListExpirableInvoices returns ids of pending invoices holding at least
// one non-expired item created at or before cutoff
func (s *PostgresReservationStore) ListExpirableInvoices(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.list_expirable")
	defer span.End()

	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT inv.id
		FROM invoices inv
		JOIN invoice_items it ON it.invoice_id = inv.id
		WHERE inv.status = 'PENDING'
		  AND NOT it.expired
		  AND it.created_at <= $1
		LIMIT $2`, cutoff, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list expirable invoices: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan invoice id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read invoice ids: %w", err)
	}
	sort.Strings(ids)

	span.SetAttributes(attribute.Int("count", len(ids)))
	span.SetStatus(codes.Ok, "")
	return ids, nil
}

// ExpireInvoiceItems expires one invoice's stale holds, releases the
// seats and recomputes the total, all in a single transaction
func (s *PostgresReservationStore) ExpireInvoiceItems(ctx context.Context, invoiceID string, cutoff time.Time, deleteEmptied bool) (*InvoiceSweepResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.reservation.expire_items")
	defer span.End()
	span.SetAttributes(attribute.String("invoice_id", invoiceID))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, domain.ErrProcessFailed
	}
	defer tx.Rollback(ctx)

	// Collect the stale items without locks, then lock their seats in id
	// order before the invoice. Same order as AddItem.
	rows, err := tx.Query(ctx, `
		SELECT it.id, it.seat_id
		FROM invoice_items it
		WHERE it.invoice_id = $1
		  AND NOT it.expired
		  AND it.created_at <= $2`, invoiceID, cutoff)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list stale items: %w", err)
	}
	itemIDs := make([]string, 0)
	seatIDs := make([]string, 0)
	for rows.Next() {
		var itemID, seatID string
		if err := rows.Scan(&itemID, &seatID); err != nil {
			rows.Close()
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan stale item: %w", err)
		}
		itemIDs = append(itemIDs, itemID)
		seatIDs = append(seatIDs, seatID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read stale items: %w", err)
	}

	result := &InvoiceSweepResult{InvoiceID: invoiceID}
	if len(itemIDs) == 0 {
		span.SetStatus(codes.Ok, "")
		return result, nil
	}

	sort.Strings(seatIDs)
	for _, seatID := range seatIDs {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM seats WHERE id = $1 FOR UPDATE`, seatID); err != nil {
			if tErr := translateLockError(err); errors.Is(tErr, domain.ErrProcessFailed) {
				span.SetStatus(codes.Error, "seat lock timeout")
				return nil, tErr
			}
			span.RecordError(err)
			return nil, fmt.Errorf("failed to lock seat: %w", err)
		}
	}

	var status domain.InvoiceStatus
	err = tx.QueryRow(ctx, `
		SELECT status FROM invoices WHERE id = $1 FOR UPDATE`, invoiceID,
	).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// invoice gone, nothing to sweep
			span.SetStatus(codes.Ok, "")
			return result, nil
		}
		if tErr := translateLockError(err); errors.Is(tErr, domain.ErrProcessFailed) {
			return nil, tErr
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to lock invoice: %w", err)
	}
	if status != domain.InvoiceStatusPending {
		// paid or cancelled invoices keep their items
		span.SetStatus(codes.Ok, "")
		return result, nil
	}

	// The snapshot above ran before the locks were taken, so it cannot be
	// trusted on its own: a concurrent RemoveItem may have deleted one of
	// the items and the seat may already belong to a new claim. Re-verify
	// under the locks and release only the seats of items this
	// transaction actually expired.
	expireRows, err := tx.Query(ctx, `
		UPDATE invoice_items SET expired = TRUE
		WHERE id = ANY($1) AND NOT expired
		RETURNING seat_id`, itemIDs)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to expire items: %w", err)
	}
	expiredSeatIDs := make([]string, 0, len(itemIDs))
	for expireRows.Next() {
		var seatID string
		if err := expireRows.Scan(&seatID); err != nil {
			expireRows.Close()
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan expired item: %w", err)
		}
		expiredSeatIDs = append(expiredSeatIDs, seatID)
	}
	expireRows.Close()
	if err := expireRows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read expired items: %w", err)
	}
	result.ItemsExpired = len(expiredSeatIDs)

	if len(expiredSeatIDs) > 0 {
		tag, err := tx.Exec(ctx, `
			UPDATE seats SET is_reserved = FALSE, full_name = ''
			WHERE id = ANY($1) AND is_reserved`, expiredSeatIDs)
		if err != nil {
			if tErr := translateSeatWriteError(err); errors.Is(tErr, domain.ErrSeatProtected) {
				span.SetStatus(codes.Error, "seat protected")
				return nil, tErr
			}
			span.RecordError(err)
			return nil, fmt.Errorf("failed to release seats: %w", err)
		}
		result.SeatsReleased = int(tag.RowsAffected())
	}

	var newTotal int64
	var remaining int
	err = tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(s.price), 0), count(*)
		FROM invoice_items it
		JOIN seats s ON s.id = it.seat_id
		WHERE it.invoice_id = $1 AND NOT it.expired`, invoiceID,
	).Scan(&newTotal, &remaining)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to recompute invoice total: %w", err)
	}
	result.NewTotal = newTotal

	if deleteEmptied && remaining == 0 && result.ItemsExpired > 0 {
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_items WHERE invoice_id = $1`, invoiceID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to delete expired items: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoices WHERE id = $1`, invoiceID); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to delete emptied invoice: %w", err)
		}
		result.InvoiceDeleted = true
	} else {
		_, err = tx.Exec(ctx, `
			UPDATE invoices SET total_price = $2, updated_at = now() WHERE id = $1`,
			invoiceID, newTotal)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to update invoice total: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return nil, domain.ErrProcessFailed
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}
