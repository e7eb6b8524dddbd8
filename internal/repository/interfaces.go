package repository

import (
	"context"
	"time"

	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
)

// MatchRepository manages matches and their seat inventory
type MatchRepository interface {
	// Create persists a match and bulk-creates its seats numbered
	// 1..capacity, all unreserved, price copied from the match. The whole
	// creation is one atomic unit. Fails with ErrStadiumMatchConflict when
	// another match occupies the stadium around the same time and with
	// ErrDuplicateSeatNumber when seats already exist for the match.
	Create(ctx context.Context, match *domain.Match) error

	// GetByID returns a match or ErrMatchNotFound
	GetByID(ctx context.Context, matchID string) (*domain.Match, error)

	// ListSeats returns all seats of a match ordered by number
	ListSeats(ctx context.Context, matchID string) ([]domain.Seat, error)
}

// AddItemParams carries one "add seat to my cart" request
type AddItemParams struct {
	BuyerID  string
	SeatID   string
	FullName string
}

// AddItemResult is the outcome of a successful claim
type AddItemResult struct {
	Item      domain.InvoiceItem
	InvoiceID string
	Total     int64
	Seat      domain.Seat
	MatchName string
}

// ItemDetail is an invoice item joined with its seat and match info
type ItemDetail struct {
	domain.InvoiceItem
	SeatNumber int    `json:"seat_number"`
	SeatPrice  int64  `json:"seat_price"`
	MatchName  string `json:"match_name"`
}

// InvoiceDetail is an invoice with its items expanded for display
type InvoiceDetail struct {
	domain.Invoice
	Details []ItemDetail `json:"items"`
}

// InvoiceSweepResult reports what one per-invoice expiry pass did
type InvoiceSweepResult struct {
	InvoiceID      string
	ItemsExpired   int
	SeatsReleased  int
	NewTotal       int64
	InvoiceDeleted bool
}

// ReservationStore is the transactional protocol around seats and
// invoices. Every method is one atomic unit: either all of its writes
// become visible or none do. Implementations serialize conflicting
// operations with an exclusive per-seat lock and surface a bounded
// lock wait as ErrProcessFailed.
type ReservationStore interface {
	// AddItem claims the seat for the buyer and attaches it to the
	// buyer's single pending invoice, creating the invoice when absent
	// and incrementing its total by the seat price. Fails with
	// ErrSeatNotFound, ErrSeatAlreadyReserved or ErrProcessFailed.
	AddItem(ctx context.Context, params AddItemParams) (*AddItemResult, error)

	// RemoveItem deletes the item, releases its seat and decrements the
	// invoice total; the invoice itself is deleted when its last item
	// goes. Fails with ErrItemNotFound, ErrNotInvoiceOwner or
	// ErrOnlyPendingInvoice.
	RemoveItem(ctx context.Context, itemID, buyerID string) error

	// GetInvoice returns the invoice with item/seat details. Fails with
	// ErrInvoiceNotFound or ErrNotInvoiceOwner.
	GetInvoice(ctx context.Context, invoiceID, buyerID string) (*InvoiceDetail, error)

	// PayInvoice transitions the buyer's pending invoice to paid,
	// stamping paid_at with now. A non-pending or unknown invoice fails
	// with ErrInvoiceNotFound; a foreign one with ErrNotInvoiceOwner.
	PayInvoice(ctx context.Context, invoiceID, buyerID string, now time.Time) (*domain.Invoice, error)

	// ListExpirableInvoices returns ids of pending invoices holding
	// non-expired items created at or before cutoff, up to limit.
	ListExpirableInvoices(ctx context.Context, cutoff time.Time, limit int) ([]string, error)

	// ExpireInvoiceItems marks the invoice's stale items expired,
	// releases their seats and recomputes the total from the remaining
	// non-expired items. Re-running on an already-swept invoice is a
	// no-op. Invoices no longer pending are left untouched. When
	// deleteEmptied is set, an invoice left without non-expired items is
	// deleted outright.
	ExpireInvoiceItems(ctx context.Context, invoiceID string, cutoff time.Time, deleteEmptied bool) (*InvoiceSweepResult, error)
}
