package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
)

// MemoryStore is an in-memory implementation of MatchRepository and
// ReservationStore. Conflicting claims are serialized by a sharded
// per-seat lock manager; all map state is guarded by one mutex held only
// for the short critical sections, so the semantics match the Postgres
// store: exactly one of two racing claimants wins a seat, the other
// observes it reserved.
//
// Used by the test suite and as a development backend.
type MemoryStore struct {
	mu sync.RWMutex

	matches        map[string]*domain.Match
	seats          map[string]*domain.Seat
	invoices       map[string]*domain.Invoice
	items          map[string]*domain.InvoiceItem
	pendingByBuyer map[string]string // buyer id -> pending invoice id

	locks *lockManager
	now   func() time.Time
}

// MemoryStoreOption customizes a MemoryStore
type MemoryStoreOption func(*MemoryStore)

// WithClock overrides the store's time source
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

// WithLockTimeout bounds how long a claim waits for a seat lock
func WithLockTimeout(timeout time.Duration) MemoryStoreOption {
	return func(s *MemoryStore) { s.locks = newLockManager(timeout) }
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		matches:        make(map[string]*domain.Match),
		seats:          make(map[string]*domain.Seat),
		invoices:       make(map[string]*domain.Invoice),
		items:          make(map[string]*domain.InvoiceItem),
		pendingByBuyer: make(map[string]string),
		locks:          newLockManager(3 * time.Second),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create persists a match and its seats as one atomic unit
func (s *MemoryStore) Create(ctx context.Context, match *domain.Match) error {
	if err := match.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.matches {
		if existing.ID != match.ID && match.ConflictsWith(existing) {
			return domain.ErrStadiumMatchConflict
		}
	}
	for _, seat := range s.seats {
		if seat.MatchID == match.ID {
			return domain.ErrDuplicateSeatNumber
		}
	}

	if match.ID == "" {
		match.ID = uuid.New().String()
	}
	if match.CreatedAt.IsZero() {
		match.CreatedAt = s.now().UTC()
	}

	stored := *match
	s.matches[match.ID] = &stored

	for number := 1; number <= match.Capacity; number++ {
		seat := &domain.Seat{
			ID:      uuid.New().String(),
			MatchID: match.ID,
			Number:  number,
			Price:   match.SeatPrice,
		}
		s.seats[seat.ID] = seat
	}
	return nil
}

// GetByID returns a match by id
func (s *MemoryStore) GetByID(ctx context.Context, matchID string) (*domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	match, ok := s.matches[matchID]
	if !ok {
		return nil, domain.ErrMatchNotFound
	}
	copied := *match
	return &copied, nil
}

// ListSeats returns the match's seats ordered by number
func (s *MemoryStore) ListSeats(ctx context.Context, matchID string) ([]domain.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.matches[matchID]; !ok {
		return nil, domain.ErrMatchNotFound
	}

	seats := make([]domain.Seat, 0)
	for _, seat := range s.seats {
		if seat.MatchID == matchID {
			seats = append(seats, *seat)
		}
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].Number < seats[j].Number })
	return seats, nil
}

// AddItem claims a seat and attaches it to the buyer's pending invoice
func (s *MemoryStore) AddItem(ctx context.Context, params AddItemParams) (*AddItemResult, error) {
	release, err := s.locks.acquire(ctx, params.SeatID)
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	seat, ok := s.seats[params.SeatID]
	if !ok {
		return nil, domain.ErrSeatNotFound
	}

	// The (invoice, seat) pair is unique: an expired hold stays on the
	// invoice as history, so the same buyer cannot re-add that seat to
	// the same pending invoice.
	if invoiceID, ok := s.pendingByBuyer[params.BuyerID]; ok {
		for _, item := range s.items {
			if item.InvoiceID == invoiceID && item.SeatID == seat.ID {
				return nil, domain.ErrSeatAlreadyReserved
			}
		}
	}

	// Claim first; everything after this point must succeed or the claim
	// is undone before the lock drops
	if err := seat.Claim(params.FullName); err != nil {
		return nil, err
	}

	invoice := s.pendingInvoiceLocked(params.BuyerID)
	now := s.now().UTC()

	item := &domain.InvoiceItem{
		ID:        uuid.New().String(),
		InvoiceID: invoice.ID,
		SeatID:    seat.ID,
		FullName:  params.FullName,
		CreatedAt: now,
	}
	s.items[item.ID] = item

	invoice.TotalPrice += seat.Price
	invoice.UpdatedAt = now

	matchName := ""
	if match, ok := s.matches[seat.MatchID]; ok {
		matchName = match.Name()
	}

	return &AddItemResult{
		Item:      *item,
		InvoiceID: invoice.ID,
		Total:     invoice.TotalPrice,
		Seat:      *seat,
		MatchName: matchName,
	}, nil
}

// pendingInvoiceLocked returns the buyer's pending invoice, creating one
// when absent. Caller holds s.mu, which makes get-or-create atomic.
func (s *MemoryStore) pendingInvoiceLocked(buyerID string) *domain.Invoice {
	if id, ok := s.pendingByBuyer[buyerID]; ok {
		return s.invoices[id]
	}
	now := s.now().UTC()
	invoice := &domain.Invoice{
		ID:        uuid.New().String(),
		BuyerID:   buyerID,
		Status:    domain.InvoiceStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.invoices[invoice.ID] = invoice
	s.pendingByBuyer[buyerID] = invoice.ID
	return invoice
}

// RemoveItem deletes an item, releases its seat and shrinks the invoice
func (s *MemoryStore) RemoveItem(ctx context.Context, itemID, buyerID string) error {
	s.mu.RLock()
	item, ok := s.items[itemID]
	var seatID string
	if ok {
		seatID = item.SeatID
	}
	s.mu.RUnlock()
	if !ok {
		return domain.ErrItemNotFound
	}

	release, err := s.locks.acquire(ctx, seatID)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok = s.items[itemID]
	if !ok {
		return domain.ErrItemNotFound
	}
	invoice := s.invoices[item.InvoiceID]
	if invoice.BuyerID != buyerID {
		return domain.ErrNotInvoiceOwner
	}
	if !invoice.IsPending() {
		return domain.ErrOnlyPendingInvoice
	}

	if seat, ok := s.seats[item.SeatID]; ok && !item.Expired {
		seat.Release()
		invoice.TotalPrice -= seat.Price
	}
	delete(s.items, itemID)
	invoice.UpdatedAt = s.now().UTC()

	if s.countItemsLocked(invoice.ID) == 0 {
		delete(s.invoices, invoice.ID)
		delete(s.pendingByBuyer, invoice.BuyerID)
	}
	return nil
}

func (s *MemoryStore) countItemsLocked(invoiceID string) int {
	count := 0
	for _, item := range s.items {
		if item.InvoiceID == invoiceID {
			count++
		}
	}
	return count
}

// GetInvoice returns an invoice with item and seat details
func (s *MemoryStore) GetInvoice(ctx context.Context, invoiceID, buyerID string) (*InvoiceDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	invoice, ok := s.invoices[invoiceID]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	if invoice.BuyerID != buyerID {
		return nil, domain.ErrNotInvoiceOwner
	}

	detail := &InvoiceDetail{Invoice: *invoice, Details: []ItemDetail{}}
	for _, item := range s.items {
		if item.InvoiceID != invoiceID {
			continue
		}
		d := ItemDetail{InvoiceItem: *item}
		if seat, ok := s.seats[item.SeatID]; ok {
			d.SeatNumber = seat.Number
			d.SeatPrice = seat.Price
			if match, ok := s.matches[seat.MatchID]; ok {
				d.MatchName = match.Name()
			}
		}
		detail.Details = append(detail.Details, d)
	}
	sort.Slice(detail.Details, func(i, j int) bool {
		return detail.Details[i].CreatedAt.Before(detail.Details[j].CreatedAt)
	})
	return detail, nil
}

// PayInvoice finalizes a pending invoice
func (s *MemoryStore) PayInvoice(ctx context.Context, invoiceID, buyerID string, now time.Time) (*domain.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoice, ok := s.invoices[invoiceID]
	if !ok || !invoice.IsPending() {
		// a paid or cancelled invoice is filtered out, indistinguishable
		// from one that never existed
		return nil, domain.ErrInvoiceNotFound
	}
	if invoice.BuyerID != buyerID {
		return nil, domain.ErrNotInvoiceOwner
	}

	if err := invoice.Pay(now); err != nil {
		return nil, err
	}
	delete(s.pendingByBuyer, buyerID)

	copied := *invoice
	return &copied, nil
}

// ListExpirableInvoices returns pending invoices with stale holds
func (s *MemoryStore) ListExpirableInvoices(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	ids := make([]string, 0)
	for _, item := range s.items {
		if item.Expired || item.CreatedAt.After(cutoff) {
			continue
		}
		invoice, ok := s.invoices[item.InvoiceID]
		if !ok || !invoice.IsPending() || seen[invoice.ID] {
			continue
		}
		seen[invoice.ID] = true
		ids = append(ids, invoice.ID)
		if limit > 0 && len(ids) >= limit {
			break
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// ExpireInvoiceItems expires one invoice's stale holds
func (s *MemoryStore) ExpireInvoiceItems(ctx context.Context, invoiceID string, cutoff time.Time, deleteEmptied bool) (*InvoiceSweepResult, error) {
	// Collect the seats involved, then lock them in a stable order so a
	// concurrent claim on one of them cannot interleave
	s.mu.RLock()
	seatIDs := make([]string, 0)
	for _, item := range s.items {
		if item.InvoiceID == invoiceID && !item.Expired && !item.CreatedAt.After(cutoff) {
			seatIDs = append(seatIDs, item.SeatID)
		}
	}
	s.mu.RUnlock()
	sort.Strings(seatIDs)

	releases := make([]func(), 0, len(seatIDs))
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()
	for _, seatID := range seatIDs {
		release, err := s.locks.acquire(ctx, seatID)
		if err != nil {
			return nil, err
		}
		releases = append(releases, release)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	result := &InvoiceSweepResult{InvoiceID: invoiceID}

	invoice, ok := s.invoices[invoiceID]
	if !ok || !invoice.IsPending() {
		// paid, cancelled or already gone: nothing to sweep
		return result, nil
	}

	activeRemain := 0
	for _, item := range s.items {
		if item.InvoiceID != invoiceID {
			continue
		}
		if !item.Expired && !item.CreatedAt.After(cutoff) {
			item.Expired = true
			result.ItemsExpired++
			if seat, ok := s.seats[item.SeatID]; ok && seat.IsReserved {
				seat.Release()
				result.SeatsReleased++
			}
			continue
		}
		if !item.Expired {
			activeRemain++
		}
	}

	// Recompute the total from the remaining non-expired items
	total := int64(0)
	for _, item := range s.items {
		if item.InvoiceID == invoiceID && !item.Expired {
			if seat, ok := s.seats[item.SeatID]; ok {
				total += seat.Price
			}
		}
	}
	invoice.TotalPrice = total
	invoice.UpdatedAt = s.now().UTC()
	result.NewTotal = total

	if deleteEmptied && activeRemain == 0 && result.ItemsExpired > 0 {
		for id, item := range s.items {
			if item.InvoiceID == invoiceID {
				delete(s.items, id)
			}
		}
		delete(s.invoices, invoiceID)
		delete(s.pendingByBuyer, invoice.BuyerID)
		result.InvoiceDeleted = true
	}

	return result, nil
}
