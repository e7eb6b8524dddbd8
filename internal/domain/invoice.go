package domain

import "time"

// InvoiceStatus represents the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "PENDING"
	InvoiceStatusPaid      InvoiceStatus = "PAID"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// String returns the status as a string
func (s InvoiceStatus) String() string { return string(s) }

// IsValid checks if the status is a known value
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusCancelled:
		return true
	}
	return false
}

// Invoice is a buyer's running cart aggregating claimed seats until it is
// paid or cancelled. A buyer has at most one pending invoice at a time.
type Invoice struct {
	ID         string        `json:"id"`
	BuyerID    string        `json:"buyer_id"`
	Status     InvoiceStatus `json:"status"`
	TotalPrice int64         `json:"total_price"`
	PaidAt     *time.Time    `json:"paid_at,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
	Items      []InvoiceItem `json:"items,omitempty"`
}

// InvoiceItem binds one seat to one invoice with a holder name. Expired
// items stay on the invoice as history but no longer hold the seat or
// count toward the total.
type InvoiceItem struct {
	ID        string    `json:"id"`
	InvoiceID string    `json:"invoice_id"`
	SeatID    string    `json:"seat_id"`
	FullName  string    `json:"full_name"`
	CreatedAt time.Time `json:"created_at"`
	Expired   bool      `json:"expired"`
}

// IsPending reports whether the invoice can still be modified
func (i *Invoice) IsPending() bool {
	return i.Status == InvoiceStatusPending
}

// Pay transitions a pending invoice to paid, stamping the settlement
// time. The transition is terminal.
func (i *Invoice) Pay(now time.Time) error {
	if !i.IsPending() {
		return ErrOnlyPendingInvoice
	}
	paidAt := now.UTC()
	i.Status = InvoiceStatusPaid
	i.PaidAt = &paidAt
	i.UpdatedAt = paidAt
	return nil
}

// ActiveItems returns the non-expired items
func (i *Invoice) ActiveItems() []InvoiceItem {
	active := make([]InvoiceItem, 0, len(i.Items))
	for _, item := range i.Items {
		if !item.Expired {
			active = append(active, item)
		}
	}
	return active
}

// HeldLongerThan reports whether the item's hold started more than
// timeout ago at the given instant
func (it *InvoiceItem) HeldLongerThan(timeout time.Duration, now time.Time) bool {
	return !it.Expired && now.Sub(it.CreatedAt) > timeout
}
