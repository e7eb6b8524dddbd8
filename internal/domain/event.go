package domain

import "time"

// InvoiceEventType identifies the kind of invoice lifecycle event
type InvoiceEventType string

const (
	InvoiceEventItemAdded   InvoiceEventType = "invoice.item_added"
	InvoiceEventItemRemoved InvoiceEventType = "invoice.item_removed"
	InvoiceEventPaid        InvoiceEventType = "invoice.paid"
	InvoiceEventExpired     InvoiceEventType = "invoice.expired"
)

// InvoiceEvent is the message published on invoice lifecycle changes
type InvoiceEvent struct {
	EventID    string           `json:"event_id"`
	EventType  InvoiceEventType `json:"event_type"`
	InvoiceID  string           `json:"invoice_id"`
	BuyerID    string           `json:"buyer_id,omitempty"`
	SeatID     string           `json:"seat_id,omitempty"`
	TotalPrice int64            `json:"total_price"`
	Timestamp  time.Time        `json:"timestamp"`
}

// NewInvoiceEvent creates an event stamped with the current time
func NewInvoiceEvent(eventType InvoiceEventType, invoiceID, buyerID string, eventID string) *InvoiceEvent {
	return &InvoiceEvent{
		EventID:   eventID,
		EventType: eventType,
		InvoiceID: invoiceID,
		BuyerID:   buyerID,
		Timestamp: time.Now().UTC(),
	}
}

// Key returns the partition key; events of one invoice stay ordered
func (e *InvoiceEvent) Key() string {
	return e.InvoiceID
}
