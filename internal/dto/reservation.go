package dto

import (
	"time"

	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
	"github.com/likecodingloveproblems/matchticketselling/internal/repository"
)

// AddItemRequest represents a request to claim a seat
type AddItemRequest struct {
	SeatID   string `json:"seat_id" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
}

// AddItemResponse represents the outcome of a successful claim
type AddItemResponse struct {
	ItemID     string    `json:"item_id"`
	InvoiceID  string    `json:"invoice_id"`
	SeatID     string    `json:"seat_id"`
	SeatNumber int       `json:"seat_number"`
	MatchName  string    `json:"match_name"`
	FullName   string    `json:"full_name"`
	Price      int64     `json:"price"`
	TotalPrice int64     `json:"total_price"`
	CreatedAt  time.Time `json:"created_at"`
}

// InvoiceItemResponse represents one invoice line in API responses
type InvoiceItemResponse struct {
	ID         string    `json:"id"`
	SeatID     string    `json:"seat_id"`
	SeatNumber int       `json:"seat_number"`
	MatchName  string    `json:"match_name"`
	FullName   string    `json:"full_name"`
	Price      int64     `json:"price"`
	Expired    bool      `json:"expired"`
	CreatedAt  time.Time `json:"created_at"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID         string                `json:"id"`
	BuyerID    string                `json:"buyer_id"`
	Status     string                `json:"status"`
	TotalPrice int64                 `json:"total_price"`
	PaidAt     *time.Time            `json:"paid_at,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
	Items      []InvoiceItemResponse `json:"items"`
}

// PayInvoiceResponse represents the outcome of paying an invoice
type PayInvoiceResponse struct {
	InvoiceID  string     `json:"invoice_id"`
	Status     string     `json:"status"`
	TotalPrice int64      `json:"total_price"`
	PaidAt     *time.Time `json:"paid_at"`
}

// AddItemResponseFrom builds an AddItemResponse from a store result
func AddItemResponseFrom(result *repository.AddItemResult) *AddItemResponse {
	return &AddItemResponse{
		ItemID:     result.Item.ID,
		InvoiceID:  result.InvoiceID,
		SeatID:     result.Seat.ID,
		SeatNumber: result.Seat.Number,
		MatchName:  result.MatchName,
		FullName:   result.Item.FullName,
		Price:      result.Seat.Price,
		TotalPrice: result.Total,
		CreatedAt:  result.Item.CreatedAt,
	}
}

// InvoiceResponseFrom builds an InvoiceResponse from an invoice detail
func InvoiceResponseFrom(detail *repository.InvoiceDetail) *InvoiceResponse {
	resp := &InvoiceResponse{
		ID:         detail.ID,
		BuyerID:    detail.BuyerID,
		Status:     string(detail.Status),
		TotalPrice: detail.TotalPrice,
		PaidAt:     detail.PaidAt,
		CreatedAt:  detail.CreatedAt,
		UpdatedAt:  detail.UpdatedAt,
		Items:      make([]InvoiceItemResponse, 0, len(detail.Details)),
	}
	for _, d := range detail.Details {
		resp.Items = append(resp.Items, InvoiceItemResponse{
			ID:         d.ID,
			SeatID:     d.SeatID,
			SeatNumber: d.SeatNumber,
			MatchName:  d.MatchName,
			FullName:   d.FullName,
			Price:      d.SeatPrice,
			Expired:    d.Expired,
			CreatedAt:  d.CreatedAt,
		})
	}
	return resp
}

// PayInvoiceResponseFrom builds a PayInvoiceResponse from a paid invoice
func PayInvoiceResponseFrom(invoice *domain.Invoice) *PayInvoiceResponse {
	return &PayInvoiceResponse{
		InvoiceID:  invoice.ID,
		Status:     string(invoice.Status),
		TotalPrice: invoice.TotalPrice,
		PaidAt:     invoice.PaidAt,
	}
}
