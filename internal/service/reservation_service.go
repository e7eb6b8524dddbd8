package service

import (
	"context"
	"errors"
	"time"

	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
	"github.com/likecodingloveproblems/matchticketselling/internal/dto"
	"github.com/likecodingloveproblems/matchticketselling/internal/metrics"
	"github.com/likecodingloveproblems/matchticketselling/internal/repository"
	"github.com/likecodingloveproblems/matchticketselling/pkg/logger"
	"github.com/likecodingloveproblems/matchticketselling/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// ReservationService defines the interface for invoice business logic
type ReservationService interface {
	// AddItem claims a seat for the buyer and puts it on their pending invoice
	AddItem(ctx context.Context, buyerID string, req *dto.AddItemRequest) (*dto.AddItemResponse, error)

	// RemoveItem takes an item off the buyer's pending invoice
	RemoveItem(ctx context.Context, itemID, buyerID string) error

	// GetInvoice retrieves an invoice with its items
	GetInvoice(ctx context.Context, invoiceID, buyerID string) (*dto.InvoiceResponse, error)

	// PayInvoice finalizes the buyer's pending invoice
	PayInvoice(ctx context.Context, invoiceID, buyerID string) (*dto.PayInvoiceResponse, error)
}

// reservationService implements ReservationService
type reservationService struct {
	store          repository.ReservationStore
	eventPublisher EventPublisher
	now            func() time.Time
}

// NewReservationService creates a new reservation service
func NewReservationService(store repository.ReservationStore, eventPublisher EventPublisher) ReservationService {
	if eventPublisher == nil {
		eventPublisher = NewNoOpEventPublisher()
	}
	return &reservationService{
		store:          store,
		eventPublisher: eventPublisher,
		now:            time.Now,
	}
}

// AddItem claims a seat for the buyer and puts it on their pending invoice
func (s *reservationService) AddItem(ctx context.Context, buyerID string, req *dto.AddItemRequest) (*dto.AddItemResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.add_item")
	defer span.End()

	if buyerID == "" {
		span.SetStatus(codes.Error, "invalid buyer_id")
		return nil, domain.ErrInvalidBuyerID
	}
	if req == nil || req.SeatID == "" {
		span.SetStatus(codes.Error, "invalid seat_id")
		return nil, domain.ErrInvalidSeatID
	}
	if req.FullName == "" {
		span.SetStatus(codes.Error, "full_name required")
		return nil, domain.ErrFullNameRequired
	}

	span.SetAttributes(
		attribute.String("buyer_id", buyerID),
		attribute.String("seat_id", req.SeatID),
	)

	result, err := s.store.AddItem(ctx, repository.AddItemParams{
		BuyerID:  buyerID,
		SeatID:   req.SeatID,
		FullName: req.FullName,
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrSeatAlreadyReserved):
			metrics.RecordClaimConflict(ctx, "")
		case errors.Is(err, domain.ErrProcessFailed):
			metrics.RecordClaimFailure(ctx)
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordClaim(ctx, result.Seat.MatchID)

	event := domain.NewInvoiceEvent(domain.InvoiceEventItemAdded, result.InvoiceID, buyerID, "")
	event.SeatID = result.Seat.ID
	event.TotalPrice = result.Total
	if err := s.eventPublisher.PublishItemAdded(ctx, event); err != nil {
		logger.Get().Warn("failed to publish item added event",
			zap.String("invoice_id", result.InvoiceID),
			zap.Error(err))
	}

	span.SetStatus(codes.Ok, "")
	return dto.AddItemResponseFrom(result), nil
}

// RemoveItem takes an item off the buyer's pending invoice
func (s *reservationService) RemoveItem(ctx context.Context, itemID, buyerID string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.remove_item")
	defer span.End()

	if itemID == "" {
		span.SetStatus(codes.Error, "invalid item_id")
		return domain.ErrInvalidItemID
	}
	if buyerID == "" {
		span.SetStatus(codes.Error, "invalid buyer_id")
		return domain.ErrInvalidBuyerID
	}

	span.SetAttributes(
		attribute.String("item_id", itemID),
		attribute.String("buyer_id", buyerID),
	)

	if err := s.store.RemoveItem(ctx, itemID, buyerID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	metrics.RecordRelease(ctx, 1)

	event := domain.NewInvoiceEvent(domain.InvoiceEventItemRemoved, "", buyerID, "")
	if err := s.eventPublisher.PublishItemRemoved(ctx, event); err != nil {
		logger.Get().Warn("failed to publish item removed event",
			zap.String("item_id", itemID),
			zap.Error(err))
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetInvoice retrieves an invoice with its items
func (s *reservationService) GetInvoice(ctx context.Context, invoiceID, buyerID string) (*dto.InvoiceResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.get_invoice")
	defer span.End()

	if invoiceID == "" {
		span.SetStatus(codes.Error, "invalid invoice_id")
		return nil, domain.ErrInvalidInvoiceID
	}
	if buyerID == "" {
		span.SetStatus(codes.Error, "invalid buyer_id")
		return nil, domain.ErrInvalidBuyerID
	}

	span.SetAttributes(
		attribute.String("invoice_id", invoiceID),
		attribute.String("buyer_id", buyerID),
	)

	detail, err := s.store.GetInvoice(ctx, invoiceID, buyerID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.InvoiceResponseFrom(detail), nil
}

// PayInvoice finalizes the buyer's pending invoice
func (s *reservationService) PayInvoice(ctx context.Context, invoiceID, buyerID string) (*dto.PayInvoiceResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.pay_invoice")
	defer span.End()

	if invoiceID == "" {
		span.SetStatus(codes.Error, "invalid invoice_id")
		return nil, domain.ErrInvalidInvoiceID
	}
	if buyerID == "" {
		span.SetStatus(codes.Error, "invalid buyer_id")
		return nil, domain.ErrInvalidBuyerID
	}

	span.SetAttributes(
		attribute.String("invoice_id", invoiceID),
		attribute.String("buyer_id", buyerID),
	)

	invoice, err := s.store.PayInvoice(ctx, invoiceID, buyerID, s.now().UTC())
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	metrics.RecordPayment(ctx, invoice.TotalPrice)

	event := domain.NewInvoiceEvent(domain.InvoiceEventPaid, invoice.ID, buyerID, "")
	event.TotalPrice = invoice.TotalPrice
	if err := s.eventPublisher.PublishInvoicePaid(ctx, event); err != nil {
		logger.Get().Warn("failed to publish invoice paid event",
			zap.String("invoice_id", invoice.ID),
			zap.Error(err))
	}

	span.SetStatus(codes.Ok, "")
	return dto.PayInvoiceResponseFrom(invoice), nil
}
