package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
	"github.com/likecodingloveproblems/matchticketselling/internal/dto"
	"github.com/likecodingloveproblems/matchticketselling/internal/service"
	"github.com/likecodingloveproblems/matchticketselling/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// InvoiceHandler handles invoice HTTP requests
type InvoiceHandler struct {
	reservationService service.ReservationService
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(reservationService service.ReservationService) *InvoiceHandler {
	return &InvoiceHandler{reservationService: reservationService}
}

// AddItem handles POST /invoices/items
// Claims the seat and attaches it to the caller's pending invoice, which
// is created on the first claim
func (h *InvoiceHandler) AddItem(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.invoice.add_item")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	buyerID := c.GetString("user_id")
	if buyerID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	var req dto.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid request",
			Code:    "INVALID_REQUEST",
			Message: err.Error(),
		})
		return
	}

	span.SetAttributes(
		attribute.String("buyer_id", buyerID),
		attribute.String("seat_id", req.SeatID),
	)

	result, err := h.reservationService.AddItem(ctx, buyerID, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("invoice_id", result.InvoiceID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, result)
}

// RemoveItem handles DELETE /invoices/items/:id
func (h *InvoiceHandler) RemoveItem(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.invoice.remove_item")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	buyerID := c.GetString("user_id")
	if buyerID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	itemID := c.Param("id")
	span.SetAttributes(
		attribute.String("buyer_id", buyerID),
		attribute.String("item_id", itemID),
	)

	if err := h.reservationService.RemoveItem(ctx, itemID, buyerID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.Status(http.StatusNoContent)
}

// GetInvoice handles GET /invoices/:id
func (h *InvoiceHandler) GetInvoice(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.invoice.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	buyerID := c.GetString("user_id")
	if buyerID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	invoiceID := c.Param("id")
	span.SetAttributes(
		attribute.String("buyer_id", buyerID),
		attribute.String("invoice_id", invoiceID),
	)

	invoice, err := h.reservationService.GetInvoice(ctx, invoiceID, buyerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, invoice)
}

// PayInvoice handles POST /invoices/:id/pay
func (h *InvoiceHandler) PayInvoice(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.invoice.pay")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	buyerID := c.GetString("user_id")
	if buyerID == "" {
		span.SetStatus(codes.Error, "unauthorized")
		c.JSON(http.StatusUnauthorized, dto.ErrorResponse{
			Error: "unauthorized",
			Code:  "UNAUTHORIZED",
		})
		return
	}

	invoiceID := c.Param("id")
	span.SetAttributes(
		attribute.String("buyer_id", buyerID),
		attribute.String("invoice_id", invoiceID),
	)

	result, err := h.reservationService.PayInvoice(ctx, invoiceID, buyerID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, result)
}

// handleError maps domain errors to HTTP responses
func (h *InvoiceHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSeatNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "SEAT_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrInvoiceNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVOICE_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrItemNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "ITEM_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrSeatAlreadyReserved):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "SEAT_ALREADY_RESERVED",
		})
	case errors.Is(err, domain.ErrNotInvoiceOwner):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "NOT_INVOICE_OWNER",
		})
	case errors.Is(err, domain.ErrOnlyPendingInvoice):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVOICE_NOT_PENDING",
		})
	case errors.Is(err, domain.ErrProcessFailed):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "PROCESS_FAILED",
			Message: "The seat is contended right now. Please retry.",
		})
	case domain.IsValidationError(err):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error: "internal server error",
			Code:  "INTERNAL_ERROR",
		})
	}
}
