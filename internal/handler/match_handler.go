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

// MatchHandler handles match HTTP requests
type MatchHandler struct {
	matchService service.MatchService
}

// NewMatchHandler creates a new match handler
func NewMatchHandler(matchService service.MatchService) *MatchHandler {
	return &MatchHandler{matchService: matchService}
}

// CreateMatch handles POST /matches
func (h *MatchHandler) CreateMatch(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.match.create")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	var req dto.CreateMatchRequest
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
		attribute.String("stadium", req.Stadium),
		attribute.Int("capacity", req.Capacity),
	)

	match, err := h.matchService.CreateMatch(ctx, &req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.String("match_id", match.ID))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusCreated, match)
}

// GetMatch handles GET /matches/:id
func (h *MatchHandler) GetMatch(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.match.get")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	matchID := c.Param("id")
	span.SetAttributes(attribute.String("match_id", matchID))

	match, err := h.matchService.GetMatch(ctx, matchID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, match)
}

// ListSeats handles GET /matches/:id/seats
func (h *MatchHandler) ListSeats(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.match.list_seats")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	matchID := c.Param("id")
	span.SetAttributes(attribute.String("match_id", matchID))

	seats, err := h.matchService.ListSeats(ctx, matchID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.handleError(c, err)
		return
	}

	span.SetAttributes(attribute.Int("count", len(seats)))
	span.SetStatus(codes.Ok, "")
	c.JSON(http.StatusOK, gin.H{"seats": seats})
}

// handleError maps domain errors to HTTP responses
func (h *MatchHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrMatchNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "MATCH_NOT_FOUND",
		})
	case errors.Is(err, domain.ErrStadiumMatchConflict):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   err.Error(),
			Code:    "STADIUM_CONFLICT",
			Message: "Another match occupies this stadium around the same time.",
		})
	case errors.Is(err, domain.ErrDuplicateSeatNumber):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "SEATS_ALREADY_CREATED",
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
