package service

import (
	"context"

	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
	"github.com/likecodingloveproblems/matchticketselling/internal/dto"
	"github.com/likecodingloveproblems/matchticketselling/internal/repository"
	"github.com/likecodingloveproblems/matchticketselling/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// MatchService defines the interface for match scheduling logic
type MatchService interface {
	// CreateMatch schedules a match and opens its seat inventory
	CreateMatch(ctx context.Context, req *dto.CreateMatchRequest) (*dto.MatchResponse, error)

	// GetMatch retrieves a match by ID
	GetMatch(ctx context.Context, matchID string) (*dto.MatchResponse, error)

	// ListSeats retrieves the match's seats ordered by number
	ListSeats(ctx context.Context, matchID string) ([]dto.SeatResponse, error)
}

// matchService implements MatchService
type matchService struct {
	matchRepo repository.MatchRepository
}

// NewMatchService creates a new match service
func NewMatchService(matchRepo repository.MatchRepository) MatchService {
	return &matchService{matchRepo: matchRepo}
}

// CreateMatch schedules a match and opens its seat inventory
func (s *matchService) CreateMatch(ctx context.Context, req *dto.CreateMatchRequest) (*dto.MatchResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.match.create")
	defer span.End()

	if req == nil {
		span.SetStatus(codes.Error, "invalid request")
		return nil, domain.ErrInvalidCapacity
	}

	match := &domain.Match{
		HostTeam:  req.HostTeam,
		GuestTeam: req.GuestTeam,
		Stadium:   req.Stadium,
		StartsAt:  req.StartsAt,
		SeatPrice: req.SeatPrice,
		Capacity:  req.Capacity,
	}

	span.SetAttributes(
		attribute.String("stadium", match.Stadium),
		attribute.Int("capacity", match.Capacity),
	)

	if err := s.matchRepo.Create(ctx, match); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.MatchResponseFrom(match), nil
}

// GetMatch retrieves a match by ID
func (s *matchService) GetMatch(ctx context.Context, matchID string) (*dto.MatchResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.match.get")
	defer span.End()

	if matchID == "" {
		span.SetStatus(codes.Error, "invalid match_id")
		return nil, domain.ErrMatchNotFound
	}
	span.SetAttributes(attribute.String("match_id", matchID))

	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.MatchResponseFrom(match), nil
}

// ListSeats retrieves the match's seats ordered by number
func (s *matchService) ListSeats(ctx context.Context, matchID string) ([]dto.SeatResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.match.list_seats")
	defer span.End()

	if matchID == "" {
		span.SetStatus(codes.Error, "invalid match_id")
		return nil, domain.ErrMatchNotFound
	}
	span.SetAttributes(attribute.String("match_id", matchID))

	seats, err := s.matchRepo.ListSeats(ctx, matchID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return dto.SeatResponsesFrom(seats), nil
}
