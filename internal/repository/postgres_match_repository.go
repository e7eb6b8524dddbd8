package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
	"github.com/likecodingloveproblems/matchticketselling/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PostgresMatchRepository implements MatchRepository using PostgreSQL
type PostgresMatchRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresMatchRepository creates a new PostgresMatchRepository
func NewPostgresMatchRepository(pool *pgxpool.Pool) *PostgresMatchRepository {
	return &PostgresMatchRepository{pool: pool}
}

// Create inserts the match and bulk-creates its seats in one transaction
func (r *PostgresMatchRepository) Create(ctx context.Context, match *domain.Match) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.match.create")
	defer span.End()

	if err := match.Validate(); err != nil {
		return err
	}
	if match.ID == "" {
		match.ID = uuid.New().String()
	}

	span.SetAttributes(
		attribute.String("match_id", match.ID),
		attribute.String("stadium", match.Stadium),
		attribute.Int("capacity", match.Capacity),
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		return domain.ErrProcessFailed
	}
	defer tx.Rollback(ctx)

	// Overlap guard: no other match in this stadium may start within the
	// match duration window
	var conflict bool
	err = tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM matches
			WHERE stadium = $1
			  AND starts_at BETWEEN $2::timestamptz - interval '120 minutes'
			                    AND $2::timestamptz + interval '120 minutes'
		)`, match.Stadium, match.StartsAt).Scan(&conflict)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to check stadium conflicts: %w", err)
	}
	if conflict {
		span.SetStatus(codes.Error, "stadium conflict")
		return domain.ErrStadiumMatchConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO matches (id, host_team, guest_team, stadium, starts_at, seat_price, capacity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		match.ID, match.HostTeam, match.GuestTeam, match.Stadium,
		match.StartsAt, match.SeatPrice, match.Capacity,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create match: %w", err)
	}

	rows := make([][]interface{}, 0, match.Capacity)
	for number := 1; number <= match.Capacity; number++ {
		rows = append(rows, []interface{}{uuid.New().String(), match.ID, number, match.SeatPrice})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"seats"},
		[]string{"id", "match_id", "number", "price"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			span.SetStatus(codes.Error, "duplicate seat number")
			return domain.ErrDuplicateSeatNumber
		}
		span.RecordError(err)
		return fmt.Errorf("failed to create seats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		return domain.ErrProcessFailed
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a match by its ID
func (r *PostgresMatchRepository) GetByID(ctx context.Context, matchID string) (*domain.Match, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.match.get_by_id")
	defer span.End()
	span.SetAttributes(attribute.String("match_id", matchID))

	match := &domain.Match{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, host_team, guest_team, stadium, starts_at, seat_price, capacity, created_at
		FROM matches WHERE id = $1`, matchID,
	).Scan(
		&match.ID, &match.HostTeam, &match.GuestTeam, &match.Stadium,
		&match.StartsAt, &match.SeatPrice, &match.Capacity, &match.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrMatchNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return match, nil
}

// ListSeats returns the match's seats ordered by number
func (r *PostgresMatchRepository) ListSeats(ctx context.Context, matchID string) ([]domain.Seat, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.postgres.match.list_seats")
	defer span.End()
	span.SetAttributes(attribute.String("match_id", matchID))

	if _, err := r.GetByID(ctx, matchID); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, match_id, number, price, is_reserved, full_name
		FROM seats WHERE match_id = $1 ORDER BY number`, matchID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list seats: %w", err)
	}
	defer rows.Close()

	seats := make([]domain.Seat, 0)
	for rows.Next() {
		var seat domain.Seat
		if err := rows.Scan(&seat.ID, &seat.MatchID, &seat.Number,
			&seat.Price, &seat.IsReserved, &seat.FullName); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan seat: %w", err)
		}
		seats = append(seats, seat)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read seats: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return seats, nil
}
