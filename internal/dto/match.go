package dto

import (
	"time"

	"github.com/likecodingloveproblems/matchticketselling/internal/domain"
)

// CreateMatchRequest represents a request to schedule a match and open
// its seat inventory
type CreateMatchRequest struct {
	HostTeam  string    `json:"host_team" binding:"required"`
	GuestTeam string    `json:"guest_team" binding:"required"`
	Stadium   string    `json:"stadium" binding:"required"`
	StartsAt  time.Time `json:"starts_at" binding:"required"`
	SeatPrice int64     `json:"seat_price" binding:"required,min=1"`
	Capacity  int       `json:"capacity" binding:"required,min=1"`
}

// MatchResponse represents a match in API responses
type MatchResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	HostTeam  string    `json:"host_team"`
	GuestTeam string    `json:"guest_team"`
	Stadium   string    `json:"stadium"`
	StartsAt  time.Time `json:"starts_at"`
	SeatPrice int64     `json:"seat_price"`
	Capacity  int       `json:"capacity"`
}

// SeatResponse represents a seat in API responses. The holder's name is
// exposed only on reserved seats.
type SeatResponse struct {
	ID         string `json:"id"`
	Number     int    `json:"number"`
	Price      int64  `json:"price"`
	IsReserved bool   `json:"is_reserved"`
	FullName   string `json:"full_name,omitempty"`
}

// MatchResponseFrom builds a MatchResponse from a domain match
func MatchResponseFrom(match *domain.Match) *MatchResponse {
	return &MatchResponse{
		ID:        match.ID,
		Name:      match.Name(),
		HostTeam:  match.HostTeam,
		GuestTeam: match.GuestTeam,
		Stadium:   match.Stadium,
		StartsAt:  match.StartsAt,
		SeatPrice: match.SeatPrice,
		Capacity:  match.Capacity,
	}
}

// SeatResponsesFrom builds SeatResponses from domain seats
func SeatResponsesFrom(seats []domain.Seat) []SeatResponse {
	out := make([]SeatResponse, 0, len(seats))
	for _, seat := range seats {
		out = append(out, SeatResponse{
			ID:         seat.ID,
			Number:     seat.Number,
			Price:      seat.Price,
			IsReserved: seat.IsReserved,
			FullName:   seat.FullName,
		})
	}
	return out
}
