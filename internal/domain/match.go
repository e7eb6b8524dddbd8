package domain

import (
	"fmt"
	"time"
)

// MatchDuration is how long a stadium is considered occupied around a
// match start; two matches in the same stadium may not start within this
// window of each other
const MatchDuration = 120 * time.Minute

// Match represents a scheduled match whose seats are sold
type Match struct {
	ID        string    `json:"id"`
	HostTeam  string    `json:"host_team"`
	GuestTeam string    `json:"guest_team"`
	Stadium   string    `json:"stadium"`
	StartsAt  time.Time `json:"starts_at"`
	SeatPrice int64     `json:"seat_price"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}

// Name returns the display name used on invoices
func (m *Match) Name() string {
	return fmt.Sprintf("%s:%s at %s in %s",
		m.HostTeam, m.GuestTeam, m.StartsAt.UTC().Format(time.RFC3339), m.Stadium)
}

// Validate checks the match fields before creation
func (m *Match) Validate() error {
	if m.HostTeam == "" || m.GuestTeam == "" || m.Stadium == "" {
		return fmt.Errorf("host team, guest team and stadium are required")
	}
	if m.Capacity <= 0 {
		return ErrInvalidCapacity
	}
	if m.SeatPrice < 0 {
		return ErrInvalidPrice
	}
	return nil
}

// ConflictsWith reports whether another match in the same stadium starts
// too close to this one
func (m *Match) ConflictsWith(other *Match) bool {
	if m.Stadium != other.Stadium {
		return false
	}
	diff := m.StartsAt.Sub(other.StartsAt)
	if diff < 0 {
		diff = -diff
	}
	return diff <= MatchDuration
}
