package domain

// Seat is a single numbered, priced, reservable unit of one match.
// A reserved seat always carries the holder's full name; an unreserved
// seat never does. Reserved seats are protected from mutation outside
// the claim/release paths.
type Seat struct {
	ID         string `json:"id"`
	MatchID    string `json:"match_id"`
	Number     int    `json:"number"`
	Price      int64  `json:"price"`
	IsReserved bool   `json:"is_reserved"`
	FullName   string `json:"full_name,omitempty"`
}

// Claim marks the seat reserved for the given holder. It fails when the
// seat is already reserved or when the holder name is empty, keeping the
// invariant intact that a seat is reserved if and only if it is named.
func (s *Seat) Claim(fullName string) error {
	if s.IsReserved {
		return ErrSeatAlreadyReserved
	}
	if fullName == "" {
		return ErrFullNameRequired
	}
	s.IsReserved = true
	s.FullName = fullName
	return nil
}

// Release returns the seat to the unreserved state
func (s *Seat) Release() {
	s.IsReserved = false
	s.FullName = ""
}
