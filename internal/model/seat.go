package model

// Seat describes one position in a showtime's static layout.  Seats
// have no lifecycle of their own: they exist as part of the seat map
// supplied by the catalog and are identified by a label that is unique
// within the showtime (for example "A1").
//
// Fields:
//  ID     – seat label, unique per showtime.
//  Row    – row label (A, B, ... AA).
//  Number – seat number within the row.
//  Type   – STANDARD, VIP or ACCESSIBLE.
type Seat struct {
	ID     string `json:"id"`     // showtime_seats.seat_id
	Row    string `json:"row"`    // showtime_seats.row_label
	Number uint32 `json:"number"` // showtime_seats.seat_number
	Type   string `json:"type"`   // showtime_seats.seat_type
}

// SeatState is the availability of a seat as seen by a new visitor.
type SeatState string

const (
	SeatFree SeatState = "FREE"
	SeatHeld SeatState = "HELD"
	SeatSold SeatState = "SOLD"
)

// SeatAvailability pairs a seat from the layout with its current state.
type SeatAvailability struct {
	Seat  Seat      `json:"seat"`
	State SeatState `json:"state"`
}
