package model

// Seat describes a single bookable seat. Seats live in a flat
// namespace and are identified by a stable string ID such as
// "A1" or "coach2-14". Availability is the inverse of "an active
// ticket currently holds this seat"; Status is a free-form
// descriptive label (maintenance, reserved for staff, ...) that
// is independent of availability.
//
// Fields:
//  SeatID    – stable unique identifier of the seat.
//  Available – true iff no active ticket references this seat.
//  Status    – optional descriptive label, not interpreted.
type Seat struct {
	SeatID    string `json:"seatId"`
	Available bool   `json:"available"`
	Status    string `json:"status,omitempty"`
}
