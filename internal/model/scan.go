package model

// CurrentScan is the single overwritable record holding the most
// recently resolved ticket, backing the "last scanned" display at
// the gate. It caches a read of the ticket record and owns nothing;
// every successful scan resolution overwrites it and an explicit
// scanner reset (or the administrative reset) clears it.
//
// The JSON keys use snake_case because they mirror the existing
// current_ticket document consumed by the gate display.
type CurrentScan struct {
	Name     string `json:"name"`
	TicketID string `json:"ticket_id"`
	SeatID   string `json:"seat_id"`
}
