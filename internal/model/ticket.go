package model

import (
	"encoding/json"
	"time"
)

// Ticket is an issued reservation binding passenger data to exactly
// one seat. The ticket ID doubles as the scan token: it is generated
// once at issuance and never changes, and a gate scanner presents it
// back to resolve the ticket. Beyond Name and SeatID the passenger
// fields are an open set (destination, phone, route, travel date and
// so on, depending on how issuance is configured); the engine treats
// them as opaque text.
//
// Fields:
//  TicketID  – globally unique, generated at issuance, immutable.
//  Name      – passenger name.
//  SeatID    – seat held by this ticket, set once at creation.
//  Fields    – remaining descriptive attributes keyed by field name.
//  CreatedAt – issuance time.
type Ticket struct {
	TicketID  string
	Name      string
	SeatID    string
	Fields    map[string]string
	CreatedAt time.Time
}

// Field returns the named descriptive attribute or "" when absent.
func (t Ticket) Field(name string) string {
	return t.Fields[name]
}

// ticketDoc is the wire shape of a ticket record. Descriptive fields
// are flattened into the top level next to the fixed keys, matching
// the tickets/{ticketId} documents the scanning and admin clients
// already read. CreatedAt travels as Unix milliseconds.
type ticketDoc map[string]any

const (
	ticketKeyName      = "name"
	ticketKeySeat      = "seatId"
	ticketKeyCreatedAt = "createdAt"
)

// MarshalJSON flattens the ticket into a single JSON object. The
// ticket ID is carried by the record path, not the document, so it
// is not emitted here.
func (t Ticket) MarshalJSON() ([]byte, error) {
	doc := ticketDoc{
		ticketKeyName:      t.Name,
		ticketKeySeat:      t.SeatID,
		ticketKeyCreatedAt: t.CreatedAt.UnixMilli(),
	}
	for k, v := range t.Fields {
		switch k {
		case ticketKeyName, ticketKeySeat, ticketKeyCreatedAt:
			// fixed keys win over descriptive fields
		default:
			doc[k] = v
		}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON is the inverse of MarshalJSON. Unknown top-level
// string values become descriptive fields; the caller restores
// TicketID from the record path.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	out := Ticket{Fields: map[string]string{}}
	for k, raw := range doc {
		switch k {
		case ticketKeyName:
			if err := json.Unmarshal(raw, &out.Name); err != nil {
				return err
			}
		case ticketKeySeat:
			if err := json.Unmarshal(raw, &out.SeatID); err != nil {
				return err
			}
		case ticketKeyCreatedAt:
			var millis int64
			if err := json.Unmarshal(raw, &millis); err != nil {
				return err
			}
			out.CreatedAt = time.UnixMilli(millis).UTC()
		default:
			var s string
			if err := json.Unmarshal(raw, &s); err != nil {
				// tolerate non-string extras rather than failing the record
				continue
			}
			out.Fields[k] = s
		}
	}
	out.TicketID = t.TicketID
	*t = out
	return nil
}
