// Package repository provides data access to seats, tickets and the
// current-scan slot over the abstract document store, plus the MySQL
// audit ledger. The sentinel errors below let the service layer and
// handlers distinguish business outcomes from infrastructure
// failures; anything else bubbling out of a repository is a store
// error and may be retried by the caller.
package repository

import "errors"

// ErrSeatNotFound is returned when an operation targets a seat ID
// that is not part of the seat map. The HTTP layer surfaces it with
// the same seat-unavailable response as ErrSeatUnavailable, so a
// kiosk cannot probe which seat IDs exist; the split only matters
// internally for logging and tests.
var ErrSeatNotFound = errors.New("seat not found")

// ErrSeatUnavailable is returned when a seat already has an active
// ticket. It is a business rejection, not a bug.
var ErrSeatUnavailable = errors.New("seat unavailable")

// ErrTicketNotFound is returned on a ticket lookup miss. For scan
// resolution this is an expected, common outcome.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrTicketExists is returned when creating a ticket whose ID is
// already present. The engine retries with a fresh ID and only
// escalates after its retry budget runs out.
var ErrTicketExists = errors.New("ticket id already exists")
