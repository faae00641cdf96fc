// Package service holds the reservation engine, scan resolver and
// reset coordinator that implement the ticket lifecycle on top of
// the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/rail-ticket-gate/internal/model"
	"github.com/iliyamo/rail-ticket-gate/internal/queue"
	"github.com/iliyamo/rail-ticket-gate/internal/repository"
	"github.com/iliyamo/rail-ticket-gate/internal/utils"
)

// FieldName and FieldSeat are always required on issuance; the rest
// of the required set is configurable (the paper forms collected
// different fields per route type, this is their generalization).
const (
	FieldName = "name"
	FieldSeat = "seatId"
	FieldDate = "date"
)

// dateLayout is the travel date format accepted on issuance.
const dateLayout = "2006-01-02"

// idAttempts bounds regeneration after a ticket ID collision before
// the failure surfaces as a store error.
const idAttempts = 3

// ErrStore marks infrastructure failures. Callers may retry the
// whole operation; business rejections never carry it.
var ErrStore = errors.New("store failure")

// ValidationError reports missing or invalid issuance input. No
// store access has happened when it is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// IssueRequest is one ticket issuance. Fields carries the
// descriptive attributes (destination, phone, route, date, ...);
// the engine checks presence of the configured required fields and
// otherwise passes them through untouched.
type IssueRequest struct {
	Name   string
	SeatID string
	Fields map[string]string
}

// IssueResult is the outcome of a successful issuance: the stored
// ticket plus the scan token encoding its ID.
type IssueResult struct {
	Ticket model.Ticket
	Token  string
}

// ReservationEngine allocates a seat to a new ticket atomically.
//
// The issuance order is deliberate: the conditional seat flip runs
// FIRST and is the linearization point. Only a request that wins
// the flip goes on to write the ticket, so two concurrent requests
// for one seat can never both succeed, and a failed flip has
// nothing to roll back. When the backing store offers no
// compare-and-swap, a per-seat lock provides the same guarantee.
type ReservationEngine struct {
	seats     *repository.SeatRepo
	tickets   *repository.TicketRepo
	signer    *utils.TokenSigner
	publisher *Publisher
	required  []string
	locks     *seatLocks
	log       *zap.Logger

	// now is swappable for the date-boundary tests.
	now func() time.Time
}

// NewReservationEngine wires the engine. required lists the field
// names that must be non-empty on every request; signer and
// publisher may be nil.
func NewReservationEngine(seats *repository.SeatRepo, tickets *repository.TicketRepo, signer *utils.TokenSigner, publisher *Publisher, required []string, log *zap.Logger) *ReservationEngine {
	return &ReservationEngine{
		seats:     seats,
		tickets:   tickets,
		signer:    signer,
		publisher: publisher,
		required:  required,
		locks:     newSeatLocks(),
		log:       log,
		now:       time.Now,
	}
}

// IssueTicket validates the request, claims the seat and writes the
// ticket. Failure modes, in order: *ValidationError (nothing
// touched), ErrSeatUnavailable / ErrSeatNotFound (no mutation),
// ErrStore (seat already rolled back, caller may retry).
func (e *ReservationEngine) IssueTicket(ctx context.Context, req IssueRequest) (IssueResult, error) {
	if err := e.validate(req); err != nil {
		return IssueResult{}, err
	}

	// Without store-level compare-and-swap the read-check-write in
	// Reserve must not interleave per seat; lock just this seat.
	if !e.seats.Conditional() {
		l := e.locks.get(req.SeatID)
		l.Lock()
		defer l.Unlock()
	}

	if err := e.seats.Reserve(ctx, req.SeatID); err != nil {
		switch {
		case errors.Is(err, repository.ErrSeatNotFound), errors.Is(err, repository.ErrSeatUnavailable):
			return IssueResult{}, err
		default:
			return IssueResult{}, fmt.Errorf("%w: reserving seat %s: %v", ErrStore, req.SeatID, err)
		}
	}

	ticket, err := e.writeTicket(ctx, req)
	if err != nil {
		// The seat is flipped but no ticket references it; put it
		// back before surfacing the failure.
		if relErr := e.seats.Release(ctx, req.SeatID); relErr != nil {
			e.log.Error("seat rollback failed, seat stuck unavailable",
				zap.String("seat_id", req.SeatID), zap.Error(relErr))
		}
		return IssueResult{}, err
	}

	token := ticket.TicketID
	if e.signer != nil {
		signed, err := e.signer.Sign(ticket.TicketID)
		if err != nil {
			// ticket and seat are consistent; fall back to the bare ID
			e.log.Warn("token signing failed, returning bare ticket id", zap.Error(err))
		} else {
			token = signed
		}
	}

	ev := queue.GateEvent{
		Type:     queue.EventTicketIssued,
		TicketID: ticket.TicketID,
		Name:     ticket.Name,
		SeatID:   ticket.SeatID,
	}
	_ = e.publisher.Publish(ctx, ev)

	e.log.Info("ticket issued",
		zap.String("ticket_id", ticket.TicketID), zap.String("seat_id", ticket.SeatID))
	return IssueResult{Ticket: ticket, Token: token}, nil
}

// writeTicket persists the ticket record, regenerating the ID on
// collision up to the retry budget.
func (e *ReservationEngine) writeTicket(ctx context.Context, req IssueRequest) (model.Ticket, error) {
	var lastErr error
	for attempt := 0; attempt < idAttempts; attempt++ {
		id, err := utils.NewTicketID()
		if err != nil {
			return model.Ticket{}, fmt.Errorf("%w: generating ticket id: %v", ErrStore, err)
		}
		ticket := model.Ticket{
			TicketID:  id,
			Name:      req.Name,
			SeatID:    req.SeatID,
			Fields:    cloneFields(req.Fields),
			CreatedAt: e.now().UTC(),
		}
		err = e.tickets.Create(ctx, ticket)
		if err == nil {
			return ticket, nil
		}
		if errors.Is(err, repository.ErrTicketExists) {
			e.log.Warn("ticket id collision, regenerating", zap.String("ticket_id", id))
			lastErr = err
			continue
		}
		return model.Ticket{}, fmt.Errorf("%w: writing ticket: %v", ErrStore, err)
	}
	return model.Ticket{}, fmt.Errorf("%w: ticket id retries exhausted: %v", ErrStore, lastErr)
}

func (e *ReservationEngine) validate(req IssueRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return &ValidationError{Reason: "name is required"}
	}
	if strings.TrimSpace(req.SeatID) == "" {
		return &ValidationError{Reason: "seatId is required"}
	}
	for _, field := range e.required {
		switch field {
		case FieldName, FieldSeat:
			// always checked above
		default:
			if strings.TrimSpace(req.Fields[field]) == "" {
				return &ValidationError{Reason: field + " is required"}
			}
		}
	}
	if date := req.Fields[FieldDate]; date != "" {
		parsed, err := time.Parse(dateLayout, date)
		if err != nil {
			return &ValidationError{Reason: "date must be formatted " + dateLayout}
		}
		// Day granularity: today is fine, yesterday is not.
		now := e.now().UTC()
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		if parsed.Before(today) {
			return &ValidationError{Reason: "date must not be in the past"}
		}
	}
	return nil
}

func cloneFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
