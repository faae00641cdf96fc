package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/rail-ticket-gate/internal/queue"
	"github.com/iliyamo/rail-ticket-gate/internal/repository"
)

// ResetCoordinator performs the administrative bulk reset: release
// every seat, clear every ticket, empty the current-scan slot.
type ResetCoordinator struct {
	seats     *repository.SeatRepo
	tickets   *repository.TicketRepo
	scans     *repository.ScanRepo
	publisher *Publisher
	log       *zap.Logger
}

// NewResetCoordinator wires the coordinator; publisher may be nil.
func NewResetCoordinator(seats *repository.SeatRepo, tickets *repository.TicketRepo, scans *repository.ScanRepo, publisher *Publisher, log *zap.Logger) *ResetCoordinator {
	return &ResetCoordinator{seats: seats, tickets: tickets, scans: scans, publisher: publisher, log: log}
}

// ResetResult reports how much state the reset actually removed.
type ResetResult struct {
	SeatsReset     int `json:"seats_reset"`
	TicketsCleared int `json:"tickets_cleared"`
}

// ResetAll runs the three reset steps in order, best effort: a
// failing step is recorded and the remaining steps still run, so a
// partial failure leaves as little stale state behind as possible.
// The returned error wraps ErrStore when any step failed; because
// every step is idempotent the caller simply retries ResetAll.
//
// The reset is not atomic against concurrent issuance. A ticket
// created mid-reset may survive or be lost depending on
// interleaving; resets are rare administrative actions and that
// window is accepted.
func (c *ResetCoordinator) ResetAll(ctx context.Context) (ResetResult, error) {
	var result ResetResult
	var failures []error

	seatsReset, err := c.seats.BulkSetAllAvailable(ctx)
	result.SeatsReset = seatsReset
	if err != nil {
		failures = append(failures, fmt.Errorf("releasing seats: %w", err))
	}

	cleared, err := c.tickets.ClearAll(ctx)
	result.TicketsCleared = cleared
	if err != nil {
		failures = append(failures, fmt.Errorf("clearing tickets: %w", err))
	}

	if err := c.scans.Clear(ctx); err != nil {
		failures = append(failures, fmt.Errorf("clearing scan slot: %w", err))
	}

	if len(failures) > 0 {
		err := fmt.Errorf("%w: reset incomplete: %v", ErrStore, errors.Join(failures...))
		c.log.Error("reset finished with failures",
			zap.Int("seats_reset", result.SeatsReset),
			zap.Int("tickets_cleared", result.TicketsCleared),
			zap.Error(err))
		return result, err
	}

	_ = c.publisher.Publish(ctx, queue.GateEvent{
		Type:           queue.EventSystemReset,
		SeatsReset:     result.SeatsReset,
		TicketsCleared: result.TicketsCleared,
	})
	c.log.Info("system reset",
		zap.Int("seats_reset", result.SeatsReset),
		zap.Int("tickets_cleared", result.TicketsCleared))
	return result, nil
}
