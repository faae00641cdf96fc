package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/iliyamo/rail-ticket-gate/internal/model"
	"github.com/iliyamo/rail-ticket-gate/internal/queue"
	"github.com/iliyamo/rail-ticket-gate/internal/repository"
	"github.com/iliyamo/rail-ticket-gate/internal/utils"
)

// ScanResolver turns a scanned token back into ticket details and
// publishes the result into the current-scan slot for the gate
// display.
type ScanResolver struct {
	tickets   *repository.TicketRepo
	scans     *repository.ScanRepo
	signer    *utils.TokenSigner
	publisher *Publisher
	log       *zap.Logger
}

// NewScanResolver wires the resolver; signer and publisher may be
// nil.
func NewScanResolver(tickets *repository.TicketRepo, scans *repository.ScanRepo, signer *utils.TokenSigner, publisher *Publisher, log *zap.Logger) *ScanResolver {
	return &ScanResolver{tickets: tickets, scans: scans, signer: signer, publisher: publisher, log: log}
}

// Resolve looks up the ticket behind a scanned token and overwrites
// the current-scan slot with it. Resolving the ticket that is
// already published skips the slot write but still returns the
// ticket, so repeated frames of the same QR code cost one read.
// ErrTicketNotFound is the expected miss; the slot is left
// untouched so the display keeps showing the last good scan.
func (r *ScanResolver) Resolve(ctx context.Context, token string) (model.Ticket, error) {
	id := r.unwrap(token)
	ticket, err := r.tickets.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return model.Ticket{}, err
		}
		return model.Ticket{}, fmt.Errorf("%w: reading ticket %s: %v", ErrStore, id, err)
	}

	current, err := r.scans.Current(ctx)
	if err != nil {
		return model.Ticket{}, fmt.Errorf("%w: reading scan slot: %v", ErrStore, err)
	}
	if current == nil || current.TicketID != ticket.TicketID {
		cs := model.CurrentScan{
			Name:     ticket.Name,
			TicketID: ticket.TicketID,
			SeatID:   ticket.SeatID,
		}
		if err := r.scans.Set(ctx, cs); err != nil {
			return model.Ticket{}, fmt.Errorf("%w: publishing scan: %v", ErrStore, err)
		}
		_ = r.publisher.Publish(ctx, queue.GateEvent{
			Type:     queue.EventTicketScanned,
			TicketID: ticket.TicketID,
			Name:     ticket.Name,
			SeatID:   ticket.SeatID,
		})
		r.log.Info("scan resolved",
			zap.String("ticket_id", ticket.TicketID), zap.String("seat_id", ticket.SeatID))
	}
	return ticket, nil
}

// Current returns the published scan, nil when the slot is empty.
func (r *ScanResolver) Current(ctx context.Context) (*model.CurrentScan, error) {
	return r.scans.Current(ctx)
}

// ResetScanner clears the slot; the gate display goes back to idle.
func (r *ScanResolver) ResetScanner(ctx context.Context) error {
	if err := r.scans.Clear(ctx); err != nil {
		return fmt.Errorf("%w: clearing scan slot: %v", ErrStore, err)
	}
	return nil
}

// unwrap extracts the ticket ID from a scan token. Signed tokens
// are verified; anything that does not verify is treated as a bare
// ticket ID and resolves (or misses) as such.
func (r *ScanResolver) unwrap(token string) string {
	if r.signer == nil {
		return token
	}
	id, err := r.signer.Parse(token)
	if err != nil {
		return token
	}
	return id
}
