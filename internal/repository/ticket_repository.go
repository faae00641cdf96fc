package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/rail-ticket-gate/internal/model"
	"github.com/iliyamo/rail-ticket-gate/internal/store"
)

// ticketPrefix is the subtree holding one document per ticket.
const ticketPrefix = "tickets/"

// TicketRepo provides access to issued ticket records. Tickets are
// immutable once created; the only mutation is the bulk clear used
// by the administrative reset.
type TicketRepo struct {
	st store.Store
}

// NewTicketRepo returns a TicketRepo bound to the given store.
func NewTicketRepo(st store.Store) *TicketRepo { return &TicketRepo{st: st} }

func ticketPath(ticketID string) string { return ticketPrefix + ticketID }

// Create stores a new ticket record. The caller supplies the
// pre-generated candidate ID; ErrTicketExists reports a collision
// with an already issued ticket.
func (r *TicketRepo) Create(ctx context.Context, t model.Ticket) error {
	if t.TicketID == "" {
		return fmt.Errorf("create ticket: empty ticket id")
	}
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if cas, ok := r.st.(store.Conditional); ok {
		created, err := cas.SetIfAbsent(ctx, ticketPath(t.TicketID), raw)
		if err != nil {
			return err
		}
		if !created {
			return ErrTicketExists
		}
		return nil
	}
	// no create-if-absent primitive: check then write. Collisions on
	// freshly generated random IDs are the only writers racing here.
	if _, err := r.st.Get(ctx, ticketPath(t.TicketID)); err == nil {
		return ErrTicketExists
	} else if err != store.ErrNotFound {
		return err
	}
	return r.st.Set(ctx, ticketPath(t.TicketID), raw)
}

// Get returns the ticket with the given ID or ErrTicketNotFound.
func (r *TicketRepo) Get(ctx context.Context, ticketID string) (model.Ticket, error) {
	raw, err := r.st.Get(ctx, ticketPath(ticketID))
	if err == store.ErrNotFound {
		return model.Ticket{}, ErrTicketNotFound
	}
	if err != nil {
		return model.Ticket{}, err
	}
	t := model.Ticket{TicketID: ticketID}
	if err := json.Unmarshal(raw, &t); err != nil {
		return model.Ticket{}, fmt.Errorf("ticket %s: %w", ticketID, err)
	}
	return t, nil
}

// List returns all issued tickets, oldest first; ties break on ID.
func (r *TicketRepo) List(ctx context.Context) ([]model.Ticket, error) {
	docs, err := r.st.List(ctx, ticketPrefix)
	if err != nil {
		return nil, err
	}
	tickets := make([]model.Ticket, 0, len(docs))
	for path, raw := range docs {
		t := model.Ticket{TicketID: strings.TrimPrefix(path, ticketPrefix)}
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("ticket %s: %w", t.TicketID, err)
		}
		tickets = append(tickets, t)
	}
	sort.Slice(tickets, func(i, j int) bool {
		if !tickets[i].CreatedAt.Equal(tickets[j].CreatedAt) {
			return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
		}
		return tickets[i].TicketID < tickets[j].TicketID
	})
	return tickets, nil
}

// ClearAll removes every ticket record and returns how many were
// removed. Used only by the reset coordinator.
func (r *TicketRepo) ClearAll(ctx context.Context) (int, error) {
	docs, err := r.st.List(ctx, ticketPrefix)
	if err != nil {
		return 0, err
	}
	removed := 0
	for path := range docs {
		if err := r.st.Delete(ctx, path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
