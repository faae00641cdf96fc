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

// seatPrefix is the subtree holding one document per seat.
const seatPrefix = "seats/"

// casAttempts bounds the reserve loop. Each failed swap means some
// other writer touched the seat record; re-reading either finds the
// seat taken (a clean rejection) or retries the swap.
const casAttempts = 4

// SeatRepo provides access to the seat availability map. Every
// write replaces the whole seat document, so concurrent readers
// never observe a half-written seat.
type SeatRepo struct {
	st store.Store
}

// NewSeatRepo returns a SeatRepo bound to the given store.
func NewSeatRepo(st store.Store) *SeatRepo { return &SeatRepo{st: st} }

// Conditional reports whether the backing store supports
// compare-and-swap. When it does not, callers must serialize
// writes per seat themselves (the engine keeps a lock table).
func (r *SeatRepo) Conditional() bool {
	_, ok := r.st.(store.Conditional)
	return ok
}

func seatPath(seatID string) string { return seatPrefix + seatID }

// Get returns a single seat or ErrSeatNotFound.
func (r *SeatRepo) Get(ctx context.Context, seatID string) (model.Seat, error) {
	raw, err := r.st.Get(ctx, seatPath(seatID))
	if err == store.ErrNotFound {
		return model.Seat{}, ErrSeatNotFound
	}
	if err != nil {
		return model.Seat{}, err
	}
	return decodeSeat(seatID, raw)
}

// List returns a snapshot of every seat, ordered by seat ID for
// deterministic output.
func (r *SeatRepo) List(ctx context.Context) ([]model.Seat, error) {
	docs, err := r.st.List(ctx, seatPrefix)
	if err != nil {
		return nil, err
	}
	seats := make([]model.Seat, 0, len(docs))
	for path, raw := range docs {
		seat, err := decodeSeat(strings.TrimPrefix(path, seatPrefix), raw)
		if err != nil {
			return nil, err
		}
		seats = append(seats, seat)
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].SeatID < seats[j].SeatID })
	return seats, nil
}

// SetAvailability is the unconditional point update. It keeps the
// seat's descriptive status and flips only the availability flag.
// Returns ErrSeatNotFound for unknown seats.
func (r *SeatRepo) SetAvailability(ctx context.Context, seatID string, available bool) error {
	seat, err := r.Get(ctx, seatID)
	if err != nil {
		return err
	}
	seat.Available = available
	return r.put(ctx, seat)
}

// Reserve flips the seat to unavailable only if it is currently
// available. This conditional flip is the linearization point of
// ticket issuance: of any number of concurrent reservations for one
// seat, exactly one swap succeeds and every other caller gets
// ErrSeatUnavailable. Unknown seats yield ErrSeatNotFound.
//
// On a store without compare-and-swap the read-check-write here is
// not atomic; the reservation engine must hold the per-seat lock
// around the call.
func (r *SeatRepo) Reserve(ctx context.Context, seatID string) error {
	cas, hasCAS := r.st.(store.Conditional)
	for attempt := 0; attempt < casAttempts; attempt++ {
		raw, err := r.st.Get(ctx, seatPath(seatID))
		if err == store.ErrNotFound {
			return ErrSeatNotFound
		}
		if err != nil {
			return err
		}
		seat, err := decodeSeat(seatID, raw)
		if err != nil {
			return err
		}
		if !seat.Available {
			return ErrSeatUnavailable
		}
		seat.Available = false
		next, err := encodeSeat(seat)
		if err != nil {
			return err
		}
		if !hasCAS {
			return r.st.Set(ctx, seatPath(seatID), next)
		}
		swapped, err := cas.CompareAndSwap(ctx, seatPath(seatID), raw, next)
		if err != nil {
			return err
		}
		if swapped {
			return nil
		}
		// lost the race on this record; re-read and decide again
	}
	return fmt.Errorf("seat %s: gave up after %d contended swaps", seatID, casAttempts)
}

// Release marks the seat available again. It is the rollback path
// when a ticket write fails after the seat was already flipped.
func (r *SeatRepo) Release(ctx context.Context, seatID string) error {
	return r.SetAvailability(ctx, seatID, true)
}

// BulkSetAllAvailable releases every seat and returns how many were
// actually flipped, so that re-running a reset over an already clean
// seat map reports zero.
func (r *SeatRepo) BulkSetAllAvailable(ctx context.Context) (int, error) {
	seats, err := r.List(ctx)
	if err != nil {
		return 0, err
	}
	flipped := 0
	for _, seat := range seats {
		if seat.Available {
			continue
		}
		seat.Available = true
		if err := r.put(ctx, seat); err != nil {
			return flipped, err
		}
		flipped++
	}
	return flipped, nil
}

// Seed creates any missing seats as available. Existing seats are
// left untouched, so seeding on every boot is safe.
func (r *SeatRepo) Seed(ctx context.Context, seatIDs []string) error {
	for _, id := range seatIDs {
		if id == "" {
			continue
		}
		raw, err := encodeSeat(model.Seat{SeatID: id, Available: true})
		if err != nil {
			return err
		}
		if cas, ok := r.st.(store.Conditional); ok {
			if _, err := cas.SetIfAbsent(ctx, seatPath(id), raw); err != nil {
				return err
			}
			continue
		}
		if _, err := r.st.Get(ctx, seatPath(id)); err == store.ErrNotFound {
			if err := r.st.Set(ctx, seatPath(id), raw); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	}
	return nil
}

func (r *SeatRepo) put(ctx context.Context, seat model.Seat) error {
	raw, err := encodeSeat(seat)
	if err != nil {
		return err
	}
	return r.st.Set(ctx, seatPath(seat.SeatID), raw)
}

// seatDoc is the wire shape at seats/{seatId}. The seat ID lives in
// the path, not the document.
type seatDoc struct {
	Available bool   `json:"available"`
	Status    string `json:"status,omitempty"`
}

func encodeSeat(seat model.Seat) ([]byte, error) {
	return json.Marshal(seatDoc{Available: seat.Available, Status: seat.Status})
}

func decodeSeat(seatID string, raw []byte) (model.Seat, error) {
	var doc seatDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return model.Seat{}, fmt.Errorf("seat %s: %w", seatID, err)
	}
	return model.Seat{SeatID: seatID, Available: doc.Available, Status: doc.Status}, nil
}
