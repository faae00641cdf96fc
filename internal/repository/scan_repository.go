package repository

import (
	"context"
	"encoding/json"

	"github.com/iliyamo/rail-ticket-gate/internal/model"
	"github.com/iliyamo/rail-ticket-gate/internal/store"
)

// scanPath is the single document holding the most recently
// resolved ticket.
const scanPath = "current_ticket"

// ScanRepo manages the current-scan slot. The slot holds at most
// one record and every write replaces it whole (last write wins).
type ScanRepo struct {
	st store.Store
}

// NewScanRepo returns a ScanRepo bound to the given store.
func NewScanRepo(st store.Store) *ScanRepo { return &ScanRepo{st: st} }

// Current returns the published scan, or nil when the slot is empty.
func (r *ScanRepo) Current(ctx context.Context) (*model.CurrentScan, error) {
	raw, err := r.st.Get(ctx, scanPath)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var cs model.CurrentScan
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, err
	}
	return &cs, nil
}

// Set overwrites the slot.
func (r *ScanRepo) Set(ctx context.Context, cs model.CurrentScan) error {
	raw, err := json.Marshal(cs)
	if err != nil {
		return err
	}
	return r.st.Set(ctx, scanPath, raw)
}

// Clear empties the slot. Clearing an empty slot is a no-op.
func (r *ScanRepo) Clear(ctx context.Context) error {
	return r.st.Delete(ctx, scanPath)
}
