package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/rail-ticket-gate/internal/model"
	"github.com/iliyamo/rail-ticket-gate/internal/repository"
	"github.com/iliyamo/rail-ticket-gate/internal/store"
)

func newTestSeats(t *testing.T, st store.Store, seats ...model.Seat) *repository.SeatRepo {
	t.Helper()
	repo := repository.NewSeatRepo(st)
	ctx := context.Background()
	var ids []string
	for _, s := range seats {
		ids = append(ids, s.SeatID)
	}
	if err := repo.Seed(ctx, ids); err != nil {
		t.Fatalf("seeding seats: %v", err)
	}
	for _, s := range seats {
		if !s.Available {
			if err := repo.SetAvailability(ctx, s.SeatID, false); err != nil {
				t.Fatalf("marking %s unavailable: %v", s.SeatID, err)
			}
		}
	}
	return repo
}

func newTestEngine(t *testing.T, st store.Store, required []string, seats ...model.Seat) (*ReservationEngine, *repository.TicketRepo) {
	t.Helper()
	seatRepo := newTestSeats(t, st, seats...)
	ticketRepo := repository.NewTicketRepo(st)
	engine := NewReservationEngine(seatRepo, ticketRepo, nil, nil, required, zap.NewNop())
	return engine, ticketRepo
}

func today() string { return time.Now().UTC().Format("2006-01-02") }

func TestIssueTicketValidation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine, _ := newTestEngine(t, store.NewMemory(),
		[]string{"name", "destination", "date"},
		model.Seat{SeatID: "S1", Available: true})

	cases := []struct {
		name string
		req  IssueRequest
	}{
		{"missing name", IssueRequest{SeatID: "S1", Fields: map[string]string{"destination": "Basel", "date": today()}}},
		{"missing seat", IssueRequest{Name: "Ada", Fields: map[string]string{"destination": "Basel", "date": today()}}},
		{"missing required field", IssueRequest{Name: "Ada", SeatID: "S1", Fields: map[string]string{"date": today()}}},
		{"malformed date", IssueRequest{Name: "Ada", SeatID: "S1", Fields: map[string]string{"destination": "Basel", "date": "tomorrow"}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.IssueTicket(ctx, tc.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("IssueTicket() = %v, want ValidationError", err)
			}
		})
	}

	// a rejected request must not touch the seat
	seat, err := engine.seats.Get(ctx, "S1")
	if err != nil {
		t.Fatalf("Get(S1) error: %v", err)
	}
	if !seat.Available {
		t.Error("validation failure flipped the seat")
	}
}

func TestIssueTicketDateBoundary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine, _ := newTestEngine(t, store.NewMemory(),
		[]string{"name", "date"},
		model.Seat{SeatID: "S1", Available: true},
		model.Seat{SeatID: "S2", Available: true})

	fixed := time.Date(2026, 8, 31, 15, 30, 0, 0, time.UTC)
	engine.now = func() time.Time { return fixed }

	t.Run("yesterday rejected", func(t *testing.T) {
		_, err := engine.IssueTicket(ctx, IssueRequest{
			Name: "Ada", SeatID: "S1",
			Fields: map[string]string{"date": "2026-08-30"},
		})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("IssueTicket(yesterday) = %v, want ValidationError", err)
		}
	})

	t.Run("today accepted despite time of day", func(t *testing.T) {
		if _, err := engine.IssueTicket(ctx, IssueRequest{
			Name: "Ada", SeatID: "S1",
			Fields: map[string]string{"date": "2026-08-31"},
		}); err != nil {
			t.Errorf("IssueTicket(today) error: %v", err)
		}
	})

	t.Run("future accepted", func(t *testing.T) {
		if _, err := engine.IssueTicket(ctx, IssueRequest{
			Name: "Ada", SeatID: "S2",
			Fields: map[string]string{"date": "2026-12-24"},
		}); err != nil {
			t.Errorf("IssueTicket(future) error: %v", err)
		}
	})
}

func TestIssueTicketSeatScenario(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine, tickets := newTestEngine(t, store.NewMemory(),
		[]string{"name"},
		model.Seat{SeatID: "S1", Available: true},
		model.Seat{SeatID: "S2", Available: false})

	result, err := engine.IssueTicket(ctx, IssueRequest{Name: "Ada", SeatID: "S1"})
	if err != nil {
		t.Fatalf("IssueTicket(S1) error: %v", err)
	}
	if result.Ticket.SeatID != "S1" || result.Ticket.TicketID == "" {
		t.Errorf("IssueTicket(S1) = %+v, want ticket bound to S1", result.Ticket)
	}
	if result.Token != result.Ticket.TicketID {
		t.Errorf("unsigned token = %q, want the bare ticket ID", result.Token)
	}

	if _, err := engine.IssueTicket(ctx, IssueRequest{Name: "Bob", SeatID: "S1"}); !errors.Is(err, repository.ErrSeatUnavailable) {
		t.Errorf("IssueTicket(S1 again) = %v, want ErrSeatUnavailable", err)
	}
	if _, err := engine.IssueTicket(ctx, IssueRequest{Name: "Bob", SeatID: "S2"}); !errors.Is(err, repository.ErrSeatUnavailable) {
		t.Errorf("IssueTicket(S2) = %v, want ErrSeatUnavailable", err)
	}
	if _, err := engine.IssueTicket(ctx, IssueRequest{Name: "Bob", SeatID: "S9"}); !errors.Is(err, repository.ErrSeatNotFound) {
		t.Errorf("IssueTicket(S9) = %v, want ErrSeatNotFound", err)
	}

	all, err := tickets.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("%d tickets issued, want 1 (rejections must not create tickets)", len(all))
	}
}

// concurrent issuance for one seat: exactly one caller wins, the
// rest get the business rejection, and exactly one ticket ends up
// referencing the seat.
func TestIssueTicketConcurrentSameSeat(t *testing.T) {
	t.Parallel()

	run := func(t *testing.T, st store.Store) {
		ctx := context.Background()
		engine, tickets := newTestEngine(t, st,
			[]string{"name"},
			model.Seat{SeatID: "S1", Available: true})

		const callers = 24
		var wg sync.WaitGroup
		errs := make([]error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = engine.IssueTicket(ctx, IssueRequest{Name: "Ada", SeatID: "S1"})
			}(i)
		}
		wg.Wait()

		wins := 0
		for _, err := range errs {
			switch {
			case err == nil:
				wins++
			case errors.Is(err, repository.ErrSeatUnavailable):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}
		if wins != 1 {
			t.Errorf("%d callers succeeded, want exactly 1", wins)
		}

		all, err := tickets.List(ctx)
		if err != nil {
			t.Fatalf("List() error: %v", err)
		}
		referencing := 0
		for _, tk := range all {
			if tk.SeatID == "S1" {
				referencing++
			}
		}
		if referencing != 1 {
			t.Errorf("%d tickets reference S1, want exactly 1", referencing)
		}
	}

	t.Run("compare-and-swap store", func(t *testing.T) {
		t.Parallel()
		run(t, store.NewMemory())
	})
	t.Run("plain store with per-seat locks", func(t *testing.T) {
		t.Parallel()
		run(t, plainStore{store.NewMemory()})
	})
}

// plainStore hides the Conditional capability of the memory store,
// forcing the engine onto its per-seat lock fallback.
type plainStore struct {
	inner *store.Memory
}

func (p plainStore) Get(ctx context.Context, path string) ([]byte, error) {
	return p.inner.Get(ctx, path)
}
func (p plainStore) Set(ctx context.Context, path string, value []byte) error {
	return p.inner.Set(ctx, path, value)
}
func (p plainStore) Delete(ctx context.Context, path string) error {
	return p.inner.Delete(ctx, path)
}
func (p plainStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	return p.inner.List(ctx, prefix)
}
func (p plainStore) Watch(ctx context.Context, prefix string) (store.Subscription, error) {
	return p.inner.Watch(ctx, prefix)
}

// flakyStore fails ticket writes so the rollback path can be
// observed.
type flakyStore struct {
	*store.Memory
}

func (f flakyStore) SetIfAbsent(ctx context.Context, path string, value []byte) (bool, error) {
	if strings.HasPrefix(path, "tickets/") {
		return false, errors.New("injected write failure")
	}
	return f.Memory.SetIfAbsent(ctx, path, value)
}

func TestIssueTicketRollsBackSeatOnTicketWriteFailure(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	engine, _ := newTestEngine(t, flakyStore{store.NewMemory()},
		[]string{"name"},
		model.Seat{SeatID: "S1", Available: true})

	_, err := engine.IssueTicket(ctx, IssueRequest{Name: "Ada", SeatID: "S1"})
	if !errors.Is(err, ErrStore) {
		t.Fatalf("IssueTicket() = %v, want ErrStore", err)
	}

	seat, err := engine.seats.Get(ctx, "S1")
	if err != nil {
		t.Fatalf("Get(S1) error: %v", err)
	}
	if !seat.Available {
		t.Error("seat left unavailable after failed ticket write")
	}
}

// collidingStore reports the first n ticket writes as already
// present, forcing the engine down its ID regeneration path.
type collidingStore struct {
	*store.Memory
	mu         sync.Mutex
	collisions int
}

func (c *collidingStore) SetIfAbsent(ctx context.Context, path string, value []byte) (bool, error) {
	if strings.HasPrefix(path, "tickets/") {
		c.mu.Lock()
		collide := c.collisions > 0
		if collide {
			c.collisions--
		}
		c.mu.Unlock()
		if collide {
			return false, nil
		}
	}
	return c.Memory.SetIfAbsent(ctx, path, value)
}

func TestIssueTicketRegeneratesIDOnCollision(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := &collidingStore{Memory: store.NewMemory(), collisions: idAttempts - 1}
	engine, tickets := newTestEngine(t, st,
		[]string{"name"},
		model.Seat{SeatID: "S1", Available: true})

	result, err := engine.IssueTicket(ctx, IssueRequest{Name: "Ada", SeatID: "S1"})
	if err != nil {
		t.Fatalf("IssueTicket() after collisions = %v, want success", err)
	}
	if _, err := tickets.Get(ctx, result.Ticket.TicketID); err != nil {
		t.Errorf("Get(%s) = %v, want the regenerated ticket stored", result.Ticket.TicketID, err)
	}
	seat, err := engine.seats.Get(ctx, "S1")
	if err != nil {
		t.Fatalf("Get(S1) error: %v", err)
	}
	if seat.Available {
		t.Error("seat still available after successful issuance")
	}
}

func TestIssueTicketCollisionBudgetExhausted(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	// more collisions than the engine will ever retry
	st := &collidingStore{Memory: store.NewMemory(), collisions: 1 << 30}
	engine, tickets := newTestEngine(t, st,
		[]string{"name"},
		model.Seat{SeatID: "S1", Available: true})

	_, err := engine.IssueTicket(ctx, IssueRequest{Name: "Ada", SeatID: "S1"})
	if !errors.Is(err, ErrStore) {
		t.Fatalf("IssueTicket() = %v, want ErrStore once retries run out", err)
	}
	seat, err := engine.seats.Get(ctx, "S1")
	if err != nil {
		t.Fatalf("Get(S1) error: %v", err)
	}
	if !seat.Available {
		t.Error("seat left unavailable after exhausted ID retries")
	}
	stored, err := tickets.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("%d tickets stored, want none", len(stored))
	}
}
