package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/rail-ticket-gate/internal/repository"
	"github.com/iliyamo/rail-ticket-gate/internal/service"
	"github.com/iliyamo/rail-ticket-gate/internal/store"
)

// AdminHandler serves the administrative surface: seat snapshot,
// bulk reset and the live change feed the dashboard listens to.
type AdminHandler struct {
	Seats *repository.SeatRepo
	Reset *service.ResetCoordinator
	Store store.Store
	Log   *zap.Logger

	upgrader websocket.Upgrader
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(seats *repository.SeatRepo, reset *service.ResetCoordinator, st store.Store, log *zap.Logger) *AdminHandler {
	if seats == nil || reset == nil || st == nil {
		panic("nil dependency passed to NewAdminHandler")
	}
	return &AdminHandler{
		Seats: seats,
		Reset: reset,
		Store: st,
		Log:   log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the dashboard is served from another origin in dev
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// ListSeats handles GET /v1/seats, the availability table.
func (h *AdminHandler) ListSeats(c echo.Context) error {
	seats, err := h.Seats.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"seats": seats})
}

// ResetAll handles POST /v1/admin/reset. On partial failure the
// counts of what did reset are still returned alongside a 500 so
// the operator can simply retry; the reset is idempotent.
func (h *AdminHandler) ResetAll(c echo.Context) error {
	result, err := h.Reset.ResetAll(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"error":           "reset incomplete, please retry",
			"seats_reset":     result.SeatsReset,
			"tickets_cleared": result.TicketsCleared,
		})
	}
	return c.JSON(http.StatusOK, result)
}

// watchMessage is one change event pushed over the websocket.
type watchMessage struct {
	Path    string          `json:"path"`
	Value   json.RawMessage `json:"value,omitempty"`
	Deleted bool            `json:"deleted,omitempty"`
}

// Watch handles GET /v1/admin/watch. It upgrades to a websocket and
// forwards every store change (seats, tickets, scan slot) until the
// client disconnects. The dashboard uses it to keep its tables live
// without polling.
func (h *AdminHandler) Watch(c echo.Context) error {
	sub, err := h.Store.Watch(c.Request().Context(), "")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store error"})
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		sub.Unsubscribe()
		return err
	}
	defer ws.Close()
	defer sub.Unsubscribe()

	// Discard inbound frames; the read also notices a closed peer
	// and ends the subscription.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return nil
		case ev, ok := <-sub.Events():
			if !ok {
				return nil
			}
			msg := watchMessage{Path: ev.Path, Value: ev.Value, Deleted: ev.Deleted}
			if err := ws.WriteJSON(msg); err != nil {
				h.Log.Debug("watch client gone", zap.Error(err))
				return nil
			}
		}
	}
}
