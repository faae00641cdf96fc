// Package handler exposes the reservation core over HTTP. The
// surface is deliberately small: issue, resolve, reset, plus the
// read endpoints the kiosk and admin screens render from.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rail-ticket-gate/internal/model"
	"github.com/iliyamo/rail-ticket-gate/internal/repository"
	"github.com/iliyamo/rail-ticket-gate/internal/service"
)

// TicketHandler serves ticket issuance and the ticket listing.
type TicketHandler struct {
	Engine  *service.ReservationEngine
	Tickets *repository.TicketRepo
}

// NewTicketHandler constructs a TicketHandler. Both dependencies
// must be non-nil.
func NewTicketHandler(engine *service.ReservationEngine, tickets *repository.TicketRepo) *TicketHandler {
	if engine == nil || tickets == nil {
		panic("nil dependency passed to NewTicketHandler")
	}
	return &TicketHandler{Engine: engine, Tickets: tickets}
}

// ticketJSON is the response shape for one ticket.
type ticketJSON struct {
	TicketID  string            `json:"ticket_id"`
	Name      string            `json:"name"`
	SeatID    string            `json:"seat_id"`
	Fields    map[string]string `json:"fields,omitempty"`
	CreatedAt int64             `json:"created_at"`
}

func toTicketJSON(t model.Ticket) ticketJSON {
	return ticketJSON{
		TicketID:  t.TicketID,
		Name:      t.Name,
		SeatID:    t.SeatID,
		Fields:    t.Fields,
		CreatedAt: t.CreatedAt.UnixMilli(),
	}
}

// Issue handles POST /v1/tickets. The body is a flat JSON object:
// name and seatId are fixed keys, every other string value is a
// descriptive field passed through to the engine. On success it
// returns 201 with the ticket and the scan token to encode into the
// QR symbol.
func (h *TicketHandler) Issue(c echo.Context) error {
	var body map[string]string
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	req := service.IssueRequest{
		Name:   body[service.FieldName],
		SeatID: body[service.FieldSeat],
		Fields: map[string]string{},
	}
	for k, v := range body {
		if k != service.FieldName && k != service.FieldSeat {
			req.Fields[k] = v
		}
	}

	result, err := h.Engine.IssueTicket(c.Request().Context(), req)
	if err != nil {
		var verr *service.ValidationError
		switch {
		case errors.As(err, &verr):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Reason})
		case errors.Is(err, repository.ErrSeatNotFound), errors.Is(err, repository.ErrSeatUnavailable):
			return c.JSON(http.StatusConflict, echo.Map{"error": "the selected seat is not available"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store error, please retry"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"token":  result.Token,
		"ticket": toTicketJSON(result.Ticket),
	})
}

// List handles GET /v1/tickets, the admin dashboard table.
func (h *TicketHandler) List(c echo.Context) error {
	tickets, err := h.Tickets.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store error"})
	}
	out := make([]ticketJSON, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, toTicketJSON(t))
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": out})
}
