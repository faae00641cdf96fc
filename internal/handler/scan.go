package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rail-ticket-gate/internal/repository"
	"github.com/iliyamo/rail-ticket-gate/internal/service"
)

// ScanHandler serves the gate scanner: token resolution, the
// current-scan display and the scanner reset.
type ScanHandler struct {
	Resolver *service.ScanResolver
}

// NewScanHandler constructs a ScanHandler.
func NewScanHandler(resolver *service.ScanResolver) *ScanHandler {
	if resolver == nil {
		panic("nil resolver passed to NewScanHandler")
	}
	return &ScanHandler{Resolver: resolver}
}

// Resolve handles POST /v1/scan with body {"token": "..."}. A hit
// returns the ticket and publishes it as the current scan; a miss
// returns 404 and the scanner keeps scanning.
func (h *ScanHandler) Resolve(c echo.Context) error {
	var body struct {
		Token string `json:"token"`
	}
	if err := c.Bind(&body); err != nil || body.Token == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "token is required"})
	}
	ticket, err := h.Resolver.Resolve(c.Request().Context(), body.Token)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "no ticket found for this token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store error, please retry"})
	}
	return c.JSON(http.StatusOK, echo.Map{"ticket": toTicketJSON(ticket)})
}

// Current handles GET /v1/scan/current. An empty slot returns 204.
func (h *ScanHandler) Current(c echo.Context) error {
	current, err := h.Resolver.Current(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store error"})
	}
	if current == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, current)
}

// Reset handles DELETE /v1/scan/current: the explicit scanner reset
// that clears the display before the next passenger.
func (h *ScanHandler) Reset(c echo.Context) error {
	if err := h.Resolver.ResetScanner(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "store error, please retry"})
	}
	return c.NoContent(http.StatusNoContent)
}
