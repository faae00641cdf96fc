// Package router maps the HTTP surface onto the handlers.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/rail-ticket-gate/internal/handler"
)

// Register wires every route. The rate limiter, when non-nil, sits
// only in front of the two endpoints driven by hardware clients
// (kiosk issuance and the gate scanner); admin and read endpoints
// stay unthrottled.
func Register(e *echo.Echo, tickets *handler.TicketHandler, scans *handler.ScanHandler, admin *handler.AdminHandler, limiter echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	if limiter != nil {
		e.POST("/v1/tickets", tickets.Issue, limiter)
		e.POST("/v1/scan", scans.Resolve, limiter)
	} else {
		e.POST("/v1/tickets", tickets.Issue)
		e.POST("/v1/scan", scans.Resolve)
	}

	e.GET("/v1/tickets", tickets.List)
	e.GET("/v1/seats", admin.ListSeats)

	e.GET("/v1/scan/current", scans.Current)
	e.DELETE("/v1/scan/current", scans.Reset)

	e.POST("/v1/admin/reset", admin.ResetAll)
	e.GET("/v1/admin/watch", admin.Watch)
}
