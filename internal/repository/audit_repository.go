package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/rail-ticket-gate/internal/queue"
)

// AuditRepo appends gate events to the MySQL audit ledger. The
// ledger exists so that issued and scanned tickets survive the
// administrative reset for reporting; it is written only by the
// event consumer and never read on the request path.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns an AuditRepo bound to the given database.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// EnsureSchema creates the ledger table when it does not exist yet.
func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	const q = `CREATE TABLE IF NOT EXISTS ticket_audit (
        id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
        event_type VARCHAR(32) NOT NULL,
        ticket_id VARCHAR(64) NOT NULL DEFAULT '',
        passenger_name VARCHAR(255) NOT NULL DEFAULT '',
        seat_id VARCHAR(64) NOT NULL DEFAULT '',
        seats_reset INT UNSIGNED NOT NULL DEFAULT 0,
        tickets_cleared INT UNSIGNED NOT NULL DEFAULT 0,
        occurred_at VARCHAR(40) NOT NULL,
        recorded_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        KEY idx_ticket_audit_ticket (ticket_id),
        KEY idx_ticket_audit_type (event_type)
    ) CHARACTER SET utf8mb4`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// Record appends one event row.
func (r *AuditRepo) Record(ctx context.Context, ev queue.GateEvent) error {
	const q = `INSERT INTO ticket_audit
        (event_type, ticket_id, passenger_name, seat_id, seats_reset, tickets_cleared, occurred_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q,
		ev.Type, ev.TicketID, ev.Name, ev.SeatID, ev.SeatsReset, ev.TicketsCleared, ev.OccurredAt)
	return err
}
