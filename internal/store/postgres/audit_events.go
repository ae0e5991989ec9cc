package postgres

import (
	"context"
	"fmt"

	"studentsnet/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditStore persists audit events. Rows are only ever inserted.
type AuditStore struct {
	pool *pgxpool.Pool
}

func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

func (s *AuditStore) Append(ctx context.Context, ev domain.AuditEvent) error {
	const q = `
		INSERT INTO audit_events (id, occurred_at, category, subject, client_ip, detail)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, q,
		ev.ID,
		ev.Timestamp,
		string(ev.Category),
		ev.Subject,
		nullIfEmpty(ev.ClientIP),
		nullIfEmpty(ev.Detail),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
