// pkg/audit/pg.go
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PGWriter persists audit events to postgres. Insert failures are
// logged and swallowed; audit must never block or fail the caller.
type PGWriter struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

func NewPGWriter(pool *pgxpool.Pool, log *zap.SugaredLogger) *PGWriter {
	return &PGWriter{pool: pool, log: log}
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS audit_events (
		id BIGSERIAL PRIMARY KEY,
		at TIMESTAMPTZ NOT NULL,
		kind TEXT NOT NULL,
		realm_key TEXT,
		tenant_key TEXT,
		org_key TEXT,
		subject TEXT,
		request_id TEXT,
		detail JSONB
	)`)
	return err
}

func (w *PGWriter) Write(ctx context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		detail = []byte("{}")
	}
	_, err = w.pool.Exec(ctx,
		`INSERT INTO audit_events (at, kind, realm_key, tenant_key, org_key, subject, request_id, detail)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		ev.Time, ev.Kind, ev.RealmKey, ev.TenantKey, ev.OrgKey, ev.Subject, ev.RequestID, detail)
	if err != nil {
		w.log.Warnw("audit write failed", "kind", ev.Kind, "err", err)
	}
}
