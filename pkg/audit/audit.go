// pkg/audit/audit.go
package audit

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Event is one audit record. Writes are best-effort from the kernel's
// perspective: a failing writer never fails the request or the boot.
type Event struct {
	Time      time.Time      `json:"time"`
	Kind      string         `json:"kind"`
	RealmKey  string         `json:"realmKey,omitempty"`
	TenantKey string         `json:"tenantKey,omitempty"`
	OrgKey    string         `json:"orgKey,omitempty"`
	Subject   string         `json:"subject,omitempty"`
	RequestID string         `json:"requestId,omitempty"`
	Detail    map[string]any `json:"detail,omitempty"`
}

type Writer interface {
	Write(ctx context.Context, ev Event)
}

// ZapWriter emits audit events to the process log. The fallback when
// no database is configured.
type ZapWriter struct {
	Log *zap.SugaredLogger
}

func (w *ZapWriter) Write(_ context.Context, ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	w.Log.Infow("audit",
		"kind", ev.Kind,
		"realm", ev.RealmKey,
		"tenant", ev.TenantKey,
		"org", ev.OrgKey,
		"subject", ev.Subject,
		"reqid", ev.RequestID,
		"detail", ev.Detail,
	)
}

// Discard drops every event. Used in tests.
type Discard struct{}

func (Discard) Write(context.Context, Event) {}
