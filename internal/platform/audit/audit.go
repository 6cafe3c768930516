// Package audit is the append-only action log written by every resource
// service. Writes are synchronous and never fail the calling operation.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Entry is what a service records after an attempt. ActorID is nil for
// anonymous requests.
type Entry struct {
	ActorID     *int64
	Action      string
	Description string
	Affected    string
}

// Log is a persisted audit row.
type Log struct {
	ID          int64     `json:"id"`
	UserID      *int64    `json:"user_id"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	Affected    string    `json:"affected"`
	RequestID   string    `json:"request_id,omitempty"`
	RemoteIP    string    `json:"remote_ip,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter narrows a log listing. Zero values match everything.
type Filter struct {
	UserID *int64
	Action string
}

type Store interface {
	Insert(ctx context.Context, l *Log) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Log, int, error)
}

type metaKey struct{}

// Meta is request-scoped information attached to every entry.
type Meta struct {
	RequestID string
	RemoteIP  string
}

// WithMeta returns a context carrying request metadata for Record.
func WithMeta(ctx context.Context, m Meta) context.Context {
	return context.WithValue(ctx, metaKey{}, m)
}

func MetaFromContext(ctx context.Context) Meta {
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

// Recorder writes entries to a Store. A failed write is logged at error level
// with the full entry and otherwise swallowed.
type Recorder struct {
	store  Store
	logger zerolog.Logger
	now    func() time.Time
}

func NewRecorder(store Store, logger zerolog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

func (r *Recorder) Record(ctx context.Context, e Entry) {
	meta := MetaFromContext(ctx)
	l := &Log{
		UserID:      e.ActorID,
		Action:      e.Action,
		Description: e.Description,
		Affected:    e.Affected,
		RequestID:   meta.RequestID,
		RemoteIP:    meta.RemoteIP,
		CreatedAt:   r.now().UTC(),
	}

	// The entry must survive a client disconnect and must not join a business
	// transaction that may still roll back.
	if err := r.store.Insert(context.WithoutCancel(ctx), l); err != nil {
		evt := r.logger.Error().Err(err).
			Str("action", e.Action).
			Str("description", e.Description).
			Str("affected", e.Affected).
			Str("request_id", meta.RequestID).
			Str("remote_ip", meta.RemoteIP)
		if e.ActorID != nil {
			evt = evt.Int64("actor_id", *e.ActorID)
		}
		evt.Msg("audit write failed")
	}
}

// Actor is a small helper for building Entry.ActorID from a plain id.
func Actor(id int64) *int64 {
	return &id
}
