// Package auditlog exposes the audit trail to administrators.
package auditlog

import (
	"context"
	"fmt"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/audit"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/policy"
)

type Service struct {
	store  audit.Store
	policy *policy.Evaluator
	audit  *audit.Recorder
}

func NewService(store audit.Store, pol *policy.Evaluator, rec *audit.Recorder) *Service {
	return &Service{store: store, policy: pol, audit: rec}
}

func describe(f audit.Filter) string {
	switch {
	case f.UserID != nil:
		return fmt.Sprintf("logs of user %d", *f.UserID)
	case f.Action != "":
		return fmt.Sprintf("logs with action %s", f.Action)
	default:
		return "all logs"
	}
}

// List returns entries newest first. A non-empty f.Action must be a known
// action code.
func (s *Service) List(ctx context.Context, actor *auth.Actor, f audit.Filter, limit, offset int) (logs []*audit.Log, total int, err error) {
	if f.Action != "" && !audit.IsKnownAction(f.Action) {
		return nil, 0, apperr.BadRequest("unknown action: %s", f.Action)
	}
	if f.UserID != nil && *f.UserID <= 0 {
		return nil, 0, apperr.BadRequest("user id must be a positive integer")
	}
	defer func() {
		s.audit.Record(ctx, audit.Entry{
			ActorID:     actor.IDPtr(),
			Action:      audit.ActionFor(audit.ActionListLogs, err),
			Description: describe(f),
			Affected:    "audit_log",
		})
	}()

	if !s.policy.Allowed(actor.Subject(), policy.Log, policy.List, policy.Facts{}) {
		return nil, 0, apperr.Forbidden("administrator role required")
	}
	logs, total, err = s.store.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal("list logs", err)
	}
	return logs, total, nil
}
