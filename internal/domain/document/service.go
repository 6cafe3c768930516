package document

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinica/clinica/internal/platform/apperr"
	"github.com/clinica/clinica/internal/platform/audit"
	"github.com/clinica/clinica/internal/platform/auth"
	"github.com/clinica/clinica/internal/platform/policy"
	"github.com/clinica/clinica/internal/platform/storage"
)

type Service struct {
	repo    Repository
	store   storage.Gateway
	policy  *policy.Evaluator
	audit   *audit.Recorder
	logger  zerolog.Logger
	newUUID func() uuid.UUID
}

func NewService(repo Repository, store storage.Gateway, pol *policy.Evaluator, rec *audit.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		repo:    repo,
		store:   store,
		policy:  pol,
		audit:   rec,
		logger:  logger.With().Str("component", "documents").Logger(),
		newUUID: uuid.New,
	}
}

func (s *Service) record(ctx context.Context, actor *auth.Actor, action, desc string) {
	s.audit.Record(ctx, audit.Entry{
		ActorID:     actor.IDPtr(),
		Action:      action,
		Description: desc,
		Affected:    "documents",
	})
}

func (s *Service) load(ctx context.Context, id int64) (*Document, error) {
	d, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, apperr.NotFound("document not found")
	}
	if err != nil {
		return nil, apperr.Internal("load document", err)
	}
	return d, nil
}

// facts gathers the ownership relations act needs. The appointment lookups
// only run for specialists.
func (s *Service) facts(ctx context.Context, actor *auth.Actor, act policy.Action, d *Document) (policy.Facts, error) {
	f := policy.Facts{OwnerID: d.OwnerID}
	if !actor.HasRole(policy.RoleSpecialist) || actor.ID == d.OwnerID {
		return f, nil
	}
	var err error
	switch act {
	case policy.Read:
		if d.HistoryPatientID != nil {
			f.SpecialistLinked, err = s.repo.SpecialistHasPatient(ctx, actor.ID, *d.HistoryPatientID)
		}
	case policy.Download:
		f.SpecialistQualified, err = s.repo.SpecialistServesOwner(ctx, actor.ID, d.OwnerID)
	}
	if err != nil {
		return f, apperr.Internal("check document access", err)
	}
	return f, nil
}

func (s *Service) authorize(ctx context.Context, actor *auth.Actor, act policy.Action, d *Document) error {
	f, err := s.facts(ctx, actor, act, d)
	if err != nil {
		return err
	}
	if !s.policy.Allowed(actor.Subject(), policy.Document, act, f) {
		return apperr.Forbidden(fmt.Sprintf("not allowed to %s this document", act))
	}
	return nil
}

var listVisibility = map[policy.Scope]Visibility{
	policy.ScopeAll:    VisibleAll,
	policy.ScopeLinked: VisibleViaHistory,
	policy.ScopeOwned:  VisibleOwned,
}

var mineVisibility = map[policy.Scope]Visibility{
	policy.ScopeLinked: VisibleViaOwner,
	policy.ScopeOwned:  VisibleOwned,
}

// List returns the documents the actor may see: all for administrators,
// those of linked patients for specialists, their own for patients.
func (s *Service) List(ctx context.Context, actor *auth.Actor, limit, offset int) ([]*Document, int, error) {
	return s.list(ctx, actor, policy.List, listVisibility, audit.ActionListDocuments, limit, offset)
}

// ListMine returns a patient's own uploads, or for a specialist the uploads
// of patients they have appointments with.
func (s *Service) ListMine(ctx context.Context, actor *auth.Actor, limit, offset int) ([]*Document, int, error) {
	return s.list(ctx, actor, policy.ListMine, mineVisibility, audit.ActionListMyDocuments, limit, offset)
}

func (s *Service) list(ctx context.Context, actor *auth.Actor, act policy.Action, vis map[policy.Scope]Visibility,
	base string, limit, offset int) (items []*Document, total int, err error) {
	defer func() { s.record(ctx, actor, audit.ActionFor(base, err), fmt.Sprintf("%d documents", total)) }()

	v, ok := vis[s.policy.ListScope(actor.Subject(), policy.Document, act)]
	if !ok {
		return nil, 0, apperr.Forbidden("role not allowed to list documents")
	}
	items, total, err = s.repo.List(ctx, Filter{Visibility: v, ActorID: actor.ID}, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal("list documents", err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, actor *auth.Actor, id int64) (d *Document, err error) {
	defer func() {
		s.record(ctx, actor, audit.ActionFor(audit.ActionViewDocument, err), fmt.Sprintf("document %d", id))
	}()
	if d, err = s.load(ctx, id); err != nil {
		return nil, err
	}
	if err = s.authorize(ctx, actor, policy.Read, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Upload validates the file, stores it under documents/<uuid>.<ext> and
// saves its metadata. If the metadata cannot be saved the stored binary is
// removed again.
func (s *Service) Upload(ctx context.Context, actor *auth.Actor, in UploadInput) (d *Document, err error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	defer func() {
		desc := fmt.Sprintf("upload %q", in.Name)
		if d != nil {
			desc = fmt.Sprintf("document %d (%s, %d bytes)", d.ID, d.MimeType, d.Size)
		}
		s.record(ctx, actor, audit.ActionFor(audit.ActionUploadDocument, err), desc)
	}()

	if !s.policy.Allowed(actor.Subject(), policy.Document, policy.Upload, policy.Facts{}) {
		return nil, apperr.Forbidden("not allowed to upload documents")
	}
	if in.HistoryID != nil {
		ok, herr := s.repo.HistoryActive(ctx, *in.HistoryID)
		if herr != nil {
			return nil, apperr.Internal("check history", herr)
		}
		if !ok {
			return nil, apperr.Validation("history_id %d does not reference an active history", *in.HistoryID)
		}
	}

	key := fmt.Sprintf("documents/%s.%s", s.newUUID(), in.ext)
	if err = s.store.Put(ctx, key, in.mimeType, in.Body, in.Size); err != nil {
		return nil, apperr.Internal("store document", err)
	}

	d = &Document{
		HistoryID:   in.HistoryID,
		OwnerID:     actor.ID,
		Name:        in.Name,
		Path:        key,
		MimeType:    in.mimeType,
		Size:        in.Size,
		Description: in.Description,
	}
	if err = s.repo.Create(ctx, d); err != nil {
		d = nil
		if derr := s.store.Delete(context.WithoutCancel(ctx), key); derr != nil {
			s.logger.Error().Err(derr).Str("key", key).Msg("failed to remove orphaned document binary")
		}
		return nil, apperr.Internal("save document", err)
	}
	return d, nil
}

// Download checks, in order, that the document exists, that the actor may
// download it and that its binary is still in storage. The caller closes the
// returned reader.
func (s *Service) Download(ctx context.Context, actor *auth.Actor, id int64) (d *Document, body io.ReadCloser, err error) {
	fileMissing := false
	defer func() {
		action := audit.ActionFor(audit.ActionDownloadDocument, err)
		if fileMissing {
			action = audit.ActionDownloadDocumentNoFile
		}
		s.record(ctx, actor, action, fmt.Sprintf("document %d", id))
	}()

	if d, err = s.load(ctx, id); err != nil {
		return nil, nil, err
	}
	if err = s.authorize(ctx, actor, policy.Download, d); err != nil {
		return nil, nil, err
	}

	ok, err := s.store.Exists(ctx, d.Path)
	if err != nil {
		return nil, nil, apperr.Internal("check document file", err)
	}
	if !ok {
		fileMissing = true
		return nil, nil, apperr.NotFound("document file not found")
	}
	body, err = s.store.Open(ctx, d.Path)
	if errors.Is(err, storage.ErrObjectNotFound) {
		fileMissing = true
		return nil, nil, apperr.NotFound("document file not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal("open document file", err)
	}
	return d, body, nil
}

// Delete removes the binary and soft-deletes the metadata. The metadata is
// deleted even when the binary could not be removed; that case is reported
// as an internal error.
func (s *Service) Delete(ctx context.Context, actor *auth.Actor, id int64) (err error) {
	defer func() {
		s.record(ctx, actor, audit.ActionFor(audit.ActionDeleteDocument, err), fmt.Sprintf("document %d", id))
	}()

	var d *Document
	if d, err = s.load(ctx, id); err != nil {
		return err
	}
	if err = s.authorize(ctx, actor, policy.Delete, d); err != nil {
		return err
	}

	storeErr := s.store.Delete(ctx, d.Path)
	if err = s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("document not found")
		}
		return apperr.Internal("delete document", err)
	}
	if storeErr != nil {
		return apperr.Internal("delete document file", storeErr)
	}
	return nil
}
