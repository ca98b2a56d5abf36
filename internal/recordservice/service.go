// Package recordservice is the typed client facade over the command pipeline.
// Every front end (CLI, HTTP, MCP) goes through it.
package recordservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/starford/jotter/internal/action"
	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/parser"
	"github.com/starford/jotter/internal/pipeline"
	"github.com/starford/jotter/internal/query"
)

// DefaultTimeout bounds each wait when the caller's context has no deadline.
const DefaultTimeout = 10 * time.Second

// Submitter is the part of the pipeline the facade needs.
type Submitter interface {
	Submit(a action.Action) *pipeline.Handle
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout sets the per-call response timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithClock overrides the day used when editing records.
func WithClock(today func() models.Date) Option {
	return func(s *Service) { s.today = today }
}

// Service wraps pipeline round trips in typed calls.
type Service struct {
	pipe    Submitter
	timeout time.Duration
	today   func() models.Date
}

// New creates a facade over p.
func New(p Submitter, opts ...Option) *Service {
	s := &Service{pipe: p, timeout: DefaultTimeout, today: models.Today}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Unlock enables encryption when password is non-empty, then loads the store.
// It returns Empty on first run and OK otherwise.
func (s *Service) Unlock(ctx context.Context, password string) (models.ReturnCode, error) {
	if password != "" {
		if _, err := s.call(ctx, action.SetPassword{Password: password}); err != nil {
			return models.GenericError, err
		}
	}
	resp, err := s.call(ctx, action.StartStore{})
	if err != nil {
		return resp.Code, err
	}
	return resp.Code, nil
}

// Reload re-reads the persistence file.
func (s *Service) Reload(ctx context.Context) error {
	_, err := s.call(ctx, action.StartStore{})
	return err
}

// Add creates a record and returns its id.
func (s *Service) Add(ctx context.Context, text string, tags []string) (int, error) {
	resp, err := s.call(ctx, action.AddRecord{Text: text, Tags: tags})
	if err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// Import creates a record from a Markdown document.
func (s *Service) Import(ctx context.Context, markdown []byte) (int, error) {
	e, err := parser.Parse(markdown)
	if err != nil {
		return 0, err
	}
	id, err := s.Add(ctx, e.Text, e.Tags)
	if err != nil || !e.Deleted {
		return id, err
	}
	return id, s.Delete(ctx, id)
}

// Get returns the record with id, soft-deleted or not.
func (s *Service) Get(ctx context.Context, id int) (models.Record, error) {
	resp, err := s.call(ctx, action.Search{Predicate: query.ByID(id)})
	if err != nil {
		return models.Record{}, err
	}
	return resp.Records[0], nil
}

// Search returns every record matching pred. No match is an empty result,
// not an error.
func (s *Service) Search(ctx context.Context, pred query.Predicate) ([]models.Record, error) {
	resp, err := s.call(ctx, action.Search{Predicate: pred})
	if errors.Is(err, apperr.ErrNotFound) {
		return []models.Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	return resp.Records, nil
}

// Update replaces the stored record with rec's id.
func (s *Service) Update(ctx context.Context, rec models.Record) error {
	_, err := s.call(ctx, action.UpdateRecord{Record: rec})
	return err
}

// SetText replaces the text of record id.
func (s *Service) SetText(ctx context.Context, id int, text string) (models.Record, error) {
	return s.modify(ctx, id, func(r *models.Record) {
		r.SetText(text, s.today())
	})
}

// AddTags adds tags to record id.
func (s *Service) AddTags(ctx context.Context, id int, tags ...string) (models.Record, error) {
	return s.modify(ctx, id, func(r *models.Record) {
		for _, t := range tags {
			r.AddTag(t, s.today())
		}
	})
}

// RemoveTags removes tags from record id.
func (s *Service) RemoveTags(ctx context.Context, id int, tags ...string) (models.Record, error) {
	return s.modify(ctx, id, func(r *models.Record) {
		for _, t := range tags {
			r.DeleteTag(t, s.today())
		}
	})
}

// Delete marks record id deleted. The record stays searchable with the
// deleted filter.
func (s *Service) Delete(ctx context.Context, id int) error {
	_, err := s.modify(ctx, id, func(r *models.Record) { r.SetDeleted(true) })
	return err
}

// Undelete clears the deleted flag of record id.
func (s *Service) Undelete(ctx context.Context, id int) error {
	_, err := s.modify(ctx, id, func(r *models.Record) { r.SetDeleted(false) })
	return err
}

// Purge physically removes record id.
func (s *Service) Purge(ctx context.Context, id int) error {
	_, err := s.call(ctx, action.RemoveRecord{ID: id})
	return err
}

// Undo reverts the most recent mutation and describes what was undone.
func (s *Service) Undo(ctx context.Context) (string, error) {
	resp, err := s.call(ctx, action.Undo{})
	if err != nil {
		return "", err
	}
	if resp.Code == models.Empty {
		return "", apperr.ErrNothingToUndo
	}
	return resp.Summary, nil
}

// modify reads record id, applies fn and writes it back. The read and the
// write are two pipeline actions; a concurrent edit in between is overwritten.
func (s *Service) modify(ctx context.Context, id int, fn func(*models.Record)) (models.Record, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return models.Record{}, err
	}
	fn(&rec)
	if err := s.Update(ctx, rec); err != nil {
		return models.Record{}, err
	}
	return s.Get(ctx, id)
}

// call submits a and waits for its response. Codes that mean failure are
// mapped to apperr sentinels; a timeout is pipeline.ErrTimeout.
func (s *Service) call(ctx context.Context, a action.Action) (models.Response, error) {
	if _, ok := ctx.Deadline(); !ok && s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	resp, err := s.pipe.Submit(a).Wait(ctx)
	if err != nil {
		return resp, fmt.Errorf("%s: %w", a.Kind(), err)
	}

	switch resp.Code {
	case models.OK, models.Empty:
		return resp, nil
	case models.NotFound:
		return resp, apperr.ErrNotFound
	case models.InvalidPassword:
		return resp, apperr.ErrInvalidPassword
	case models.WrongPassword:
		return resp, apperr.ErrWrongPassword
	default:
		if resp.Err != nil {
			return resp, fmt.Errorf("%s: %w", a.Kind(), resp.Err)
		}
		return resp, fmt.Errorf("%s: %s", a.Kind(), resp.Code)
	}
}
