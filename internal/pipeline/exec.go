package pipeline

import (
	"fmt"

	"github.com/starford/jotter/internal/action"
	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/models"
)

// exec runs a against the store. Compensations applied by Undo run with
// journal set to false so they are not journaled themselves.
func (s *Service) exec(a action.Action, journal bool) models.Response {
	switch a := a.(type) {
	case action.AddRecord:
		rec, code, err := s.store.AddRecord(models.Record{Text: a.Text, Tags: a.Tags})
		if err != nil {
			return fault(err)
		}
		if journal {
			s.record(action.RemoveRecord{ID: rec.ID})
		}
		s.emit(EventCreated, rec)
		return models.Response{Code: code, ID: rec.ID}

	case action.UpdateRecord:
		prev, code, err := s.store.UpdateRecord(a.Record)
		if err != nil {
			return fault(err)
		}
		if code != models.OK {
			return models.Response{Code: code}
		}
		if journal {
			s.record(action.UpdateRecord{Record: prev})
		}
		if cur := s.lookup(prev.ID); cur != nil {
			kind := EventUpdated
			if cur.Deleted && !prev.Deleted {
				kind = EventDeleted
			}
			s.emit(kind, *cur)
		}
		return models.Response{Code: code}

	case action.RemoveRecord:
		removed, code, err := s.store.RemoveRecord(a.ID)
		if err != nil {
			return fault(err)
		}
		if len(removed) == 0 {
			return models.Response{Code: models.NotFound}
		}
		if journal {
			s.record(action.Restore{Records: removed})
		}
		for _, r := range removed {
			s.emit(EventRemoved, r)
		}
		return models.Response{Code: code}

	case action.Restore:
		code, err := s.store.Restore(a.Records)
		if err != nil {
			return fault(err)
		}
		for _, r := range a.Records {
			s.emit(EventRestored, r)
		}
		return models.Response{Code: code}

	case action.Search:
		found := s.store.Search(a.Predicate)
		if len(found) == 0 {
			return models.Response{Code: models.NotFound}
		}
		return models.Response{Code: models.OK, Records: found}

	case action.SetPassword:
		code, err := s.store.SetPassword(a.Password)
		if err != nil {
			return models.Response{Code: code, Err: err}
		}
		return models.Response{Code: code}

	case action.StartStore:
		code, err := s.store.Start()
		if err != nil {
			return models.Response{Code: code, Err: err}
		}
		if code == models.OK || code == models.Empty {
			s.journal = s.journal[:0]
			s.emit(EventReloaded, models.Record{})
		}
		return models.Response{Code: code}

	case action.Undo:
		n := len(s.journal)
		if n == 0 {
			return models.Response{Code: models.Empty, Summary: apperr.ErrNothingToUndo.Error()}
		}
		comp := s.journal[n-1]
		s.journal = s.journal[:n-1]
		resp := s.exec(comp, false)
		resp.Summary = "undone " + comp.Kind().String()
		return resp

	default:
		return fault(fmt.Errorf("pipeline: %w: %T", apperr.ErrUnsupported, a))
	}
}

// record pushes a compensation, evicting the oldest entry beyond undoDepth.
func (s *Service) record(comp action.Action) {
	if s.undoDepth <= 0 {
		return
	}
	s.journal = append(s.journal, comp)
	if over := len(s.journal) - s.undoDepth; over > 0 {
		s.journal = append(s.journal[:0], s.journal[over:]...)
	}
}

func (s *Service) lookup(id int) *models.Record {
	found := s.store.Search(func(r models.Record) bool { return r.ID == id })
	if len(found) == 0 {
		return nil
	}
	return &found[0]
}
