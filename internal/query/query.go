// Package query builds record predicates for searches.
package query

import (
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/store"
)

// Predicate reports whether a record matches.
type Predicate = store.Predicate

// All matches every record.
func All() Predicate {
	return func(models.Record) bool { return true }
}

// And matches records matching every p.
func And(ps ...Predicate) Predicate {
	return func(r models.Record) bool {
		for _, p := range ps {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

// Or matches records matching at least one p.
func Or(ps ...Predicate) Predicate {
	return func(r models.Record) bool {
		for _, p := range ps {
			if p(r) {
				return true
			}
		}
		return false
	}
}

// Not inverts p.
func Not(p Predicate) Predicate {
	return func(r models.Record) bool { return !p(r) }
}

// ByID matches the record with the given id.
func ByID(id int) Predicate {
	return func(r models.Record) bool { return r.ID == id }
}

// Deleted matches soft-deleted records.
func Deleted() Predicate {
	return func(r models.Record) bool { return r.Deleted }
}

// NotDeleted matches live records.
func NotDeleted() Predicate {
	return Not(Deleted())
}

// Tag matches records carrying tag.
func Tag(tag string) Predicate {
	return func(r models.Record) bool { return r.Tagged(tag) }
}

// AnyTag matches records carrying at least one of tags.
func AnyTag(tags ...string) Predicate {
	ps := make([]Predicate, len(tags))
	for i, t := range tags {
		ps[i] = Tag(t)
	}
	return Or(ps...)
}

// Tags matches records carrying every one of tags.
func Tags(tags ...string) Predicate {
	return func(r models.Record) bool { return r.TaggedAll(tags) }
}

// Text matches records whose text contains fragment, ignoring case.
func Text(fragment string) Predicate {
	return func(r models.Record) bool { return r.ContainsText(fragment) }
}

// CreatedAfter matches records created on or after d.
func CreatedAfter(d models.Date) Predicate {
	return func(r models.Record) bool { return !r.Created.Before(d) }
}

// CreatedBefore matches records created strictly before d.
func CreatedBefore(d models.Date) Predicate {
	return func(r models.Record) bool { return r.Created.Before(d) }
}

// ModifiedAfter matches records modified on or after d.
func ModifiedAfter(d models.Date) Predicate {
	return func(r models.Record) bool { return !r.Modified.Before(d) }
}

// ModifiedBefore matches records modified strictly before d.
func ModifiedBefore(d models.Date) Predicate {
	return func(r models.Record) bool { return r.Modified.Before(d) }
}
