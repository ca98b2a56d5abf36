package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/starford/jotter/internal/models"
)

// Filter is the user-facing search form shared by the CLI, HTTP and MCP
// front ends. Zero fields do not constrain the search.
type Filter struct {
	// Tag matches any of its tags; Tags requires all of them.
	Tag  []string `json:"tag,omitempty"`
	Tags []string `json:"tags,omitempty"`
	Text string   `json:"text,omitempty"`
	// Deleted selects soft-deleted records instead of live ones.
	Deleted bool `json:"deleted,omitempty"`
	// WithDeleted selects live and soft-deleted records together.
	WithDeleted    bool        `json:"with_deleted,omitempty"`
	CreatedAfter   models.Date `json:"after,omitzero"`
	CreatedBefore  models.Date `json:"before,omitzero"`
	ModifiedAfter  models.Date `json:"mafter,omitzero"`
	ModifiedBefore models.Date `json:"mbefore,omitzero"`
}

// Predicate compiles f into a predicate.
func (f Filter) Predicate() Predicate {
	var ps []Predicate
	switch {
	case f.WithDeleted:
	case f.Deleted:
		ps = append(ps, Deleted())
	default:
		ps = append(ps, NotDeleted())
	}
	if len(f.Tag) > 0 {
		ps = append(ps, AnyTag(f.Tag...))
	}
	if len(f.Tags) > 0 {
		ps = append(ps, Tags(f.Tags...))
	}
	if f.Text != "" {
		ps = append(ps, Text(f.Text))
	}
	if !f.CreatedAfter.IsZero() {
		ps = append(ps, CreatedAfter(f.CreatedAfter))
	}
	if !f.CreatedBefore.IsZero() {
		ps = append(ps, CreatedBefore(f.CreatedBefore))
	}
	if !f.ModifiedAfter.IsZero() {
		ps = append(ps, ModifiedAfter(f.ModifiedAfter))
	}
	if !f.ModifiedBefore.IsZero() {
		ps = append(ps, ModifiedBefore(f.ModifiedBefore))
	}
	if len(ps) == 0 {
		return All()
	}
	return And(ps...)
}

// ParseValues builds a Filter from URL query values:
// tag (any of) and tags (all of), both comma or space separated, text,
// deleted, with_deleted, after, before, mafter, mbefore (YYYY-MM-DD).
func ParseValues(v url.Values) (Filter, error) {
	f := Filter{
		Tag:  SplitTags(v.Get("tag")),
		Tags: SplitTags(v.Get("tags")),
		Text: v.Get("text"),
	}
	var err error
	if f.Deleted, err = parseBool(v, "deleted"); err != nil {
		return Filter{}, err
	}
	if f.WithDeleted, err = parseBool(v, "with_deleted"); err != nil {
		return Filter{}, err
	}

	dates := []struct {
		key string
		dst *models.Date
	}{
		{"after", &f.CreatedAfter},
		{"before", &f.CreatedBefore},
		{"mafter", &f.ModifiedAfter},
		{"mbefore", &f.ModifiedBefore},
	}
	for _, d := range dates {
		raw := strings.TrimSpace(v.Get(d.key))
		if raw == "" {
			continue
		}
		parsed, err := models.ParseDate(raw)
		if err != nil {
			return Filter{}, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}
	return f, nil
}

// SplitTags splits a comma or whitespace separated tag list.
func SplitTags(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	return models.NormalizeTags(fields)
}

func parseBool(v url.Values, key string) (bool, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s: expected true or false", key)
	}
	return b, nil
}
