// Package models defines the domain types for jotter.
package models

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// Record is a single note: text, tags and the days it was created and last modified.
// ID is assigned by the store; callers never choose it.
type Record struct {
	ID       int      `json:"id"`
	Text     string   `json:"text"`
	Tags     []string `json:"tags"`
	Created  Date     `json:"cdate"`
	Modified Date     `json:"mdate"`
	Deleted  bool     `json:"deleted"`
}

// NewRecord builds an unsaved record stamped with today for both dates.
func NewRecord(text string, tags []string, today Date) Record {
	return Record{
		Text:     text,
		Tags:     NormalizeTags(tags),
		Created:  today,
		Modified: today,
	}
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	r.Tags = slices.Clone(r.Tags)
	return r
}

// SetText replaces the body and bumps the modification day.
func (r *Record) SetText(text string, today Date) {
	r.Text = text
	r.touch(today)
}

// AddTag appends tag unless already present. Reports whether the tags changed.
func (r *Record) AddTag(tag string, today Date) bool {
	tag = strings.TrimSpace(tag)
	if tag == "" || r.Tagged(tag) {
		return false
	}
	r.Tags = append(r.Tags, tag)
	r.touch(today)
	return true
}

// DeleteTag removes tag. Reports whether the tags changed.
func (r *Record) DeleteTag(tag string, today Date) bool {
	n := len(r.Tags)
	r.Tags = slices.DeleteFunc(r.Tags, func(t string) bool { return t == tag })
	if len(r.Tags) == n {
		return false
	}
	r.touch(today)
	return true
}

// SetDeleted flips the soft-delete marker. The modification day is left alone.
func (r *Record) SetDeleted(deleted bool) {
	r.Deleted = deleted
}

// Tagged reports whether r carries tag.
func (r Record) Tagged(tag string) bool {
	return slices.Contains(r.Tags, tag)
}

// TaggedAll reports whether r carries every tag in tags.
func (r Record) TaggedAll(tags []string) bool {
	if len(r.Tags) < len(tags) {
		return false
	}
	for _, t := range tags {
		if !r.Tagged(t) {
			return false
		}
	}
	return true
}

// ContainsText reports whether fragment occurs in the text, ignoring case.
func (r Record) ContainsText(fragment string) bool {
	fold := cases.Fold()
	return strings.Contains(fold.String(r.Text), fold.String(fragment))
}

// SameContent reports whether r and o have equal text and tags.
func (r Record) SameContent(o Record) bool {
	return r.Text == o.Text && slices.Equal(r.Tags, o.Tags)
}

func (r *Record) touch(today Date) {
	if today.Before(r.Created) {
		today = r.Created
	}
	r.Modified = today
}

// NormalizeTags trims tags, drops empty ones and removes duplicates,
// keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || slices.Contains(out, t) {
			continue
		}
		out = append(out, t)
	}
	return out
}
