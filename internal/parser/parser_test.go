package parser

import (
	"slices"
	"testing"

	"github.com/starford/jotter/internal/models"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntags:\n  - go\n  - jotter\n---\nBody text.\n")
	e, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(e.Tags, []string{"go", "jotter"}) {
		t.Errorf("tags = %v, want [go jotter]", e.Tags)
	}
	if e.Text != "Body text." {
		t.Errorf("text = %q", e.Text)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	e, err := Parse([]byte("just a line\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Text != "just a line" || len(e.Tags) != 0 {
		t.Errorf("entry = %+v", e)
	}
}

func TestParse_UnclosedFrontmatterIsBody(t *testing.T) {
	e, err := Parse([]byte("---\ntags: [a]\nno end"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Text != "---\ntags: [a]\nno end" {
		t.Errorf("text = %q", e.Text)
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	if _, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n")); err == nil {
		t.Fatal("expected error for invalid frontmatter")
	}
}

func TestParse_CommaTags(t *testing.T) {
	e, err := Parse([]byte("---\ntags: work, home ,\ndeleted: true\n---\nx"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(e.Tags, []string{"work", "home"}) {
		t.Errorf("tags = %v", e.Tags)
	}
	if !e.Deleted {
		t.Error("expected deleted")
	}
}

func TestParse_InlineAndFrontmatterTags(t *testing.T) {
	e, err := Parse([]byte("---\ntags: [alpha]\n---\nSome text #beta and #alpha again, not a#tag.\n#gamma"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(e.Tags, []string{"alpha", "beta", "gamma"}) {
		t.Errorf("tags = %v, want [alpha beta gamma]", e.Tags)
	}
}

func TestRender_Reimports(t *testing.T) {
	rec := models.Record{
		ID:       7,
		Text:     "line one\nline two",
		Tags:     []string{"work", "todo"},
		Created:  models.Date{Year: 2024, Month: 5, Day: 1},
		Modified: models.Date{Year: 2024, Month: 5, Day: 2},
		Deleted:  true,
	}
	e, err := Parse(Render(rec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.Text != rec.Text {
		t.Errorf("text = %q, want %q", e.Text, rec.Text)
	}
	if !slices.Equal(e.Tags, rec.Tags) {
		t.Errorf("tags = %v, want %v", e.Tags, rec.Tags)
	}
	if !e.Deleted {
		t.Error("deleted flag lost")
	}
}
