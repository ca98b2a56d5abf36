// Package parser converts between Markdown documents and record content.
//
// Import reads optional YAML frontmatter (tags, deleted) and inline #tags;
// the body becomes the record text. Render writes a record back in the same
// shape so an exported record re-imports to the same text and tags.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/starford/jotter/internal/models"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([\p{L}][\p{L}\p{N}_/-]*)`)

// Entry is the record content extracted from a Markdown document.
type Entry struct {
	Text    string
	Tags    []string
	Deleted bool
}

type frontmatter struct {
	Tags    yaml.Node `yaml:"tags"`
	Deleted bool      `yaml:"deleted"`
}

// Parse extracts an Entry from raw Markdown bytes. Frontmatter tags come
// first, then inline tags in order of appearance; duplicates are dropped.
func Parse(data []byte) (*Entry, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	e := &Entry{Text: strings.TrimSpace(body)}
	if fm != nil {
		tags, err := frontmatterTags(&fm.Tags)
		if err != nil {
			return nil, err
		}
		e.Tags = tags
		e.Deleted = fm.Deleted
	}
	e.Tags = models.NormalizeTags(append(e.Tags, inlineTags(body)...))
	return e, nil
}

// Render writes rec as Markdown with a frontmatter block.
func Render(rec models.Record) []byte {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	fmt.Fprintf(&buf, "id: %d\n", rec.ID)
	if len(rec.Tags) > 0 {
		out, _ := yaml.Marshal(map[string][]string{"tags": rec.Tags})
		buf.Write(out)
	}
	fmt.Fprintf(&buf, "created: %s\n", rec.Created)
	fmt.Fprintf(&buf, "modified: %s\n", rec.Modified)
	if rec.Deleted {
		buf.WriteString("deleted: true\n")
	}
	buf.WriteString("---\n")
	buf.WriteString(rec.Text)
	if !strings.HasSuffix(rec.Text, "\n") {
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Without a closing delimiter the whole input is body.
func splitFrontmatter(data []byte) (*frontmatter, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data), nil
	}

	block := rest[:idx]
	body := strings.TrimLeft(string(rest[idx+1+len(delim):]), "\n\r")

	var fm frontmatter
	if err := yaml.Unmarshal(block, &fm); err != nil {
		return nil, "", fmt.Errorf("parser: frontmatter: %w", err)
	}
	return &fm, body, nil
}

// frontmatterTags accepts either a YAML list or a comma separated string.
func frontmatterTags(n *yaml.Node) ([]string, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.ScalarNode:
		return strings.Split(n.Value, ","), nil
	case yaml.SequenceNode:
		var tags []string
		if err := n.Decode(&tags); err != nil {
			return nil, fmt.Errorf("parser: tags: %w", err)
		}
		return tags, nil
	default:
		return nil, fmt.Errorf("parser: tags: unsupported yaml kind %d", n.Kind)
	}
}

func inlineTags(body string) []string {
	var out []string
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		out = append(out, m[1])
	}
	return out
}
