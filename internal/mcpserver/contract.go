package mcpserver

// FilterSyntax describes the filter arguments accepted by search_records.
// It is served as the jotter://filter-syntax resource.
const FilterSyntax = `# jotter search filters

All arguments are optional and combine with AND. Without any argument every
record that is not marked deleted is returned, oldest first.

| argument       | meaning                                                  |
|----------------|----------------------------------------------------------|
| tag            | comma separated; record carries any of them              |
| tags           | comma separated; record carries all of them              |
| text           | case-insensitive substring of the record text            |
| deleted        | true: only records marked deleted                        |
| with_deleted   | true: deleted and live records together                  |
| after          | created on or after the day (YYYY-MM-DD)                 |
| before         | created strictly before the day (YYYY-MM-DD)             |
| mafter         | modified on or after the day (YYYY-MM-DD)                |
| mbefore        | modified strictly before the day (YYYY-MM-DD)            |

## Records

A record has a numeric id, a text body, a set of tags, a creation day and a
modification day. Ids are assigned by jotter and are stable while the server
runs; they may change after a restart, so search again rather than caching ids.

Deleting a record only marks it deleted. Pass hard=true to delete_record to
remove it. The undo tool reverts the most recent add, update or delete.

## Markdown import

add_record accepts plain text. Inline #tags in the text are not extracted;
pass tags explicitly. A Markdown document with YAML frontmatter can be imported
through the markdown argument instead:

` + "```" + `markdown
---
tags: [meeting, project-x]
---
Body text. Inline #tags are merged into the record tags.
` + "```" + `
`
