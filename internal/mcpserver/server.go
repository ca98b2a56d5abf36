// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes jotter records as tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/jotter/internal/apperr"
	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/parser"
	"github.com/starford/jotter/internal/query"
	"github.com/starford/jotter/internal/recordservice"
)

const filterSyntaxURI = "jotter://filter-syntax"

// Server wraps the MCP server with jotter tools.
type Server struct {
	mcp *server.MCPServer
	svc *recordservice.Service
}

// New creates a new MCP server with all jotter tools registered.
func New(svc *recordservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"jotter",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("add_record",
		mcp.WithDescription("Create a record from text and tags, or import a Markdown document. "+
			"Returns the new record id."),
		mcp.WithString("text", mcp.Description("Record text (ignored when markdown is given)")),
		mcp.WithString("tags", mcp.Description("Comma separated tags")),
		mcp.WithString("markdown", mcp.Description("Markdown document with optional YAML frontmatter tags")),
	), s.addRecord)

	s.mcp.AddTool(mcp.NewTool("search_records",
		mcp.WithDescription("Search records. See the jotter://filter-syntax resource for the filters."),
		mcp.WithString("tag", mcp.Description("Comma separated tags, any one suffices")),
		mcp.WithString("tags", mcp.Description("Comma separated tags, all required")),
		mcp.WithString("text", mcp.Description("Case-insensitive text fragment")),
		mcp.WithBoolean("deleted", mcp.Description("Only records marked deleted")),
		mcp.WithBoolean("with_deleted", mcp.Description("Include records marked deleted")),
		mcp.WithString("after", mcp.Description("Created on or after YYYY-MM-DD")),
		mcp.WithString("before", mcp.Description("Created before YYYY-MM-DD")),
		mcp.WithString("mafter", mcp.Description("Modified on or after YYYY-MM-DD")),
		mcp.WithString("mbefore", mcp.Description("Modified before YYYY-MM-DD")),
	), s.searchRecords)

	s.mcp.AddTool(mcp.NewTool("get_record",
		mcp.WithDescription("Read one record as Markdown with frontmatter."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Record id")),
	), s.getRecord)

	s.mcp.AddTool(mcp.NewTool("update_record",
		mcp.WithDescription("Change the text or tags of a record. Omitted arguments are left unchanged."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Record id")),
		mcp.WithString("text", mcp.Description("New text")),
		mcp.WithString("add_tags", mcp.Description("Comma separated tags to add")),
		mcp.WithString("remove_tags", mcp.Description("Comma separated tags to remove")),
	), s.updateRecord)

	s.mcp.AddTool(mcp.NewTool("delete_record",
		mcp.WithDescription("Mark a record deleted, or remove it with hard=true."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Record id")),
		mcp.WithBoolean("hard", mcp.Description("Remove the record instead of marking it deleted")),
	), s.deleteRecord)

	s.mcp.AddTool(mcp.NewTool("undo",
		mcp.WithDescription("Revert the most recent add, update or delete."),
	), s.undo)

	s.mcp.AddResource(
		mcp.NewResource(filterSyntaxURI, "Search filter syntax",
			mcp.WithResourceDescription("Filters accepted by search_records and the record model."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFilterSyntax,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func toolError(err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError("record not found")
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) addRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var (
		id  int
		err error
	)
	if md := req.GetString("markdown", ""); md != "" {
		id, err = s.svc.Import(ctx, []byte(md))
	} else {
		text := req.GetString("text", "")
		if text == "" {
			return mcp.NewToolResultError("text or markdown is required"), nil
		}
		id, err = s.svc.Add(ctx, text, query.SplitTags(req.GetString("tags", "")))
	}
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("created: %d", id)), nil
}

func (s *Server) searchRecords(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v := url.Values{}
	for _, key := range []string{"tag", "tags", "text", "after", "before", "mafter", "mbefore"} {
		if val := req.GetString(key, ""); val != "" {
			v.Set(key, val)
		}
	}
	for _, key := range []string{"deleted", "with_deleted"} {
		v.Set(key, strconv.FormatBool(req.GetBool(key, false)))
	}

	f, err := query.ParseValues(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	records, err := s.svc.Search(ctx, f.Predicate())
	if err != nil {
		return toolError(err), nil
	}
	if len(records) == 0 {
		return mcp.NewToolResultText("no records found"), nil
	}
	out, _ := json.MarshalIndent(records, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rec, err := s.svc.Get(ctx, id)
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(string(parser.Render(rec))), nil
}

func (s *Server) updateRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := req.GetString("text", "")
	add := query.SplitTags(req.GetString("add_tags", ""))
	remove := query.SplitTags(req.GetString("remove_tags", ""))
	if text == "" && len(add) == 0 && len(remove) == 0 {
		return mcp.NewToolResultError("nothing to update"), nil
	}

	var rec models.Record
	if text != "" {
		if rec, err = s.svc.SetText(ctx, id, text); err != nil {
			return toolError(err), nil
		}
	}
	if len(add) > 0 {
		if rec, err = s.svc.AddTags(ctx, id, add...); err != nil {
			return toolError(err), nil
		}
	}
	if len(remove) > 0 {
		if rec, err = s.svc.RemoveTags(ctx, id, remove...); err != nil {
			return toolError(err), nil
		}
	}
	return mcp.NewToolResultText(string(parser.Render(rec))), nil
}

func (s *Server) deleteRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireInt("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.GetBool("hard", false) {
		if err := s.svc.Purge(ctx, id); err != nil {
			return toolError(err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("removed: %d", id)), nil
	}
	if err := s.svc.Delete(ctx, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("deleted: %d", id)), nil
}

func (s *Server) undo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := s.svc.Undo(ctx)
	if errors.Is(err, apperr.ErrNothingToUndo) {
		return mcp.NewToolResultText("nothing to undo"), nil
	}
	if err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(summary), nil
}

func (s *Server) readFilterSyntax(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      filterSyntaxURI,
			MIMEType: "text/markdown",
			Text:     FilterSyntax,
		},
	}, nil
}
