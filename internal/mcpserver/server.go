// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes the note manager to LLM clients via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/quire/internal/apperr"
	"github.com/starford/quire/internal/models"
	"github.com/starford/quire/internal/noteservice"
)

const guideURI = "quire://note-guide"

// Server wraps the MCP server with note tools.
type Server struct {
	mcp *server.MCPServer
	svc *noteservice.Manager
}

// noteSummary is the list_notes entry; content is left out to keep listings small.
type noteSummary struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	IsPinned bool      `json:"isPinned"`
}

// New creates a new MCP server with all note tools registered.
func New(svc *noteservice.Manager, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Quire",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List notes, pinned first then newest first. Optionally fuzzy-filter by title and content."),
		mcp.WithString("query", mcp.Description("Optional fuzzy filter")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read a note by id. Returns the full note as JSON."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id from list_notes")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("create_note",
		mcp.WithDescription("Create a note at the top of the collection. Read the note guide first via "+
			"get_note_guide or the "+guideURI+" resource."),
		mcp.WithString("title", mcp.Description("Note title; empty shows as Untitled")),
		mcp.WithString("content", mcp.Description("Note body")),
	), s.createNote)

	s.mcp.AddTool(mcp.NewTool("find_in_note",
		mcp.WithDescription("Case-insensitive literal search inside one note. Returns byte-offset spans."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to find")),
	), s.findInNote)

	s.mcp.AddTool(mcp.NewTool("replace_in_note",
		mcp.WithDescription("Case-insensitive literal replace inside one note. Replaces the first match unless all is true."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("query", mcp.Required(), mcp.Description("Text to replace")),
		mcp.WithString("replacement", mcp.Description("Replacement text, may be empty")),
		mcp.WithBoolean("all", mcp.Description("Replace every occurrence")),
	), s.replaceInNote)

	s.mcp.AddTool(mcp.NewTool("export_notes",
		mcp.WithDescription("Export one note to a markdown file, or every note to a zip archive when id is omitted. Returns the written path."),
		mcp.WithString("id", mcp.Description("Optional note id")),
	), s.exportNotes)

	s.mcp.AddTool(mcp.NewTool("import_note",
		mcp.WithDescription("Import a UTF-8 text document as a new note from an http(s) URL or a base64 data URI."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:text/plain;base64,... URI")),
		mcp.WithString("filename", mcp.Description("Optional file name; the note title is its base name without extension")),
	), s.importNote)

	s.mcp.AddTool(mcp.NewTool("get_note_guide",
		mcp.WithDescription("Returns how quire stores, searches and highlights notes."),
	), s.getNoteGuide)

	s.mcp.AddResource(
		mcp.NewResource(guideURI, "Note Guide",
			mcp.WithResourceDescription("How quire notes are structured, searched and highlighted."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteGuideResource,
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

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// toolError converts a manager error into a tool-level error result.
func toolError(id string, err error) (*mcp.CallToolResult, error) {
	var ie *apperr.ImportError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", id)), nil
	case errors.As(err, &ie):
		return mcp.NewToolResultError(ie.Reason), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	notes := s.svc.Filter(req.GetString("query", ""))
	out := make([]noteSummary, 0, len(notes))
	for _, n := range notes {
		out = append(out, noteSummary{ID: n.ID, Title: n.DisplayTitle(), Date: n.Date, IsPinned: n.IsPinned})
	}
	return jsonResult(out)
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, ok := s.svc.Get(id)
	if !ok {
		return toolError(id, apperr.ErrNotFound)
	}
	return jsonResult(n)
}

func (s *Server) createNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	n := s.svc.CreateNote(req.GetString("title", ""), req.GetString("content", ""))
	if err := s.svc.LastError(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(n)
}

func (s *Server) findInNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	spans, err := s.svc.FindAll(id, query)
	if err != nil {
		return toolError(id, err)
	}
	if spans == nil {
		spans = []models.Span{}
	}
	return jsonResult(map[string]any{"matches": spans, "count": len(spans)})
}

func (s *Server) replaceInNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if query == "" {
		return mcp.NewToolResultError("query must not be empty"), nil
	}
	replacement := req.GetString("replacement", "")

	if req.GetBool("all", false) {
		n, count, err := s.svc.ReplaceAll(id, query, replacement)
		if err != nil {
			return toolError(id, err)
		}
		return mcp.NewToolResultText(fmt.Sprintf("replaced %d occurrence(s) in %s", count, n.DisplayTitle())), nil
	}

	n, changed, err := s.svc.ReplaceNext(id, query, replacement)
	if err != nil {
		return toolError(id, err)
	}
	count := 0
	if changed {
		count = 1
	}
	return mcp.NewToolResultText(fmt.Sprintf("replaced %d occurrence(s) in %s", count, n.DisplayTitle())), nil
}

func (s *Server) exportNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	var (
		path string
		err  error
	)
	if id == "" {
		path, err = s.svc.ExportAll()
	} else {
		path, err = s.svc.ExportNote(id)
	}
	if err != nil {
		return toolError(id, err)
	}
	return mcp.NewToolResultText(path), nil
}

func (s *Server) getNoteGuide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteGuide), nil
}

func (s *Server) readNoteGuideResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      guideURI,
			MIMEType: "text/markdown",
			Text:     NoteGuide,
		},
	}, nil
}
