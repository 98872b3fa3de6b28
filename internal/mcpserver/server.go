// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes notegraph tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notegraph/internal/apperr"
	"github.com/starford/notegraph/internal/attachments"
	"github.com/starford/notegraph/internal/models"
	"github.com/starford/notegraph/internal/noteservice"
	"github.com/starford/notegraph/internal/outline"
	"github.com/starford/notegraph/internal/validate"
)

const formatURI = "notegraph://note-format"

// Server wraps the MCP server with notegraph tools.
type Server struct {
	mcp    *server.MCPServer
	notes  *noteservice.Service
	images *attachments.Store
}

// New creates a new MCP server with all notegraph tools registered.
func New(notes *noteservice.Service, images *attachments.Store, version string) *Server {
	s := &Server{notes: notes, images: images}

	s.mcp = server.NewMCPServer(
		"notegraph",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("search_notes",
		mcp.WithDescription("Case-insensitive full-text search. Returns matching notes with up to three matching lines each."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search query string")),
	), s.searchNotes)

	s.mcp.AddTool(mcp.NewTool("read_note",
		mcp.WithDescription("Read the full content of a Markdown note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path to the note (e.g. folder/note.md)")),
	), s.readNote)

	s.mcp.AddTool(mcp.NewTool("save_note",
		mcp.WithDescription("Create or overwrite a Markdown note. "+
			"The path is validated segment by segment and .md is appended when missing. "+
			"Read the format first via the get_note_contract tool or the "+formatURI+" resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Relative path for the note")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown content")),
	), s.saveNote)

	s.mcp.AddTool(mcp.NewTool("get_note_contract",
		mcp.WithDescription("Returns the notegraph note format. "+
			"Call this before writing notes to get links, tags and names right."),
	), s.getNoteContract)

	s.mcp.AddTool(mcp.NewTool("list_notes",
		mcp.WithDescription("List all notes or notes in a specific folder, newest first."),
		mcp.WithString("folder", mcp.Description("Optional folder to list (empty for all)")),
	), s.listNotes)

	s.mcp.AddTool(mcp.NewTool("get_backlinks",
		mcp.WithDescription("Find all notes that link to the specified note."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to find backlinks for")),
	), s.getBacklinks)

	s.mcp.AddTool(mcp.NewTool("render_note",
		mcp.WithDescription("Render a note to sanitized HTML with resolved wikilinks and highlighted code."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note to render")),
	), s.renderNote)

	s.mcp.AddTool(mcp.NewTool("get_outline",
		mcp.WithDescription("List the headings of a note with level, anchor slug and line number."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path of the note")),
	), s.getOutline)

	s.mcp.AddTool(mcp.NewTool("list_tags",
		mcp.WithDescription("List every frontmatter tag with the number of notes using it."),
	), s.listTags)

	s.mcp.AddTool(mcp.NewTool("validate_name",
		mcp.WithDescription("Check whether a file or folder name is allowed. A value containing / is checked as a path."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Name or path to check")),
	), s.validateName)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Store an image next to a note from an http(s) URL or a base64 data URI. "+
			"Returns the saved path and a Markdown snippet to paste into the note."),
		mcp.WithString("url", mcp.Required(), mcp.Description("http(s) URL or data:image/...;base64,... URI")),
		mcp.WithString("note_path", mcp.Description("Note the image belongs to; the image goes to its _attachments folder")),
		mcp.WithString("filename", mcp.Description("Optional file name; derived from the URL when empty")),
	), s.uploadImage)

	// Resource: note format contract.
	s.mcp.AddResource(
		mcp.NewResource(formatURI, "Note Format",
			mcp.WithResourceDescription("Markdown note format: frontmatter, wikilinks, tags, names and images."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readNoteFormatResource,
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

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// notePathArg reads and normalizes the "path" argument.
func notePathArg(req mcp.CallToolRequest) (string, error) {
	raw, err := req.RequireString("path")
	if err != nil {
		return "", err
	}
	return noteservice.NotePath(raw)
}

func toolError(p string, err error) *mcp.CallToolResult {
	if errors.Is(err, apperr.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", p))
	}
	return mcp.NewToolResultError(err.Error())
}

func (s *Server) searchNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	hits, err := s.notes.Search(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(hits), nil
}

func (s *Server) readNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := notePathArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.notes.GetNoteContent(ctx, p)
	if err != nil {
		return toolError(p, err), nil
	}
	return mcp.NewToolResultText(content), nil
}

func (s *Server) saveNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := notePathArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, err := s.notes.SaveNote(ctx, p, content); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("saved: %s", p)), nil
}

func (s *Server) listNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folder := strings.Trim(req.GetString("folder", ""), "/")

	listing, err := s.notes.ListNotes(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	var paths []string
	for _, n := range listing.Notes {
		if n.Type != models.TypeNote {
			continue
		}
		if folder != "" && n.Folder != folder && !strings.HasPrefix(n.Folder, folder+"/") {
			continue
		}
		paths = append(paths, n.Path)
	}
	if len(paths) == 0 {
		return mcp.NewToolResultText("no notes found"), nil
	}
	return mcp.NewToolResultText(strings.Join(paths, "\n")), nil
}

func (s *Server) getNoteContract(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(NoteFormatContract), nil
}

func (s *Server) readNoteFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      formatURI,
			MIMEType: "text/markdown",
			Text:     NoteFormatContract,
		},
	}, nil
}

func (s *Server) getBacklinks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := notePathArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	bl, err := s.notes.Backlinks(ctx, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(bl) == 0 {
		return mcp.NewToolResultText("no backlinks found"), nil
	}
	return mcp.NewToolResultText(strings.Join(bl, "\n")), nil
}

func (s *Server) renderNote(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := notePathArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	html, err := s.notes.RenderNote(ctx, p)
	if err != nil {
		return toolError(p, err), nil
	}
	return mcp.NewToolResultText(html), nil
}

func (s *Server) getOutline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p, err := notePathArg(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := s.notes.GetNoteContent(ctx, p)
	if err != nil {
		return toolError(p, err), nil
	}
	headings := outline.Extract(content)
	if headings == nil {
		headings = []outline.Heading{}
	}
	return jsonResult(headings), nil
}

func (s *Server) listTags(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tags, err := s.notes.ListTags(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(tags), nil
}

func (s *Server) validateName(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if strings.Contains(name, "/") {
		return jsonResult(validate.Path(name)), nil
	}
	return jsonResult(validate.Name(name)), nil
}
