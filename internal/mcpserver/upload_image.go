package mcpserver

import (
	"context"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/starford/notegraph/internal/attachments"
	"github.com/starford/notegraph/internal/validate"
)

func (s *Server) uploadImage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rawURL, err := req.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	notePath := req.GetString("note_path", "")
	if notePath != "" {
		if res := validate.Path(notePath); !res.Valid {
			return mcp.NewToolResultError(res.Err().Error()), nil
		}
	}

	var (
		data []byte
		ext  string
	)
	if strings.HasPrefix(rawURL, "data:") {
		data, ext, err = attachments.FromDataURI(rawURL)
	} else {
		data, ext, err = attachments.Fetch(ctx, rawURL)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	filename := req.GetString("filename", "")
	if filename == "" {
		filename = attachments.NameFromURL(rawURL, ext)
	}

	saved, err := s.images.Save(notePath, filename, data)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(saved), nil
}
