// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes Lookback tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/lookback/internal/apperr"
	"github.com/starford/lookback/internal/memoryservice"
	"github.com/starford/lookback/internal/models"
)

// RecordFormatURI is the resource URI of the sidecar record format.
const RecordFormatURI = "lookback://record-format"

// Server wraps the MCP server with Lookback tools.
type Server struct {
	mcp *server.MCPServer
	svc *memoryservice.Service
}

// New creates a new MCP server with all Lookback tools registered.
func New(svc *memoryservice.Service) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"Lookback",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_memories",
		mcp.WithDescription("List memories newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of memories (default 50, 0 for all)")),
	), s.listMemories)

	s.mcp.AddTool(mcp.NewTool("get_memory",
		mcp.WithDescription("Get one memory by its metadata filename."),
		mcp.WithString("filename", mcp.Required(), mcp.Description("Metadata filename, e.g. 2024-03-01_abc.json")),
	), s.getMemory)

	s.mcp.AddTool(mcp.NewTool("get_flashbacks",
		mcp.WithDescription("Draw a random sample of memories to look back on. Each call returns a new sample."),
	), s.getFlashbacks)

	s.mcp.AddTool(mcp.NewTool("list_time_groups",
		mcp.WithDescription("Memories grouped by year and month, newest first, with counts."),
	), s.listTimeGroups)

	s.mcp.AddTool(mcp.NewTool("list_place_groups",
		mcp.WithDescription("Memories grouped by place (coordinates rounded to 2 decimals), largest group first."),
	), s.listPlaceGroups)

	s.mcp.AddTool(mcp.NewTool("ingest_folder",
		mcp.WithDescription("Replace the catalog with the memories found in an exported folder. "+
			"Read the record format via get_record_format or the lookback://record-format resource."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Absolute path to the export folder")),
	), s.ingestFolder)

	s.mcp.AddTool(mcp.NewTool("get_record_format",
		mcp.WithDescription("Returns the metadata sidecar format that ingest_folder understands."),
	), s.getRecordFormat)

	// Resource: record format.
	s.mcp.AddResource(
		mcp.NewResource(RecordFormatURI, "Record Format",
			mcp.WithResourceDescription("Metadata sidecar format and media matching rules."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readRecordFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

type memorySummary struct {
	Filename  string `json:"filename"`
	Date      string `json:"date"`
	TimeAgo   string `json:"time_ago"`
	MediaType string `json:"media_type"`
	Place     string `json:"place"`
	Media     string `json:"media,omitempty"`
	Loaded    bool   `json:"loaded"`
	Overlays  int    `json:"overlays,omitempty"`
}

func (s *Server) summarize(ms []*models.Memory) []memorySummary {
	out := make([]memorySummary, 0, len(ms))
	for _, m := range ms {
		sum := memorySummary{
			Filename:  m.Filename,
			Date:      m.Date,
			TimeAgo:   s.svc.TimeAgo(m),
			MediaType: m.MediaType,
			Place:     s.svc.PlaceName(m),
			Loaded:    m.Displayable(),
			Overlays:  len(m.Overlays),
		}
		if m.Media != nil {
			sum.Media = m.Media.Path
		}
		out = append(out, sum)
	}
	return out
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listMemories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 50)
	return jsonResult(map[string]any{
		"total":    s.svc.Len(),
		"memories": s.summarize(s.svc.Feed(limit)),
	})
}

func (s *Server) getMemory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filename, err := req.RequireString("filename")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	m, err := s.svc.Memory(filename)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", filename)), nil
	}
	return jsonResult(s.summarize([]*models.Memory{m})[0])
}

func (s *Server) getFlashbacks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sample := s.svc.Flashbacks()
	if len(sample) == 0 {
		return mcp.NewToolResultText("no memories loaded"), nil
	}
	return jsonResult(s.summarize(sample))
}

type monthSummary struct {
	Label     string   `json:"label"`
	Count     int      `json:"count"`
	Filenames []string `json:"filenames"`
}

type yearSummary struct {
	Label  string         `json:"label"`
	Count  int            `json:"count"`
	Months []monthSummary `json:"months"`
}

func (s *Server) listTimeGroups(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var out []yearSummary
	for _, g := range s.svc.TimeGroups() {
		ys := yearSummary{Label: g.Label, Count: g.Count}
		for _, mg := range g.Months {
			ys.Months = append(ys.Months, monthSummary{Label: mg.Label, Count: mg.Count, Filenames: filenames(mg.Memories)})
		}
		out = append(out, ys)
	}
	if len(out) == 0 {
		return mcp.NewToolResultText("no memories loaded"), nil
	}
	return jsonResult(out)
}

type placeSummary struct {
	Key       string   `json:"key"`
	Label     string   `json:"label"`
	Count     int      `json:"count"`
	Filenames []string `json:"filenames"`
}

func (s *Server) listPlaceGroups(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var out []placeSummary
	for _, g := range s.svc.PlaceGroups() {
		out = append(out, placeSummary{Key: g.Key, Label: g.Label, Count: g.Count, Filenames: filenames(g.Memories)})
	}
	if len(out) == 0 {
		return mcp.NewToolResultText("no memories loaded"), nil
	}
	return jsonResult(out)
}

func (s *Server) ingestFolder(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.svc.IngestFolder(ctx, path)
	if errors.Is(err, apperr.ErrSuperseded) {
		return mcp.NewToolResultError("superseded by a newer ingest"), nil
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("loaded %d memories from %s (run %s)", res.Count, res.Root, res.RunID)), nil
}

func (s *Server) getRecordFormat(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(RecordFormat), nil
}

func (s *Server) readRecordFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      RecordFormatURI,
			MIMEType: "text/markdown",
			Text:     RecordFormat,
		},
	}, nil
}

func filenames(ms []*models.Memory) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Filename
	}
	return out
}
