package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/services"
	"github.com/desertthunder/tidal-mcp/internal/shared"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	// ServerName is advertised to MCP clients.
	ServerName = "TIDAL Integration"

	loginFirst = "Not authenticated with TIDAL. Please login first using tidal_login()."
)

// Tool pairs a definition with its handler.
type Tool struct {
	Definition mcp.Tool
	Handler    server.ToolHandlerFunc
}

// Tools holds the backend client shared by every tool handler.
type Tools struct {
	api    *services.APIService
	cfg    shared.RecommendConfig
	logger *log.Logger
}

// New creates the tool set. Zero values in cfg take the built-in defaults.
func New(api *services.APIService, cfg shared.RecommendConfig, logger *log.Logger) *Tools {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if cfg.DefaultLimitPerSeed <= 0 {
		cfg.DefaultLimitPerSeed = defaultLimitPerSeed
	}
	if cfg.DefaultSeedCount <= 0 {
		cfg.DefaultSeedCount = defaultSeedCount
	}
	if cfg.MaxRecommendations <= 0 {
		cfg.MaxRecommendations = defaultMaxRecommendations
	}
	return &Tools{api: api, cfg: cfg, logger: shared.WithLogger(logger, "component", "tools")}
}

// All returns every tool in registration order.
func (t *Tools) All() []Tool {
	return []Tool{
		{loginTool(), t.Login},
		{favoritesTool(), t.FavoriteTracks},
		{summarizeTool(), t.SummarizePreferences},
		{recommendTool(), t.RecommendTracks},
		{trackRecommendationsTool(), t.TrackRecommendations},
		{playlistsTool(), t.Playlists},
		{playlistTracksTool(), t.PlaylistTracks},
		{createPlaylistTool(), t.CreatePlaylist},
		{deletePlaylistTool(), t.DeletePlaylist},
	}
}

// Register adds every tool to s.
func (t *Tools) Register(s *server.MCPServer) {
	for _, tool := range t.All() {
		s.AddTool(tool.Definition, tool.Handler)
	}
}

// NewServer creates an MCP server with every tool registered.
func NewServer(version string, t *Tools) *server.MCPServer {
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	t.Register(s)
	return s
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// jsonResult renders v as the text content of a successful result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errorResult renders an in-band error body.
func errorResult(format string, args ...any) (*mcp.CallToolResult, error) {
	data, _ := json.Marshal(errorResponse{Status: "error", Message: fmt.Sprintf(format, args...)})
	res := mcp.NewToolResultText(string(data))
	res.IsError = true
	return res, nil
}

// call performs one backend request. A nil response means the request never completed.
func (t *Tools) call(ctx context.Context, method, path string, body any) (*services.APIResponse, error) {
	var (
		resp *services.APIResponse
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = t.api.Get(ctx, path)
	case http.MethodDelete:
		resp, err = t.api.Delete(ctx, path)
	default:
		resp, err = t.api.PostJSON(ctx, path, body)
	}
	if err != nil {
		t.logger.Warn("backend request failed", "method", method, "path", path, "err", err)
		return nil, err
	}

	t.logger.Debug("backend request", "method", method, "path", path, "status", resp.StatusCode)
	return resp, nil
}

// authenticated asks the backend whether a session is stored.
func (t *Tools) authenticated(ctx context.Context) (bool, error) {
	resp, err := t.call(ctx, http.MethodGet, "/api/auth/status", nil)
	if err != nil {
		return false, err
	}

	var status struct {
		Authenticated bool `json:"authenticated"`
	}
	if err := resp.Decode(&status); err != nil {
		return false, err
	}
	return status.Authenticated, nil
}

func withLimit(path string, limit int) string {
	return path + "?limit=" + strconv.Itoa(limit)
}

// argTrackIDs reads an array argument whose elements may be strings or numbers.
func argTrackIDs(req mcp.CallToolRequest, key string) ([]models.TrackID, error) {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return nil, nil
	}

	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case []string:
		for _, s := range v {
			items = append(items, s)
		}
	default:
		return nil, fmt.Errorf("%w: %s must be a list", shared.ErrInvalidArgument, key)
	}

	ids := make([]string, 0, len(items))
	for i, item := range items {
		switch v := item.(type) {
		case string:
			ids = append(ids, v)
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("%w: %s[%d] is not an integer", shared.ErrInvalidArgument, key, i)
			}
			ids = append(ids, strconv.FormatInt(int64(v), 10))
		case int:
			ids = append(ids, strconv.Itoa(v))
		case json.Number:
			ids = append(ids, v.String())
		default:
			return nil, fmt.Errorf("%w: %s[%d] must be a string or integer", shared.ErrInvalidArgument, key, i)
		}
	}
	return models.ParseTrackIDs(ids), nil
}

// resultMessage extracts the message of an [errorResult].
func resultMessage(res *mcp.CallToolResult) string {
	if len(res.Content) == 0 {
		return ""
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		return ""
	}
	var body errorResponse
	if err := json.Unmarshal([]byte(text.Text), &body); err != nil {
		return text.Text
	}
	return body.Message
}
