// Package mcp exposes ResScene as a Model Context Protocol server so that
// assistants can create, inspect and activate scenes.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/resscene/internal/logging"
	"github.com/aretw0/resscene/pkg/domain"
	"github.com/aretw0/resscene/pkg/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ScenesURI lists every stored scene.
const ScenesURI = "resscene://scenes"

// Server wraps the scene service and exposes it as an MCP Server.
type Server struct {
	svc       *service.Service
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

type Option func(*Server)

// WithLogger configures a logger for the Server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(svc *service.Service, version string, opts ...Option) *Server {
	s := &Server{
		svc:       svc,
		mcpServer: server.NewMCPServer("resscene-mcp", version),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves MCP over SSE on addr until ctx is canceled.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("create_scene",
		mcp.WithDescription("Snapshot the current state of entities into a restorable scene. Re-using a scene_id replaces the scene."),
		mcp.WithString("scene_id", mcp.Required(), mcp.Description("Scene id, lowercase letters, digits and underscores")),
		mcp.WithArray("snapshot_entities", mcp.Required(), mcp.Description("Entity ids to capture, e.g. light.kitchen"), mcp.WithStringItems()),
		mcp.WithArray("snapshot_areas", mcp.Description("Areas whose entities are captured too"), mcp.WithStringItems()),
		mcp.WithArray("snapshot_labels", mcp.Description("Labels whose entities are captured too"), mcp.WithStringItems()),
		mcp.WithString("snapshot_filter", mcp.Description(`Expression selecting more entities, e.g. domain == "light" && state == "on"`)),
		mcp.WithBoolean("restore_light_attributes", mcp.Description("Restore brightness and color of lights that were off")),
		mcp.WithNumber("action_timeout", mcp.Description("Seconds to wait for each entity to reach its state")),
	), s.handleCreate)

	s.mcpServer.AddTool(mcp.NewTool("delete_scene",
		mcp.WithDescription("Delete a scene."),
		mcp.WithString("entity_id", mcp.Required(), mcp.Description("Scene entity id, e.g. scene.evening_mode")),
	), s.handleDelete)

	s.mcpServer.AddTool(mcp.NewTool("activate_scene",
		mcp.WithDescription("Restore every entity of a scene to its captured state."),
		mcp.WithString("entity_id", mcp.Required(), mcp.Description("Scene entity id, e.g. scene.evening_mode")),
	), s.handleActivate)

	s.mcpServer.AddTool(mcp.NewTool("rename_scene",
		mcp.WithDescription("Move a scene to a new id."),
		mcp.WithString("entity_id", mcp.Required(), mcp.Description("Current scene entity id")),
		mcp.WithString("new_scene_id", mcp.Required(), mcp.Description("New scene id")),
	), s.handleRename)

	s.mcpServer.AddTool(mcp.NewTool("list_scenes",
		mcp.WithDescription("List every stored scene."),
	), s.handleList)
}

func (s *Server) handleCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.svc.Call(ctx, service.ServiceCreate, request.GetArguments())
	if err != nil {
		return toolError("create", err), nil
	}
	res := out.(*service.CreateResult)
	body := map[string]any{"scene": res.Scene}
	if res.Warning != nil {
		body["warnings"] = res.Warning.Failures
	}
	if res.Diff != nil {
		body["diff"] = res.Diff
	}
	return jsonResult(body)
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := s.svc.Call(ctx, service.ServiceDelete, request.GetArguments()); err != nil {
		return toolError("delete", err), nil
	}
	return mcp.NewToolResultText("deleted " + request.GetString("entity_id", "")), nil
}

func (s *Server) handleActivate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.svc.Call(ctx, service.ServiceActivate, request.GetArguments())
	if err != nil {
		return toolError("activate", err), nil
	}
	return jsonResult(out)
}

func (s *Server) handleRename(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.svc.Call(ctx, service.ServiceRename, request.GetArguments())
	if err != nil {
		return toolError("rename", err), nil
	}
	return jsonResult(out)
}

func (s *Server) handleList(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenes, err := s.svc.List(ctx)
	if err != nil {
		return toolError("list", err), nil
	}
	return jsonResult(summaries(scenes))
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ScenesURI, "Stored scenes",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		scenes, err := s.svc.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list scenes: %w", err)
		}
		jsonBytes, err := json.Marshal(scenes)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ScenesURI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}

type sceneSummary struct {
	EntityID  string    `json:"entity_id"`
	Entities  []string  `json:"entities"`
	UpdatedAt time.Time `json:"updated_at"`
}

func summaries(scenes []*domain.Scene) []sceneSummary {
	out := make([]sceneSummary, len(scenes))
	for i, sc := range scenes {
		out[i] = sceneSummary{EntityID: sc.EntityID(), Entities: sc.EntityIDs(), UpdatedAt: sc.UpdatedAt}
	}
	return out
}

func toolError(op string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", op, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}
