package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/koi-classifier/internal/core/ports"
)

const (
	toolLookupPrediction = "lookup_prediction"
	toolModelInfo        = "model_info"
	toolPreviewDataset   = "preview_dataset"
)

// Services are the read-only inbound ports exposed as tools.
type Services struct {
	Predictions ports.PredictionReader
	Models      ports.ModelInspector
	Dataset     ports.DatasetPreviewer
}

type Server struct {
	svc    Services
	logger *slog.Logger
	mcp    *server.MCPServer
}

func NewServer(svc Services, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		svc:    svc,
		logger: logger,
		mcp:    server.NewMCPServer("koi-classifier", version, server.WithToolCapabilities(false)),
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(mcp.NewTool(toolLookupPrediction,
		mcp.WithDescription("Return the most recent recorded disposition prediction for a Kepler ID."),
		mcp.WithNumber("kepid", mcp.Required(), mcp.Description("Kepler input catalog identifier")),
	), s.handleLookupPrediction)

	s.mcp.AddTool(mcp.NewTool(toolModelInfo,
		mcp.WithDescription("Describe the active classifier: model family, F1 score, selected features."),
	), s.handleModelInfo)

	s.mcp.AddTool(mcp.NewTool(toolPreviewDataset,
		mcp.WithDescription("Return the cleaned master dataset preview used by the dashboard."),
		mcp.WithNumber("num_rows", mcp.Description("number of rows to return, all rows when omitted")),
	), s.handlePreviewDataset)
}

// ServeStdio blocks serving the protocol on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) handleLookupPrediction(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := req.RequireFloat("kepid")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	kepID := int64(raw)
	if float64(kepID) != raw {
		return mcp.NewToolResultError(fmt.Sprintf("kepid must be an integer, got %v", raw)), nil
	}
	p, err := s.svc.Predictions.Lookup(ctx, kepID)
	if err != nil {
		return s.toolError(toolLookupPrediction, err), nil
	}
	return jsonResult(p)
}

func (s *Server) handleModelInfo(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := s.svc.Models.ActiveModel()
	if err != nil {
		return s.toolError(toolModelInfo, err), nil
	}
	return jsonResult(info)
}

func (s *Server) handlePreviewDataset(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	numRows := int(req.GetFloat("num_rows", 0))
	if numRows < 0 {
		return mcp.NewToolResultError("num_rows must not be negative"), nil
	}
	preview, err := s.svc.Dataset.Preview(ctx, numRows)
	if err != nil {
		return s.toolError(toolPreviewDataset, err), nil
	}
	return jsonResult(preview)
}

// toolError reports domain failures as tool results so the client model can
// read them; only protocol problems are returned as Go errors.
func (s *Server) toolError(tool string, err error) *mcp.CallToolResult {
	s.logger.Warn("tool call failed", "tool", tool, "error", err)
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
