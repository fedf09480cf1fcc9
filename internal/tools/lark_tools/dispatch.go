package lark_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/larkmcp/larkmcp/internal/lark"
	"github.com/larkmcp/larkmcp/internal/logging"
	"github.com/larkmcp/larkmcp/internal/server"
	"github.com/larkmcp/larkmcp/internal/tools/common"
)

// ToolRequest names a tool and carries its raw arguments.
type ToolRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult is the uniform outcome of a tool invocation. There is no
// partial success: either Data is set, or Error holds a sanitized message.
type ToolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Dispatcher executes tool requests against one shared Lark client.
type Dispatcher struct {
	client *lark.Client
	logger *slog.Logger
}

// NewDispatcher creates a Dispatcher. A nil logger uses slog.Default.
func NewDispatcher(client *lark.Client, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{client: client, logger: logger}
}

// Dispatch looks up the named tool, validates its arguments, performs the
// single outbound call and shapes the outcome. Unknown tools and validation
// failures are reported without any network I/O.
func (d *Dispatcher) Dispatch(ctx context.Context, req ToolRequest) ToolResult {
	desc, ok := toolIndex[req.Name]
	if !ok {
		return ToolResult{Success: false, Error: fmt.Sprintf("unknown tool: %s", req.Name)}
	}

	data, err := desc.run(ctx, d.client, req.Arguments)
	if err != nil {
		d.logger.Warn("tool invocation failed",
			logging.Tool(req.Name),
			logging.Err(err))
		return ToolResult{Success: false, Error: err.Error()}
	}

	d.logger.Debug("tool invocation completed",
		logging.Tool(req.Name),
		logging.Status(logging.StatusSuccess))
	return ToolResult{Success: true, Data: data}
}

// RegisterLarkTools registers every tool in the table on the MCP server,
// each handler wrapped with metrics and audit instrumentation.
func RegisterLarkTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	d := NewDispatcher(sc.LarkClient(), slog.Default())

	for _, desc := range descriptors {
		name := desc.name
		handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			args, _ := request.Params.Arguments.(map[string]any)
			result := d.Dispatch(ctx, ToolRequest{Name: name, Arguments: args})
			if !result.Success {
				return mcp.NewToolResultError(result.Error), nil
			}
			payload, err := json.MarshalIndent(result.Data, "", "  ")
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s result: %w", name, err)
			}
			return mcp.NewToolResultText(string(payload)), nil
		}
		s.AddTool(desc.mcpTool(), common.InstrumentedToolHandler(name, sc, handler))
	}
	return nil
}

// ToolNames returns the names of all registered tools in table order.
func ToolNames() []string {
	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.name)
	}
	return names
}
