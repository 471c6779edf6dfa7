// Package mcptools imports tools from external MCP servers into the
// drafting registry.
//
// Information Hiding:
// - Server process management hidden behind the mcp-go stdio client
// - Protocol handshake hidden
// - Result content flattening hidden

package mcptools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Caller is the part of an MCP client the tool wrappers use.
type Caller interface {
	ListTools(ctx context.Context, req mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// clientName identifies this program to MCP servers.
const clientName = "reportflow"

// Connect starts the server process and completes the MCP handshake.
func Connect(ctx context.Context, server ServerConfig, version string) (*client.Client, error) {
	c, err := client.NewStdioMCPClient(server.Command, server.environ(), server.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to start MCP server: %w", err)
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: clientName, Version: version}
	if _, err := c.Initialize(ctx, req); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP client: %w", err)
	}
	return c, nil
}

var _ Caller = (*client.Client)(nil)
