package mcp

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/server"
)

// Notifier pushes notifications to connected sessions.
type Notifier interface {
	Notify(ctx context.Context, organization string, payload map[string]any) error
}

// MCPNotifier implements Notifier using MCP push notifications.
type MCPNotifier struct {
	mcpServer *server.MCPServer
	sessions  *SessionRegistry
}

// NewMCPNotifier creates a notifier that pushes via the MCP transport.
func NewMCPNotifier(mcpServer *server.MCPServer, sessions *SessionRegistry) *MCPNotifier {
	return &MCPNotifier{mcpServer: mcpServer, sessions: sessions}
}

// Notify sends a notification to the organization's session.
// Best-effort: returns nil if the organization is not connected.
func (n *MCPNotifier) Notify(_ context.Context, organization string, payload map[string]any) error {
	sessionID, ok := n.sessions.SessionFor(organization)
	if !ok {
		return nil // not connected, best-effort
	}
	err := n.mcpServer.SendNotificationToSpecificClient(sessionID, "notifications/message", payload)
	if errors.Is(err, server.ErrSessionNotFound) {
		// Session expired between lookup and send, not an error.
		n.sessions.Remove(sessionID)
		return nil
	}
	return err
}
