package mcp

import "context"

// Transport carries JSON-RPC frames to one MCP server. Implementations
// own framing, encoding, and request/response correlation; the client
// above them only sees whole messages.
type Transport interface {
	// Send issues a call and waits for the matching response.
	Send(ctx context.Context, req *Request) (*Response, error)

	// Notify sends a one-way message.
	Notify(ctx context.Context, notif *Notification) error

	// Close releases the transport. For stdio this ends the
	// subprocess.
	Close() error
}
