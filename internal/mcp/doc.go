// Package mcp implements MCP (Model Context Protocol) client support,
// allowing Scribe to connect to external MCP servers and expose their
// tools to the agent as abilities.
//
// MCP uses JSON-RPC 2.0 over two transports: stdio (subprocess) and
// streamable HTTP. The client discovers tools via tools/list and invokes
// them via tools/call. Discovered tools are bridged into the ability
// registry so they appear alongside the builtin abilities.
//
// This implementation covers the client/host side only; Scribe does not
// act as an MCP server.
package mcp
