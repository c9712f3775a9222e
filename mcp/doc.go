// Package mcp implements the remote-protocol tool universe: JSON-RPC 2.0
// clients for MCP servers over HTTP-with-SSE and streamable-HTTP
// transports, and a multi-server aggregate that exposes remote tools,
// resources and prompt templates as one name-keyed tool catalogue.
package mcp
