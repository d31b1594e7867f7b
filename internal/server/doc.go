// Package server implements the MCP (Model Context Protocol) server for the
// image pipeline.
//
// This package provides a JSON-RPC 2.0 server that exposes plan resolution
// and rendering through the MCP protocol.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - image_info: Source format, size, orientation and reachable outputs
//   - image_plan: Translate an operation list into a rendering plan
//   - image_render: Plan and execute, returning the encoded image
//   - image_scale: Scale algebra for a size or a file
//   - image_formats: Backend capability table
//
// image_plan and image_render take a path, an ordered "operations" array
// (crop, scale, transpose, rotate, color, sharpen, overlay) and output
// encoding fields. The Encode is always applied last.
//
// # Source Metadata
//
// Source headers are cached by path for the lifetime of the server. Sources
// the Go decoders cannot read, such as PDF, are probed by the backend when
// it supports that.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: {"code": <error code such as EINVALID>, "message": <error>}
//
// # Usage
//
//	srv := server.New(processor, version, logger)
//	if err := srv.Run(ctx); err != nil {
//	    logger.Error("server error", "error", err)
//	}
package server
