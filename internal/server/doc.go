// Package server implements the MCP (Model Context Protocol) server for
// template search.
//
// This package provides a JSON-RPC 2.0 server that exposes the search
// service through the MCP protocol, so AI clients can locate UI elements
// in screenshots by giving a picture of what they are looking for.
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
// Search:
//   - image_search: Find every occurrence of a template in a scene
//   - image_annotate_matches: Search and return the scene with matches outlined
//   - image_pyramid_levels: Preview pyramid sizes and which levels are searchable
//
// Templates and files:
//   - image_crop_template: Cut a template out of an image
//   - image_dimensions: Get width and height
//   - image_load: Load image and get metadata
//
// Scene and template can each be given as a file path or as base64 data.
//
// # Image Caching
//
// Images given by path are cached and reused across tool calls, so
// searching one screenshot for several templates decodes it once. The
// cache persists for the lifetime of the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// # Usage
//
//	srv := server.New(svc, logger.Log(), version)
//	if err := srv.Serve(ctx, os.Stdin, os.Stdout); err != nil {
//	    logger.Log().Fatal("server error", zap.Error(err))
//	}
package server
