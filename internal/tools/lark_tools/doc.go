// Package lark_tools exposes the Lark API operations as MCP tools.
//
// The seven tools share one table of descriptors, each naming the tool, its
// argument specs, and a handler closure onto a lark.Client method. The same
// table drives both MCP registration and Dispatch, the exported
// request/response boundary: one descriptor entry is the whole definition of
// a tool.
//
// Dispatch validates arguments before any network I/O, performs exactly one
// outbound call per invocation, and shapes all outcomes into a uniform
// ToolResult. Typed errors from the lark package are flattened into the
// result's error string; credentials never appear in it.
package lark_tools
