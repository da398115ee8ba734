// Package mcp implements the Model Context Protocol (MCP) server for NextCode.
//
// The server exposes five tools to presentation clients:
//   - init_project: sync a project, annotate changed files, rebuild the graph
//   - get_file: read a file with its annotations merged into the source
//   - get_project_graph: return the stored module graph
//   - refresh_project_graph: re-run project analysis only
//   - save_settings: update annotation service settings at runtime
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport. stdout carries protocol
// messages exclusively; all diagnostics and pipeline progress go to stderr.
//
// Each project keeps its own SQLite database under <root>/.nextcode; the
// server opens a store lazily the first time a tool names a project root and
// holds it open for the life of the process.
//
// Error codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (database, filesystem, annotation service)
//   - -32001: Project not initialized
package mcp
