// Package cmd implements the command-line interface for mailfront.
//
// This package provides the following commands:
//   - serve: Start the HTTP proxy for the token grants and mail operations
//   - login, logout: Manage the local session
//   - mail: Read and write mail from the terminal
//   - mcp: Start the MCP server to provide mail tools for AI assistants
//   - generate-docs: Generate markdown documentation for all MCP tools
//   - version: Display version information
package cmd
