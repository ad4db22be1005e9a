// Package common provides shared helpers for the MCP tool implementations:
// argument extraction and the instrumented handler wrapper that records
// tool metrics and spans.
package common
