// Package mail_tools exposes the mailbox operations as MCP tools.
//
// Read tools are always registered. mail_send_message and mail_delete_message
// are registered only when write operations are enabled.
package mail_tools
