// Package auth manages the OAuth token lifecycle against the mail provider.
//
// Exchanger performs the two token endpoint grants (authorization_code and
// refresh_token) and holds no state, which is what the HTTP proxy needs.
// Manager layers a Store on top for client sessions such as the CLI and the
// MCP server:
//
//	Unauthenticated --Login--> Authenticated --Refresh--> Authenticated
//	Authenticated --Clear | failed Refresh--> Unauthenticated
//
// Three Store implementations are provided: MemoryStore, FileStore (a 0600
// JSON file in the user cache directory) and KeyringStore (the OS keyring).
// Each persists the pair under the keys zoho_token and zoho_refresh_token.
package auth
