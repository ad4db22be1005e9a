// Package config loads mailfront settings from an optional YAML file,
// environment variables and command line flags, in increasing precedence.
//
// Environment variables use the MAILFRONT_ prefix with dots replaced by
// underscores (MAILFRONT_SERVER_ADDR). The provider credentials are also read
// from ZOHO_CLIENT_ID, ZOHO_CLIENT_SECRET and REDIRECT_URI, and from their
// NEXT_PUBLIC_ spellings.
package config
