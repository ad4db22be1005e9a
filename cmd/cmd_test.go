package cmd

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailfront/internal/auth"
	"github.com/teemow/mailfront/internal/gateway"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "login", "logout", "mail", "mcp", "generate-docs", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}

	mail, _, err := root.Find([]string{"mail"})
	require.NoError(t, err)
	sub := map[string]bool{}
	for _, c := range mail.Commands() {
		sub[c.Name()] = true
	}
	for _, want := range []string{"inbox", "folders", "read", "send", "reply", "delete"} {
		assert.True(t, sub[want], "missing mail command %s", want)
	}
}

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Equal(t, "mailfront version "+version+"\n", out.String())
}

func TestGenerateToolsMarkdown(t *testing.T) {
	tools, err := registeredTools()
	require.NoError(t, err)
	require.Len(t, tools, 6)

	md := generateToolsMarkdown(tools)
	assert.Contains(t, md, "# MCP Tools Reference")
	assert.Contains(t, md, "### mail_list_messages")
	assert.Contains(t, md, "- `messageId` (required): Message id")

	write := strings.Index(md, "## Write Tools")
	require.Positive(t, write)
	assert.Greater(t, strings.Index(md, "### mail_send_message"), write)
	assert.Less(t, strings.Index(md, "### mail_get_message"), write)
}

func TestReadBody(t *testing.T) {
	cmd := newMailSendCmd()
	cmd.SetIn(strings.NewReader("from stdin\n"))

	got, err := readBody(cmd, "-")
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	got, err = readBody(cmd, "inline")
	require.NoError(t, err)
	assert.Equal(t, "inline", got)
}

const expiredToken = "expired-token"

// zohoStub serves the provider endpoints the mail commands use. Token
// refreshes always fail.
func zohoStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/oauth/token":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"invalid_code"}`)
		case r.Header.Get("Authorization") == gateway.DefaultAuthScheme+" "+expiredToken:
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"data":{"errorCode":"INVALID_OAUTHTOKEN"}}`)
		case r.URL.Path == "/api/accounts":
			_, _ = io.WriteString(w, `{"data":[{"accountId":"A1","primaryEmailAddress":"me@example.com"}]}`)
		case strings.HasSuffix(r.URL.Path, "/folders"):
			_, _ = io.WriteString(w, `{"data":[{"folderId":"F2","folderName":"Sent","folderType":"Sent"},{"folderId":"F1","folderName":"Inbox","folderType":"Inbox"}]}`)
		case strings.HasSuffix(r.URL.Path, "/messages/view"):
			_, _ = io.WriteString(w, `{"data":[{"messageId":"M1","subject":"Quarterly report","fromAddress":"boss@example.com","summary":"Numbers"}]}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

// runMail runs a mail subcommand against srv with a stored session.
func runMail(t *testing.T, srv *httptest.Server, accessToken string, args ...string) (string, string, error) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("ZOHO_CLIENT_ID", "client")
	t.Setenv("ZOHO_CLIENT_SECRET", "secret")
	t.Setenv("REDIRECT_URI", "http://localhost:3000/callback")
	t.Setenv("MAILFRONT_ZOHO_TOKEN_URL", srv.URL+"/oauth/token")
	t.Setenv("MAILFRONT_LOG_LEVEL", "error")

	sessionFile := filepath.Join(dir, "session.json")
	require.NoError(t, auth.NewFileStore(sessionFile).Save(auth.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: "refresh",
	}))

	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(append([]string{"mail"}, args...),
		"--session-file", sessionFile,
		"--api-url", srv.URL+"/api",
		"--theme", "minimal",
	))
	err := root.Execute()
	return out.String(), sessionFile, err
}

func TestMailInbox(t *testing.T) {
	srv := zohoStub(t)

	out, _, err := runMail(t, srv, "good-token", "inbox")
	require.NoError(t, err)
	assert.Contains(t, out, "Quarterly report")
	assert.Contains(t, out, "boss@example.com")
}

func TestMailInboxSearchWithoutMatch(t *testing.T) {
	srv := zohoStub(t)

	out, _, err := runMail(t, srv, "good-token", "inbox", "--search", "holiday")
	require.NoError(t, err)
	assert.Contains(t, out, "No emails found")
}

func TestMailFolders(t *testing.T) {
	srv := zohoStub(t)

	out, _, err := runMail(t, srv, "good-token", "folders")
	require.NoError(t, err)
	assert.Contains(t, out, "> Inbox")
	assert.Contains(t, out, "Sent")
}

func TestMailSendValidation(t *testing.T) {
	srv := zohoStub(t)

	_, _, err := runMail(t, srv, "good-token", "send", "--to", "you@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Please fill in recipient and subject")
}

func TestMailDeleteNeedsConfirmation(t *testing.T) {
	srv := zohoStub(t)

	_, _, err := runMail(t, srv, "good-token", "delete", "M1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--yes")
}

func TestMailExpiredSession(t *testing.T) {
	srv := zohoStub(t)

	_, sessionFile, err := runMail(t, srv, expiredToken, "inbox")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailfront login")

	_, statErr := os.Stat(sessionFile)
	assert.True(t, os.IsNotExist(statErr), "session file should be removed")
}
