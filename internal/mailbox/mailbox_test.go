package mailbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/mailfront/internal/gateway"
)

// fakeGateway serves canned data and records calls.
type fakeGateway struct {
	mu       sync.Mutex
	folders  []gateway.Folder
	messages map[string][]gateway.MessageSummary
	details  map[string]gateway.MessageDetail

	getErr   error
	listErr  error
	listErrs map[string]error
	sendErr  error
	// gate, when set for a message id, blocks GetMessage until closed.
	gate map[string]chan struct{}
	// listGate, when set for a folder id, blocks ListMessages until closed.
	listGate map[string]chan struct{}

	sent    []gateway.OutgoingMessage
	deleted []string
	lists   []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		folders: []gateway.Folder{
			{FolderID: "F2", FolderName: "Sent", FolderType: gateway.FolderSent},
			{FolderID: "F1", FolderName: "Inbox", FolderType: gateway.FolderInbox},
		},
		messages: map[string][]gateway.MessageSummary{
			"F1": {
				{MessageID: "M1", FolderID: "F1", Subject: "Quarterly report", FromAddress: "alice@example.com", Summary: "numbers inside"},
				{MessageID: "M2", FolderID: "F1", Subject: "Lunch?", FromAddress: "bob@example.com", Summary: "tacos"},
			},
			"F2": {
				{MessageID: "M3", FolderID: "F2", Subject: "Re: Lunch?", FromAddress: "me@example.com", Summary: "sure"},
			},
		},
		details: map[string]gateway.MessageDetail{
			"M1": {Content: "<p>Full report</p>"},
			"M2": {Content: "<p>Tacos at noon</p>"},
		},
		gate:     map[string]chan struct{}{},
		listGate: map[string]chan struct{}{},
		listErrs: map[string]error{},
	}
}

func (g *fakeGateway) ListAccounts(context.Context) (gateway.Payload[[]gateway.Account], error) {
	return gateway.Payload[[]gateway.Account]{Data: []gateway.Account{
		{AccountID: "A1", PrimaryEmailAddress: "me@example.com"},
		{AccountID: "A2", PrimaryEmailAddress: "other@example.com"},
	}}, nil
}

func (g *fakeGateway) ListFolders(context.Context, string) (gateway.Payload[[]gateway.Folder], error) {
	return gateway.Payload[[]gateway.Folder]{Data: g.folders}, nil
}

func (g *fakeGateway) ListMessages(_ context.Context, _, folderID string) (gateway.Payload[[]gateway.MessageSummary], error) {
	g.mu.Lock()
	gate := g.listGate[folderID]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.lists = append(g.lists, folderID)
	if err := g.listErrs[folderID]; err != nil {
		return gateway.Payload[[]gateway.MessageSummary]{}, err
	}
	if g.listErr != nil {
		return gateway.Payload[[]gateway.MessageSummary]{}, g.listErr
	}
	return gateway.Payload[[]gateway.MessageSummary]{Data: g.messages[folderID]}, nil
}

func (g *fakeGateway) GetMessage(_ context.Context, _, _, messageID string) (gateway.Payload[gateway.MessageDetail], error) {
	g.mu.Lock()
	gate := g.gate[messageID]
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return gateway.Payload[gateway.MessageDetail]{}, g.getErr
	}
	return gateway.Payload[gateway.MessageDetail]{Data: g.details[messageID]}, nil
}

func (g *fakeGateway) SendMessage(_ context.Context, _ string, msg gateway.OutgoingMessage) (gateway.Payload[gateway.SentMessage], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sendErr != nil {
		return gateway.Payload[gateway.SentMessage]{}, g.sendErr
	}
	g.sent = append(g.sent, msg)
	return gateway.Payload[gateway.SentMessage]{Data: gateway.SentMessage{MessageID: "S1"}}, nil
}

func (g *fakeGateway) DeleteMessage(_ context.Context, _, messageID string) (gateway.Payload[struct{}], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, messageID)
	for folder, msgs := range g.messages {
		kept := msgs[:0:0]
		for _, m := range msgs {
			if m.MessageID.String() != messageID {
				kept = append(kept, m)
			}
		}
		g.messages[folder] = kept
	}
	return gateway.Payload[struct{}]{}, nil
}

type fakeSession struct {
	cleared int
}

func (s *fakeSession) Clear(context.Context) error {
	s.cleared++
	return nil
}

func loaded(t *testing.T) (*Mailbox, *fakeGateway, *fakeSession) {
	t.Helper()
	gw := newFakeGateway()
	session := &fakeSession{}
	m := New(gw, session)
	require.NoError(t, m.Load(context.Background()))
	return m, gw, session
}

func ids(msgs []gateway.MessageSummary) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.MessageID.String()
	}
	return out
}

func TestLoad_SelectsFirstAccountAndInbox(t *testing.T) {
	m, gw, _ := loaded(t)

	account, ok := m.Account()
	require.True(t, ok)
	assert.Equal(t, "A1", account.AccountID.String())
	assert.Equal(t, "F1", m.CurrentFolder())
	assert.Equal(t, []string{"F1"}, gw.lists)
	assert.Equal(t, []string{"M1", "M2"}, ids(m.Messages()), "provider order is kept")
	assert.Len(t, m.Folders(), 2)
}

func TestInboxID(t *testing.T) {
	tests := []struct {
		name    string
		folders []gateway.Folder
		want    string
	}{
		{"inbox by type", []gateway.Folder{{FolderID: "x", FolderType: gateway.FolderOther}, {FolderID: "y", FolderType: gateway.FolderInbox}}, "y"},
		{"first folder fallback", []gateway.Folder{{FolderID: "x", FolderType: gateway.FolderOther}}, "x"},
		{"no folders", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InboxID(tt.folders))
		})
	}
}

func TestNotLoaded(t *testing.T) {
	m := New(newFakeGateway(), &fakeSession{})

	assert.ErrorIs(t, m.SelectFolder(context.Background(), "F1"), ErrNotLoaded)
	_, err := m.Open(context.Background(), "M1")
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = m.Compose(context.Background(), "x@example.com", "hi", "")
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestSelectFolder(t *testing.T) {
	m, _, _ := loaded(t)

	require.NoError(t, m.SelectFolder(context.Background(), "F2"))
	assert.Equal(t, "F2", m.CurrentFolder())
	assert.Equal(t, []string{"M3"}, ids(m.Messages()))
}

func TestSearch(t *testing.T) {
	m, _, _ := loaded(t)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"M1", "M2"}},
		{"REPORT", []string{"M1"}},
		{"bob@", []string{"M2"}},
		{"tacos", []string{"M2"}},
		{"nothing matches", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			m.SetSearch(tt.query)
			assert.Equal(t, tt.query, m.Search())
			assert.Equal(t, tt.want, ids(m.Messages()))
		})
	}
}

func TestOpen_MergesSummaryFields(t *testing.T) {
	m, _, _ := loaded(t)

	d, err := m.Open(context.Background(), "M1")
	require.NoError(t, err)
	assert.Equal(t, "<p>Full report</p>", d.Content)
	assert.Equal(t, "Quarterly report", d.Subject)
	assert.Equal(t, "alice@example.com", d.FromAddress)

	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "M1", sel.MessageID.String())
}

func TestOpen_FallsBackToSummaryOnFailure(t *testing.T) {
	m, gw, session := loaded(t)
	gw.getErr = &gateway.GatewayError{Kind: gateway.KindUpstreamFailure, Message: "Failed to get email"}

	d, err := m.Open(context.Background(), "M2")
	require.NoError(t, err)
	assert.Equal(t, "tacos", d.Content)
	assert.Zero(t, session.cleared)
}

func TestOpen_FallsBackOnTransportError(t *testing.T) {
	m, gw, _ := loaded(t)
	gw.getErr = errors.New("connection reset")

	d, err := m.Open(context.Background(), "M1")
	require.NoError(t, err)
	assert.Equal(t, "numbers inside", d.Content)
}

func TestOpen_EmptyContentUsesSummary(t *testing.T) {
	m, gw, _ := loaded(t)
	gw.details["M2"] = gateway.MessageDetail{Content: "  "}

	d, err := m.Open(context.Background(), "M2")
	require.NoError(t, err)
	assert.Equal(t, "tacos", d.Content)
}

func TestOpen_StaleResultIsDiscarded(t *testing.T) {
	m, gw, _ := loaded(t)
	gate := make(chan struct{})
	gw.gate["M1"] = gate

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.Open(context.Background(), "M1")
	}()

	// Wait until the first Open has issued its request.
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.detailGen == 1
	}, time.Second, time.Millisecond)

	_, err := m.Open(context.Background(), "M2")
	require.NoError(t, err)

	close(gate)
	<-done

	sel, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "M2", sel.MessageID.String())
}

func TestSelectFolder_StaleResultIsDiscarded(t *testing.T) {
	tests := []struct {
		name     string
		staleErr error
	}{
		{"stale success", nil},
		{"stale failure", &gateway.GatewayError{Kind: gateway.KindUpstreamFailure, Message: "Failed to list emails"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, gw, _ := loaded(t)
			gw.messages["F3"] = []gateway.MessageSummary{
				{MessageID: "M4", FolderID: "F3", Subject: "Archived", FromAddress: "carol@example.com"},
			}
			gate := make(chan struct{})
			gw.listGate["F2"] = gate
			if tt.staleErr != nil {
				gw.listErrs["F2"] = tt.staleErr
			}

			done := make(chan error, 1)
			go func() {
				done <- m.SelectFolder(context.Background(), "F2")
			}()

			// Load issued the first listing, the blocked one is the second.
			require.Eventually(t, func() bool {
				m.mu.Lock()
				defer m.mu.Unlock()
				return m.listGen == 2
			}, time.Second, time.Millisecond)

			require.NoError(t, m.SelectFolder(context.Background(), "F3"))

			close(gate)
			assert.NoError(t, <-done, "a superseded listing reports nothing")

			assert.Equal(t, "F3", m.CurrentFolder())
			assert.Equal(t, []string{"M4"}, ids(m.Messages()))
			assert.Empty(t, m.Notification())
		})
	}
}

func TestUnauthorizedClearsSession(t *testing.T) {
	m, gw, session := loaded(t)
	gw.getErr = &gateway.GatewayError{Kind: gateway.KindUnauthorized, NeedsRefresh: true}

	_, err := m.Open(context.Background(), "M1")
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, session.cleared)

	_, ok := m.Account()
	assert.False(t, ok)
	assert.Empty(t, m.Messages())
}

func TestUpstreamFailureBecomesNotification(t *testing.T) {
	m, gw, _ := loaded(t)
	gw.listErr = &gateway.GatewayError{Kind: gateway.KindUpstreamFailure, Message: "Failed to list emails"}

	err := m.Reload(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Failed to list emails", m.Notification())

	m.DismissNotification()
	assert.Empty(t, m.Notification())
}

func TestCompose(t *testing.T) {
	tests := []struct {
		name      string
		to        string
		subject   string
		wantValid bool
	}{
		{"valid", "bob@example.com", "Hello", true},
		{"empty recipient", "", "Hello", false},
		{"blank recipient", "   ", "Hello", false},
		{"empty subject", "bob@example.com", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, gw, _ := loaded(t)

			_, err := m.Compose(context.Background(), tt.to, tt.subject, "body")
			if !tt.wantValid {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				assert.Contains(t, err.Error(), "Please fill in recipient and subject")
				assert.Empty(t, gw.sent, "no network call on validation failure")
				return
			}
			require.NoError(t, err)
			require.Len(t, gw.sent, 1)
			assert.Equal(t, gateway.OutgoingMessage{
				FromAddress: "me@example.com",
				ToAddress:   "bob@example.com",
				Subject:     "Hello",
				Content:     "body",
			}, gw.sent[0])
		})
	}
}

func TestReply(t *testing.T) {
	m, gw, _ := loaded(t)

	_, err := m.Reply(context.Background(), "hi")
	assert.ErrorIs(t, err, ErrNoSelection)

	_, err = m.Open(context.Background(), "M2")
	require.NoError(t, err)

	_, err = m.Reply(context.Background(), "Sounds good")
	require.NoError(t, err)
	require.Len(t, gw.sent, 1)
	assert.Equal(t, "bob@example.com", gw.sent[0].ToAddress)
	assert.Equal(t, "Re: Lunch?", gw.sent[0].Subject)
}

func TestDeleteSelected(t *testing.T) {
	m, gw, _ := loaded(t)

	assert.ErrorIs(t, m.DeleteSelected(context.Background()), ErrNoSelection)

	_, err := m.Open(context.Background(), "M1")
	require.NoError(t, err)
	require.NoError(t, m.DeleteSelected(context.Background()))

	assert.Equal(t, []string{"M1"}, gw.deleted)
	_, ok := m.Selected()
	assert.False(t, ok)
	assert.Equal(t, []string{"M2"}, ids(m.Messages()))
}

func TestToggleTheme(t *testing.T) {
	m := New(newFakeGateway(), &fakeSession{})

	assert.Equal(t, ThemeLight, m.Theme())
	assert.Equal(t, ThemeDark, m.ToggleTheme())
	assert.Equal(t, ThemeMinimal, m.ToggleTheme())
	assert.Equal(t, ThemeLight, m.ToggleTheme())

	m = New(newFakeGateway(), &fakeSession{}, WithTheme(ThemeMinimal))
	assert.Equal(t, ThemeLight, m.ToggleTheme())
}

func TestParseTheme(t *testing.T) {
	tm, err := ParseTheme("")
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, tm)

	tm, err = ParseTheme("dark")
	require.NoError(t, err)
	assert.Equal(t, ThemeDark, tm)

	_, err = ParseTheme("neon")
	assert.Error(t, err)
}
