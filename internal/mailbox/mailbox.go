package mailbox

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/teemow/mailfront/internal/gateway"
	"github.com/teemow/mailfront/internal/logging"
)

// Gateway is the mail surface a Mailbox needs. *gateway.SessionGateway
// implements it.
type Gateway interface {
	ListAccounts(ctx context.Context) (gateway.Payload[[]gateway.Account], error)
	ListFolders(ctx context.Context, accountID string) (gateway.Payload[[]gateway.Folder], error)
	ListMessages(ctx context.Context, accountID, folderID string) (gateway.Payload[[]gateway.MessageSummary], error)
	GetMessage(ctx context.Context, accountID, folderID, messageID string) (gateway.Payload[gateway.MessageDetail], error)
	SendMessage(ctx context.Context, accountID string, msg gateway.OutgoingMessage) (gateway.Payload[gateway.SentMessage], error)
	DeleteMessage(ctx context.Context, accountID, messageID string) (gateway.Payload[struct{}], error)
}

// Session is ended when the provider rejects it for good. *auth.Manager implements it.
type Session interface {
	Clear(ctx context.Context) error
}

const composeValidationMessage = "Please fill in recipient and subject"

// Mailbox is the view state of one session. It is safe for concurrent use.
type Mailbox struct {
	gw      Gateway
	session Session
	logger  *slog.Logger

	mu       sync.Mutex
	account  gateway.Account
	loaded   bool
	folders  []gateway.Folder
	folderID string
	messages []gateway.MessageSummary
	search   string
	selected *gateway.MessageDetail
	theme    Theme
	notice   string

	listGen   uint64
	detailGen uint64
}

// Option configures a Mailbox.
type Option func(*Mailbox)

// WithTheme sets the initial theme.
func WithTheme(t Theme) Option {
	return func(m *Mailbox) { m.theme = t }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Mailbox) { m.logger = logger }
}

// New creates an empty Mailbox. Call Load to populate it.
func New(gw Gateway, session Session, opts ...Option) *Mailbox {
	m := &Mailbox{
		gw:      gw,
		session: session,
		logger:  slog.Default(),
		theme:   ThemeLight,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(slog.String("component", "mailbox"))
	return m
}

// Load fetches the account (first one), its folders and the Inbox listing.
func (m *Mailbox) Load(ctx context.Context) error {
	accounts, err := m.gw.ListAccounts(ctx)
	if err != nil {
		return m.fail(ctx, err)
	}
	if len(accounts.Data) == 0 {
		return m.fail(ctx, &gateway.GatewayError{
			Kind:      gateway.KindUpstreamFailure,
			Operation: "accounts",
			Message:   "No mail account found",
		})
	}
	account := accounts.Data[0]

	folders, err := m.gw.ListFolders(ctx, account.AccountID.String())
	if err != nil {
		return m.fail(ctx, err)
	}

	m.mu.Lock()
	m.account = account
	m.loaded = true
	m.folders = folders.Data
	m.mu.Unlock()

	m.logger.Debug("mailbox loaded",
		logging.Account(account.AccountID.String()),
		logging.UserHash(account.PrimaryEmailAddress))

	inbox := InboxID(folders.Data)
	if inbox == "" {
		return m.fail(ctx, &gateway.GatewayError{
			Kind:      gateway.KindUpstreamFailure,
			Operation: "folders",
			Message:   "No folders found",
		})
	}
	return m.SelectFolder(ctx, inbox)
}

// InboxID returns the id of the Inbox folder, or of the first folder when
// there is no folder of type Inbox.
func InboxID(folders []gateway.Folder) string {
	for _, f := range folders {
		if f.FolderType == gateway.FolderInbox {
			return f.FolderID.String()
		}
	}
	if len(folders) > 0 {
		return folders[0].FolderID.String()
	}
	return ""
}

// SelectFolder fetches the listing of folderID and makes it current.
func (m *Mailbox) SelectFolder(ctx context.Context, folderID string) error {
	m.mu.Lock()
	if !m.loaded {
		m.mu.Unlock()
		return ErrNotLoaded
	}
	m.listGen++
	gen := m.listGen
	accountID := m.account.AccountID.String()
	m.mu.Unlock()

	list, err := m.gw.ListMessages(ctx, accountID, folderID)

	m.mu.Lock()
	if gen != m.listGen {
		// A newer listing was requested meanwhile.
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err != nil {
		return m.fail(ctx, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.listGen {
		return nil
	}
	m.folderID = folderID
	m.messages = list.Data
	if m.selected != nil && m.selected.FolderID.String() != folderID {
		m.selected = nil
		m.detailGen++
	}
	return nil
}

// Reload fetches the current folder again.
func (m *Mailbox) Reload(ctx context.Context) error {
	m.mu.Lock()
	folderID := m.folderID
	m.mu.Unlock()
	if folderID == "" {
		return m.Load(ctx)
	}
	return m.SelectFolder(ctx, folderID)
}

// SetSearch sets the list filter. Matching is a case-insensitive substring
// test over subject, sender and summary.
func (m *Mailbox) SetSearch(query string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.search = query
}

// Search returns the list filter.
func (m *Mailbox) Search() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.search
}

// Messages returns the current listing after the search filter, in provider order.
func (m *Mailbox) Messages() []gateway.MessageSummary {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(strings.TrimSpace(m.search))
	out := make([]gateway.MessageSummary, 0, len(m.messages))
	for _, msg := range m.messages {
		if q == "" ||
			strings.Contains(strings.ToLower(msg.Subject), q) ||
			strings.Contains(strings.ToLower(msg.FromAddress), q) ||
			strings.Contains(strings.ToLower(msg.Summary), q) {
			out = append(out, msg)
		}
	}
	return out
}

// Open fetches the content of messageID and selects it. When the fetch fails
// for any reason other than an expired session, the detail falls back to the
// listing's summary text and no error is returned.
func (m *Mailbox) Open(ctx context.Context, messageID string) (gateway.MessageDetail, error) {
	m.mu.Lock()
	if !m.loaded {
		m.mu.Unlock()
		return gateway.MessageDetail{}, ErrNotLoaded
	}
	summary, known := m.findLocked(messageID)
	folderID := m.folderID
	if known && summary.FolderID != "" {
		folderID = summary.FolderID.String()
	}
	if !known {
		summary = gateway.MessageSummary{MessageID: gateway.ID(messageID), FolderID: gateway.ID(folderID)}
	}
	m.detailGen++
	gen := m.detailGen
	accountID := m.account.AccountID.String()
	m.mu.Unlock()

	detail := gateway.MessageDetail{MessageSummary: summary, Content: summary.Summary}

	p, err := m.gw.GetMessage(ctx, accountID, folderID, messageID)
	switch {
	case gateway.IsUnauthorized(err):
		return gateway.MessageDetail{}, m.fail(ctx, err)
	case err != nil:
		m.logger.Info("message content unavailable, showing summary",
			logging.Message(messageID), logging.Err(err))
	default:
		detail = merge(summary, p.Data)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen == m.detailGen {
		m.selected = &detail
	}
	return detail, nil
}

// merge completes a fetched detail with the fields only the listing carries.
func merge(summary gateway.MessageSummary, fetched gateway.MessageDetail) gateway.MessageDetail {
	d := fetched
	if d.MessageID == "" {
		d.MessageID = summary.MessageID
	}
	if d.FolderID == "" {
		d.FolderID = summary.FolderID
	}
	if d.Subject == "" {
		d.Subject = summary.Subject
	}
	if d.FromAddress == "" {
		d.FromAddress = summary.FromAddress
	}
	if d.Summary == "" {
		d.Summary = summary.Summary
	}
	if d.ReceivedTime.IsZero() {
		d.ReceivedTime = summary.ReceivedTime
	}
	if strings.TrimSpace(d.Content) == "" {
		d.Content = d.Summary
	}
	return d
}

func (m *Mailbox) findLocked(messageID string) (gateway.MessageSummary, bool) {
	for _, msg := range m.messages {
		if msg.MessageID.String() == messageID {
			return msg, true
		}
	}
	return gateway.MessageSummary{}, false
}

// Selected returns the opened message.
func (m *Mailbox) Selected() (gateway.MessageDetail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.selected == nil {
		return gateway.MessageDetail{}, false
	}
	return *m.selected, true
}

// ClearSelection closes the opened message.
func (m *Mailbox) ClearSelection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.selected = nil
	m.detailGen++
}

// Compose validates and sends a new message from the account's primary address.
func (m *Mailbox) Compose(ctx context.Context, to, subject, body string) (gateway.SentMessage, error) {
	if strings.TrimSpace(to) == "" || strings.TrimSpace(subject) == "" {
		return gateway.SentMessage{}, &UiError{Kind: UiValidation, Message: composeValidationMessage}
	}

	m.mu.Lock()
	if !m.loaded {
		m.mu.Unlock()
		return gateway.SentMessage{}, ErrNotLoaded
	}
	account := m.account
	m.mu.Unlock()

	p, err := m.gw.SendMessage(ctx, account.AccountID.String(), gateway.OutgoingMessage{
		FromAddress: account.PrimaryEmailAddress,
		ToAddress:   strings.TrimSpace(to),
		Subject:     subject,
		Content:     body,
	})
	if err != nil {
		return gateway.SentMessage{}, m.fail(ctx, err)
	}
	return p.Data, nil
}

// Reply sends body to the sender of the opened message.
func (m *Mailbox) Reply(ctx context.Context, body string) (gateway.SentMessage, error) {
	selected, ok := m.Selected()
	if !ok {
		return gateway.SentMessage{}, ErrNoSelection
	}
	return m.Compose(ctx, selected.FromAddress, ReplySubject(selected.Subject), body)
}

// DeleteSelected deletes the opened message, clears the selection and
// reloads the listing.
func (m *Mailbox) DeleteSelected(ctx context.Context) error {
	selected, ok := m.Selected()
	if !ok {
		return ErrNoSelection
	}

	m.mu.Lock()
	accountID := m.account.AccountID.String()
	m.mu.Unlock()

	if _, err := m.gw.DeleteMessage(ctx, accountID, selected.MessageID.String()); err != nil {
		return m.fail(ctx, err)
	}

	m.ClearSelection()
	return m.Reload(ctx)
}

// ToggleTheme advances the theme and returns the new one.
func (m *Mailbox) ToggleTheme() Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.theme = m.theme.Next()
	return m.theme
}

// Theme returns the current theme.
func (m *Mailbox) Theme() Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.theme
}

// Account returns the loaded account.
func (m *Mailbox) Account() (gateway.Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.account, m.loaded
}

// Folders returns the folders of the loaded account.
func (m *Mailbox) Folders() []gateway.Folder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gateway.Folder(nil), m.folders...)
}

// CurrentFolder returns the id of the listed folder.
func (m *Mailbox) CurrentFolder() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.folderID
}

// Notification returns the pending upstream failure message, if any.
func (m *Mailbox) Notification() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.notice
}

// DismissNotification clears the pending notification.
func (m *Mailbox) DismissNotification() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notice = ""
}

// fail maps a gateway error onto the session. An unauthorized error ends the
// session; an upstream failure becomes the pending notification.
func (m *Mailbox) fail(ctx context.Context, err error) error {
	var gwErr *gateway.GatewayError
	if !errors.As(err, &gwErr) {
		return err
	}

	switch gwErr.Kind {
	case gateway.KindUnauthorized:
		m.logger.Warn("session rejected by provider, logging out", logging.Operation(gwErr.Operation))
		if clearErr := m.session.Clear(ctx); clearErr != nil {
			m.logger.Error("failed to clear session", logging.Err(clearErr))
		}
		m.mu.Lock()
		m.loaded = false
		m.messages = nil
		m.selected = nil
		m.mu.Unlock()
		return ErrSessionExpired
	case gateway.KindUpstreamFailure:
		m.mu.Lock()
		m.notice = gwErr.Message
		m.mu.Unlock()
	}
	return err
}
