package gateway

import (
	"context"
	"log/slog"

	"github.com/teemow/mailfront/internal/logging"
)

// TokenSession supplies access tokens to a SessionGateway.
// *auth.Manager implements it.
type TokenSession interface {
	AccessToken(ctx context.Context) (string, error)
	// RefreshAccessToken returns a token that replaces rejected.
	RefreshAccessToken(ctx context.Context, rejected string) (string, error)
}

// SessionGateway runs gateway operations with the session's token. A provider
// 401 triggers one refresh and one retry of the same call; a second 401 or a
// failed refresh is returned to the caller.
type SessionGateway struct {
	client  *Client
	session TokenSession
	logger  *slog.Logger
}

// NewSessionGateway wraps client with session.
func NewSessionGateway(client *Client, session TokenSession) *SessionGateway {
	return &SessionGateway{
		client:  client,
		session: session,
		logger:  client.logger,
	}
}

// withRefresh runs call with the current token and, on KindUnauthorized,
// once more with a refreshed one.
func withRefresh[T any](ctx context.Context, s *SessionGateway, op string, call func(token string) (T, error)) (T, error) {
	var zero T

	token, err := s.session.AccessToken(ctx)
	if err != nil {
		return zero, err
	}

	result, err := call(token)
	if !IsUnauthorized(err) {
		return result, err
	}

	s.logger.Info("access token rejected, refreshing", logging.Operation(op))
	token, refreshErr := s.session.RefreshAccessToken(ctx, token)
	if refreshErr != nil {
		s.logger.Warn("refresh after 401 failed", logging.Operation(op), logging.Err(refreshErr))
		// The original 401 stays the reported error so callers can end the session.
		return zero, err
	}

	return call(token)
}

// ListAccounts returns the accounts of the session owner.
func (s *SessionGateway) ListAccounts(ctx context.Context) (Payload[[]Account], error) {
	return withRefresh(ctx, s, opAccounts, func(token string) (Payload[[]Account], error) {
		return s.client.ListAccounts(ctx, token)
	})
}

// ListFolders returns the folders of accountID.
func (s *SessionGateway) ListFolders(ctx context.Context, accountID string) (Payload[[]Folder], error) {
	return withRefresh(ctx, s, opFolders, func(token string) (Payload[[]Folder], error) {
		return s.client.ListFolders(ctx, Credentials{AccessToken: token, AccountID: accountID})
	})
}

// ListMessages returns the first page of folderID.
func (s *SessionGateway) ListMessages(ctx context.Context, accountID, folderID string) (Payload[[]MessageSummary], error) {
	return withRefresh(ctx, s, opList, func(token string) (Payload[[]MessageSummary], error) {
		return s.client.ListMessages(ctx, Credentials{AccessToken: token, AccountID: accountID}, folderID)
	})
}

// GetMessage returns one message with content.
func (s *SessionGateway) GetMessage(ctx context.Context, accountID, folderID, messageID string) (Payload[MessageDetail], error) {
	return withRefresh(ctx, s, opGet, func(token string) (Payload[MessageDetail], error) {
		return s.client.GetMessage(ctx, Credentials{AccessToken: token, AccountID: accountID}, folderID, messageID)
	})
}

// SendMessage sends msg from accountID.
func (s *SessionGateway) SendMessage(ctx context.Context, accountID string, msg OutgoingMessage) (Payload[SentMessage], error) {
	return withRefresh(ctx, s, opSend, func(token string) (Payload[SentMessage], error) {
		return s.client.SendMessage(ctx, Credentials{AccessToken: token, AccountID: accountID}, msg)
	})
}

// DeleteMessage deletes messageID.
func (s *SessionGateway) DeleteMessage(ctx context.Context, accountID, messageID string) (Payload[struct{}], error) {
	return withRefresh(ctx, s, opDelete, func(token string) (Payload[struct{}], error) {
		return s.client.DeleteMessage(ctx, Credentials{AccessToken: token, AccountID: accountID}, messageID)
	})
}
