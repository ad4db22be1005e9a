package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// ListAccounts returns the accounts of the token owner. Only the token is required.
func (c *Client) ListAccounts(ctx context.Context, accessToken string) (Payload[[]Account], error) {
	if accessToken == "" {
		return Payload[[]Account]{}, invalidRequest(opAccounts, "token")
	}
	raw, err := c.do(ctx, request{
		op:       opAccounts,
		method:   http.MethodGet,
		segments: []string{"accounts"},
		token:    accessToken,
	})
	if err != nil {
		return Payload[[]Account]{}, err
	}
	return decode[[]Account](opAccounts, raw)
}

// ListFolders returns the folders of an account in provider order.
func (c *Client) ListFolders(ctx context.Context, creds Credentials) (Payload[[]Folder], error) {
	if err := creds.validate(opFolders); err != nil {
		return Payload[[]Folder]{}, err
	}
	raw, err := c.do(ctx, request{
		op:        opFolders,
		method:    http.MethodGet,
		segments:  []string{"accounts", creds.AccountID, "folders"},
		token:     creds.AccessToken,
		accountID: creds.AccountID,
	})
	if err != nil {
		return Payload[[]Folder]{}, err
	}
	return decode[[]Folder](opFolders, raw)
}

// ListMessages returns the first page of a folder, newest first as ordered
// by the provider.
func (c *Client) ListMessages(ctx context.Context, creds Credentials, folderID string) (Payload[[]MessageSummary], error) {
	if err := creds.validate(opList); err != nil {
		return Payload[[]MessageSummary]{}, err
	}
	if folderID == "" {
		return Payload[[]MessageSummary]{}, invalidRequest(opList, "folderId")
	}
	raw, err := c.do(ctx, request{
		op:       opList,
		method:   http.MethodGet,
		segments: []string{"accounts", creds.AccountID, "messages", "view"},
		query: url.Values{
			"folderId": {folderID},
			"limit":    {strconv.Itoa(PageSize)},
			"start":    {"0"},
		},
		token:     creds.AccessToken,
		accountID: creds.AccountID,
	})
	if err != nil {
		return Payload[[]MessageSummary]{}, err
	}
	return decode[[]MessageSummary](opList, raw)
}

// GetMessage returns the content of one message. The returned detail always
// carries the requested message and folder ids.
func (c *Client) GetMessage(ctx context.Context, creds Credentials, folderID, messageID string) (Payload[MessageDetail], error) {
	if err := creds.validate(opGet); err != nil {
		return Payload[MessageDetail]{}, err
	}
	if folderID == "" {
		return Payload[MessageDetail]{}, invalidRequest(opGet, "folderId")
	}
	if messageID == "" {
		return Payload[MessageDetail]{}, invalidRequest(opGet, "messageId")
	}
	raw, err := c.do(ctx, request{
		op:        opGet,
		method:    http.MethodGet,
		segments:  []string{"accounts", creds.AccountID, "folders", folderID, "messages", messageID, "content"},
		token:     creds.AccessToken,
		accountID: creds.AccountID,
	})
	if err != nil {
		return Payload[MessageDetail]{}, err
	}

	p, err := decode[MessageDetail](opGet, raw)
	if err != nil {
		return p, err
	}
	if p.Data.MessageID == "" {
		p.Data.MessageID = ID(messageID)
	}
	if p.Data.FolderID == "" {
		p.Data.FolderID = ID(folderID)
	}
	return p, nil
}

// SendMessage asks the provider to send msg. Success means the provider
// accepted the request, not that it was delivered.
func (c *Client) SendMessage(ctx context.Context, creds Credentials, msg OutgoingMessage) (Payload[SentMessage], error) {
	if err := creds.validate(opSend); err != nil {
		return Payload[SentMessage]{}, err
	}
	switch {
	case strings.TrimSpace(msg.FromAddress) == "":
		return Payload[SentMessage]{}, invalidRequest(opSend, "fromAddress")
	case strings.TrimSpace(msg.ToAddress) == "":
		return Payload[SentMessage]{}, invalidRequest(opSend, "to")
	case strings.TrimSpace(msg.Subject) == "":
		return Payload[SentMessage]{}, invalidRequest(opSend, "subject")
	}
	raw, err := c.do(ctx, request{
		op:        opSend,
		method:    http.MethodPost,
		segments:  []string{"accounts", creds.AccountID, "messages"},
		body:      msg,
		token:     creds.AccessToken,
		accountID: creds.AccountID,
	})
	if err != nil {
		return Payload[SentMessage]{}, err
	}
	return decode[SentMessage](opSend, raw)
}

// DeleteMessage deletes a message. Deleting an already deleted message is
// relayed to the provider like any other call.
func (c *Client) DeleteMessage(ctx context.Context, creds Credentials, messageID string) (Payload[struct{}], error) {
	if err := creds.validate(opDelete); err != nil {
		return Payload[struct{}]{}, err
	}
	if messageID == "" {
		return Payload[struct{}]{}, invalidRequest(opDelete, "messageId")
	}
	raw, err := c.do(ctx, request{
		op:        opDelete,
		method:    http.MethodDelete,
		segments:  []string{"accounts", creds.AccountID, "messages", messageID},
		token:     creds.AccessToken,
		accountID: creds.AccountID,
	})
	if err != nil {
		return Payload[struct{}]{}, err
	}
	return Payload[struct{}]{Raw: raw}, nil
}

func (c Credentials) validate(op string) error {
	if c.AccessToken == "" {
		return invalidRequest(op, "token")
	}
	if c.AccountID == "" {
		return invalidRequest(op, "accountId")
	}
	return nil
}
