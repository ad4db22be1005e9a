package mail_tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/mailfront/internal/gateway"
	"github.com/teemow/mailfront/internal/instrumentation"
	"github.com/teemow/mailfront/internal/mailbox"
	"github.com/teemow/mailfront/internal/tools/batch"
	"github.com/teemow/mailfront/internal/tools/common"
)

const auditSource = "mcp"

// Deps are the collaborators of the mail tools.
type Deps struct {
	// Gateway refreshes the session on a provider 401. *gateway.SessionGateway implements it.
	Gateway mailbox.Gateway
	Metrics *instrumentation.Metrics
	Audit   *instrumentation.AuditLogger
	Logger  *slog.Logger
}

type handlers struct {
	deps Deps
}

// RegisterMailTools registers the mail tools with the MCP server.
func RegisterMailTools(s *mcpserver.MCPServer, deps Deps, readOnly bool) error {
	if deps.Gateway == nil {
		return errors.New("mail tools need a gateway")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	h := &handlers{deps: deps}
	instr := common.Instrumentation{Metrics: deps.Metrics, Logger: deps.Logger}

	add := func(tool mcp.Tool, handler common.ToolHandler) {
		s.AddTool(tool, mcpserver.ToolHandlerFunc(common.InstrumentedToolHandler(tool.Name, instr, handler)))
	}

	accountArg := mcp.WithString("accountId",
		mcp.Description("Account id (default: the first account of the session)"),
	)

	add(mcp.NewTool("mail_account_info",
		mcp.WithDescription("Show the mail accounts of the logged in user"),
	), h.accountInfo)

	add(mcp.NewTool("mail_list_folders",
		mcp.WithDescription("List the mail folders of an account"),
		accountArg,
	), h.listFolders)

	add(mcp.NewTool("mail_list_messages",
		mcp.WithDescription(fmt.Sprintf("List the latest %d messages of a folder", gateway.PageSize)),
		accountArg,
		mcp.WithString("folderId",
			mcp.Description("Folder id (default: the Inbox)"),
		),
		mcp.WithString("search",
			mcp.Description("Case-insensitive filter over subject, sender and summary"),
		),
	), h.listMessages)

	add(mcp.NewTool("mail_get_message",
		mcp.WithDescription("Get the content of a message as plain text"),
		accountArg,
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("Message id"),
		),
		mcp.WithString("folderId",
			mcp.Description("Folder id of the message (default: the Inbox)"),
		),
	), h.getMessage)

	if readOnly {
		return nil
	}

	add(mcp.NewTool("mail_send_message",
		mcp.WithDescription("Send a message from the account's primary address"),
		accountArg,
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient address"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Subject"),
		),
		mcp.WithString("body",
			mcp.Description("Message content (HTML allowed)"),
		),
	), h.sendMessage)

	add(mcp.NewTool("mail_delete_message",
		mcp.WithDescription("Delete one or more messages"),
		accountArg,
		mcp.WithString("messageIds",
			mcp.Required(),
			mcp.Description("Message ID (string), comma separated IDs or array of message IDs"),
		),
	), h.deleteMessage)

	return nil
}

// account returns the account named by the accountId argument, or the first one.
func (h *handlers) account(ctx context.Context, args map[string]any) (gateway.Account, error) {
	accounts, err := h.deps.Gateway.ListAccounts(ctx)
	if err != nil {
		return gateway.Account{}, err
	}
	if len(accounts.Data) == 0 {
		return gateway.Account{}, errors.New("no mail account found")
	}
	want := common.StringArg(args, "accountId")
	if want == "" {
		return accounts.Data[0], nil
	}
	for _, a := range accounts.Data {
		if a.AccountID.String() == want {
			return a, nil
		}
	}
	return gateway.Account{}, fmt.Errorf("account %s not found", want)
}

// folderID returns the folderId argument or the id of the Inbox.
func (h *handlers) folderID(ctx context.Context, args map[string]any, accountID string) (string, error) {
	if id := common.StringArg(args, "folderId"); id != "" {
		return id, nil
	}
	folders, err := h.deps.Gateway.ListFolders(ctx, accountID)
	if err != nil {
		return "", err
	}
	id := mailbox.InboxID(folders.Data)
	if id == "" {
		return "", errors.New("no folders found")
	}
	return id, nil
}

func (h *handlers) accountInfo(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	accounts, err := h.deps.Gateway.ListAccounts(ctx)
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(accounts.Data)
}

func (h *handlers) listFolders(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	account, err := h.account(ctx, request.GetArguments())
	if err != nil {
		return toolError(err), nil
	}
	folders, err := h.deps.Gateway.ListFolders(ctx, account.AccountID.String())
	if err != nil {
		return toolError(err), nil
	}
	return jsonResult(folders.Data)
}

func (h *handlers) listMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	account, err := h.account(ctx, args)
	if err != nil {
		return toolError(err), nil
	}
	folderID, err := h.folderID(ctx, args, account.AccountID.String())
	if err != nil {
		return toolError(err), nil
	}
	list, err := h.deps.Gateway.ListMessages(ctx, account.AccountID.String(), folderID)
	if err != nil {
		return toolError(err), nil
	}

	messages := list.Data
	if q := strings.ToLower(common.StringArg(args, "search")); q != "" {
		filtered := make([]gateway.MessageSummary, 0, len(messages))
		for _, m := range messages {
			if strings.Contains(strings.ToLower(m.Subject), q) ||
				strings.Contains(strings.ToLower(m.FromAddress), q) ||
				strings.Contains(strings.ToLower(m.Summary), q) {
				filtered = append(filtered, m)
			}
		}
		messages = filtered
	}
	return jsonResult(messages)
}

// messageView is the tool representation of an opened message.
type messageView struct {
	MessageID    string `json:"messageId"`
	FolderID     string `json:"folderId"`
	Subject      string `json:"subject"`
	FromAddress  string `json:"fromAddress"`
	ReceivedTime string `json:"receivedTime"`
	Content      string `json:"content"`
}

func (h *handlers) getMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	messageID, err := common.RequiredStringArg(args, "messageId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	account, err := h.account(ctx, args)
	if err != nil {
		return toolError(err), nil
	}
	folderID, err := h.folderID(ctx, args, account.AccountID.String())
	if err != nil {
		return toolError(err), nil
	}
	p, err := h.deps.Gateway.GetMessage(ctx, account.AccountID.String(), folderID, messageID)
	if err != nil {
		return toolError(err), nil
	}

	d := p.Data
	content := d.Content
	if strings.TrimSpace(content) == "" {
		content = d.Summary
	}
	return jsonResult(messageView{
		MessageID:    d.MessageID.String(),
		FolderID:     d.FolderID.String(),
		Subject:      mailbox.SubjectOrPlaceholder(d.Subject),
		FromAddress:  d.FromAddress,
		ReceivedTime: mailbox.FullTime(d.ReceivedTime.Time),
		Content:      mailbox.HTMLToText(content),
	})
}

func (h *handlers) sendMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	to := common.StringArg(args, "to")
	subject := common.StringArg(args, "subject")
	if to == "" || subject == "" {
		return mcp.NewToolResultError("Please fill in recipient and subject"), nil
	}
	account, err := h.account(ctx, args)
	if err != nil {
		return toolError(err), nil
	}

	event := instrumentation.NewAuditEvent(instrumentation.ActionSend, auditSource).
		WithAccount(account.AccountID.String()).
		WithRecipient(to).
		WithSpanContext(ctx)

	p, err := h.deps.Gateway.SendMessage(ctx, account.AccountID.String(), gateway.OutgoingMessage{
		FromAddress: account.PrimaryEmailAddress,
		ToAddress:   to,
		Subject:     subject,
		Content:     common.StringArg(args, "body"),
	})
	h.deps.Audit.Log(ctx, event.Complete(err))
	if err != nil {
		return toolError(err), nil
	}

	text := fmt.Sprintf("Message sent\nTo: %s\nSubject: %s", to, subject)
	if p.Data.MessageID != "" {
		text += "\nMessage ID: " + p.Data.MessageID.String()
	}
	return mcp.NewToolResultText(text), nil
}

func (h *handlers) deleteMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	messageIDs, err := batch.ParseIDs(args["messageIds"], "messageIds")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	account, err := h.account(ctx, args)
	if err != nil {
		return toolError(err), nil
	}
	accountID := account.AccountID.String()

	results := batch.Run(ctx, messageIDs, batch.DefaultConcurrency, func(ctx context.Context, messageID string) (string, error) {
		event := instrumentation.NewAuditEvent(instrumentation.ActionDelete, auditSource).
			WithAccount(accountID).
			WithMessage(messageID).
			WithSpanContext(ctx)

		_, err := h.deps.Gateway.DeleteMessage(ctx, accountID, messageID)
		h.deps.Audit.Log(ctx, event.Complete(err))
		if err != nil {
			return "", errors.New(toolErrorText(err))
		}
		return "deleted", nil
	})

	if len(results) == 1 {
		if results[0].Status != batch.StatusSuccess {
			return mcp.NewToolResultError(results[0].Error), nil
		}
		return mcp.NewToolResultText("Message " + messageIDs[0] + " deleted"), nil
	}
	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

// toolError turns an operation failure into a tool error result. An
// unauthorized error has already gone through one refresh attempt, so the
// session is gone.
func toolError(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(toolErrorText(err))
}

func toolErrorText(err error) string {
	var gwErr *gateway.GatewayError
	if errors.As(err, &gwErr) {
		switch gwErr.Kind {
		case gateway.KindUnauthorized:
			return "Session expired. Run 'mailfront login' to sign in again."
		case gateway.KindInvalidRequest, gateway.KindUpstreamFailure:
			return gwErr.Message
		}
	}
	return err.Error()
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
