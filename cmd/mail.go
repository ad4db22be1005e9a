package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/mailfront/internal/mailbox"
)

func newMailCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mail",
		Short: "Read and write mail from the terminal",
		Long: `Read and write mail of the logged in account.

Run 'mailfront login' first. An expired access token is refreshed once;
if that fails the session is removed and you have to log in again.`,
	}

	cmd.PersistentFlags().String("theme", "", "Display theme: light, dark or minimal")
	cmd.PersistentFlags().String("store", "", "Session store: file, keyring or memory")
	cmd.PersistentFlags().String("session-file", "", "Session file for the file store")
	cmd.PersistentFlags().String("api-url", "", "Zoho Mail API root (default: https://mail.zoho.com/api)")

	cmd.AddCommand(newMailInboxCmd())
	cmd.AddCommand(newMailFoldersCmd())
	cmd.AddCommand(newMailReadCmd())
	cmd.AddCommand(newMailSendCmd())
	cmd.AddCommand(newMailReplyCmd())
	cmd.AddCommand(newMailDeleteCmd())
	return cmd
}

// mailSession is a loaded mailbox for one command.
type mailSession struct {
	*app
	mb    *mailbox.Mailbox
	theme mailbox.Theme
}

// openMailbox loads the mailbox of the local session, optionally switching
// to folderID.
func openMailbox(cmd *cobra.Command, folderID string) (*mailSession, error) {
	a, err := setup(cmd, false)
	if err != nil {
		return nil, err
	}
	theme, err := mailbox.ParseTheme(a.cfg.Display.Theme)
	if err != nil {
		return nil, err
	}
	manager, err := a.session(auditSourceCLI)
	if err != nil {
		return nil, err
	}

	mb := mailbox.New(a.sessionGateway(manager), manager,
		mailbox.WithTheme(theme),
		mailbox.WithLogger(a.logger),
	)
	if err := mb.Load(cmd.Context()); err != nil {
		return nil, mailError(mb, err)
	}
	if folderID != "" && folderID != mb.CurrentFolder() {
		if err := mb.SelectFolder(cmd.Context(), folderID); err != nil {
			return nil, mailError(mb, err)
		}
	}
	return &mailSession{app: a, mb: mb, theme: theme}, nil
}

// mailError turns a mailbox failure into the message shown to the user.
func mailError(mb *mailbox.Mailbox, err error) error {
	switch {
	case errors.Is(err, mailbox.ErrSessionExpired):
		return fmt.Errorf("%w: run 'mailfront login'", err)
	case mailbox.IsValidation(err):
		return err
	}
	if notice := mb.Notification(); notice != "" {
		mb.DismissNotification()
		return errors.New(notice)
	}
	return err
}

func (s *mailSession) print(w io.Writer, text string) {
	if notice := s.mb.Notification(); notice != "" {
		fmt.Fprintln(w, mailbox.RenderNotification(s.theme, notice))
		s.mb.DismissNotification()
	}
	fmt.Fprintln(w, text)
}

func newMailInboxCmd() *cobra.Command {
	var folderID, search string

	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List the latest messages of a folder",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openMailbox(cmd, folderID)
			if err != nil {
				return err
			}
			defer s.shutdown(cmd.Context())

			s.mb.SetSearch(search)
			s.print(cmd.OutOrStdout(), mailbox.RenderList(s.theme, s.mb.Messages(), s.mb.Search(), time.Now()))
			return nil
		},
	}

	cmd.Flags().StringVar(&folderID, "folder", "", "Folder id (default: the Inbox)")
	cmd.Flags().StringVar(&search, "search", "", "Filter by subject, sender or summary")
	return cmd
}

func newMailFoldersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "folders",
		Short: "List the folders of the account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openMailbox(cmd, "")
			if err != nil {
				return err
			}
			defer s.shutdown(cmd.Context())

			s.print(cmd.OutOrStdout(), mailbox.RenderFolders(s.theme, s.mb.Folders(), s.mb.CurrentFolder()))
			return nil
		},
	}
}

func newMailReadCmd() *cobra.Command {
	var folderID string

	cmd := &cobra.Command{
		Use:   "read <message-id>",
		Short: "Show a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openMailbox(cmd, folderID)
			if err != nil {
				return err
			}
			defer s.shutdown(cmd.Context())

			detail, err := s.mb.Open(cmd.Context(), args[0])
			if err != nil {
				return mailError(s.mb, err)
			}
			s.print(cmd.OutOrStdout(), mailbox.RenderDetail(s.theme, detail))
			return nil
		},
	}

	cmd.Flags().StringVar(&folderID, "folder", "", "Folder id of the message (default: the Inbox)")
	return cmd
}

// readBody returns body, or standard input when body is "-".
func readBody(cmd *cobra.Command, body string) (string, error) {
	if body != "-" {
		return body, nil
	}
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return "", fmt.Errorf("failed to read message body: %w", err)
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func newMailSendCmd() *cobra.Command {
	var to, subject, body string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send a message",
		Long: `Send a message from the primary address of the account.

Use --body - to read the body from standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readBody(cmd, body)
			if err != nil {
				return err
			}
			s, err := openMailbox(cmd, "")
			if err != nil {
				return err
			}
			defer s.shutdown(cmd.Context())

			sent, err := s.mb.Compose(cmd.Context(), to, subject, content)
			if err != nil {
				return mailError(s.mb, err)
			}
			s.print(cmd.OutOrStdout(), sentMessage(to, sent.MessageID.String()))
			return nil
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "Recipient address")
	cmd.Flags().StringVar(&subject, "subject", "", "Subject")
	cmd.Flags().StringVar(&body, "body", "", "Message content, - reads standard input")
	return cmd
}

func newMailReplyCmd() *cobra.Command {
	var folderID, body string

	cmd := &cobra.Command{
		Use:   "reply <message-id>",
		Short: "Reply to the sender of a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := readBody(cmd, body)
			if err != nil {
				return err
			}
			s, err := openMailbox(cmd, folderID)
			if err != nil {
				return err
			}
			defer s.shutdown(cmd.Context())

			detail, err := s.mb.Open(cmd.Context(), args[0])
			if err != nil {
				return mailError(s.mb, err)
			}
			sent, err := s.mb.Reply(cmd.Context(), content)
			if err != nil {
				return mailError(s.mb, err)
			}
			s.print(cmd.OutOrStdout(), sentMessage(detail.FromAddress, sent.MessageID.String()))
			return nil
		},
	}

	cmd.Flags().StringVar(&folderID, "folder", "", "Folder id of the message (default: the Inbox)")
	cmd.Flags().StringVar(&body, "body", "", "Reply content, - reads standard input")
	return cmd
}

func newMailDeleteCmd() *cobra.Command {
	var folderID string
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <message-id>",
		Short: "Delete a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete message %s without --yes", args[0])
			}
			s, err := openMailbox(cmd, folderID)
			if err != nil {
				return err
			}
			defer s.shutdown(cmd.Context())

			if _, err := s.mb.Open(cmd.Context(), args[0]); err != nil {
				return mailError(s.mb, err)
			}
			if err := s.mb.DeleteSelected(cmd.Context()); err != nil {
				return mailError(s.mb, err)
			}
			s.print(cmd.OutOrStdout(), fmt.Sprintf("Deleted message %s.", args[0]))
			return nil
		},
	}

	cmd.Flags().StringVar(&folderID, "folder", "", "Folder id of the message (default: the Inbox)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm the deletion")
	return cmd
}

func sentMessage(to, messageID string) string {
	msg := "Message sent to " + to + "."
	if messageID != "" {
		msg += " Message ID: " + messageID
	}
	return msg
}
