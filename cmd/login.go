package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/teemow/mailfront/internal/auth"
)

const auditSourceCLI = "cli"

func newLoginCmd() *cobra.Command {
	var code string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to Zoho Mail",
		Long: `Sign in to Zoho Mail and store the session locally.

Without --code, login prints the authorization URL. Open it, grant access
and copy the code parameter of the redirect. Then run:

  mailfront login --code <code>

The session is stored in the configured session store (file, keyring or
memory). The memory store does not outlive the command.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, false)
			if err != nil {
				return err
			}
			defer a.shutdown(cmd.Context())

			if code == "" {
				if err := a.cfg.RequireCredentials(); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Open this URL in a browser and grant access:")
				fmt.Fprintln(out)
				fmt.Fprintln(out, "  "+a.exchanger().AuthCodeURL(uuid.NewString()))
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Then run: mailfront login --code <code from %s>\n", a.cfg.Zoho.RedirectURI)
				return nil
			}

			manager, err := a.session(auditSourceCLI)
			if err != nil {
				return err
			}
			if _, err := manager.Login(cmd.Context(), code); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged in.")
			return nil
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code from the OAuth redirect")
	addCredentialFlags(cmd)
	cmd.Flags().String("store", "", "Session store: file, keyring or memory")
	cmd.Flags().String("session-file", "", "Session file for the file store")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, false)
			if err != nil {
				return err
			}
			defer a.shutdown(cmd.Context())

			store, err := a.store()
			if err != nil {
				return err
			}
			// Logging out needs no provider credentials.
			manager := auth.NewManager(nil, store,
				auth.WithAudit(a.provider.Audit(), auditSourceCLI),
				auth.WithLogger(a.logger),
			)
			if err := manager.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}

	cmd.Flags().String("store", "", "Session store: file, keyring or memory")
	cmd.Flags().String("session-file", "", "Session file for the file store")
	return cmd
}

// addCredentialFlags adds the provider application flags. They are bound to
// the configuration by config.Load.
func addCredentialFlags(cmd *cobra.Command) {
	cmd.Flags().String("client-id", "", "Zoho OAuth client id. Can also use ZOHO_CLIENT_ID env var.")
	cmd.Flags().String("client-secret", "", "Zoho OAuth client secret. Can also use ZOHO_CLIENT_SECRET env var.")
	cmd.Flags().String("redirect-uri", "", "OAuth redirect URI registered with Zoho. Can also use REDIRECT_URI env var.")
}
