package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailfront application
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mailfront",
		Short: "Webmail front end and API proxy for Zoho Mail",
		Long: `mailfront talks to Zoho Mail on behalf of a single user session.

It can run as:
  - An HTTP proxy that exchanges OAuth codes and relays mail operations (serve)
  - A terminal mail client (login, mail, logout)
  - An MCP (Model Context Protocol) server for AI assistants (mcp)`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Config file (default: ~/.config/mailfront/config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().String("log-format", "", "Log format: text or json")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newMailCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newGenerateDocsCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailfront version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
