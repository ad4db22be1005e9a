package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/teemow/mailfront/internal/gateway"
	"github.com/teemow/mailfront/internal/tools/mail_tools"
)

func newGenerateDocsCmd() *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "generate-docs",
		Short: "Generate markdown documentation for all MCP tools",
		Long: `Generate markdown documentation for all MCP tools, including the
write tools that need --yolo.

The output is written to stdout by default, or to a file with --output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerateDocs(outputFile)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")

	return cmd
}

func runGenerateDocs(outputFile string) error {
	tools, err := registeredTools()
	if err != nil {
		return err
	}
	markdown := generateToolsMarkdown(tools)

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(markdown), 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Documentation written to: %s\n", outputFile)
	} else {
		fmt.Print(markdown)
	}

	return nil
}

// registeredTools registers every mail tool on a throwaway server. The
// handlers are never called, so the gateway has no session.
func registeredTools() ([]mcp.Tool, error) {
	mcpSrv := newMCPServer()
	gw := gateway.NewSessionGateway(gateway.New(gateway.Config{}), nil)
	if err := mail_tools.RegisterMailTools(mcpSrv, mail_tools.Deps{Gateway: gw}, false); err != nil {
		return nil, fmt.Errorf("failed to register mail tools: %w", err)
	}

	serverTools := mcpSrv.ListTools()
	tools := make([]mcp.Tool, 0, len(serverTools))
	for _, serverTool := range serverTools {
		tools = append(tools, serverTool.Tool)
	}
	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})
	return tools, nil
}

// writeTools are only registered with --yolo.
var writeTools = map[string]bool{
	"mail_send_message":   true,
	"mail_delete_message": true,
}

func generateToolsMarkdown(tools []mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString("# MCP Tools Reference\n\n")
	sb.WriteString("This document lists the tools available when running `mailfront mcp`.\n\n")
	sb.WriteString("**Note:** This documentation is automatically generated from the tool definitions.\n\n")

	sb.WriteString("## Accounts and Folders\n\n")
	sb.WriteString("Every tool acts on the local session. `accountId` defaults to the first account ")
	sb.WriteString("and `folderId` defaults to the Inbox.\n\n")

	var read, write []mcp.Tool
	for _, tool := range tools {
		if writeTools[tool.Name] {
			write = append(write, tool)
		} else {
			read = append(read, tool)
		}
	}

	sb.WriteString("## Read Tools\n\n")
	for _, tool := range read {
		sb.WriteString(generateToolMarkdown(tool))
		sb.WriteString("\n")
	}

	if len(write) > 0 {
		sb.WriteString("## Write Tools\n\n")
		sb.WriteString("Registered only when the server runs with `--yolo`.\n\n")
		for _, tool := range write {
			sb.WriteString(generateToolMarkdown(tool))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func generateToolMarkdown(tool mcp.Tool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("### %s\n\n", tool.Name))

	if tool.Description != "" {
		sb.WriteString(fmt.Sprintf("%s\n\n", tool.Description))
	}

	if len(tool.InputSchema.Properties) > 0 {
		sb.WriteString("**Arguments:**\n")

		// Sort properties for consistent output
		propNames := make([]string, 0, len(tool.InputSchema.Properties))
		for name := range tool.InputSchema.Properties {
			propNames = append(propNames, name)
		}
		sort.Strings(propNames)

		for _, name := range propNames {
			propMap, ok := tool.InputSchema.Properties[name].(map[string]interface{})
			if !ok {
				continue
			}

			requiredStr := "optional"
			if contains(tool.InputSchema.Required, name) {
				requiredStr = "required"
			}

			sb.WriteString(fmt.Sprintf("- `%s` (%s): ", name, requiredStr))
			if desc, ok := propMap["description"].(string); ok {
				sb.WriteString(desc)
			} else {
				sb.WriteString(fmt.Sprintf("%s parameter", getPropertyType(propMap)))
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	return sb.String()
}

func getPropertyType(prop map[string]interface{}) string {
	if t, ok := prop["type"].(string); ok {
		return t
	}
	return "any"
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
