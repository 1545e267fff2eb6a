package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zygotrix/zigi-go/internal/models"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export <conversation-id>",
	Short: "Export a conversation transcript",
	Long: `Export a conversation transcript for sharing or archival.

Formats:
  markdown  Markdown with metadata frontmatter (default)
  json      Full conversation document
  text      Plain text transcript

Examples:
  zigi export 6f1c9d2e
  zigi export 6f1c9d2e --format json --output chat.json
  zigi export 6f1c9d2e -F text`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "F", "markdown", "output format (markdown, json, text)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "write to file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	id := args[0]
	ctx := context.Background()

	conv, err := apiClient.GetConversation(ctx, id)
	if err != nil {
		return fmt.Errorf("get conversation: %w", err)
	}
	messages, err := apiClient.GetMessages(ctx, id)
	if err != nil {
		return fmt.Errorf("get messages: %w", err)
	}

	var content string
	switch exportFormat {
	case "markdown", "md":
		content = formatMarkdown(conv, messages)
	case "json":
		content, err = formatJSON(conv, messages)
		if err != nil {
			return err
		}
	case "text", "txt":
		content = formatText(conv, messages)
	default:
		return fmt.Errorf("unknown format %q", exportFormat)
	}

	if exportOutput == "" {
		fmt.Print(content)
		return nil
	}

	if err := os.WriteFile(exportOutput, []byte(content), 0644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	fmt.Printf("Exported %d messages to %s\n", len(messages), exportOutput)
	return nil
}

func formatMarkdown(conv *models.Conversation, messages []models.Message) string {
	var b strings.Builder

	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: %s\n", conv.ID)
	fmt.Fprintf(&b, "title: %s\n", conv.Title)
	fmt.Fprintf(&b, "messages: %d\n", len(messages))
	if conv.TotalTokens > 0 {
		fmt.Fprintf(&b, "total_tokens: %d\n", conv.TotalTokens)
	}
	if !conv.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "created_at: %s\n", conv.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	b.WriteString("---\n\n")

	fmt.Fprintf(&b, "# %s\n\n", conv.Title)
	for _, m := range messages {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", roleHeading(m.Role), m.Content)
		if m.Metadata != nil && m.Metadata.Model != "" {
			fmt.Fprintf(&b, "*%s", m.Metadata.Model)
			if m.Metadata.TotalTokens > 0 {
				fmt.Fprintf(&b, " • %d tokens", m.Metadata.TotalTokens)
			}
			b.WriteString("*\n\n")
		}
	}
	return b.String()
}

func formatJSON(conv *models.Conversation, messages []models.Message) (string, error) {
	doc := struct {
		Conversation models.Conversation `json:"conversation"`
		Messages     []models.Message    `json:"messages"`
	}{
		Conversation: *conv,
		Messages:     messages,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}
	return string(data) + "\n", nil
}

func formatText(conv *models.Conversation, messages []models.Message) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s\n%s\n\n", conv.Title, strings.Repeat("=", len(conv.Title)))
	for _, m := range messages {
		fmt.Fprintf(&b, "%s:\n%s\n\n", roleHeading(m.Role), m.Content)
	}
	return b.String()
}

func roleHeading(role models.Role) string {
	switch role {
	case models.RoleUser:
		return "You"
	case models.RoleAssistant:
		return "Assistant"
	default:
		return string(role)
	}
}
