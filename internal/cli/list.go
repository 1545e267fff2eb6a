package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	listPage     int
	listPageSize int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List conversations",
	Long: `List conversations stored on the server, newest first.

Examples:
  zigi list
  zigi list --page 2 --page-size 10
  zigi list -v`,
	RunE: runList,
}

func init() {
	listCmd.Flags().IntVarP(&listPage, "page", "p", 1, "page number")
	listCmd.Flags().IntVarP(&listPageSize, "page-size", "n", 20, "conversations per page")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	resp, err := apiClient.ListConversations(ctx, listPage, listPageSize)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}

	if len(resp.Conversations) == 0 {
		fmt.Println("No conversations found.")
		return nil
	}

	fmt.Printf("Conversations (%d of %d):\n\n", len(resp.Conversations), resp.Total)
	for _, c := range resp.Conversations {
		fmt.Printf("- %s  %s (%d messages)\n", c.ID, c.Title, c.MessageCount)
		if verbose {
			if c.LastMessagePreview != "" {
				fmt.Printf("  %s\n", c.LastMessagePreview)
			}
			if c.LastMessageAt != nil {
				fmt.Printf("  Last activity: %s\n", c.LastMessageAt.Format("2006-01-02 15:04"))
			}
		}
	}

	if resp.Total > resp.Page*resp.PageSize {
		fmt.Printf("\nUse --page %d for more.\n", resp.Page+1)
	}
	return nil
}
