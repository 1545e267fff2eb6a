package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zygotrix/zigi-go/internal/cache"
)

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <conversation-id>",
	Short: "Delete a conversation",
	Long: `Delete a conversation from the server and drop its cached snapshot.

Examples:
  zigi delete 6f1c9d2e
  zigi delete 6f1c9d2e --force`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false, "skip confirmation")
}

func runDelete(cmd *cobra.Command, args []string) error {
	id := args[0]
	ctx := context.Background()

	if !deleteForce {
		fmt.Printf("Delete conversation %s? [y/N] ", id)
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if strings.ToLower(strings.TrimSpace(answer)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := apiClient.DeleteConversation(ctx, id); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	if store != nil {
		if err := store.Delete(ctx, cache.ConversationKey(id)); err != nil {
			logger.Warn("failed to drop cached snapshot", "conversation_id", id, "error", err)
		}
	}

	fmt.Printf("Deleted conversation %s.\n", id)
	return nil
}
