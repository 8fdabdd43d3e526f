package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aine1100/pixbay-backend/cmd/pixbay/internal/auth"
	"github.com/aine1100/pixbay-backend/cmd/pixbay/internal/output"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat commands",
	Long:  "Inspect conversations and message history.",
}

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List conversations",
	Long:  "List your conversations with their last message and unread count.",
	RunE:  runConversations,
}

var historyCmd = &cobra.Command{
	Use:   "history CONVERSATION_ID",
	Short: "Show message history",
	Long:  "Display one page of messages from a conversation, oldest first.",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistory,
}

var (
	chatPageFlag  int
	chatLimitFlag int
)

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.AddCommand(conversationsCmd)
	chatCmd.AddCommand(historyCmd)

	conversationsCmd.Flags().IntVar(&chatPageFlag, "page", 1, "page number")
	conversationsCmd.Flags().IntVar(&chatLimitFlag, "limit", 20, "items per page")
	historyCmd.Flags().IntVar(&chatPageFlag, "page", 1, "page number")
	historyCmd.Flags().IntVar(&chatLimitFlag, "limit", 20, "messages per page")
}

func runConversations(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	conversations, err := c.ListConversations(chatPageFlag, chatLimitFlag)
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(conversations)
	}

	if len(conversations) == 0 {
		output.Info("No conversations found")
		return nil
	}

	stored, _ := auth.Load()

	output.Header("Conversations")
	fmt.Println()

	rows := make([][]string, len(conversations))
	for i, conv := range conversations {
		other := conv.ParticipantA
		if stored != nil && other == stored.UserID {
			other = conv.ParticipantB
		}
		last := ""
		if conv.LastMessage != nil {
			last = *conv.LastMessage
		}
		unread := ""
		if conv.UnreadCount > 0 {
			unread = fmt.Sprintf("%d", conv.UnreadCount)
		}
		rows[i] = []string{
			shortID(conv.ID),
			other,
			truncate(last, 40),
			unread,
			shortDate(conv.LastMessageAt),
		}
	}

	output.Table([]string{"ID", "With", "Last Message", "Unread", "Updated"}, rows)
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	c, err := requireAuth()
	if err != nil {
		return nil
	}

	messages, err := c.GetMessages(args[0], chatPageFlag, chatLimitFlag)
	if err != nil {
		output.Error(err.Error())
		return nil
	}

	if getFormat() == "json" {
		return output.JSON(messages)
	}

	if len(messages) == 0 {
		output.Info("No messages found")
		return nil
	}

	stored, _ := auth.Load()

	// The API returns newest first, render oldest first.
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		sender := shortID(msg.SenderID)
		if stored != nil && msg.SenderID == stored.UserID {
			sender = "you"
		}
		body := msg.Content
		if msg.Type == "file" {
			body = "[file] " + msg.FileURL
		}
		fmt.Printf("%s %s  %s\n",
			output.MutedStyle.Render(shortDate(msg.SentAt)),
			output.HeaderStyle.Render(sender+":"),
			body,
		)
	}
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-1] + "…"
}
