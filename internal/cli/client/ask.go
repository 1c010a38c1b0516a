package client

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// ChatAPIMessage is one conversation turn sent to the chat endpoint.
type ChatAPIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatAPIRequest represents the chat API request.
type ChatAPIRequest struct {
	Messages []ChatAPIMessage `json:"messages"`
}

// AskCmd creates the ask command.
func AskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question...>",
		Short: "Ask a question grounded in the uploaded documents",
		Long:  "Streams a citation-grounded answer for the question. The answer ends with a Sources: block pointing at the supporting chunks.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(strings.Join(args, " "))
		},
	}
}

func runAsk(question string) error {
	api := NewAPIClient()

	req := ChatAPIRequest{
		Messages: []ChatAPIMessage{
			{Role: "user", Content: question},
		},
	}

	if err := api.PostStream("/chat", req, os.Stdout); err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	fmt.Println()
	return nil
}
