package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/docqa/internal/cli"
	"github.com/cloo-solutions/docqa/internal/cli/client"
	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "docqad",
		Short: "Docqa daemon and CLI",
		Long: `Docqa daemon for running the document QA API server, plus client
commands that talk to a running server.

Environment variables:
  DOCQA_DATABASE_URL   Postgres connection URL (required by serve)
  DOCQA_API_URL        API base URL for client commands (default: http://localhost:8080)`,
		Version: version,
	}

	rootCmd.PersistentFlags().Bool("output", false, "Output as JSON")

	rootCmd.AddCommand(cli.ServeCmd())
	rootCmd.AddCommand(client.UploadCmd())
	rootCmd.AddCommand(client.DocsCmd())
	rootCmd.AddCommand(client.AskCmd())
	rootCmd.AddCommand(client.OCRCmd())
	rootCmd.AddCommand(client.SourceCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
