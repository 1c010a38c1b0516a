package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// DocItemResponse represents a single document in the list response.
type DocItemResponse struct {
	ID        int64  `json:"id"`
	Filename  string `json:"filename"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
	OCRStatus string `json:"ocr_status,omitempty"`
	OCRError  string `json:"ocr_error,omitempty"`
	HasFile   bool   `json:"has_file"`
	CreatedAt string `json:"created_at"`
}

// DocListAPIResponse represents the document list API response.
type DocListAPIResponse struct {
	Items   []DocItemResponse `json:"items"`
	Cursor  string            `json:"cursor,omitempty"`
	HasMore bool              `json:"has_more"`
}

// FileURLAPIResponse represents the file URL API response.
type FileURLAPIResponse struct {
	URL string `json:"url"`
}

// DocsCmd creates the docs command group.
func DocsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docs",
		Short: "Inspect uploaded documents",
	}

	cmd.AddCommand(docsListCmd())
	cmd.AddCommand(docsFileCmd())

	return cmd
}

func docsListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runDocsList(limit, cursor, outputJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func runDocsList(limit int, cursor string, outputJSON bool) error {
	api := NewAPIClient()

	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		query.Set("cursor", cursor)
	}
	path := "/docs/"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("list failed: %w", err)
	}

	var listResp DocListAPIResponse
	if err := json.Unmarshal(resp.Data, &listResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(listResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(listResp.Items) == 0 {
		fmt.Println("No documents found.")
		return nil
	}

	fmt.Printf("Found %d documents:\n\n", len(listResp.Items))
	for i, item := range listResp.Items {
		fmt.Printf("%d. %s (id %d)\n", i+1, item.Filename, item.ID)
		if item.MimeType != "" {
			fmt.Printf("   MIME: %s, Size: %d bytes\n", item.MimeType, item.SizeBytes)
		}
		if item.OCRStatus != "" {
			fmt.Printf("   OCR: %s\n", item.OCRStatus)
		}
		if item.OCRError != "" {
			fmt.Printf("   OCR error: %s\n", item.OCRError)
		}
		fmt.Printf("   Created: %s\n", item.CreatedAt)
		if i < len(listResp.Items)-1 {
			fmt.Println(strings.Repeat("-", 40))
		}
	}

	if listResp.HasMore && listResp.Cursor != "" {
		fmt.Printf("\nMore results available. Use --cursor %s\n", listResp.Cursor)
	}

	return nil
}

func docsFileCmd() *cobra.Command {
	var inline bool

	cmd := &cobra.Command{
		Use:   "file <id>",
		Short: "Get a signed URL for a document's raw file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id: %s", args[0])
			}
			return runDocsFile(id, inline)
		},
	}

	cmd.Flags().BoolVar(&inline, "inline", false, "Ask for an inline preview URL instead of a download")

	return cmd
}

func runDocsFile(id int64, inline bool) error {
	api := NewAPIClient()

	path := fmt.Sprintf("/docs/%d/file", id)
	if inline {
		path += "?inline=1"
	}

	resp, err := api.Get(path)
	if err != nil {
		return fmt.Errorf("file URL failed: %w", err)
	}

	var urlResp FileURLAPIResponse
	if err := json.Unmarshal(resp.Data, &urlResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	fmt.Println(urlResp.URL)
	return nil
}
