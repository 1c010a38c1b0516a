package client

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// UploadAPIResponse represents the upload API response.
type UploadAPIResponse struct {
	DocumentID int64 `json:"document_id"`
	Chunks     int   `json:"chunks"`
	NeedsOCR   bool  `json:"needs_ocr"`
	Truncated  bool  `json:"truncated"`
}

// UploadCmd creates the upload command.
func UploadCmd() *cobra.Command {
	var (
		textFile string
		wait     bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload and index a document",
		Long:  "Uploads a file, stores the raw bytes, and indexes its text for retrieval. Scanned PDFs are queued for OCR.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runUpload(args[0], textFile, wait, outputJSON)
		},
	}

	cmd.Flags().StringVar(&textFile, "text", "", "File containing pre-extracted text to index instead of the raw content")
	cmd.Flags().BoolVar(&wait, "wait", false, "When OCR is needed, start it and poll until it finishes")

	return cmd
}

func runUpload(filePath, textFile string, wait, outputJSON bool) error {
	api := NewAPIClient()

	fields := map[string]string{}
	if textFile != "" {
		text, err := os.ReadFile(textFile)
		if err != nil {
			return fmt.Errorf("failed to read text file: %w", err)
		}
		fields["extracted_text"] = string(text)
	}

	resp, err := api.PostFile("/docs/upload", filePath, fields)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	var uploadResp UploadAPIResponse
	if err := json.Unmarshal(resp.Data, &uploadResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON && !wait {
		output, _ := json.MarshalIndent(uploadResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Uploaded document %d\n", uploadResp.DocumentID)
	if uploadResp.NeedsOCR {
		fmt.Println("No text could be extracted; OCR required.")
		if wait {
			return runOCRStartAndWait(api, uploadResp.DocumentID, outputJSON)
		}
		fmt.Printf("Run: docqad ocr start %d\n", uploadResp.DocumentID)
		return nil
	}

	fmt.Printf("Indexed %d chunks\n", uploadResp.Chunks)
	if uploadResp.Truncated {
		fmt.Println("Warning: document was longer than the chunk limit; tail content was not indexed.")
	}
	return nil
}
