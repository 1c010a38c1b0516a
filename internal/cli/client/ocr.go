package client

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

// StartOCRAPIResponse represents the OCR start API response.
type StartOCRAPIResponse struct {
	DocumentID int64  `json:"document_id"`
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
}

// PollOCRAPIResponse represents the OCR poll API response.
type PollOCRAPIResponse struct {
	DocumentID int64  `json:"document_id"`
	Status     string `json:"status"`
	Chunks     int    `json:"chunks,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
}

// OCRCmd creates the ocr command group.
func OCRCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ocr",
		Short: "Drive OCR for scanned documents",
	}

	cmd.AddCommand(ocrStartCmd())
	cmd.AddCommand(ocrPollCmd())

	return cmd
}

func ocrStartCmd() *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "start <id>",
		Short: "Start an OCR job for a stored document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id: %s", args[0])
			}
			outputJSON, _ := cmd.Flags().GetBool("output")

			api := NewAPIClient()
			if wait {
				return runOCRStartAndWait(api, id, outputJSON)
			}

			resp, err := api.Post(fmt.Sprintf("/docs/%d/ocr/start", id), nil)
			if err != nil {
				return fmt.Errorf("OCR start failed: %w", err)
			}

			var startResp StartOCRAPIResponse
			if err := json.Unmarshal(resp.Data, &startResp); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}

			if outputJSON {
				output, _ := json.MarshalIndent(startResp, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			fmt.Printf("OCR job %s started for document %d\n", startResp.JobID, id)
			fmt.Printf("Run: docqad ocr poll %d\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the job reaches a terminal state")

	return cmd
}

func ocrPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll <id>",
		Short: "Poll a document's OCR job once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid document id: %s", args[0])
			}
			outputJSON, _ := cmd.Flags().GetBool("output")

			api := NewAPIClient()
			pollResp, err := pollOCR(api, id)
			if err != nil {
				return err
			}

			if outputJSON {
				output, _ := json.MarshalIndent(pollResp, "", "  ")
				fmt.Println(string(output))
				return nil
			}

			printPollResult(pollResp)
			return nil
		},
	}
}

func pollOCR(api *APIClient, id int64) (*PollOCRAPIResponse, error) {
	resp, err := api.Post(fmt.Sprintf("/docs/%d/ocr/poll", id), nil)
	if err != nil {
		return nil, fmt.Errorf("OCR poll failed: %w", err)
	}

	var pollResp PollOCRAPIResponse
	if err := json.Unmarshal(resp.Data, &pollResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &pollResp, nil
}

func printPollResult(resp *PollOCRAPIResponse) {
	fmt.Printf("Document %d: %s\n", resp.DocumentID, resp.Status)
	if resp.Status == "SUCCEEDED" {
		fmt.Printf("Indexed %d chunks\n", resp.Chunks)
		if resp.Truncated {
			fmt.Println("Warning: document was longer than the chunk limit; tail content was not indexed.")
		}
	}
}

// runOCRStartAndWait starts a job and polls client-side until it
// reaches a terminal state. Mirrors the server's poll cadence.
func runOCRStartAndWait(api *APIClient, id int64, outputJSON bool) error {
	resp, err := api.Post(fmt.Sprintf("/docs/%d/ocr/start", id), nil)
	if err != nil {
		return fmt.Errorf("OCR start failed: %w", err)
	}

	var startResp StartOCRAPIResponse
	if err := json.Unmarshal(resp.Data, &startResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	fmt.Printf("OCR job %s started for document %d, waiting...\n", startResp.JobID, id)

	const maxAttempts = 200
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(2500 * time.Millisecond)
		}

		pollResp, err := pollOCR(api, id)
		if err != nil {
			return err
		}
		if pollResp.Status == "RUNNING" {
			continue
		}

		if outputJSON {
			output, _ := json.MarshalIndent(pollResp, "", "  ")
			fmt.Println(string(output))
			return nil
		}
		printPollResult(pollResp)
		return nil
	}

	return fmt.Errorf("timed out waiting for OCR job, the job may still complete")
}
