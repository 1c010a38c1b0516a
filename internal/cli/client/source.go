package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

// SourceAPIResponse represents the source lookup API response.
type SourceAPIResponse struct {
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}

// SourceCmd creates the source command.
func SourceCmd() *cobra.Command {
	var (
		docID int64
		file  string
	)

	cmd := &cobra.Command{
		Use:   "source <chunk>",
		Short: "Fetch the exact chunk a citation points at",
		Long:  "Resolves a citation reference (doc id or filename plus chunk index) to the stored chunk text.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chunk, err := strconv.Atoi(args[0])
			if err != nil || chunk < 0 {
				return fmt.Errorf("invalid chunk index: %s", args[0])
			}
			outputJSON, _ := cmd.Flags().GetBool("output")
			return runSource(docID, file, chunk, outputJSON)
		},
	}

	cmd.Flags().Int64Var(&docID, "doc", 0, "Document id from the citation")
	cmd.Flags().StringVar(&file, "file", "", "Filename from the citation (newest matching document wins)")

	return cmd
}

func runSource(docID int64, file string, chunk int, outputJSON bool) error {
	api := NewAPIClient()

	query := url.Values{}
	query.Set("chunk", strconv.Itoa(chunk))
	if docID > 0 {
		query.Set("docId", strconv.FormatInt(docID, 10))
	}
	if file != "" {
		query.Set("file", file)
	}

	resp, err := api.Get("/source?" + query.Encode())
	if err != nil {
		return fmt.Errorf("source lookup failed: %w", err)
	}

	var sourceResp SourceAPIResponse
	if err := json.Unmarshal(resp.Data, &sourceResp); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	if outputJSON {
		output, _ := json.MarshalIndent(sourceResp, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("%s, chunk %d:\n\n%s\n", sourceResp.Filename, sourceResp.ChunkIndex, sourceResp.Content)
	return nil
}
