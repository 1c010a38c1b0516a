//go:build e2e

package e2e

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/cloo-solutions/docqa/internal/citation"
	"github.com/cloo-solutions/docqa/internal/ocr"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uploadData struct {
	DocumentID int64 `json:"document_id"`
	Chunks     int   `json:"chunks"`
	NeedsOCR   bool  `json:"needs_ocr"`
	Truncated  bool  `json:"truncated"`
}

type listData struct {
	Items []struct {
		ID        int64  `json:"id"`
		Filename  string `json:"filename"`
		OCRStatus string `json:"ocr_status"`
		HasFile   bool   `json:"has_file"`
	} `json:"items"`
	Cursor  string `json:"cursor"`
	HasMore bool   `json:"has_more"`
}

// TestE2E_DocumentLifecycle covers upload, listing, and raw file access
func TestE2E_DocumentLifecycle(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	var docID int64

	t.Run("upload text file", func(t *testing.T) {
		content := []byte("The quarterly revenue grew by twelve percent compared to last year.")
		resp, err := env.UploadDocument("report.txt", content, "")
		require.NoError(t, err)

		var data uploadData
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.Greater(t, data.DocumentID, int64(0))
		assert.Equal(t, 1, data.Chunks)
		assert.False(t, data.NeedsOCR)
		assert.False(t, data.Truncated)
		docID = data.DocumentID
	})

	t.Run("list shows the document", func(t *testing.T) {
		resp, err := env.Get("/docs/")
		require.NoError(t, err)

		var data listData
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		require.Len(t, data.Items, 1)
		assert.Equal(t, docID, data.Items[0].ID)
		assert.Equal(t, "report.txt", data.Items[0].Filename)
		assert.True(t, data.Items[0].HasFile)
		assert.False(t, data.HasMore)
	})

	t.Run("file URL serves original bytes", func(t *testing.T) {
		resp, err := env.Get(fmt.Sprintf("/docs/%d/file", docID))
		require.NoError(t, err)

		var data struct {
			URL string `json:"url"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		require.NotEmpty(t, data.URL)

		downloaded, err := env.DownloadFile(data.URL)
		require.NoError(t, err)
		assert.Contains(t, string(downloaded), "quarterly revenue")
	})

	t.Run("file URL for unknown document is 404", func(t *testing.T) {
		_, err := env.Get("/docs/424242/file")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}

// TestE2E_ChatWithCitations covers the retrieval-grounded chat flow and
// resolving cited sources back to stored evidence
func TestE2E_ChatWithCitations(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	t.Run("chat on empty index fails", func(t *testing.T) {
		_, err := env.Chat([]service.Message{{Role: "user", Content: "anything?"}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "400")
	})

	content := []byte("The onboarding checklist requires a signed agreement and a verified email address.")
	resp, err := env.UploadDocument("onboarding.txt", content, "")
	require.NoError(t, err)

	var doc uploadData
	require.NoError(t, json.Unmarshal(resp.Data, &doc))

	var ref struct {
		Tag      string
		DocID    int64
		Filename string
		Chunk    int
	}

	t.Run("chat streams answer with Sources block", func(t *testing.T) {
		full, err := env.Chat([]service.Message{{Role: "user", Content: "what does the onboarding checklist require?"}})
		require.NoError(t, err)

		parsed := citation.ParseAnswer(full)
		assert.Contains(t, parsed.Answer, "[S1]")
		require.Contains(t, parsed.Sources, "S1")

		s1 := parsed.Sources["S1"]
		assert.True(t, s1.HasDocID)
		assert.Equal(t, doc.DocumentID, s1.DocID)
		assert.Equal(t, "onboarding.txt", s1.Filename)
		ref.Tag = s1.Tag
		ref.DocID = s1.DocID
		ref.Filename = s1.Filename
		ref.Chunk = s1.Chunk
	})

	t.Run("cited source resolves to stored evidence", func(t *testing.T) {
		resp, err := env.Get(fmt.Sprintf("/source?docId=%d&chunk=%d", ref.DocID, ref.Chunk))
		require.NoError(t, err)

		var evidence struct {
			Filename   string `json:"filename"`
			ChunkIndex int    `json:"chunk_index"`
			Content    string `json:"content"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &evidence))
		assert.Equal(t, "onboarding.txt", evidence.Filename)
		assert.Equal(t, ref.Chunk, evidence.ChunkIndex)
		assert.Contains(t, evidence.Content, "signed agreement")
	})

	t.Run("filename-only lookup resolves to newest document", func(t *testing.T) {
		resp, err := env.Get(fmt.Sprintf("/source?file=%s&chunk=%d", ref.Filename, ref.Chunk))
		require.NoError(t, err)

		var evidence struct {
			Content string `json:"content"`
		}
		require.NoError(t, json.Unmarshal(resp.Data, &evidence))
		assert.Contains(t, evidence.Content, "signed agreement")
	})

	t.Run("unknown chunk is 404", func(t *testing.T) {
		_, err := env.Get(fmt.Sprintf("/source?docId=%d&chunk=99", ref.DocID))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})
}

// TestE2E_OCRFlow covers the scanned-PDF path: upload without text,
// start the OCR job, poll until the extracted text is indexed
func TestE2E_OCRFlow(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.OCRClient.Script("-scan.pdf", &ocr.JobResult{
		Status: ocr.JobStatusSucceeded,
		Text:   "Invoice total: three hundred dollars, due at the end of the month.",
	})
	env.OCRClient.Script("-broken.pdf", &ocr.JobResult{
		Status: ocr.JobStatusFailed,
	})

	t.Run("scanned upload needs OCR", func(t *testing.T) {
		resp, err := env.UploadDocument("scan.pdf", []byte("%PDF-1.4 scanned"), "")
		require.NoError(t, err)

		var doc uploadData
		require.NoError(t, json.Unmarshal(resp.Data, &doc))
		assert.True(t, doc.NeedsOCR)
		assert.Equal(t, 0, doc.Chunks)

		startResp, err := env.Post(fmt.Sprintf("/docs/%d/ocr/start", doc.DocumentID), nil)
		require.NoError(t, err)

		var started struct {
			JobID  string `json:"job_id"`
			Status string `json:"status"`
		}
		require.NoError(t, json.Unmarshal(startResp.Data, &started))
		assert.True(t, strings.HasPrefix(started.JobID, "e2e-job-"))
		assert.Equal(t, "RUNNING", started.Status)

		pollResp, err := env.Post(fmt.Sprintf("/docs/%d/ocr/poll", doc.DocumentID), nil)
		require.NoError(t, err)

		var polled struct {
			Status string `json:"status"`
			Chunks int    `json:"chunks"`
		}
		require.NoError(t, json.Unmarshal(pollResp.Data, &polled))
		assert.Equal(t, "SUCCEEDED", polled.Status)
		assert.Equal(t, 1, polled.Chunks)

		// OCR-indexed text is now retrievable evidence.
		srcResp, err := env.Get(fmt.Sprintf("/source?docId=%d&chunk=0", doc.DocumentID))
		require.NoError(t, err)

		var evidence struct {
			Content string `json:"content"`
		}
		require.NoError(t, json.Unmarshal(srcResp.Data, &evidence))
		assert.Contains(t, evidence.Content, "Invoice total")
	})

	t.Run("failed job is persisted on the document", func(t *testing.T) {
		resp, err := env.UploadDocument("broken.pdf", []byte("%PDF-1.4 garbage"), "")
		require.NoError(t, err)

		var doc uploadData
		require.NoError(t, json.Unmarshal(resp.Data, &doc))

		_, err = env.Post(fmt.Sprintf("/docs/%d/ocr/start", doc.DocumentID), nil)
		require.NoError(t, err)

		_, err = env.Post(fmt.Sprintf("/docs/%d/ocr/poll", doc.DocumentID), nil)
		require.Error(t, err)

		listResp, err := env.Get("/docs/")
		require.NoError(t, err)

		var data listData
		require.NoError(t, json.Unmarshal(listResp.Data, &data))
		for _, item := range data.Items {
			if item.ID == doc.DocumentID {
				assert.Equal(t, "FAILED", item.OCRStatus)
				return
			}
		}
		t.Fatalf("document %d not found in listing", doc.DocumentID)
	})

	t.Run("poll without started job conflicts", func(t *testing.T) {
		resp, err := env.UploadDocument("never.pdf", []byte("%PDF-1.4"), "")
		require.NoError(t, err)

		var doc uploadData
		require.NoError(t, json.Unmarshal(resp.Data, &doc))

		_, err = env.Post(fmt.Sprintf("/docs/%d/ocr/poll", doc.DocumentID), nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "409")
	})
}

// TestE2E_ExtractedTextUpload covers PDFs whose text arrives with the upload
func TestE2E_ExtractedTextUpload(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	resp, err := env.UploadDocument("digital.pdf", []byte("%PDF-1.4 has text layer"),
		"The policy covers water damage but excludes flooding.")
	require.NoError(t, err)

	var doc uploadData
	require.NoError(t, json.Unmarshal(resp.Data, &doc))
	assert.False(t, doc.NeedsOCR)
	assert.Equal(t, 1, doc.Chunks)

	srcResp, err := env.Get(fmt.Sprintf("/source?docId=%d&chunk=0", doc.DocumentID))
	require.NoError(t, err)

	var evidence struct {
		Content string `json:"content"`
	}
	require.NoError(t, json.Unmarshal(srcResp.Data, &evidence))
	assert.Contains(t, evidence.Content, "water damage")
}
