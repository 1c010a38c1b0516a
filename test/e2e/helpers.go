//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/ocr"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/server"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/cloo-solutions/docqa/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const embeddingDimensions = 1536

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	S3Client     *storage.S3Client
	OCRClient    *scriptedOCRClient
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and
// an in-process server. Embeddings and generation run against local
// deterministic fakes; everything else is real.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "docqa-e2e",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create S3 client: %v", err)
	}
	if err := s3Client.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	ocrClient := &scriptedOCRClient{jobs: make(map[string]*ocr.JobResult)}
	serverURL, serverCloser := startServer(t, pool, s3Client, ocrClient, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		S3Client:     s3Client,
		OCRClient:    ocrClient,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
	Code  string          `json:"code,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil)
}

// Post performs a POST request with a JSON body
func (e *E2ETestEnv) Post(path string, body interface{}) (*APIResponse, error) {
	return e.doRequest("POST", path, body)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}) (*APIResponse, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, e.ServerURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp)
}

// UploadDocument uploads a file via the multipart upload endpoint.
// extractedText, when non-empty, is forwarded as the extracted_text field.
func (e *E2ETestEnv) UploadDocument(filename string, content []byte, extractedText string) (*APIResponse, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if extractedText != "" {
		if err := writer.WriteField("extracted_text", extractedText); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest("POST", e.ServerURL+"/docs/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return decodeEnvelope(resp)
}

// Chat posts the conversation and returns the full streamed answer text.
func (e *E2ETestEnv) Chat(messages []service.Message) (string, error) {
	body, err := json.Marshal(map[string]interface{}{"messages": messages})
	if err != nil {
		return "", err
	}

	resp, err := e.HTTPClient.Post(e.ServerURL+"/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	full, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, full)
	}
	return string(full), nil
}

// DownloadFile downloads a file from a presigned URL
func (e *E2ETestEnv) DownloadFile(downloadURL string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(downloadURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func decodeEnvelope(resp *http.Response) (*APIResponse, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d [%s]: %s", resp.StatusCode, apiResp.Code, apiResp.Error)
	}
	return &apiResp, nil
}

// startServer wires real repositories and storage against the fake
// embedder, chat, and OCR clients, and serves on the given port.
func startServer(t *testing.T, pool *pgxpool.Pool, s3Client *storage.S3Client, ocrClient *scriptedOCRClient, port int) (string, func()) {
	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)

	embedder := &hashEmbedder{}
	ingestSvc := service.NewIngestService(docRepo, chunkRepo, embedder, &s3StorageAdapter{client: s3Client}, "uploads", service.ChunkConfig{})
	docSvc := service.NewDocumentService(docRepo, &s3StorageAdapter{client: s3Client})
	ocrSvc := service.NewOCRService(docRepo, ocrClient, ingestSvc, ocr.PollPolicy{Interval: 10 * time.Millisecond, MaxAttempts: 50})
	retrievalSvc := service.NewRetrievalService(chunkRepo, embedder, 8)
	answerSvc := service.NewAnswerService(retrievalSvc, &echoChatClient{}, docRepo, chunkRepo)

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc, docSvc),
		OCRHandler:      handlers.NewOCRHandler(ocrSvc),
		ChatHandler:     handlers.NewChatHandler(answerSvc),
		SourceHandler:   handlers.NewSourceHandler(answerSvc),
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// s3StorageAdapter adapts S3Client to StorageClientInterface
type s3StorageAdapter struct {
	client *storage.S3Client
}

func (a *s3StorageAdapter) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	return a.client.PutObject(ctx, key, body, contentType)
}

func (a *s3StorageAdapter) GenerateSignedURL(ctx context.Context, key string, opts service.SignedURLOptions) (string, error) {
	return a.client.GenerateSignedURL(ctx, key, storage.SignedURLOptions{
		Inline:      opts.Inline,
		Filename:    opts.Filename,
		ContentType: opts.ContentType,
	})
}

// hashEmbedder produces deterministic bag-of-words embeddings so that
// texts sharing vocabulary land near each other without an API call.
type hashEmbedder struct{}

func (e *hashEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	embedding := make([]float32, embeddingDimensions)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		embedding[h.Sum32()%embeddingDimensions] += 1
	}
	return embedding, nil
}

func (e *hashEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embedding, err := e.GenerateEmbedding(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = embedding
	}
	return embeddings, nil
}

// echoChatClient fakes generation: it answers citing S1 and copies the
// source index from the grounded system instruction verbatim, exactly
// as the instruction demands of the real model.
type echoChatClient struct{}

func (c *echoChatClient) StreamChat(ctx context.Context, system string, messages []service.Message) (service.AnswerStream, error) {
	var indexLines []string
	inIndex := false
	for _, line := range strings.Split(system, "\n") {
		switch {
		case strings.HasPrefix(line, "Sources:"):
			inIndex = true
		case inIndex && strings.HasPrefix(line, "- S"):
			indexLines = append(indexLines, line)
		case inIndex && line == "":
			inIndex = false
		}
	}

	full := "The answer is grounded in the indexed documents [S1].\n\nSources:\n" + strings.Join(indexLines, "\n")

	// Split mid-answer so the handler's streaming path is exercised.
	return &scriptedStream{fragments: []string{
		"The answer is grounded ",
		strings.TrimPrefix(full, "The answer is grounded "),
	}}, nil
}

type scriptedStream struct {
	fragments []string
	index     int
}

func (s *scriptedStream) Recv() (string, error) {
	if s.index >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.index]
	s.index++
	return f, nil
}

func (s *scriptedStream) Close() error { return nil }

// scriptedOCRClient fakes the external OCR backend. Each started job
// immediately reports the result scripted for its storage key.
type scriptedOCRClient struct {
	jobs    map[string]*ocr.JobResult
	nextID  int
	Results map[string]*ocr.JobResult // by storage key, set by tests
}

func (c *scriptedOCRClient) Script(storageKeySuffix string, result *ocr.JobResult) {
	if c.Results == nil {
		c.Results = make(map[string]*ocr.JobResult)
	}
	c.Results[storageKeySuffix] = result
}

func (c *scriptedOCRClient) StartJob(ctx context.Context, storageKey string) (string, error) {
	c.nextID++
	jobID := fmt.Sprintf("e2e-job-%d", c.nextID)

	result := &ocr.JobResult{Status: ocr.JobStatusFailed}
	for suffix, scripted := range c.Results {
		if strings.HasSuffix(storageKey, suffix) {
			result = scripted
			break
		}
	}
	c.jobs[jobID] = result
	return jobID, nil
}

func (c *scriptedOCRClient) GetJob(ctx context.Context, jobID string) (*ocr.JobResult, error) {
	result, ok := c.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("unknown job %s", jobID)
	}
	return result, nil
}
