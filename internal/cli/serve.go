// Package cli wires the docqad serve command: configuration, database,
// storage, OCR, model clients, and the HTTP server.
package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloo-solutions/docqa/internal/api/handlers"
	"github.com/cloo-solutions/docqa/internal/config"
	"github.com/cloo-solutions/docqa/internal/database"
	"github.com/cloo-solutions/docqa/internal/jobs"
	"github.com/cloo-solutions/docqa/internal/ocr"
	"github.com/cloo-solutions/docqa/internal/openai"
	"github.com/cloo-solutions/docqa/internal/repository"
	"github.com/cloo-solutions/docqa/internal/server"
	"github.com/cloo-solutions/docqa/internal/service"
	"github.com/cloo-solutions/docqa/internal/storage"
	"github.com/cloo-solutions/docqa/internal/telemetry"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
)

// ServeCmd returns the serve command
func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		Long:  "Start the docqa API server on the specified port",
		RunE:  runServe,
	}

	cmd.Flags().StringP("port", "p", "8080", "Port to listen on")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize Sentry with tracing if SENTRY_DSN is set
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := os.Getenv("ENVIRONMENT")
		if environment == "" {
			environment = "development"
		}

		// Default to 10% sampling in production, 100% in development
		sampleRate := 0.1
		if environment == "development" {
			sampleRate = 1.0
		}

		shutdownTelemetry, err := telemetry.Init(telemetry.Config{
			DSN:              dsn,
			Environment:      environment,
			TracesSampleRate: sampleRate,
			Debug:            cfg.Debug,
		})
		if err != nil {
			log.Printf("telemetry init failed (continuing without tracing): %v", err)
		} else {
			defer shutdownTelemetry()
		}
	}

	portFlag, _ := cmd.Flags().GetString("port")
	if portFlag != "" && portFlag != "8080" {
		cfg.Port = portFlag
	}

	pool, err := database.NewPoolFromURL(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()
	log.Println("connected to database")

	// Run migrations unless --no-migrate flag is set
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if !noMigrate {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	docRepo := repository.NewDocumentRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)

	var storageClient service.StorageClientInterface = &noopStorage{}
	if cfg.HasS3() {
		s3Client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := s3Client.EnsureBucket(ctx); err != nil {
			return fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		storageClient = &s3StorageAdapter{client: s3Client}
	}

	var embeddingClient service.EmbeddingClient = &noopEmbedder{}
	var chatClient service.ChatClient = &noopChat{}
	if cfg.HasOpenAI() {
		client := openai.NewClientWithConfig(openai.Config{
			APIKey:              cfg.OpenAIAPIKey,
			EmbeddingModel:      openai.EmbeddingModel(cfg.EmbeddingModel),
			EmbeddingDimensions: cfg.EmbeddingDimensions,
			ChatModel:           cfg.ChatModel,
		})
		embeddingClient = client
		chatClient = &chatAdapter{client: client}
	}

	var ocrClient service.OCRClient = &noopOCR{}
	if cfg.HasS3() {
		client, err := ocr.NewClient(ctx, ocr.ClientConfig{
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
		})
		if err != nil {
			return fmt.Errorf("failed to create OCR client: %w", err)
		}
		ocrClient = client
	}

	chunkCfg := service.ChunkConfig{
		ChunkWords:   cfg.ChunkWords,
		OverlapWords: cfg.OverlapWords,
		MaxChunks:    cfg.MaxChunks,
	}

	ingestSvc := service.NewIngestService(docRepo, chunkRepo, embeddingClient, storageClient, cfg.S3Prefix, chunkCfg)
	documentSvc := service.NewDocumentService(docRepo, storageClient)
	ocrSvc := service.NewOCRService(docRepo, ocrClient, ingestSvc, ocr.PollPolicy{
		Interval:    cfg.OCRPollInterval,
		MaxAttempts: cfg.OCRPollMaxAttempts,
	})
	retrievalSvc := service.NewRetrievalService(chunkRepo, embeddingClient, cfg.RetrievalTopK)
	answerSvc := service.NewAnswerService(retrievalSvc, chatClient, docRepo, chunkRepo)

	var ocrWorker *jobs.Worker
	if cfg.OCRWorker {
		processor := jobs.NewOCRWorker(docRepo, ocrSvc)
		ocrWorker = jobs.NewWorker("OCR", processor, 10*time.Second)
		go ocrWorker.Start(ctx)
		log.Println("OCR worker started")
	}

	router := server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(ingestSvc, documentSvc),
		OCRHandler:      handlers.NewOCRHandler(ocrSvc),
		ChatHandler:     handlers.NewChatHandler(answerSvc),
		SourceHandler:   handlers.NewSourceHandler(answerSvc),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Printf("starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	if ocrWorker != nil {
		ocrWorker.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Println("server exited")
	return nil
}

// s3StorageAdapter bridges the storage client to the service-layer
// interface, converting the presign option types.
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

// chatAdapter bridges the OpenAI client to the service-layer chat
// interface.
type chatAdapter struct {
	client *openai.Client
}

func (a *chatAdapter) StreamChat(ctx context.Context, system string, messages []service.Message) (service.AnswerStream, error) {
	chatMessages := make([]openai.ChatMessage, len(messages))
	for i, m := range messages {
		chatMessages[i] = openai.ChatMessage{Role: m.Role, Content: m.Content}
	}
	return a.client.StreamChat(ctx, system, chatMessages)
}

type noopStorage struct{}

func (s *noopStorage) PutObject(ctx context.Context, key string, body []byte, contentType string) error {
	return fmt.Errorf("storage not configured: DOCQA_S3_ACCESS_KEY_ID required")
}

func (s *noopStorage) GenerateSignedURL(ctx context.Context, key string, opts service.SignedURLOptions) (string, error) {
	return "", fmt.Errorf("storage not configured: DOCQA_S3_ACCESS_KEY_ID required")
}

type noopEmbedder struct{}

func (e *noopEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("embedding provider not configured: DOCQA_OPENAI_API_KEY required")
}

func (e *noopEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, fmt.Errorf("embedding provider not configured: DOCQA_OPENAI_API_KEY required")
}

type noopChat struct{}

func (c *noopChat) StreamChat(ctx context.Context, system string, messages []service.Message) (service.AnswerStream, error) {
	return nil, fmt.Errorf("chat provider not configured: DOCQA_OPENAI_API_KEY required")
}

type noopOCR struct{}

func (c *noopOCR) StartJob(ctx context.Context, storageKey string) (string, error) {
	return "", fmt.Errorf("OCR not configured: DOCQA_S3_ACCESS_KEY_ID required")
}

func (c *noopOCR) GetJob(ctx context.Context, jobID string) (*ocr.JobResult, error) {
	return nil, fmt.Errorf("OCR not configured: DOCQA_S3_ACCESS_KEY_ID required")
}

func runMigrations(databaseURL string) error {
	// golang-migrate wants a database/sql handle
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database for migrations: %w", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr != nil && !errors.Is(verr, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", verr)
	}

	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		log.Println("migrations: database is up to date (no migrations applied)")
	case dirty:
		return fmt.Errorf("migration version %d is dirty - manual intervention required", version)
	case errors.Is(err, migrate.ErrNoChange):
		log.Printf("migrations: database is up to date (version %d)", version)
	default:
		log.Printf("migrations: applied successfully (version %d)", version)
	}

	return nil
}
