package service

import (
	"context"
	"strings"

	"github.com/cloo-solutions/docqa/internal/citation"
	"github.com/cloo-solutions/docqa/internal/domain"
	"github.com/cloo-solutions/docqa/internal/telemetry"
)

// Message is one conversation turn as received from the caller.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnswerStream yields generated answer fragments until io.EOF. Only the
// shape of the concatenated text is contractual (answer + literal
// Sources block); fragment boundaries are not.
type AnswerStream interface {
	Recv() (string, error)
	Close() error
}

// ChatClient starts a grounded streaming generation.
type ChatClient interface {
	StreamChat(ctx context.Context, system string, messages []Message) (AnswerStream, error)
}

// EvidenceDocumentRepository resolves filenames for legacy citation refs.
type EvidenceDocumentRepository interface {
	GetLatestByFilename(ctx context.Context, filename string) (*domain.Document, error)
}

// EvidenceChunkRepository fetches the exact chunk a citation points at.
type EvidenceChunkRepository interface {
	GetEvidence(ctx context.Context, documentID int64, chunkIndex int) (*domain.Evidence, error)
}

// AnswerService turns a conversation into a streamed, citation-grounded
// answer, and resolves decoded citations back to stored evidence.
type AnswerService struct {
	retrieval *RetrievalService
	chat      ChatClient
	docRepo   EvidenceDocumentRepository
	chunkRepo EvidenceChunkRepository
}

// NewAnswerService creates a new AnswerService instance
func NewAnswerService(
	retrieval *RetrievalService,
	chat ChatClient,
	docRepo EvidenceDocumentRepository,
	chunkRepo EvidenceChunkRepository,
) *AnswerService {
	return &AnswerService{
		retrieval: retrieval,
		chat:      chat,
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
	}
}

// Ask retrieves evidence for the latest user question, encodes it into
// the grounded system instruction, and starts the generation stream.
func (s *AnswerService) Ask(ctx context.Context, messages []Message) (AnswerStream, error) {
	ctx, span := telemetry.StartSpan(ctx, "AnswerService.Ask", telemetry.SpanAttributes{
		Operation: "ask",
	})
	defer span.End()

	question := lastUserText(messages)

	ranked, err := s.retrieval.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	system := citation.BuildGroundedContext(ranked)

	stream, err := s.chat.StreamChat(ctx, system, messages)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeUpstream, "failed to start generation", err)
	}

	return stream, nil
}

// LookupEvidence resolves a decoded citation to the exact stored chunk.
// A reference without a document id falls back to the newest document
// carrying the filename, ties broken by highest id.
func (s *AnswerService) LookupEvidence(ctx context.Context, ref *domain.SourceRef) (*domain.Evidence, error) {
	docID := ref.DocID
	if !ref.HasDocID {
		if ref.Filename == "" {
			return nil, domain.ErrEvidenceNotFound
		}
		doc, err := s.docRepo.GetLatestByFilename(ctx, ref.Filename)
		if err != nil {
			return nil, err
		}
		docID = doc.ID
	}

	return s.chunkRepo.GetEvidence(ctx, docID, ref.Chunk)
}

func lastUserText(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			if text := strings.TrimSpace(messages[i].Content); text != "" {
				return text
			}
		}
	}
	return ""
}
