package service

import (
	"strings"
)

// ChunkConfig controls word-window chunking for document indexing.
type ChunkConfig struct {
	ChunkWords   int
	OverlapWords int
	MaxChunks    int
}

// DefaultChunkConfig provides the standard window: 220-word chunks
// overlapping by 40 words, at most 80 chunks per document.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkWords:   220,
		OverlapWords: 40,
		MaxChunks:    80,
	}
}

// ChunkWords slides a fixed word window across the text and returns the
// joined windows in order. All whitespace runs collapse to single
// spaces first, so identical input always yields identical chunks.
//
// The result is truncated to cfg.MaxChunks. This is a safety cap for
// very large documents, not an error: callers that care must check
// whether truncation happened (compare against WouldTruncate or the
// Reindex result's Truncated flag).
func ChunkWords(text string, cfg ChunkConfig) []string {
	if cfg.ChunkWords <= 0 {
		cfg = DefaultChunkConfig()
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := cfg.ChunkWords - cfg.OverlapWords
	if step < 1 {
		step = 1
	}

	chunks := make([]string, 0, len(words)/step+1)
	for i := 0; i < len(words); i += step {
		end := i + cfg.ChunkWords
		if end > len(words) {
			end = len(words)
		}
		chunk := strings.Join(words[i:end], " ")
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		// Once a window reaches the end of the text, every later window
		// would be fully contained in this one.
		if end == len(words) {
			break
		}
	}

	if cfg.MaxChunks > 0 && len(chunks) > cfg.MaxChunks {
		chunks = chunks[:cfg.MaxChunks]
	}

	return chunks
}

// WouldTruncate reports whether chunking the text would exceed the
// configured chunk cap.
func WouldTruncate(text string, cfg ChunkConfig) bool {
	if cfg.ChunkWords <= 0 {
		cfg = DefaultChunkConfig()
	}
	if cfg.MaxChunks <= 0 {
		return false
	}

	words := len(strings.Fields(text))
	if words <= cfg.ChunkWords {
		return false
	}

	step := cfg.ChunkWords - cfg.OverlapWords
	if step < 1 {
		step = 1
	}

	count := (words-cfg.ChunkWords+step-1)/step + 1
	return count > cfg.MaxChunks
}
