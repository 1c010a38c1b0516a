package domain

// Chunk is one overlapping word-window slice of a document's text, the
// unit of embedding and retrieval. Chunk indices for a document always
// form a contiguous range starting at zero; reindexing replaces the
// whole set, never individual rows.
type Chunk struct {
	DocumentID int64
	ChunkIndex int
	Content    string
	Embedding  []float32
}

// RankedChunk is a retrieval hit joined with its owning document,
// ordered nearest-first by the vector store.
type RankedChunk struct {
	DocumentID int64
	Filename   string
	ChunkIndex int
	Content    string
}

// SourceRef is a citation reference decoded from a generated answer's
// Sources block. DocID is absent (zero, HasDocID false) for the legacy
// textual format, in which case Filename is the fallback lookup key.
type SourceRef struct {
	Tag      string
	DocID    int64
	HasDocID bool
	Filename string
	Chunk    int
}

// Evidence is the stored chunk a citation tag resolves to.
type Evidence struct {
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
	Content    string `json:"content"`
}
