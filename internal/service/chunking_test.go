package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func wordsText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(words, " ")
}

func TestChunkWords_ShortTextSingleChunk(t *testing.T) {
	cfg := DefaultChunkConfig()

	chunks := ChunkWords("alpha beta gamma", cfg)

	assert.Equal(t, []string{"alpha beta gamma"}, chunks)
}

func TestChunkWords_EmptyText(t *testing.T) {
	cfg := DefaultChunkConfig()

	assert.Nil(t, ChunkWords("", cfg))
	assert.Nil(t, ChunkWords("   \n\t  ", cfg))
}

func TestChunkWords_ExactWindowSize(t *testing.T) {
	cfg := DefaultChunkConfig()

	chunks := ChunkWords(wordsText(220), cfg)

	assert.Len(t, chunks, 1)
	assert.Equal(t, 220, len(strings.Fields(chunks[0])))
}

func TestChunkWords_WindowCount(t *testing.T) {
	cfg := DefaultChunkConfig()

	// With 220-word windows advancing 180 words, N words yield
	// ceil((N-220)/180)+1 chunks.
	cases := []struct {
		words  int
		chunks int
	}{
		{221, 2},
		{400, 2},
		{401, 3},
		{580, 3},
		{1000, 6},
	}

	for _, tc := range cases {
		chunks := ChunkWords(wordsText(tc.words), cfg)
		assert.Len(t, chunks, tc.chunks, "words=%d", tc.words)
	}
}

func TestChunkWords_OverlapBetweenWindows(t *testing.T) {
	cfg := DefaultChunkConfig()

	chunks := ChunkWords(wordsText(401), cfg)
	assert.Len(t, chunks, 3)

	first := strings.Fields(chunks[0])
	second := strings.Fields(chunks[1])

	// Second window starts 180 words in, so the last 40 words of the
	// first window open the second.
	assert.Equal(t, first[180:], second[:40])
	assert.Equal(t, "w180", second[0])
}

func TestChunkWords_Deterministic(t *testing.T) {
	cfg := DefaultChunkConfig()
	text := "alpha\tbeta   gamma\ndelta  epsilon"

	a := ChunkWords(text, cfg)
	b := ChunkWords("alpha beta gamma delta epsilon", cfg)

	assert.Equal(t, a, b)
}

func TestChunkWords_CapsAtMaxChunks(t *testing.T) {
	cfg := ChunkConfig{ChunkWords: 10, OverlapWords: 2, MaxChunks: 3}

	chunks := ChunkWords(wordsText(100), cfg)

	assert.Len(t, chunks, 3)
}

func TestWouldTruncate(t *testing.T) {
	cfg := ChunkConfig{ChunkWords: 10, OverlapWords: 2, MaxChunks: 3}

	// 3 windows cover up to 10 + 2*8 = 26 words.
	assert.False(t, WouldTruncate(wordsText(10), cfg))
	assert.False(t, WouldTruncate(wordsText(26), cfg))
	assert.True(t, WouldTruncate(wordsText(27), cfg))
}

func TestWouldTruncate_DefaultConfigLargeDoc(t *testing.T) {
	cfg := DefaultChunkConfig()

	// 80 windows cover up to 220 + 79*180 = 14440 words.
	assert.False(t, WouldTruncate(wordsText(14440), cfg))
	assert.True(t, WouldTruncate(wordsText(14441), cfg))
}

func TestCleanText_StripsNulAndWhitespace(t *testing.T) {
	assert.Equal(t, "hello world", CleanText("  hello\x00 world \n"))
	assert.Equal(t, "", CleanText("\x00\x00  "))
}
