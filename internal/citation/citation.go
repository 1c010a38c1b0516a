// Package citation implements the contract binding generated answers to
// retrieved evidence. Encoding turns ranked chunks into a grounded
// system instruction whose source index the model must reproduce
// verbatim after a literal "Sources:" header; decoding parses that
// trailing block back into exact source references. The decoder never
// fails: unparseable lines are skipped, and an answer without a Sources
// block simply carries no resolvable citations.
package citation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cloo-solutions/docqa/internal/domain"
)

// SnippetLimit caps how much of each chunk is quoted into the prompt.
const SnippetLimit = 900

var (
	// Strict format, current encoder output: "- S1: doc_id=7 file=a.txt chunk=0"
	strictLine = regexp.MustCompile(`(?i)S(\d+)\s*:\s*doc_id=(\d+).*?chunk=(\d+)`)
	fileToken  = regexp.MustCompile(`(?i)file=(\S+)`)
	// Legacy format from older stored answers: "- S1: a.txt, 0"
	legacyLine = regexp.MustCompile(`(?i)S(\d+)\s*:\s*([^,]+),\s*(\d+)`)
)

// BuildGroundedContext renders the system instruction for answer
// generation: the rules, the verbatim source index (rank 1 is S1), and
// the snippeted sources body.
func BuildGroundedContext(ranked []*domain.RankedChunk) string {
	indexLines := make([]string, len(ranked))
	sourceBlocks := make([]string, len(ranked))

	for i, r := range ranked {
		tag := fmt.Sprintf("S%d", i+1)
		indexLines[i] = fmt.Sprintf("- %s: doc_id=%d file=%s chunk=%d", tag, r.DocumentID, r.Filename, r.ChunkIndex)

		snippet := truncateSnippet(r.Content)
		sourceBlocks[i] = fmt.Sprintf("[%s] doc_id=%d file=%s chunk=%d\n%s", tag, r.DocumentID, r.Filename, r.ChunkIndex, snippet)
	}

	return strings.TrimSpace(fmt.Sprintf(`
You answer ONLY using the SOURCES below.
If the answer is not in the sources, say: "I don't know based on the provided documents."
Cite sources inline like [S1] [S2].

After the answer, output this Sources list EXACTLY (copy verbatim):
Sources:
%s

SOURCES:
%s
`, strings.Join(indexLines, "\n"), strings.Join(sourceBlocks, "\n\n")))
}

// truncateSnippet caps the quoted chunk at SnippetLimit bytes without
// splitting a multi-byte rune, so the prompt stays valid UTF-8.
func truncateSnippet(s string) string {
	if len(s) <= SnippetLimit {
		return s
	}
	cut := SnippetLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// ParsedAnswer is a generated answer split from its citation block.
type ParsedAnswer struct {
	Answer  string
	Sources map[string]*domain.SourceRef
}

// ParseAnswer splits a full generated text on the last line beginning
// "Sources:" (case-insensitive) and decodes the citation lines after
// it. Without such a line, the whole text is the answer and no
// citations are resolvable.
func ParseAnswer(full string) *ParsedAnswer {
	answer, block := splitSourcesBlock(full)
	return &ParsedAnswer{
		Answer:  answer,
		Sources: parseSourceLines(block),
	}
}

// splitSourcesBlock finds the last line beginning with the header.
// Folding is done per line so multi-byte case pairs elsewhere in the
// text cannot shift the split point.
func splitSourcesBlock(full string) (answer, block string) {
	const header = "sources:"

	lines := strings.Split(full, "\n")
	last := -1
	for i, line := range lines {
		if len(line) >= len(header) && strings.EqualFold(line[:len(header)], header) {
			last = i
		}
	}
	if last == -1 {
		return full, ""
	}

	answer = strings.TrimRight(strings.Join(lines[:last], "\n"), " \t\r\n")
	block = strings.TrimSpace(strings.Join(lines[last:], "\n"))
	return answer, block
}

// parseSourceLines tries the strict pattern first, then the legacy one,
// per line. Lines matching neither are ignored; a third format is never
// guessed at.
func parseSourceLines(block string) map[string]*domain.SourceRef {
	refs := make(map[string]*domain.SourceRef)
	if block == "" {
		return refs
	}

	for _, line := range strings.Split(block, "\n") {
		if m := strictLine.FindStringSubmatch(line); m != nil {
			tag := "S" + m[1]
			docID, _ := strconv.ParseInt(m[2], 10, 64)
			chunk, _ := strconv.Atoi(m[3])
			ref := &domain.SourceRef{
				Tag:      tag,
				DocID:    docID,
				HasDocID: true,
				Chunk:    chunk,
			}
			if f := fileToken.FindStringSubmatch(line); f != nil {
				ref.Filename = f[1]
			}
			refs[tag] = ref
			continue
		}

		if m := legacyLine.FindStringSubmatch(line); m != nil {
			tag := "S" + m[1]
			chunk, _ := strconv.Atoi(m[3])
			refs[tag] = &domain.SourceRef{
				Tag:      tag,
				Filename: strings.TrimSpace(m[2]),
				Chunk:    chunk,
			}
		}
	}

	return refs
}
