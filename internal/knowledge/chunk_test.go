package knowledge_test

import (
	"strings"
	"testing"

	"ingestor/internal/knowledge"
)

func TestChunkShortTextIsSingleChunk(t *testing.T) {
	chunks := knowledge.Chunk("  short note  ", 100, 10)
	if len(chunks) != 1 || chunks[0] != "short note" {
		t.Fatalf("unexpected chunks %q", chunks)
	}
	if got := knowledge.Chunk("   ", 100, 10); got != nil {
		t.Fatalf("expected nil for blank text, got %q", got)
	}
}

func TestChunkRespectsSizeAndOverlap(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta. ", 200)
	chunks := knowledge.Chunk(text, 300, 50)
	if len(chunks) < 10 {
		t.Fatalf("expected many chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if n := len([]rune(chunk)); n > 300 {
			t.Fatalf("chunk %d has %d runes", i, n)
		}
	}
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		tail := prev[len(prev)-20:]
		if !strings.Contains(chunks[i], strings.TrimSpace(tail)) {
			t.Fatalf("chunk %d does not overlap the previous chunk", i)
		}
	}
}

func TestChunkPrefersParagraphBreaks(t *testing.T) {
	para := strings.Repeat("word ", 30)
	text := para + "\n\n" + para + "\n\n" + para
	chunks := knowledge.Chunk(text, 200, 0)
	if len(chunks) < 2 {
		t.Fatalf("expected a split, got %d chunks", len(chunks))
	}
	if !strings.HasSuffix(chunks[0], "word") || strings.Contains(chunks[0], "\n\n") {
		t.Fatalf("first chunk should end at the paragraph break: %q", chunks[0])
	}
}

func TestChunkAvoidsSplittingCodeFence(t *testing.T) {
	intro := strings.Repeat("intro text ", 12)
	code := "```go\n" + strings.Repeat("fmt.Println(\"x\")\n", 6) + "```"
	text := intro + "\n" + code + "\nafter"
	chunks := knowledge.Chunk(text, 200, 0)
	if len(chunks) < 2 {
		t.Fatalf("expected a split, got %d chunks", len(chunks))
	}
	if strings.Contains(chunks[0], "```") {
		t.Fatalf("first chunk should stop before the fence: %q", chunks[0])
	}
	if !strings.HasPrefix(chunks[1], "```go") {
		t.Fatalf("second chunk should start with the fence: %q", chunks[1])
	}
}

func TestWordCount(t *testing.T) {
	if got := knowledge.WordCount(" one two\tthree\nfour "); got != 4 {
		t.Fatalf("expected 4 words, got %d", got)
	}
}
