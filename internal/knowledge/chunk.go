package knowledge

import (
	"strings"
	"unicode"
)

const codeFence = "```"

// Chunk splits text into pieces of at most size runes, carrying overlap runes
// of context from one piece into the next. Cuts prefer paragraph breaks, then
// line breaks, then sentence ends, then spaces, and avoid landing inside a
// fenced code block when an earlier break is available.
func Chunk(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutPoint(runes, start, end)
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			chunks = append(chunks, piece)
		}
		if end >= len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// cutPoint picks where the window [start, end) should end. It only searches
// the back 30% of the window so chunks stay close to the requested size.
func cutPoint(runes []rune, start, end int) int {
	floor := start + (end-start)*7/10
	window := string(runes[start:end])

	if fenceStart := openFence(window); fenceStart >= 0 {
		if cut := start + len([]rune(window[:fenceStart])); cut > start+(end-start)/3 {
			return cut
		}
	}

	for _, sep := range []string{"\n\n", "\n", ". ", "? ", "! "} {
		if idx := lastIndexRunes(runes, start, end, sep); idx >= floor {
			return idx + len([]rune(sep))
		}
	}
	for i := end - 1; i >= floor; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}

// openFence returns the byte offset of an unterminated code fence in window,
// or -1 when every fence is closed.
func openFence(window string) int {
	offset := -1
	open := false
	pos := 0
	for {
		idx := strings.Index(window[pos:], codeFence)
		if idx < 0 {
			break
		}
		if !open {
			offset = pos + idx
		}
		open = !open
		pos += idx + len(codeFence)
	}
	if !open {
		return -1
	}
	return offset
}

func lastIndexRunes(runes []rune, start, end int, sep string) int {
	target := []rune(sep)
	for i := end - len(target); i >= start; i-- {
		match := true
		for j, r := range target {
			if runes[i+j] != r {
				match = false
				break
			}
		}
		if match {
			return i
		}
	}
	return -1
}

// WordCount counts whitespace-separated words.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
