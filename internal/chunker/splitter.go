package chunker

import (
	"regexp"
	"strings"
)

// Splitter cuts raw text into bounded-size segments. Paragraphs are packed
// greedily; paragraphs larger than the budget fall back to sentence packing.
// The same input always yields the same output.
type Splitter struct {
	chunkSize int
	overlap   int
}

// A sentence run ends after one or more terminators; the terminators stay with
// the sentence so no characters are lost across a split.
var sentenceRe = regexp.MustCompile(`[^.!?]*[.!?]+|[^.!?]+`)

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// Split returns the chunks of text in order. Whitespace-only input yields no
// chunks; input within the budget yields exactly one. A span with no paragraph
// break and no sentence terminator may exceed the budget, that is accepted
// rather than truncated.
func (s *Splitter) Split(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	if len(trimmed) <= s.chunkSize {
		return []string{trimmed}
	}

	chunks := s.pack(strings.Split(trimmed, "\n\n"), "\n\n", func(oversized string) []string {
		return s.packSentences(oversized)
	})

	// Greedy paragraph packing can still leave an over-budget chunk when the
	// overlap carry-over is counted in; re-split those at sentence level.
	final := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk) > s.chunkSize {
			final = append(final, s.packSentences(chunk)...)
			continue
		}
		final = append(final, chunk)
	}
	return final
}

func (s *Splitter) packSentences(text string) []string {
	var parts []string
	for _, raw := range sentenceRe.FindAllString(text, -1) {
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			continue
		}
		parts = append(parts, sentence)
	}
	return s.pack(parts, " ", nil)
}

// pack greedily accumulates parts into chunks of at most chunkSize joined
// characters. splitOversized, when set, handles a single part that exceeds the
// budget on its own; otherwise such a part becomes its own oversized chunk.
func (s *Splitter) pack(parts []string, sep string, splitOversized func(string) []string) []string {
	var chunks []string
	var buf []string
	fresh := 0

	bufLen := func() int {
		return joinedLen(buf, len(sep))
	}
	flush := func() {
		if fresh == 0 {
			buf = nil
			return
		}
		joined := strings.TrimSpace(strings.Join(buf, sep))
		if joined != "" {
			chunks = append(chunks, joined)
		}
		buf = s.carryTail(buf)
		fresh = 0
	}

	for _, part := range parts {
		if part == "" {
			continue
		}
		cost := len(part)
		if len(buf) > 0 {
			cost += len(sep)
		}
		if bufLen()+cost > s.chunkSize {
			flush()
			if splitOversized != nil && len(part) > s.chunkSize {
				chunks = append(chunks, splitOversized(part)...)
				buf = nil
				continue
			}
		}
		buf = append(buf, part)
		fresh++
	}
	flush()
	return chunks
}

// carryTail keeps the trailing parts of a flushed buffer within the overlap
// budget so the next chunk repeats them. With overlap 0 it clears the buffer.
func (s *Splitter) carryTail(parts []string) []string {
	if s.overlap <= 0 {
		return nil
	}
	total := 0
	start := len(parts)
	for i := len(parts) - 1; i >= 0; i-- {
		if total+len(parts[i]) > s.overlap {
			break
		}
		total += len(parts[i])
		start = i
	}
	if start == len(parts) {
		return nil
	}
	tail := make([]string, len(parts)-start)
	copy(tail, parts[start:])
	return tail
}

func joinedLen(parts []string, sepLen int) int {
	if len(parts) == 0 {
		return 0
	}
	total := sepLen * (len(parts) - 1)
	for _, p := range parts {
		total += len(p)
	}
	return total
}
