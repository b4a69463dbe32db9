package chunker

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// SplitMarkdown cuts markdown at heading boundaries first, then applies the
// plain-text budget to each section. The heading line stays at the top of its
// section so every chunk keeps its context.
func (s *Splitter) SplitMarkdown(markdown string) []string {
	source := []byte(markdown)
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var boundaries []int
	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		heading, ok := node.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			continue
		}
		start := lineStart(source, heading.Lines().At(0).Start)
		boundaries = append(boundaries, start)
	}
	if len(boundaries) == 0 {
		return s.Split(markdown)
	}

	var chunks []string
	prev := 0
	for _, b := range boundaries {
		if b > prev {
			chunks = append(chunks, s.Split(string(source[prev:b]))...)
		}
		prev = b
	}
	chunks = append(chunks, s.Split(string(source[prev:]))...)
	return chunks
}

// lineStart walks back from offset to the beginning of its line, so a heading
// boundary includes the "#" markers goldmark excludes from its segments.
func lineStart(source []byte, offset int) int {
	if offset > len(source) {
		offset = len(source)
	}
	idx := strings.LastIndexByte(string(source[:offset]), '\n')
	return idx + 1
}
