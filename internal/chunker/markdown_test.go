package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitMarkdownBreaksAtHeadings(t *testing.T) {
	md := "# Intro\n\nSome opening text.\n\n## Details\n\nMore text under details.\n\n## Wrap up\n\nClosing words."
	s := NewSplitter(1000, 0)

	chunks := s.SplitMarkdown(md)
	require.Len(t, chunks, 3)
	require.True(t, strings.HasPrefix(chunks[0], "# Intro"))
	require.True(t, strings.HasPrefix(chunks[1], "## Details"))
	require.True(t, strings.HasPrefix(chunks[2], "## Wrap up"))
}

func TestSplitMarkdownWithoutHeadingsFallsBack(t *testing.T) {
	md := "Just a plain paragraph.\n\nAnd another one."
	s := NewSplitter(1000, 0)
	require.Equal(t, s.Split(md), s.SplitMarkdown(md))
}

func TestSplitMarkdownLargeSectionIsRechunked(t *testing.T) {
	section := strings.Repeat("A sentence that fills space in the section. ", 60)
	md := "# Big\n\n" + section + "\n\n# Small\n\nTiny tail."
	s := NewSplitter(400, 0)

	chunks := s.SplitMarkdown(md)
	require.Greater(t, len(chunks), 2)
	for _, chunk := range chunks {
		require.NotEmpty(t, strings.TrimSpace(chunk))
	}
	require.True(t, strings.HasPrefix(chunks[0], "# Big"))
	last := chunks[len(chunks)-1]
	require.Contains(t, last, "Tiny tail.")
}
