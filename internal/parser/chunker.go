package parser

import (
	"strings"
	"unicode/utf8"
)

// ChunkText packs the newline-separated paragraphs of text into chunks of
// fewer than chunkSize characters. A paragraph is never split, so a single
// paragraph longer than chunkSize becomes its own oversized chunk.
func ChunkText(text string, chunkSize int) []string {
	var (
		chunks []string
		acc    strings.Builder
		accLen int
	)
	flush := func() {
		if s := strings.TrimSpace(acc.String()); s != "" {
			chunks = append(chunks, s)
		}
		acc.Reset()
		accLen = 0
	}

	for _, para := range strings.Split(text, "\n") {
		paraLen := utf8.RuneCountInString(para)
		if accLen+paraLen >= chunkSize {
			flush()
		}
		acc.WriteString(para)
		acc.WriteString(" ")
		accLen += paraLen + 1
	}
	flush()
	return chunks
}
