package ingestion

import (
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// Chunker splits extracted policy text into clause-sized spans. Splitting
// happens on paragraph boundaries first and sentence boundaries within
// oversized paragraphs, so a chunk never cuts a sentence in half. Chunks
// below MinWords are merged forward to avoid degenerate fragments.
type Chunker struct {
	MaxWords int
	MinWords int
}

func NewChunker(maxWords, minWords int) *Chunker {
	if maxWords <= 0 {
		maxWords = 500
	}
	if minWords < 0 {
		minWords = 0
	}
	return &Chunker{MaxWords: maxWords, MinWords: minWords}
}

func (c *Chunker) Chunk(text string) []string {
	paragraphs := splitParagraphs(text)
	if len(paragraphs) == 0 {
		return nil
	}

	var pieces []string
	for _, para := range paragraphs {
		if wordCount(para) <= c.MaxWords {
			pieces = append(pieces, para)
			continue
		}
		pieces = append(pieces, c.splitLongParagraph(para)...)
	}

	return c.mergeShort(pieces)
}

// splitLongParagraph packs sentences into chunks up to MaxWords. A single
// sentence longer than the bound becomes its own chunk rather than being
// broken mid-sentence.
func (c *Chunker) splitLongParagraph(para string) []string {
	sentences := segmentSentences(para)

	var chunks []string
	var current strings.Builder
	currentWords := 0

	for _, sentence := range sentences {
		words := wordCount(sentence)
		if currentWords > 0 && currentWords+words > c.MaxWords {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
			currentWords = 0
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
		currentWords += words
	}

	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}

// mergeShort folds undersized chunks into their successor (or predecessor
// for a trailing fragment).
func (c *Chunker) mergeShort(pieces []string) []string {
	if c.MinWords == 0 || len(pieces) < 2 {
		return pieces
	}

	var merged []string
	carry := ""

	for _, piece := range pieces {
		if carry != "" {
			piece = carry + "\n" + piece
			carry = ""
		}
		if wordCount(piece) < c.MinWords {
			carry = piece
			continue
		}
		merged = append(merged, piece)
	}

	if carry != "" {
		if len(merged) > 0 {
			merged[len(merged)-1] = merged[len(merged)-1] + "\n" + carry
		} else {
			merged = append(merged, carry)
		}
	}

	return merged
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var paragraphs []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	return paragraphs
}

// segmentSentences uses prose's sentence segmenter, falling back to the raw
// text as a single sentence when segmentation yields nothing.
func segmentSentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return []string{text}
	}

	sentences := doc.Sentences()
	if len(sentences) == 0 {
		return []string{text}
	}

	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		trimmed := strings.TrimSpace(s.Text)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}
