package voice

import "strings"

// sentenceBoundaries mark positions where a buffered chunk reads as a
// complete thought for synthesis.
var sentenceBoundaries = []string{". ", "! ", "? ", ".\n", "!\n", "?\n"}

// DefaultMinChunkWords is the fallback emission threshold when no
// sentence boundary has arrived yet. Single-word chunks are too choppy
// for natural synthesis.
const DefaultMinChunkWords = 3

// Chunker buffers streamed text and emits speakable chunks: everything
// through a sentence boundary, or the whole buffer once it holds the
// minimum word count, whichever comes first.
type Chunker struct {
	buf      strings.Builder
	minWords int
}

// NewChunker creates a chunker. minWords <= 0 uses the default.
func NewChunker(minWords int) *Chunker {
	if minWords <= 0 {
		minWords = DefaultMinChunkWords
	}
	return &Chunker{minWords: minWords}
}

// Write appends streamed text and returns any chunks ready to speak, in
// order. The returned chunks may be empty.
func (c *Chunker) Write(text string) []string {
	c.buf.WriteString(text)

	var chunks []string
	for {
		chunk, ok := c.next()
		if !ok {
			break
		}
		chunks = append(chunks, chunk)
	}
	return chunks
}

// next cuts one ready chunk off the front of the buffer.
func (c *Chunker) next() (string, bool) {
	s := c.buf.String()

	// Earliest sentence boundary wins.
	cut := -1
	for _, b := range sentenceBoundaries {
		if i := strings.Index(s, b); i >= 0 && (cut < 0 || i+len(b) < cut) {
			cut = i + len(b)
		}
	}
	if cut >= 0 {
		c.reset(s[cut:])
		chunk := strings.TrimSpace(s[:cut])
		if chunk == "" {
			return "", false
		}
		return chunk, true
	}

	// No boundary yet: emit once enough words are buffered, holding the
	// last (possibly still-streaming) word back.
	words := strings.Fields(s)
	if len(words) > c.minWords {
		keep := words[len(words)-1]
		cutAt := strings.LastIndex(s, keep)
		chunk := strings.TrimSpace(s[:cutAt])
		if chunk == "" {
			return "", false
		}
		c.reset(s[cutAt:])
		return chunk, true
	}

	return "", false
}

// Flush returns whatever remains buffered, emptying the chunker.
func (c *Chunker) Flush() string {
	s := strings.TrimSpace(c.buf.String())
	c.buf.Reset()
	return s
}

func (c *Chunker) reset(remainder string) {
	c.buf.Reset()
	c.buf.WriteString(strings.TrimLeft(remainder, " "))
}
