// Package chunker splits raw text into bounded-size chunks for embedding.
//
// The splitter works in three tiers: paragraphs are greedily packed into
// chunks up to MaxChunkLength; a paragraph that alone exceeds the bound is
// re-split at sentence boundaries and the sentences packed the same way; a
// single sentence that still exceeds the bound is emitted oversized rather
// than truncated, so no content is ever lost.
package chunker

import (
	"regexp"
	"strings"
)

// MaxChunkLength is the maximum length in characters of a generated chunk.
// Chunks above this size embed poorly and retrieve as noisy context.
const MaxChunkLength = 1000

// paragraphSep matches blank-line paragraph boundaries, tolerating stray
// spaces or tabs between the newlines.
var paragraphSep = regexp.MustCompile(`\n[ \t\r]*\n[\s]*`)

// sentenceEnd matches a sentence terminator followed by whitespace. Requiring
// the trailing whitespace keeps abbreviations like "U.S." intact; it is a
// heuristic and will still mis-split occasionally.
var sentenceEnd = regexp.MustCompile(`[.!?][ \t\r\n]+`)

// Split splits text into ordered, non-empty chunks of at most MaxChunkLength
// characters. Source order is preserved so callers can reconstruct context in
// the order it was written. Empty or whitespace-only input returns nil.
//
// A single sentence longer than MaxChunkLength is returned as one oversized
// chunk. That is a documented limitation, not an error.
func Split(text string) []string {
	var chunks []string
	var buf strings.Builder

	flush := func() {
		if s := strings.TrimSpace(buf.String()); s != "" {
			chunks = append(chunks, s)
		}
		buf.Reset()
	}

	for _, para := range paragraphs(text) {
		if len(para) > MaxChunkLength {
			// Oversized paragraph: flush what we have, fall back to sentences.
			flush()
			packSentences(para, &buf, flush)
			continue
		}
		if buf.Len() > 0 && buf.Len()+len("\n\n")+len(para) > MaxChunkLength {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteString("\n\n")
		}
		buf.WriteString(para)
	}
	flush()

	return chunks
}

// paragraphs splits text on blank-line boundaries, trimming each paragraph
// and dropping empty ones.
func paragraphs(text string) []string {
	var out []string
	for _, p := range paragraphSep.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// packSentences greedily accumulates the sentences of one oversized paragraph
// into buf, flushing whenever the next sentence would exceed the bound.
func packSentences(para string, buf *strings.Builder, flush func()) {
	for _, sent := range sentences(para) {
		if buf.Len() > 0 && buf.Len()+1+len(sent) > MaxChunkLength {
			flush()
		}
		if buf.Len() > 0 {
			buf.WriteByte(' ')
		}
		buf.WriteString(sent)
	}
	flush()
}

// sentences splits a paragraph after each terminator ('.', '!', '?') that is
// followed by whitespace. Go's regexp has no lookbehind, so boundaries are
// located with match indexes and the text sliced just past the terminator.
func sentences(para string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(para, -1) {
		// loc[0] is the terminator; keep it with the sentence.
		s := strings.TrimSpace(para[start : loc[0]+1])
		if s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(para[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
