package knowledge

import (
	"strings"
	"unicode/utf8"
)

// Chunking bounds, in bytes. Chunks pack whole paragraphs up to ChunkSize;
// adjacent chunks share up to ChunkOverlap of trailing text so a fact split
// across a boundary still lands intact in one of them.
const (
	ChunkSize    = 1200
	ChunkOverlap = 200
)

// splitChunks splits text into chunks of at most size bytes, breaking at
// paragraph boundaries where possible. Paragraphs longer than size are
// split at word boundaries first, then mid-word only as a last resort.
func splitChunks(text string, size, overlap int) []string {
	paras := splitParagraphs(text)
	if len(paras) == 0 {
		return nil
	}

	var parts []string
	for _, p := range paras {
		if len(p) <= size {
			parts = append(parts, p)
			continue
		}
		parts = append(parts, splitWords(p, size)...)
	}

	var chunks []string
	var cur []string
	curLen := 0

	flush := func() {
		chunks = append(chunks, strings.Join(cur, "\n\n"))
		// Seed the next chunk with the trailing parts of this one, up to
		// the overlap budget.
		var keep []string
		keepLen := 0
		for i := len(cur) - 1; i >= 0; i-- {
			n := len(cur[i])
			if keepLen > 0 {
				n += 2
			}
			if keepLen+n > overlap {
				break
			}
			keep = append([]string{cur[i]}, keep...)
			keepLen += n
		}
		cur, curLen = keep, keepLen
	}

	for _, p := range parts {
		if curLen > 0 && curLen+2+len(p) > size {
			flush()
			// Drop the seeded overlap when it would push this part past
			// the size bound.
			if curLen > 0 && curLen+2+len(p) > size {
				cur, curLen = nil, 0
			}
		}
		if curLen > 0 {
			curLen += 2
		}
		cur = append(cur, p)
		curLen += len(p)
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, "\n\n"))
	}
	return chunks
}

// splitParagraphs splits text on blank lines, trimming each paragraph and
// dropping empty ones. Windows line endings are normalized first.
func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var paras []string
	for _, p := range strings.Split(text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// splitWords packs the words of an oversized paragraph into pieces of at
// most size bytes. A single word longer than size is cut at rune
// boundaries.
func splitWords(s string, size int) []string {
	var pieces []string
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			pieces = append(pieces, cur.String())
			cur.Reset()
		}
	}

	for _, w := range strings.Fields(s) {
		if len(w) > size {
			flush()
			for len(w) > size {
				head := cutRunes(w, size)
				pieces = append(pieces, head)
				w = w[len(head):]
			}
		}
		if cur.Len() > 0 && cur.Len()+1+len(w) > size {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	flush()
	return pieces
}

// cutRunes returns the longest prefix of s that is at most size bytes and
// ends on a rune boundary.
func cutRunes(s string, size int) string {
	if len(s) <= size {
		return s
	}
	cut := size
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if cut == 0 {
		// A single rune wider than size cannot happen with any sane size,
		// but never return an empty prefix.
		_, n := utf8.DecodeRuneInString(s)
		cut = n
	}
	return s[:cut]
}
