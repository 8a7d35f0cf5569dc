package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// abbreviations that end in a period without ending a sentence.
var abbreviations = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "dr": true, "prof": true,
	"sr": true, "jr": true, "st": true,
	"i.e": true, "e.g": true, "etc": true, "vs": true, "cf": true,
	"inc": true, "ltd": true, "co": true, "corp": true,
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true,
	"jul": true, "aug": true, "sep": true, "sept": true, "oct": true,
	"nov": true, "dec": true,
	"no": true, "vol": true, "pp": true, "fig": true,
}

// nextChunkEnd returns the byte offset where the chunk starting at from
// should end. Sentences are accumulated until the chunk reaches the target
// size or the limit, whichever comes first. A chunk never extends past
// limit, so no utterance can cross a section boundary.
func nextChunkEnd(text string, from, limit, target int) int {
	pos := from
	for pos < limit {
		end := sentenceEnd(text, pos, limit)
		if end-from >= target {
			// Keep at least one full sentence per chunk; only stop
			// before this sentence when the chunk already has one.
			if pos == from {
				return end
			}
			return pos
		}
		pos = end
	}
	return limit
}

// sentenceEnd scans from the given offset for the end of the current
// sentence: terminal punctuation plus trailing quotes and whitespace.
// Returns limit when no terminator is found before it.
func sentenceEnd(text string, from, limit int) int {
	i := from
	for i < limit {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			i++
			continue
		}
		if c == '.' && !isRealSentenceEnd(text, from, i, limit) {
			i++
			continue
		}

		// Absorb runs of terminal punctuation and closing quotes.
		end := i + 1
		for end < limit {
			switch text[end] {
			case '.', '!', '?', '"', '\'', ')', ']':
				end++
				continue
			}
			break
		}
		// Absorb trailing whitespace so the next sentence starts clean.
		for end < limit {
			r, size := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(r) {
				break
			}
			end += size
		}
		return end
	}
	return limit
}

// isRealSentenceEnd reports whether the period at pos terminates a
// sentence, filtering out abbreviations, decimals, and ellipses.
func isRealSentenceEnd(text string, from, pos, limit int) bool {
	// Ellipsis.
	if pos+2 < limit && text[pos+1] == '.' && text[pos+2] == '.' {
		return false
	}
	if pos > from && pos+1 < limit {
		// Decimal number: digit on both sides.
		if isDigit(text[pos-1]) && isDigit(text[pos+1]) {
			return false
		}
	}

	// Word immediately before the period.
	wordStart := pos
	for wordStart > from {
		r, size := utf8.DecodeLastRuneInString(text[from:wordStart])
		if unicode.IsSpace(r) {
			break
		}
		wordStart -= size
	}
	word := strings.ToLower(text[wordStart:pos])
	if abbreviations[word] || abbreviations[strings.TrimSuffix(word, ".")] {
		return false
	}
	// Multi-dot tokens like "u.s" or "ph.d".
	if strings.Contains(word, ".") {
		return false
	}

	// End of the scannable range counts as a sentence end.
	if pos+1 >= limit {
		return true
	}
	// Otherwise require whitespace (possibly after closing quotes).
	next := pos + 1
	for next < limit {
		switch text[next] {
		case '"', '\'', ')', ']':
			next++
			continue
		}
		break
	}
	if next >= limit {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[next:])
	return unicode.IsSpace(r)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
