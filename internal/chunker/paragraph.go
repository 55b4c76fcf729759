package chunker

import (
	"regexp"
	"strings"
)

// DefaultParagraphSize is the target piece length for prose, in runes.
const DefaultParagraphSize = 200

var blankLine = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

// unit is a piece of prose that is never split further by packing.
type unit struct {
	text      string
	paraStart bool
}

// SplitParagraphs splits prose into pieces of at most target runes.
// Paragraphs are separated by blank lines and have their whitespace
// collapsed. A paragraph over target is broken into sentences, a sentence
// over target into words, and a word over target is cut by runes. The
// resulting units are packed greedily so short paragraphs share a piece.
// A target <= 0 selects DefaultParagraphSize.
func SplitParagraphs(text string, target int) []string {
	if target <= 0 {
		target = DefaultParagraphSize
	}

	var units []unit
	for _, para := range paragraphs(text) {
		start := len(units)
		if runeLen(para) <= target {
			units = append(units, unit{text: para})
		} else {
			for _, sentence := range sentences(para) {
				if runeLen(sentence) <= target {
					units = append(units, unit{text: sentence})
					continue
				}
				for _, w := range packWords(sentence, target) {
					units = append(units, unit{text: w})
				}
			}
		}
		if start < len(units) {
			units[start].paraStart = true
		}
	}

	return pack(units, target)
}

// paragraphs splits on blank lines and collapses inner whitespace.
func paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range blankLine.Split(text, -1) {
		p = strings.Join(strings.Fields(p), " ")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sentences splits a whitespace-normalised paragraph after words ending in
// terminal punctuation, optionally followed by closing quotes or brackets.
func sentences(para string) []string {
	var out []string
	var current []string
	for _, word := range strings.Fields(para) {
		current = append(current, word)
		if endsSentence(word) {
			out = append(out, strings.Join(current, " "))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		out = append(out, strings.Join(current, " "))
	}
	return out
}

func endsSentence(word string) bool {
	w := strings.TrimRight(word, `"')]»”’`)
	if w == "" {
		return false
	}
	switch w[len(w)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// packWords packs the words of s into pieces of at most target runes.
// Words longer than target are cut into target-sized rune windows.
func packWords(s string, target int) []string {
	var out []string
	var b strings.Builder
	n := 0
	flush := func() {
		if n > 0 {
			out = append(out, b.String())
			b.Reset()
			n = 0
		}
	}
	for _, word := range strings.Fields(s) {
		wl := runeLen(word)
		if wl > target {
			flush()
			runes := []rune(word)
			for i := 0; i < len(runes); i += target {
				end := i + target
				if end > len(runes) {
					end = len(runes)
				}
				out = append(out, string(runes[i:end]))
			}
			continue
		}
		if n > 0 && n+1+wl > target {
			flush()
		}
		if n > 0 {
			b.WriteByte(' ')
			n++
		}
		b.WriteString(word)
		n += wl
	}
	flush()
	return out
}

// pack joins consecutive units while the result stays within target.
// Units that start a paragraph are joined with a newline, others with a space.
func pack(units []unit, target int) []string {
	pieces := []string{}
	var b strings.Builder
	n := 0
	for _, u := range units {
		ul := runeLen(u.text)
		if n > 0 && n+1+ul > target {
			pieces = append(pieces, b.String())
			b.Reset()
			n = 0
		}
		if n > 0 {
			if u.paraStart {
				b.WriteByte('\n')
			} else {
				b.WriteByte(' ')
			}
			n++
		}
		b.WriteString(u.text)
		n += ul
	}
	if n > 0 {
		pieces = append(pieces, b.String())
	}
	return pieces
}
