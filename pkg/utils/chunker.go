package utils

import (
	"strings"
	"unicode/utf8"
)

// SplitForSynthesis cuts long narration text into pieces that fit under the
// speech backend's per-request character ceiling. Paragraph boundaries are
// preferred, then sentence boundaries; a single sentence longer than the
// limit is hard-cut. Chunks concatenate back to the input modulo the joining
// whitespace, and every chunk stays within the limit.
func SplitForSynthesis(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 || len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
	}

	for _, paragraph := range strings.Split(text, "\n\n") {
		paragraph = strings.TrimSpace(paragraph)
		if paragraph == "" {
			continue
		}

		if len(paragraph) <= limit {
			if current.Len() > 0 && current.Len()+2+len(paragraph) > limit {
				flush()
			}
			if current.Len() > 0 {
				current.WriteString("\n\n")
			}
			current.WriteString(paragraph)
			continue
		}

		// Paragraph alone exceeds the limit: fall back to sentences.
		flush()
		for _, sentence := range splitSentences(paragraph) {
			if len(sentence) > limit {
				flush()
				chunks = append(chunks, hardSplit(sentence, limit)...)
				continue
			}
			if current.Len()+len(sentence) > limit {
				flush()
			}
			current.WriteString(sentence)
		}
		flush()
	}

	flush()
	return chunks
}

// splitSentences cuts a paragraph after terminator runs (".", "?!", "...")
// that are followed by whitespace or end of text. Each unit keeps its
// terminator and trailing whitespace, so concatenating the units reproduces
// the paragraph exactly. "3.5 million" and similar stay intact because no
// whitespace follows the dot.
func splitSentences(s string) []string {
	var units []string
	start := 0
	i := 0

	for i < len(s) {
		c := s[i]
		if c != '.' && c != '!' && c != '?' {
			i++
			continue
		}

		j := i + 1
		for j < len(s) && (s[j] == '.' || s[j] == '!' || s[j] == '?') {
			j++
		}
		for j < len(s) && (s[j] == '"' || s[j] == '\'' || s[j] == ')') {
			j++
		}

		k := j
		for k < len(s) && (s[k] == ' ' || s[k] == '\t' || s[k] == '\n' || s[k] == '\r') {
			k++
		}

		if k > j || j == len(s) {
			units = append(units, s[start:k])
			start = k
			i = k
			continue
		}
		i = j
	}

	if start < len(s) {
		units = append(units, s[start:])
	}
	return units
}

// hardSplit cuts at the limit, backed off to the previous rune boundary so a
// multi-byte character is never torn apart.
func hardSplit(s string, limit int) []string {
	var parts []string
	for len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		if cut == 0 {
			cut = limit
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	if len(s) > 0 {
		parts = append(parts, s)
	}
	return parts
}
