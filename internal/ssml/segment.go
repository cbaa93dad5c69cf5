package ssml

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// segKind classifies a piece of the intermediate document.
type segKind int

const (
	segText          segKind = iota // literal text, still subject to rewriting
	segMarkup                       // emitted markup, never rewritten again
	segSentenceBreak                // pause inserted at a sentence boundary
	segBreak                        // any other pause
)

// segment is one element of the intermediate document. Passes only rewrite
// segText segments, which keeps markup produced by an earlier pass out of
// reach of later patterns.
type segment struct {
	kind segKind
	text string
}

func literal(s string) segment { return segment{kind: segText, text: s} }
func markup(s string) segment  { return segment{kind: segMarkup, text: s} }

func (s segment) isBreak() bool { return s.kind == segSentenceBreak || s.kind == segBreak }

// matchFunc decides how a single match inside a literal segment is replaced.
// src is the whole literal segment and loc the submatch index pairs. Returning
// ok=false leaves the match untouched.
type matchFunc func(src string, loc []int) (repl []segment, ok bool)

// rewrite applies fn to every match of re inside the literal segments of
// doc. Matches are processed left to right without backtracking.
func rewrite(doc []segment, re *regexp.Regexp, fn matchFunc) []segment {
	if re == nil {
		return doc
	}
	out := make([]segment, 0, len(doc))
	for _, seg := range doc {
		if seg.kind != segText {
			out = append(out, seg)
			continue
		}
		src := seg.text
		last := 0
		for _, loc := range re.FindAllStringSubmatchIndex(src, -1) {
			repl, ok := fn(src, loc)
			if !ok {
				continue
			}
			if loc[0] > last {
				out = append(out, literal(src[last:loc[0]]))
			}
			out = append(out, repl...)
			last = loc[1]
		}
		if last < len(src) {
			out = append(out, literal(src[last:]))
		}
	}
	return compact(out)
}

// compact merges adjacent literal segments and drops empty ones so the next
// pass sees contiguous text.
func compact(doc []segment) []segment {
	out := doc[:0]
	for _, seg := range doc {
		if seg.kind == segText {
			if seg.text == "" {
				continue
			}
			if n := len(out); n > 0 && out[n-1].kind == segText {
				out[n-1].text += seg.text
				continue
			}
		}
		out = append(out, seg)
	}
	return out
}

// render serializes the document, escaping literal text.
func render(doc []segment) string {
	var b strings.Builder
	for _, seg := range doc {
		if seg.kind == segText {
			b.WriteString(escapeText(seg.text))
			continue
		}
		b.WriteString(seg.text)
	}
	return b.String()
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func escapeText(s string) string { return textEscaper.Replace(s) }

var attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func escapeAttr(s string) string { return attrEscaper.Replace(s) }

// isWordRune reports whether r can be part of a word. RE2's \b only knows
// ASCII, which breaks on Polish diacritics, so boundaries are checked here.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_'
}

// atWordBoundary reports whether src[start:end] is not glued to a word
// character on either side.
func atWordBoundary(src string, start, end int) bool {
	return boundaryBefore(src, start) && boundaryAfter(src, end)
}

func boundaryBefore(src string, i int) bool {
	if i <= 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(src[:i])
	return !isWordRune(r)
}

func boundaryAfter(src string, i int) bool {
	if i >= len(src) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(src[i:])
	return !isWordRune(r)
}

// wordsPattern compiles a case-insensitive alternation of the given words,
// longest first so that multi-word entries win over their prefixes. It
// returns nil for an empty list.
func wordsPattern(words []string) *regexp.Regexp {
	if len(words) == 0 {
		return nil
	}
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			quoted = append(quoted, regexp.QuoteMeta(w))
		}
	}
	if len(quoted) == 0 {
		return nil
	}
	sort.SliceStable(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return regexp.MustCompile(`(?i)(` + strings.Join(quoted, "|") + `)`)
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// lowerIndex returns m keyed by lowercased keys for case-insensitive lookup.
func lowerIndex[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
