package ssml

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// pass is one rewrite step of the pipeline.
type pass struct {
	name string
	run  func(b *Builder, doc []segment, st *state) ([]segment, error)
}

// state carries the per-call inputs shared by all passes.
type state struct {
	sel     Selection
	emotion Emotion
	opts    Options
}

// pipeline is the fixed pass order. Numeric and date detection run before
// anything that emits markup around digits; emphasis runs before the
// pronunciation rules so keyword matching sees the original words.
var pipeline = []pass{
	{name: "numbers", run: (*Builder).numbersPass},
	{name: "datetime", run: (*Builder).dateTimePass},
	{name: "acronyms", run: (*Builder).acronymsPass},
	{name: "terms", run: (*Builder).termsPass},
	{name: "currency", run: (*Builder).currencyPass},
	{name: "emphasis", run: (*Builder).emphasisPass},
	{name: "pronunciation", run: (*Builder).pronunciationPass},
	{name: "breathing", run: (*Builder).breathingPass},
	{name: "length", run: (*Builder).lengthPass},
}

var (
	ordinalPattern  = regexp.MustCompile(`(?i)(\d+)(?:st|nd|rd|th)`)
	percentPattern  = regexp.MustCompile(`(\d+(?:[.,]\d+)?)\s?%`)
	numberPattern   = regexp.MustCompile(`\d+(?:[.,:/\-]\d+)*`)
	datePattern     = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	timePattern     = regexp.MustCompile(`(\d{1,2}):(\d{2})`)
	sentencePattern = regexp.MustCompile(`([.!?…]+)(\s+)`)
	clausePattern   = regexp.MustCompile(`([,;:])(\s+)`)
	wordPattern     = regexp.MustCompile(`\S+`)
)

// matchers holds everything compiled from a RuleSet.
type matchers struct {
	weekdays    *regexp.Regexp
	weekdayIdx  map[string]string
	acronyms    *regexp.Regexp
	keep        map[string]bool
	terms       *regexp.Regexp
	termIdx     map[string]string
	currency    *regexp.Regexp
	currencyPre *regexp.Regexp
	currencyIdx map[string]Currency
	keywords    map[Emotion]*regexp.Regexp
	stress      *regexp.Regexp
	stressIdx   map[string]string
	clusters    *regexp.Regexp
	clusterIdx  map[string]string
	liaisons    *regexp.Regexp
	liaisonIdx  map[string]string
}

func compileRules(r RuleSet) matchers {
	m := matchers{
		weekdays:    wordsPattern(mapKeys(r.Weekdays)),
		weekdayIdx:  lowerIndex(r.Weekdays),
		acronyms:    wordsPattern(append(append([]string{}, r.Acronyms...), r.KeepAcronyms...)),
		keep:        make(map[string]bool, len(r.KeepAcronyms)),
		terms:       wordsPattern(mapKeys(r.Terms)),
		termIdx:     lowerIndex(r.Terms),
		currencyIdx: lowerIndex(r.Currencies),
		keywords:    make(map[Emotion]*regexp.Regexp, len(r.Keywords)),
		stress:      wordsPattern(mapKeys(r.StressWords)),
		stressIdx:   lowerIndex(r.StressWords),
		clusters:    wordsPattern(mapKeys(r.Clusters)),
		clusterIdx:  lowerIndex(r.Clusters),
		liaisons:    wordsPattern(mapKeys(r.Liaisons)),
		liaisonIdx:  lowerIndex(r.Liaisons),
	}
	for _, a := range r.KeepAcronyms {
		m.keep[strings.ToLower(a)] = true
	}
	if codes := wordsPattern(mapKeys(r.Currencies)); codes != nil {
		alt := strings.TrimPrefix(codes.String(), "(?i)")
		m.currency = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*` + alt)
		m.currencyPre = regexp.MustCompile(`^(?i)\s*` + alt)
	}
	for emotion, words := range r.Keywords {
		m.keywords[emotion] = wordsPattern(words)
	}
	return m
}

// numbersPass rewrites ordinals, percentages and plain cardinals. Numbers
// that belong to a time, date, decimal or currency amount are left for the
// later passes.
func (b *Builder) numbersPass(doc []segment, _ *state) ([]segment, error) {
	doc = rewrite(doc, ordinalPattern, func(src string, loc []int) ([]segment, bool) {
		if !atWordBoundary(src, loc[0], loc[1]) {
			return nil, false
		}
		word, ok := b.rules.Ordinals[trimLeadingZeros(src[loc[2]:loc[3]])]
		if !ok {
			return nil, false
		}
		return []segment{literal(word)}, true
	})

	doc = rewrite(doc, percentPattern, func(src string, loc []int) ([]segment, bool) {
		if !boundaryBefore(src, loc[0]) {
			return nil, false
		}
		return []segment{literal(src[loc[2]:loc[3]] + " " + b.rules.Percent)}, true
	})

	doc = rewrite(doc, numberPattern, func(src string, loc []int) ([]segment, bool) {
		token := src[loc[0]:loc[1]]
		if !atWordBoundary(src, loc[0], loc[1]) || !isDigits(token) {
			return nil, false
		}
		if b.followedByCurrency(src, loc[1]) {
			return nil, false
		}
		if len(token) <= 2 {
			n, _ := strconv.Atoi(token)
			if word := b.cardinalWord(n); word != "" {
				return []segment{markup(Sub(token, escapeText(word)))}, true
			}
		}
		return []segment{markup(SayAs(token, "cardinal", ""))}, true
	})
	return doc, nil
}

func (b *Builder) followedByCurrency(src string, end int) bool {
	if b.m.currencyPre == nil {
		return false
	}
	rest := src[end:]
	loc := b.m.currencyPre.FindStringIndex(rest)
	return loc != nil && boundaryAfter(rest, loc[1])
}

// cardinalWord spells n (0..99) from the cardinal table. It returns "" when
// the table cannot express n.
func (b *Builder) cardinalWord(n int) string {
	if w, ok := b.rules.Cardinals[strconv.Itoa(n)]; ok {
		return w
	}
	if n < 20 || n > 99 {
		return ""
	}
	tens, okT := b.rules.Cardinals[strconv.Itoa(n/10*10)]
	units, okU := b.rules.Cardinals[strconv.Itoa(n%10)]
	if !okT || !okU {
		return ""
	}
	return tens + " " + units
}

func (b *Builder) dateTimePass(doc []segment, _ *state) ([]segment, error) {
	doc = rewrite(doc, datePattern, func(src string, loc []int) ([]segment, bool) {
		if !atWordBoundary(src, loc[0], loc[1]) {
			return nil, false
		}
		month, _ := strconv.Atoi(src[loc[4]:loc[5]])
		day, _ := strconv.Atoi(src[loc[6]:loc[7]])
		if month < 1 || month > 12 || day < 1 || day > 31 {
			return nil, false
		}
		return []segment{markup(SayAs(src[loc[0]:loc[1]], "date", "ymd"))}, true
	})

	doc = rewrite(doc, timePattern, func(src string, loc []int) ([]segment, bool) {
		if !atWordBoundary(src, loc[0], loc[1]) {
			return nil, false
		}
		hour, _ := strconv.Atoi(src[loc[2]:loc[3]])
		minute := src[loc[4]:loc[5]]
		minutes, _ := strconv.Atoi(minute)
		if hour > 23 || minutes > 59 {
			return nil, false
		}
		if minutes == 0 {
			return []segment{markup(SayAs(strconv.Itoa(hour), "time", "h"))}, true
		}
		return []segment{markup(SayAs(fmt.Sprintf("%d:%s", hour, minute), "time", "hm"))}, true
	})

	doc = rewrite(doc, b.m.weekdays, func(src string, loc []int) ([]segment, bool) {
		if !atWordBoundary(src, loc[0], loc[1]) {
			return nil, false
		}
		match := src[loc[0]:loc[1]]
		word, ok := b.m.weekdayIdx[strings.ToLower(match)]
		if !ok {
			return nil, false
		}
		return []segment{literal(matchCase(match, word))}, true
	})
	return doc, nil
}

func (b *Builder) acronymsPass(doc []segment, _ *state) ([]segment, error) {
	return rewrite(doc, b.m.acronyms, func(src string, loc []int) ([]segment, bool) {
		match := src[loc[0]:loc[1]]
		if !atWordBoundary(src, loc[0], loc[1]) || b.m.keep[strings.ToLower(match)] {
			return nil, false
		}
		return []segment{markup(SayAs(match, "characters", ""))}, true
	}), nil
}

func (b *Builder) termsPass(doc []segment, _ *state) ([]segment, error) {
	return phonemes(doc, b.m.terms, b.m.termIdx), nil
}

// currencyPass speaks "<amount> <code>" with the currency name agreeing in
// number with the amount.
func (b *Builder) currencyPass(doc []segment, _ *state) ([]segment, error) {
	return rewrite(doc, b.m.currency, func(src string, loc []int) ([]segment, bool) {
		if !atWordBoundary(src, loc[0], loc[1]) {
			return nil, false
		}
		amount := src[loc[2]:loc[3]]
		cur, ok := b.m.currencyIdx[strings.ToLower(src[loc[4]:loc[5]])]
		if !ok {
			return nil, false
		}
		word := cur.form(b.pluralOf(amount))
		return []segment{markup(SayAs(amount, "cardinal", "") + " " + escapeText(word))}, true
	}), nil
}

func (b *Builder) pluralOf(amount string) PluralCategory {
	if strings.ContainsAny(amount, ".,") {
		return PluralFraction
	}
	n, err := strconv.ParseInt(amount, 10, 64)
	if err != nil {
		return PluralMany
	}
	return b.rules.Plural.Select(n)
}

func (c Currency) form(cat PluralCategory) string {
	switch cat {
	case PluralOne:
		return c.One
	case PluralFew:
		return c.Few
	case PluralFraction:
		if c.Fraction != "" {
			return c.Fraction
		}
	}
	return c.Many
}

// emphasisPass wraps the keywords of the primary emotion and inserts pauses
// at sentence and clause boundaries.
func (b *Builder) emphasisPass(doc []segment, st *state) ([]segment, error) {
	level := st.sel.Profile.EmphasisLevel
	if re := b.m.keywords[st.emotion]; re != nil && level != EmphasisNone && level != "" {
		doc = rewrite(doc, re, func(src string, loc []int) ([]segment, bool) {
			if !atWordBoundary(src, loc[0], loc[1]) {
				return nil, false
			}
			return []segment{markup(Emphasis(escapeText(src[loc[0]:loc[1]]), level))}, true
		})
	}

	pauses := b.pausesFor(st.emotion)
	doc = rewrite(doc, sentencePattern, func(src string, loc []int) ([]segment, bool) {
		return []segment{
			literal(src[loc[2]:loc[3]]),
			{kind: segSentenceBreak, text: Break(pauses.Sentence)},
			literal(src[loc[4]:loc[5]]),
		}, true
	})
	doc = rewrite(doc, clausePattern, func(src string, loc []int) ([]segment, bool) {
		return []segment{
			literal(src[loc[2]:loc[3]]),
			{kind: segBreak, text: Break(pauses.Clause)},
			literal(src[loc[4]:loc[5]]),
		}, true
	})
	return doc, nil
}

func (b *Builder) pausesFor(e Emotion) Pauses {
	if p, ok := b.rules.Pauses[e]; ok {
		return p
	}
	return b.rules.Pauses[EmotionNeutral]
}

// pronunciationPass applies stress patterns, consonant-cluster phonemes and
// liaison substitutions.
func (b *Builder) pronunciationPass(doc []segment, _ *state) ([]segment, error) {
	doc = phonemes(doc, b.m.stress, b.m.stressIdx)
	doc = phonemes(doc, b.m.clusters, b.m.clusterIdx)
	doc = rewrite(doc, b.m.liaisons, func(src string, loc []int) ([]segment, bool) {
		match := src[loc[0]:loc[1]]
		if !atWordBoundary(src, loc[0], loc[1]) {
			return nil, false
		}
		repl, ok := b.m.liaisonIdx[strings.ToLower(match)]
		if !ok {
			return nil, false
		}
		return []segment{literal(matchCase(match, repl))}, true
	})
	return doc, nil
}

func phonemes(doc []segment, re *regexp.Regexp, idx map[string]string) []segment {
	return rewrite(doc, re, func(src string, loc []int) ([]segment, bool) {
		match := src[loc[0]:loc[1]]
		if !atWordBoundary(src, loc[0], loc[1]) {
			return nil, false
		}
		ipa, ok := idx[strings.ToLower(match)]
		if !ok {
			return nil, false
		}
		return []segment{markup(Phoneme(escapeText(match), ipa))}, true
	})
}

// breathingPass adds a long pause after every second sentence boundary once
// a response has more than three sentences.
func (b *Builder) breathingPass(doc []segment, _ *state) ([]segment, error) {
	if countSentences(doc) <= 3 {
		return doc, nil
	}
	out := make([]segment, 0, len(doc)+len(doc)/4)
	seen := 0
	for _, seg := range doc {
		out = append(out, seg)
		if seg.kind != segSentenceBreak {
			continue
		}
		seen++
		if seen%2 == 0 {
			out = append(out, segment{kind: segBreak, text: Break(b.rules.BreathingPause)})
		}
	}
	return out, nil
}

func countSentences(doc []segment) int {
	n := 0
	trailing := false
	for _, seg := range doc {
		switch {
		case seg.kind == segSentenceBreak:
			n++
			trailing = false
		case seg.isBreak():
		case strings.TrimSpace(seg.text) != "":
			trailing = true
		}
	}
	if trailing {
		n++
	}
	return n
}

// lengthPass caps the response at the word budget derived from the maximum
// spoken duration.
func (b *Builder) lengthPass(doc []segment, st *state) ([]segment, error) {
	maxDuration := st.opts.MaxResponseDuration
	if maxDuration <= 0 {
		maxDuration = b.rules.DefaultMaxDuration
	}
	if !(maxDuration > 0) || math.IsInf(maxDuration, 0) {
		return doc, nil
	}
	budget := maxDuration * b.rules.WordsPerSecond
	words := countWords(doc)
	if float64(words) <= budget {
		return doc, nil
	}
	// budget < words here, so it fits in an int.
	keep := int(budget) - b.rules.TruncationReserve
	if keep < 1 {
		keep = 1
	}
	out := truncateWords(doc, keep)
	out = append(out,
		segment{kind: segBreak, text: Break(b.pausesFor(st.emotion).Sentence)},
		literal(" "+b.rules.TruncationSuffix),
	)
	return out, nil
}

// countWords counts whitespace-separated words in literal text. Each markup
// element stands for one spoken unit; pauses count as nothing.
func countWords(doc []segment) int {
	n := 0
	for _, seg := range doc {
		switch seg.kind {
		case segText:
			n += len(strings.Fields(seg.text))
		case segMarkup:
			n++
		}
	}
	return n
}

func truncateWords(doc []segment, limit int) []segment {
	out := make([]segment, 0, len(doc))
	count := 0
	for _, seg := range doc {
		if count >= limit {
			break
		}
		switch seg.kind {
		case segText:
			words := wordPattern.FindAllStringIndex(seg.text, -1)
			if count+len(words) <= limit {
				out = append(out, seg)
				count += len(words)
				continue
			}
			cut := words[limit-count-1][1]
			out = append(out, literal(seg.text[:cut]))
			count = limit
		case segMarkup:
			out = append(out, seg)
			count++
		default:
			out = append(out, seg)
		}
	}
	return out
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func trimLeadingZeros(s string) string {
	t := strings.TrimLeft(s, "0")
	if t == "" {
		return "0"
	}
	return t
}

// matchCase capitalizes repl when the matched source word starts with an
// upper-case letter.
func matchCase(src, repl string) string {
	r, _ := utf8.DecodeRuneInString(src)
	if !unicode.IsUpper(r) || repl == "" {
		return repl
	}
	first, size := utf8.DecodeRuneInString(repl)
	return string(unicode.ToUpper(first)) + repl[size:]
}
