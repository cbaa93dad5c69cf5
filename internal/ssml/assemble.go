package ssml

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// envelope is the document template. Placeholders are substituted once the
// profile is known and again once the body has been transformed.
const envelope = `<speak version="1.1" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="{lang}">` +
	`<prosody rate="{rate}" pitch="{pitch}" volume="{volume}">{content}</prosody></speak>`

const envelopeTail = "</prosody></speak>"

// repairedTags are the elements the assembler knows how to auto-close.
var repairedTags = []string{"emphasis", "say-as", "phoneme", "sub", "prosody"}

var (
	breakRun      = regexp.MustCompile(`<break time="[^"]*"/>(?:\s*<break time="[^"]*"/>)+`)
	breakTag      = regexp.MustCompile(`<break time="[^"]*"/>`)
	disallowed    = regexp.MustCompile(`[^\p{L}\p{M}\p{N}\p{P}\p{Sm}\p{Sc}\p{Sk}\p{Zs}\t\n\r]`)
	openPatterns  = make(map[string]*regexp.Regexp, len(repairedTags))
	closePatterns = make(map[string]*regexp.Regexp, len(repairedTags))
)

func init() {
	for _, name := range repairedTags {
		q := regexp.QuoteMeta(name)
		openPatterns[name] = regexp.MustCompile(`<` + q + `(?:\s[^>]*[^/>])?>`)
		closePatterns[name] = regexp.MustCompile(`</` + q + `\s*>`)
	}
}

// template returns the envelope with the profile attributes filled in.
func (b *Builder) template(sel Selection) string {
	return strings.NewReplacer(
		"{lang}", escapeAttr(b.rules.Language),
		"{rate}", sel.RateAttr(),
		"{pitch}", sel.PitchAttr(),
		"{volume}", escapeAttr(string(sel.Profile.Volume)),
	).Replace(envelope)
}

// assemble splices the transformed body into the template, normalizes the
// result and prepends the metadata comment. It never fails; whatever it
// cannot repair is passed through.
func (b *Builder) assemble(tmpl, content string, ec EmotionalContext, opts Options) string {
	doc := strings.Replace(tmpl, "{content}", content, 1)
	doc = disallowed.ReplaceAllString(doc, "")
	doc = collapseSpaces(doc)
	doc = coalesceBreaks(doc, b.rules.CoalescedPause)
	doc = repairTags(doc)
	return b.metadata(ec, opts) + doc
}

// coalesceBreaks replaces each run of identical adjacent pauses with a single
// pause of the fixed duration. Runs of different pauses are kept.
func coalesceBreaks(doc, duration string) string {
	return breakRun.ReplaceAllStringFunc(doc, func(run string) string {
		tags := breakTag.FindAllString(run, -1)
		var b strings.Builder
		for i := 0; i < len(tags); {
			j := i + 1
			for j < len(tags) && tags[j] == tags[i] {
				j++
			}
			if j-i > 1 {
				b.WriteString(Break(duration))
			} else {
				b.WriteString(tags[i])
			}
			i = j
		}
		return b.String()
	})
}

// repairTags appends closing tags for elements opened more often than they
// are closed. The closers go inside the envelope when it is intact.
func repairTags(doc string) string {
	var missing strings.Builder
	for _, name := range repairedTags {
		opens := len(openPatterns[name].FindAllStringIndex(doc, -1))
		closes := len(closePatterns[name].FindAllStringIndex(doc, -1))
		for i := closes; i < opens; i++ {
			missing.WriteString("</" + name + ">")
		}
	}
	if missing.Len() == 0 {
		return doc
	}
	switch {
	case strings.HasSuffix(doc, envelopeTail):
		return strings.TrimSuffix(doc, envelopeTail) + missing.String() + envelopeTail
	case strings.HasSuffix(doc, "</speak>"):
		return strings.TrimSuffix(doc, "</speak>") + missing.String() + "</speak>"
	default:
		return doc + missing.String()
	}
}

func (b *Builder) metadata(ec EmotionalContext, opts Options) string {
	responseType := strings.ToUpper(strings.TrimSpace(opts.ResponseType))
	if responseType == "" {
		responseType = ResponseGeneral
	}
	return fmt.Sprintf("<!-- response_type=%s emotion=%s generated_at=%s format=%s -->",
		commentSafe(responseType),
		commentSafe(string(ec.PrimaryEmotion)),
		b.now().UTC().Format(time.RFC3339),
		commentSafe(b.rules.FormatVersion),
	)
}

// commentSafe keeps a value from terminating the XML comment early.
func commentSafe(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.ReplaceAll(s, ">", "")
	return strings.Join(strings.Fields(s), "_")
}
