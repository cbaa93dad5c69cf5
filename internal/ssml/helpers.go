package ssml

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// Emphasis wraps text in an emphasis element.
func Emphasis(text string, level EmphasisLevel) string {
	return fmt.Sprintf(`<emphasis level="%s">%s</emphasis>`, escapeAttr(string(level)), text)
}

// Break returns a pause of the given duration, e.g. "500ms" or "1s".
func Break(duration string) string {
	return fmt.Sprintf(`<break time="%s"/>`, escapeAttr(duration))
}

// Prosody wraps text in a prosody element. Empty attributes are omitted.
func Prosody(text, rate, pitch, volume string) string {
	var b strings.Builder
	b.WriteString("<prosody")
	for _, attr := range [][2]string{{"rate", rate}, {"pitch", pitch}, {"volume", volume}} {
		if attr[1] != "" {
			fmt.Fprintf(&b, ` %s="%s"`, attr[0], escapeAttr(attr[1]))
		}
	}
	b.WriteString(">")
	b.WriteString(text)
	b.WriteString("</prosody>")
	return b.String()
}

// SayAs wraps text in a say-as element. format may be empty.
func SayAs(text, interpretAs, format string) string {
	if format == "" {
		return fmt.Sprintf(`<say-as interpret-as="%s">%s</say-as>`, escapeAttr(interpretAs), text)
	}
	return fmt.Sprintf(`<say-as interpret-as="%s" format="%s">%s</say-as>`, escapeAttr(interpretAs), escapeAttr(format), text)
}

// Phoneme wraps text in an IPA phoneme element.
func Phoneme(text, ipa string) string {
	return fmt.Sprintf(`<phoneme alphabet="ipa" ph="%s">%s</phoneme>`, escapeAttr(ipa), text)
}

// Sub wraps text in a substitution element read as alias.
func Sub(text, alias string) string {
	return fmt.Sprintf(`<sub alias="%s">%s</sub>`, escapeAttr(alias), text)
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// PlainText strips all markup from doc and returns the spoken text. Sub
// elements are read through their alias. Malformed documents fall back to a
// tag-stripping regex.
func PlainText(doc string) string {
	dec := xml.NewDecoder(strings.NewReader(doc))
	dec.Strict = false

	var (
		b        strings.Builder
		subDepth int
	)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return collapseSpaces(tagPattern.ReplaceAllString(doc, " "))
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "sub" {
				for _, a := range t.Attr {
					if a.Name.Local == "alias" {
						b.WriteString(a.Value)
					}
				}
				subDepth++
			}
			if t.Name.Local == "break" {
				b.WriteString(" ")
			}
		case xml.EndElement:
			if t.Name.Local == "sub" && subDepth > 0 {
				subDepth--
			}
		case xml.CharData:
			if subDepth == 0 {
				b.Write(t)
			}
		}
	}
	return collapseSpaces(b.String())
}

var spaceRun = regexp.MustCompile(`\s+`)

func collapseSpaces(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}
