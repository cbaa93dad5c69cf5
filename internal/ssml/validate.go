package ssml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	defaultWordsPerSecond = 3
	secondsPerBreak       = 0.5
	maxAdvisedPause       = 2 * time.Second
)

// Report is the outcome of validating a document.
type Report struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`

	// EstimatedDuration is the expected spoken length in seconds.
	EstimatedDuration float64  `json:"estimated_duration,omitempty"`
	Words             int      `json:"words,omitempty"`
	Breaks            int      `json:"breaks,omitempty"`
	Warnings          []string `json:"warnings,omitempty"`
}

// Validate parses doc and reports structural problems, an estimated spoken
// duration and advisory warnings. It is a diagnostic tool; Build never calls
// it.
func Validate(doc string) Report {
	return validate(doc, defaultWordsPerSecond)
}

// Validate is like the package-level Validate but estimates duration with the
// builder's words-per-second rate.
func (b *Builder) Validate(doc string) Report {
	return validate(doc, b.rules.WordsPerSecond)
}

func validate(doc string, wordsPerSecond float64) Report {
	dec := xml.NewDecoder(strings.NewReader(doc))

	var (
		rep           Report
		depth         int
		sawRoot       bool
		emphasisDepth int
		prosodyDepth  int
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Report{Error: err.Error()}
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				if sawRoot {
					return Report{Error: "multiple root elements"}
				}
				if t.Name.Local != "speak" {
					return Report{Error: fmt.Sprintf("root element is <%s>, want <speak>", t.Name.Local)}
				}
				sawRoot = true
			}
			depth++
			switch t.Name.Local {
			case "emphasis":
				if emphasisDepth > 0 {
					rep.Warnings = append(rep.Warnings, "nested <emphasis> element")
				}
				emphasisDepth++
			case "prosody":
				if prosodyDepth > 0 {
					rep.Warnings = append(rep.Warnings, "nested <prosody> element")
				}
				prosodyDepth++
			case "break":
				rep.Breaks++
				if w := pauseWarning(t); w != "" {
					rep.Warnings = append(rep.Warnings, w)
				}
			}
		case xml.EndElement:
			depth--
			switch t.Name.Local {
			case "emphasis":
				emphasisDepth--
			case "prosody":
				prosodyDepth--
			}
		case xml.CharData:
			if depth > 0 {
				rep.Words += len(strings.Fields(string(t)))
			}
		}
	}
	if !sawRoot {
		return Report{Error: "missing root element"}
	}
	if wordsPerSecond <= 0 {
		wordsPerSecond = defaultWordsPerSecond
	}
	rep.Valid = true
	rep.EstimatedDuration = float64(rep.Words)/wordsPerSecond + float64(rep.Breaks)*secondsPerBreak
	return rep
}

func pauseWarning(el xml.StartElement) string {
	for _, a := range el.Attr {
		if a.Name.Local != "time" {
			continue
		}
		d, err := time.ParseDuration(strings.TrimSpace(a.Value))
		if err != nil {
			return fmt.Sprintf("unparseable pause duration %q", a.Value)
		}
		if d > maxAdvisedPause {
			return fmt.Sprintf("pause of %s exceeds %s", a.Value, maxAdvisedPause)
		}
	}
	return ""
}
