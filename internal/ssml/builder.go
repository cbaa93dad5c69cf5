// Package ssml turns plain assistant responses into SSML for a speech
// synthesizer.
//
// A Builder is constructed once from a RuleSet and is immutable afterwards,
// so a single instance can serve concurrent callers without locking. Build
// never fails: if any stage of the pipeline errors or panics, the caller gets
// the original text back and the failing stage is reported to the optional
// diagnostics sink.
package ssml

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Response is the text to be spoken plus the caller's emotional annotation.
type Response struct {
	Text    string
	Emotion *EmotionalContext
}

// Options describe the conversational context of a response.
type Options struct {
	Speed        VoiceSpeed
	ResponseType string
	Formal       bool

	// MaxResponseDuration caps the spoken length in seconds. Zero uses the
	// rule set default.
	MaxResponseDuration float64

	// Emotion is used when the Response carries no emotional context.
	Emotion *EmotionalContext
}

// StageError reports which pipeline stage failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("ssml %s stage: %v", e.Stage, e.Err) }

func (e *StageError) Unwrap() error { return e.Err }

// DiagnosticFunc receives the name of the failed stage and the error.
type DiagnosticFunc func(stage string, err error)

// Option configures a Builder.
type Option func(*Builder)

// WithClock overrides the clock used for the metadata timestamp.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithDiagnostics installs a sink that is told about every fallback.
func WithDiagnostics(fn DiagnosticFunc) Option {
	return func(b *Builder) { b.diag = fn }
}

// WithLogger sets the logger used when a build falls back to plain text.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.log = l }
}

// Builder renders responses to SSML.
type Builder struct {
	rules  RuleSet
	m      matchers
	passes []pass
	now    func() time.Time
	diag   DiagnosticFunc
	log    *slog.Logger
}

// New compiles rules into a Builder. The rule set is copied, so later changes
// to the caller's value have no effect.
func New(rules RuleSet, opts ...Option) (*Builder, error) {
	rules = rules.Clone()
	if err := rules.check(); err != nil {
		return nil, fmt.Errorf("invalid rule set: %w", err)
	}
	b := &Builder{
		rules:  rules,
		m:      compileRules(rules),
		passes: pipeline,
		now:    time.Now,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// NewDefault returns a Builder over DefaultRules.
func NewDefault(opts ...Option) *Builder {
	b, err := New(DefaultRules(), opts...)
	if err != nil {
		panic(fmt.Sprintf("ssml: default rules rejected: %v", err))
	}
	return b
}

// Rules returns a copy of the builder's rule set.
func (b *Builder) Rules() RuleSet { return b.rules.Clone() }

// Language returns the xml:lang of generated documents.
func (b *Builder) Language() string { return b.rules.Language }

// Build converts resp into an SSML document. It always returns a usable
// string: on failure the original text is returned unchanged.
func (b *Builder) Build(resp Response, opts Options) string {
	out, err := b.Render(resp, opts)
	if err != nil {
		stage := "unknown"
		var se *StageError
		if errors.As(err, &se) {
			stage = se.Stage
		}
		b.log.Error("ssml build failed, falling back to plain text", "stage", stage, "error", err)
		if b.diag != nil {
			b.diag(stage, err)
		}
		return resp.Text
	}
	return out
}

// Render runs the full pipeline and reports the failing stage on error.
func (b *Builder) Render(resp Response, opts Options) (string, error) {
	ec := ResolveEmotion(resp, opts)
	sel := b.SelectProfile(ec, opts)
	tmpl := b.template(sel)

	st := &state{sel: sel, emotion: ec.PrimaryEmotion, opts: opts}
	doc := []segment{literal(norm.NFC.String(resp.Text))}
	for _, p := range b.passes {
		var err error
		if doc, err = b.runPass(p, doc, st); err != nil {
			return "", &StageError{Stage: p.name, Err: err}
		}
	}

	var out string
	err := guard(func() error {
		out = b.assemble(tmpl, render(doc), ec, opts)
		return nil
	})
	if err != nil {
		return "", &StageError{Stage: "assemble", Err: err}
	}
	return out, nil
}

func (b *Builder) runPass(p pass, doc []segment, st *state) (out []segment, err error) {
	err = guard(func() error {
		var perr error
		out, perr = p.run(b, doc, st)
		return perr
	})
	return out, err
}

// guard converts a panic in fn into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// ResolveEmotion returns the emotional context a build would use: the
// response's own annotation, else the one in opts, else neutral. The emotion
// name is lowercased.
func ResolveEmotion(resp Response, opts Options) EmotionalContext {
	var ec EmotionalContext
	switch {
	case resp.Emotion != nil:
		ec = *resp.Emotion
	case opts.Emotion != nil:
		ec = *opts.Emotion
	}
	ec.PrimaryEmotion = Emotion(strings.ToLower(strings.TrimSpace(string(ec.PrimaryEmotion))))
	if ec.PrimaryEmotion == "" {
		ec.PrimaryEmotion = EmotionNeutral
	}
	return ec
}
