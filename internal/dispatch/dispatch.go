// Package dispatch implements the request pipeline behind every transport.
//
// The dispatcher renders the response text to SSML, optionally validates the
// result and optionally hands it to a speech synthesizer. Rendering never
// fails a request: when the markup pipeline breaks, the caller receives the
// original text and the failing stage is logged and counted.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nadzzz/cadence/internal/message"
	"github.com/nadzzz/cadence/internal/observe"
	"github.com/nadzzz/cadence/internal/ssml"
	"github.com/nadzzz/cadence/internal/tts"
)

// Renderer is the markup builder used by the dispatcher. *ssml.Builder
// implements it.
type Renderer interface {
	Render(resp ssml.Response, opts ssml.Options) (string, error)
	SelectProfile(ec ssml.EmotionalContext, opts ssml.Options) ssml.Selection
	Validate(doc string) ssml.Report
	ExportSettings() (map[string]any, error)
	Language() string
}

// Dispatcher is the core request engine. It is safe for concurrent use.
type Dispatcher struct {
	builder     Renderer
	synthesizer tts.Synthesizer // nil if TTS is disabled
	metrics     *observe.Metrics
	log         *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSynthesizer enables audio output.
func WithSynthesizer(s tts.Synthesizer) Option {
	return func(d *Dispatcher) { d.synthesizer = s }
}

// WithMetrics sets the metric instruments. Defaults to observe.DefaultMetrics.
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.log = l }
}

// New creates a Dispatcher around builder.
func New(builder Renderer, opts ...Option) *Dispatcher {
	d := &Dispatcher{builder: builder, log: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// resolveResponseMode determines the effective mode. If the caller didn't
// specify one, the default depends on whether TTS is available.
func (d *Dispatcher) resolveResponseMode(mode message.ResponseMode) message.ResponseMode {
	switch mode {
	case message.ResponseModeSSML, message.ResponseModeAudio, message.ResponseModeSSMLAudio:
		return mode
	default:
		if d.synthesizer != nil {
			return message.ResponseModeSSMLAudio
		}
		return message.ResponseModeSSML
	}
}

func wantSSML(mode message.ResponseMode) bool {
	return mode == message.ResponseModeSSML || mode == message.ResponseModeSSMLAudio
}

func wantAudio(mode message.ResponseMode) bool {
	return mode == message.ResponseModeAudio || mode == message.ResponseModeSSMLAudio
}

// Speak renders req. Only malformed requests produce an error; pipeline and
// synthesis failures are reported inside the result.
func (d *Dispatcher) Speak(ctx context.Context, req *message.SpeakRequest) (*message.SpeakResult, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: missing request", message.ErrInvalidRequest)
	}
	if err := req.Check(); err != nil {
		return nil, err
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	start := time.Now()
	logger := d.log.With("message_id", req.ID, "source", req.Source)
	mode := d.resolveResponseMode(req.ResponseMode)

	resp, opts := req.Response(), req.Options()
	ec := ssml.ResolveEmotion(resp, opts)
	sel := d.builder.SelectProfile(ec, opts)

	result := &message.SpeakResult{
		MessageID: req.ID,
		Profile:   sel.Name,
		Rate:      sel.Rate,
	}

	doc, renderErr := d.render(ctx, logger, resp, opts)
	rendered := renderErr == nil
	d.metrics.RecordBuild(ctx, sel.Name, emotionLabel(ec.PrimaryEmotion), time.Since(start).Seconds())
	logger.Debug("markup built", "profile", sel.Name, "emotion", ec.PrimaryEmotion, "fallback", !rendered)

	if wantSSML(mode) {
		result.SSML = doc
	}
	if renderErr != nil {
		result.Error = renderErr.Error()
	}

	if req.Validate {
		rep := d.builder.Validate(doc)
		result.Validation = &rep
		d.metrics.RecordValidation(ctx, len(rep.Warnings))
	}

	if wantAudio(mode) {
		d.synthesize(ctx, logger, doc, rendered, result)
	}

	logger.Info("speak complete",
		"profile", sel.Name,
		"response_mode", mode,
		"duration", time.Since(start),
		"audio_bytes", len(result.ResponseAudio))
	return result, nil
}

// emotionLabel bounds the metric label to the known emotions.
func emotionLabel(e ssml.Emotion) string {
	if e.Known() {
		return string(e)
	}
	return "other"
}

// render builds the document, falling back to the plain text on failure.
// The returned error describes the failure; the document is usable either way.
func (d *Dispatcher) render(ctx context.Context, logger *slog.Logger, resp ssml.Response, opts ssml.Options) (string, error) {
	doc, err := d.builder.Render(resp, opts)
	if err == nil {
		return doc, nil
	}
	stage := "unknown"
	var se *ssml.StageError
	if errors.As(err, &se) {
		stage = se.Stage
	}
	logger.Error("ssml build failed, falling back to plain text", "stage", stage, "error", err)
	d.metrics.RecordFallback(ctx, stage)
	return resp.Text, fmt.Errorf("markup unavailable, returned plain text: %w", err)
}

func (d *Dispatcher) synthesize(ctx context.Context, logger *slog.Logger, doc string, isSSML bool, result *message.SpeakResult) {
	if d.synthesizer == nil {
		logger.Warn("audio requested but TTS is disabled")
		result.Error = joinError(result.Error, "tts: audio requested but TTS is disabled")
		return
	}
	start := time.Now()
	res, err := d.synthesizer.Synthesize(ctx, doc, tts.SynthesizeOpts{
		Language: d.builder.Language(),
		SSML:     isSSML,
	})
	d.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		logger.Warn("TTS synthesis failed, continuing without audio", "error", err)
		result.Error = joinError(result.Error, fmt.Sprintf("tts: %v", err))
		return
	}
	result.SetResponseAudioBytes(res.Audio)
	result.ResponseContentType = res.ContentType
	logger.Debug("TTS synthesis complete", "audio_bytes", len(res.Audio))
}

func joinError(prev, msg string) string {
	if prev == "" {
		return msg
	}
	return prev + "; " + msg
}

// Validate checks a document with the builder's speaking rate.
func (d *Dispatcher) Validate(ctx context.Context, req *message.ValidateRequest) (*ssml.Report, error) {
	if req == nil {
		return nil, fmt.Errorf("%w: missing request", message.ErrInvalidRequest)
	}
	rep := d.builder.Validate(req.SSML)
	d.metrics.RecordValidation(ctx, len(rep.Warnings))
	return &rep, nil
}

// Rules exports the active rule set.
func (d *Dispatcher) Rules(context.Context) (*message.RulesResult, error) {
	settings, err := d.builder.ExportSettings()
	if err != nil {
		return nil, fmt.Errorf("exporting rules: %w", err)
	}
	return &message.RulesResult{Settings: settings}, nil
}

// probeText exercises every pass that has rules: numbers, currency, acronyms
// and emphasis.
const probeText = "Gratulacje! Mam 5 zadań i 22 PLN w CRM."

// Probe renders a fixed sentence and checks that the result is a valid
// document. It backs the readiness endpoint.
func (d *Dispatcher) Probe(context.Context) error {
	doc, err := d.builder.Render(ssml.Response{Text: probeText}, ssml.Options{})
	if err != nil {
		return fmt.Errorf("probe render: %w", err)
	}
	if rep := d.builder.Validate(doc); !rep.Valid {
		return fmt.Errorf("probe produced invalid markup: %s", rep.Error)
	}
	return nil
}
