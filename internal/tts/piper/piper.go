// Package piper implements the TTS Synthesizer using a Piper Wyoming protocol server.
//
// Piper is a fast, local neural text-to-speech system reachable over the
// Wyoming protocol on TCP (port 10200 by default). Piper reads plain text
// only, so SSML documents are reduced to their spoken text before sending.
//
// Wyoming protocol format (per event):
//
//	<json_length> <payload_length>\n
//	<json_bytes>\n
//	<payload_bytes>   (if payload_length > 0)
package piper

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/nadzzz/cadence/internal/config"
	"github.com/nadzzz/cadence/internal/ssml"
	"github.com/nadzzz/cadence/internal/tts"
)

const (
	defaultLanguage = "pl"
	defaultTimeout  = 30 * time.Second
	dialTimeout     = 10 * time.Second
)

// defaultVoices maps ISO-639-1 language codes to Piper voice model names.
var defaultVoices = map[string]string{
	"pl": "pl_PL-darkman-medium",
	"en": "en_US-lessac-medium",
	"de": "de_DE-thorsten-medium",
	"uk": "uk_UA-ukrainian_tts-medium",
}

// ErrEmptyInput is returned when there is nothing to speak.
var ErrEmptyInput = errors.New("piper: empty text for synthesis")

// Synthesizer implements tts.Synthesizer using the Wyoming protocol.
type Synthesizer struct {
	endpoint  string            // default host:port
	endpoints map[string]string // language -> host:port
	voices    map[string]string // language -> voice name
	timeout   time.Duration
	log       *slog.Logger
}

// New creates a Piper synthesizer from config.
func New(cfg config.PiperConfig) *Synthesizer {
	voices := maps.Clone(defaultVoices)
	maps.Copy(voices, cfg.Voices)

	endpoints := make(map[string]string, len(cfg.Endpoints))
	for lang, ep := range cfg.Endpoints {
		endpoints[strings.ToLower(lang)] = cleanEndpoint(ep)
	}

	timeout := defaultTimeout
	if d, err := time.ParseDuration(cfg.Timeout); err == nil && d > 0 {
		timeout = d
	}

	return &Synthesizer{
		endpoint:  cleanEndpoint(cfg.Endpoint),
		endpoints: endpoints,
		voices:    voices,
		timeout:   timeout,
		log:       slog.Default().With("component", "piper"),
	}
}

func cleanEndpoint(ep string) string {
	ep = strings.TrimPrefix(ep, "tcp://")
	return strings.TrimPrefix(ep, "http://")
}

// baseLanguage reduces "pl-PL" or "pl_PL" to "pl".
func baseLanguage(tag string) string {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	if tag == "" {
		return defaultLanguage
	}
	return tag
}

// Synthesize sends text to the Piper server and returns synthesized audio as WAV.
func (s *Synthesizer) Synthesize(ctx context.Context, input string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	text := input
	if opts.SSML {
		text = ssml.PlainText(input)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	lang := baseLanguage(opts.Language)
	voice := opts.Voice
	if voice == "" {
		voice = s.voices[lang]
	}
	if voice == "" {
		voice = s.voices[defaultLanguage]
	}

	endpoint := s.endpoints[lang]
	if endpoint == "" {
		endpoint = s.endpoint
	}
	if endpoint == "" {
		return nil, fmt.Errorf("no piper endpoint configured for language %q", lang)
	}

	s.log.Debug("synthesize", "text_length", len(text), "voice", voice, "language", lang, "endpoint", endpoint)

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint)
	if err != nil {
		return nil, fmt.Errorf("connecting to piper: %w", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(s.timeout)
	}
	_ = conn.SetDeadline(deadline)

	// Unblock reads when the caller gives up early.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	req := event{
		Type: eventSynthesize,
		Data: map[string]any{
			"text":  text,
			"voice": map[string]any{"name": voice},
		},
	}
	if err := writeEvent(conn, req, nil); err != nil {
		return nil, fmt.Errorf("sending synthesize event: %w", err)
	}

	res, err := s.receive(bufio.NewReader(conn))
	if err != nil && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return res, err
}

// Ping dials every configured endpoint. It backs the readiness endpoint.
func (s *Synthesizer) Ping(ctx context.Context) error {
	targets := slices.Collect(maps.Values(s.endpoints))
	if s.endpoint != "" {
		targets = append(targets, s.endpoint)
	}
	slices.Sort(targets)
	if len(targets) == 0 {
		return errors.New("no piper endpoint configured")
	}
	dialer := net.Dialer{Timeout: dialTimeout}
	for _, ep := range slices.Compact(targets) {
		conn, err := dialer.DialContext(ctx, "tcp", ep)
		if err != nil {
			return fmt.Errorf("piper %s: %w", ep, err)
		}
		_ = conn.Close()
	}
	return nil
}

// receive collects audio-start, audio-chunk* and audio-stop into a WAV file.
func (s *Synthesizer) receive(r *bufio.Reader) (*tts.SynthesizeResult, error) {
	var (
		pcm        bytes.Buffer
		sampleRate = 22050
		channels   = 1
		width      = 2
	)
	for {
		evt, payload, err := readEvent(r)
		if err != nil {
			return nil, fmt.Errorf("reading piper event: %w", err)
		}

		switch evt.Type {
		case eventAudioStart:
			sampleRate = evt.intField("rate", sampleRate)
			channels = evt.intField("channels", channels)
			width = evt.intField("width", width)
			s.log.Debug("audio-start", "rate", sampleRate, "channels", channels, "width", width)

		case eventAudioChunk:
			pcm.Write(payload)

		case eventAudioStop:
			s.log.Debug("audio-stop", "pcm_bytes", pcm.Len())
			return &tts.SynthesizeResult{
				Audio:       pcmToWAV(pcm.Bytes(), sampleRate, channels, width),
				ContentType: "audio/wav",
				SampleRate:  sampleRate,
				Channels:    channels,
			}, nil

		case eventError:
			msg := evt.stringField("text")
			if msg == "" {
				msg = "unknown error"
			}
			return nil, fmt.Errorf("piper error: %s", msg)

		default:
			s.log.Debug("ignoring event", "type", evt.Type)
		}
	}
}

// Close is a no-op; connections are per-request.
func (s *Synthesizer) Close() error { return nil }
