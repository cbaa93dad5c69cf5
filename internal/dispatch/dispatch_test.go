package dispatch

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/nadzzz/cadence/internal/message"
	"github.com/nadzzz/cadence/internal/observe"
	"github.com/nadzzz/cadence/internal/ssml"
	"github.com/nadzzz/cadence/internal/tts"
)

type fakeSynth struct {
	mu    sync.Mutex
	calls []tts.SynthesizeOpts
	input []string
	err   error
}

func (f *fakeSynth) Synthesize(_ context.Context, input string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, opts)
	f.input = append(f.input, input)
	if f.err != nil {
		return nil, f.err
	}
	return &tts.SynthesizeResult{Audio: []byte("RIFFdata"), ContentType: "audio/wav"}, nil
}

func (f *fakeSynth) Close() error { return nil }

// brokenRenderer fails every build at the currency stage.
type brokenRenderer struct {
	*ssml.Builder
}

func (brokenRenderer) Render(ssml.Response, ssml.Options) (string, error) {
	return "", &ssml.StageError{Stage: "currency", Err: errors.New("bad plural table")}
}

func newTestDispatcher(t *testing.T, r Renderer, opts ...Option) (*Dispatcher, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	require.NoError(t, err)

	base := []Option{
		WithMetrics(m),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return New(r, append(base, opts...)...), reader
}

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestSpeak_SSMLOnly(t *testing.T) {
	d, reader := newTestDispatcher(t, ssml.NewDefault())

	res, err := d.Speak(context.Background(), &message.SpeakRequest{
		Text:             "Gratulacje! Cel osiągnięty.",
		EmotionalContext: &ssml.EmotionalContext{PrimaryEmotion: ssml.EmotionAchievement, Confidence: 0.9},
		Context: message.Context{
			UserPreferences: message.UserPreferences{VoiceSpeed: ssml.SpeedSlow},
		},
		Validate: true,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, res.MessageID)
	assert.Equal(t, ssml.ProfileEnergetic, res.Profile)
	assert.Equal(t, 88, res.Rate)
	assert.Contains(t, res.SSML, `<emphasis level="strong">Gratulacje</emphasis>`)
	require.NotNil(t, res.Validation)
	assert.True(t, res.Validation.Valid, res.Validation.Error)
	assert.Empty(t, res.ResponseAudio)
	assert.Empty(t, res.Error)
	assert.Equal(t, int64(1), counterTotal(t, reader, "cadence.builds"))
}

func buildEmotionLabels(t *testing.T, reader *sdkmetric.ManualReader) []string {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	var labels []string
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "cadence.builds" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key("emotion"))
				labels = append(labels, v.AsString())
			}
		}
	}
	return labels
}

func TestSpeak_UnknownEmotionLabel(t *testing.T) {
	d, reader := newTestDispatcher(t, ssml.NewDefault())

	for _, emotion := range []ssml.Emotion{"Joy", "x-1", "x-2", " STRESS "} {
		_, err := d.Speak(context.Background(), &message.SpeakRequest{
			Text:             "Tak.",
			EmotionalContext: &ssml.EmotionalContext{PrimaryEmotion: emotion},
		})
		require.NoError(t, err)
	}

	assert.ElementsMatch(t, []string{"other", "stress"}, buildEmotionLabels(t, reader))
}

func TestSpeak_KeepsCallerID(t *testing.T) {
	d, _ := newTestDispatcher(t, ssml.NewDefault())

	res, err := d.Speak(context.Background(), &message.SpeakRequest{ID: "req-1", Text: "Dzień dobry."})
	require.NoError(t, err)
	assert.Equal(t, "req-1", res.MessageID)
}

func TestSpeak_Audio(t *testing.T) {
	synth := &fakeSynth{}
	d, _ := newTestDispatcher(t, ssml.NewDefault(), WithSynthesizer(synth))

	res, err := d.Speak(context.Background(), &message.SpeakRequest{Text: "Mam 5 zadań."})
	require.NoError(t, err)

	assert.NotEmpty(t, res.SSML, "ssml+audio is the default with a synthesizer")
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("RIFFdata")), res.ResponseAudio)
	assert.Equal(t, "audio/wav", res.ResponseContentType)
	require.Len(t, synth.calls, 1)
	assert.True(t, synth.calls[0].SSML)
	assert.Equal(t, "pl-PL", synth.calls[0].Language)
	assert.Equal(t, res.SSML, synth.input[0])

	res, err = d.Speak(context.Background(), &message.SpeakRequest{Text: "Tak.", ResponseMode: message.ResponseModeAudio})
	require.NoError(t, err)
	assert.Empty(t, res.SSML)
	assert.NotEmpty(t, res.ResponseAudio)
}

func TestSpeak_TTSFailureKeepsResult(t *testing.T) {
	synth := &fakeSynth{err: errors.New("piper down")}
	d, _ := newTestDispatcher(t, ssml.NewDefault(), WithSynthesizer(synth))

	res, err := d.Speak(context.Background(), &message.SpeakRequest{Text: "Tak."})
	require.NoError(t, err)

	assert.NotEmpty(t, res.SSML)
	assert.Empty(t, res.ResponseAudio)
	assert.Equal(t, "tts: piper down", res.Error)
}

func TestSpeak_FallbackToPlainText(t *testing.T) {
	synth := &fakeSynth{}
	d, reader := newTestDispatcher(t, brokenRenderer{ssml.NewDefault()}, WithSynthesizer(synth))

	const text = "Razem 22 PLN."
	res, err := d.Speak(context.Background(), &message.SpeakRequest{Text: text})
	require.NoError(t, err)

	assert.Equal(t, text, res.SSML)
	assert.Contains(t, res.Error, "currency")
	require.Len(t, synth.calls, 1)
	assert.False(t, synth.calls[0].SSML)
	assert.Equal(t, int64(1), counterTotal(t, reader, "cadence.fallbacks"))
}

func TestSpeak_AudioWithoutSynthesizer(t *testing.T) {
	d, _ := newTestDispatcher(t, ssml.NewDefault())

	res, err := d.Speak(context.Background(), &message.SpeakRequest{Text: "Tak.", ResponseMode: message.ResponseModeSSMLAudio})
	require.NoError(t, err)
	assert.NotEmpty(t, res.SSML)
	assert.Contains(t, res.Error, "TTS is disabled")
}

func TestSpeak_InvalidRequests(t *testing.T) {
	d, _ := newTestDispatcher(t, ssml.NewDefault())

	tests := map[string]*message.SpeakRequest{
		"nil":          nil,
		"empty text":   {Text: "  "},
		"unknown mode": {Text: "Tak", ResponseMode: "video"},
		"negative max": {Text: "Tak", Context: message.Context{MaxResponseDuration: -1}},
	}
	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := d.Speak(context.Background(), req)
			assert.ErrorIs(t, err, message.ErrInvalidRequest)
		})
	}
}

func TestValidate(t *testing.T) {
	d, reader := newTestDispatcher(t, ssml.NewDefault())

	rep, err := d.Validate(context.Background(), &message.ValidateRequest{
		SSML: `<speak>a<break time="5s"/>b</speak>`,
	})
	require.NoError(t, err)

	assert.True(t, rep.Valid)
	assert.Len(t, rep.Warnings, 1)
	assert.Equal(t, int64(1), counterTotal(t, reader, "cadence.validation.warnings"))

	rep, err = d.Validate(context.Background(), &message.ValidateRequest{SSML: "<speak>"})
	require.NoError(t, err)
	assert.False(t, rep.Valid)
}

func TestRules(t *testing.T) {
	d, _ := newTestDispatcher(t, ssml.NewDefault())

	res, err := d.Rules(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "pl-PL", res.Settings["language"])
	_, err = ssml.NewFromSettings(res.Settings)
	assert.NoError(t, err)
}

func TestProbe(t *testing.T) {
	d, _ := newTestDispatcher(t, ssml.NewDefault())
	assert.NoError(t, d.Probe(context.Background()))

	broken, _ := newTestDispatcher(t, brokenRenderer{ssml.NewDefault()})
	err := broken.Probe(context.Background())
	var se *ssml.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "currency", se.Stage)
}
