// Package tts defines the interface for text-to-speech synthesis.
//
// Cadence renders assistant responses to SSML and can optionally hand the
// result to a synthesizer so callers receive audio alongside the markup.
package tts

import "context"

// SynthesizeOpts controls synthesis behavior.
type SynthesizeOpts struct {
	// Language is a BCP-47 tag or ISO-639-1 code (e.g., "pl-PL", "pl") used
	// to select the voice.
	Language string

	// Voice overrides automatic language-based voice selection.
	Voice string

	// SSML marks the input as a markup document rather than plain text.
	// Backends without markup support reduce it to its spoken text.
	SSML bool
}

// Synthesizer converts text to audio.
type Synthesizer interface {
	// Synthesize generates audio from the given text or document.
	Synthesize(ctx context.Context, input string, opts SynthesizeOpts) (*SynthesizeResult, error)

	// Close releases any resources held by the synthesizer.
	Close() error
}

// SynthesizeResult holds the output of TTS synthesis.
type SynthesizeResult struct {
	// Audio is the synthesized audio as a WAV file.
	Audio []byte

	// ContentType is the MIME type of the audio (e.g., "audio/wav").
	ContentType string

	// SampleRate is the audio sample rate in Hz (e.g., 22050).
	SampleRate int

	// Channels is the number of audio channels (typically 1).
	Channels int
}
