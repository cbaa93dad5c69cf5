// Package message defines the request and result types shared by the cadence
// transports and the dispatcher.
package message

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/nadzzz/cadence/internal/ssml"
)

// ErrInvalidRequest marks requests rejected before any processing.
var ErrInvalidRequest = errors.New("invalid request")

// ResponseMode controls what output the caller wants back.
// The caller declares the desired output in the request body and the server
// populates or omits result fields accordingly.
type ResponseMode string

const (
	// ResponseModeSSML returns the markup document only.
	ResponseModeSSML ResponseMode = "ssml"

	// ResponseModeAudio returns synthesized audio only.
	ResponseModeAudio ResponseMode = "audio"

	// ResponseModeSSMLAudio returns both markup and synthesized audio.
	ResponseModeSSMLAudio ResponseMode = "ssml+audio"
)

// SpeakRequest asks for an assistant response to be rendered for speech.
type SpeakRequest struct {
	// ID is a unique identifier for this request (UUID). Assigned by the
	// dispatcher when empty.
	ID string `json:"id,omitempty"`

	// Source identifies the caller (e.g., "crm-assistant", "kiosk-02").
	Source string `json:"source,omitempty"`

	// Text is the plain assistant response to be spoken.
	Text string `json:"text"`

	// EmotionalContext is the caller's annotation of the response. It takes
	// precedence over Context.EmotionalContext.
	EmotionalContext *ssml.EmotionalContext `json:"emotional_context,omitempty"`

	// Context describes the conversation the response belongs to.
	Context Context `json:"context"`

	// ResponseMode selects markup, audio or both.
	// Defaults to "ssml+audio" when TTS is enabled, "ssml" otherwise.
	ResponseMode ResponseMode `json:"response_mode,omitempty"`

	// Validate attaches a validation report for the generated markup.
	Validate bool `json:"validate,omitempty"`
}

// Context is the conversational context of a SpeakRequest.
type Context struct {
	UserPreferences UserPreferences `json:"user_preferences"`

	// ResponseType is a free-form category such as "CLIENT", "GOAL" or "TASK".
	ResponseType string `json:"response_type,omitempty"`

	// Formal requests the professional register.
	Formal bool `json:"formal,omitempty"`

	// MaxResponseDuration caps the spoken length in seconds.
	MaxResponseDuration float64 `json:"max_response_duration,omitempty"`

	// EmotionalContext is used when the request carries none of its own.
	EmotionalContext *ssml.EmotionalContext `json:"emotional_context,omitempty"`
}

// UserPreferences are per-user voice settings.
type UserPreferences struct {
	// VoiceSpeed is "slow", "normal" or "fast".
	VoiceSpeed ssml.VoiceSpeed `json:"voice_speed,omitempty"`
}

// Check rejects requests that cannot be rendered.
func (r *SpeakRequest) Check() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("%w: text is empty", ErrInvalidRequest)
	}
	switch r.ResponseMode {
	case "", ResponseModeSSML, ResponseModeAudio, ResponseModeSSMLAudio:
	default:
		return fmt.Errorf("%w: unknown response_mode %q", ErrInvalidRequest, r.ResponseMode)
	}
	if d := r.Context.MaxResponseDuration; d < 0 || math.IsNaN(d) || math.IsInf(d, 0) {
		return fmt.Errorf("%w: max_response_duration must be a finite, non-negative number", ErrInvalidRequest)
	}
	return nil
}

// Response converts the request into the builder's input.
func (r *SpeakRequest) Response() ssml.Response {
	return ssml.Response{Text: r.Text, Emotion: r.EmotionalContext}
}

// Options converts the request context into builder options.
func (r *SpeakRequest) Options() ssml.Options {
	return ssml.Options{
		Speed:               r.Context.UserPreferences.VoiceSpeed,
		ResponseType:        r.Context.ResponseType,
		Formal:              r.Context.Formal,
		MaxResponseDuration: r.Context.MaxResponseDuration,
		Emotion:             r.Context.EmotionalContext,
	}
}

// SpeakResult is the outcome of rendering a SpeakRequest.
type SpeakResult struct {
	// MessageID is the request ID.
	MessageID string `json:"message_id"`

	// SSML is the generated document. Populated when response_mode is
	// "ssml" or "ssml+audio". Equals the input text when rendering failed.
	SSML string `json:"ssml,omitempty"`

	// Profile is the name of the selected voice profile.
	Profile string `json:"profile"`

	// Rate is the effective speaking rate in percent.
	Rate int `json:"rate"`

	// Validation is set when the request asked for it.
	Validation *ssml.Report `json:"validation,omitempty"`

	// ResponseAudio is the synthesized audio as a base64-encoded string.
	// Populated when response_mode is "audio" or "ssml+audio".
	ResponseAudio string `json:"response_audio,omitempty"`

	// ResponseContentType is the MIME type of ResponseAudio (e.g., "audio/wav").
	ResponseContentType string `json:"response_content_type,omitempty"`

	// Error describes a degraded result: markup fell back to plain text or
	// audio could not be produced. The request itself still succeeded.
	Error string `json:"error,omitempty"`
}

// SetResponseAudioBytes base64-encodes raw audio bytes into ResponseAudio.
func (r *SpeakResult) SetResponseAudioBytes(audio []byte) {
	if len(audio) > 0 {
		r.ResponseAudio = base64.StdEncoding.EncodeToString(audio)
	}
}

// ValidateRequest carries a document to check.
type ValidateRequest struct {
	SSML string `json:"ssml"`
}

// RulesResult carries the exported rule set.
type RulesResult struct {
	Settings map[string]any `json:"settings"`
}
