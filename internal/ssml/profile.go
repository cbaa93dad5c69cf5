package ssml

import (
	"fmt"
	"math"
	"strings"
)

// VoiceSpeed is the user's preferred speaking speed.
type VoiceSpeed string

const (
	SpeedSlow   VoiceSpeed = "slow"
	SpeedNormal VoiceSpeed = "normal"
	SpeedFast   VoiceSpeed = "fast"
)

// Response types with dedicated selection rules. Other values are accepted
// and fall through to the default profile.
const (
	ResponseClient  = "CLIENT"
	ResponseGoal    = "GOAL"
	ResponseGeneral = "GENERAL"
)

// motivationalConfidence is the confidence a GOAL response needs before the
// motivational profile is used.
const motivationalConfidence = 0.7

// EmotionalContext is the caller's annotation of a response.
type EmotionalContext struct {
	PrimaryEmotion Emotion `json:"primary_emotion" yaml:"primary_emotion"`
	Confidence     float64 `json:"confidence" yaml:"confidence"`
}

// Selection is the outcome of profile selection.
type Selection struct {
	Name           string
	Profile        Profile
	RateMultiplier float64

	// Rate is Profile.Rate scaled by RateMultiplier, rounded to a percent.
	Rate int
}

// RateAttr formats the effective rate as a prosody attribute.
func (s Selection) RateAttr() string { return fmt.Sprintf("%d%%", s.Rate) }

// PitchAttr formats the pitch shift as a prosody attribute.
func (s Selection) PitchAttr() string { return fmt.Sprintf("%+d%%", s.Profile.Pitch) }

// SelectProfile picks exactly one voice profile. Rules are checked in
// priority order and the first match wins; the default profile is the
// catch-all.
func (b *Builder) SelectProfile(ec EmotionalContext, opts Options) Selection {
	name := ProfileDefault
	responseType := strings.ToUpper(strings.TrimSpace(opts.ResponseType))

	switch {
	case ec.PrimaryEmotion == EmotionExcitement || ec.PrimaryEmotion == EmotionAchievement:
		name = ProfileEnergetic
	case ec.PrimaryEmotion == EmotionStress:
		name = ProfileCalming
	case responseType == ResponseClient || opts.Formal:
		name = ProfileProfessional
	case responseType == ResponseGoal && ec.Confidence > motivationalConfidence:
		name = ProfileMotivational
	}

	profile, ok := b.rules.Profiles[name]
	if !ok {
		name = ProfileDefault
		profile = b.rules.Profiles[ProfileDefault]
	}

	mult := speedMultiplier(opts.Speed)
	return Selection{
		Name:           name,
		Profile:        profile,
		RateMultiplier: mult,
		Rate:           int(math.Round(float64(profile.Rate) * mult)),
	}
}

func speedMultiplier(speed VoiceSpeed) float64 {
	switch VoiceSpeed(strings.ToLower(string(speed))) {
	case SpeedSlow:
		return 0.8
	case SpeedFast:
		return 1.2
	default:
		return 1.0
	}
}
