package ssml

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func newTestBuilder(t *testing.T, opts ...Option) *Builder {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedTime })}, opts...)
	b, err := New(DefaultRules(), opts...)
	require.NoError(t, err)
	return b
}

func TestBuild_Golden(t *testing.T) {
	b := newTestBuilder(t)

	got := b.Build(Response{Text: "Mam 5 zadań."}, Options{})

	want := `<!-- response_type=GENERAL emotion=neutral generated_at=2026-01-02T03:04:05Z format=ssml/1.1 -->` +
		`<speak version="1.1" xmlns="http://www.w3.org/2001/10/synthesis" xml:lang="pl-PL">` +
		`<prosody rate="100%" pitch="+0%" volume="medium">Mam <sub alias="pięć">5</sub> zadań.</prosody></speak>`
	assert.Equal(t, want, got)
}

func TestBuild_ProfileAttributesInjected(t *testing.T) {
	b := newTestBuilder(t)

	got := b.Build(Response{
		Text:    "Gotowe.",
		Emotion: &EmotionalContext{PrimaryEmotion: EmotionExcitement, Confidence: 0.9},
	}, Options{Speed: SpeedFast, ResponseType: "task"})

	assert.Contains(t, got, `<prosody rate="132%" pitch="+5%" volume="loud">`)
	assert.Contains(t, got, "response_type=TASK emotion=excitement")
}

func TestBuild_OptionsEmotionUsedWhenResponseHasNone(t *testing.T) {
	b := newTestBuilder(t)

	got := b.Build(Response{Text: "Spokojnie."}, Options{
		Emotion: &EmotionalContext{PrimaryEmotion: "STRESS"},
	})

	assert.Contains(t, got, `volume="soft"`)
	assert.Contains(t, got, `<emphasis level="reduced">Spokojnie</emphasis>`)
}

func TestBuild_CurrencyPluralForms(t *testing.T) {
	b := newTestBuilder(t)

	tests := []struct {
		in   string
		want string
	}{
		{"1 PLN", `<say-as interpret-as="cardinal">1</say-as> złoty`},
		{"22 PLN", `<say-as interpret-as="cardinal">22</say-as> złote`},
		{"112 PLN", `<say-as interpret-as="cardinal">112</say-as> złotych`},
		{"5 PLN", `<say-as interpret-as="cardinal">5</say-as> złotych`},
		{"12 pln", `<say-as interpret-as="cardinal">12</say-as> złotych`},
		{"3 USD", `<say-as interpret-as="cardinal">3</say-as> dolary`},
		{"12,50 zł", `<say-as interpret-as="cardinal">12,50</say-as> złotego`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := b.Build(Response{Text: "Kwota " + tt.in}, Options{})
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestBuild_LengthCapping(t *testing.T) {
	b := newTestBuilder(t)
	suffix := DefaultRules().TruncationSuffix

	long := strings.TrimSpace(strings.Repeat("słowo ", 80))
	got := b.Build(Response{Text: long}, Options{MaxResponseDuration: 10})

	assert.Equal(t, 20, strings.Count(got, "słowo"))
	assert.Contains(t, got, `<break time="500ms"/> `+suffix)

	short := strings.TrimSpace(strings.Repeat("słowo ", 20))
	got = b.Build(Response{Text: short}, Options{MaxResponseDuration: 10})

	assert.Equal(t, 20, strings.Count(got, "słowo"))
	assert.NotContains(t, got, suffix)
}

func TestBuild_HugeMaxDurationKeepsShortText(t *testing.T) {
	b := newTestBuilder(t)
	suffix := DefaultRules().TruncationSuffix

	text := strings.TrimSpace(strings.Repeat("słowo ", 10))
	got := b.Build(Response{Text: text}, Options{MaxResponseDuration: 1e19})

	assert.Equal(t, 10, strings.Count(got, "słowo"))
	assert.NotContains(t, got, suffix)
}

func TestBuild_FallsBackToPlainText(t *testing.T) {
	var (
		stages []string
		errs   []error
	)
	b := newTestBuilder(t, WithDiagnostics(func(stage string, err error) {
		stages = append(stages, stage)
		errs = append(errs, err)
	}))

	boom := errors.New("boom")
	b.passes = slices.Insert(slices.Clone(pipeline), 3, pass{
		name: "broken",
		run: func(*Builder, []segment, *state) ([]segment, error) {
			return nil, boom
		},
	})

	const text = "Mam 5 zadań na dziś."
	assert.Equal(t, text, b.Build(Response{Text: text}, Options{}))
	require.Equal(t, []string{"broken"}, stages)
	assert.ErrorIs(t, errs[0], boom)

	_, err := b.Render(Response{Text: text}, Options{})
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "broken", se.Stage)
}

func TestBuild_RecoversFromPanickingStage(t *testing.T) {
	var stage string
	b := newTestBuilder(t, WithDiagnostics(func(s string, _ error) { stage = s }))
	b.passes = append(slices.Clone(pipeline), pass{
		name: "explode",
		run: func(*Builder, []segment, *state) ([]segment, error) {
			panic("malformed rule")
		},
	})

	const text = "Cześć."
	assert.Equal(t, text, b.Build(Response{Text: text}, Options{}))
	assert.Equal(t, "explode", stage)
}

func TestBuild_AcronymSpellOut(t *testing.T) {
	b := newTestBuilder(t)

	got := b.Build(Response{Text: "Nowe API w SORTO i stare api"}, Options{})

	assert.Contains(t, got, `<say-as interpret-as="characters">API</say-as>`)
	assert.Contains(t, got, `<say-as interpret-as="characters">api</say-as>`)
	assert.Contains(t, got, " SORTO ")
	assert.NotContains(t, got, `<say-as interpret-as="characters">SORTO</say-as>`)
}

func TestBuild_BreathingPauses(t *testing.T) {
	b := newTestBuilder(t)
	breath := Break(DefaultRules().BreathingPause)

	three := "Zdanie pierwsze. Zdanie drugie. Zdanie trzecie."
	got := b.Build(Response{Text: three}, Options{})
	assert.Equal(t, 2, strings.Count(got, `<break time="500ms"/>`))
	assert.Zero(t, strings.Count(got, breath))

	four := "Zdanie pierwsze. Zdanie drugie. Zdanie trzecie. Zdanie czwarte."
	got = b.Build(Response{Text: four}, Options{})
	assert.Equal(t, 3, strings.Count(got, `<break time="500ms"/>`))
	assert.Equal(t, 1, strings.Count(got, breath))
	assert.Contains(t, got, `drugie.<break time="500ms"/>`+breath)

	five := four + " Zdanie piąte."
	got = b.Build(Response{Text: five}, Options{})
	assert.Equal(t, 2, strings.Count(got, breath))
}

func TestBuild_EscapesCallerText(t *testing.T) {
	b := newTestBuilder(t)

	got := b.Build(Response{Text: `Firma A & B <script>`}, Options{})

	assert.Contains(t, got, "Firma A &amp; B &lt;script&gt;")
	assert.True(t, Validate(got).Valid)
}

func TestBuild_OutputValidates(t *testing.T) {
	b := newTestBuilder(t)

	text := "Świetnie! Spotkanie w Monday o 14:30, budżet 1500 PLN. " +
		"Dashboard CRM pokazuje 50% wzrostu, a matematyka jest prosta. Wracamy z powrotem 2026-03-15."
	got := b.Build(Response{
		Text:    text,
		Emotion: &EmotionalContext{PrimaryEmotion: EmotionExcitement, Confidence: 0.8},
	}, Options{ResponseType: ResponseClient})

	rep := Validate(got)
	require.True(t, rep.Valid, rep.Error)
	assert.Empty(t, rep.Warnings)
	assert.Positive(t, rep.EstimatedDuration)
}

func TestBuild_ConcurrentCallsAgree(t *testing.T) {
	b := newTestBuilder(t)
	resp := Response{
		Text:    "Gratulacje! Cel osiągnięty o 9:00. Zostało 3 zadania i 22 PLN budżetu.",
		Emotion: &EmotionalContext{PrimaryEmotion: EmotionAchievement, Confidence: 0.9},
	}
	want := b.Build(resp, Options{})

	var wg sync.WaitGroup
	results := make([]string, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = b.Build(resp, Options{})
		}(i)
	}
	wg.Wait()

	for i, got := range results {
		assert.Equal(t, want, got, "goroutine %d", i)
	}
}

func TestNew_CopiesRules(t *testing.T) {
	rules := DefaultRules()
	b, err := New(rules, WithClock(func() time.Time { return fixedTime }))
	require.NoError(t, err)

	rules.Terms["dashboard"] = "changed"
	rules.Profiles[ProfileDefault] = Profile{Rate: 1}

	assert.Equal(t, DefaultRules().Terms["dashboard"], b.Rules().Terms["dashboard"])
	assert.Equal(t, 100, b.Rules().Profiles[ProfileDefault].Rate)
}

func TestNew_RejectsUnusableRules(t *testing.T) {
	noDefault := DefaultRules()
	delete(noDefault.Profiles, ProfileDefault)

	noRate := DefaultRules()
	noRate.WordsPerSecond = 0

	for name, rules := range map[string]RuleSet{"no default profile": noDefault, "no rate": noRate} {
		t.Run(name, func(t *testing.T) {
			_, err := New(rules)
			assert.Error(t, err)
		})
	}
}
