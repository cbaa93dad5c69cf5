package ssml

import (
	"fmt"
	"maps"
	"slices"
)

// Emotion is the primary emotion a caller attaches to a response.
type Emotion string

const (
	EmotionExcitement  Emotion = "excitement"
	EmotionStress      Emotion = "stress"
	EmotionAchievement Emotion = "achievement"
	EmotionFrustration Emotion = "frustration"
	EmotionNeutral     Emotion = "neutral"
)

// Known reports whether e is one of the emotions with dedicated rules.
func (e Emotion) Known() bool {
	switch e {
	case EmotionExcitement, EmotionStress, EmotionAchievement, EmotionFrustration, EmotionNeutral:
		return true
	}
	return false
}

// Volume is the prosody volume attribute.
type Volume string

const (
	VolumeSoft   Volume = "soft"
	VolumeMedium Volume = "medium"
	VolumeLoud   Volume = "loud"
)

// EmphasisLevel is the SSML emphasis level attribute.
type EmphasisLevel string

const (
	EmphasisStrong   EmphasisLevel = "strong"
	EmphasisModerate EmphasisLevel = "moderate"
	EmphasisReduced  EmphasisLevel = "reduced"
	EmphasisNone     EmphasisLevel = "none"
)

// Profile is a named bundle of prosody and emphasis defaults.
type Profile struct {
	// Rate is the speaking rate in percent of normal speed.
	Rate int `yaml:"rate" json:"rate"`

	// Pitch is a signed pitch shift in percent.
	Pitch int `yaml:"pitch" json:"pitch"`

	Volume        Volume        `yaml:"volume" json:"volume"`
	EmphasisLevel EmphasisLevel `yaml:"emphasis_level" json:"emphasis_level"`
}

// Profile names known to the selector.
const (
	ProfileDefault      = "default"
	ProfileEnergetic    = "energetic"
	ProfileCalming      = "calming"
	ProfileProfessional = "professional"
	ProfileMotivational = "motivational"
)

// Currency holds the spoken forms of a currency name for each plural category.
type Currency struct {
	One      string `yaml:"one" json:"one"`
	Few      string `yaml:"few" json:"few"`
	Many     string `yaml:"many" json:"many"`
	Fraction string `yaml:"fraction" json:"fraction"`
}

// PluralCategory is the grammatical number form selected for a numeral.
type PluralCategory string

const (
	PluralOne      PluralCategory = "one"
	PluralFew      PluralCategory = "few"
	PluralMany     PluralCategory = "many"
	PluralFraction PluralCategory = "fraction"
)

// PluralRule selects the grammatical form agreeing with a numeral.
//
// A value listed in One selects the singular form. A value whose last digit
// is in FewMod10 and whose last two digits fall outside
// [ExcludeMod100Min, ExcludeMod100Max] selects the "few" form. Everything else
// is "many".
type PluralRule struct {
	One              []int64 `yaml:"one" json:"one"`
	FewMod10         []int64 `yaml:"few_mod10" json:"few_mod10"`
	ExcludeMod100Min int64   `yaml:"exclude_mod100_min" json:"exclude_mod100_min"`
	ExcludeMod100Max int64   `yaml:"exclude_mod100_max" json:"exclude_mod100_max"`
}

// Select returns the plural category for n.
func (r PluralRule) Select(n int64) PluralCategory {
	if n < 0 {
		n = -n
	}
	if slices.Contains(r.One, n) {
		return PluralOne
	}
	mod100 := n % 100
	if slices.Contains(r.FewMod10, n%10) && (mod100 < r.ExcludeMod100Min || mod100 > r.ExcludeMod100Max) {
		return PluralFew
	}
	return PluralMany
}

// Pauses are break durations inserted at sentence and clause boundaries.
type Pauses struct {
	Sentence string `yaml:"sentence" json:"sentence"`
	Clause   string `yaml:"clause" json:"clause"`
}

// RuleSet is the complete, serializable configuration of the pipeline.
// A Builder copies it at construction and never modifies it afterwards.
type RuleSet struct {
	Language string             `yaml:"language" json:"language"`
	Profiles map[string]Profile `yaml:"profiles" json:"profiles"`

	// Cardinals maps 0..99 to words. Missing two-digit values are composed
	// from the tens entry and the units entry.
	Cardinals map[string]string `yaml:"cardinals" json:"cardinals"`
	Ordinals  map[string]string `yaml:"ordinals" json:"ordinals"`
	Percent   string            `yaml:"percent" json:"percent"`
	Weekdays  map[string]string `yaml:"weekdays" json:"weekdays"`

	// Acronyms are spelled out character by character. KeepAcronyms are
	// passed through unchanged even when also listed in Acronyms.
	Acronyms     []string          `yaml:"acronyms" json:"acronyms"`
	KeepAcronyms []string          `yaml:"keep_acronyms" json:"keep_acronyms"`
	Terms        map[string]string `yaml:"terms" json:"terms"`

	Currencies map[string]Currency `yaml:"currencies" json:"currencies"`
	Plural     PluralRule          `yaml:"plural" json:"plural"`

	Keywords map[Emotion][]string `yaml:"keywords" json:"keywords"`
	Pauses   map[Emotion]Pauses   `yaml:"pauses" json:"pauses"`

	StressWords map[string]string `yaml:"stress_words" json:"stress_words"`
	Clusters    map[string]string `yaml:"clusters" json:"clusters"`
	Liaisons    map[string]string `yaml:"liaisons" json:"liaisons"`

	BreathingPause string `yaml:"breathing_pause" json:"breathing_pause"`
	CoalescedPause string `yaml:"coalesced_pause" json:"coalesced_pause"`

	WordsPerSecond     float64 `yaml:"words_per_second" json:"words_per_second"`
	DefaultMaxDuration float64 `yaml:"default_max_duration" json:"default_max_duration"`
	TruncationReserve  int     `yaml:"truncation_reserve" json:"truncation_reserve"`
	TruncationSuffix   string  `yaml:"truncation_suffix" json:"truncation_suffix"`
	FormatVersion      string  `yaml:"format_version" json:"format_version"`
}

// DefaultRules returns the built-in Polish rule set.
func DefaultRules() RuleSet {
	return RuleSet{
		Language: "pl-PL",
		Profiles: map[string]Profile{
			ProfileDefault:      {Rate: 100, Pitch: 0, Volume: VolumeMedium, EmphasisLevel: EmphasisModerate},
			ProfileEnergetic:    {Rate: 110, Pitch: 5, Volume: VolumeLoud, EmphasisLevel: EmphasisStrong},
			ProfileCalming:      {Rate: 90, Pitch: -5, Volume: VolumeSoft, EmphasisLevel: EmphasisReduced},
			ProfileProfessional: {Rate: 95, Pitch: 0, Volume: VolumeMedium, EmphasisLevel: EmphasisModerate},
			ProfileMotivational: {Rate: 105, Pitch: 3, Volume: VolumeLoud, EmphasisLevel: EmphasisStrong},
		},
		Cardinals: map[string]string{
			"0": "zero", "1": "jeden", "2": "dwa", "3": "trzy", "4": "cztery",
			"5": "pięć", "6": "sześć", "7": "siedem", "8": "osiem", "9": "dziewięć",
			"10": "dziesięć", "11": "jedenaście", "12": "dwanaście", "13": "trzynaście",
			"14": "czternaście", "15": "piętnaście", "16": "szesnaście", "17": "siedemnaście",
			"18": "osiemnaście", "19": "dziewiętnaście",
			"20": "dwadzieścia", "30": "trzydzieści", "40": "czterdzieści", "50": "pięćdziesiąt",
			"60": "sześćdziesiąt", "70": "siedemdziesiąt", "80": "osiemdziesiąt", "90": "dziewięćdziesiąt",
		},
		Ordinals: map[string]string{
			"1": "pierwszy", "2": "drugi", "3": "trzeci", "4": "czwarty", "5": "piąty",
			"6": "szósty", "7": "siódmy", "8": "ósmy", "9": "dziewiąty", "10": "dziesiąty",
		},
		Percent: "procent",
		Weekdays: map[string]string{
			"monday": "poniedziałek", "tuesday": "wtorek", "wednesday": "środa",
			"thursday": "czwartek", "friday": "piątek", "saturday": "sobota", "sunday": "niedziela",
		},
		Acronyms:     []string{"CRM", "API", "CEO", "IT", "KPI", "ROI", "URL", "AI", "SMS", "PDF", "HR", "B2B", "SORTO"},
		KeepAcronyms: []string{"SORTO"},
		Terms: map[string]string{
			"dashboard":  "ˈdɛʃbɔrt",
			"workflow":   "ˈwɔrkflɔw",
			"deadline":   "ˈdɛdlajn",
			"pipeline":   "ˈpajplajn",
			"feedback":   "ˈfidbɛk",
			"email":      "ˈimɛjl",
			"onboarding": "ɔnˈbɔrdiŋk",
		},
		Currencies: map[string]Currency{
			"PLN": {One: "złoty", Few: "złote", Many: "złotych", Fraction: "złotego"},
			"zł":  {One: "złoty", Few: "złote", Many: "złotych", Fraction: "złotego"},
			"EUR": {One: "euro", Few: "euro", Many: "euro", Fraction: "euro"},
			"USD": {One: "dolar", Few: "dolary", Many: "dolarów", Fraction: "dolara"},
			"GBP": {One: "funt", Few: "funty", Many: "funtów", Fraction: "funta"},
		},
		Plural: PluralRule{
			One:              []int64{1},
			FewMod10:         []int64{2, 3, 4},
			ExcludeMod100Min: 10,
			ExcludeMod100Max: 20,
		},
		Keywords: map[Emotion][]string{
			EmotionExcitement:  {"świetnie", "doskonale", "wspaniale", "super", "brawo", "gratulacje"},
			EmotionAchievement: {"gratulacje", "sukces", "osiągnięcie", "ukończone", "zrealizowane", "cel"},
			EmotionStress:      {"spokojnie", "powoli", "krok po kroku", "pomogę", "razem"},
			EmotionFrustration: {"rozumiem", "przepraszam", "rozwiążemy", "pomogę"},
			EmotionNeutral:     {"ważne", "pilne", "termin"},
		},
		Pauses: map[Emotion]Pauses{
			EmotionStress:      {Sentence: "800ms", Clause: "400ms"},
			EmotionFrustration: {Sentence: "800ms", Clause: "400ms"},
			EmotionExcitement:  {Sentence: "300ms", Clause: "150ms"},
			EmotionAchievement: {Sentence: "300ms", Clause: "150ms"},
			EmotionNeutral:     {Sentence: "500ms", Clause: "250ms"},
		},
		StressWords: map[string]string{
			"matematyka":  "matɛˈmatɨka",
			"fizyka":      "ˈfizɨka",
			"muzyka":      "ˈmuzɨka",
			"polityka":    "pɔˈlitɨka",
			"statystyka":  "staˈtɨstɨka",
			"logistyka":   "lɔˈɡistɨka",
			"technika":    "ˈtɛxɲika",
			"uniwersytet": "uɲiˈvɛrsɨtɛt",
		},
		Clusters: map[string]string{
			"chrząszcz":     "xʂɔ̃ʂt͡ʂ",
			"szczebrzeszyn": "ʂt͡ʂɛˈbʐɛʂɨn",
			"źdźbło":        "ˈʑd͡ʑbwɔ",
			"bezwzględny":   "bɛzˈvzɡlɛndnɨ",
			"pszczoła":      "ˈpʂt͡ʂɔwa",
			"wszczęcie":     "ˈfʂt͡ʂɛ̃t͡ɕɛ",
		},
		Liaisons: map[string]string{
			"z powrotem":       "spowrotem",
			"od razu":          "odrazu",
			"w ogóle":          "wogóle",
			"przede wszystkim": "przedewszystkim",
			"na pewno":         "napewno",
		},
		BreathingPause:     "1s",
		CoalescedPause:     "1s",
		WordsPerSecond:     3,
		DefaultMaxDuration: 60,
		TruncationReserve:  10,
		TruncationSuffix:   "Więcej szczegółów mogę podać na życzenie.",
		FormatVersion:      "ssml/1.1",
	}
}

// Clone returns a deep copy of r.
func (r RuleSet) Clone() RuleSet {
	c := r
	c.Profiles = maps.Clone(r.Profiles)
	c.Cardinals = maps.Clone(r.Cardinals)
	c.Ordinals = maps.Clone(r.Ordinals)
	c.Weekdays = maps.Clone(r.Weekdays)
	c.Acronyms = slices.Clone(r.Acronyms)
	c.KeepAcronyms = slices.Clone(r.KeepAcronyms)
	c.Terms = maps.Clone(r.Terms)
	c.Currencies = maps.Clone(r.Currencies)
	c.Plural.One = slices.Clone(r.Plural.One)
	c.Plural.FewMod10 = slices.Clone(r.Plural.FewMod10)
	if r.Keywords != nil {
		c.Keywords = make(map[Emotion][]string, len(r.Keywords))
		for k, v := range r.Keywords {
			c.Keywords[k] = slices.Clone(v)
		}
	}
	c.Pauses = maps.Clone(r.Pauses)
	c.StressWords = maps.Clone(r.StressWords)
	c.Clusters = maps.Clone(r.Clusters)
	c.Liaisons = maps.Clone(r.Liaisons)
	return c
}

// Merge returns a copy of r with every non-zero field of overlay applied on
// top. Map entries are merged key by key; slices are replaced wholesale.
func (r RuleSet) Merge(overlay RuleSet) RuleSet {
	out := r.Clone()
	o := overlay.Clone()

	if o.Language != "" {
		out.Language = o.Language
	}
	out.Profiles = mergeMap(out.Profiles, o.Profiles)
	out.Cardinals = mergeMap(out.Cardinals, o.Cardinals)
	out.Ordinals = mergeMap(out.Ordinals, o.Ordinals)
	if o.Percent != "" {
		out.Percent = o.Percent
	}
	out.Weekdays = mergeMap(out.Weekdays, o.Weekdays)
	if o.Acronyms != nil {
		out.Acronyms = o.Acronyms
	}
	if o.KeepAcronyms != nil {
		out.KeepAcronyms = o.KeepAcronyms
	}
	out.Terms = mergeMap(out.Terms, o.Terms)
	out.Currencies = mergeMap(out.Currencies, o.Currencies)
	if o.Plural.One != nil || o.Plural.FewMod10 != nil {
		out.Plural = o.Plural
	}
	out.Keywords = mergeMap(out.Keywords, o.Keywords)
	out.Pauses = mergeMap(out.Pauses, o.Pauses)
	out.StressWords = mergeMap(out.StressWords, o.StressWords)
	out.Clusters = mergeMap(out.Clusters, o.Clusters)
	out.Liaisons = mergeMap(out.Liaisons, o.Liaisons)
	if o.BreathingPause != "" {
		out.BreathingPause = o.BreathingPause
	}
	if o.CoalescedPause != "" {
		out.CoalescedPause = o.CoalescedPause
	}
	if o.WordsPerSecond != 0 {
		out.WordsPerSecond = o.WordsPerSecond
	}
	if o.DefaultMaxDuration != 0 {
		out.DefaultMaxDuration = o.DefaultMaxDuration
	}
	if o.TruncationReserve != 0 {
		out.TruncationReserve = o.TruncationReserve
	}
	if o.TruncationSuffix != "" {
		out.TruncationSuffix = o.TruncationSuffix
	}
	if o.FormatVersion != "" {
		out.FormatVersion = o.FormatVersion
	}
	return out
}

func mergeMap[K comparable, V any](base, overlay map[K]V) map[K]V {
	if len(overlay) == 0 {
		return base
	}
	if base == nil {
		base = make(map[K]V, len(overlay))
	}
	maps.Copy(base, overlay)
	return base
}

// check reports configuration errors that would make the pipeline unusable.
func (r RuleSet) check() error {
	if _, ok := r.Profiles[ProfileDefault]; !ok {
		return fmt.Errorf("rule set has no %q profile", ProfileDefault)
	}
	for name, p := range r.Profiles {
		if p.Rate <= 0 {
			return fmt.Errorf("profile %q: rate must be positive, got %d", name, p.Rate)
		}
	}
	if r.WordsPerSecond <= 0 {
		return fmt.Errorf("words_per_second must be positive, got %v", r.WordsPerSecond)
	}
	if r.TruncationReserve < 0 {
		return fmt.Errorf("truncation_reserve must not be negative, got %d", r.TruncationReserve)
	}
	if _, ok := r.Pauses[EmotionNeutral]; !ok {
		return fmt.Errorf("rule set has no pauses for %q", EmotionNeutral)
	}
	return nil
}
