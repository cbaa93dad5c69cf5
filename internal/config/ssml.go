package config

import (
	"slices"

	"github.com/nadzzz/cadence/internal/ssml"
)

// RuleSet loads the rules file (if any) over the built-in rules and applies
// the scalar overrides from the config.
func (c SSMLConfig) RuleSet() (ssml.RuleSet, error) {
	rules, err := ssml.LoadRules(c.RulesFile)
	if err != nil {
		return ssml.RuleSet{}, err
	}
	if c.Language != "" {
		rules.Language = c.Language
	}
	if c.WordsPerSecond > 0 {
		rules.WordsPerSecond = c.WordsPerSecond
	}
	if c.DefaultMaxDuration > 0 {
		rules.DefaultMaxDuration = c.DefaultMaxDuration
	}
	if c.Brand != "" && !slices.Contains(rules.KeepAcronyms, c.Brand) {
		rules.KeepAcronyms = append(rules.KeepAcronyms, c.Brand)
	}
	return rules, nil
}
