package ssml

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExportSettings returns the builder's rule set as a plain key-value tree,
// suitable for JSON or YAML encoding.
func (b *Builder) ExportSettings() (map[string]any, error) {
	data, err := json.Marshal(b.rules)
	if err != nil {
		return nil, fmt.Errorf("encoding rules: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}
	return out, nil
}

// NewFromSettings builds a Builder whose rule set is entirely replaced by
// settings, typically the output of ExportSettings.
func NewFromSettings(settings map[string]any, opts ...Option) (*Builder, error) {
	data, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("encoding settings: %w", err)
	}
	var rules RuleSet
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rules); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	return New(rules, opts...)
}

// ParseRules decodes a YAML (or JSON) rule-set overlay. Unknown keys are
// rejected so typos do not silently fall back to defaults.
func ParseRules(data []byte) (RuleSet, error) {
	var rules RuleSet
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil && !errors.Is(err, io.EOF) {
		return RuleSet{}, fmt.Errorf("parsing rules: %w", err)
	}
	return rules, nil
}

// LoadRules reads an overlay file and merges it over DefaultRules. An empty
// path returns the defaults.
func LoadRules(path string) (RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleSet{}, fmt.Errorf("reading rules file %s: %w", path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return DefaultRules(), nil
	}
	overlay, err := ParseRules(data)
	if err != nil {
		return RuleSet{}, fmt.Errorf("rules file %s: %w", path, err)
	}
	return DefaultRules().Merge(overlay), nil
}

// MarshalRules encodes a rule set as "yaml" or "json".
func MarshalRules(rules RuleSet, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "json":
		return json.MarshalIndent(rules, "", "  ")
	case "yaml", "yml", "":
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(rules); err != nil {
			return nil, fmt.Errorf("encoding rules: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported rules format %q", format)
	}
}
