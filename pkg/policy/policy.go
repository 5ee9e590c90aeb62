package policy

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edgefleet/logship/pkg/logtypes"
)

// DefaultRate applies when a level has no entry in the policy's base
// rates and no content rule matches.
const DefaultRate = 0.1

// ContentRule overrides the base rate for messages containing Pattern.
// Rules are an ordered sequence and the first match wins; order is
// semantically load-bearing, which is why this is a slice and not a map.
type ContentRule struct {
	Pattern string  `json:"pattern" yaml:"pattern"`
	Rate    float64 `json:"rate" yaml:"rate"`
}

// Policy is one immutable sampling-policy snapshot. A Policy is never
// mutated after construction; configuration reload replaces the whole
// snapshot through Store.Swap.
type Policy struct {
	Version      string                     `json:"version" yaml:"version"`
	BaseRates    map[logtypes.Level]float64 `json:"base_rates" yaml:"base_rates"`
	ContentRules []ContentRule              `json:"content_rules" yaml:"content_rules"`
}

// policyDocument is the shape of the config service payload.
type policyDocument struct {
	Version  string `yaml:"version"`
	Sampling struct {
		BaseRates    map[string]float64 `yaml:"base_rates"`
		ContentRules []ContentRule      `yaml:"content_rules"`
	} `yaml:"sampling"`
}

// ParsePolicy decodes a serialized policy document. A decode failure
// returns an error and no policy; callers keep whatever snapshot they
// already hold, so a malformed payload can never be partially applied.
func ParsePolicy(payload []byte) (*Policy, error) {
	var doc policyDocument
	if err := yaml.Unmarshal(payload, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode policy payload: %w", err)
	}

	rates := make(map[logtypes.Level]float64, len(doc.Sampling.BaseRates))
	for level, rate := range doc.Sampling.BaseRates {
		rates[logtypes.Level(level)] = rate
	}

	return &Policy{
		Version:      doc.Version,
		BaseRates:    rates,
		ContentRules: doc.Sampling.ContentRules,
	}, nil
}

// Default returns the built-in policy used until the first successful
// config fetch: keep everything above DEBUG, sample DEBUG lightly.
func Default() *Policy {
	return &Policy{
		Version: "builtin",
		BaseRates: map[logtypes.Level]float64{
			logtypes.LevelDebug: 0.1,
			logtypes.LevelInfo:  1.0,
			logtypes.LevelWarn:  1.0,
			logtypes.LevelError: 1.0,
		},
	}
}

// Rate resolves the effective sampling rate for a record: the first
// content rule whose pattern appears in message wins, otherwise the
// level's base rate, otherwise DefaultRate.
func (p *Policy) Rate(level logtypes.Level, message string) float64 {
	rate, ok := p.BaseRates[level]
	if !ok {
		rate = DefaultRate
	}
	for _, rule := range p.ContentRules {
		if rule.Pattern != "" && strings.Contains(message, rule.Pattern) {
			return rule.Rate
		}
	}
	return rate
}
