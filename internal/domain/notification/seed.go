package notification

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/minutehq/usagewatch/internal/domain/anomaly"
)

type seedFile struct {
	Policies []seedPolicy `yaml:"policies"`
}

type seedPolicy struct {
	Severity    string   `yaml:"severity"`
	Channels    []string `yaml:"channels"`
	Cadence     string   `yaml:"cadence"`
	BatchWindow string   `yaml:"batch_window"`
}

// LoadPolicySeed reads a YAML routing table used in place of the built-in
// defaults when seeding an empty policy store. Durations use Go syntax
// ("5m", "1h").
func LoadPolicySeed(path string) ([]*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse policy seed: %w", err)
	}

	policies := make([]*Policy, 0, len(f.Policies))
	for _, sp := range f.Policies {
		p := &Policy{
			Severity: anomaly.Severity(sp.Severity),
			Cadence:  Cadence(sp.Cadence),
		}
		if !p.Severity.IsValid() {
			return nil, fmt.Errorf("unknown severity %q in policy seed", sp.Severity)
		}
		if !p.Cadence.IsValid() {
			return nil, fmt.Errorf("unknown cadence %q for severity %s", sp.Cadence, sp.Severity)
		}
		for _, c := range sp.Channels {
			ch := Channel(c)
			if !ch.IsValid() {
				return nil, fmt.Errorf("unknown channel %q for severity %s", c, sp.Severity)
			}
			p.Channels = append(p.Channels, ch)
		}
		if sp.BatchWindow != "" {
			w, err := time.ParseDuration(sp.BatchWindow)
			if err != nil {
				return nil, fmt.Errorf("parse batch window for severity %s: %w", sp.Severity, err)
			}
			p.BatchWindow = w
		}
		if p.Cadence == CadenceBatched && p.BatchWindow <= 0 {
			return nil, fmt.Errorf("batched policy for severity %s requires a batch window", sp.Severity)
		}
		policies = append(policies, p)
	}
	return policies, nil
}
