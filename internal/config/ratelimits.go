package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RateRule describes an allowance of requests per window.
type RateRule struct {
	Requests int           `yaml:"requests"`
	Per      time.Duration `yaml:"per"`
}

// RateLimits carries the default allowance plus per-route overrides keyed by
// route name.
type RateLimits struct {
	Default RateRule            `yaml:"default"`
	Routes  map[string]RateRule `yaml:"routes"`
}

// DefaultRateLimits mirrors the limits the service has always shipped with:
// 50 requests per hour by default, with tighter windows on the Vapi surface
// and a looser one for context lookups.
func DefaultRateLimits() RateLimits {
	return RateLimits{
		Default: RateRule{Requests: 50, Per: time.Hour},
		Routes: map[string]RateRule{
			"sync":    {Requests: 10, Per: time.Minute},
			"webhook": {Requests: 30, Per: time.Minute},
			"context": {Requests: 60, Per: time.Minute},
		},
	}
}

// LoadRateLimits reads overrides from a YAML file. Rules absent from the file
// keep their defaults; a zero-value rule in the file is rejected.
func LoadRateLimits(path string) (RateLimits, error) {
	limits := DefaultRateLimits()
	if path == "" {
		return limits, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return RateLimits{}, fmt.Errorf("read rate limits file: %w", err)
	}

	var overrides RateLimits
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return RateLimits{}, fmt.Errorf("parse rate limits file: %w", err)
	}

	if overrides.Default.Requests != 0 || overrides.Default.Per != 0 {
		if err := validateRule("default", overrides.Default); err != nil {
			return RateLimits{}, err
		}
		limits.Default = overrides.Default
	}
	for name, rule := range overrides.Routes {
		if err := validateRule(name, rule); err != nil {
			return RateLimits{}, err
		}
		limits.Routes[name] = rule
	}
	return limits, nil
}

func validateRule(name string, rule RateRule) error {
	if rule.Requests <= 0 {
		return fmt.Errorf("rate rule %s: requests must be positive", name)
	}
	if rule.Per <= 0 {
		return fmt.Errorf("rate rule %s: window must be positive", name)
	}
	return nil
}
