package application

import (
	"errors"
	"os"

	"gopkg.in/yaml.v3"
)

// RuleConfig holds the drop-detection thresholds. Defaults match the shipped
// rule set; a YAML file named by ANOMALY_RULES_CONFIG overrides them.
type RuleConfig struct {
	TriggerPercent float64 `yaml:"trigger_percent"`
	WindowDays     int     `yaml:"window_days"`
}

// DefaultRuleConfig returns the shipped thresholds.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		TriggerPercent: 40,
		WindowDays:     7,
	}
}

// LoadRuleConfig loads thresholds from yaml when ANOMALY_RULES_CONFIG is set.
func LoadRuleConfig() (RuleConfig, error) {
	cfg := DefaultRuleConfig()

	if path := os.Getenv("ANOMALY_RULES_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks threshold invariants.
func (c RuleConfig) Validate() error {
	if c.TriggerPercent <= 0 || c.TriggerPercent > 100 {
		return errors.New("anomaly config: trigger_percent must be in (0, 100]")
	}
	if c.WindowDays <= 0 {
		return errors.New("anomaly config: window_days must be positive")
	}
	return nil
}
