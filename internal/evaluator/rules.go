package evaluator

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/pulsewatch/pulse-alerting/internal/models"
)

// RulePackFile is the YAML root structure for a rule pack.
type RulePackFile struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRulePack reads rules from a YAML file. An empty path or a missing
// file yields an empty pack; malformed rules are rejected.
func LoadRulePack(path string) ([]Rule, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read rule pack: %w", err)
	}

	var file RulePackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rule pack: %w", err)
	}

	for i, rule := range file.Rules {
		if err := validateRule(rule); err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, rule.ID, err)
		}
	}
	return file.Rules, nil
}

func validateRule(rule Rule) error {
	if rule.MetricKey == "" {
		return errors.New("metricKey is required")
	}
	if rule.Condition != nil {
		switch rule.Condition.Operator {
		case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessThanOrEqual:
		default:
			return fmt.Errorf("unknown operator %q", rule.Condition.Operator)
		}
	} else if rule.Direction != "" && rule.Direction != "above" && rule.Direction != "below" {
		return fmt.Errorf("unknown direction %q", rule.Direction)
	}
	if rule.Severity != "" && !models.ValidSeverity(rule.Severity) {
		return fmt.Errorf("unknown severity %q", rule.Severity)
	}
	return nil
}
