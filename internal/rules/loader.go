package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"auv-monitor/ingestion/internal/domain"
)

type ruleFile struct {
	Rules []domain.AlertRule `yaml:"rules"`
}

// LoadFile reads rule definitions from a YAML file. Structural errors
// in the file itself fail the load; individual bad rules are handled
// at compile time.
func LoadFile(path string) ([]domain.AlertRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}
	return f.Rules, nil
}
