package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/GriffinCanCode/docshield/internal/domain/recovery"
)

// rulesFile is the on-disk layout of a recovery rules file:
//
//	rules:
//	  - kind: font_descriptor
//	    actions: [fallback, skip_file]
type rulesFile struct {
	Rules []recovery.Rule `yaml:"rules" toml:"rules"`
}

// LoadRules reads recovery rules from a YAML or TOML file, picked by
// extension.
func LoadRules(path string) ([]recovery.Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}

	var file rulesFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	case ".toml":
		err = toml.Unmarshal(data, &file)
	default:
		return nil, fmt.Errorf("rules file %s: unsupported extension %q", path, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse rules %s: %w", path, err)
	}
	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("rules file %s has no rules", path)
	}
	return file.Rules, nil
}

// RuleTable builds the default table and applies RulesFile on top of it.
func (c *Config) RuleTable() (*recovery.RuleTable, error) {
	table := recovery.DefaultRuleTable()
	if c.Recovery.RulesFile == "" {
		return table, nil
	}
	rules, err := LoadRules(c.Recovery.RulesFile)
	if err != nil {
		return nil, err
	}
	if err := table.Load(rules); err != nil {
		return nil, fmt.Errorf("rules file %s: %w", c.Recovery.RulesFile, err)
	}
	return table, nil
}
