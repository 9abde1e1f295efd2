package alerting

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/logalert/internal/models"
)

// RulesFile is the YAML layout for importing rules.
type RulesFile struct {
	Rules []models.RuleInput `yaml:"rules"`
}

// LoadRuleInputsFromFile loads rule definitions from a YAML file.
func LoadRuleInputsFromFile(path string) ([]models.RuleInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()

	return LoadRuleInputs(f)
}

// LoadRuleInputs loads rule definitions from a reader. Every rule needs a name.
func LoadRuleInputs(r io.Reader) ([]models.RuleInput, error) {
	var file RulesFile
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	for i, in := range file.Rules {
		if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
			return nil, fmt.Errorf("invalid rule at index %d: name is required", i)
		}
	}

	return file.Rules, nil
}
