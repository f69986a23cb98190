package incident

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type AlertDefaults struct {
	Source  string            `yaml:"source"  validate:"required"`
	Entity  string            `yaml:"entity"`
	Tags    []string          `yaml:"tags"    validate:"dive,required"`
	Details map[string]string `yaml:"details" validate:"dive,keys,required,endkeys"`
}

func DefaultAlertDefaults() AlertDefaults {
	return AlertDefaults{
		Source: "Slack",
		Entity: "Slack Incident",
		Tags:   []string{"slack-incident"},
	}
}

// LoadAlertDefaults reads alert defaults from a YAML file. Fields left out of the
// file keep their built-in values. An empty path returns the built-in defaults.
func LoadAlertDefaults(path string) (AlertDefaults, error) {
	d := DefaultAlertDefaults()
	if path == "" {
		return d, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return AlertDefaults{}, fmt.Errorf("read alert defaults: %w", err)
	}

	if err := yaml.Unmarshal(data, &d); err != nil {
		return AlertDefaults{}, fmt.Errorf("parse YAML: %w", err)
	}

	if err := validator.New().Struct(d); err != nil {
		return AlertDefaults{}, fmt.Errorf("validation error: %w", err)
	}

	return d, nil
}
