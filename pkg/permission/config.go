package permission

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ruleDocument is the on-disk shape of a permissions file.
type ruleDocument struct {
	Rules []Rule `yaml:"rules"`
}

// LoadRules reads a YAML rules file at path. A missing file yields an empty
// Guard, which permits every call until rules are actually configured.
func LoadRules(path string) (*Guard, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("permission: read %s: %w", path, err)
	}

	var doc ruleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("permission: parse %s: %w", path, err)
	}
	return New(doc.Rules), nil
}
