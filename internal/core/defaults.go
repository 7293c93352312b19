package core

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultGroup is one parent of the bootstrap category tree.
type DefaultGroup struct {
	Name     string       `yaml:"name"`
	Type     CategoryType `yaml:"type"`
	Children []string     `yaml:"children"`
}

// DefaultCategories returns the category tree every new user starts with.
func DefaultCategories() ([]DefaultGroup, error) {
	var doc struct {
		Groups []DefaultGroup `yaml:"groups"`
	}
	if err := yaml.Unmarshal(defaultsYAML, &doc); err != nil {
		return nil, fmt.Errorf("parse default categories: %w", err)
	}
	for _, g := range doc.Groups {
		if err := (Category{Name: g.Name, Type: g.Type}).Validate(); err != nil {
			return nil, fmt.Errorf("default group %q: %w", g.Name, err)
		}
	}
	return doc.Groups, nil
}
