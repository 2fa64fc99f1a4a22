// Package roster provides computer-opponent templates loaded from YAML.
package roster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template defines a reusable computer opponent.
type Template struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"` // empty = "Bot"
	ImageURL    string `yaml:"image_url"`
	// Taunt names a Lua script whose taunt hook narrates the bot's banter;
	// empty means a silent bot. Declarations are always uniformly random.
	Taunt string `yaml:"taunt"`
}

// Validate checks that the template satisfies basic invariants.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff ID and Name are non-empty and ID has no whitespace.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("bot template: id must not be empty")
	}
	if strings.ContainsAny(t.ID, " \t\r\n") {
		return fmt.Errorf("bot template %q: id must not contain whitespace", t.ID)
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("bot template %q: name must not be empty", t.ID)
	}
	return nil
}

// LoadTemplateFromBytes parses a single bot template from raw YAML bytes.
//
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return nil, fmt.Errorf("parsing template YAML: %w", err)
	}
	if err := tmpl.Validate(); err != nil {
		return nil, err
	}
	return &tmpl, nil
}

// LoadTemplates reads all *.yaml files in dir and returns the parsed templates.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns all templates or an error on the first parse or validate
// failure; on error, the partial result is discarded.
func LoadTemplates(dir string) ([]*Template, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading bot dir %q: %w", dir, err)
	}

	var templates []*Template
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}

		tmpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		templates = append(templates, tmpl)
	}
	return templates, nil
}
