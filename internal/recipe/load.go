package recipe

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed recipes/implement-and-review.yaml
var defaultRecipeYAML []byte

// Library holds recipes loaded at startup, keyed by ID. The set of
// recipes is data, not a fixed contract: operators add recipes by
// dropping YAML files into the configured directory.
type Library struct {
	recipes map[string]*Recipe
}

// LoadLibrary parses the bundled default recipe plus every *.yaml/*.yml
// file in dir (if dir is non-empty and exists). A recipe that fails
// Validate is rejected from the library with a logged reason rather than
// aborting startup, per "any violation fails recipe selection" (selection
// of that one recipe, not the whole library).
func LoadLibrary(dir string) (*Library, []error) {
	lib := &Library{recipes: make(map[string]*Recipe)}
	var errs []error

	if r, err := parseRecipe(defaultRecipeYAML); err != nil {
		errs = append(errs, fmt.Errorf("bundled default recipe: %w", err))
	} else {
		lib.recipes[r.ID] = r
	}

	if dir == "" {
		return lib, errs
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return lib, errs
		}
		return lib, append(errs, fmt.Errorf("reading recipe directory %s: %w", dir, err))
	}

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			errs = append(errs, fmt.Errorf("reading %s: %w", name, err))
			continue
		}
		r, err := parseRecipe(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		lib.recipes[r.ID] = r
	}
	return lib, errs
}

func parseRecipe(data []byte) (*Recipe, error) {
	var r Recipe
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing yaml: %w", err)
	}
	if err := Validate(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (l *Library) Get(id string) (*Recipe, bool) {
	r, ok := l.recipes[id]
	return r, ok
}

func (l *Library) IDs() []string {
	ids := make([]string, 0, len(l.recipes))
	for id := range l.recipes {
		ids = append(ids, id)
	}
	return ids
}
