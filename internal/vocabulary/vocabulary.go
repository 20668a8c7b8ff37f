// Package vocabulary holds the versioned status lookup tables used during normalization.
package vocabulary

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// file is the YAML structure of a vocabulary document.
type file struct {
	Version       string              `yaml:"version"`
	PaymentStatus map[string][]string `yaml:"payment_status"`
}

// Table maps raw vendor status spellings to canonical statuses.
type Table struct {
	version string
	payment map[string]string
}

// Default returns the embedded vocabulary.
func Default() *Table {
	t, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("vocabulary: embedded table is invalid: %v", err))
	}
	return t
}

// Load reads a vocabulary file. An empty path returns the embedded default.
func Load(path string) (*Table, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary %s: %w", path, err)
	}
	t, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse vocabulary %s: %w", path, err)
	}
	return t, nil
}

// Parse decodes and validates a vocabulary document. Aliases are matched lower-cased
// and may map to only one canonical status.
func Parse(data []byte) (*Table, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Version == "" {
		return nil, fmt.Errorf("vocabulary: version is required")
	}

	t := &Table{version: f.Version, payment: make(map[string]string)}
	var errs []string

	canonicals := make([]string, 0, len(f.PaymentStatus))
	for c := range f.PaymentStatus {
		canonicals = append(canonicals, c)
	}
	sort.Strings(canonicals)

	for _, canonical := range canonicals {
		if canonical != strings.ToLower(canonical) {
			errs = append(errs, fmt.Sprintf("payment_status %q: canonical status must be lower-case", canonical))
			continue
		}
		for _, alias := range f.PaymentStatus[canonical] {
			key := strings.ToLower(alias)
			if prev, ok := t.payment[key]; ok && prev != canonical {
				errs = append(errs, fmt.Sprintf("payment_status alias %q maps to both %q and %q", alias, prev, canonical))
				continue
			}
			t.payment[key] = canonical
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("vocabulary validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return t, nil
}

// Version identifies the loaded table.
func (t *Table) Version() string { return t.version }

// PaymentStatus lower-cases raw and maps it to its canonical status. Unmapped values
// pass through lower-cased.
func (t *Table) PaymentStatus(raw string) string {
	s := strings.ToLower(raw)
	if c, ok := t.payment[s]; ok {
		return c
	}
	return s
}
