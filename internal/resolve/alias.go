package resolve

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AliasTable maps a normalized shorthand string to one or more expansion
// phrases. It is loaded once at startup and never mutated afterwards, so
// lookups are safe without synchronization. Extending the table is a
// configuration change, not a code change.
type AliasTable struct {
	entries map[string][]string
}

// NewAliasTable builds a table from a literal mapping. Keys and expansions
// are normalized on the way in so lookups never depend on the source
// spelling.
func NewAliasTable(entries map[string][]string) *AliasTable {
	normalized := make(map[string][]string, len(entries))
	for key, expansions := range entries {
		nk := Normalize(key)
		if nk == "" {
			continue
		}
		phrases := make([]string, 0, len(expansions))
		for _, phrase := range expansions {
			if np := Normalize(phrase); np != "" {
				phrases = append(phrases, np)
			}
		}
		normalized[nk] = phrases
	}
	return &AliasTable{entries: normalized}
}

// LoadAliasTable reads a YAML document of shorthand -> expansion phrases.
func LoadAliasTable(path string) (*AliasTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading alias table: %w", err)
	}

	var entries map[string][]string
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing alias table: %w", err)
	}
	return NewAliasTable(entries), nil
}

// DefaultAliasTable returns the built-in shorthand set for common event
// nicknames. Deployments extend or replace it through configuration.
func DefaultAliasTable() *AliasTable {
	return NewAliasTable(map[string][]string{
		"glp":   {"glacier peak"},
		"osf":   {"oregon state fair"},
		"pncmp": {"pacific northwest championship", "district championship"},
		"cc":    {"chezy champs"},
		"bb":    {"beach blitz"},
	})
}

// Expand returns the query-variant set for a normalized query: the query
// itself first, then every alias expansion in table order. Variant order is
// stable, which keeps scoring deterministic.
func (t *AliasTable) Expand(normalizedQuery string) []string {
	variants := []string{normalizedQuery}
	if t == nil {
		return variants
	}
	return append(variants, t.entries[normalizedQuery]...)
}

// Len returns the number of shorthand entries.
func (t *AliasTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}
