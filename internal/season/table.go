package season

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// The on-disk season reference table is YAML keyed by species code, one entry
// per season with MM-DD start/end strings:
//
//	woothr:
//	  breeding: {start: 05-24, end: 08-09}
//	  nonbreeding: {start: 11-22, end: 03-08}
//	  prebreeding_migration: {start: 03-15, end: 05-17}
//	  postbreeding_migration: {start: 08-16, end: 11-15}
//
// A season omitted from the table, or present with null dates, failed review.

type tableEntry struct {
	Start *string `yaml:"start"`
	End   *string `yaml:"end"`
}

// LoadDefinitions reads the season reference table and returns the definition
// set for one species. The table being explicit input (rather than a global
// lookup) keeps the pipeline a pure function of its arguments.
func LoadDefinitions(path, species string) ([]Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("season: reading table %s: %w", path, err)
	}

	var table map[string]map[Name]tableEntry
	if err := yaml.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("season: parsing table %s: %w", path, err)
	}

	entries, ok := table[species]
	if !ok {
		return nil, fmt.Errorf("season: species %q not present in table %s", species, path)
	}

	defs := make([]Definition, 0, len(entries))
	// Fixed iteration order so validation errors are reported deterministically.
	for _, name := range AssignableNames {
		entry, ok := entries[name]
		if !ok {
			continue
		}
		def := Definition{Name: name}
		if entry.Start != nil {
			start, err := parseMonthDay(*entry.Start)
			if err != nil {
				return nil, &ConfigError{Species: species, Season: name, Reason: err.Error()}
			}
			def.Start = &start
		}
		if entry.End != nil {
			end, err := parseMonthDay(*entry.End)
			if err != nil {
				return nil, &ConfigError{Species: species, Season: name, Reason: err.Error()}
			}
			def.End = &end
		}
		defs = append(defs, def)
	}
	for name := range entries {
		if !name.Valid() {
			return nil, &ConfigError{Species: species, Season: name, Reason: "unsupported season name"}
		}
	}

	if err := Validate(species, defs); err != nil {
		return nil, err
	}
	return defs, nil
}

// parseMonthDay parses an "MM-DD" string.
func parseMonthDay(s string) (Date, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return Date{}, fmt.Errorf("date %q is not MM-DD", s)
	}
	month, err1 := strconv.Atoi(parts[0])
	day, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil || month < 1 || month > 12 || day < 1 || day > 31 {
		return Date{}, fmt.Errorf("date %q is not a valid MM-DD", s)
	}
	return Date{Month: time.Month(month), Day: day}, nil
}
