package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/damon-houk/subly-resolution-service/internal/domain/entity"
)

//go:embed icon_hints.json
var defaultIconHints []byte

// DefaultIconHints returns the built-in keyword, alias and category tables
func DefaultIconHints() entity.IconHintTable {
	table, err := parseIconHints(defaultIconHints)
	if err != nil {
		panic(fmt.Sprintf("embedded icon hints are invalid: %v", err))
	}
	return table
}

// LoadIconHints reads a hint table from path, or returns the built-in
// table when path is empty
func LoadIconHints(path string) (entity.IconHintTable, error) {
	if path == "" {
		return DefaultIconHints(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return entity.IconHintTable{}, fmt.Errorf("failed to read icon hints: %w", err)
	}
	return parseIconHints(data)
}

func parseIconHints(data []byte) (entity.IconHintTable, error) {
	var table entity.IconHintTable
	if err := json.Unmarshal(data, &table); err != nil {
		return entity.IconHintTable{}, fmt.Errorf("failed to decode icon hints: %w", err)
	}

	for i, hint := range table.Keywords {
		if hint.Keyword == "" || hint.Icon == "" {
			return entity.IconHintTable{}, fmt.Errorf("keyword hint %d needs a keyword and an icon", i)
		}
	}
	for i, alias := range table.Aliases {
		if alias.Key == "" || len(alias.Aliases) == 0 {
			return entity.IconHintTable{}, fmt.Errorf("alias %d needs a key and at least one alias", i)
		}
	}
	return table, nil
}
