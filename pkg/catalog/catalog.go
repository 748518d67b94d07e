// Package catalog provides the static menu the ordering dialogue reads from
// when a caller asks what is on offer.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/voiceloop/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Default returns the built-in Wax menu, in the order it is read out.
func Default() []domain.CatalogItem {
	return []domain.CatalogItem{
		{Key: "burger", Field: "food", Name: "Wax burger"},
		{Key: "french_fries", Field: "food", Name: "Wax fries"},
		{Key: "coke", Field: "drink", Name: "Wax coke"},
		{Key: "milkshake", Field: "drink", Name: "Wax milkshake"},
	}
}

type document struct {
	Menu []domain.CatalogItem `yaml:"menu"`
}

// Load reads a menu file. An empty path yields the default menu.
func Load(path string) ([]domain.CatalogItem, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read menu: %w", err)
	}
	items, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return items, nil
}

// Parse decodes a YAML document with a top-level menu list.
//
//	menu:
//	  - key: burger
//	    field: food
//	    name: Wax burger
func Parse(data []byte) ([]domain.CatalogItem, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid menu: %w", err)
	}
	if len(doc.Menu) == 0 {
		return nil, errors.New("invalid menu: no items")
	}

	seen := make(map[string]bool, len(doc.Menu))
	for i, item := range doc.Menu {
		if item.Key == "" || item.Name == "" {
			return nil, fmt.Errorf("invalid menu: item %d needs a key and a name", i)
		}
		if seen[item.Key] {
			return nil, fmt.Errorf("invalid menu: duplicate key %q", item.Key)
		}
		seen[item.Key] = true
	}
	return doc.Menu, nil
}
