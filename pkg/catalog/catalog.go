// pkg/catalog/catalog.go
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var knownTypes = map[string]bool{
	"api":       true,
	"bot":       true,
	"local_ai":  true,
	"custom_ai": true,
}

// Catalog is a versioned list of backends to seed into a registry.
type Catalog struct {
	Version     string  `json:"version"`
	LastUpdated string  `json:"lastUpdated"`
	Backends    []Entry `json:"backends"`
}

type Entry struct {
	Name             string                 `json:"name"`
	Type             string                 `json:"type"`
	Description      string                 `json:"description"`
	PerformanceScore float64                `json:"performance_score"`
	Config           map[string]interface{} `json:"config"`
	Tags             []string               `json:"tags,omitempty"`
}

func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &c, nil
}

// Save writes the catalog as indented JSON, creating parent directories.
func Save(c *Catalog, path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}
	return nil
}

// Find returns the entry named name, or nil.
func (c *Catalog) Find(name string) *Entry {
	for i := range c.Backends {
		if c.Backends[i].Name == name {
			return &c.Backends[i]
		}
	}
	return nil
}

// Validate reports the first structural problem in the catalog.
func (c *Catalog) Validate() error {
	if len(c.Backends) == 0 {
		return fmt.Errorf("catalog contains no backends")
	}

	names := make(map[string]bool, len(c.Backends))
	for i, e := range c.Backends {
		if e.Name == "" {
			return fmt.Errorf("backend %d missing required field: name", i)
		}
		if names[e.Name] {
			return fmt.Errorf("duplicate backend name: %s", e.Name)
		}
		names[e.Name] = true

		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (e Entry) Validate() error {
	if !knownTypes[e.Type] {
		return fmt.Errorf("backend %s has unknown type %q", e.Name, e.Type)
	}
	if e.PerformanceScore < 0 {
		return fmt.Errorf("backend %s has negative performance_score", e.Name)
	}
	if e.Type != "api" {
		return nil
	}

	endpoint, _ := e.Config["endpoint"].(string)
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		return fmt.Errorf("backend %s: api backends need an http(s) endpoint", e.Name)
	}
	if _, ok := e.Config["api_key"].(string); !ok {
		return fmt.Errorf("backend %s: api backends need an api_key", e.Name)
	}
	return nil
}
