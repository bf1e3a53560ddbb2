// v0
// internal/catalog/catalog.go
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"nrgchamp/powerinsight/internal/model"
)

//go:embed catalog.yaml
var builtin []byte

// Entry is the rated operating envelope of a device type.
type Entry struct {
	Type     string         `yaml:"type" json:"type"`
	Category model.Category `yaml:"category" json:"category"`
	PowerMin float64        `yaml:"power_min" json:"custom_power_min"`
	PowerMax float64        `yaml:"power_max" json:"custom_power_max"`
}

type document struct {
	Version int     `yaml:"version"`
	Types   []Entry `yaml:"types"`
}

// Catalog maps device types to their envelope. Lookups ignore case.
type Catalog struct {
	entries []Entry
	byType  map[string]int
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(builtin)
}

// Load reads a catalog file. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and validates a YAML catalog.
func Parse(raw []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(doc.Types) == 0 {
		return nil, errors.New("catalog has no types")
	}
	c := &Catalog{byType: make(map[string]int, len(doc.Types))}
	for i, e := range doc.Types {
		e.Type = strings.TrimSpace(e.Type)
		if e.Type == "" {
			return nil, fmt.Errorf("entry %d: type cannot be empty", i)
		}
		if e.PowerMin < 0 || e.PowerMin > e.PowerMax {
			return nil, fmt.Errorf("entry %q: invalid power range [%g, %g]", e.Type, e.PowerMin, e.PowerMax)
		}
		key := strings.ToLower(e.Type)
		if _, dup := c.byType[key]; dup {
			return nil, fmt.Errorf("entry %q: duplicate type", e.Type)
		}
		c.byType[key] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

// Lookup returns the entry of a device type.
func (c *Catalog) Lookup(deviceType string) (Entry, bool) {
	i, ok := c.byType[strings.ToLower(strings.TrimSpace(deviceType))]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Entries returns every entry sorted by category then type.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// TypesOf lists the types filed under a category.
func (c *Catalog) TypesOf(cat model.Category) []string {
	out := make([]string, 0)
	for _, e := range c.Entries() {
		if e.Category == cat {
			out = append(out, e.Type)
		}
	}
	return out
}

// ApplyDefaults fills an unset operating envelope from the catalog. Devices
// with a manual override, or of unknown type, are returned unchanged.
func (c *Catalog) ApplyDefaults(d model.Device) model.Device {
	if d.CustomPowerMin != 0 || d.CustomPowerMax != 0 {
		return d
	}
	if e, ok := c.Lookup(d.Type); ok {
		d.CustomPowerMin = e.PowerMin
		d.CustomPowerMax = e.PowerMax
	}
	return d
}
