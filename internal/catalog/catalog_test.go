// v0
// internal/catalog/catalog_test.go
package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"nrgchamp/powerinsight/internal/model"
)

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	e, ok := c.Lookup("air conditioner")
	if !ok {
		t.Fatalf("expected Air Conditioner entry")
	}
	if e.Category != model.CategoryCooling || e.PowerMax != 2000 {
		t.Fatalf("unexpected entry %+v", e)
	}
	for _, entry := range c.Entries() {
		if entry.PowerMin > entry.PowerMax {
			t.Fatalf("entry %q has inverted range", entry.Type)
		}
	}
	if types := c.TypesOf(model.CategoryKitchen); len(types) == 0 {
		t.Fatalf("expected kitchen types")
	}
}

func TestParseRejectsInvalidCatalogs(t *testing.T) {
	cases := map[string]string{
		"empty":    "version: 1\ntypes: []\n",
		"inverted": "types:\n  - type: Oven\n    category: Kitchen\n    power_min: 10\n    power_max: 5\n",
		"dup":      "types:\n  - type: Oven\n    power_max: 5\n  - type: oven\n    power_max: 5\n",
		"unknown":  "types:\n  - type: Oven\n    watts: 5\n",
		"noname":   "types:\n  - category: Kitchen\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	raw := "version: 1\ntypes:\n  - type: Heat Pump\n    category: Cooling\n    power_min: 500\n    power_max: 3000\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := c.Lookup("Heat Pump"); !ok {
		t.Fatalf("expected Heat Pump entry")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	d := c.ApplyDefaults(model.Device{Type: "Kettle"})
	if d.CustomPowerMin != 1800 || d.CustomPowerMax != 3000 {
		t.Fatalf("expected kettle envelope, got %+v", d)
	}
	manual := model.Device{Type: "Kettle", CustomPowerMax: 2500}
	if got := c.ApplyDefaults(manual); got.CustomPowerMax != 2500 || got.CustomPowerMin != 0 {
		t.Fatalf("manual override must be kept, got %+v", got)
	}
	if got := c.ApplyDefaults(model.Device{Type: "Teleporter"}); got.CustomPowerMax != 0 {
		t.Fatalf("unknown type must be unchanged, got %+v", got)
	}
}
