// Package recipes holds the data-driven crafting table.
//
// Recipes are loaded from recipes.yaml. Lookup is an exact match on
// (action, sorted inputs, technique); misses produce hints derived from
// recipes sharing at least one input.
package recipes

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Recipe is one crafting rule.
type Recipe struct {
	Name      string   `yaml:"name"`
	Action    string   `yaml:"action"` // combine, work or apply
	Inputs    []string `yaml:"inputs"`
	Technique string   `yaml:"technique,omitempty"`

	OutputQuantity  int      `yaml:"output_quantity"`
	OutputStackable bool     `yaml:"output_stackable"`
	Properties      []string `yaml:"properties,omitempty"`

	Discoveries []string `yaml:"discoveries,omitempty"`
	Description string   `yaml:"description,omitempty"`
}

type recipesFile struct {
	Recipes []Recipe `yaml:"recipes"`
}

// Table is the loaded recipe set.
type Table struct {
	recipes []Recipe
	// Digest identifies the loaded table for logs and snapshots.
	Digest string

	stackable map[string]bool
}

// Load reads recipes.yaml from path.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f recipesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("recipes.yaml: %w", err)
	}
	return New(f.Recipes), nil
}

// New builds a table from in-memory recipes (used by tests).
func New(rs []Recipe) *Table {
	t := &Table{stackable: map[string]bool{}}
	for _, r := range rs {
		if r.OutputQuantity <= 0 {
			r.OutputQuantity = 1
		}
		t.recipes = append(t.recipes, r)
		t.stackable[r.Name] = r.OutputStackable
	}
	t.Digest = digest(t.recipes)
	return t
}

func digest(rs []Recipe) string {
	h := sha256.New()
	for _, r := range rs {
		fmt.Fprintf(h, "%s|%s|%s|%s\n", r.Action, r.Name, strings.Join(r.Inputs, ","), r.Technique)
	}
	return hex.EncodeToString(h.Sum(nil))[:12]
}

// Recipes returns a copy of the table.
func (t *Table) Recipes() []Recipe {
	out := make([]Recipe, len(t.recipes))
	copy(out, t.recipes)
	return out
}

// Stackable reports whether a crafted kind stacks. Kinds the table has never
// produced default to stackable (raw resources).
func (t *Table) Stackable(kind string) bool {
	if v, ok := t.stackable[kind]; ok {
		return v
	}
	return true
}

func sortedCopy(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	return out
}

func equalSorted(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Find looks up the recipe for (action, inputs, technique). Inputs are
// matched order-independently.
func (t *Table) Find(action string, inputs []string, technique string) (Recipe, bool) {
	want := sortedCopy(inputs)
	for _, r := range t.recipes {
		if r.Action != action {
			continue
		}
		if !equalSorted(sortedCopy(r.Inputs), want) {
			continue
		}
		if action == "work" && r.Technique != technique {
			continue
		}
		return r, true
	}
	return Recipe{}, false
}

// FindApply looks up an apply recipe. Order matters: inputs are [tool,
// target] and the tool is not consumed.
func (t *Table) FindApply(tool, target string) (Recipe, bool) {
	for _, r := range t.recipes {
		if r.Action != "apply" || len(r.Inputs) != 2 {
			continue
		}
		if r.Inputs[0] == tool && r.Inputs[1] == target {
			return r, true
		}
	}
	return Recipe{}, false
}

// Hints explains a failed lookup: recipes sharing at least one input
// contribute a missing-ingredient or wrong-technique hint. The result is
// deterministic for equal inputs.
func (t *Table) Hints(action string, inputs []string, technique string) []string {
	have := map[string]bool{}
	for _, in := range inputs {
		have[in] = true
	}
	want := sortedCopy(inputs)

	var hints []string
	for _, r := range t.recipes {
		if r.Action != action {
			continue
		}
		rIn := sortedCopy(r.Inputs)

		overlap := 0
		for _, in := range rIn {
			if have[in] {
				overlap++
			}
		}
		if overlap > 0 && overlap < len(rIn) {
			var missing []string
			for _, in := range rIn {
				if !have[in] {
					missing = append(missing, in)
				}
			}
			hints = append(hints, fmt.Sprintf("this might work with: %s", strings.Join(missing, ", ")))
		}

		if action == "work" && equalSorted(rIn, want) && r.Technique != technique {
			hints = append(hints, fmt.Sprintf("these materials respond to a different technique: %s", r.Technique))
		}
	}

	if len(hints) == 0 {
		switch {
		case action == "combine" && len(inputs) < 2:
			hints = append(hints, "combining usually needs at least two materials")
		case action == "work" && technique == "":
			hints = append(hints, "working a material needs a technique")
		case action == "apply" && len(inputs) < 2:
			hints = append(hints, "applying needs a tool and a target")
		}
	}

	sort.Strings(hints)
	return hints
}

// UsingInput returns recipes consuming the kind, in table order.
func (t *Table) UsingInput(kind string) []Recipe {
	var out []Recipe
	for _, r := range t.recipes {
		for _, in := range r.Inputs {
			if in == kind {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
