package agents

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"hearth.world/internal/sim/domain"
)

// StatusFile is the engine-written read-only summary an agent finds at
// agents/<name>/.status. The rest of the home directory (journal, notes,
// discoveries) is agent-owned and opaque to the engine.
type StatusFile struct {
	Tick             int              `json:"tick"`
	TimeOfDay        domain.TimeOfDay `json:"time_of_day"`
	Weather          domain.Weather   `json:"weather"`
	Position         domain.Position  `json:"position"`
	InventorySummary string           `json:"inventory_summary"`
}

// EnsureHomeDir creates agents/<name> under root and returns its path.
func EnsureHomeDir(root, name string) (string, error) {
	dir := filepath.Join(root, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteStatus regenerates the .status file after a committed tick.
func WriteStatus(root string, a domain.Agent, ws domain.WorldState) error {
	dir, err := EnsureHomeDir(root, a.Name)
	if err != nil {
		return err
	}
	st := StatusFile{
		Tick:             ws.Tick,
		TimeOfDay:        ws.TimeOfDay(),
		Weather:          ws.Weather,
		Position:         a.Position,
		InventorySummary: summariseInventory(a.Inventory),
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := filepath.Join(dir, ".status.tmp")
	if err := os.WriteFile(tmp, append(b, '\n'), 0o444); err != nil {
		return err
	}
	return os.Rename(tmp, filepath.Join(dir, ".status"))
}

func summariseInventory(inv domain.Inventory) string {
	if inv.Empty() {
		return "empty-handed"
	}
	var parts []string
	for _, kind := range inv.Kinds() {
		if n := inv.Stacks[kind]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s x%d", kind, n))
			continue
		}
		count := 0
		for _, it := range inv.Items {
			if it.Kind == kind {
				count++
			}
		}
		if count > 0 {
			parts = append(parts, fmt.Sprintf("%s x%d", kind, count))
		}
	}
	return strings.Join(parts, ", ")
}
