package stations

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"commute-planner/internal/models"
)

// Minutes assumed for a transfer at a hub with no explicit entry for
// the line pair.
const defaultTransferMinutes = 5

// Topology is the registry of transfer hubs. Loaded once at startup,
// read-only afterwards.
type Topology struct {
	mu     sync.RWMutex
	hubs   []models.TransferHub
	loaded bool
}

// NewTopology creates an empty hub registry.
func NewTopology() *Topology {
	return &Topology{}
}

// Load reads transfer hubs from a YAML file.
func (t *Topology) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading hubs file: %w", err)
	}

	var doc struct {
		Hubs []models.TransferHub `yaml:"hubs"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parsing hubs YAML: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.hubs = doc.Hubs
	t.loaded = true
	return nil
}

// LoadHubs installs pre-built hubs directly, used by tests.
func (t *Topology) LoadHubs(hubs []models.TransferHub) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hubs = append([]models.TransferHub(nil), hubs...)
	t.loaded = true
}

// HubsConnecting returns all hubs serving both lines, highest priority
// first so the composer tries preferred hubs before obscure ones.
func (t *Topology) HubsConnecting(lineA, lineB string) []models.TransferHub {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []models.TransferHub
	for _, h := range t.hubs {
		if hubServes(h, lineA) && hubServes(h, lineB) {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// HubByStation returns the hub at a station name, if any.
func (t *Topology) HubByStation(station string) (models.TransferHub, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, h := range t.hubs {
		if h.Station == station {
			return h, true
		}
	}
	return models.TransferHub{}, false
}

// TransferMinutes returns platform-to-platform minutes at a hub for a
// line pair. Pairs are looked up in both orders; 0 is a valid value
// (same-platform transfer).
func (t *Topology) TransferMinutes(hub models.TransferHub, fromLine, toLine string) int {
	if m, ok := hub.TransferMinutes[fromLine+"-"+toLine]; ok {
		return m
	}
	if m, ok := hub.TransferMinutes[toLine+"-"+fromLine]; ok {
		return m
	}
	return defaultTransferMinutes
}

// Count returns the number of registered hubs.
func (t *Topology) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.hubs)
}

// IsLoaded returns true if data has been loaded.
func (t *Topology) IsLoaded() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.loaded
}

func hubServes(h models.TransferHub, line string) bool {
	for _, l := range h.Lines {
		if l == line {
			return true
		}
	}
	return false
}
