package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"mission-runner/internal/mission"
)

// Preset is a named variant of the item-collection mission.
type Preset struct {
	Name        string              `yaml:"name"`
	Description string              `yaml:"description,omitempty"`
	Generator   string              `yaml:"generator,omitempty"`
	TimeLimitMs int                 `yaml:"time_limit_ms"`
	ItemCount   int                 `yaml:"item_count,omitempty"`
	AgentName   string              `yaml:"agent_name,omitempty"`
	Rewards     mission.RewardTable `yaml:"rewards"`
}

// Load reads a YAML preset definition from disk.
func Load(path string) (*Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}
	var p Preset
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse preset: %w", err)
	}
	if len(p.Rewards) == 0 {
		return nil, fmt.Errorf("preset %s declares no rewards", path)
	}
	return &p, nil
}

// Resolve returns the preset from file when set, otherwise the built-in named preset.
func Resolve(name, file string) (*Preset, error) {
	if file != "" {
		return Load(file)
	}
	if name == "" {
		name = DefaultPreset
	}
	p, ok := BuiltIn()[name]
	if !ok {
		return nil, fmt.Errorf("unknown mission preset %q (available: %v)", name, Names())
	}
	return &p, nil
}

// Names lists the built-in presets in sorted order.
func Names() []string {
	var names []string
	for n := range BuiltIn() {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply copies the preset onto mission parameters. Zero preset fields keep the defaults.
func (p *Preset) Apply(params mission.Params) mission.Params {
	if p.Generator != "" {
		params.Generator = p.Generator
	}
	if p.TimeLimitMs > 0 {
		params.TimeLimitMs = p.TimeLimitMs
	}
	if p.AgentName != "" {
		params.AgentName = p.AgentName
	}
	if len(p.Rewards) > 0 {
		params.Rewards = p.Rewards
	}
	return params
}
