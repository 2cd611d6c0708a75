// Package tuning loads the world tuning knobs from tuning.yaml.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds every configurable constant of the simulation.
type Tuning struct {
	WorldWidth  int `yaml:"world_width"`
	WorldHeight int `yaml:"world_height"`

	VisionRadius int `yaml:"vision_radius"`
	// NightVisionFactor scales the vision radius at night (floor 1 cell).
	NightVisionFactor float64 `yaml:"night_vision_factor"`
	ClusterBuffer     int     `yaml:"cluster_buffer"`

	InviteExpiryTicks int `yaml:"invite_expiry_ticks"`

	TickDeadlineSeconds int `yaml:"tick_deadline_seconds"`

	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
	SnapshotKeep       int `yaml:"snapshot_keep"`

	WallWoodCost int `yaml:"wall_wood_cost"`

	Agents []AgentSpec `yaml:"agents"`
}

// AgentSpec seeds one agent at init time.
type AgentSpec struct {
	Name        string `yaml:"name"`
	ModelID     string `yaml:"model_id"`
	Personality string `yaml:"personality"`
}

// Defaults returns the tuning used when a knob is absent from the file.
func Defaults() Tuning {
	return Tuning{
		WorldWidth:          500,
		WorldHeight:         500,
		VisionRadius:        3,
		NightVisionFactor:   0.6,
		ClusterBuffer:       2,
		InviteExpiryTicks:   2,
		TickDeadlineSeconds: 120,
		SnapshotEveryTicks:  50,
		SnapshotKeep:        5,
		WallWoodCost:        1,
	}
}

// Load reads tuning.yaml from path and fills defaults for missing knobs.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.fill()
	return t, nil
}

func (t *Tuning) fill() {
	d := Defaults()
	if t.WorldWidth <= 0 {
		t.WorldWidth = d.WorldWidth
	}
	if t.WorldHeight <= 0 {
		t.WorldHeight = d.WorldHeight
	}
	if t.VisionRadius <= 0 {
		t.VisionRadius = d.VisionRadius
	}
	if t.NightVisionFactor <= 0 {
		t.NightVisionFactor = d.NightVisionFactor
	}
	if t.ClusterBuffer <= 0 {
		t.ClusterBuffer = d.ClusterBuffer
	}
	if t.InviteExpiryTicks <= 0 {
		t.InviteExpiryTicks = d.InviteExpiryTicks
	}
	if t.TickDeadlineSeconds <= 0 {
		t.TickDeadlineSeconds = d.TickDeadlineSeconds
	}
	if t.SnapshotEveryTicks <= 0 {
		t.SnapshotEveryTicks = d.SnapshotEveryTicks
	}
	if t.SnapshotKeep <= 0 {
		t.SnapshotKeep = d.SnapshotKeep
	}
	if t.WallWoodCost <= 0 {
		t.WallWoodCost = d.WallWoodCost
	}
}

// NightVision applies the night factor to a radius, with a floor of one
// cell. Every visibility check goes through the same helper.
func (t Tuning) NightVision(radius int) int {
	r := int(float64(radius) * t.NightVisionFactor)
	if r < 1 {
		r = 1
	}
	return r
}

// EffectiveVision returns the vision radius for a time of day.
func (t Tuning) EffectiveVision(night bool) int {
	if night {
		return t.NightVision(t.VisionRadius)
	}
	return t.VisionRadius
}

// ClusterRadius is the distance at which acting agents coalesce into one
// cluster: vision plus the approach buffer.
func (t Tuning) ClusterRadius() int {
	return t.VisionRadius + t.ClusterBuffer
}
