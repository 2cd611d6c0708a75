package domain

import (
	"encoding/json"
	"sort"
)

// DirSet is a set of edge directions, one bit per Direction.
type DirSet uint8

func (s DirSet) Has(d Direction) bool       { return s&(1<<d) != 0 }
func (s DirSet) With(d Direction) DirSet    { return s | (1 << d) }
func (s DirSet) Without(d Direction) DirSet { return s &^ (1 << d) }
func (s DirSet) Empty() bool                { return s == 0 }

// Dirs returns the members in the fixed direction order.
func (s DirSet) Dirs() []Direction {
	var out []Direction
	for _, d := range Directions {
		if s.Has(d) {
			out = append(out, d)
		}
	}
	return out
}

// MarshalJSON encodes the set as a sorted list of direction names, the
// representation stored in the cells table.
func (s DirSet) MarshalJSON() ([]byte, error) {
	names := []string{}
	for _, d := range s.Dirs() {
		names = append(names, d.String())
	}
	sort.Strings(names)
	return json.Marshal(names)
}

func (s *DirSet) UnmarshalJSON(b []byte) error {
	var names []string
	if err := json.Unmarshal(b, &names); err != nil {
		return err
	}
	var v DirSet
	for _, n := range names {
		d, ok := ParseDirection(n)
		if !ok {
			return &UnknownDirectionError{Name: n}
		}
		v = v.With(d)
	}
	*s = v
	return nil
}

// Cell is one grid square. The zero-ish default (grass, no walls, no doors)
// is not persisted; storage materialises it on read.
type Cell struct {
	Terrain Terrain `json:"terrain"`
	Walls   DirSet  `json:"walls"`
	Doors   DirSet  `json:"doors"`
	// PlaceName is the landmark name covering this cell, "" if unnamed.
	PlaceName string `json:"place_name,omitempty"`
	// StructureID links the cell to a detected structure interior.
	StructureID string `json:"structure_id,omitempty"`
}

// DefaultCell is the unstored cell state.
func DefaultCell() Cell { return Cell{Terrain: TerrainGrass} }

// IsDefault reports whether the cell equals the unstored default and can be
// dropped from the sparse table.
func (c Cell) IsDefault() bool {
	return c.Terrain == TerrainGrass && c.Walls.Empty() && c.Doors.Empty() &&
		c.PlaceName == "" && c.StructureID == ""
}

// CanExit reports whether the edge in the given direction can be crossed
// outward: either no wall, or a wall with a door.
func (c Cell) CanExit(d Direction) bool {
	return !c.Walls.Has(d) || c.Doors.Has(d)
}

// WithWall returns the cell with a wall added on the edge.
func (c Cell) WithWall(d Direction) Cell {
	c.Walls = c.Walls.With(d)
	return c
}

// WithoutWall removes the wall and any door on the edge. A door cannot
// outlive its wall.
func (c Cell) WithoutWall(d Direction) Cell {
	c.Walls = c.Walls.Without(d)
	c.Doors = c.Doors.Without(d)
	return c
}

// WithDoor adds a door on the edge. The caller must have verified the wall
// exists; Valid catches violations.
func (c Cell) WithDoor(d Direction) Cell {
	c.Doors = c.Doors.With(d)
	return c
}

func (c Cell) WithoutDoor(d Direction) Cell {
	c.Doors = c.Doors.Without(d)
	return c
}

// Valid checks the door-implies-wall invariant.
func (c Cell) Valid() bool {
	return c.Doors&^c.Walls == 0
}

// PlacedCell pairs a position with its cell for rect queries.
type PlacedCell struct {
	Pos  Position `json:"pos"`
	Cell Cell     `json:"cell"`
}
