// Package world provides spatial queries and mutations over the grid:
// passability, symmetric wall and door placement, named places and
// flood-fill structure detection. The service is a stateless façade over
// a store reader or tick overlay; it caches nothing.
package world

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"hearth.world/internal/persistence/store"
	"hearth.world/internal/sim/domain"
)

// ErrOutOfBounds reports a position outside the world.
var ErrOutOfBounds = errors.New("world: position out of bounds")

// Writer is the mutation surface the service needs; *store.Tick provides it.
type Writer interface {
	store.Reader
	SetCell(p domain.Position, c domain.Cell)
	PutObject(o domain.WorldObject)
	RemoveObject(id string)
	SetNamedPlace(name string, p domain.Position)
	PutStructure(st domain.Structure)
	RemoveStructure(id string)
}

// Service answers spatial queries against a reader. Mutating methods
// require the reader to also be a Writer and panic otherwise; the engine
// always hands services a tick overlay.
type Service struct {
	r      store.Reader
	width  int
	height int
}

// New builds a service over a reader with the world dimensions pinned.
func New(r store.Reader, width, height int) *Service {
	return &Service{r: r, width: width, height: height}
}

func (s *Service) writer() Writer {
	w, ok := s.r.(Writer)
	if !ok {
		panic("world: mutation through a read-only reader")
	}
	return w
}

func (s *Service) Width() int  { return s.width }
func (s *Service) Height() int { return s.height }

func (s *Service) InBounds(p domain.Position) bool {
	return p.InBounds(s.width, s.height)
}

// Cell returns the cell at p (default when unstored).
func (s *Service) Cell(p domain.Position) (domain.Cell, error) {
	if !s.InBounds(p) {
		return domain.Cell{}, fmt.Errorf("%w: %v", ErrOutOfBounds, p)
	}
	return s.r.Cell(p)
}

// CellsInRect materialises every cell in the clamped rect, defaults
// included, in row order.
func (s *Service) CellsInRect(r domain.Rect) ([]domain.PlacedCell, error) {
	clamped := r.Clamp(s.width, s.height)
	out := make([]domain.PlacedCell, 0, len(clamped.Positions()))
	for _, p := range clamped.Positions() {
		c, err := s.r.Cell(p)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.PlacedCell{Pos: p, Cell: c})
	}
	return out, nil
}

func (s *Service) ObjectsAt(p domain.Position) ([]domain.WorldObject, error) {
	return s.r.ObjectsAt(p)
}

// Passable reports whether an agent could stand at p: in bounds and
// passable terrain. Other agents do not block a cell; walls gate edges,
// not cells.
func (s *Service) Passable(p domain.Position) (bool, error) {
	if !s.InBounds(p) {
		return false, nil
	}
	c, err := s.r.Cell(p)
	if err != nil {
		return false, err
	}
	return c.Terrain.Passable(), nil
}

// CanStep reports whether one cardinal step is legal: destination in bounds
// and passable, and no wall (without door) on either side of the shared
// edge.
func (s *Service) CanStep(from domain.Position, d domain.Direction) (bool, error) {
	to := from.Add(d)
	ok, err := s.Passable(to)
	if err != nil || !ok {
		return false, err
	}
	fromCell, err := s.r.Cell(from)
	if err != nil {
		return false, err
	}
	if !fromCell.CanExit(d) {
		return false, nil
	}
	toCell, err := s.r.Cell(to)
	if err != nil {
		return false, err
	}
	return toCell.CanExit(d.Opposite()), nil
}

// --- symmetric wall and door placement ---

// PlaceWall adds a wall on the edge (p, d) and its mirror on the adjacent
// cell. This is the single entry point for wall creation; the symmetry
// invariant holds because nothing else writes wall bits.
func (s *Service) PlaceWall(p domain.Position, d domain.Direction) error {
	return s.mutateEdge(p, d, func(c domain.Cell, dir domain.Direction) domain.Cell {
		return c.WithWall(dir)
	})
}

// RemoveWall removes the wall (and any door in it) from both sides of the
// edge.
func (s *Service) RemoveWall(p domain.Position, d domain.Direction) error {
	return s.mutateEdge(p, d, func(c domain.Cell, dir domain.Direction) domain.Cell {
		return c.WithoutWall(dir)
	})
}

// ErrNoWall reports a door placement on an edge without a wall.
var ErrNoWall = errors.New("world: no wall on that edge")

// PlaceDoor adds a door to an existing wall, on both sides of the edge.
func (s *Service) PlaceDoor(p domain.Position, d domain.Direction) error {
	c, err := s.Cell(p)
	if err != nil {
		return err
	}
	if !c.Walls.Has(d) {
		return ErrNoWall
	}
	return s.mutateEdge(p, d, func(c domain.Cell, dir domain.Direction) domain.Cell {
		if !c.Walls.Has(dir) {
			// Mirror side must carry the wall too; repair rather than leave
			// a dangling door.
			c = c.WithWall(dir)
		}
		return c.WithDoor(dir)
	})
}

// RemoveDoor removes the door from both sides; the wall remains.
func (s *Service) RemoveDoor(p domain.Position, d domain.Direction) error {
	return s.mutateEdge(p, d, func(c domain.Cell, dir domain.Direction) domain.Cell {
		return c.WithoutDoor(dir)
	})
}

// mutateEdge applies the same change to both cells sharing the edge. The
// mirror cell is skipped at the world boundary.
func (s *Service) mutateEdge(p domain.Position, d domain.Direction, f func(domain.Cell, domain.Direction) domain.Cell) error {
	if !s.InBounds(p) {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, p)
	}
	w := s.writer()

	c, err := s.r.Cell(p)
	if err != nil {
		return err
	}
	w.SetCell(p, f(c, d))

	adj := p.Add(d)
	if !s.InBounds(adj) {
		return nil
	}
	ac, err := s.r.Cell(adj)
	if err != nil {
		return err
	}
	w.SetCell(adj, f(ac, d.Opposite()))
	return nil
}

// --- objects ---

// PutObject places a world object, bounds-checked.
func (s *Service) PutObject(o domain.WorldObject) error {
	if !s.InBounds(o.Position) {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, o.Position)
	}
	s.writer().PutObject(o)
	return nil
}

func (s *Service) RemoveObject(id string) {
	s.writer().RemoveObject(id)
}

// --- named places ---

// RenamePlace names the location at p. The name maps to the position in
// the named-place registry and is stamped on the cell.
func (s *Service) RenamePlace(p domain.Position, name string) error {
	if !s.InBounds(p) {
		return fmt.Errorf("%w: %v", ErrOutOfBounds, p)
	}
	w := s.writer()
	c, err := s.r.Cell(p)
	if err != nil {
		return err
	}
	c.PlaceName = name
	w.SetCell(p, c)
	w.SetNamedPlace(name, p)
	return nil
}

func (s *Service) PlacePosition(name string) (domain.Position, bool, error) {
	return s.r.PlacePosition(name)
}

// --- structure detection ---

// maxStructureCells bounds the flood fill; a fill that grows past it is
// treated as unenclosed.
const maxStructureCells = 1000

// floodFill explores from seed across unwalled edges. A walled edge bounds
// the fill whether or not it carries a door: a room with a door is still a
// room. Returns nil if the fill escapes the world bounds or exceeds the
// size cap, meaning no enclosure.
func (s *Service) floodFill(seed domain.Position) ([]domain.Position, error) {
	if !s.InBounds(seed) {
		return nil, nil
	}
	visited := map[domain.Position]bool{}
	stack := []domain.Position{seed}

	for len(stack) > 0 {
		if len(visited) > maxStructureCells {
			return nil, nil
		}
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true

		cell, err := s.r.Cell(cur)
		if err != nil {
			return nil, err
		}
		for _, d := range domain.Directions {
			if cell.Walls.Has(d) {
				continue
			}
			next := cur.Add(d)
			if !s.InBounds(next) {
				// Escaped the world without hitting a wall: not enclosed.
				return nil, nil
			}
			nc, err := s.r.Cell(next)
			if err != nil {
				return nil, err
			}
			if !nc.Walls.Has(d.Opposite()) && !visited[next] {
				stack = append(stack, next)
			}
		}
	}

	out := make([]domain.Position, 0, len(visited))
	for p := range visited {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

// DetectStructure flood-fills from seed and records the enclosure as a
// structure, replacing any previous structure covering those cells. The
// creators set is the union of wall builders recorded by the caller.
// Returns nil if the seed is not enclosed.
//
// A nested enclosure (walls inside an already-enclosed region) becomes its
// own structure: its creator set holds only the builders of the inner
// bounding walls, and it inherits the enclosing structure's privacy.
func (s *Service) DetectStructure(seed domain.Position, creators []string) (*domain.Structure, error) {
	interior, err := s.floodFill(seed)
	if err != nil || interior == nil {
		return nil, err
	}
	w := s.writer()

	private := false
	// Replace previous structures lying within the new interior, carrying
	// their creators and privacy flag forward. A structure larger than the
	// new interior encloses it: it stays in place and only lends its privacy.
	replaced := map[string]bool{}
	for _, p := range interior {
		c, err := s.r.Cell(p)
		if err != nil {
			return nil, err
		}
		if c.StructureID != "" && !replaced[c.StructureID] {
			replaced[c.StructureID] = true
			old, ok, err := s.r.Structure(c.StructureID)
			if err != nil {
				return nil, err
			}
			if ok {
				private = private || old.Private
				if len(old.Interior) > len(interior) {
					continue
				}
				creators = unionNames(creators, old.Creators)
			}
			w.RemoveStructure(c.StructureID)
		}
	}

	st := domain.Structure{
		ID:       uuid.NewString(),
		Interior: interior,
		Creators: unionNames(nil, creators),
		Private:  private,
	}
	w.PutStructure(st)
	for _, p := range interior {
		c, err := s.r.Cell(p)
		if err != nil {
			return nil, err
		}
		c.StructureID = st.ID
		w.SetCell(p, c)
	}
	return &st, nil
}

// ClearStructureAt drops the structure link for a region whose enclosure
// was broken by a wall removal.
func (s *Service) ClearStructureAt(seed domain.Position) error {
	c, err := s.Cell(seed)
	if err != nil || c.StructureID == "" {
		return err
	}
	w := s.writer()
	st, ok, err := s.r.Structure(c.StructureID)
	if err != nil {
		return err
	}
	if ok {
		for _, p := range st.Interior {
			pc, err := s.r.Cell(p)
			if err != nil {
				return err
			}
			if pc.StructureID == st.ID {
				pc.StructureID = ""
				w.SetCell(p, pc)
			}
		}
	}
	w.RemoveStructure(c.StructureID)
	return nil
}

func (s *Service) StructureAt(p domain.Position) (domain.Structure, bool, error) {
	return s.r.StructureAt(p)
}

func unionNames(a, b []string) []string {
	seen := map[string]bool{}
	for _, n := range a {
		seen[n] = true
	}
	for _, n := range b {
		seen[n] = true
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
