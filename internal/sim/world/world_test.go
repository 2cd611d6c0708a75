package world

import (
	"path/filepath"
	"reflect"
	"testing"

	"hearth.world/internal/persistence/store"
	"hearth.world/internal/sim/domain"
)

func newTestWorld(t *testing.T) (*store.Store, *store.Tick, *Service) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "world.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitWorld(40, 40); err != nil {
		t.Fatalf("init: %v", err)
	}
	tk, err := s.Begin(1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return s, tk, New(tk, 40, 40)
}

func TestWallPlacementIsSymmetric(t *testing.T) {
	_, tk, w := newTestWorld(t)
	p := domain.Position{X: 10, Y: 10}

	if err := w.PlaceWall(p, domain.North); err != nil {
		t.Fatalf("place: %v", err)
	}
	here, _ := tk.Cell(p)
	mirror, _ := tk.Cell(p.Add(domain.North))
	if !here.Walls.Has(domain.North) {
		t.Errorf("no wall on placing side")
	}
	if !mirror.Walls.Has(domain.South) {
		t.Errorf("no mirror wall on adjacent side")
	}
}

func TestWallPlaceRemoveRestoresState(t *testing.T) {
	_, tk, w := newTestWorld(t)
	p := domain.Position{X: 10, Y: 10}

	before, _ := tk.Cell(p)
	beforeAdj, _ := tk.Cell(p.Add(domain.East))

	if err := w.PlaceWall(p, domain.East); err != nil {
		t.Fatalf("place: %v", err)
	}
	if err := w.RemoveWall(p, domain.East); err != nil {
		t.Fatalf("remove: %v", err)
	}

	after, _ := tk.Cell(p)
	afterAdj, _ := tk.Cell(p.Add(domain.East))
	if !reflect.DeepEqual(before, after) || !reflect.DeepEqual(beforeAdj, afterAdj) {
		t.Errorf("place+remove not idempotent: %+v vs %+v", before, after)
	}
}

func TestWallAtWorldEdgeHasNoMirror(t *testing.T) {
	_, tk, w := newTestWorld(t)
	p := domain.Position{X: 0, Y: 0}
	if err := w.PlaceWall(p, domain.North); err != nil {
		t.Fatalf("edge wall: %v", err)
	}
	c, _ := tk.Cell(p)
	if !c.Walls.Has(domain.North) {
		t.Errorf("edge wall missing")
	}
}

func TestCanStepRespectsWallsAndDoors(t *testing.T) {
	_, _, w := newTestWorld(t)
	p := domain.Position{X: 5, Y: 5}

	if ok, _ := w.CanStep(p, domain.East); !ok {
		t.Fatalf("open step blocked")
	}
	if err := w.PlaceWall(p, domain.East); err != nil {
		t.Fatalf("place: %v", err)
	}
	if ok, _ := w.CanStep(p, domain.East); ok {
		t.Fatalf("wall did not block")
	}
	if err := w.PlaceDoor(p, domain.East); err != nil {
		t.Fatalf("door: %v", err)
	}
	if ok, _ := w.CanStep(p, domain.East); !ok {
		t.Fatalf("door did not open the edge")
	}
	// From the other side too.
	if ok, _ := w.CanStep(p.Add(domain.East), domain.West); !ok {
		t.Fatalf("door not symmetric")
	}
}

func TestRemoveDoorKeepsWall(t *testing.T) {
	_, tk, w := newTestWorld(t)
	p := domain.Position{X: 5, Y: 5}
	if err := w.PlaceWall(p, domain.East); err != nil {
		t.Fatalf("wall: %v", err)
	}
	if err := w.PlaceDoor(p, domain.East); err != nil {
		t.Fatalf("door: %v", err)
	}
	if err := w.RemoveDoor(p, domain.East); err != nil {
		t.Fatalf("remove door: %v", err)
	}
	here, _ := tk.Cell(p)
	mirror, _ := tk.Cell(p.Add(domain.East))
	if here.Doors.Has(domain.East) || mirror.Doors.Has(domain.West) {
		t.Errorf("door remains: %+v / %+v", here, mirror)
	}
	if !here.Walls.Has(domain.East) || !mirror.Walls.Has(domain.West) {
		t.Errorf("wall went with the door: %+v / %+v", here, mirror)
	}
}

func TestDoorNeedsWall(t *testing.T) {
	_, _, w := newTestWorld(t)
	err := w.PlaceDoor(domain.Position{X: 5, Y: 5}, domain.North)
	if err != ErrNoWall {
		t.Fatalf("err = %v, want ErrNoWall", err)
	}
}

func TestWaterIsImpassable(t *testing.T) {
	_, tk, w := newTestWorld(t)
	p := domain.Position{X: 8, Y: 8}
	tk.SetCell(p, domain.Cell{Terrain: domain.TerrainWater})
	if ok, _ := w.Passable(p); ok {
		t.Fatalf("water passable")
	}
	if ok, _ := w.CanStep(p.Add(domain.West), domain.East); ok {
		t.Fatalf("stepped into water")
	}
}

// enclose walls the rect boundary around the 3x3 region centred on c,
// mirroring build_shelter's geometry.
func enclose(t *testing.T, w *Service, c domain.Position) {
	t.Helper()
	for dx := -1; dx <= 1; dx++ {
		top := domain.Position{X: c.X + dx, Y: c.Y - 1}
		bottom := domain.Position{X: c.X + dx, Y: c.Y + 1}
		if err := w.PlaceWall(top, domain.North); err != nil {
			t.Fatalf("wall: %v", err)
		}
		if err := w.PlaceWall(bottom, domain.South); err != nil {
			t.Fatalf("wall: %v", err)
		}
	}
	for dy := -1; dy <= 1; dy++ {
		left := domain.Position{X: c.X - 1, Y: c.Y + dy}
		right := domain.Position{X: c.X + 1, Y: c.Y + dy}
		if err := w.PlaceWall(left, domain.West); err != nil {
			t.Fatalf("wall: %v", err)
		}
		if err := w.PlaceWall(right, domain.East); err != nil {
			t.Fatalf("wall: %v", err)
		}
	}
}

func TestDetectStructureFindsEnclosure(t *testing.T) {
	_, tk, w := newTestWorld(t)
	center := domain.Position{X: 10, Y: 10}
	enclose(t, w, center)
	// A door does not break the enclosure.
	doorCell := domain.Position{X: 10, Y: 11}
	if err := w.PlaceDoor(doorCell, domain.South); err != nil {
		t.Fatalf("door: %v", err)
	}

	st, err := w.DetectStructure(center, []string{"Ember"})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if st == nil {
		t.Fatalf("no structure detected")
	}
	if len(st.Interior) != 9 {
		t.Errorf("interior = %d cells, want 9", len(st.Interior))
	}
	if len(st.Creators) != 1 || st.Creators[0] != "Ember" {
		t.Errorf("creators = %v", st.Creators)
	}
	c, _ := tk.Cell(center)
	if c.StructureID != st.ID {
		t.Errorf("cell not linked to structure")
	}
}

func TestDetectStructureReturnsNilWhenOpen(t *testing.T) {
	_, _, w := newTestWorld(t)
	st, err := w.DetectStructure(domain.Position{X: 20, Y: 20}, nil)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if st != nil {
		t.Fatalf("open plain detected as structure: %+v", st)
	}
}

func TestDetectStructureReplacesPrevious(t *testing.T) {
	_, _, w := newTestWorld(t)
	center := domain.Position{X: 10, Y: 10}
	enclose(t, w, center)

	first, err := w.DetectStructure(center, []string{"Ember"})
	if err != nil || first == nil {
		t.Fatalf("first detect: %v %v", first, err)
	}
	second, err := w.DetectStructure(center, []string{"Reed"})
	if err != nil || second == nil {
		t.Fatalf("second detect: %v %v", second, err)
	}
	if _, ok, _ := w.StructureAt(center); !ok {
		t.Fatalf("no structure at centre after re-detect")
	}
	// The replacement keeps previous attribution and adds the new builder.
	if len(second.Creators) != 2 {
		t.Errorf("creators = %v, want both builders", second.Creators)
	}
	if _, ok, _ := w.r.Structure(first.ID); ok {
		t.Errorf("replaced structure still stored")
	}
}

func TestRenamePlace(t *testing.T) {
	_, tk, w := newTestWorld(t)
	p := domain.Position{X: 4, Y: 4}
	if err := w.RenamePlace(p, "the crossing"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	got, ok, err := w.PlacePosition("the crossing")
	if err != nil || !ok || got != p {
		t.Fatalf("place position = %v ok=%v err=%v", got, ok, err)
	}
	c, _ := tk.Cell(p)
	if c.PlaceName != "the crossing" {
		t.Errorf("cell place name = %q", c.PlaceName)
	}
}

func TestCellsInRectMaterialisesDefaults(t *testing.T) {
	_, _, w := newTestWorld(t)
	cells, err := w.CellsInRect(domain.Rect{MinX: 0, MinY: 0, MaxX: 2, MaxY: 2})
	if err != nil {
		t.Fatalf("rect: %v", err)
	}
	if len(cells) != 9 {
		t.Fatalf("cells = %d, want 9", len(cells))
	}
	for _, pc := range cells {
		if pc.Cell.Terrain != domain.TerrainGrass {
			t.Errorf("default terrain = %s at %v", pc.Cell.Terrain, pc.Pos)
		}
	}
}
