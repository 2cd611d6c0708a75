package agents

import (
	"errors"
	"path/filepath"
	"testing"

	"hearth.world/internal/persistence/store"
	"hearth.world/internal/sim/domain"
	"hearth.world/internal/sim/world"
)

func newTestServices(t *testing.T) (*store.Tick, *Service, *world.Service) {
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
	return tk, New(tk), world.New(tk, 40, 40)
}

func addAgent(t *testing.T, tk *store.Tick, name string, pos domain.Position) {
	t.Helper()
	tk.PutAgent(domain.Agent{
		Name:      name,
		ModelID:   "m",
		Position:  pos,
		Inventory: domain.NewInventory(),
	})
}

func TestFindPathIsShortestOnOpenGround(t *testing.T) {
	_, _, w := newTestServices(t)
	start := domain.Position{X: 2, Y: 2}
	goal := domain.Position{X: 8, Y: 5}

	path, err := FindPath(start, goal, w)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	// On an open 4-connected grid the optimum is the Manhattan distance.
	want := start.Manhattan(goal) + 1
	if len(path) != want {
		t.Errorf("path len = %d, want %d", len(path), want)
	}
	if path[0] != start || path[len(path)-1] != goal {
		t.Errorf("endpoints %v .. %v", path[0], path[len(path)-1])
	}
	for i := 1; i < len(path); i++ {
		if path[i-1].Manhattan(path[i]) != 1 {
			t.Errorf("non-unit step %v -> %v", path[i-1], path[i])
		}
	}
}

func TestFindPathIsDeterministic(t *testing.T) {
	_, _, w := newTestServices(t)
	start := domain.Position{X: 2, Y: 2}
	goal := domain.Position{X: 6, Y: 6}
	a, err := FindPath(start, goal, w)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	b, err := FindPath(start, goal, w)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("tie-break unstable at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestFindPathDetoursAroundWalls(t *testing.T) {
	_, _, w := newTestServices(t)
	start := domain.Position{X: 5, Y: 5}
	goal := domain.Position{X: 7, Y: 5}
	// Wall directly east of start.
	if err := w.PlaceWall(start, domain.East); err != nil {
		t.Fatalf("wall: %v", err)
	}

	path, err := FindPath(start, goal, w)
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if len(path) <= start.Manhattan(goal)+1 {
		t.Errorf("no detour: len=%d", len(path))
	}
}

func TestFindPathFailsToWater(t *testing.T) {
	tk, _, w := newTestServices(t)
	lake := domain.Position{X: 9, Y: 9}
	tk.SetCell(lake, domain.Cell{Terrain: domain.TerrainWater})
	_, err := FindPath(domain.Position{X: 5, Y: 5}, lake, w)
	if !errors.Is(err, ErrNoPath) {
		t.Fatalf("err = %v, want ErrNoPath", err)
	}
}

func TestJourneyAdvanceAndArrive(t *testing.T) {
	tk, svc, w := newTestServices(t)
	addAgent(t, tk, "Ember", domain.Position{X: 2, Y: 2})

	a, err := svc.PlanJourney("Ember", domain.Position{X: 5, Y: 2}, "", w)
	if err != nil {
		t.Fatalf("plan: %v", err)
	}
	if a.Journey == nil || a.Journey.Path[0] != (domain.Position{X: 2, Y: 2}) {
		t.Fatalf("journey = %+v", a.Journey)
	}

	steps := 0
	for {
		moved, arrived, err := svc.AdvanceJourney("Ember", w)
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		steps++
		if arrived {
			if moved.Position != (domain.Position{X: 5, Y: 2}) {
				t.Errorf("arrived at %v", moved.Position)
			}
			if moved.Journey != nil {
				t.Errorf("journey not cleared on arrival")
			}
			break
		}
		if steps > 10 {
			t.Fatalf("journey never arrived")
		}
	}
	if steps != 3 {
		t.Errorf("steps = %d, want 3", steps)
	}
}

func TestJourneyBlockedByNewWall(t *testing.T) {
	tk, svc, w := newTestServices(t)
	addAgent(t, tk, "Ember", domain.Position{X: 2, Y: 2})
	if _, err := svc.PlanJourney("Ember", domain.Position{X: 4, Y: 2}, "", w); err != nil {
		t.Fatalf("plan: %v", err)
	}
	// A wall appears across the planned path.
	if err := w.PlaceWall(domain.Position{X: 2, Y: 2}, domain.East); err != nil {
		t.Fatalf("wall: %v", err)
	}
	_, _, err := svc.AdvanceJourney("Ember", w)
	if !errors.Is(err, ErrNoPath) {
		t.Fatalf("err = %v, want ErrNoPath", err)
	}
}

func TestSenseOthersBucketsAndOmissions(t *testing.T) {
	tk, svc, _ := newTestServices(t)
	addAgent(t, tk, "Ember", domain.Position{X: 0, Y: 0})
	addAgent(t, tk, "Reed", domain.Position{X: 5, Y: 0})   // nearby
	addAgent(t, tk, "Sage", domain.Position{X: 25, Y: 0})  // far
	addAgent(t, tk, "Wren", domain.Position{X: 35, Y: 35}) // very far, unknown

	// Ember has met Reed and Sage but not Wren.
	a, _ := svc.Get("Ember")
	a.KnownAgents = []string{"Reed", "Sage"}
	svc.Save(a)

	sensed, err := svc.SenseOthers("Ember")
	if err != nil {
		t.Fatalf("sense: %v", err)
	}
	if len(sensed) != 2 {
		t.Fatalf("sensed = %+v, want 2 entries", sensed)
	}
	if sensed[0].Name != "Reed" || sensed[0].Distance != Nearby || sensed[0].Direction != domain.BucketE {
		t.Errorf("reed = %+v", sensed[0])
	}
	if sensed[1].Name != "Sage" || sensed[1].Distance != Far {
		t.Errorf("sage = %+v", sensed[1])
	}
}

func TestRecordMeetingIsSymmetricAndMonotonic(t *testing.T) {
	tk, svc, _ := newTestServices(t)
	addAgent(t, tk, "Ember", domain.Position{X: 0, Y: 0})
	addAgent(t, tk, "Reed", domain.Position{X: 1, Y: 0})

	fresh, err := svc.RecordMeeting("Ember", "Reed")
	if err != nil || !fresh {
		t.Fatalf("first meeting: fresh=%v err=%v", fresh, err)
	}
	a, _ := svc.Get("Ember")
	b, _ := svc.Get("Reed")
	if !a.Knows("Reed") || !b.Knows("Ember") {
		t.Fatalf("ledger not symmetric: %v %v", a.KnownAgents, b.KnownAgents)
	}

	fresh, err = svc.RecordMeeting("Reed", "Ember")
	if err != nil || fresh {
		t.Fatalf("repeat meeting: fresh=%v err=%v", fresh, err)
	}
}

func TestWithinUsesChebyshev(t *testing.T) {
	tk, svc, _ := newTestServices(t)
	addAgent(t, tk, "Ember", domain.Position{X: 10, Y: 10})
	addAgent(t, tk, "Reed", domain.Position{X: 13, Y: 13}) // diagonal 3
	addAgent(t, tk, "Sage", domain.Position{X: 10, Y: 14}) // straight 4

	within, err := svc.Within(domain.Position{X: 10, Y: 10}, 3, "Ember")
	if err != nil {
		t.Fatalf("within: %v", err)
	}
	if len(within) != 1 || within[0].Name != "Reed" {
		t.Errorf("within = %+v", within)
	}
}
