package store

import (
	"errors"
	"path/filepath"
	"testing"

	"hearth.world/internal/sim/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "world.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitWorld(40, 40); err != nil {
		t.Fatalf("init world: %v", err)
	}
	return s
}

func commit(t *testing.T, s *Store, tk *Tick) {
	t.Helper()
	if err := s.Commit(tk, nil, nil); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestWorldStateRow(t *testing.T) {
	s := newTestStore(t)
	ws, err := s.WorldState()
	if err != nil {
		t.Fatalf("world state: %v", err)
	}
	if ws.Tick != 0 || ws.Width != 40 || ws.Height != 40 || ws.Weather != domain.WeatherClear {
		t.Errorf("fresh world = %+v", ws)
	}
}

func TestSparseCells(t *testing.T) {
	s := newTestStore(t)
	p := domain.Position{X: 3, Y: 4}

	c, err := s.Cell(p)
	if err != nil {
		t.Fatalf("cell: %v", err)
	}
	if !c.IsDefault() {
		t.Fatalf("unstored cell should be default, got %+v", c)
	}

	tk, err := s.Begin(1)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	tk.SetCell(p, domain.Cell{Terrain: domain.TerrainForest})
	commit(t, s, tk)

	c, err = s.Cell(p)
	if err != nil {
		t.Fatalf("cell: %v", err)
	}
	if c.Terrain != domain.TerrainForest {
		t.Errorf("terrain = %s", c.Terrain)
	}

	// Writing the default back removes the row.
	tk, _ = s.Begin(2)
	tk.SetCell(p, domain.DefaultCell())
	commit(t, s, tk)
	stored, err := s.StoredCellsInRect(domain.Rect{MinX: 0, MinY: 0, MaxX: 39, MaxY: 39})
	if err != nil {
		t.Fatalf("rect: %v", err)
	}
	if len(stored) != 0 {
		t.Errorf("default cell persisted: %v", stored)
	}
}

func TestAgentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	tk, _ := s.Begin(1)
	a := domain.Agent{
		Name:        "Ember",
		ModelID:     "m1",
		Personality: "curious",
		Position:    domain.Position{X: 5, Y: 5},
		Inventory:   domain.NewInventory(),
		KnownAgents: []string{"Reed"},
		Journey: &domain.Journey{
			Destination: domain.Position{X: 9, Y: 5},
			Path:        []domain.Position{{X: 5, Y: 5}, {X: 6, Y: 5}},
			Progress:    0,
		},
	}
	a.Inventory.Stacks["wood"] = 2
	a.Inventory.Items = append(a.Inventory.Items, domain.Item{ID: "i1", Kind: "stone_axe", Properties: []string{"tool"}})
	tk.PutAgent(a)
	commit(t, s, tk)

	back, ok, err := s.Agent("Ember")
	if err != nil || !ok {
		t.Fatalf("agent: ok=%v err=%v", ok, err)
	}
	if back.Position != a.Position || back.Inventory.Count("wood") != 2 {
		t.Errorf("agent round trip = %+v", back)
	}
	if back.Journey == nil || back.Journey.Destination != a.Journey.Destination {
		t.Errorf("journey lost: %+v", back.Journey)
	}
	if len(back.Inventory.Items) != 1 || back.Inventory.Items[0].Kind != "stone_axe" {
		t.Errorf("items lost: %+v", back.Inventory.Items)
	}
	if !back.Knows("Reed") {
		t.Errorf("known agents lost")
	}
}

func TestNegativeStackRejected(t *testing.T) {
	s := newTestStore(t)
	tk, _ := s.Begin(1)
	a := domain.Agent{Name: "X", ModelID: "m", Inventory: domain.NewInventory()}
	a.Inventory.Stacks["wood"] = -1
	tk.PutAgent(a)
	if err := s.Commit(tk, nil, nil); err == nil {
		t.Fatalf("negative stack committed")
	}
	// The rejected tick must leave no trace.
	if _, ok, _ := s.Agent("X"); ok {
		t.Fatalf("agent from failed tick visible")
	}
}

func TestObjectsOverlayMerge(t *testing.T) {
	s := newTestStore(t)
	p := domain.Position{X: 7, Y: 7}

	tk, _ := s.Begin(1)
	tk.PutObject(domain.WorldObject{ID: "o1", Kind: domain.ObjectSign, Position: p, Text: "hello"})
	commit(t, s, tk)

	tk, _ = s.Begin(2)
	tk.PutObject(domain.WorldObject{ID: "o2", Kind: domain.ObjectPlacedItem, Position: p, ItemKind: "rope", Quantity: 1})
	objs, err := tk.ObjectsAt(p)
	if err != nil {
		t.Fatalf("objects at: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("overlay merge = %d objects, want 2", len(objs))
	}
	tk.RemoveObject("o1")
	objs, _ = tk.ObjectsAt(p)
	if len(objs) != 1 || objs[0].ID != "o2" {
		t.Fatalf("after remove = %+v", objs)
	}
	commit(t, s, tk)

	objs, _ = s.ObjectsAt(p)
	if len(objs) != 1 || objs[0].ID != "o2" {
		t.Errorf("committed objects = %+v", objs)
	}
}

func TestConversationAggregateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	tk, _ := s.Begin(1)
	tk.PutAgent(domain.Agent{Name: "a", ModelID: "m", Inventory: domain.NewInventory()})
	tk.PutAgent(domain.Agent{Name: "b", ModelID: "m", Inventory: domain.NewInventory()})
	tk.PutConversation(domain.Conversation{
		ID:          "c1",
		Privacy:     domain.Public,
		StartedTick: 1,
		CreatedBy:   "a",
		Participants: []domain.Participant{
			{Agent: "a", JoinedTick: 1, LastTurnTick: 1},
			{Agent: "b", JoinedTick: 1, LastTurnTick: 1},
		},
		Turns: []domain.Turn{{Speaker: "a", Text: "hi", Tick: 1}},
	})
	commit(t, s, tk)

	c, ok, err := s.ActiveConversationFor("b")
	if err != nil || !ok {
		t.Fatalf("active: ok=%v err=%v", ok, err)
	}
	if len(c.Participants) != 2 || len(c.Turns) != 1 {
		t.Errorf("aggregate = %+v", c)
	}

	// Ending the conversation in an overlay hides it from the member query.
	tk, _ = s.Begin(2)
	two := 2
	c.EndedTick = &two
	for i := range c.Participants {
		c.Participants[i].LeftTick = &two
	}
	tk.PutConversation(c)
	if _, ok, _ := tk.ActiveConversationFor("b"); ok {
		t.Fatalf("ended conversation still active in overlay")
	}
	commit(t, s, tk)
	if _, ok, _ := s.ActiveConversationFor("b"); ok {
		t.Fatalf("ended conversation still active after commit")
	}
}

func TestInvitationStatusFlow(t *testing.T) {
	s := newTestStore(t)
	tk, _ := s.Begin(1)
	tk.PutAgent(domain.Agent{Name: "a", ModelID: "m", Inventory: domain.NewInventory()})
	tk.PutAgent(domain.Agent{Name: "b", ModelID: "m", Inventory: domain.NewInventory()})
	tk.PutInvitation(domain.Invitation{
		ID: "i1", Inviter: "a", Invitee: "b",
		Privacy: domain.Public, CreatedTick: 1, Status: domain.InvitePending,
	})
	commit(t, s, tk)

	pending, err := s.PendingInvitationsFor("b")
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %v err=%v", pending, err)
	}

	tk, _ = s.Begin(2)
	inv := pending[0]
	inv.Status = domain.InviteExpired
	tk.PutInvitation(inv)
	if got, _ := tk.PendingInvitations(); len(got) != 0 {
		t.Fatalf("expired invitation still pending in overlay")
	}
	commit(t, s, tk)
	if got, _ := s.PendingInvitations(); len(got) != 0 {
		t.Fatalf("expired invitation still pending after commit")
	}
}

func TestSchemaMismatchFatal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "world.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	// Fake a future schema version.
	if _, err := s.db.Exec(`INSERT INTO schema_version (version, applied_at) VALUES (?, 'now')`, SchemaVersion+1); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	s.Close()

	_, err = Open(path)
	if !errors.Is(err, ErrSchemaMismatch) {
		t.Fatalf("reopen err = %v, want ErrSchemaMismatch", err)
	}
}

func TestNamedPlacesAndStructures(t *testing.T) {
	s := newTestStore(t)
	tk, _ := s.Begin(1)
	home := domain.Position{X: 10, Y: 10}
	tk.SetNamedPlace("hearthstone", home)
	tk.PutStructure(domain.Structure{
		ID:       "s1",
		Interior: []domain.Position{home},
		Creators: []string{"Ember"},
	})
	c, _ := tk.Cell(home)
	c.StructureID = "s1"
	tk.SetCell(home, c)
	commit(t, s, tk)

	p, ok, err := s.PlacePosition("hearthstone")
	if err != nil || !ok || p != home {
		t.Fatalf("place = %v ok=%v err=%v", p, ok, err)
	}
	st, ok, err := s.StructureAt(home)
	if err != nil || !ok || st.ID != "s1" || len(st.Creators) != 1 {
		t.Fatalf("structure = %+v ok=%v err=%v", st, ok, err)
	}
}
