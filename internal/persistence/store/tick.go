package store

import (
	"sort"
	"sync"

	"hearth.world/internal/sim/domain"
)

// Reader is the read surface shared by the committed store and a tick
// overlay. Services read through it; observer queries use *Store directly
// and therefore see only committed state.
type Reader interface {
	WorldState() (domain.WorldState, error)
	Cell(p domain.Position) (domain.Cell, error)
	ObjectsAt(p domain.Position) ([]domain.WorldObject, error)
	Object(id string) (domain.WorldObject, bool, error)
	Agent(name string) (domain.Agent, bool, error)
	Agents() ([]domain.Agent, error)
	PlacePosition(name string) (domain.Position, bool, error)
	NamedPlaces() (map[string]domain.Position, error)
	Structure(id string) (domain.Structure, bool, error)
	StructureAt(p domain.Position) (domain.Structure, bool, error)
	Conversation(id string) (domain.Conversation, bool, error)
	ActiveConversationFor(agent string) (domain.Conversation, bool, error)
	PendingInvitations() ([]domain.Invitation, error)
	PendingInvitationsFor(invitee string) ([]domain.Invitation, error)
}

// Tick is the working state of one tick: an overlay of pending mutations on
// top of the committed database. Reads consult the overlay first and fall
// through to the store. Commit applies the whole overlay as one sqlite
// transaction.
//
// Concurrent cluster goroutines share one Tick; the mutex protects the
// overlay maps. Clusters are far enough apart that they touch disjoint
// keys, so the lock never serialises meaningful work.
type Tick struct {
	s    *Store
	tick int

	mu sync.Mutex

	world *domain.WorldState

	cells map[domain.Position]domain.Cell

	objects    map[string]domain.WorldObject
	objDeleted map[string]bool

	agents map[string]domain.Agent

	places map[string]domain.Position

	structures  map[string]domain.Structure
	structGone  map[string]bool
	convos      map[string]domain.Conversation
	invitations map[string]domain.Invitation
}

// Begin opens the overlay for a tick. The agent roster is loaded eagerly:
// every phase touches it and the population is small.
func (s *Store) Begin(tick int) (*Tick, error) {
	agents, err := s.Agents()
	if err != nil {
		return nil, err
	}
	t := &Tick{
		s:           s,
		tick:        tick,
		cells:       map[domain.Position]domain.Cell{},
		objects:     map[string]domain.WorldObject{},
		objDeleted:  map[string]bool{},
		agents:      map[string]domain.Agent{},
		places:      map[string]domain.Position{},
		structures:  map[string]domain.Structure{},
		structGone:  map[string]bool{},
		convos:      map[string]domain.Conversation{},
		invitations: map[string]domain.Invitation{},
	}
	for _, a := range agents {
		t.agents[a.Name] = a
	}
	return t, nil
}

func (t *Tick) TickNumber() int { return t.tick }

// --- Reader ---

func (t *Tick) WorldState() (domain.WorldState, error) {
	t.mu.Lock()
	if t.world != nil {
		w := *t.world
		t.mu.Unlock()
		return w, nil
	}
	t.mu.Unlock()
	return t.s.WorldState()
}

func (t *Tick) Cell(p domain.Position) (domain.Cell, error) {
	t.mu.Lock()
	if c, ok := t.cells[p]; ok {
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()
	return t.s.Cell(p)
}

func (t *Tick) Object(id string) (domain.WorldObject, bool, error) {
	t.mu.Lock()
	if t.objDeleted[id] {
		t.mu.Unlock()
		return domain.WorldObject{}, false, nil
	}
	if o, ok := t.objects[id]; ok {
		t.mu.Unlock()
		return o, true, nil
	}
	t.mu.Unlock()
	return t.s.Object(id)
}

func (t *Tick) ObjectsAt(p domain.Position) ([]domain.WorldObject, error) {
	committed, err := t.s.ObjectsAt(p)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []domain.WorldObject
	for _, o := range committed {
		if t.objDeleted[o.ID] {
			continue
		}
		if over, ok := t.objects[o.ID]; ok {
			if over.Position == p {
				out = append(out, over)
			}
			continue
		}
		out = append(out, o)
	}
	for id, o := range t.objects {
		if o.Position != p || t.objDeleted[id] {
			continue
		}
		found := false
		for _, c := range committed {
			if c.ID == id {
				found = true
				break
			}
		}
		if !found {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *Tick) Agent(name string) (domain.Agent, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	a, ok := t.agents[name]
	return a, ok, nil
}

func (t *Tick) Agents() ([]domain.Agent, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Agent, 0, len(t.agents))
	for _, a := range t.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (t *Tick) PlacePosition(name string) (domain.Position, bool, error) {
	t.mu.Lock()
	if p, ok := t.places[name]; ok {
		t.mu.Unlock()
		return p, true, nil
	}
	t.mu.Unlock()
	return t.s.PlacePosition(name)
}

func (t *Tick) NamedPlaces() (map[string]domain.Position, error) {
	out, err := t.s.NamedPlaces()
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	for n, p := range t.places {
		out[n] = p
	}
	t.mu.Unlock()
	return out, nil
}

func (t *Tick) Structure(id string) (domain.Structure, bool, error) {
	t.mu.Lock()
	if t.structGone[id] {
		t.mu.Unlock()
		return domain.Structure{}, false, nil
	}
	if st, ok := t.structures[id]; ok {
		t.mu.Unlock()
		return st, true, nil
	}
	t.mu.Unlock()
	return t.s.Structure(id)
}

func (t *Tick) StructureAt(p domain.Position) (domain.Structure, bool, error) {
	c, err := t.Cell(p)
	if err != nil || c.StructureID == "" {
		return domain.Structure{}, false, err
	}
	return t.Structure(c.StructureID)
}

func (t *Tick) Conversation(id string) (domain.Conversation, bool, error) {
	t.mu.Lock()
	if c, ok := t.convos[id]; ok {
		t.mu.Unlock()
		return c, true, nil
	}
	t.mu.Unlock()
	return t.s.Conversation(id)
}

func (t *Tick) ActiveConversationFor(agent string) (domain.Conversation, bool, error) {
	// Overlay conversations first: a join or leave this tick supersedes the
	// committed membership.
	t.mu.Lock()
	for _, c := range t.convos {
		if c.Active() && c.HasActiveParticipant(agent) {
			t.mu.Unlock()
			return c, true, nil
		}
	}
	t.mu.Unlock()

	c, ok, err := t.s.ActiveConversationFor(agent)
	if err != nil || !ok {
		return c, ok, err
	}
	// The committed conversation may have been modified (agent left, or the
	// conversation ended) in the overlay.
	t.mu.Lock()
	over, touched := t.convos[c.ID]
	t.mu.Unlock()
	if touched {
		if over.Active() && over.HasActiveParticipant(agent) {
			return over, true, nil
		}
		return domain.Conversation{}, false, nil
	}
	return c, true, nil
}

func (t *Tick) PendingInvitations() ([]domain.Invitation, error) {
	committed, err := t.s.PendingInvitations()
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []domain.Invitation
	for _, inv := range committed {
		if over, ok := t.invitations[inv.ID]; ok {
			if over.Status == domain.InvitePending {
				out = append(out, over)
			}
			continue
		}
		out = append(out, inv)
	}
	for id, inv := range t.invitations {
		if inv.Status != domain.InvitePending {
			continue
		}
		found := false
		for _, c := range committed {
			if c.ID == id {
				found = true
				break
			}
		}
		if !found {
			out = append(out, inv)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedTick != out[j].CreatedTick {
			return out[i].CreatedTick < out[j].CreatedTick
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *Tick) PendingInvitationsFor(invitee string) ([]domain.Invitation, error) {
	all, err := t.PendingInvitations()
	if err != nil {
		return nil, err
	}
	var out []domain.Invitation
	for _, inv := range all {
		if inv.Invitee == invitee {
			out = append(out, inv)
		}
	}
	return out, nil
}

// --- writers ---

func (t *Tick) SetWorld(w domain.WorldState) {
	t.mu.Lock()
	t.world = &w
	t.mu.Unlock()
}

func (t *Tick) SetCell(p domain.Position, c domain.Cell) {
	t.mu.Lock()
	t.cells[p] = c
	t.mu.Unlock()
}

func (t *Tick) PutObject(o domain.WorldObject) {
	t.mu.Lock()
	delete(t.objDeleted, o.ID)
	t.objects[o.ID] = o
	t.mu.Unlock()
}

func (t *Tick) RemoveObject(id string) {
	t.mu.Lock()
	delete(t.objects, id)
	t.objDeleted[id] = true
	t.mu.Unlock()
}

func (t *Tick) PutAgent(a domain.Agent) {
	t.mu.Lock()
	t.agents[a.Name] = a
	t.mu.Unlock()
}

func (t *Tick) SetNamedPlace(name string, p domain.Position) {
	t.mu.Lock()
	t.places[name] = p
	t.mu.Unlock()
}

func (t *Tick) PutStructure(st domain.Structure) {
	t.mu.Lock()
	delete(t.structGone, st.ID)
	t.structures[st.ID] = st
	t.mu.Unlock()
}

func (t *Tick) RemoveStructure(id string) {
	t.mu.Lock()
	delete(t.structures, id)
	t.structGone[id] = true
	t.mu.Unlock()
}

func (t *Tick) PutConversation(c domain.Conversation) {
	t.mu.Lock()
	t.convos[c.ID] = c
	t.mu.Unlock()
}

func (t *Tick) PutInvitation(inv domain.Invitation) {
	t.mu.Lock()
	t.invitations[inv.ID] = inv
	t.mu.Unlock()
}
