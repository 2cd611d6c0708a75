// Package agents manages the roster: positions, inventories, journeys,
// presence sensing and the meeting ledger. Like the world service it is a
// stateless façade over a store reader or tick overlay.
package agents

import (
	"container/heap"
	"errors"
	"fmt"
	"sort"

	"hearth.world/internal/persistence/store"
	"hearth.world/internal/sim/domain"
	"hearth.world/internal/sim/world"
)

var (
	// ErrUnknownAgent reports a roster miss.
	ErrUnknownAgent = errors.New("agents: unknown agent")
	// ErrNoPath reports that A* found no route to the destination.
	ErrNoPath = errors.New("agents: no path to destination")
)

// Writer is the mutation surface; *store.Tick provides it.
type Writer interface {
	store.Reader
	PutAgent(a domain.Agent)
}

// Service wraps a reader with roster operations.
type Service struct {
	r store.Reader
}

func New(r store.Reader) *Service { return &Service{r: r} }

func (s *Service) writer() Writer {
	w, ok := s.r.(Writer)
	if !ok {
		panic("agents: mutation through a read-only reader")
	}
	return w
}

// Get returns an agent or ErrUnknownAgent.
func (s *Service) Get(name string) (domain.Agent, error) {
	a, ok, err := s.r.Agent(name)
	if err != nil {
		return a, err
	}
	if !ok {
		return a, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	return a, nil
}

// All returns the roster sorted by name.
func (s *Service) All() ([]domain.Agent, error) { return s.r.Agents() }

// Save writes an agent back to the overlay.
func (s *Service) Save(a domain.Agent) { s.writer().PutAgent(a) }

// At returns agents standing on p, sorted by name.
func (s *Service) At(p domain.Position) ([]domain.Agent, error) {
	all, err := s.r.Agents()
	if err != nil {
		return nil, err
	}
	var out []domain.Agent
	for _, a := range all {
		if a.Position == p {
			out = append(out, a)
		}
	}
	return out, nil
}

// Within returns agents other than `self` within the Chebyshev radius of
// center, ordered by (y, x) then name.
func (s *Service) Within(center domain.Position, radius int, self string) ([]domain.Agent, error) {
	all, err := s.r.Agents()
	if err != nil {
		return nil, err
	}
	var out []domain.Agent
	for _, a := range all {
		if a.Name == self {
			continue
		}
		if center.Chebyshev(a.Position) <= radius {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position.Less(out[j].Position)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// RecordMeeting adds each agent to the other's ledger, symmetrically and
// monotonically. Returns true if the pair was new.
func (s *Service) RecordMeeting(a, b string) (bool, error) {
	if a == b {
		return false, nil
	}
	agentA, err := s.Get(a)
	if err != nil {
		return false, err
	}
	agentB, err := s.Get(b)
	if err != nil {
		return false, err
	}
	if agentA.Knows(b) && agentB.Knows(a) {
		return false, nil
	}
	w := s.writer()
	if !agentA.Knows(b) {
		agentA.KnownAgents = append(agentA.KnownAgents, b)
		sort.Strings(agentA.KnownAgents)
		w.PutAgent(agentA)
	}
	if !agentB.Knows(a) {
		agentB.KnownAgents = append(agentB.KnownAgents, a)
		sort.Strings(agentB.KnownAgents)
		w.PutAgent(agentB)
	}
	return true, nil
}

// --- presence sensing ---

// DistanceBucket is the coarse range reported by sense_others.
type DistanceBucket string

const (
	Nearby  DistanceBucket = "nearby"   // Chebyshev <= 10
	Far     DistanceBucket = "far"      // 11..30
	VeryFar DistanceBucket = "very_far" // >= 31
)

func bucketFor(dist int) DistanceBucket {
	switch {
	case dist <= 10:
		return Nearby
	case dist <= 30:
		return Far
	default:
		return VeryFar
	}
}

// Sensed is one entry of a sense_others reading.
type Sensed struct {
	Name      string               `json:"name"`
	Direction domain.CompassBucket `json:"direction,omitempty"`
	Distance  DistanceBucket       `json:"distance"`
}

// SenseOthers reports direction and distance buckets for every known agent.
// Unknown agents are omitted; the reading is intentionally coarse.
func (s *Service) SenseOthers(name string) ([]Sensed, error) {
	self, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	var out []Sensed
	for _, other := range self.KnownAgents {
		o, ok, err := s.r.Agent(other)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, Sensed{
			Name:      other,
			Direction: self.Position.Compass(o.Position),
			Distance:  bucketFor(self.Position.Chebyshev(o.Position)),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// --- journeys ---

// PlanJourney computes an A* path and puts the agent in trance. The
// destination may be a named place (landmark) resolved via the world
// service.
func (s *Service) PlanJourney(name string, dest domain.Position, landmark string, w *world.Service) (domain.Agent, error) {
	a, err := s.Get(name)
	if err != nil {
		return a, err
	}
	path, err := FindPath(a.Position, dest, w)
	if err != nil {
		return a, err
	}
	a.Journey = &domain.Journey{
		Destination: dest,
		Landmark:    landmark,
		Path:        path,
		Progress:    0,
	}
	s.writer().PutAgent(a)
	return a, nil
}

// AdvanceJourney moves the agent one step along its path. The bool reports
// arrival, which clears the journey.
func (s *Service) AdvanceJourney(name string, w *world.Service) (domain.Agent, bool, error) {
	a, err := s.Get(name)
	if err != nil {
		return a, false, err
	}
	if a.Journey == nil {
		return a, false, nil
	}
	j := *a.Journey
	next := j.Progress + 1
	if next >= len(j.Path) {
		a.Journey = nil
		s.writer().PutAgent(a)
		return a, true, nil
	}
	step := j.Path[next]
	// A wall placed since planning invalidates the path.
	dir, ok := stepDirection(j.Path[j.Progress], step)
	if !ok {
		return a, false, fmt.Errorf("agents: corrupt journey path for %s", name)
	}
	can, err := w.CanStep(a.Position, dir)
	if err != nil {
		return a, false, err
	}
	if !can {
		return a, false, ErrNoPath
	}
	a.Position = step
	j.Progress = next
	if j.Arrived() {
		a.Journey = nil
		s.writer().PutAgent(a)
		return a, true, nil
	}
	a.Journey = &j
	s.writer().PutAgent(a)
	return a, false, nil
}

// ClearJourney drops the journey without moving.
func (s *Service) ClearJourney(name string) (domain.Agent, error) {
	a, err := s.Get(name)
	if err != nil {
		return a, err
	}
	a.Journey = nil
	s.writer().PutAgent(a)
	return a, nil
}

func stepDirection(from, to domain.Position) (domain.Direction, bool) {
	for _, d := range domain.Directions {
		if from.Add(d) == to {
			return d, true
		}
	}
	return 0, false
}

// --- A* ---

type pqItem struct {
	pos   domain.Position
	f     int
	order int
}

type pathPQ []pqItem

func (q pathPQ) Len() int { return len(q) }
func (q pathPQ) Less(i, j int) bool {
	if q[i].f != q[j].f {
		return q[i].f < q[j].f
	}
	// Deterministic tie-break: lower (y, x) first, then insertion order.
	if q[i].pos != q[j].pos {
		return q[i].pos.Less(q[j].pos)
	}
	return q[i].order < q[j].order
}
func (q pathPQ) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *pathPQ) Push(x any)   { *q = append(*q, x.(pqItem)) }
func (q *pathPQ) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}

// FindPath runs A* over the passable subgraph with a Manhattan heuristic.
// The returned path starts at start and ends at goal; successive entries
// are single legal cardinal steps.
func FindPath(start, goal domain.Position, w *world.Service) ([]domain.Position, error) {
	if start == goal {
		return []domain.Position{start}, nil
	}
	if ok, err := w.Passable(goal); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrNoPath
	}

	open := &pathPQ{}
	heap.Init(open)
	order := 0
	heap.Push(open, pqItem{pos: start, f: start.Manhattan(goal)})

	cameFrom := map[domain.Position]domain.Position{}
	gScore := map[domain.Position]int{start: 0}

	for open.Len() > 0 {
		cur := heap.Pop(open).(pqItem).pos
		if cur == goal {
			path := []domain.Position{cur}
			for {
				prev, ok := cameFrom[cur]
				if !ok {
					break
				}
				path = append(path, prev)
				cur = prev
			}
			for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
				path[i], path[j] = path[j], path[i]
			}
			return path, nil
		}
		for _, d := range domain.Directions {
			can, err := w.CanStep(cur, d)
			if err != nil {
				return nil, err
			}
			if !can {
				continue
			}
			next := cur.Add(d)
			tentative := gScore[cur] + 1
			if g, seen := gScore[next]; !seen || tentative < g {
				cameFrom[next] = cur
				gScore[next] = tentative
				order++
				heap.Push(open, pqItem{pos: next, f: tentative + next.Manhattan(goal), order: order})
			}
		}
	}
	return nil, ErrNoPath
}
