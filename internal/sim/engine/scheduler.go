package engine

import (
	"sort"

	"hearth.world/internal/sim/domain"
)

// Scheduler computes clusters and carries observer-driven scheduling state
// (forced turns and skip counters) across ticks.
type Scheduler struct {
	clusterRadius int

	forced string
	skips  map[string]int
}

func NewScheduler(clusterRadius int) *Scheduler {
	return &Scheduler{clusterRadius: clusterRadius, skips: map[string]int{}}
}

// ForceNext moves the agent to the head of its cluster for one tick. Ending
// a journey trance is done by the engine's force_turn handling, not here.
func (s *Scheduler) ForceNext(agent string) { s.forced = agent }

// takeForced returns and clears the forced agent.
func (s *Scheduler) takeForced() string {
	f := s.forced
	s.forced = ""
	return f
}

// Skip suppresses the agent's next n turns.
func (s *Scheduler) Skip(agent string, n int) {
	if n > 0 {
		s.skips[agent] += n
	}
}

// shouldSkip consumes one skip credit if present.
func (s *Scheduler) shouldSkip(agent string) bool {
	if s.skips[agent] > 0 {
		s.skips[agent]--
		return true
	}
	return false
}

// Clusters groups the acting agents with union-find: two agents join the
// same cluster when their Chebyshev distance is at most the cluster radius.
// Within a cluster, order is (y, x) then name; clusters are ordered by
// their first member. The forced agent, if acting, leads its cluster.
func (s *Scheduler) Clusters(acting []domain.Agent, forced string) [][]string {
	n := len(acting)
	if n == 0 {
		return nil
	}
	sort.Slice(acting, func(i, j int) bool {
		if acting[i].Position != acting[j].Position {
			return acting[i].Position.Less(acting[j].Position)
		}
		return acting[i].Name < acting[j].Name
	})

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if acting[i].Position.Chebyshev(acting[j].Position) <= s.clusterRadius {
				union(i, j)
			}
		}
	}

	groups := map[int][]string{}
	var roots []int
	for i, a := range acting {
		r := find(i)
		if _, seen := groups[r]; !seen {
			roots = append(roots, r)
		}
		groups[r] = append(groups[r], a.Name)
	}

	out := make([][]string, 0, len(roots))
	for _, r := range roots {
		cluster := groups[r]
		if forced != "" {
			for i, name := range cluster {
				if name == forced && i > 0 {
					cluster = append([]string{name}, append(append([]string{}, cluster[:i]...), cluster[i+1:]...)...)
					break
				}
			}
		}
		out = append(out, cluster)
	}
	return out
}
