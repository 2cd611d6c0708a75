package engine

import (
	"reflect"
	"testing"

	"hearth.world/internal/sim/domain"
)

func agentAt(name string, x, y int) domain.Agent {
	return domain.Agent{Name: name, Position: domain.Position{X: x, Y: y}}
}

func TestClustersGroupByChebyshevChain(t *testing.T) {
	s := NewScheduler(5)
	acting := []domain.Agent{
		agentAt("a", 0, 0),
		agentAt("b", 4, 0),   // within 5 of a
		agentAt("c", 8, 0),   // within 5 of b -> same cluster by chaining
		agentAt("d", 30, 30), // alone
	}
	clusters := s.Clusters(acting, "")
	if len(clusters) != 2 {
		t.Fatalf("clusters = %v", clusters)
	}
	if !reflect.DeepEqual(clusters[0], []string{"a", "b", "c"}) {
		t.Errorf("chained cluster = %v", clusters[0])
	}
	if !reflect.DeepEqual(clusters[1], []string{"d"}) {
		t.Errorf("singleton = %v", clusters[1])
	}
}

func TestClustersOrderIsDeterministic(t *testing.T) {
	s := NewScheduler(5)
	acting := []domain.Agent{
		agentAt("zed", 1, 0),
		agentAt("amy", 0, 0),
		agentAt("bob", 0, 1),
	}
	clusters := s.Clusters(acting, "")
	if len(clusters) != 1 {
		t.Fatalf("clusters = %v", clusters)
	}
	// (y, x) then name: amy (0,0), zed (1,0), bob (0,1).
	if !reflect.DeepEqual(clusters[0], []string{"amy", "zed", "bob"}) {
		t.Errorf("order = %v", clusters[0])
	}
}

func TestForcedAgentLeadsItsCluster(t *testing.T) {
	s := NewScheduler(5)
	acting := []domain.Agent{
		agentAt("amy", 0, 0),
		agentAt("bob", 1, 0),
		agentAt("cal", 2, 0),
	}
	clusters := s.Clusters(acting, "cal")
	if !reflect.DeepEqual(clusters[0], []string{"cal", "amy", "bob"}) {
		t.Errorf("forced order = %v", clusters[0])
	}
}

func TestSkipCreditsAreConsumed(t *testing.T) {
	s := NewScheduler(5)
	s.Skip("amy", 2)
	if !s.shouldSkip("amy") || !s.shouldSkip("amy") {
		t.Fatalf("skip credits not honoured")
	}
	if s.shouldSkip("amy") {
		t.Fatalf("skip credit over-consumed")
	}
}

func TestForceIsOneShot(t *testing.T) {
	s := NewScheduler(5)
	s.ForceNext("amy")
	if got := s.takeForced(); got != "amy" {
		t.Fatalf("takeForced = %q", got)
	}
	if got := s.takeForced(); got != "" {
		t.Fatalf("force not cleared: %q", got)
	}
}
