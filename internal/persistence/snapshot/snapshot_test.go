package snapshot

import (
	"os"
	"path/filepath"
	"testing"
)

func seedSnapshots(t *testing.T, dir string, ticks ...int) {
	t.Helper()
	snaps := filepath.Join(dir, "snapshots")
	if err := os.MkdirAll(snaps, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, tick := range ticks {
		name := filepath.Join(snaps, "snapshot_"+itoa(tick)+".db")
		if err := os.WriteFile(name, []byte("db"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func TestListOrdersByTick(t *testing.T) {
	dir := t.TempDir()
	seedSnapshots(t, dir, 150, 50, 100)
	m := NewManager(dir, 5)

	all, err := m.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].Tick != 50 || all[2].Tick != 150 {
		t.Fatalf("list = %+v", all)
	}
	latest, ok, err := m.Latest()
	if err != nil || !ok || latest.Tick != 150 {
		t.Fatalf("latest = %+v ok=%v err=%v", latest, ok, err)
	}
}

func TestListIgnoresForeignFiles(t *testing.T) {
	dir := t.TempDir()
	seedSnapshots(t, dir, 10)
	extra := filepath.Join(dir, "snapshots", "notes.txt")
	if err := os.WriteFile(extra, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	m := NewManager(dir, 5)
	all, err := m.List()
	if err != nil || len(all) != 1 {
		t.Fatalf("list = %+v err=%v", all, err)
	}
}

func TestPruneKeepsRollingWindow(t *testing.T) {
	dir := t.TempDir()
	seedSnapshots(t, dir, 10, 20, 30, 40, 50)
	m := NewManager(dir, 2)

	removed, err := m.prune()
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}
	all, _ := m.List()
	if len(all) != 2 || all[0].Tick != 40 || all[1].Tick != 50 {
		t.Errorf("kept = %+v", all)
	}
}

func TestEmptyDirHasNoLatest(t *testing.T) {
	m := NewManager(t.TempDir(), 5)
	if _, ok, err := m.Latest(); ok || err != nil {
		t.Fatalf("latest on empty = ok=%v err=%v", ok, err)
	}
}
