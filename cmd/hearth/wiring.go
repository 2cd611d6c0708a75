package main

import (
	"fmt"
	"log"
	"path/filepath"

	"hearth.world/internal/adapters"
	"hearth.world/internal/persistence/eventlog"
	"hearth.world/internal/persistence/snapshot"
	"hearth.world/internal/persistence/store"
	"hearth.world/internal/persistence/trace"
	"hearth.world/internal/sim/engine"
	"hearth.world/internal/sim/recipes"
	"hearth.world/internal/sim/tuning"
)

// worldPaths resolves the persisted layout under the data dir.
type worldPaths struct {
	DB         string
	EventLog   string
	AgentsRoot string
	DataDir    string
}

func pathsFor(dataDir string) worldPaths {
	return worldPaths{
		DB:         filepath.Join(dataDir, "world.db"),
		EventLog:   filepath.Join(dataDir, "events.jsonl"),
		AgentsRoot: filepath.Join(dataDir, "agents"),
		DataDir:    dataDir,
	}
}

func loadConfigs(configDir string) (tuning.Tuning, *recipes.Table, error) {
	tun, err := tuning.Load(filepath.Join(configDir, "tuning.yaml"))
	if err != nil {
		return tun, nil, fmt.Errorf("load tuning: %w", err)
	}
	table, err := recipes.Load(filepath.Join(configDir, "recipes.yaml"))
	if err != nil {
		return tun, nil, fmt.Errorf("load recipes: %w", err)
	}
	return tun, table, nil
}

// openEngine wires a full engine over an existing world database.
func openEngine(flags *rootFlags, logger *log.Logger) (*engine.Engine, func(), error) {
	tun, table, err := loadConfigs(flags.ConfigDir)
	if err != nil {
		return nil, nil, err
	}
	paths := pathsFor(flags.DataDir)

	st, err := store.Open(paths.DB)
	if err != nil {
		return nil, nil, asStorage(err)
	}
	lastSeq, err := st.LastSeq()
	if err != nil {
		_ = st.Close()
		return nil, nil, asStorage(err)
	}
	elog, err := eventlog.Open(paths.EventLog, lastSeq)
	if err != nil {
		_ = st.Close()
		return nil, nil, asStorage(err)
	}
	tracer := trace.NewTurnTracer(paths.DataDir)

	eng, err := engine.New(engine.Config{
		Store:      st,
		Log:        elog,
		Snaps:      snapshot.NewManager(paths.DataDir, tun.SnapshotKeep),
		Tracer:     tracer,
		Tun:        tun,
		Recipes:    table,
		Reasoner:   adapters.IdleReasoner{},
		Narrator:   adapters.TemplateNarrator{},
		Logger:     logger,
		AgentsRoot: paths.AgentsRoot,
	})
	if err != nil {
		_ = elog.Close()
		_ = st.Close()
		return nil, nil, err
	}
	cleanup := func() {
		_ = tracer.Close()
		_ = elog.Close()
		_ = st.Close()
	}
	return eng, cleanup, nil
}
