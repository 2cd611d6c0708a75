package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"hearth.world/internal/gen"
	"hearth.world/internal/persistence/store"
	"hearth.world/internal/sim/agents"
	"hearth.world/internal/sim/domain"
	"hearth.world/internal/sim/tuning"
)

func newInitCmd(flags *rootFlags, logger *log.Logger) *cobra.Command {
	var seed int64
	cmd := &cobra.Command{
		Use:   "init",
		Short: "generate terrain, place agents and write the initial database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(flags, seed, logger)
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 1337, "terrain seed")
	return cmd
}

func defaultRoster() []tuning.AgentSpec {
	return []tuning.AgentSpec{
		{Name: "Ember", ModelID: "external", Personality: "curious and warm"},
		{Name: "Reed", ModelID: "external", Personality: "quiet, notices small things"},
		{Name: "Sage", ModelID: "external", Personality: "practical, likes to build"},
	}
}

func runInit(flags *rootFlags, seed int64, logger *log.Logger) error {
	tun, _, err := loadConfigs(flags.ConfigDir)
	if err != nil {
		return err
	}
	paths := pathsFor(flags.DataDir)
	if _, err := os.Stat(paths.DB); err == nil {
		return fmt.Errorf("init: %s already exists; refusing to overwrite a world", paths.DB)
	}

	st, err := store.Open(paths.DB)
	if err != nil {
		return asStorage(err)
	}
	defer st.Close()
	if err := st.InitWorld(tun.WorldWidth, tun.WorldHeight); err != nil {
		return asStorage(err)
	}

	logger.Printf("generating %dx%d terrain (seed %d)", tun.WorldWidth, tun.WorldHeight, seed)
	terrain := gen.Generate(gen.Params{Width: tun.WorldWidth, Height: tun.WorldHeight, Seed: seed})

	roster := tun.Agents
	if len(roster) == 0 {
		roster = defaultRoster()
	}
	spawns, err := gen.SpawnPositions(terrain, tun.WorldWidth, tun.WorldHeight, len(roster), seed)
	if err != nil {
		return err
	}

	t, err := st.Begin(0)
	if err != nil {
		return asStorage(err)
	}
	for pos, kind := range terrain {
		t.SetCell(pos, domain.Cell{Terrain: kind})
	}
	for i, spec := range roster {
		t.PutAgent(domain.Agent{
			Name:        spec.Name,
			ModelID:     spec.ModelID,
			Personality: spec.Personality,
			Position:    spawns[i],
			Inventory:   domain.NewInventory(),
		})
	}
	if err := st.Commit(t, nil, nil); err != nil {
		return asStorage(err)
	}

	ws, err := st.WorldState()
	if err != nil {
		return asStorage(err)
	}
	for i, spec := range roster {
		if _, err := agents.EnsureHomeDir(paths.AgentsRoot, spec.Name); err != nil {
			return err
		}
		a, ok, err := st.Agent(spec.Name)
		if err != nil || !ok {
			return asStorage(fmt.Errorf("init: reread agent %s: %w", spec.Name, err))
		}
		if err := agents.WriteStatus(paths.AgentsRoot, a, ws); err != nil {
			return err
		}
		logger.Printf("placed %s at (%d, %d)", spec.Name, spawns[i].X, spawns[i].Y)
	}
	logger.Printf("world ready at %s", paths.DB)
	return nil
}
