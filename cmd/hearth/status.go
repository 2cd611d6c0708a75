package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hearth.world/internal/persistence/store"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "print the world state",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.Open(pathsFor(flags.DataDir).DB)
			if err != nil {
				return asStorage(err)
			}
			defer st.Close()

			ws, err := st.WorldState()
			if err != nil {
				return asStorage(err)
			}
			all, err := st.Agents()
			if err != nil {
				return asStorage(err)
			}

			fmt.Printf("tick %d  %s  %s  %dx%d\n", ws.Tick, ws.TimeOfDay(), ws.Weather, ws.Width, ws.Height)
			for _, a := range all {
				state := "awake"
				if a.Sleeping {
					state = "asleep"
				} else if a.InJourney() {
					state = fmt.Sprintf("journeying to (%d, %d)", a.Journey.Destination.X, a.Journey.Destination.Y)
				}
				fmt.Printf("  %-12s (%d, %d)  %s\n", a.Name, a.Position.X, a.Position.Y, state)
			}
			return nil
		},
	}
}
