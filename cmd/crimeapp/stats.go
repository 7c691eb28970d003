package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record counts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.registry.Stats(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Printf("Citizens:        %d\n", st.Identities)
	fmt.Printf("  criminal:      %d\n", st.ByKind[storage.KindCriminal])
	fmt.Printf("  missing:       %d\n", st.ByKind[storage.KindMissing])
	fmt.Printf("  Wanted:        %d\n", st.ByStatus[storage.StatusWanted])
	fmt.Printf("  Free:          %d\n", st.ByStatus[storage.StatusFree])
	fmt.Printf("  Found:         %d\n", st.ByStatus[storage.StatusFound])
	fmt.Printf("Sightings:       %d\n", st.Sightings)
	fmt.Printf("Current wanted:  %d\n", st.CurrentWanted)
	return nil
}
