package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all citizens, sightings and pictures",
	Long: `Delete every registered citizen and sighting together with the stored
reference pictures and processed results. This cannot be undone.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)
	clearCmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
}

func runClear(cmd *cobra.Command, args []string) error {
	if !mustGetBool(cmd, "yes") && !confirmAction("Delete ALL citizens, sightings and pictures?") {
		fmt.Println("Aborted.")
		return nil
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.registry.ClearAll(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d citizen(s), %d sighting(s), %d picture(s) and %d result(s)\n",
		report.Identities, report.Sightings, report.Pictures, report.Results)
	return nil
}
