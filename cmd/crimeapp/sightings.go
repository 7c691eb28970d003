package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

var sightingsCmd = &cobra.Command{
	Use:   "sightings",
	Short: "Inspect the sighting log",
}

var sightingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sightings of citizens who are still Wanted",
	Args:  cobra.NoArgs,
	RunE:  runSightingsList,
}

var sightingsFoundCmd = &cobra.Command{
	Use:   "found <sighting-id>",
	Short: "Mark the citizen of a sighting as Found",
	Args:  cobra.ExactArgs(1),
	RunE:  runSightingsFound,
}

func init() {
	rootCmd.AddCommand(sightingsCmd)
	sightingsCmd.AddCommand(sightingsListCmd, sightingsFoundCmd)
	sightingsListCmd.Flags().Bool("all", false, "Include sightings of citizens no longer Wanted")
}

func runSightingsList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var sightings []storage.Sighting
	if mustGetBool(cmd, "all") {
		sightings, err = a.store.ListWhere(cmd.Context(), "")
	} else {
		sightings, err = a.registry.ListCurrentWanted(cmd.Context())
	}
	if err != nil {
		return err
	}
	if len(sightings) == 0 {
		fmt.Println("No sightings.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SIGHTING\tCITIZEN\tNAME\tLOCATION\tDISTANCE\tTIME")
	for _, s := range sightings {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s, %s\t%.3f\t%s\n",
			s.ID, s.IdentityID, s.Name, s.Latitude, s.Longitude, s.Distance,
			s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nTotal: %d sighting(s)\n", len(sightings))
	return nil
}

func runSightingsFound(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	identity, err := a.registry.MarkFound(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s) marked as %s\n", identity.Name, identity.ID, identity.Status)
	return nil
}
