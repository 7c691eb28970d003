package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/session"
)

var matchCmd = &cobra.Command{
	Use:   "match <image>",
	Short: "Match the faces in one picture",
	Long: `Detect every face in a JPG or PNG picture and match it against the
registry. The annotated picture is written to the results directory.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)
	matchCmd.Flags().Bool("record", false, "Log sightings for Wanted citizens (default from config)")
	matchCmd.Flags().Bool("json", false, "Print the result as JSON")
}

func runMatch(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	record := cfg.Session.RecordOneShot
	if cmd.Flags().Changed("record") {
		record = mustGetBool(cmd, "record")
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.loadRecognizer(); err != nil {
		return err
	}

	res, err := a.oneShot(record).Run(cmd.Context(), filepath.Base(path), data)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	printDetections(res.Detections)
	if res.ResultPath != "" {
		fmt.Printf("\nProcessed image saved: %s\n", res.ResultPath)
	}
	return nil
}

func printDetections(dets []session.Detection) {
	if len(dets) == 0 {
		fmt.Println("No faces detected.")
		return
	}
	fmt.Printf("%d face(s) detected:\n", len(dets))
	for i, d := range dets {
		line := fmt.Sprintf("  [%d] %s", i+1, d.Label)
		if d.Result.Known {
			line += fmt.Sprintf("  (distance %.3f)", d.Result.Distance)
		}
		if d.Sighting != nil {
			line += "  sighting " + d.Sighting.ID
		}
		fmt.Println(line)
	}
}
