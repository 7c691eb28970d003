package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var galleryCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Build the face gallery and report skipped citizens",
	Long: `Encode the reference picture of every registered citizen, as a capture
session does on start, and list the citizens whose picture could not be used.`,
	Args: cobra.NoArgs,
	RunE: runGallery,
}

func init() {
	rootCmd.AddCommand(galleryCmd)
	galleryCmd.Flags().Bool("list", false, "List every citizen in the gallery")
}

func runGallery(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.loadRecognizer(); err != nil {
		return err
	}

	identities, err := a.store.ListAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list citizens: %w", err)
	}

	bar := progressbar.NewOptions(len(identities),
		progressbar.OptionSetDescription("Encoding"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("faces"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	b := a.builder()
	b.Progress = func(done, total int) { _ = bar.Set(done) }
	g, report, err := b.Build(cmd.Context(), identities)
	_ = bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("Gallery: %d of %d citizen(s) encoded\n", report.Added, report.Total)

	if mustGetBool(cmd, "list") {
		for _, e := range g.Entries() {
			fmt.Printf("  %-20s %-24s %s\n", e.Identity.ID, e.Identity.Name, e.Identity.Status)
		}
	}

	if len(report.Skipped) > 0 {
		fmt.Printf("\nSkipped %d:\n", len(report.Skipped))
		for _, s := range report.Skipped {
			reason := s.Reason
			if s.Err != nil {
				reason += ": " + s.Err.Error()
			}
			fmt.Printf("  %-20s %s\n", s.IdentityID, reason)
		}
	}
	return nil
}
