package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/session"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the camera for Wanted citizens",
	Long: `Run a capture session in the foreground. Every face is matched against
the registry; Wanted citizens are logged as sightings. Press q and Enter,
or Ctrl+C, to stop. A video file given with --device stops at its end.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("device", "", "Camera device or video file (overrides config)")
	watchCmd.Flags().String("save-frame", "", "Write the last processed frame to this JPEG file")
}

func runWatch(cmd *cobra.Command, args []string) error {
	device := cfg.Camera.Device
	if d := mustGetString(cmd, "device"); d != "" {
		device = d
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.loadRecognizer(); err != nil {
		return err
	}

	a.recorder.OnRecord(func(s storage.Sighting) {
		fmt.Printf("SIGHTING  %s (%s) %s  distance %.3f\n", s.Name, s.IdentityID, s.Address, s.Distance)
	})
	sup := a.supervisor(device, nil)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info, err := sup.Start(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Session %s started on %s with %d citizen(s) in the gallery\n", info.ID, device, info.GallerySize)
	if d := info.Device; d != nil {
		fmt.Printf("Capturing %dx%d at %.0f fps\n", d.Width, d.Height, d.FPS)
	}
	fmt.Println("Press q and Enter to stop.")

	quit := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if strings.EqualFold(strings.TrimSpace(scanner.Text()), "q") {
				close(quit)
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-quit:
	case <-sup.Done():
	}

	if err := sup.Stop(); err != nil && session.CodeOf(err) != session.CodeNotRunning {
		return err
	}

	if path := mustGetString(cmd, "save-frame"); path != "" {
		if frame, ok := sup.LatestFrame(); ok {
			if err := os.WriteFile(path, frame, 0644); err != nil {
				return fmt.Errorf("failed to save frame: %w", err)
			}
			fmt.Printf("Last frame saved to %s\n", path)
		}
	}

	final := sup.Status()
	fmt.Println()
	fmt.Printf("Frames:     %d (%d failed)\n", final.Frames, final.FrameErrors)
	fmt.Printf("Faces:      %d\n", final.Faces)
	fmt.Printf("Matches:    %d\n", final.Matches)
	fmt.Printf("Sightings:  %d\n", final.Sightings)
	if final.LastError != "" {
		return fmt.Errorf("session ended: %s", final.LastError)
	}
	return nil
}
