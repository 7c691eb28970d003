package main

import (
	"compress/bzip2"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
)

type model struct {
	Name string
	URL  string
}

var dlibModels = []model{
	{
		Name: "shape_predictor_5_face_landmarks.dat",
		URL:  "http://dlib.net/files/shape_predictor_5_face_landmarks.dat.bz2",
	},
	{
		Name: "dlib_face_recognition_resnet_model_v1.dat",
		URL:  "http://dlib.net/files/dlib_face_recognition_resnet_model_v1.dat.bz2",
	},
	{
		Name: "mmod_human_face_detector.dat",
		URL:  "http://dlib.net/files/mmod_human_face_detector.dat.bz2",
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage the face recognition models",
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download [dir]",
	Short: "Download the dlib models",
	Long: `Download and unpack the dlib face detection, landmark and recognition
models. Models already present are skipped. The directory defaults to
recognition.model_path.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runModelsDownload,
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsDownloadCmd)
}

func runModelsDownload(cmd *cobra.Command, args []string) error {
	modelDir := cfg.Recognition.ModelPath
	if len(args) > 0 {
		modelDir = args[0]
	}

	logging.Infof("Downloading models to: %s", modelDir)

	if err := os.MkdirAll(modelDir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	for _, m := range dlibModels {
		targetPath := filepath.Join(modelDir, m.Name)
		if _, err := os.Stat(targetPath); err == nil {
			logging.Infof("Model %s already exists, skipping", m.Name)
			continue
		}

		logging.Infof("Downloading %s...", m.Name)
		if err := downloadAndExtract(cmd.Context(), m, targetPath); err != nil {
			return fmt.Errorf("failed to download %s: %w", m.Name, err)
		}
		logging.Infof("Successfully downloaded %s", m.Name)
	}

	logging.Info("All models downloaded successfully!")
	return nil
}

// downloadAndExtract unpacks into a .part file and renames it on success.
func downloadAndExtract(ctx context.Context, m model, targetPath string) error {
	client := &http.Client{Timeout: 10 * time.Minute}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.URL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	tmpPath := targetPath + ".part"
	out, err := os.Create(tmpPath)
	if err != nil {
		return err
	}

	bar := progressbar.DefaultBytes(resp.ContentLength, m.Name)
	body := io.TeeReader(resp.Body, bar)

	if _, err := io.Copy(out, bzip2.NewReader(body)); err != nil {
		_ = out.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, targetPath)
}
