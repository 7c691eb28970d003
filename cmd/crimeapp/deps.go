package main

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/camera"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/gallery"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/matcher"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/media"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/metrics"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/recognition"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/registry"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/session"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/sighting"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/storage/gormstore"
)

// app wires the packages together for one command invocation.
type app struct {
	store    storage.Store
	loader   *media.Loader
	registry *registry.Registry
	recorder *sighting.Recorder

	promReg *prometheus.Registry
	metrics *metrics.Metrics

	// recognizer is nil until loadRecognizer is called.
	recognizer *recognition.DlibRecognizer
}

func openStore() (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "file":
		fs, err := storage.NewFileStorage(cfg.Storage.DataDir, cfg.Storage.EncryptionEnabled)
		if err != nil {
			return nil, err
		}
		return fs, nil
	default:
		db, err := gormstore.Open(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
}

// openApp opens the store and builds everything that does not need the
// face models.
func openApp() (*app, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	store, err := openStore()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Backend, err)
	}
	logging.WithFields(logging.Fields{"backend": cfg.Storage.Backend}).Debug("Storage opened")

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &app{
		store:    store,
		loader:   media.NewLoader(cfg.Storage.MediaDir),
		registry: registry.New(store, cfg.Storage.MediaDir, cfg.Storage.ResultsDir),
		recorder: sighting.NewRecorder(store, store, storage.Location{
			Latitude:  cfg.Sighting.Latitude,
			Longitude: cfg.Sighting.Longitude,
		}),
		promReg: promReg,
		metrics: metrics.New(promReg),
	}
	a.recorder.OnRecord(func(storage.Sighting) { a.metrics.IncSighting() })
	return a, nil
}

// loadRecognizer loads the dlib models from the configured model path.
func (a *app) loadRecognizer() error {
	rec := recognition.NewRecognizer()
	rec.SetTolerance(cfg.Recognition.Tolerance)
	if err := rec.LoadModels(cfg.Recognition.ModelPath); err != nil {
		return fmt.Errorf("failed to load face models from %s (run 'crimeapp models download'): %w",
			cfg.Recognition.ModelPath, err)
	}
	a.recognizer = rec
	return nil
}

func (a *app) Close() {
	if a.recognizer != nil {
		if err := a.recognizer.Close(); err != nil {
			logging.Warnf("Failed to close recognizer: %v", err)
		}
	}
	if err := a.store.Close(); err != nil {
		logging.Warnf("Failed to close storage: %v", err)
	}
}

func (a *app) builder() *gallery.Builder {
	return gallery.NewBuilder(a.loader, a.recognizer)
}

func (a *app) pipeline(record bool, label session.LabelFunc) *session.Pipeline {
	p := &session.Pipeline{
		Detector: a.recognizer,
		Matcher:  matcher.New(recognition.EuclideanDistance, a.recognizer.IsMatch),
		Metrics:  a.metrics,
		Label:    label,
	}
	if record {
		p.Recorder = a.recorder
	}
	return p
}

func (a *app) supervisor(device string, notifier session.Notifier) *session.Supervisor {
	camOpts := camera.Options{
		Width:  cfg.Camera.Width,
		Height: cfg.Camera.Height,
		FPS:    cfg.Camera.FPS,
		FourCC: cfg.Camera.FourCC,
	}
	deps := session.Deps{
		NewCamera:  func() session.Camera { return camera.NewVideoCamera(camOpts) },
		Builder:    a.builder(),
		Identities: a.store,
		Pipeline:   a.pipeline(true, session.WebcamLabel),
		Notifier:   notifier,
		Metrics:    a.metrics,
	}
	if cfg.Session.AnnotateFrames {
		deps.Annotate = media.Annotate
	}
	return session.NewSupervisor(deps, session.Options{
		Device:          device,
		MaxReadFailures: cfg.Camera.MaxReadFailures,
		RetryDelay:      time.Duration(cfg.Camera.RetryDelayMs) * time.Millisecond,
	})
}

func (a *app) oneShot(record bool) *session.OneShot {
	return session.NewOneShot(a.loader, a.builder(), a.store,
		a.pipeline(record, session.PictureLabel), media.Annotate, cfg.Storage.ResultsDir)
}
