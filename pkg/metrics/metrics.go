// Package metrics exposes Prometheus instrumentation for capture sessions.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the capture pipeline collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	FramesProcessed prometheus.Counter
	FrameErrors     prometheus.Counter
	FacesDetected   prometheus.Counter

	// Matches by result: "known" or "unknown"
	Matches *prometheus.CounterVec

	SightingsRecorded prometheus.Counter
	FrameDuration     prometheus.Histogram
	SessionActive     prometheus.Gauge
	GallerySize       prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesProcessed: f.NewCounter(prometheus.CounterOpts{
			Name: "crimeapp_frames_processed_total",
			Help: "Frames run through the detection pipeline",
		}),
		FrameErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "crimeapp_frame_errors_total",
			Help: "Frame reads or pipeline runs that failed",
		}),
		FacesDetected: f.NewCounter(prometheus.CounterOpts{
			Name: "crimeapp_faces_detected_total",
			Help: "Faces found across all processed frames",
		}),
		Matches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crimeapp_matches_total",
			Help: "Match results by outcome",
		}, []string{"result"}),
		SightingsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "crimeapp_sightings_recorded_total",
			Help: "Sightings appended to the log",
		}),
		FrameDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "crimeapp_frame_duration_seconds",
			Help:    "Time to detect, match and record one frame",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		SessionActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "crimeapp_session_active",
			Help: "1 while a capture session is running",
		}),
		GallerySize: f.NewGauge(prometheus.GaugeOpts{
			Name: "crimeapp_gallery_size",
			Help: "Entries in the gallery of the current session",
		}),
	}
}

// ObserveFrame records one processed frame.
func (m *Metrics) ObserveFrame(faces int, d time.Duration) {
	if m != nil {
		m.FramesProcessed.Inc()
		m.FacesDetected.Add(float64(faces))
		m.FrameDuration.Observe(d.Seconds())
	}
}

// IncFrameError counts a failed frame.
func (m *Metrics) IncFrameError() {
	if m != nil {
		m.FrameErrors.Inc()
	}
}

// IncMatch counts one match outcome.
func (m *Metrics) IncMatch(known bool) {
	if m == nil {
		return
	}
	result := "unknown"
	if known {
		result = "known"
	}
	m.Matches.WithLabelValues(result).Inc()
}

// IncSighting counts an appended sighting.
func (m *Metrics) IncSighting() {
	if m != nil {
		m.SightingsRecorded.Inc()
	}
}

// SetSessionActive flips the session gauge.
func (m *Metrics) SetSessionActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.SessionActive.Set(1)
	} else {
		m.SessionActive.Set(0)
	}
}

// SetGallerySize records the size of the freshly built gallery.
func (m *Metrics) SetGallerySize(n int) {
	if m != nil {
		m.GallerySize.Set(float64(n))
	}
}
