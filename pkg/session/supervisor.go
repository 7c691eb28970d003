// Package session runs face capture sessions: a single background loop that
// reads camera frames and matches every face against a freshly built
// gallery, and a one-shot variant for uploaded pictures.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/NIHAL-N-M/CrimeApp2/pkg/camera"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/gallery"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/logging"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/media"
	"github.com/NIHAL-N-M/CrimeApp2/pkg/metrics"
)

// State of the supervisor.
type State string

const (
	StateIdle     State = "idle"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	// StateBusy blocks Start while records are being changed.
	StateBusy State = "busy"
)

// Event types published through the Notifier.
const (
	EventSessionStarted   = "session.started"
	EventSessionStopped   = "session.stopped"
	EventSightingRecorded = "sighting.recorded"
)

// Notifier receives session lifecycle events.
type Notifier interface {
	Notify(eventType string, data interface{})
}

// Camera is the part of a capture device the session needs.
type Camera interface {
	Open(device string) error
	ReadFrame() (*camera.Frame, error)
	Close() error
}

// GalleryBuilder builds a gallery from the identity store.
type GalleryBuilder interface {
	BuildFromStore(ctx context.Context, lister gallery.IdentityLister) (*gallery.Gallery, gallery.Report, error)
}

// AnnotateFunc draws labels onto a JPEG image.
type AnnotateFunc func(jpeg []byte, labels []media.Label) ([]byte, error)

// Info describes the current or most recent session.
type Info struct {
	ID          string    `json:"id,omitempty"`
	State       State     `json:"state"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	StoppedAt   time.Time `json:"stopped_at,omitempty"`
	Frames      int       `json:"frames"`
	FrameErrors int       `json:"frame_errors"`
	Faces       int       `json:"faces"`
	Matches     int       `json:"matches"`
	Sightings   int       `json:"sightings"`
	GallerySize int       `json:"gallery_size"`
	LastError   string    `json:"last_error,omitempty"`

	Device *camera.DeviceInfo `json:"device,omitempty"`
}

type deviceInfoer interface {
	GetDeviceInfo() camera.DeviceInfo
}

// Options tunes the capture loop.
type Options struct {
	Device string
	// MaxReadFailures consecutive failed reads end the session.
	MaxReadFailures int
	RetryDelay      time.Duration
}

// Deps are the collaborators of a Supervisor. Annotate, Notifier and
// Metrics are optional.
type Deps struct {
	NewCamera  func() Camera
	Builder    GalleryBuilder
	Identities gallery.IdentityLister
	Pipeline   *Pipeline
	Annotate   AnnotateFunc
	Notifier   Notifier
	Metrics    *metrics.Metrics
}

type run struct {
	info      Info
	cancel    context.CancelFunc
	done      chan struct{}
	cam       Camera
	closeOnce sync.Once
}

func (r *run) closeCamera() {
	r.closeOnce.Do(func() {
		if r.cam == nil {
			return
		}
		if err := r.cam.Close(); err != nil {
			logging.Warnf("Failed to close camera: %v", err)
		}
	})
}

// Supervisor owns the single capture session.
type Supervisor struct {
	deps Deps
	opts Options
	now  func() time.Time

	mu      sync.Mutex
	state   State
	current *run
	last    Info
	frame   []byte
}

// NewSupervisor creates an idle Supervisor.
func NewSupervisor(deps Deps, opts Options) *Supervisor {
	if opts.MaxReadFailures <= 0 {
		opts.MaxReadFailures = 10
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 100 * time.Millisecond
	}
	return &Supervisor{
		deps:  deps,
		opts:  opts,
		now:   time.Now,
		state: StateIdle,
		last:  Info{State: StateIdle},
	}
}

// Start opens the camera, builds the gallery and launches the capture loop.
// It returns once the loop is running. A second Start while a session is
// active fails with CodeAlreadyRunning and leaves that session untouched.
func (s *Supervisor) Start(ctx context.Context) (Info, error) {
	s.mu.Lock()
	if s.state == StateBusy {
		s.mu.Unlock()
		return Info{}, NewError(CodeBusy, nil)
	}
	if s.state != StateIdle {
		s.mu.Unlock()
		return Info{}, NewError(CodeAlreadyRunning, nil)
	}
	workerCtx, cancel := context.WithCancel(context.Background())
	r := &run{
		info: Info{
			ID:        uuid.NewString(),
			State:     StateRunning,
			StartedAt: s.now().UTC(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.state = StateRunning
	s.current = r
	s.frame = nil
	s.mu.Unlock()

	log := logging.Component("session").WithField("session", r.info.ID)

	cam := s.deps.NewCamera()
	r.cam = cam
	if err := cam.Open(s.opts.Device); err != nil {
		serr := NewError(CodeCameraUnavailable, err)
		s.finish(r, serr)
		return Info{}, serr
	}
	if d, ok := cam.(deviceInfoer); ok {
		di := d.GetDeviceInfo()
		s.mu.Lock()
		r.info.Device = &di
		s.mu.Unlock()
	}

	buildCtx, cancelBuild := context.WithCancel(ctx)
	stopBuild := context.AfterFunc(workerCtx, cancelBuild)
	g, report, err := s.deps.Builder.BuildFromStore(buildCtx, s.deps.Identities)
	if err == nil {
		// A Stop during the build must not leave a loop running.
		err = buildCtx.Err()
	}
	stopBuild()
	cancelBuild()
	if err != nil {
		serr := NewError(CodeGalleryFailed, err)
		s.finish(r, serr)
		return Info{}, serr
	}

	s.mu.Lock()
	r.info.GallerySize = g.Len()
	info := r.info
	info.State = s.state
	s.mu.Unlock()

	s.deps.Metrics.SetSessionActive(true)
	s.deps.Metrics.SetGallerySize(g.Len())
	s.notify(EventSessionStarted, info)
	log.WithFields(logging.Fields{
		"device":  s.opts.Device,
		"gallery": g.Len(),
		"skipped": len(report.Skipped),
	}).Info("Capture session started")

	go s.loop(workerCtx, r, g)
	return info, nil
}

// Stop ends the running session and waits until the camera is released.
// It is safe to call from any goroutine other than the capture loop itself.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	r := s.current
	if s.state != StateRunning || r == nil {
		s.mu.Unlock()
		return NewError(CodeNotRunning, nil)
	}
	s.state = StateStopping
	r.info.State = StateStopping
	s.mu.Unlock()

	logging.Component("session").WithField("session", r.info.ID).Info("Stopping capture session")
	r.cancel()
	<-r.done
	return nil
}

// Status returns the current session, or the last one when idle.
func (s *Supervisor) Status() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		info := s.current.info
		info.State = s.state
		return info
	}
	info := s.last
	info.State = s.state
	return info
}

// WhileIdle runs fn with the supervisor held in StateBusy so no session can
// start until fn returns. It fails with CodeAlreadyRunning when a session is
// active.
func (s *Supervisor) WhileIdle(fn func() error) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return NewError(CodeAlreadyRunning, nil)
	}
	s.state = StateBusy
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
	}()
	return fn()
}

// LatestFrame returns the most recent annotated frame. It is kept after the
// session ends and cleared by the next Start.
func (s *Supervisor) LatestFrame() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.frame != nil
}

// Done returns a channel closed when the current session has ended. When no
// session is active the channel is already closed.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		return s.current.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (s *Supervisor) loop(ctx context.Context, r *run, g *gallery.Gallery) {
	log := logging.Component("session").WithField("session", r.info.ID)
	var exitErr error
	defer func() {
		if p := recover(); p != nil {
			exitErr = fmt.Errorf("capture loop panic: %v", p)
			log.Errorf("Capture loop panic: %v", p)
		}
		s.finish(r, exitErr)
	}()

	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		frame, err := r.cam.ReadFrame()
		if errors.Is(err, io.EOF) {
			log.Info("End of video stream")
			return
		}
		if err != nil {
			failures++
			s.countFrameError(r)
			log.WithError(err).Warnf("Frame read failed (%d/%d)", failures, s.opts.MaxReadFailures)
			if failures >= s.opts.MaxReadFailures {
				exitErr = NewError(CodeCameraIO, err)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.opts.RetryDelay):
			}
			continue
		}
		failures = 0

		s.processFrame(ctx, r, g, frame)
	}
}

func (s *Supervisor) processFrame(ctx context.Context, r *run, g *gallery.Gallery, frame *camera.Frame) {
	log := logging.Component("session").WithFields(logging.Fields{
		"session": r.info.ID,
		"frame":   frame.Seq,
	})
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("Frame processing panic: %v", p)
			s.countFrameError(r)
		}
	}()

	start := time.Now()
	detections, err := s.deps.Pipeline.Process(ctx, g, frame.Data, r.info.ID)
	if err != nil {
		if ctx.Err() == nil {
			log.WithError(err).Warn("Frame processing failed")
			s.countFrameError(r)
			return
		}
		// Cancelled mid-frame: faces handled so far still count.
		if len(detections) == 0 {
			return
		}
	}
	s.deps.Metrics.ObserveFrame(len(detections), time.Since(start))

	annotated := frame.Data
	if err == nil && s.deps.Annotate != nil && len(detections) > 0 {
		out, err := s.deps.Annotate(frame.Data, Labels(detections))
		if err != nil {
			log.WithError(err).Warn("Failed to annotate frame")
		} else {
			annotated = out
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r.info.Frames++
	r.info.Faces += len(detections)
	for _, d := range detections {
		if d.Result.Known {
			r.info.Matches++
		}
		if d.Sighting != nil {
			r.info.Sightings++
		}
	}
	if err == nil {
		s.frame = annotated
	}
}

func (s *Supervisor) countFrameError(r *run) {
	s.deps.Metrics.IncFrameError()
	s.mu.Lock()
	r.info.FrameErrors++
	s.mu.Unlock()
}

// finish releases the camera and returns the supervisor to Idle.
func (s *Supervisor) finish(r *run, err error) {
	r.closeCamera()
	r.cancel()

	s.mu.Lock()
	r.info.State = StateIdle
	r.info.StoppedAt = s.now().UTC()
	if err != nil {
		r.info.LastError = err.Error()
	}
	info := r.info
	s.last = info
	if s.current == r {
		s.current = nil
		s.state = StateIdle
	}
	s.mu.Unlock()

	s.deps.Metrics.SetSessionActive(false)
	s.notify(EventSessionStopped, info)
	logging.Component("session").WithFields(logging.Fields{
		"session": info.ID,
		"frames":  info.Frames,
		"matches": info.Matches,
	}).Info("Capture session stopped")
	close(r.done)
}

func (s *Supervisor) notify(eventType string, data interface{}) {
	if s.deps.Notifier != nil {
		s.deps.Notifier.Notify(eventType, data)
	}
}
