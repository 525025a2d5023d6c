package video

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"safeheads/internal/crop"
	"safeheads/internal/detect"
	"safeheads/internal/tracker"
)

// FrameSource is the subset of Source the scheduler needs.
type FrameSource interface {
	Read(dst *gocv.Mat) bool
	Paused() bool
	FPS() float64
	Kind() Kind
}

// Ticker is invoked once per frame loop iteration. Implementations
// rate-limit themselves.
type Ticker interface {
	Tick(now time.Time)
}

// FrameSink receives every annotated frame, e.g. for MJPEG streaming.
type FrameSink interface {
	Publish(frame gocv.Mat)
}

// Observer gets per-loop counters for metrics export.
type Observer interface {
	FrameProcessed()
	DetectionsFound(n int)
	CropsSaved(n int)
}

// SchedulerConfig holds the cadence settings of the frame loop.
type SchedulerConfig struct {
	DetectInterval time.Duration
	ConfThreshold  float64
	LiveFrameDelay time.Duration
	PauseDelay     time.Duration
}

// DefaultSchedulerConfig detects every two seconds at confidence 0.5
// and paces live streams at roughly 30 frames per second.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		DetectInterval: 2 * time.Second,
		ConfThreshold:  0.5,
		LiveFrameDelay: 33 * time.Millisecond,
		PauseDelay:     100 * time.Millisecond,
	}
}

// Scheduler drives the frame loop: it reads frames continuously,
// runs vehicle detection on its own cadence, keeps the tracker and crop
// extractor fed, and annotates every frame with the last detection set.
type Scheduler struct {
	src    FrameSource
	det    detect.VehicleDetector
	trk    *tracker.Tracker
	crops  *crop.Extractor
	roi    *ROI
	annot  *Annotator
	ticker Ticker
	sink   FrameSink
	obs    Observer
	log    zerolog.Logger
	cfg    SchedulerConfig

	mu          sync.Mutex
	detectionOn bool
	confThresh  float64
	lastDets    []detect.Detection
	lastDetect  time.Time
	frames      uint64

	now   func() time.Time
	sleep func(time.Duration)
}

// NewScheduler wires the frame loop. roi, ticker, sink and obs may be nil.
func NewScheduler(log zerolog.Logger, cfg SchedulerConfig, src FrameSource,
	det detect.VehicleDetector, trk *tracker.Tracker, crops *crop.Extractor,
	roi *ROI, ticker Ticker, sink FrameSink, obs Observer) *Scheduler {

	if cfg.DetectInterval <= 0 {
		cfg.DetectInterval = 2 * time.Second
	}
	if cfg.LiveFrameDelay <= 0 {
		cfg.LiveFrameDelay = 33 * time.Millisecond
	}
	if cfg.PauseDelay <= 0 {
		cfg.PauseDelay = 100 * time.Millisecond
	}
	return &Scheduler{
		src:         src,
		det:         det,
		trk:         trk,
		crops:       crops,
		roi:         roi,
		annot:       NewAnnotator(roi),
		ticker:      ticker,
		sink:        sink,
		obs:         obs,
		log:         log,
		cfg:         cfg,
		detectionOn: true,
		confThresh:  cfg.ConfThreshold,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// SetClock overrides the time source and sleep function for tests.
func (s *Scheduler) SetClock(now func() time.Time, sleep func(time.Duration)) {
	s.now = now
	s.sleep = sleep
}

// SetDetectionEnabled toggles detection at runtime. Frames keep flowing
// either way; only the detector stops being consulted.
func (s *Scheduler) SetDetectionEnabled(on bool) {
	s.mu.Lock()
	s.detectionOn = on
	s.mu.Unlock()
	s.log.Info().Bool("enabled", on).Msg("detection toggled")
}

// DetectionEnabled reports whether detection currently runs.
func (s *Scheduler) DetectionEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.detectionOn
}

// SetConfThreshold changes the detection confidence threshold.
func (s *Scheduler) SetConfThreshold(t float64) {
	s.mu.Lock()
	s.confThresh = t
	s.mu.Unlock()
}

// ConfThreshold returns the current confidence threshold.
func (s *Scheduler) ConfThreshold() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confThresh
}

// LastDetections returns a copy of the most recent tracked detection set.
func (s *Scheduler) LastDetections() []detect.Detection {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]detect.Detection, len(s.lastDets))
	copy(out, s.lastDets)
	return out
}

// FrameCount returns the number of frames processed so far.
func (s *Scheduler) FrameCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Run processes frames until the context is cancelled or the source is
// exhausted. File sources never exhaust on their own since Read loops.
func (s *Scheduler) Run(ctx context.Context) error {
	frame := gocv.NewMat()
	defer frame.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if s.src.Paused() {
			s.sleep(s.cfg.PauseDelay)
			continue
		}

		if !s.src.Read(&frame) {
			s.log.Info().Msg("frame source exhausted")
			return nil
		}

		now := s.now()
		s.mu.Lock()
		s.frames++
		due := s.detectionOn && now.Sub(s.lastDetect) >= s.cfg.DetectInterval
		thresh := s.confThresh
		s.mu.Unlock()

		if s.obs != nil {
			s.obs.FrameProcessed()
		}

		if due {
			s.runDetection(frame, now, thresh)
		}

		s.annot.Draw(&frame, s.LastDetections())

		if s.ticker != nil {
			s.ticker.Tick(now)
		}
		if s.sink != nil {
			s.sink.Publish(frame)
		}

		if s.src.Kind() == KindFile {
			if fps := s.src.FPS(); fps > 0 {
				s.sleep(time.Duration(float64(time.Second) / fps))
			}
		} else {
			s.sleep(s.cfg.LiveFrameDelay)
		}
	}
}

func (s *Scheduler) runDetection(frame gocv.Mat, now time.Time, thresh float64) {
	dets, err := s.det.Detect(frame, thresh)
	s.mu.Lock()
	s.lastDetect = now
	s.mu.Unlock()
	if err != nil {
		s.log.Warn().Err(err).Msg("vehicle detection failed")
		return
	}

	vehicles := dets[:0:0]
	for _, det := range dets {
		if det.Class != detect.ClassVehicle {
			continue
		}
		if s.roi != nil && !s.roi.Contains(det.Center()) {
			continue
		}
		vehicles = append(vehicles, det)
	}

	tracked := s.trk.Update(vehicles)

	saved := 0
	if s.crops != nil {
		saved = s.crops.OnDetections(frame, tracked)
	}

	s.mu.Lock()
	s.lastDets = tracked
	s.mu.Unlock()

	if s.obs != nil {
		s.obs.DetectionsFound(len(tracked))
		if saved > 0 {
			s.obs.CropsSaved(saved)
		}
	}

	s.log.Debug().
		Int("detections", len(tracked)).
		Int("crops_saved", saved).
		Msg("detection pass")
}
