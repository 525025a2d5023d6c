// Package crop writes vehicle crop artifacts and owns the artifact filename
// convention shared by the helmet scanner and the plate resolver.
package crop

import (
	"image"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"safeheads/internal/detect"
)

const (
	DefaultSaveInterval = time.Second
	DefaultMinWidth     = 290
	DefaultMinHeight    = 450
)

type ExtractorConfig struct {
	Dir    string
	Prefix string
	// SaveInterval is the global rate limit across all detections.
	SaveInterval time.Duration
	// MinWidth/MinHeight gate each detection independently of the
	// resolver's pixel-resolution gate.
	MinWidth  int
	MinHeight int
}

// Extractor saves one crop artifact per qualifying detection, rate limited
// globally. OnDetections runs on the scheduler loop; the setters may be
// called from other goroutines, so cfg and lastSave are mutex-guarded.
type Extractor struct {
	mu       sync.Mutex
	cfg      ExtractorConfig
	lastSave time.Time
	now      func() time.Time
	log      zerolog.Logger
}

func NewExtractor(cfg ExtractorConfig, log zerolog.Logger) *Extractor {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = DefaultSaveInterval
	}
	if cfg.MinWidth <= 0 {
		cfg.MinWidth = DefaultMinWidth
	}
	if cfg.MinHeight <= 0 {
		cfg.MinHeight = DefaultMinHeight
	}
	return &Extractor{cfg: cfg, now: time.Now, log: log}
}

// SetClock replaces the time source. Test hook.
func (e *Extractor) SetClock(now func() time.Time) { e.now = now }

// SetSaveInterval adjusts the global rate limit at runtime.
func (e *Extractor) SetSaveInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	e.mu.Lock()
	e.cfg.SaveInterval = d
	e.mu.Unlock()
}

// SetMinSize adjusts the per-detection minimum crop dimensions at runtime.
func (e *Extractor) SetMinSize(width, height int) {
	e.mu.Lock()
	if width > 0 {
		e.cfg.MinWidth = width
	}
	if height > 0 {
		e.cfg.MinHeight = height
	}
	e.mu.Unlock()
}

// Dir returns the artifact directory.
func (e *Extractor) Dir() string { return e.cfg.Dir }

// OnDetections crops and saves each detection that passes both gates. The
// rate-limit timestamp advances once per invocation if at least one crop was
// attempted, saved or size-skipped, so undersized detections do not cause
// bursty re-checks. Returns the number of artifacts written; I/O failures are
// logged and swallowed.
func (e *Extractor) OnDetections(frame gocv.Mat, detections []detect.Detection) int {
	now := e.now()
	e.mu.Lock()
	cfg := e.cfg
	rateLimited := now.Sub(e.lastSave) < cfg.SaveInterval
	e.mu.Unlock()
	if rateLimited {
		return 0
	}
	if len(detections) == 0 {
		return 0
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		e.log.Error().Err(err).Str("dir", cfg.Dir).Msg("cannot create crop directory")
		return 0
	}

	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	timestampMs := now.UnixMilli()
	saved, skipped := 0, 0

	for _, det := range detections {
		rect := det.BBox.Intersect(bounds)
		if rect.Empty() {
			continue
		}
		width, height := rect.Dx(), rect.Dy()
		if width < cfg.MinWidth || height < cfg.MinHeight {
			skipped++
			continue
		}

		region := frame.Region(rect)
		trackID := "unknown"
		if det.TrackID != 0 {
			trackID = strconv.Itoa(det.TrackID)
		}
		name := Filename(cfg.Prefix, timestampMs, trackID, width, height, det.Confidence)
		path := filepath.Join(cfg.Dir, name)
		if gocv.IMWrite(path, region) {
			saved++
			e.log.Debug().Str("file", name).Msg("crop saved")
		} else {
			e.log.Error().Str("file", name).Msg("crop write failed")
		}
		region.Close()
	}

	if saved > 0 || skipped > 0 {
		e.mu.Lock()
		e.lastSave = now
		e.mu.Unlock()
	}
	if skipped > 0 {
		e.log.Debug().Int("skipped", skipped).Int("min_width", cfg.MinWidth).Int("min_height", cfg.MinHeight).Msg("undersized crops skipped")
	}
	return saved
}
