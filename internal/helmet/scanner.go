// Package helmet scans saved vehicle crops for riders without helmets and
// writes confirmed violations out as annotated artifacts for the plate
// pipeline to pick up.
package helmet

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"safeheads/internal/crop"
	"safeheads/internal/detect"
	"safeheads/internal/domain/violation"
)

// Observer counts confirmed violations for metrics export.
type Observer interface {
	ViolationSaved()
}

// ViolationPersister stores confirmed violations durably.
type ViolationPersister interface {
	SaveViolation(ctx context.Context, rec violation.Record) error
}

// ScannerConfig holds the directories and cadence of the helmet pass.
type ScannerConfig struct {
	CropDir       string
	ResultsDir    string
	ViolationDir  string
	Interval      time.Duration
	RecentWindow  int
	ConfThreshold float64
	MaxResults    int
	MaxViolations int
}

// DefaultScannerConfig scans every half second, looks at the five most
// recent crops, and keeps the last 100 scan results and 200 violations
// in memory.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		CropDir:       "cropped_images",
		ResultsDir:    "helmet_results",
		ViolationDir:  "violation",
		Interval:      500 * time.Millisecond,
		RecentWindow:  5,
		ConfThreshold: 0.5,
		MaxResults:    100,
		MaxViolations: 200,
	}
}

// Scanner runs the helmet detector over recently saved crops. It is
// driven by Tick from the frame loop and rate-limits itself.
type Scanner struct {
	cfg   ScannerConfig
	det   detect.HelmetDetector
	log   zerolog.Logger
	obs   Observer
	store ViolationPersister

	mu         sync.Mutex
	enabled    bool
	lastScan   time.Time
	results    []violation.ScanResult
	violations []violation.Record

	now func() time.Time
}

// NewScanner builds a scanner. obs may be nil.
func NewScanner(log zerolog.Logger, cfg ScannerConfig, det detect.HelmetDetector, obs Observer) *Scanner {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 5
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	if cfg.MaxViolations <= 0 {
		cfg.MaxViolations = 200
	}
	return &Scanner{
		cfg:     cfg,
		det:     det,
		log:     log,
		obs:     obs,
		enabled: true,
		now:     time.Now,
	}
}

// SetClock replaces the time source. Test hook.
func (s *Scanner) SetClock(now func() time.Time) { s.now = now }

// SetPersister installs a durable store for violation records.
func (s *Scanner) SetPersister(store ViolationPersister) { s.store = store }

// SetEnabled toggles helmet scanning at runtime.
func (s *Scanner) SetEnabled(on bool) {
	s.mu.Lock()
	s.enabled = on
	s.mu.Unlock()
	s.log.Info().Bool("enabled", on).Msg("helmet scanning toggled")
}

// Enabled reports whether scanning currently runs.
func (s *Scanner) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Results returns the most recent scan results, newest last.
func (s *Scanner) Results() []violation.ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]violation.ScanResult, len(s.results))
	copy(out, s.results)
	return out
}

// Violations returns the confirmed violation records, newest last.
func (s *Scanner) Violations() []violation.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]violation.Record, len(s.violations))
	copy(out, s.violations)
	return out
}

// ClearResults drops the in-memory scan result history.
func (s *Scanner) ClearResults() {
	s.mu.Lock()
	s.results = nil
	s.mu.Unlock()
}

// ClearViolations drops the in-memory violation history. Artifacts on
// disk are untouched.
func (s *Scanner) ClearViolations() {
	s.mu.Lock()
	s.violations = nil
	s.mu.Unlock()
}

// Tick runs one scan pass if the scanner is enabled and the interval has
// elapsed. Called once per frame loop iteration.
func (s *Scanner) Tick(now time.Time) {
	s.mu.Lock()
	if !s.enabled || now.Sub(s.lastScan) < s.cfg.Interval {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	s.scan(now)

	s.mu.Lock()
	s.lastScan = now
	s.mu.Unlock()
}

// IsNoHelmetClass reports whether a detector class label marks a rider
// without a helmet.
func IsNoHelmetClass(class string) bool {
	lower := strings.ToLower(class)
	return strings.Contains(lower, "no_helmet") || strings.Contains(lower, "without")
}

func (s *Scanner) scan(now time.Time) {
	entries, err := os.ReadDir(s.cfg.CropDir)
	if err != nil {
		return
	}

	type candidate struct {
		name  string
		mtime time.Time
	}
	var crops []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".jpg") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		crops = append(crops, candidate{name: entry.Name(), mtime: info.ModTime()})
	}
	if len(crops) == 0 {
		return
	}

	sort.Slice(crops, func(i, j int) bool { return crops[i].mtime.After(crops[j].mtime) })
	if len(crops) > s.cfg.RecentWindow {
		crops = crops[:s.cfg.RecentWindow]
	}

	for _, c := range crops {
		s.scanCrop(c.name, c.mtime, now)
	}

	s.mu.Lock()
	if len(s.results) > s.cfg.MaxResults {
		s.results = s.results[len(s.results)-s.cfg.MaxResults:]
	}
	if len(s.violations) > s.cfg.MaxViolations {
		s.violations = s.violations[len(s.violations)-s.cfg.MaxViolations:]
	}
	s.mu.Unlock()
}

func (s *Scanner) scanCrop(name string, cropMtime, now time.Time) {
	cropPath := filepath.Join(s.cfg.CropDir, name)
	markerPath := filepath.Join(s.cfg.ResultsDir, "helmet_"+name)

	// A marker newer than the crop means this file was already scanned.
	if info, err := os.Stat(markerPath); err == nil && info.ModTime().After(cropMtime) {
		return
	}

	img := gocv.IMRead(cropPath, gocv.IMReadColor)
	if img.Empty() {
		return
	}
	defer img.Close()

	dets, err := s.det.Detect(img, s.cfg.ConfThreshold)
	if err != nil {
		s.log.Warn().Err(err).Str("crop", name).Msg("helmet detection failed")
		return
	}

	vehicleID := crop.TrackIDFromName(name)

	noHelmet := 0
	classes := make([]string, 0, len(dets))
	for _, d := range dets {
		classes = append(classes, d.Class)
		if IsNoHelmetClass(d.Class) {
			noHelmet++
		}
	}

	annotated := img.Clone()
	defer annotated.Close()
	white := color.RGBA{255, 255, 255, 0}
	for _, d := range dets {
		gocv.Rectangle(&annotated, d.BBox, white, 2)
		label := fmt.Sprintf("%s: %.2f", d.Class, d.Confidence)
		gocv.PutText(&annotated, label, image.Pt(d.BBox.Min.X, d.BBox.Max.Y+20),
			gocv.FontHersheySimplex, 0.6, white, 2)
	}

	result := violation.ScanResult{
		CropFile:   name,
		VehicleID:  vehicleID,
		Classes:    classes,
		Violations: noHelmet,
		Timestamp:  now,
	}

	if noHelmet > 0 {
		violationName := crop.ViolationFilename(name, noHelmet)
		if err := os.MkdirAll(s.cfg.ViolationDir, 0o755); err == nil {
			violationPath := filepath.Join(s.cfg.ViolationDir, violationName)
			if gocv.IMWrite(violationPath, annotated) {
				result.ResultFile = violationName
				rec := violation.Record{
					CropFile:      name,
					ViolationFile: violationName,
					VehicleID:     vehicleID,
					NoHelmetCount: noHelmet,
					Timestamp:     now,
				}
				s.mu.Lock()
				s.violations = append(s.violations, rec)
				s.mu.Unlock()
				if s.store != nil {
					if err := s.store.SaveViolation(context.Background(), rec); err != nil {
						s.log.Error().Err(err).Str("violation", violationName).Msg("could not persist violation")
					}
				}
				if s.obs != nil {
					s.obs.ViolationSaved()
				}
				s.log.Info().
					Str("violation", violationName).
					Str("vehicle_id", vehicleID).
					Int("no_helmet", noHelmet).
					Msg("violation saved")
			}
		}
	}

	// Marker makes the scan idempotent across passes.
	if err := os.MkdirAll(s.cfg.ResultsDir, 0o755); err == nil {
		gocv.IMWrite(markerPath, annotated)
	}

	s.mu.Lock()
	s.results = append(s.results, result)
	s.mu.Unlock()
}
