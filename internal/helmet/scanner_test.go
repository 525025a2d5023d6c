package helmet

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"safeheads/internal/detect"
)

type fakeHelmetDetector struct {
	calls int
	dets  []detect.Detection
}

func (f *fakeHelmetDetector) Detect(frame gocv.Mat, confThreshold float64) ([]detect.Detection, error) {
	f.calls++
	out := make([]detect.Detection, len(f.dets))
	copy(out, f.dets)
	return out, nil
}

func writeCrop(t *testing.T, dir, name string) string {
	t.Helper()
	img := gocv.NewMatWithSize(460, 300, gocv.MatTypeCV8UC3)
	defer img.Close()
	path := filepath.Join(dir, name)
	if !gocv.IMWrite(path, img) {
		t.Fatalf("could not write crop %s", path)
	}
	return path
}

func newTestScanner(t *testing.T, det detect.HelmetDetector) (*Scanner, ScannerConfig, *time.Time) {
	t.Helper()
	root := t.TempDir()
	cfg := DefaultScannerConfig()
	cfg.CropDir = filepath.Join(root, "crops")
	cfg.ResultsDir = filepath.Join(root, "results")
	cfg.ViolationDir = filepath.Join(root, "violation")
	if err := os.MkdirAll(cfg.CropDir, 0o755); err != nil {
		t.Fatal(err)
	}
	s := NewScanner(zerolog.Nop(), cfg, det, nil)
	now := time.Unix(2000, 0)
	s.SetClock(func() time.Time { return now })
	return s, cfg, &now
}

func TestScannerSavesViolation(t *testing.T) {
	det := &fakeHelmetDetector{dets: []detect.Detection{
		{Class: "no_helmet", Confidence: 0.81, BBox: image.Rect(10, 10, 60, 60)},
		{Class: "helmet", Confidence: 0.92, BBox: image.Rect(80, 10, 130, 60)},
	}}
	s, cfg, now := newTestScanner(t, det)
	writeCrop(t, cfg.CropDir, "vehicle_1000_ID3_300x460_conf0.85.jpg")

	s.Tick(*now)

	want := "violation_vehicle_1000_ID3_300x460_conf0.85_nohelmets1.jpg"
	if _, err := os.Stat(filepath.Join(cfg.ViolationDir, want)); err != nil {
		t.Fatalf("violation artifact missing: %v", err)
	}

	recs := s.Violations()
	if len(recs) != 1 {
		t.Fatalf("violations = %d, want 1", len(recs))
	}
	if recs[0].VehicleID != "3" {
		t.Errorf("vehicle id = %q, want 3", recs[0].VehicleID)
	}
	if recs[0].NoHelmetCount != 1 {
		t.Errorf("no helmet count = %d, want 1", recs[0].NoHelmetCount)
	}

	results := s.Results()
	if len(results) != 1 || results[0].Violations != 1 {
		t.Errorf("unexpected scan results: %+v", results)
	}
}

func TestScannerIgnoresHelmetedRiders(t *testing.T) {
	det := &fakeHelmetDetector{dets: []detect.Detection{
		{Class: "with_helmet", Confidence: 0.9, BBox: image.Rect(10, 10, 60, 60)},
	}}
	s, cfg, now := newTestScanner(t, det)
	writeCrop(t, cfg.CropDir, "vehicle_1000_ID7_300x460_conf0.90.jpg")

	s.Tick(*now)

	if entries, _ := os.ReadDir(cfg.ViolationDir); len(entries) != 0 {
		t.Errorf("no violation artifact expected, found %d", len(entries))
	}
	if len(s.Violations()) != 0 {
		t.Error("no violation record expected")
	}
	results := s.Results()
	if len(results) != 1 || results[0].Violations != 0 {
		t.Errorf("unexpected scan results: %+v", results)
	}
}

func TestScannerResultMarkerSkipsRescan(t *testing.T) {
	det := &fakeHelmetDetector{dets: []detect.Detection{
		{Class: "no_helmet", Confidence: 0.8, BBox: image.Rect(10, 10, 60, 60)},
	}}
	s, cfg, now := newTestScanner(t, det)
	writeCrop(t, cfg.CropDir, "vehicle_1000_ID1_300x460_conf0.80.jpg")

	s.Tick(*now)
	if det.calls != 1 {
		t.Fatalf("detector calls = %d, want 1", det.calls)
	}

	*now = now.Add(time.Second)
	s.Tick(*now)
	if det.calls != 1 {
		t.Errorf("detector calls = %d, want 1 after marker written", det.calls)
	}
}

func TestScannerRateLimit(t *testing.T) {
	det := &fakeHelmetDetector{}
	s, cfg, now := newTestScanner(t, det)
	writeCrop(t, cfg.CropDir, "vehicle_1000_ID1_300x460_conf0.80.jpg")

	s.Tick(*now)
	s.Tick(*now) // same instant, inside the interval
	if det.calls != 1 {
		t.Errorf("detector calls = %d, want 1 within one interval", det.calls)
	}
}

func TestScannerRecentWindow(t *testing.T) {
	det := &fakeHelmetDetector{}
	s, cfg, now := newTestScanner(t, det)

	base := time.Unix(1500, 0)
	for i := 0; i < 7; i++ {
		name := writeCrop(t, cfg.CropDir, nameForIndex(i))
		mtime := base.Add(time.Duration(i) * time.Second)
		if err := os.Chtimes(name, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	s.Tick(*now)
	if det.calls != 5 {
		t.Errorf("detector calls = %d, want 5 (recent window)", det.calls)
	}
}

func nameForIndex(i int) string {
	return fmt.Sprintf("vehicle_10%02d_ID%d_300x460_conf0.80.jpg", i, i+1)
}

func TestScannerDisabled(t *testing.T) {
	det := &fakeHelmetDetector{}
	s, cfg, now := newTestScanner(t, det)
	writeCrop(t, cfg.CropDir, "vehicle_1000_ID1_300x460_conf0.80.jpg")

	s.SetEnabled(false)
	s.Tick(*now)
	if det.calls != 0 {
		t.Errorf("detector calls = %d, want 0 while disabled", det.calls)
	}
}

func TestIsNoHelmetClass(t *testing.T) {
	cases := []struct {
		class string
		want  bool
	}{
		{"no_helmet", true},
		{"No_Helmet", true},
		{"Without Helmet", true},
		{"rider_without_helmet", true},
		{"helmet", false},
		{"with_helmet", false},
	}
	for _, tc := range cases {
		if got := IsNoHelmetClass(tc.class); got != tc.want {
			t.Errorf("IsNoHelmetClass(%q) = %v, want %v", tc.class, got, tc.want)
		}
	}
}
