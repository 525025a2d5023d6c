package crop

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"safeheads/internal/detect"
)

func testFrame(t *testing.T) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSize(720, 1280, gocv.MatTypeCV8UC3)
	t.Cleanup(func() { frame.Close() })
	return frame
}

func listJPGs(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".jpg" {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestOnDetectionsSavesQualifyingCrop(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(ExtractorConfig{Dir: dir, MinWidth: 150, MinHeight: 150}, zerolog.Nop())
	clock := time.UnixMilli(1700000000000)
	ex.SetClock(func() time.Time { return clock })

	frame := testFrame(t)
	dets := []detect.Detection{{
		Class:      detect.ClassVehicle,
		Confidence: 0.87,
		BBox:       image.Rect(100, 100, 400, 600),
		TrackID:    7,
	}}

	if saved := ex.OnDetections(frame, dets); saved != 1 {
		t.Fatalf("saved = %d, want 1", saved)
	}

	names := listJPGs(t, dir)
	if len(names) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(names))
	}
	meta, ok := ParseFilename(names[0])
	if !ok {
		t.Fatalf("artifact name %q does not parse", names[0])
	}
	if meta.TrackID != "7" || meta.Width != 300 || meta.Height != 500 {
		t.Fatalf("artifact meta = %+v", meta)
	}

	// Name dimensions must equal the saved image's dimensions.
	img := gocv.IMRead(filepath.Join(dir, names[0]), gocv.IMReadColor)
	defer img.Close()
	if img.Cols() != meta.Width || img.Rows() != meta.Height {
		t.Fatalf("image %dx%d, name says %dx%d", img.Cols(), img.Rows(), meta.Width, meta.Height)
	}
}

func TestOnDetectionsRateLimit(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(ExtractorConfig{Dir: dir, MinWidth: 100, MinHeight: 100, SaveInterval: time.Second}, zerolog.Nop())
	clock := time.UnixMilli(1700000000000)
	ex.SetClock(func() time.Time { return clock })

	frame := testFrame(t)
	dets := []detect.Detection{{Confidence: 0.9, BBox: image.Rect(0, 0, 200, 200), TrackID: 1}}

	if saved := ex.OnDetections(frame, dets); saved != 1 {
		t.Fatalf("first pass saved = %d, want 1", saved)
	}
	clock = clock.Add(300 * time.Millisecond)
	if saved := ex.OnDetections(frame, dets); saved != 0 {
		t.Fatalf("rate-limited pass saved = %d, want 0", saved)
	}
	clock = clock.Add(time.Second)
	if saved := ex.OnDetections(frame, dets); saved != 1 {
		t.Fatalf("post-interval pass saved = %d, want 1", saved)
	}
}

func TestOnDetectionsSizeGateAdvancesRateLimit(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(ExtractorConfig{Dir: dir, MinWidth: 300, MinHeight: 300, SaveInterval: time.Second}, zerolog.Nop())
	clock := time.UnixMilli(1700000000000)
	ex.SetClock(func() time.Time { return clock })

	frame := testFrame(t)
	small := []detect.Detection{{Confidence: 0.9, BBox: image.Rect(0, 0, 100, 100), TrackID: 1}}
	big := []detect.Detection{{Confidence: 0.9, BBox: image.Rect(0, 0, 400, 400), TrackID: 2}}

	if saved := ex.OnDetections(frame, small); saved != 0 {
		t.Fatalf("undersized pass saved = %d, want 0", saved)
	}
	// A size-skipped attempt still advances the rate limit, so a qualifying
	// detection right after is held back.
	clock = clock.Add(100 * time.Millisecond)
	if saved := ex.OnDetections(frame, big); saved != 0 {
		t.Fatalf("pass inside advanced interval saved = %d, want 0", saved)
	}
	clock = clock.Add(time.Second)
	if saved := ex.OnDetections(frame, big); saved != 1 {
		t.Fatalf("post-interval pass saved = %d, want 1", saved)
	}
}

func TestSettersSafeAgainstOnDetections(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(ExtractorConfig{Dir: dir, MinWidth: 100, MinHeight: 100, SaveInterval: time.Millisecond}, zerolog.Nop())

	frame := testFrame(t)
	dets := []detect.Detection{{Confidence: 0.9, BBox: image.Rect(0, 0, 200, 200), TrackID: 1}}

	// Tuned from another goroutine while the save loop runs, for the race
	// detector.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			ex.SetSaveInterval(time.Duration(i+1) * time.Millisecond)
			ex.SetMinSize(100+i, 100+i)
		}
	}()
	for i := 0; i < 50; i++ {
		ex.OnDetections(frame, dets)
	}
	<-done

	// The last tuning applies to subsequent passes.
	clock := time.Now().Add(time.Hour)
	ex.SetClock(func() time.Time { return clock })
	ex.SetMinSize(500, 500)
	if saved := ex.OnDetections(frame, dets); saved != 0 {
		t.Fatalf("undersized pass saved = %d, want 0", saved)
	}
}

func TestOnDetectionsClampsToFrame(t *testing.T) {
	dir := t.TempDir()
	ex := NewExtractor(ExtractorConfig{Dir: dir, MinWidth: 100, MinHeight: 100}, zerolog.Nop())
	clock := time.UnixMilli(1700000000000)
	ex.SetClock(func() time.Time { return clock })

	frame := testFrame(t) // 1280x720
	dets := []detect.Detection{{Confidence: 0.9, BBox: image.Rect(1100, 500, 1500, 900), TrackID: 3}}

	if saved := ex.OnDetections(frame, dets); saved != 1 {
		t.Fatalf("saved = %d, want 1", saved)
	}
	names := listJPGs(t, dir)
	meta, ok := ParseFilename(names[0])
	if !ok {
		t.Fatalf("artifact name %q does not parse", names[0])
	}
	if meta.Width != 180 || meta.Height != 220 {
		t.Fatalf("clamped dims = %dx%d, want 180x220", meta.Width, meta.Height)
	}
}
