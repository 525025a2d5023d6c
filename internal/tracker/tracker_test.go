package tracker

import (
	"image"
	"testing"
	"time"

	"safeheads/internal/detect"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func det(x1, y1, x2, y2 int) detect.Detection {
	return detect.Detection{Class: detect.ClassVehicle, Confidence: 0.9, BBox: image.Rect(x1, y1, x2, y2)}
}

func TestIOU(t *testing.T) {
	tests := []struct {
		name string
		a, b image.Rectangle
		want float64
	}{
		{"identical", image.Rect(0, 0, 100, 100), image.Rect(0, 0, 100, 100), 1.0},
		{"disjoint", image.Rect(0, 0, 100, 100), image.Rect(200, 200, 300, 300), 0.0},
		{"half overlap", image.Rect(0, 0, 100, 100), image.Rect(0, 0, 50, 100), 0.5},
		{"zero area both", image.Rect(10, 10, 10, 10), image.Rect(10, 10, 10, 10), 0.0},
		{"degenerate", image.Rect(0, 0, 0, 0), image.Rect(0, 0, 100, 100), 0.0},
	}
	for _, tt := range tests {
		if got := IOU(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: IOU = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestUpdateAssignsDistinctIDs(t *testing.T) {
	tr := New(Config{})
	tr.SetClock(fixedClock(time.Unix(1000, 0)))

	out := tr.Update([]detect.Detection{det(0, 0, 100, 100), det(200, 200, 300, 300)})
	if len(out) != 2 {
		t.Fatalf("got %d detections, want 2", len(out))
	}
	if out[0].TrackID != 1 || out[1].TrackID != 2 {
		t.Fatalf("got ids %d,%d, want 1,2", out[0].TrackID, out[1].TrackID)
	}
}

func TestUpdateKeepsIDAcrossHighIOUFrames(t *testing.T) {
	tr := New(Config{})
	clock := time.Unix(1000, 0)
	tr.SetClock(func() time.Time { return clock })

	first := tr.Update([]detect.Detection{det(0, 0, 100, 100), det(200, 200, 300, 300)})
	clock = clock.Add(500 * time.Millisecond)
	second := tr.Update([]detect.Detection{det(5, 5, 105, 105)})

	if second[0].TrackID != first[0].TrackID {
		t.Errorf("shifted box got id %d, want %d", second[0].TrackID, first[0].TrackID)
	}
}

func TestEvictionMintsLargerID(t *testing.T) {
	tr := New(Config{MaxIdle: 2 * time.Second})
	clock := time.Unix(1000, 0)
	tr.SetClock(func() time.Time { return clock })

	first := tr.Update([]detect.Detection{det(0, 0, 100, 100)})

	// Within the idle window the track survives and is re-matched.
	clock = clock.Add(1900 * time.Millisecond)
	kept := tr.Update([]detect.Detection{det(0, 0, 100, 100)})
	if kept[0].TrackID != first[0].TrackID {
		t.Fatalf("track evicted inside idle window")
	}

	// Past the idle window the track is evicted and re-appearance mints a
	// new, strictly larger id.
	clock = clock.Add(2100 * time.Millisecond)
	fresh := tr.Update([]detect.Detection{det(0, 0, 100, 100)})
	if fresh[0].TrackID <= first[0].TrackID {
		t.Errorf("got id %d after eviction, want > %d", fresh[0].TrackID, first[0].TrackID)
	}
	if tr.ActiveTracks() != 1 {
		t.Errorf("got %d active tracks, want 1", tr.ActiveTracks())
	}
}

func TestLowIOUMintsNewID(t *testing.T) {
	tr := New(Config{IOUThreshold: 0.35})
	clock := time.Unix(1000, 0)
	tr.SetClock(func() time.Time { return clock })

	first := tr.Update([]detect.Detection{det(0, 0, 100, 100)})
	clock = clock.Add(time.Second)
	second := tr.Update([]detect.Detection{det(90, 90, 190, 190)})

	if second[0].TrackID == first[0].TrackID {
		t.Errorf("low-overlap detection reused id %d", first[0].TrackID)
	}
}

func TestGreedyMatchIsDeterministic(t *testing.T) {
	// Two tracks, one detection overlapping both equally above threshold:
	// the lower track id must win because candidates are scanned in
	// ascending id order and later ties do not displace the best.
	for run := 0; run < 20; run++ {
		tr := New(Config{IOUThreshold: 0.1})
		clock := time.Unix(1000, 0)
		tr.SetClock(func() time.Time { return clock })

		tr.Update([]detect.Detection{det(0, 0, 100, 100), det(50, 0, 150, 100)})
		clock = clock.Add(time.Second)
		out := tr.Update([]detect.Detection{det(25, 0, 125, 100)})
		if out[0].TrackID != 1 {
			t.Fatalf("run %d: tie broke to id %d, want 1", run, out[0].TrackID)
		}
	}
}
