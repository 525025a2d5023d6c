// Package tracker assigns persistent integer identities to vehicle detections
// across detection cycles using greedy IOU matching. The assignment is
// deliberately greedy and order-dependent (candidates scanned in ascending
// track id order), not a globally optimal one.
package tracker

import (
	"image"
	"sort"
	"time"

	"safeheads/internal/detect"
)

const (
	DefaultIOUThreshold = 0.35
	DefaultMaxIdle      = 2500 * time.Millisecond
)

type Config struct {
	// IOUThreshold is the minimum overlap for a detection to claim a track.
	IOUThreshold float64
	// MaxIdle is how long a track survives without being matched.
	MaxIdle time.Duration
}

type track struct {
	bbox     image.Rectangle
	lastSeen time.Time
}

// Tracker is single-writer: all calls must come from the owning loop.
type Tracker struct {
	cfg    Config
	nextID int
	tracks map[int]*track
	now    func() time.Time
}

func New(cfg Config) *Tracker {
	if cfg.IOUThreshold <= 0 {
		cfg.IOUThreshold = DefaultIOUThreshold
	}
	if cfg.MaxIdle <= 0 {
		cfg.MaxIdle = DefaultMaxIdle
	}
	return &Tracker{
		cfg:    cfg,
		nextID: 1,
		tracks: make(map[int]*track),
		now:    time.Now,
	}
}

// SetClock replaces the time source. Test hook.
func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

// ActiveTracks returns the number of live tracks.
func (t *Tracker) ActiveTracks() int { return len(t.tracks) }

// Update evicts idle tracks, matches each detection greedily to the
// unmatched track with the highest IOU above the threshold, and mints new
// ids for the rest. Returns the detections with TrackID filled in.
func (t *Tracker) Update(detections []detect.Detection) []detect.Detection {
	now := t.now()
	t.evict(now)

	unmatched := make(map[int]bool, len(t.tracks))
	for id := range t.tracks {
		unmatched[id] = true
	}

	assigned := make(map[int]int, len(detections)) // detection index -> track id
	for i, det := range detections {
		bestID := 0
		bestIOU := 0.0
		for _, id := range sortedIDs(unmatched) {
			iou := IOU(det.BBox, t.tracks[id].bbox)
			if iou > t.cfg.IOUThreshold && iou > bestIOU {
				bestIOU = iou
				bestID = id
			}
		}
		if bestID != 0 {
			assigned[i] = bestID
			delete(unmatched, bestID)
		}
	}

	for i := range detections {
		if id, ok := assigned[i]; ok {
			detections[i].TrackID = id
			t.tracks[id].bbox = detections[i].BBox
			t.tracks[id].lastSeen = now
			continue
		}
		id := t.nextID
		t.nextID++
		detections[i].TrackID = id
		t.tracks[id] = &track{bbox: detections[i].BBox, lastSeen: now}
	}

	return detections
}

func (t *Tracker) evict(now time.Time) {
	for id, tr := range t.tracks {
		if now.Sub(tr.lastSeen) > t.cfg.MaxIdle {
			delete(t.tracks, id)
		}
	}
}

func sortedIDs(set map[int]bool) []int {
	ids := make([]int, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// IOU computes intersection-over-union for two boxes. Degenerate boxes and
// a non-positive union both yield 0.
func IOU(a, b image.Rectangle) float64 {
	inter := a.Intersect(b)
	interArea := float64(inter.Dx() * inter.Dy())
	areaA := float64(maxInt(0, a.Dx()) * maxInt(0, a.Dy()))
	areaB := float64(maxInt(0, b.Dx()) * maxInt(0, b.Dy()))
	union := areaA + areaB - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
