package video

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// ROI is a polygon region of interest. An empty polygon admits every
// detection. Points are in frame pixel coordinates.
type ROI struct {
	mu     sync.RWMutex
	points []image.Point
}

// NewROI builds a region from the given polygon vertices.
func NewROI(points []image.Point) *ROI {
	return &ROI{points: points}
}

// Set replaces the polygon. A polygon with fewer than three vertices
// clears the region.
func (r *ROI) Set(points []image.Point) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(points) < 3 {
		r.points = nil
		return
	}
	r.points = points
}

// Points returns a copy of the current polygon.
func (r *ROI) Points() []image.Point {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]image.Point, len(r.points))
	copy(out, r.points)
	return out
}

// Contains reports whether pt lies inside or on the polygon boundary.
// With no polygon configured every point is inside.
func (r *ROI) Contains(pt image.Point) bool {
	r.mu.RLock()
	pts := r.points
	r.mu.RUnlock()
	if len(pts) < 3 {
		return true
	}
	pv := gocv.NewPointVectorFromPoints(pts)
	defer pv.Close()
	return gocv.PointPolygonTest(pv, pt, false) >= 0
}
