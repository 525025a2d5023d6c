package video

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"safeheads/internal/detect"
)

var (
	vehicleColor = color.RGBA{0, 255, 0, 0}
	otherColor   = color.RGBA{0, 165, 255, 0}
	roiColor     = color.RGBA{255, 255, 0, 0}
)

// Annotator draws detection overlays onto frames in place.
type Annotator struct {
	roi *ROI
}

// NewAnnotator returns an annotator that also outlines the given region
// of interest. roi may be nil.
func NewAnnotator(roi *ROI) *Annotator {
	return &Annotator{roi: roi}
}

// Draw renders bounding boxes and track labels for dets, plus the ROI
// polygon when one is configured.
func (a *Annotator) Draw(frame *gocv.Mat, dets []detect.Detection) {
	for _, det := range dets {
		col := otherColor
		if det.Class == detect.ClassVehicle {
			col = vehicleColor
		}
		gocv.Rectangle(frame, det.BBox, col, 2)

		label := fmt.Sprintf("%s #%d: %.2f", det.Class, det.TrackID, det.Confidence)
		origin := image.Pt(det.BBox.Min.X, det.BBox.Min.Y-10)
		if origin.Y < 10 {
			origin.Y = det.BBox.Min.Y + 20
		}
		gocv.PutText(frame, label, origin, gocv.FontHersheySimplex, 0.5, col, 2)

		if det.TrackID > 0 {
			badge := image.Rect(det.BBox.Min.X, det.BBox.Min.Y,
				det.BBox.Min.X+40, det.BBox.Min.Y+22)
			gocv.Rectangle(frame, badge, col, -1)
			gocv.PutText(frame, fmt.Sprintf("%d", det.TrackID),
				image.Pt(det.BBox.Min.X+4, det.BBox.Min.Y+17),
				gocv.FontHersheySimplex, 0.5, color.RGBA{0, 0, 0, 0}, 2)
		}
	}

	if a.roi != nil {
		if pts := a.roi.Points(); len(pts) >= 3 {
			pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
			gocv.Polylines(frame, pv, true, roiColor, 2)
			pv.Close()
		}
	}
}
