// Package detect defines the detection capability consumed by the video
// pipeline and a gocv DNN implementation of it. The pipeline only depends on
// the interfaces here; the YOLO adapter is selected by configuration.
package detect

import (
	"image"

	"gocv.io/x/gocv"
)

// Class labels produced by the detectors. Helmet model class names vary by
// training run, so the helmet scanner matches them by substring rather than
// against constants.
const (
	ClassVehicle = "vehicle"
)

// Detection is one detected object in a frame or crop. TrackID is zero until
// the tracker assigns one; tracker ids start at 1.
type Detection struct {
	Class      string          `json:"class"`
	Confidence float64         `json:"confidence"`
	BBox       image.Rectangle `json:"bbox"`
	TrackID    int             `json:"track_id,omitempty"`
}

// Center returns the bbox center, used for ROI point-in-polygon filtering.
func (d Detection) Center() image.Point {
	return image.Pt((d.BBox.Min.X+d.BBox.Max.X)/2, (d.BBox.Min.Y+d.BBox.Max.Y)/2)
}

// VehicleDetector finds vehicles in a full frame.
type VehicleDetector interface {
	Detect(frame gocv.Mat, confThreshold float64) ([]Detection, error)
}

// HelmetDetector finds helmet / no-helmet regions in a vehicle crop.
type HelmetDetector interface {
	Detect(crop gocv.Mat, confThreshold float64) ([]Detection, error)
}
