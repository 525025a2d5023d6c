package violation

import (
	"time"
)

// CropMeta is the metadata a crop artifact carries in its filename.
type CropMeta struct {
	Prefix      string  `json:"prefix"`
	TimestampMs int64   `json:"timestamp_ms"`
	TrackID     string  `json:"track_id"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Confidence  float64 `json:"confidence"`
}

// Meta is the parsed metadata of a violation artifact filename. NoHelmetCount
// is -1 when the filename carries no count (the count-less form).
type Meta struct {
	VehicleID     string  `json:"vehicle_id"`
	Width         int     `json:"width"`
	Height        int     `json:"height"`
	Confidence    float64 `json:"confidence"`
	NoHelmetCount int     `json:"no_helmet_count"`
}

// Resolution returns the total pixel count of the source crop.
func (m Meta) Resolution() int {
	return m.Width * m.Height
}

// ScanResult records one helmet-detector pass over a crop artifact.
type ScanResult struct {
	CropFile   string    `json:"crop_file"`
	ResultFile string    `json:"result_file,omitempty"`
	VehicleID  string    `json:"vehicle_id"`
	Classes    []string  `json:"classes"`
	Violations int       `json:"violations"`
	Timestamp  time.Time `json:"timestamp"`
}

// Record is a confirmed helmet violation: a crop with at least one
// no-helmet detection, written out as a violation artifact.
type Record struct {
	CropFile      string    `json:"crop_file"`
	ViolationFile string    `json:"violation_file"`
	VehicleID     string    `json:"vehicle_id"`
	NoHelmetCount int       `json:"no_helmet_count"`
	Timestamp     time.Time `json:"timestamp"`
}

// PlateRecord is the result of a successfully resolved, validated and
// deduplicated plate. Immutable after creation.
type PlateRecord struct {
	ID              string    `json:"id"`
	SourceFile      string    `json:"source_file"`
	EnhancedFile    string    `json:"enhanced_file,omitempty"`
	VehicleID       string    `json:"vehicle_id"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	Confidence      float64   `json:"confidence"`
	NoHelmetCount   int       `json:"no_helmet_count"`
	RawPlate        string    `json:"raw_plate"`
	NormalizedPlate string    `json:"normalized_plate"`
	Model           string    `json:"model,omitempty"`
	ResolvedAt      time.Time `json:"resolved_at"`
}
