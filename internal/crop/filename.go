package crop

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"safeheads/internal/domain/violation"
)

// DefaultPrefix is the crop artifact prefix. The violation scanner and the
// plate resolver both assume it when parsing filenames.
const DefaultPrefix = "vehicle"

// ViolationPrefix marks crop-derived violation artifacts.
const ViolationPrefix = "violation_"

var (
	cropRe = regexp.MustCompile(`(?i)^([a-z]+)_([0-9]+)_ID([^_]+)_([0-9]+)x([0-9]+)_conf([0-9.]+)\.jpg$`)

	// Accepts both the count-bearing and count-less violation forms.
	violationRe = regexp.MustCompile(`(?i)^violation_[a-z]+_.*?_ID([0-9]+)_([0-9]+)x([0-9]+)_conf([0-9.]+?)(?:_nohelmets([0-9]+))?\.jpg$`)
)

// Filename encodes crop metadata into the artifact name:
// {prefix}_{timestamp_ms}_ID{track_id}_{width}x{height}_conf{confidence:.2f}.jpg
func Filename(prefix string, timestampMs int64, trackID string, width, height int, confidence float64) string {
	return fmt.Sprintf("%s_%d_ID%s_%dx%d_conf%.2f.jpg", prefix, timestampMs, trackID, width, height, confidence)
}

// ParseFilename decodes a crop artifact name.
func ParseFilename(name string) (violation.CropMeta, bool) {
	m := cropRe.FindStringSubmatch(name)
	if m == nil {
		return violation.CropMeta{}, false
	}
	ts, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return violation.CropMeta{}, false
	}
	width, _ := strconv.Atoi(m[4])
	height, _ := strconv.Atoi(m[5])
	conf, err := strconv.ParseFloat(m[6], 64)
	if err != nil {
		return violation.CropMeta{}, false
	}
	return violation.CropMeta{
		Prefix:      m[1],
		TimestampMs: ts,
		TrackID:     m[3],
		Width:       width,
		Height:      height,
		Confidence:  conf,
	}, true
}

// ViolationFilename derives the violation artifact name from its source crop,
// embedding the no-helmet count before the extension.
func ViolationFilename(cropName string, noHelmetCount int) string {
	name := ViolationPrefix + cropName
	if noHelmetCount > 0 {
		name = strings.TrimSuffix(name, ".jpg") + fmt.Sprintf("_nohelmets%d.jpg", noHelmetCount)
	}
	return name
}

// ParseViolationFilename decodes a violation artifact name. NoHelmetCount is
// -1 when the filename carries no count.
func ParseViolationFilename(name string) (violation.Meta, bool) {
	m := violationRe.FindStringSubmatch(name)
	if m == nil {
		return violation.Meta{}, false
	}
	width, _ := strconv.Atoi(m[2])
	height, _ := strconv.Atoi(m[3])
	conf, err := strconv.ParseFloat(m[4], 64)
	if err != nil {
		return violation.Meta{}, false
	}
	count := -1
	if m[5] != "" {
		count, _ = strconv.Atoi(m[5])
	}
	return violation.Meta{
		VehicleID:     m[1],
		Width:         width,
		Height:        height,
		Confidence:    conf,
		NoHelmetCount: count,
	}, true
}

// TrackIDFromName extracts the track id between the "ID" token and the next
// delimiter, best effort. Returns "Unknown" when the name has no parseable id.
func TrackIDFromName(name string) string {
	idx := strings.Index(name, "ID")
	if idx < 0 {
		return "Unknown"
	}
	rest := name[idx+2:]
	end := strings.IndexAny(rest, "_x")
	if end < 0 {
		end = len(rest)
	}
	if end == 0 {
		return "Unknown"
	}
	return rest[:end]
}
