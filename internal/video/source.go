package video

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// Kind tells a Source whether it reads a seekable file or a live stream.
type Kind int

const (
	KindFile Kind = iota
	KindLive
)

func (k Kind) String() string {
	if k == KindLive {
		return "live"
	}
	return "file"
}

var (
	ErrNotSeekable = errors.New("video: source is not seekable")
	ErrNotPausable = errors.New("video: source cannot be paused")
)

// Source wraps a capture device. File sources loop back to frame zero at
// end of stream and support pause and seek; live sources terminate when
// the stream ends. Capture access is serialized, so Seek and Position
// are safe to call from control handlers while the frame loop reads.
type Source struct {
	cap   *gocv.VideoCapture
	kind  Kind
	fps   float64
	total int
	log   zerolog.Logger

	mu     sync.Mutex
	paused bool
}

// Open opens target as a video source. Numeric targets and rtsp/rtmp/http
// URLs are treated as live streams, everything else as a seekable file.
func Open(log zerolog.Logger, target string) (*Source, error) {
	kind := KindFile
	if isLiveTarget(target) {
		kind = KindLive
	}

	var cap *gocv.VideoCapture
	var err error
	if idx, convErr := strconv.Atoi(target); convErr == nil {
		cap, err = gocv.OpenVideoCapture(idx)
	} else {
		cap, err = gocv.OpenVideoCapture(target)
	}
	if err != nil {
		return nil, fmt.Errorf("open capture %q: %w", target, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return nil, fmt.Errorf("capture %q did not open", target)
	}

	fps := cap.Get(gocv.VideoCaptureFPS)
	if fps <= 0 {
		fps = 30
	}
	total := 0
	if kind == KindFile {
		total = int(cap.Get(gocv.VideoCaptureFrameCount))
	}

	log.Info().
		Str("target", target).
		Str("kind", kind.String()).
		Float64("fps", fps).
		Int("total_frames", total).
		Msg("video source opened")

	return &Source{cap: cap, kind: kind, fps: fps, total: total, log: log}, nil
}

func isLiveTarget(target string) bool {
	if _, err := strconv.Atoi(target); err == nil {
		return true
	}
	lower := strings.ToLower(target)
	for _, prefix := range []string{"rtsp://", "rtmp://", "http://", "https://"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Read fetches the next frame into dst. File sources rewind to frame zero
// when the stream ends; a false return means the source is exhausted.
func (s *Source) Read(dst *gocv.Mat) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cap.Read(dst) && !dst.Empty() {
		return true
	}
	if s.kind != KindFile {
		return false
	}
	s.cap.Set(gocv.VideoCapturePosFrames, 0)
	return s.cap.Read(dst) && !dst.Empty()
}

// Pause stops frame delivery for file sources. Live sources refuse.
func (s *Source) Pause() error {
	if s.kind != KindFile {
		return ErrNotPausable
	}
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	return nil
}

// Resume re-enables frame delivery after Pause.
func (s *Source) Resume() error {
	if s.kind != KindFile {
		return ErrNotPausable
	}
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	return nil
}

// Paused reports whether the source is currently paused.
func (s *Source) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Seek jumps to the given frame index, clamped to the valid range.
// Only file sources are seekable.
func (s *Source) Seek(frame int) (int, error) {
	if s.kind != KindFile {
		return 0, ErrNotSeekable
	}
	if frame < 0 {
		frame = 0
	}
	if s.total > 0 && frame > s.total-1 {
		frame = s.total - 1
	}
	s.mu.Lock()
	s.cap.Set(gocv.VideoCapturePosFrames, float64(frame))
	s.mu.Unlock()
	s.log.Debug().Int("frame", frame).Msg("seek")
	return frame, nil
}

// Position returns the index of the next frame to be read.
func (s *Source) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.cap.Get(gocv.VideoCapturePosFrames))
}

// FPS returns the source frame rate.
func (s *Source) FPS() float64 { return s.fps }

// TotalFrames returns the frame count for file sources, zero for live.
func (s *Source) TotalFrames() int { return s.total }

// Kind reports whether the source is a file or a live stream.
func (s *Source) Kind() Kind { return s.kind }

// Close releases the capture device.
func (s *Source) Close() error {
	return s.cap.Close()
}
