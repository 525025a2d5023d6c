package http

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MJPEGStream keeps the latest annotated frame as JPEG bytes and serves
// it as a multipart stream. It is the frame sink of the frame loop.
type MJPEGStream struct {
	mu    sync.RWMutex
	frame []byte
	delay time.Duration
}

func NewMJPEGStream() *MJPEGStream {
	return &MJPEGStream{delay: 33 * time.Millisecond}
}

// Publish encodes the frame and replaces the current one.
func (s *MJPEGStream) Publish(frame gocv.Mat) {
	buf, err := gocv.IMEncode(".jpg", frame)
	if err != nil {
		return
	}
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	buf.Close()

	s.mu.Lock()
	s.frame = data
	s.mu.Unlock()
}

// ServeHTTP streams frames until the client disconnects.
func (s *MJPEGStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-time.After(s.delay):
		}

		s.mu.RLock()
		frame := s.frame
		s.mu.RUnlock()
		if frame == nil {
			continue
		}

		if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(frame)); err != nil {
			return
		}
		if _, err := w.Write(frame); err != nil {
			return
		}
		if _, err := fmt.Fprint(w, "\r\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}
