package video

import (
	"errors"
	"sync"
	"testing"
)

func TestIsLiveTarget(t *testing.T) {
	cases := []struct {
		target string
		live   bool
	}{
		{"0", true},
		{"2", true},
		{"rtsp://cam.local/stream", true},
		{"RTMP://cam.local/stream", true},
		{"http://cam.local/feed", true},
		{"https://cam.local/feed", true},
		{"traffic.mp4", false},
		{"/data/videos/junction.avi", false},
	}
	for _, tc := range cases {
		if got := isLiveTarget(tc.target); got != tc.live {
			t.Errorf("isLiveTarget(%q) = %v, want %v", tc.target, got, tc.live)
		}
	}
}

func TestLiveSourceRefusesSeekAndPause(t *testing.T) {
	s := &Source{kind: KindLive}
	if _, err := s.Seek(10); !errors.Is(err, ErrNotSeekable) {
		t.Errorf("Seek err = %v, want ErrNotSeekable", err)
	}
	if err := s.Pause(); !errors.Is(err, ErrNotPausable) {
		t.Errorf("Pause err = %v, want ErrNotPausable", err)
	}
	if err := s.Resume(); !errors.Is(err, ErrNotPausable) {
		t.Errorf("Resume err = %v, want ErrNotPausable", err)
	}
}

func TestPauseStateConcurrent(t *testing.T) {
	s := &Source{kind: KindFile}
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Pause()
				_ = s.Paused()
				_ = s.Resume()
			}
		}()
	}
	wg.Wait()
	if s.Paused() {
		t.Error("source still paused after all goroutines resumed")
	}
}

func TestKindString(t *testing.T) {
	if KindFile.String() != "file" || KindLive.String() != "live" {
		t.Errorf("kind strings = %q, %q", KindFile.String(), KindLive.String())
	}
}
