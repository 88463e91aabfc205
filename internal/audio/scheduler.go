package audio

import (
	"sync"
	"time"
)

const (
	// InputSampleRate is the microphone rate expected by the live model.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of synthesized prospect audio.
	OutputSampleRate = 24000
)

// Clock reports elapsed playback time since its origin.
type Clock interface {
	Now() time.Duration
}

type wallClock struct {
	origin time.Time
}

// NewWallClock returns a Clock whose origin is the moment of the call.
func NewWallClock() Clock {
	return wallClock{origin: time.Now()}
}

func (c wallClock) Now() time.Duration { return time.Since(c.origin) }

// ManualClock is a Clock advanced explicitly, for replays and tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	c.mu.Unlock()
}

// Playback is one buffer placed on the output timeline.
type Playback struct {
	HandleID string
	StartAt  time.Duration
	Duration time.Duration
}

// End is the timeline position at which the buffer finishes.
func (p Playback) End() time.Duration { return p.StartAt + p.Duration }

// Scheduler places prospect audio buffers back to back on the output timeline.
// It is not safe for concurrent use; the call event loop owns it.
type Scheduler struct {
	nextStart time.Duration
	active    []Playback
}

func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Schedule starts the buffer at max(nextStart, now) and advances nextStart by its duration.
func (s *Scheduler) Schedule(handleID string, now, duration time.Duration) Playback {
	start := s.nextStart
	if now > start {
		start = now
	}
	p := Playback{HandleID: handleID, StartAt: start, Duration: duration}
	s.nextStart = start + duration
	s.active = append(s.active, p)
	return p
}

// Ended drops a handle whose playback finished naturally.
func (s *Scheduler) Ended(handleID string) bool {
	for i, p := range s.active {
		if p.HandleID == handleID {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return true
		}
	}
	return false
}

// Interrupt discards every active handle and resets the baseline to the clock origin.
// It returns the discarded handle ids in scheduling order.
func (s *Scheduler) Interrupt() []string {
	ids := make([]string, 0, len(s.active))
	for _, p := range s.active {
		ids = append(ids, p.HandleID)
	}
	s.active = nil
	s.nextStart = 0
	return ids
}

func (s *Scheduler) NextStart() time.Duration { return s.nextStart }

func (s *Scheduler) Active() []Playback {
	return append([]Playback(nil), s.active...)
}
