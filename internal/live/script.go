package live

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ent0n29/coldcall/internal/audio"
)

var ErrScriptedOpenFailure = errors.New("scripted live session refused to open")

// Step is one scripted server event. After delays the event; AwaitInput holds
// it until the caller sends fresh microphone audio.
type Step struct {
	After      time.Duration `yaml:"after,omitempty"`
	AwaitInput bool          `yaml:"await_input,omitempty"`
	Event      EventType     `yaml:"event"`
	Text       string        `yaml:"text,omitempty"`
	Duration   time.Duration `yaml:"duration,omitempty"`
}

// Script is a replayable prospect conversation loaded from YAML.
type Script struct {
	Name     string `yaml:"name"`
	FailOpen bool   `yaml:"fail_open,omitempty"`
	SkipOpen bool   `yaml:"skip_open,omitempty"`
	Steps    []Step `yaml:"steps"`
}

func (s Script) Validate() error {
	for i, st := range s.Steps {
		switch st.Event {
		case EventInputTranscript, EventOutputTranscript:
			if st.Text == "" {
				return fmt.Errorf("step %d: %s requires text", i, st.Event)
			}
		case EventAudio:
			if st.Duration <= 0 {
				return fmt.Errorf("step %d: audio requires a positive duration", i)
			}
		case EventOpen, EventTurnComplete, EventInterrupted, EventClosed, EventError:
		default:
			return fmt.Errorf("step %d: unknown event %q", i, st.Event)
		}
		if st.After < 0 {
			return fmt.Errorf("step %d: negative delay", i)
		}
	}
	return nil
}

func ParseScript(data []byte) (Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Script{}, fmt.Errorf("parse live script: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Script{}, fmt.Errorf("invalid live script %q: %w", s.Name, err)
	}
	return s, nil
}

func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read live script: %w", err)
	}
	return ParseScript(data)
}

// DefaultScript is a short skeptical prospect that hangs up on the third turn.
func DefaultScript() Script {
	const speech = 700 * time.Millisecond
	return Script{
		Name: "skeptical-hangup",
		Steps: []Step{
			{After: 300 * time.Millisecond, Event: EventOutputTranscript, Text: "Hello? "},
			{Event: EventAudio, Duration: speech},
			{Event: EventTurnComplete},
			{AwaitInput: true, After: 1500 * time.Millisecond, Event: EventInputTranscript, Text: "Hi, I'm calling from a company that can save you money."},
			{After: 400 * time.Millisecond, Event: EventOutputTranscript, Text: "Who is this? I'm in the middle of something."},
			{Event: EventAudio, Duration: speech},
			{Event: EventTurnComplete},
			{AwaitInput: true, After: 1500 * time.Millisecond, Event: EventInputTranscript, Text: "It will only take a minute, how are you doing today?"},
			{After: 400 * time.Millisecond, Event: EventOutputTranscript, Text: "Not interested, goodbye. "},
			{Event: EventAudio, Duration: speech},
			{Event: EventOutputTranscript, Text: "End Scene"},
		},
	}
}

// ScriptDialer replays a Script instead of contacting the model. It backs the
// offline provider mode and the replay command.
type ScriptDialer struct {
	script Script
	logger *zap.Logger
}

func NewScriptDialer(script Script, logger *zap.Logger) *ScriptDialer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptDialer{script: script, logger: logger}
}

func (d *ScriptDialer) Open(ctx context.Context, _ Config) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.script.FailOpen {
		return nil, ErrScriptedOpenFailure
	}
	s := &scriptStream{
		script: d.script,
		events: make(chan Event, 64),
		done:   make(chan struct{}),
		input:  make(chan struct{}, 1),
	}
	d.logger.Debug("scripted live session opened", zap.String("script", d.script.Name), zap.Int("steps", len(d.script.Steps)))
	go s.run()
	return s, nil
}

type scriptStream struct {
	script Script
	events chan Event
	done   chan struct{}
	input  chan struct{}

	mu        sync.Mutex
	received  int
	closeOnce sync.Once
}

func (s *scriptStream) Events() <-chan Event { return s.events }

func (s *scriptStream) SendAudio(_ context.Context, pcm []byte) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}
	s.mu.Lock()
	s.received += len(pcm)
	s.mu.Unlock()
	select {
	case s.input <- struct{}{}:
	default:
	}
	return nil
}

// ReceivedBytes reports how much microphone audio reached the stream.
func (s *scriptStream) ReceivedBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received
}

func (s *scriptStream) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *scriptStream) run() {
	defer close(s.events)
	if !s.script.SkipOpen && !s.emit(Event{Type: EventOpen}) {
		return
	}
	for _, st := range s.script.Steps {
		if st.AwaitInput {
			// Drop input that arrived before this step.
			select {
			case <-s.input:
			default:
			}
			select {
			case <-s.done:
				return
			case <-s.input:
			}
		}
		if st.After > 0 {
			t := time.NewTimer(st.After)
			select {
			case <-s.done:
				t.Stop()
				return
			case <-t.C:
			}
		}
		if !s.emit(stepEvent(st)) {
			return
		}
		if st.Event == EventClosed || st.Event == EventError {
			return
		}
	}
	<-s.done
}

func (s *scriptStream) emit(ev Event) bool {
	select {
	case <-s.done:
		return false
	case s.events <- ev:
		return true
	}
}

func stepEvent(st Step) Event {
	ev := Event{Type: st.Event, Text: st.Text}
	switch st.Event {
	case EventAudio:
		ev.SampleRate = audio.OutputSampleRate
		ev.PCM = audio.Tone(st.Duration, audio.OutputSampleRate, 180)
	case EventError:
		msg := st.Text
		if msg == "" {
			msg = "scripted stream error"
		}
		ev.Err = errors.New(msg)
	}
	return ev
}
