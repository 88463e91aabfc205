// Package live abstracts the bidirectional speech session with the prospect model.
package live

import (
	"context"
	"errors"
)

type EventType string

const (
	EventOpen             EventType = "open"
	EventInputTranscript  EventType = "input_transcript"
	EventOutputTranscript EventType = "output_transcript"
	EventTurnComplete     EventType = "turn_complete"
	EventAudio            EventType = "audio"
	EventInterrupted      EventType = "interrupted"
	EventClosed           EventType = "closed"
	EventError            EventType = "error"
)

// Event is one notification from the live model, already split per concern.
type Event struct {
	Type       EventType
	Text       string
	PCM        []byte
	SampleRate int
	Err        error
}

// Config carries the per-call session parameters.
type Config struct {
	SystemInstruction string
	VoiceName         string
}

// Stream is an open live session. Events is closed after the stream ends;
// no events are delivered once Close has been called.
type Stream interface {
	Events() <-chan Event
	SendAudio(ctx context.Context, pcm []byte) error
	Close() error
}

type Dialer interface {
	Open(ctx context.Context, cfg Config) (Stream, error)
}

var ErrStreamClosed = errors.New("live stream closed")
