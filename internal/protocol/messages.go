package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/coldcall/internal/coach"
	"github.com/ent0n29/coldcall/internal/transcript"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientAudioChunk  MessageType = "client_audio_chunk"
	TypeClientControl     MessageType = "client_control"
	TypeCallStatus        MessageType = "call_status"
	TypeTranscriptPartial MessageType = "transcript_partial"
	TypeTranscriptMessage MessageType = "transcript_message"
	TypeAssistantAudio    MessageType = "assistant_audio_chunk"
	TypeAudioStop         MessageType = "audio_stop"
	TypeCallFinished      MessageType = "call_finished"
	TypeErrorEvent        MessageType = "error_event"
)

// ActionEndCall asks the server to hang up and grade the call.
const ActionEndCall = "end_call"

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	Seq         int         `json:"seq"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	TSMs        int64       `json:"ts_ms,omitempty"`
}

type ClientControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
}

type CallStatus struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Status    string      `json:"status"`
	Detail    string      `json:"detail,omitempty"`
}

// TranscriptPartial carries the in-progress text of one side. Empty text clears it.
type TranscriptPartial struct {
	Type      MessageType     `json:"type"`
	SessionID string          `json:"session_id"`
	Role      transcript.Role `json:"role"`
	Text      string          `json:"text"`
}

type TranscriptMessage struct {
	Type      MessageType     `json:"type"`
	SessionID string          `json:"session_id"`
	Index     int             `json:"index"`
	Role      transcript.Role `json:"role"`
	Content   string          `json:"content"`
}

// AssistantAudioChunk is prospect audio placed on the call's playback timeline.
// StartAtMS is relative to the moment the call started.
type AssistantAudioChunk struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	HandleID    string      `json:"handle_id"`
	Seq         int         `json:"seq"`
	StartAtMS   int64       `json:"start_at_ms"`
	DurationMS  int64       `json:"duration_ms"`
	SampleRate  int         `json:"sample_rate"`
	Format      string      `json:"format"`
	AudioBase64 string      `json:"audio_base64"`
}

type AudioStop struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	HandleIDs []string    `json:"handle_ids"`
}

type CallFinished struct {
	Type       MessageType          `json:"type"`
	SessionID  string               `json:"session_id"`
	Status     string               `json:"status"`
	Messages   []transcript.Message `json:"messages"`
	Evaluation string               `json:"evaluation"`
	Fallback   bool                 `json:"fallback"`
	Score      int                  `json:"score"`
	Sections   []coach.Section      `json:"sections"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientAudioChunk:
		var msg ClientAudioChunk
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.SessionID == "" || msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid client_audio_chunk")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		msg.Action = strings.ToLower(strings.TrimSpace(msg.Action))
		if msg.SessionID == "" || msg.Action == "" {
			return nil, errors.New("invalid client_control")
		}
		if msg.Action != ActionEndCall {
			return nil, fmt.Errorf("unsupported client_control action %q", msg.Action)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// TypeOf reports the wire type of any protocol message.
func TypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case ClientAudioChunk:
		return m.Type, true
	case ClientControl:
		return m.Type, true
	case CallStatus:
		return m.Type, true
	case TranscriptPartial:
		return m.Type, true
	case TranscriptMessage:
		return m.Type, true
	case AssistantAudioChunk:
		return m.Type, true
	case AudioStop:
		return m.Type, true
	case CallFinished:
		return m.Type, true
	case ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
