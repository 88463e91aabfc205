package call

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ent0n29/coldcall/internal/audio"
	"github.com/ent0n29/coldcall/internal/coach"
	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/live"
	"github.com/ent0n29/coldcall/internal/observability"
	"github.com/ent0n29/coldcall/internal/protocol"
	"github.com/ent0n29/coldcall/internal/transcript"
)

type fakeStream struct {
	events chan live.Event

	mu     sync.Mutex
	sent   [][]byte
	closes int
}

func newFakeStream(events ...live.Event) *fakeStream {
	s := &fakeStream{events: make(chan live.Event, 64)}
	for _, ev := range events {
		s.events <- ev
	}
	return s
}

func (s *fakeStream) Events() <-chan live.Event { return s.events }

func (s *fakeStream) SendAudio(_ context.Context, pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, pcm)
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

type fakeDialer struct {
	stream *fakeStream
	err    error
	cfg    live.Config
}

func (d *fakeDialer) Open(_ context.Context, cfg live.Config) (live.Stream, error) {
	d.cfg = cfg
	if d.err != nil {
		return nil, d.err
	}
	return d.stream, nil
}

type fakeEvaluator struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	msgs  []transcript.Message
}

func (e *fakeEvaluator) Evaluate(_ context.Context, msgs []transcript.Message, _ leads.Lead) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.msgs = msgs
	return e.text, e.err
}

func (e *fakeEvaluator) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

var testLead = leads.Lead{ID: "lead-0", Name: "James Smith", Industry: leads.IndustrySolar, Difficulty: leads.DifficultyEasy}

func newTestSession(t *testing.T, dialer live.Dialer, ev coach.Evaluator, opts ...Option) *Session {
	t.Helper()
	base := []Option{
		WithLogger(zaptest.NewLogger(t)),
		WithMetrics(observability.NewMetrics(fmt.Sprintf("coldcall_test_call_%d", time.Now().UnixNano()))),
		WithClock(&audio.ManualClock{}),
		WithNow(func() time.Time { return t0 }),
	}
	return NewSession(Config{
		SessionID:       "game-1",
		Lead:            testLead,
		Voice:           leads.DefaultVoiceSettings(),
		ConnectionGrace: DefaultConnectionGrace,
	}, dialer, ev, append(base, opts...)...)
}

func collect(outbound chan any) []any {
	var out []any
	for {
		select {
		case msg := <-outbound:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func findAll[T any](msgs []any) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func waitFor[T any](t *testing.T, outbound chan any) T {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case msg := <-outbound:
			if v, ok := msg.(T); ok {
				return v
			}
		case <-timeout:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

func TestRunProspectHangUpEvaluatesOnce(t *testing.T) {
	stream := newFakeStream(
		live.Event{Type: live.EventOpen},
		live.Event{Type: live.EventOutputTranscript, Text: "Smith speaking. "},
		live.Event{Type: live.EventTurnComplete},
		live.Event{Type: live.EventInputTranscript, Text: "James?"},
		live.Event{Type: live.EventOutputTranscript, Text: "Not interested. End Scene"},
		live.Event{Type: live.EventOutputTranscript, Text: "ignored"},
	)
	dialer := &fakeDialer{stream: stream}
	eval := &fakeEvaluator{text: "1. OVERALL SCORE: [4/10]\n\n2. CALL SUMMARY: short."}
	outbound := make(chan any, 256)

	res, err := newTestSession(t, dialer, eval).Run(context.Background(), nil, outbound)
	require.NoError(t, err)

	want := []transcript.Message{
		{Role: transcript.RoleModel, Content: "Smith speaking."},
		{Role: transcript.RoleUser, Content: "James?"},
		{Role: transcript.RoleModel, Content: "Not interested."},
	}
	assert.Equal(t, StatusClosed, res.Status)
	assert.Equal(t, StatusProspectHungUp, res.EndReason)
	assert.Equal(t, want, res.Messages)
	assert.False(t, res.Fallback)
	assert.Equal(t, 4, res.Scorecard.Score)
	assert.Equal(t, 1, eval.callCount())
	assert.Equal(t, want, eval.msgs)
	assert.Equal(t, "Charon", dialer.cfg.VoiceName)
	assert.Contains(t, dialer.cfg.SystemInstruction, "Smith speaking.")
	assert.GreaterOrEqual(t, stream.closeCount(), 1)

	msgs := collect(outbound)
	finished := findAll[protocol.CallFinished](msgs)
	require.Len(t, finished, 1)
	assert.Equal(t, string(StatusProspectHungUp), finished[0].Status)
	assert.Equal(t, 4, finished[0].Score)
	assert.Equal(t, want, finished[0].Messages)

	var statuses []string
	for _, st := range findAll[protocol.CallStatus](msgs) {
		statuses = append(statuses, st.Status)
	}
	assert.Equal(t, []string{"initializing", "live_call", "prospect_hung_up", "closed"}, statuses)
}

func TestRunOpenFailureIsConnectionError(t *testing.T) {
	eval := &fakeEvaluator{text: "unused"}
	outbound := make(chan any, 32)

	res, err := newTestSession(t, &fakeDialer{err: errors.New("dial refused")}, eval).Run(context.Background(), nil, outbound)
	require.NoError(t, err)
	assert.Equal(t, StatusConnectionError, res.Status)
	assert.Empty(t, res.Evaluation)
	assert.Equal(t, 0, eval.callCount())

	errs := findAll[protocol.ErrorEvent](collect(outbound))
	require.Len(t, errs, 1)
	assert.Equal(t, "connection_error", errs[0].Code)
	assert.Equal(t, "dial refused", errs[0].Detail)
	assert.True(t, errs[0].Retryable)
}

func TestRunOpenFailureWithBadKeyIsNotRetryable(t *testing.T) {
	dialErr := errors.New("Error 400, Message: API key not valid, Status: INVALID_ARGUMENT")
	outbound := make(chan any, 32)

	res, err := newTestSession(t, &fakeDialer{err: dialErr}, &fakeEvaluator{}).Run(context.Background(), nil, outbound)
	require.NoError(t, err)
	assert.Equal(t, StatusConnectionError, res.Status)

	errs := findAll[protocol.ErrorEvent](collect(outbound))
	require.Len(t, errs, 1)
	assert.False(t, errs[0].Retryable)
}

func TestRunEarlyCloseWithSilenceSkipsEvaluation(t *testing.T) {
	stream := newFakeStream(live.Event{Type: live.EventOpen}, live.Event{Type: live.EventClosed})
	eval := &fakeEvaluator{}
	now := t0
	s := newTestSession(t, &fakeDialer{stream: stream}, eval, WithNow(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))

	res, err := s.Run(context.Background(), nil, make(chan any, 32))
	require.NoError(t, err)
	assert.Equal(t, StatusConnectionError, res.Status)
	assert.Equal(t, 0, eval.callCount())
	assert.Equal(t, 1, stream.closeCount())
}

func TestRunEvaluationFailureUsesFallback(t *testing.T) {
	stream := newFakeStream(
		live.Event{Type: live.EventOpen},
		live.Event{Type: live.EventInputTranscript, Text: "James? "},
		live.Event{Type: live.EventTurnComplete},
		live.Event{Type: live.EventClosed},
	)
	eval := &fakeEvaluator{err: errors.New("quota exceeded")}

	res, err := newTestSession(t, &fakeDialer{stream: stream}, eval).Run(context.Background(), nil, make(chan any, 64))
	require.NoError(t, err)
	assert.True(t, res.Fallback)
	assert.Equal(t, coach.FallbackScorecard, res.Evaluation)
	assert.Equal(t, 0, res.Scorecard.Score)
	assert.Equal(t, []transcript.Message{{Role: transcript.RoleUser, Content: "James?"}}, res.Messages)
	assert.Equal(t, StatusProspectHungUp, res.EndReason)
}

func TestRunManualEndCallFinishesOnce(t *testing.T) {
	stream := newFakeStream(live.Event{Type: live.EventOpen})
	eval := &fakeEvaluator{text: "OVERALL SCORE: 2/10"}
	inbound := make(chan any, 8)
	outbound := make(chan any, 64)
	pcm := []byte{1, 0, 2, 0}

	inbound <- protocol.ClientAudioChunk{
		Type:        protocol.TypeClientAudioChunk,
		SessionID:   "game-1",
		PCM16Base64: base64.StdEncoding.EncodeToString(pcm),
		SampleRate:  audio.InputSampleRate,
	}
	inbound <- protocol.ClientControl{Type: protocol.TypeClientControl, SessionID: "game-1", Action: protocol.ActionEndCall}
	inbound <- protocol.ClientControl{Type: protocol.TypeClientControl, SessionID: "game-1", Action: protocol.ActionEndCall}

	s := newTestSession(t, &fakeDialer{stream: stream}, eval)
	res, err := s.Run(context.Background(), inbound, outbound)
	require.NoError(t, err)
	assert.Equal(t, StatusAnalyzing, res.EndReason)
	assert.Equal(t, StatusClosed, res.Status)
	assert.Equal(t, 2, res.Scorecard.Score)
	assert.Equal(t, 1, eval.callCount())

	stream.mu.Lock()
	assert.Equal(t, [][]byte{pcm}, stream.sent)
	stream.mu.Unlock()

	s.Close()
	s.Close()
	assert.Len(t, findAll[protocol.CallFinished](collect(outbound)), 1)
}

func TestRunSchedulesAudioAndStopsOnInterrupt(t *testing.T) {
	second := make([]byte, 2*audio.OutputSampleRate)
	half := make([]byte, audio.OutputSampleRate)
	stream := newFakeStream(
		live.Event{Type: live.EventOpen},
		live.Event{Type: live.EventAudio, PCM: second, SampleRate: audio.OutputSampleRate},
		live.Event{Type: live.EventAudio, PCM: half},
		live.Event{Type: live.EventInterrupted},
	)
	eval := &fakeEvaluator{text: "OVERALL SCORE: 5/10"}
	inbound := make(chan any, 1)
	outbound := make(chan any, 64)

	s := newTestSession(t, &fakeDialer{stream: stream}, eval)
	done := make(chan Result, 1)
	go func() {
		res, _ := s.Run(context.Background(), inbound, outbound)
		done <- res
	}()

	first := waitFor[protocol.AssistantAudioChunk](t, outbound)
	next := waitFor[protocol.AssistantAudioChunk](t, outbound)
	stop := waitFor[protocol.AudioStop](t, outbound)

	assert.Equal(t, int64(0), first.StartAtMS)
	assert.Equal(t, int64(1000), first.DurationMS)
	assert.Equal(t, int64(1000), next.StartAtMS)
	assert.Equal(t, int64(500), next.DurationMS)
	assert.Equal(t, audio.OutputSampleRate, next.SampleRate)
	assert.NotEqual(t, first.HandleID, next.HandleID)
	assert.Equal(t, []string{first.HandleID, next.HandleID}, stop.HandleIDs)

	inbound <- protocol.ClientControl{Type: protocol.TypeClientControl, SessionID: "game-1", Action: protocol.ActionEndCall}
	select {
	case res := <-done:
		assert.Equal(t, StatusAnalyzing, res.EndReason)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not finish")
	}
}

func TestRunClientLeavingSkipsEvaluation(t *testing.T) {
	eval := &fakeEvaluator{}
	inbound := make(chan any)
	close(inbound)

	res, err := newTestSession(t, &fakeDialer{stream: newFakeStream()}, eval).Run(context.Background(), inbound, make(chan any, 8))
	require.NoError(t, err)
	assert.Equal(t, StatusInitializing, res.Status)
	assert.Equal(t, 0, eval.callCount())
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := newFakeStream()
	_, err := newTestSession(t, &fakeDialer{stream: stream}, &fakeEvaluator{}).Run(ctx, nil, make(chan any, 8))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stream.closeCount())
}

func TestRunWithScriptedProvider(t *testing.T) {
	script, err := live.LoadScript("../live/testdata/hangup.yaml")
	require.NoError(t, err)

	// The script waits for fresh microphone audio, so keep the caller talking.
	inbound := make(chan any)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		chunk := protocol.ClientAudioChunk{
			Type:        protocol.TypeClientAudioChunk,
			SessionID:   "game-1",
			PCM16Base64: base64.StdEncoding.EncodeToString([]byte{0, 0}),
			SampleRate:  audio.InputSampleRate,
		}
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case inbound <- chunk:
				case <-stop:
					return
				}
			}
		}
	}()

	res, err := newTestSession(t, live.NewScriptDialer(script, nil), coach.NewRubricEvaluator()).
		Run(context.Background(), inbound, make(chan any, 256))
	require.NoError(t, err)
	assert.Equal(t, StatusProspectHungUp, res.EndReason)
	assert.Equal(t, []transcript.Message{
		{Role: transcript.RoleModel, Content: "Davis speaking."},
		{Role: transcript.RoleUser, Content: "Hi, how are you doing today?"},
		{Role: transcript.RoleModel, Content: "Not interested, goodbye."},
	}, res.Messages)
	assert.False(t, res.Fallback)
	assert.Equal(t, 0, res.Scorecard.Score)
}
