package call

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ent0n29/coldcall/internal/audio"
	"github.com/ent0n29/coldcall/internal/coach"
	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/live"
	"github.com/ent0n29/coldcall/internal/observability"
	"github.com/ent0n29/coldcall/internal/policy"
	"github.com/ent0n29/coldcall/internal/prompt"
	"github.com/ent0n29/coldcall/internal/protocol"
	"github.com/ent0n29/coldcall/internal/reliability"
	"github.com/ent0n29/coldcall/internal/transcript"
)

var ErrSessionClosed = errors.New("call session closed")

const defaultSendTimeout = 2 * time.Second

type Config struct {
	SessionID         string
	Lead              leads.Lead
	Voice             leads.VoiceSettings
	ConnectionGrace   time.Duration
	EvaluationTimeout time.Duration
	// EvaluatorName labels evaluation metrics.
	EvaluatorName string
}

// Result is what a call leaves behind. EndReason is the status the call was
// in when it started finishing.
type Result struct {
	Status     Status
	EndReason  Status
	Messages   []transcript.Message
	Evaluation string
	Fallback   bool
	Scorecard  coach.Scorecard
}

type Option func(*Session)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock sets the playback clock used to place prospect audio.
func WithClock(c audio.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithNow overrides the wall time source used by the finish guard.
func WithNow(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func WithSendTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.sendTimeout = d
		}
	}
}

// Session owns one call. All state lives on the Run goroutine; Close may be
// called from anywhere.
type Session struct {
	cfg         Config
	dialer      live.Dialer
	evaluator   coach.Evaluator
	metrics     *observability.Metrics
	logger      *zap.Logger
	clock       audio.Clock
	now         func() time.Time
	sendTimeout time.Duration

	sched      *audio.Scheduler
	ended      chan string
	done       chan struct{}
	closeOnce  sync.Once
	seq        int
	firstAudio bool

	mu     sync.Mutex
	stream live.Stream
	timers map[string]*time.Timer
	closed bool
}

func NewSession(cfg Config, dialer live.Dialer, evaluator coach.Evaluator, opts ...Option) *Session {
	if cfg.ConnectionGrace <= 0 {
		cfg.ConnectionGrace = DefaultConnectionGrace
	}
	if cfg.EvaluatorName == "" {
		cfg.EvaluatorName = "default"
	}
	s := &Session{
		cfg:         cfg,
		dialer:      dialer,
		evaluator:   evaluator,
		logger:      zap.NewNop(),
		now:         time.Now,
		sendTimeout: defaultSendTimeout,
		sched:       audio.NewScheduler(),
		ended:       make(chan string, 64),
		done:        make(chan struct{}),
		timers:      make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("session_id", cfg.SessionID), zap.String("lead_id", cfg.Lead.ID))
	return s
}

// Run opens the live stream and pumps events until the call finishes, the
// client goes away or ctx ends. Inbound carries protocol.ClientAudioChunk and
// protocol.ClientControl values; a closed inbound ends the call without evaluation.
func (s *Session) Run(ctx context.Context, inbound <-chan any, outbound chan<- any) (Result, error) {
	defer s.Close()
	if s.clock == nil {
		s.clock = audio.NewWallClock()
	}

	state := NewState(s.now())
	s.send(ctx, outbound, s.statusMessage(state.Status, ""))

	stream, err := s.dialer.Open(ctx, live.Config{
		SystemInstruction: prompt.ProspectInstruction(s.cfg.Lead, s.cfg.Voice),
		VoiceName:         leads.VoiceForName(s.cfg.Lead.Name),
	})
	if err != nil {
		s.logger.Warn("live stream open failed", zap.Error(err))
		if _, res := s.finish(ctx, state, false, outbound, err); res != nil {
			return *res, nil
		}
		return s.abort(state), err
	}
	if !s.attach(stream) {
		_ = stream.Close()
		return s.abort(state), ErrSessionClosed
	}
	s.logger.Info("call started", zap.String("voice", leads.VoiceForName(s.cfg.Lead.Name)))

	events := stream.Events()
	for {
		select {
		case <-ctx.Done():
			return s.abort(state), ctx.Err()

		case <-s.done:
			return s.abort(state), ErrSessionClosed

		case ev, ok := <-events:
			if !ok {
				events = nil
				ev = live.Event{Type: live.EventClosed}
			}
			if ev.Type == live.EventError {
				s.logger.Warn("live stream error", zap.Error(ev.Err))
			}
			s.handleMedia(ctx, outbound, ev, state.StartedAt)

			var effects []Effect
			state, effects = state.Apply(ev)
			for _, eff := range effects {
				if eff.Kind == EffectFinishRequested {
					var res *Result
					state, res = s.finish(ctx, state, eff.Manual, outbound, ev.Err)
					if res != nil {
						return *res, nil
					}
					continue
				}
				s.emit(ctx, outbound, eff)
			}

		case msg, ok := <-inbound:
			if !ok {
				s.logger.Info("client left before the call finished")
				return s.abort(state), nil
			}
			switch m := msg.(type) {
			case protocol.ClientAudioChunk:
				s.forwardAudio(ctx, outbound, stream, m)
			case protocol.ClientControl:
				if m.Action != protocol.ActionEndCall {
					continue
				}
				var res *Result
				state, res = s.finish(ctx, state, true, outbound, nil)
				if res != nil {
					return *res, nil
				}
			}

		case id := <-s.ended:
			s.sched.Ended(id)
			s.dropTimer(id)
		}
	}
}

// Close stops playback timers and the live stream. It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		for id, t := range s.timers {
			t.Stop()
			delete(s.timers, id)
		}
		stream := s.stream
		s.stream = nil
		s.mu.Unlock()
		if stream != nil {
			if err := stream.Close(); err != nil {
				s.logger.Debug("close live stream", zap.Error(err))
			}
		}
	})
}

func (s *Session) attach(stream live.Stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.stream = stream
	return true
}

func (s *Session) closeStream() {
	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()
	if stream != nil {
		if err := stream.Close(); err != nil {
			s.logger.Debug("close live stream", zap.Error(err))
		}
	}
}

func (s *Session) forwardAudio(ctx context.Context, outbound chan<- any, stream live.Stream, m protocol.ClientAudioChunk) {
	pcm, err := audio.DecodeBase64PCM16(m.PCM16Base64)
	if err != nil {
		s.send(ctx, outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: s.cfg.SessionID,
			Code:      "invalid_audio",
			Source:    "client",
			Retryable: true,
			Detail:    err.Error(),
		})
		return
	}
	if err := stream.SendAudio(ctx, pcm); err != nil && !errors.Is(err, live.ErrStreamClosed) {
		s.logger.Debug("forward microphone audio", zap.Error(err))
	}
}

func (s *Session) handleMedia(ctx context.Context, outbound chan<- any, ev live.Event, startedAt time.Time) {
	switch ev.Type {
	case live.EventAudio:
		if len(ev.PCM) == 0 {
			return
		}
		rate := ev.SampleRate
		if rate <= 0 {
			rate = audio.OutputSampleRate
		}
		dur := audio.PCM16Duration(ev.PCM, rate)
		id := uuid.NewString()
		now := s.clock.Now()
		p := s.sched.Schedule(id, now, dur)
		s.armTimer(id, p.End()-now)

		if !s.firstAudio {
			s.firstAudio = true
			s.metrics.ObserveFirstAudioLatency(s.now().Sub(startedAt))
		}
		s.seq++
		s.send(ctx, outbound, protocol.AssistantAudioChunk{
			Type:        protocol.TypeAssistantAudio,
			SessionID:   s.cfg.SessionID,
			HandleID:    id,
			Seq:         s.seq,
			StartAtMS:   p.StartAt.Milliseconds(),
			DurationMS:  dur.Milliseconds(),
			SampleRate:  rate,
			Format:      "pcm16le",
			AudioBase64: base64.StdEncoding.EncodeToString(ev.PCM),
		})
	case live.EventInterrupted:
		s.stopPlayback(ctx, outbound)
	}
}

func (s *Session) armTimer(id string, after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.timers[id] = time.AfterFunc(after, func() {
		select {
		case s.ended <- id:
		case <-s.done:
		}
	})
}

func (s *Session) dropTimer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.timers, id)
}

func (s *Session) stopPlayback(ctx context.Context, outbound chan<- any) {
	ids := s.sched.Interrupt()
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	for _, id := range ids {
		if t, ok := s.timers[id]; ok {
			t.Stop()
			delete(s.timers, id)
		}
	}
	s.mu.Unlock()
	s.send(ctx, outbound, protocol.AudioStop{
		Type:      protocol.TypeAudioStop,
		SessionID: s.cfg.SessionID,
		HandleIDs: ids,
	})
}

// finish returns a non-nil result once the call is over, either as a
// connection error or with a settled evaluation.
func (s *Session) finish(ctx context.Context, state State, manual bool, outbound chan<- any, cause error) (State, *Result) {
	next, decision := state.BeginFinish(manual, s.now(), s.cfg.ConnectionGrace)

	switch decision.Outcome {
	case FinishIgnored:
		return next, nil

	case FinishConnectionError:
		s.stopPlayback(ctx, outbound)
		s.closeStream()
		detail := "the line dropped before the prospect answered"
		if cause != nil {
			detail = cause.Error()
		}
		s.logger.Warn("call failed to connect", zap.String("detail", detail))
		s.send(ctx, outbound, s.statusMessage(StatusConnectionError, detail))
		s.send(ctx, outbound, protocol.ErrorEvent{
			Type:      protocol.TypeErrorEvent,
			SessionID: s.cfg.SessionID,
			Code:      "connection_error",
			Source:    "live",
			Retryable: cause == nil || reliability.IsRetryableError(cause),
			Detail:    detail,
		})
		s.metrics.ObserveCallOutcome(string(StatusConnectionError), s.now().Sub(next.StartedAt))
		return next, &Result{
			Status:    StatusConnectionError,
			EndReason: StatusConnectionError,
			Messages:  transcript.Clone(next.Messages),
		}
	}

	reason := next.Status
	s.send(ctx, outbound, s.statusMessage(reason, ""))
	s.stopPlayback(ctx, outbound)
	s.closeStream()

	if s.logger.Core().Enabled(zap.DebugLevel) {
		redacted, _ := policy.RedactTranscript(decision.Messages)
		s.logger.Debug("call transcript", zap.String("transcript", transcript.Format(redacted)))
	}

	evaluation, fallback := s.evaluate(ctx, decision.Messages)
	next = next.Complete()
	card := coach.ParseScorecard(evaluation)

	s.send(ctx, outbound, protocol.CallFinished{
		Type:       protocol.TypeCallFinished,
		SessionID:  s.cfg.SessionID,
		Status:     string(reason),
		Messages:   decision.Messages,
		Evaluation: evaluation,
		Fallback:   fallback,
		Score:      card.Score,
		Sections:   card.Sections,
	})
	s.send(ctx, outbound, s.statusMessage(next.Status, ""))
	s.metrics.ObserveCallOutcome(string(reason), s.now().Sub(next.StartedAt))
	s.logger.Info("call finished",
		zap.String("reason", string(reason)),
		zap.Int("messages", len(decision.Messages)),
		zap.Int("score", card.Score),
		zap.Bool("fallback", fallback),
	)

	return next, &Result{
		Status:     next.Status,
		EndReason:  reason,
		Messages:   decision.Messages,
		Evaluation: evaluation,
		Fallback:   fallback,
		Scorecard:  card,
	}
}

func (s *Session) evaluate(ctx context.Context, msgs []transcript.Message) (string, bool) {
	evalCtx := ctx
	if s.cfg.EvaluationTimeout > 0 {
		var cancel context.CancelFunc
		evalCtx, cancel = context.WithTimeout(ctx, s.cfg.EvaluationTimeout)
		defer cancel()
	}

	started := time.Now()
	text, err := s.evaluator.Evaluate(evalCtx, msgs, s.cfg.Lead)
	s.metrics.ObserveEvaluation(s.cfg.EvaluatorName, time.Since(started), err != nil)
	if err != nil {
		s.logger.Warn("evaluation failed, using fallback scorecard",
			zap.Error(err),
			zap.Bool("transient", reliability.IsRetryableError(err)),
		)
		return coach.FallbackScorecard, true
	}
	return text, false
}

func (s *Session) abort(state State) Result {
	return Result{Status: state.Status, EndReason: state.Status, Messages: transcript.Clone(state.Messages)}
}

func (s *Session) emit(ctx context.Context, outbound chan<- any, eff Effect) {
	switch eff.Kind {
	case EffectStatusChanged:
		s.send(ctx, outbound, s.statusMessage(eff.Status, ""))
	case EffectPartialUpdated:
		s.send(ctx, outbound, protocol.TranscriptPartial{
			Type:      protocol.TypeTranscriptPartial,
			SessionID: s.cfg.SessionID,
			Role:      eff.Role,
			Text:      eff.Text,
		})
	case EffectMessageAppended:
		s.send(ctx, outbound, protocol.TranscriptMessage{
			Type:      protocol.TypeTranscriptMessage,
			SessionID: s.cfg.SessionID,
			Index:     eff.Index,
			Role:      eff.Message.Role,
			Content:   eff.Message.Content,
		})
	case EffectPartialsCleared:
		for _, role := range []transcript.Role{transcript.RoleUser, transcript.RoleModel} {
			s.send(ctx, outbound, protocol.TranscriptPartial{
				Type:      protocol.TypeTranscriptPartial,
				SessionID: s.cfg.SessionID,
				Role:      role,
			})
		}
	}
}

func (s *Session) statusMessage(status Status, detail string) protocol.CallStatus {
	return protocol.CallStatus{
		Type:      protocol.TypeCallStatus,
		SessionID: s.cfg.SessionID,
		Status:    string(status),
		Detail:    detail,
	}
}

// send delivers msg to the websocket writer. Partial transcripts are dropped
// when the writer is behind; everything else waits up to sendTimeout.
func (s *Session) send(ctx context.Context, outbound chan<- any, msg any) {
	if outbound == nil {
		return
	}
	msgType, _ := protocol.TypeOf(msg)
	if msgType == protocol.TypeTranscriptPartial {
		select {
		case outbound <- msg:
			s.metrics.ObserveOutboundMessage(string(msgType), "delivered")
		default:
			s.metrics.ObserveOutboundMessage(string(msgType), "dropped")
			s.metrics.ObserveSessionEvent("outbound_drop")
		}
		return
	}

	timer := time.NewTimer(s.sendTimeout)
	defer timer.Stop()
	select {
	case outbound <- msg:
		s.metrics.ObserveOutboundMessage(string(msgType), "delivered")
	case <-ctx.Done():
		s.metrics.ObserveOutboundMessage(string(msgType), "canceled")
	case <-timer.C:
		s.metrics.ObserveOutboundMessage(string(msgType), "timeout")
		s.metrics.ObserveSessionEvent("outbound_drop")
	}
}
