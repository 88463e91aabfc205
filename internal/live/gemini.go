package live

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/ent0n29/coldcall/internal/audio"
)

const DefaultGeminiLiveModel = "gemini-2.5-flash-native-audio-preview-12-2025"

// GeminiDialer opens speech-to-speech sessions through the Gemini Live API.
type GeminiDialer struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGeminiDialer(client *genai.Client, model string, logger *zap.Logger) *GeminiDialer {
	if strings.TrimSpace(model) == "" {
		model = DefaultGeminiLiveModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiDialer{client: client, model: model, logger: logger}
}

func (d *GeminiDialer) Open(ctx context.Context, cfg Config) (Stream, error) {
	conf := &genai.LiveConnectConfig{
		ResponseModalities:       []genai.Modality{genai.ModalityAudio},
		SystemInstruction:        &genai.Content{Parts: []*genai.Part{{Text: cfg.SystemInstruction}}},
		InputAudioTranscription:  &genai.AudioTranscriptionConfig{},
		OutputAudioTranscription: &genai.AudioTranscriptionConfig{},
	}
	if cfg.VoiceName != "" {
		conf.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.VoiceName},
			},
		}
	}

	ctx, span := otel.Tracer("coldcall/live").Start(ctx, "GeminiDialer.Open",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("model", d.model),
			attribute.String("voice", cfg.VoiceName),
		))
	defer span.End()

	session, err := d.client.Live.Connect(ctx, d.model, conf)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "live connect failed")
		return nil, fmt.Errorf("connect gemini live: %w", err)
	}
	d.logger.Info("gemini live session opened", zap.String("model", d.model), zap.String("voice", cfg.VoiceName))

	s := &geminiStream{
		session: session,
		events:  make(chan Event, 256),
		done:    make(chan struct{}),
		logger:  d.logger,
	}
	go s.readLoop()
	return s, nil
}

type geminiStream struct {
	session *genai.Session
	events  chan Event
	done    chan struct{}
	logger  *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *geminiStream) Events() <-chan Event { return s.events }

func (s *geminiStream) SendAudio(_ context.Context, pcm []byte) error {
	select {
	case <-s.done:
		return ErrStreamClosed
	default:
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.session.SendRealtimeInput(genai.LiveRealtimeInput{
		Audio: &genai.Blob{
			MIMEType: "audio/pcm;rate=" + strconv.Itoa(audio.InputSampleRate),
			Data:     pcm,
		},
	})
}

func (s *geminiStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.session.Close()
	})
	return err
}

func (s *geminiStream) readLoop() {
	defer close(s.events)
	for {
		msg, err := s.session.Receive()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
			}
			s.logger.Warn("gemini live receive failed", zap.Error(err))
			s.emit(Event{Type: EventError, Err: err})
			return
		}
		for _, ev := range translateServerMessage(msg) {
			if !s.emit(ev) {
				return
			}
		}
	}
}

func (s *geminiStream) emit(ev Event) bool {
	select {
	case <-s.done:
		return false
	case s.events <- ev:
		return true
	}
}

// translateServerMessage flattens one server message into events in the order
// transcripts, turn boundary, audio, interruption.
func translateServerMessage(msg *genai.LiveServerMessage) []Event {
	if msg == nil {
		return nil
	}
	var out []Event
	if msg.SetupComplete != nil {
		out = append(out, Event{Type: EventOpen})
	}
	sc := msg.ServerContent
	if sc == nil {
		return out
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		out = append(out, Event{Type: EventInputTranscript, Text: sc.InputTranscription.Text})
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		out = append(out, Event{Type: EventOutputTranscript, Text: sc.OutputTranscription.Text})
	}
	if sc.TurnComplete {
		out = append(out, Event{Type: EventTurnComplete})
	}
	if sc.ModelTurn != nil {
		for _, part := range sc.ModelTurn.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			out = append(out, Event{
				Type:       EventAudio,
				PCM:        part.InlineData.Data,
				SampleRate: sampleRateFromMIME(part.InlineData.MIMEType),
			})
		}
	}
	if sc.Interrupted {
		out = append(out, Event{Type: EventInterrupted})
	}
	return out
}

func sampleRateFromMIME(mime string) int {
	for _, param := range strings.Split(mime, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || !strings.EqualFold(k, "rate") {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return audio.OutputSampleRate
}
