package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ent0n29/coldcall/internal/app"
	"github.com/ent0n29/coldcall/internal/audio"
	"github.com/ent0n29/coldcall/internal/call"
	"github.com/ent0n29/coldcall/internal/coach"
	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/live"
	"github.com/ent0n29/coldcall/internal/protocol"
	"github.com/ent0n29/coldcall/internal/transcript"
)

const replayMicChunk = 20 * time.Millisecond

type replayOptions struct {
	scriptPath  string
	leadID      string
	wavPath     string
	geminiCoach bool
	timeout     time.Duration
}

func newReplayCmd(root *rootOptions) *cobra.Command {
	opts := replayOptions{}
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Run a call against a scripted prospect and print the transcript and scorecard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := root.loadRuntime()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			evaluator, name, err := app.ResolveEvaluator(ctx, cfg, opts.geminiCoach, logger)
			if err != nil {
				return err
			}
			return runReplay(ctx, cmd.OutOrStdout(), opts, evaluator, name, logger)
		},
	}
	cmd.Flags().StringVar(&opts.scriptPath, "script", "", "scripted live session YAML (default: built-in script)")
	cmd.Flags().StringVar(&opts.leadID, "lead", "", "lead id to call (default: first lead in the catalog)")
	cmd.Flags().StringVar(&opts.wavPath, "wav", "", "write the prospect audio to this WAV file")
	cmd.Flags().BoolVar(&opts.geminiCoach, "gemini-coach", false, "score the call with the Gemini evaluator")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "overall replay deadline")
	return cmd
}

func runReplay(ctx context.Context, out io.Writer, opts replayOptions, evaluator coach.Evaluator, evaluatorName string, logger *zap.Logger) error {
	script := live.DefaultScript()
	if path := strings.TrimSpace(opts.scriptPath); path != "" {
		loaded, err := live.LoadScript(path)
		if err != nil {
			return err
		}
		script = loaded
	}

	catalog := leads.NewCatalog()
	lead := catalog.All()[0]
	if id := strings.TrimSpace(opts.leadID); id != "" {
		found, err := catalog.Get(id)
		if err != nil {
			return err
		}
		lead = found
	}

	sessionID := uuid.NewString()
	fmt.Fprintf(out, "Calling %s (%s, %s) with script %q\n", lead.Name, lead.Industry, lead.Difficulty, script.Name)

	sess := call.NewSession(call.Config{
		SessionID:     sessionID,
		Lead:          lead,
		Voice:         leads.DefaultVoiceSettings(),
		EvaluatorName: evaluatorName,
	}, live.NewScriptDialer(script, logger.Named("live")), evaluator, call.WithLogger(logger.Named("call")))

	inbound := make(chan any, 16)
	outbound := make(chan any, 256)
	runDone := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		feedSilence(ctx, sessionID, inbound, runDone)
	}()

	var (
		recording  []byte
		sampleRate int
	)
	go func() {
		defer wg.Done()
		for msg := range outbound {
			switch m := msg.(type) {
			case protocol.CallStatus:
				fmt.Fprintf(out, "-- %s\n", m.Status)
			case protocol.AssistantAudioChunk:
				pcm, err := audio.DecodeBase64PCM16(m.AudioBase64)
				if err != nil {
					logger.Warn("skip prospect audio", zap.Error(err))
					continue
				}
				recording = append(recording, pcm...)
				sampleRate = m.SampleRate
			}
		}
	}()

	result, err := sess.Run(ctx, inbound, outbound)
	close(runDone)
	close(outbound)
	wg.Wait()
	if err != nil {
		return fmt.Errorf("replay call: %w", err)
	}

	printScorecard(out, result)

	if opts.wavPath != "" {
		if sampleRate <= 0 {
			sampleRate = audio.OutputSampleRate
		}
		if err := audio.WriteWAVPCM16LEFile(opts.wavPath, recording, sampleRate); err != nil {
			return err
		}
		fmt.Fprintf(out, "Wrote %s of prospect audio to %s\n", audio.PCM16Duration(recording, sampleRate), opts.wavPath)
	}
	return nil
}

// feedSilence stands in for a microphone so scripted steps that wait for the
// trainee keep advancing.
func feedSilence(ctx context.Context, sessionID string, inbound chan<- any, done <-chan struct{}) {
	chunk := make([]byte, int(replayMicChunk*audio.InputSampleRate/time.Second)*2)
	payload := base64.StdEncoding.EncodeToString(chunk)
	ticker := time.NewTicker(replayMicChunk)
	defer ticker.Stop()
	for seq := 1; ; seq++ {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
		}
		msg := protocol.ClientAudioChunk{
			Type:        protocol.TypeClientAudioChunk,
			SessionID:   sessionID,
			Seq:         seq,
			PCM16Base64: payload,
			SampleRate:  audio.InputSampleRate,
			TSMs:        time.Now().UnixMilli(),
		}
		select {
		case inbound <- msg:
		case <-done:
			return
		case <-ctx.Done():
			return
		}
	}
}

func printScorecard(out io.Writer, result call.Result) {
	fmt.Fprintf(out, "\nCall ended: %s\n", result.EndReason)
	if len(result.Messages) > 0 {
		fmt.Fprintf(out, "\n%s\n\n", transcript.Format(result.Messages))
	}
	if result.Status == call.StatusConnectionError {
		fmt.Fprintln(out, "No evaluation: the prospect line never connected.")
		return
	}
	card := result.Scorecard
	fmt.Fprintf(out, "Score: %d/10 (%s)\n", card.Score, coach.Grade(card.Score))
	if result.Fallback {
		fmt.Fprintln(out, "(fallback scorecard: the coach was unavailable)")
	}
	if len(card.Sections) == 0 {
		fmt.Fprintf(out, "\n%s\n", strings.TrimSpace(card.Raw))
		return
	}
	for _, sec := range card.Sections {
		fmt.Fprintf(out, "\n%s\n%s\n", sec.Title, strings.TrimSpace(sec.Body))
	}
}
