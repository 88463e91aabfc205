package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/ent0n29/coldcall/internal/audio"
	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/protocol"
)

type probeOptions struct {
	baseURL  string
	userID   string
	industry string
	leadID   string
	micWAV   string
	chunkMS  int
	realtime float64
	hold     time.Duration
	timeout  time.Duration
	verbose  bool
}

type probeReport struct {
	SessionID        string        `json:"session_id"`
	LeadID           string        `json:"lead_id"`
	Status           string        `json:"status"`
	Score            int           `json:"score"`
	Fallback         bool          `json:"fallback"`
	Messages         int           `json:"messages"`
	AudioChunks      int           `json:"audio_chunks"`
	ErrorEvents      int           `json:"error_events"`
	FirstAudio       time.Duration `json:"first_audio_ns"`
	Total            time.Duration `json:"total_ns"`
	EndedByProspect  bool          `json:"ended_by_prospect"`
	MicChunksWritten int           `json:"mic_chunks_written"`
}

type wsEnvelope struct {
	Type   string `json:"type"`
	Status string `json:"status,omitempty"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func newProbeCmd() *cobra.Command {
	opts := probeOptions{}
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Drive one end-to-end call against a running server and report latencies",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()
			report, err := runProbe(ctx, cmd.OutOrStdout(), &http.Client{Timeout: 45 * time.Second}, opts)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://127.0.0.1:8080", "coldcall base URL")
	cmd.Flags().StringVar(&opts.userID, "user-id", "probe", "user_id for the synthetic game")
	cmd.Flags().StringVar(&opts.industry, "industry", string(leads.IndustrySolar), "industry to pick")
	cmd.Flags().StringVar(&opts.leadID, "lead", "", "lead id (default: first lead of the industry)")
	cmd.Flags().StringVar(&opts.micWAV, "mic-wav", "", "16-bit PCM WAV to stream as the trainee microphone (default: a short tone)")
	cmd.Flags().IntVar(&opts.chunkMS, "chunk-ms", 40, "microphone chunk size in milliseconds")
	cmd.Flags().Float64Var(&opts.realtime, "realtime", 1.0, "chunk pacing multiplier (1.0=realtime, 2.0=2x)")
	cmd.Flags().DurationVar(&opts.hold, "hold", 10*time.Second, "keep the line open this long before ending the call")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 3*time.Minute, "overall probe deadline")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", true, "print call progress")
	return cmd
}

func (o *probeOptions) validate() error {
	o.baseURL = strings.TrimRight(strings.TrimSpace(o.baseURL), "/")
	if o.baseURL == "" {
		return fmt.Errorf("base-url is required")
	}
	if o.chunkMS < 10 || o.chunkMS > 2000 {
		return fmt.Errorf("chunk-ms must be in [10,2000]")
	}
	if o.realtime <= 0 {
		return fmt.Errorf("realtime must be > 0")
	}
	if o.hold < 0 {
		o.hold = 0
	}
	return nil
}

func runProbe(ctx context.Context, out io.Writer, client *http.Client, opts probeOptions) (probeReport, error) {
	clip, sampleRate, err := loadMicClip(opts.micWAV)
	if err != nil {
		return probeReport{}, fmt.Errorf("prepare microphone audio: %w", err)
	}

	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := postJSON(ctx, client, opts.baseURL+"/v1/games", map[string]string{"user_id": opts.userID}, http.StatusCreated, &created); err != nil {
		return probeReport{}, fmt.Errorf("create game: %w", err)
	}
	if strings.TrimSpace(created.SessionID) == "" {
		return probeReport{}, fmt.Errorf("missing session_id in response")
	}
	sessionID := created.SessionID
	defer func() {
		_ = deleteGame(context.Background(), client, opts.baseURL, sessionID)
	}()

	leadID, err := prepareRoleplay(ctx, client, opts, sessionID)
	if err != nil {
		return probeReport{}, err
	}

	wsURL, err := wsURLForGame(opts.baseURL, sessionID)
	if err != nil {
		return probeReport{}, fmt.Errorf("build ws URL: %w", err)
	}
	started := time.Now()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return probeReport{}, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()
	if opts.verbose {
		fmt.Fprintf(out, "probe: game=%s lead=%s chunk_ms=%d realtime=%.2f\n", sessionID, leadID, opts.chunkMS, opts.realtime)
	}

	report := probeReport{SessionID: sessionID, LeadID: leadID}
	var mu sync.Mutex
	finished := make(chan protocol.CallFinished, 1)
	readErr := make(chan error, 1)
	go readLoop(conn, started, &mu, &report, finished, readErr, out, opts.verbose)

	stop := make(chan struct{})
	sendDone := make(chan int, 1)
	go func() {
		sendDone <- sendMicAudio(conn, sessionID, clip, sampleRate, opts, stop)
	}()

	holdTimer := time.NewTimer(opts.hold + audio.PCM16Duration(clip, sampleRate))
	defer holdTimer.Stop()

	var result protocol.CallFinished
	byProspect := true
	select {
	case result = <-finished:
	case <-holdTimer.C:
		byProspect = false
		close(stop)
		stop = nil
		chunks := <-sendDone
		mu.Lock()
		report.MicChunksWritten = chunks
		mu.Unlock()
		if err := sendEndCall(conn, sessionID); err != nil {
			return probeReport{}, fmt.Errorf("send end_call: %w", err)
		}
		select {
		case result = <-finished:
		case err := <-readErr:
			return probeReport{}, fmt.Errorf("ws read: %w", err)
		case <-ctx.Done():
			return probeReport{}, ctx.Err()
		}
	case err := <-readErr:
		return probeReport{}, fmt.Errorf("ws read: %w", err)
	case <-ctx.Done():
		return probeReport{}, ctx.Err()
	}
	if stop != nil {
		close(stop)
		chunks := <-sendDone
		mu.Lock()
		report.MicChunksWritten = chunks
		mu.Unlock()
	}

	mu.Lock()
	defer mu.Unlock()
	report.Status = result.Status
	report.Score = result.Score
	report.Fallback = result.Fallback
	report.Messages = len(result.Messages)
	report.Total = time.Since(started)
	report.EndedByProspect = byProspect
	return report, nil
}

func prepareRoleplay(ctx context.Context, client *http.Client, opts probeOptions, sessionID string) (string, error) {
	base := opts.baseURL + "/v1/games/" + url.PathEscape(sessionID)
	if err := postJSON(ctx, client, base+"/industry", map[string]string{"industry": opts.industry}, http.StatusOK, nil); err != nil {
		return "", fmt.Errorf("select industry: %w", err)
	}

	leadID := strings.TrimSpace(opts.leadID)
	if leadID == "" {
		var list struct {
			Leads []leads.Lead `json:"leads"`
		}
		q := url.Values{"industry": {opts.industry}}
		if err := getJSON(ctx, client, opts.baseURL+"/v1/leads?"+q.Encode(), &list); err != nil {
			return "", fmt.Errorf("list leads: %w", err)
		}
		if len(list.Leads) == 0 {
			return "", fmt.Errorf("no leads for industry %q", opts.industry)
		}
		leadID = list.Leads[0].ID
	}
	if err := postJSON(ctx, client, base+"/lead", map[string]string{"lead_id": leadID}, http.StatusOK, nil); err != nil {
		return "", fmt.Errorf("select lead: %w", err)
	}
	if err := postJSON(ctx, client, base+"/begin", nil, http.StatusOK, nil); err != nil {
		return "", fmt.Errorf("begin call: %w", err)
	}
	return leadID, nil
}

func loadMicClip(path string) ([]byte, int, error) {
	if strings.TrimSpace(path) == "" {
		return audio.Tone(1500*time.Millisecond, audio.InputSampleRate, 220), audio.InputSampleRate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	pcm, rate, err := audio.DecodeWAVPCM16(data)
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return pcm, rate, nil
}

func postJSON(ctx context.Context, client *http.Client, rawURL string, body any, wantStatus int, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return doRequest(client, req, wantStatus, out)
}

func getJSON(ctx context.Context, client *http.Client, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	return doRequest(client, req, http.StatusOK, out)
}

func doRequest(client *http.Client, req *http.Request, wantStatus int, out any) error {
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode != wantStatus {
		return fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

func deleteGame(ctx context.Context, client *http.Client, baseURL, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, baseURL+"/v1/games/"+url.PathEscape(sessionID), nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

func wsURLForGame(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", fmt.Errorf("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/games/" + url.PathEscape(sessionID) + "/call"
	return u.String(), nil
}

func readLoop(conn *websocket.Conn, started time.Time, mu *sync.Mutex, report *probeReport, finished chan<- protocol.CallFinished, readErr chan<- error, out io.Writer, verbose bool) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case readErr <- err:
			default:
			}
			return
		}

		var env wsEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		switch protocol.MessageType(env.Type) {
		case protocol.TypeAssistantAudio:
			mu.Lock()
			if report.AudioChunks == 0 {
				report.FirstAudio = time.Since(started)
			}
			report.AudioChunks++
			mu.Unlock()
		case protocol.TypeCallStatus:
			if verbose {
				fmt.Fprintf(out, "probe: status=%s\n", env.Status)
			}
		case protocol.TypeErrorEvent:
			mu.Lock()
			report.ErrorEvents++
			mu.Unlock()
			if verbose {
				fmt.Fprintf(out, "probe: error_event code=%s detail=%s\n", env.Code, env.Detail)
			}
		case protocol.TypeCallFinished:
			var msg protocol.CallFinished
			if err := json.Unmarshal(data, &msg); err == nil {
				select {
				case finished <- msg:
				default:
				}
			}
		}
	}
}

// sendMicAudio streams the clip and then silence until stop closes, returning
// the number of chunks written.
func sendMicAudio(conn *websocket.Conn, sessionID string, clip []byte, sampleRate int, opts probeOptions, stop <-chan struct{}) int {
	if sampleRate <= 0 {
		sampleRate = audio.InputSampleRate
	}
	bytesPerChunk := sampleRate * 2 * opts.chunkMS / 1000
	if bytesPerChunk < 2 {
		bytesPerChunk = 2
	}
	if bytesPerChunk%2 != 0 {
		bytesPerChunk++
	}
	silence := make([]byte, bytesPerChunk)
	pace := time.Duration(float64(time.Duration(opts.chunkMS)*time.Millisecond) / opts.realtime)
	if pace <= 0 {
		pace = 10 * time.Millisecond
	}
	ticker := time.NewTicker(pace)
	defer ticker.Stop()

	seq := 0
	for off := 0; ; {
		chunk := silence
		if off < len(clip) {
			end := min(off+bytesPerChunk, len(clip))
			chunk = clip[off:end]
			off = end
		}
		seq++
		msg := protocol.ClientAudioChunk{
			Type:        protocol.TypeClientAudioChunk,
			SessionID:   sessionID,
			Seq:         seq,
			PCM16Base64: base64.StdEncoding.EncodeToString(chunk),
			SampleRate:  sampleRate,
			TSMs:        time.Now().UnixMilli(),
		}
		if err := conn.WriteJSON(msg); err != nil {
			return seq - 1
		}
		select {
		case <-stop:
			return seq
		case <-ticker.C:
		}
	}
}

func sendEndCall(conn *websocket.Conn, sessionID string) error {
	return conn.WriteJSON(protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: sessionID,
		Action:    protocol.ActionEndCall,
	})
}
