package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ent0n29/coldcall/internal/call"
	"github.com/ent0n29/coldcall/internal/config"
	"github.com/ent0n29/coldcall/internal/leads"
	"github.com/ent0n29/coldcall/internal/observability"
	"github.com/ent0n29/coldcall/internal/protocol"
	"github.com/ent0n29/coldcall/internal/session"
	"github.com/ent0n29/coldcall/internal/transcript"
)

// echoRunner plays a one-line call and finishes when the client asks to end it.
type echoRunner struct {
	evaluation string
}

func (r echoRunner) RunCall(ctx context.Context, sessionID string, lead leads.Lead, _ leads.VoiceSettings, inbound <-chan any, outbound chan<- any) (call.Result, error) {
	outbound <- protocol.CallStatus{Type: protocol.TypeCallStatus, SessionID: sessionID, Status: string(call.StatusLiveCall)}
	msgs := []transcript.Message{{Role: transcript.RoleModel, Content: lead.LastName() + " speaking."}}
	for {
		select {
		case <-ctx.Done():
			return call.Result{}, ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				return call.Result{Status: call.StatusLiveCall}, nil
			}
			ctrl, isCtrl := msg.(protocol.ClientControl)
			if !isCtrl || ctrl.Action != protocol.ActionEndCall {
				continue
			}
			outbound <- protocol.CallFinished{
				Type:       protocol.TypeCallFinished,
				SessionID:  sessionID,
				Status:     string(call.StatusClosed),
				Messages:   msgs,
				Evaluation: r.evaluation,
			}
			return call.Result{Status: call.StatusClosed, Messages: msgs, Evaluation: r.evaluation}, nil
		}
	}
}

func newTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	if cfg.SessionInactivityTimeout == 0 {
		cfg.SessionInactivityTimeout = 2 * time.Minute
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	metrics := observability.NewMetrics(fmt.Sprintf("test_httpapi_%d", time.Now().UnixNano()))
	srv := New(cfg, sessions, leads.NewCatalog(), echoRunner{evaluation: "OVERALL SCORE: 7/10"}, metrics, zaptest.NewLogger(t))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, rawURL string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, rawURL, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func createGame(t *testing.T, ts *httptest.Server, userID string) session.View {
	t.Helper()
	var view session.View
	status := doJSON(t, http.MethodPost, ts.URL+"/v1/games", session.CreateRequest{UserID: userID}, &view)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, view.SessionID)
	return view
}

// toRoleplay drives a fresh game to the roleplay screen with a solar lead.
func toRoleplay(t *testing.T, ts *httptest.Server, userID string) session.View {
	t.Helper()
	view := createGame(t, ts, userID)
	base := ts.URL + "/v1/games/" + view.SessionID
	lead := leads.NewCatalog().Filter(leads.IndustrySolar, "")[0]

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/industry", industryRequest{Industry: string(leads.IndustrySolar)}, &view))
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/lead", leadRequest{LeadID: lead.ID}, &view))
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/begin", nil, &view))
	require.Equal(t, "roleplay", view.Screen)
	return view
}

func wsURL(ts *httptest.Server, sessionID string) string {
	u, _ := url.Parse(ts.URL)
	u.Scheme = "ws"
	u.Path = "/v1/games/" + sessionID + "/call"
	return u.String()
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, config.Config{LiveProvider: config.ProviderScript})

	var health map[string]any
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/healthz", nil, &health))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, config.ProviderScript, health["live_provider"])

	var ready map[string]any
	assert.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/readyz", nil, &ready))
	assert.Equal(t, "ready", ready["status"])
}

func TestCatalogEndpoints(t *testing.T) {
	ts := newTestServer(t, config.Config{})

	var industries struct {
		Industries []industryResponse `json:"industries"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/v1/industries", nil, &industries))
	require.Len(t, industries.Industries, len(leads.Industries()))
	assert.NotEmpty(t, industries.Industries[0].Briefing)
	assert.Positive(t, industries.Industries[0].LeadCount)

	var list struct {
		Leads []leads.Lead `json:"leads"`
		Count int          `json:"count"`
	}
	q := url.Values{"industry": {"solar energy (b2c)"}, "difficulty": {"hard"}}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/v1/leads?"+q.Encode(), nil, &list))
	require.NotEmpty(t, list.Leads)
	assert.Equal(t, len(list.Leads), list.Count)
	for _, l := range list.Leads {
		assert.Equal(t, leads.IndustrySolar, l.Industry)
		assert.Equal(t, leads.DifficultyHard, l.Difficulty)
	}

	var errBody errorResponse
	assert.Equal(t, http.StatusBadRequest, doJSON(t, http.MethodGet, ts.URL+"/v1/leads?industry=mining", nil, &errBody))
	assert.Equal(t, "invalid_request", errBody.Code)

	lead := list.Leads[0]
	var detail struct {
		Lead     leads.Lead `json:"lead"`
		Briefing string     `json:"briefing"`
		Voice    string     `json:"voice"`
	}
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/v1/leads/"+lead.ID, nil, &detail))
	assert.Equal(t, lead, detail.Lead)
	assert.Equal(t, leads.Briefing(leads.IndustrySolar), detail.Briefing)
	assert.Equal(t, leads.VoiceForName(lead.Name), detail.Voice)

	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, ts.URL+"/v1/leads/nope", nil, &errBody))
	assert.Equal(t, "lead_not_found", errBody.Code)
}

func TestGameNavigation(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	view := createGame(t, ts, "user-1")
	base := ts.URL + "/v1/games/" + view.SessionID
	assert.Equal(t, "setup.industry", view.Screen)
	assert.True(t, view.BackDisabled)

	var errBody errorResponse
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, base+"/back", nil, &errBody))
	assert.Equal(t, "back_disabled", errBody.Code)

	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, base+"/begin", nil, &errBody))
	assert.Equal(t, "invalid_transition", errBody.Code)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/industry", industryRequest{Industry: string(leads.IndustryCyber)}, &view))
	assert.Equal(t, "setup.leads", view.Screen)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/difficulty", difficultyRequest{Difficulty: "easy"}, &view))
	assert.Equal(t, leads.DifficultyEasy, view.Game.Difficulty)

	solar := leads.NewCatalog().Filter(leads.IndustrySolar, "")[0]
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, base+"/lead", leadRequest{LeadID: solar.ID}, &errBody))

	cyber := leads.NewCatalog().Filter(leads.IndustryCyber, leads.DifficultyEasy)[0]
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/lead", leadRequest{LeadID: cyber.ID}, &view))
	assert.Equal(t, "dossier", view.Screen)
	require.NotNil(t, view.Game.CurrentLead)
	assert.Equal(t, cyber.ID, view.Game.CurrentLead.ID)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/back", nil, &view))
	assert.Equal(t, "setup.leads", view.Screen)

	var reset session.View
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodPost, base+"/reset", nil, &reset))
	assert.Equal(t, "setup.industry", reset.Screen)
	assert.Nil(t, reset.Game.CurrentLead)
	assert.Empty(t, reset.Game.SelectedIndustry)

	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, base, nil, &view))
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodDelete, base, nil, &view))
	assert.Equal(t, session.StatusEnded, view.Status)
	assert.Equal(t, http.StatusNotFound, doJSON(t, http.MethodGet, base, nil, &errBody))
	assert.Equal(t, "session_not_found", errBody.Code)
}

func TestCallRequiresRoleplay(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	view := createGame(t, ts, "user-1")

	res, err := http.Get(ts.URL + "/v1/games/" + view.SessionID + "/call")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestCallWebsocketFinishesIntoCoaching(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	view := toRoleplay(t, ts, "user-1")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, view.SessionID), nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var status protocol.CallStatus
	require.NoError(t, conn.ReadJSON(&status))
	assert.Equal(t, protocol.TypeCallStatus, status.Type)
	assert.Equal(t, string(call.StatusLiveCall), status.Status)

	var errBody errorResponse
	assert.Equal(t, http.StatusConflict, doJSON(t, http.MethodPost, ts.URL+"/v1/games/"+view.SessionID+"/back", nil, &errBody))
	assert.Equal(t, "call_in_progress", errBody.Code)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"bogus"}`)))
	var errEvent protocol.ErrorEvent
	require.NoError(t, conn.ReadJSON(&errEvent))
	assert.Equal(t, protocol.TypeErrorEvent, errEvent.Type)
	assert.Equal(t, "invalid_client_message", errEvent.Code)

	require.NoError(t, conn.WriteJSON(protocol.ClientControl{
		Type:      protocol.TypeClientControl,
		SessionID: view.SessionID,
		Action:    protocol.ActionEndCall,
	}))
	var finished protocol.CallFinished
	require.NoError(t, conn.ReadJSON(&finished))
	assert.Equal(t, protocol.TypeCallFinished, finished.Type)
	assert.Equal(t, "OVERALL SCORE: 7/10", finished.Evaluation)

	require.Eventually(t, func() bool {
		var current session.View
		doJSON(t, http.MethodGet, ts.URL+"/v1/games/"+view.SessionID, nil, &current)
		return current.Screen == "coaching" && !current.CallActive
	}, 2*time.Second, 20*time.Millisecond)

	var current session.View
	doJSON(t, http.MethodGet, ts.URL+"/v1/games/"+view.SessionID, nil, &current)
	assert.True(t, current.Game.CallEnded)
	assert.Equal(t, "OVERALL SCORE: 7/10", current.Game.FinalEvaluation)
	require.Len(t, current.Game.Messages, 1)
	assert.True(t, strings.HasSuffix(current.Game.Messages[0].Content, "speaking."))
}

func TestCallWebsocketClientLeavesKeepsRoleplay(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	view := toRoleplay(t, ts, "user-1")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, view.SessionID), nil)
	require.NoError(t, err)
	var status protocol.CallStatus
	require.NoError(t, conn.ReadJSON(&status))
	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		var current session.View
		doJSON(t, http.MethodGet, ts.URL+"/v1/games/"+view.SessionID, nil, &current)
		return !current.CallActive
	}, 2*time.Second, 20*time.Millisecond)

	var current session.View
	doJSON(t, http.MethodGet, ts.URL+"/v1/games/"+view.SessionID, nil, &current)
	assert.Equal(t, "roleplay", current.Screen)
	assert.False(t, current.Game.CallEnded)
}

func TestCallStartIsRateLimited(t *testing.T) {
	ts := newTestServer(t, config.Config{CallStartRate: 0.001, CallStartBurst: 1})
	first := toRoleplay(t, ts, "user-1")
	second := toRoleplay(t, ts, "user-2")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, first.SessionID), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, res, err := websocket.DefaultDialer.Dial(wsURL(ts, second.SessionID), nil)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
}

func TestCrossOriginWebsocketRejected(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	view := toRoleplay(t, ts, "user-1")

	header := http.Header{"Origin": {"https://evil.example"}}
	_, res, err := websocket.DefaultDialer.Dial(wsURL(ts, view.SessionID), header)
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
}

func TestUISettingsAndOnboarding(t *testing.T) {
	ts := newTestServer(t, config.Config{LiveProvider: config.ProviderAuto, ConnectionGrace: 5 * time.Second})

	var settings uiSettingsResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/v1/ui/settings", nil, &settings))
	assert.Equal(t, 16000, settings.InputSampleRate)
	assert.Equal(t, 24000, settings.OutputSampleRate)
	assert.Equal(t, int64(5000), settings.ConnectionGraceMS)
	assert.Equal(t, config.ProviderScript, settings.LiveProvider)

	var onboarding onboardingStatusResponse
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/v1/onboarding/status", nil, &onboarding))
	assert.Equal(t, "rubric", onboarding.EvaluatorProvider)
	assert.Equal(t, leads.NewCatalog().Len(), onboarding.LeadCount)
	ids := make([]string, 0, len(onboarding.Checks))
	for _, c := range onboarding.Checks {
		ids = append(ids, c.ID)
	}
	assert.Contains(t, ids, "gemini_api_key")
	assert.Contains(t, ids, "live_script")
}

func TestPerfCallsSnapshot(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	var snap observability.StageSnapshot
	require.Equal(t, http.StatusOK, doJSON(t, http.MethodGet, ts.URL+"/v1/perf/calls", nil, &snap))
	assert.False(t, snap.GeneratedAt.IsZero())
}

func TestStaticUIServed(t *testing.T) {
	ts := newTestServer(t, config.Config{})
	res, err := http.Get(ts.URL + "/ui/")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
}
