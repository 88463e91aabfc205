package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ent0n29/coldcall/internal/config"
)

func testConfig() config.Config {
	cfg := config.Defaults()
	cfg.MetricsNamespace = fmt.Sprintf("test_app_%d", time.Now().UnixNano())
	cfg.GeminiAPIKey = ""
	return cfg
}

func TestBuildOfflineUsesScriptAndRubric(t *testing.T) {
	res, err := Build(context.Background(), testConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, config.ProviderScript, res.Provider.Live)
	assert.Equal(t, "rubric", res.Provider.Evaluator)
	assert.Equal(t, config.ProviderScript, res.Config.LiveProvider)
	assert.Contains(t, res.Provider.Detail, "built-in script")
	assert.NotNil(t, res.API.Router())
	assert.Positive(t, res.Catalog.Len())
}

func TestBuildGeminiRequiresKey(t *testing.T) {
	cfg := testConfig()
	cfg.LiveProvider = config.ProviderGemini
	_, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestBuildRejectsMissingScript(t *testing.T) {
	cfg := testConfig()
	cfg.LiveProvider = config.ProviderScript
	cfg.ScriptPath = "testdata/does-not-exist.yaml"
	_, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live script load failed")
}

func TestBuildLoadsScriptFile(t *testing.T) {
	cfg := testConfig()
	cfg.LiveProvider = config.ProviderScript
	cfg.ScriptPath = "../live/testdata/hangup.yaml"
	res, err := Build(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Contains(t, res.Provider.Detail, "hangup.yaml")
}

func TestJanitorInterval(t *testing.T) {
	assert.Equal(t, 5*time.Second, JanitorInterval(time.Second))
	assert.Equal(t, 15*time.Second, JanitorInterval(time.Minute))
	assert.Equal(t, time.Minute, JanitorInterval(30*time.Minute))
}

func TestResolveEvaluator(t *testing.T) {
	ev, name, err := ResolveEvaluator(context.Background(), testConfig(), false, nil)
	require.NoError(t, err)
	assert.Equal(t, "rubric", name)
	assert.NotNil(t, ev)

	_, _, err = ResolveEvaluator(context.Background(), testConfig(), true, nil)
	assert.Error(t, err)
}
