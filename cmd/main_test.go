// File: cmd/main_test.go
package cmd

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/rateidea-agent/api/schemas"
	"github.com/xkilldash9x/rateidea-agent/internal/config"
	"github.com/xkilldash9x/rateidea-agent/internal/llmclient"
	"github.com/xkilldash9x/rateidea-agent/internal/mocks"
	"github.com/xkilldash9x/rateidea-agent/internal/observability"
)

var defaultSessionManager = newSessionManager

// resetForTest provides the single source of truth for resetting test state.
func resetForTest(t *testing.T) {
	t.Helper()

	cfgFile = ""
	newSessionManager = func(config.BrowserConfig, *zap.Logger) sessionManager {
		t.Fatal("no browser may be launched in this test")
		return nil
	}
	newLLMClient = llmclient.NewClient
	newFs = afero.NewOsFs
	timeNow = time.Now
	t.Cleanup(func() {
		cfgFile = ""
		newSessionManager = defaultSessionManager
		newLLMClient = llmclient.NewClient
		newFs = afero.NewOsFs
		timeNow = time.Now
	})

	// Consume the logger's one-shot initialization with a silent logger.
	observability.ResetForTest()
	observability.Initialize(config.LoggerConfig{Level: "fatal", Format: "console", ServiceName: "test"}, zapcore.AddSync(io.Discard))

	// Keep the developer's environment out of the tests.
	for _, key := range []string{"OPENAI_API_KEY", "GEMINI_API_KEY", "HEADLESS", "RATEIDEA_BROWSER_HEADLESS"} {
		t.Setenv(key, "")
	}
	t.Setenv("RATEIDEA_LLM_API_KEY", "sk-test-secret")
}

// execute runs a fresh command tree with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// fakeManager is a session manager backed by the session factory mock.
type fakeManager struct {
	*mocks.MockSessionFactory
	cfg       config.BrowserConfig
	shutdowns int
}

func (f *fakeManager) Shutdown(ctx context.Context) error {
	f.shutdowns++
	return nil
}

// useFakes routes the run command onto mocks and an in-memory filesystem.
func useFakes(t *testing.T, llm schemas.LLMClient) *fakeManager {
	t.Helper()
	manager := &fakeManager{MockSessionFactory: new(mocks.MockSessionFactory)}
	newSessionManager = func(cfg config.BrowserConfig, logger *zap.Logger) sessionManager {
		manager.cfg = cfg
		return manager
	}
	newLLMClient = func(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
		return llm, nil
	}
	fs := afero.NewMemMapFs()
	newFs = func() afero.Fs { return fs }

	// No waiting between actions.
	t.Setenv("RATEIDEA_PACING_MIN_ACTION_INTERVAL", "0s")
	t.Setenv("RATEIDEA_DELAYS_IDLE_BROWSE", "0s")
	return manager
}
