package rules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kestrelsec/a11yaudit/api/schemas"
	"github.com/kestrelsec/a11yaudit/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// mockSession scripts Evaluate responses: the presence probe, the injection,
// and the run call, in that order.
type mockSession struct {
	axePresent  bool
	injectErr   error
	runResult   string
	runErr      error
	injected    bool
	evaluations []string
}

func (m *mockSession) ID() string                                     { return "mock" }
func (m *mockSession) Navigate(ctx context.Context, url string) error { return nil }
func (m *mockSession) ExtractLinks(ctx context.Context) ([]string, error) {
	return nil, nil
}
func (m *mockSession) WaitForReady(ctx context.Context, strategy schemas.WaitStrategy, timeout time.Duration) error {
	return nil
}
func (m *mockSession) Close(ctx context.Context) error { return nil }

func (m *mockSession) Evaluate(ctx context.Context, script string, out any) error {
	m.evaluations = append(m.evaluations, script)
	switch {
	case script == `typeof window.axe !== 'undefined'`:
		*(out.(*bool)) = m.axePresent
		return nil
	case script == runExpr:
		if m.runErr != nil {
			return m.runErr
		}
		return json.Unmarshal([]byte(m.runResult), out)
	default:
		// Anything else is the injected checker bundle.
		m.injected = true
		return m.injectErr
	}
}

func writeScript(t *testing.T) config.RulesConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "checker.js")
	require.NoError(t, os.WriteFile(path, []byte("window.axe = {};"), 0o644))
	return config.RulesConfig{ScriptPath: path}
}

func TestNewRunner(t *testing.T) {
	t.Parallel()

	t.Run("loads the configured script", func(t *testing.T) {
		t.Parallel()
		runner, err := NewRunner(writeScript(t), zap.NewNop())
		require.NoError(t, err)
		assert.NotNil(t, runner)
	})

	t.Run("requires a script path", func(t *testing.T) {
		t.Parallel()
		_, err := NewRunner(config.RulesConfig{}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("fails on unreadable script", func(t *testing.T) {
		t.Parallel()
		_, err := NewRunner(config.RulesConfig{ScriptPath: "/does/not/exist.js"}, zap.NewNop())
		assert.Error(t, err)
	})
}

const sampleRunResult = `{
	"violations": [
		{
			"id": "image-alt",
			"impact": "critical",
			"description": "Images must have alternate text",
			"help": "Add an alt attribute",
			"tags": ["cat.text-alternatives", "wcag2a", "wcag111", "section508"],
			"nodes": [
				{"target": ["main", "img.hero"], "html": "<img src=\"hero.png\">"},
				{"target": ["img.footer"], "html": "<img src=\"footer.png\">"}
			]
		}
	],
	"passes": 41,
	"incomplete": 2
}`

func TestRunnerEvaluate(t *testing.T) {
	t.Parallel()

	t.Run("injects when checker is absent", func(t *testing.T) {
		t.Parallel()
		runner, err := NewRunner(writeScript(t), zap.NewNop())
		require.NoError(t, err)

		session := &mockSession{axePresent: false, runResult: sampleRunResult}
		result, err := runner.Evaluate(context.Background(), session)
		require.NoError(t, err)
		assert.True(t, session.injected)

		require.Len(t, result.Violations, 1)
		v := result.Violations[0]
		assert.Equal(t, "image-alt", v.RuleID)
		assert.Equal(t, "critical", v.Impact)
		assert.Equal(t, "Images must have alternate text", v.Message)
		assert.Equal(t, "Add an alt attribute", v.Help)
		// Only WCAG criterion tags survive the mapping.
		assert.Equal(t, []string{"wcag2a", "wcag111"}, v.WCAG)

		require.Len(t, v.Nodes, 2)
		assert.Equal(t, "main img.hero", v.Nodes[0].Selector)
		assert.Equal(t, `<img src="hero.png">`, v.Nodes[0].HTML)

		assert.Equal(t, 41, result.Passes)
		assert.Equal(t, 2, result.Incomplete)
	})

	t.Run("skips injection when checker is present", func(t *testing.T) {
		t.Parallel()
		runner, err := NewRunner(writeScript(t), zap.NewNop())
		require.NoError(t, err)

		session := &mockSession{axePresent: true, runResult: `{"violations": []}`}
		result, err := runner.Evaluate(context.Background(), session)
		require.NoError(t, err)
		assert.False(t, session.injected)
		assert.Empty(t, result.Violations)
	})

	t.Run("injection failure is an error", func(t *testing.T) {
		t.Parallel()
		runner, err := NewRunner(writeScript(t), zap.NewNop())
		require.NoError(t, err)

		session := &mockSession{injectErr: errors.New("exception at line 1")}
		_, err = runner.Evaluate(context.Background(), session)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "checker injection failed")
	})

	t.Run("run failure is an error", func(t *testing.T) {
		t.Parallel()
		runner, err := NewRunner(writeScript(t), zap.NewNop())
		require.NoError(t, err)

		session := &mockSession{axePresent: true, runErr: errors.New("promise rejected")}
		_, err = runner.Evaluate(context.Background(), session)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "checker run failed")
	})
}
