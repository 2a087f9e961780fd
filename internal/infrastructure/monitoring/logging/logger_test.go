package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newObservedLogger() (Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewLoggerFromCore(core), logs
}

func TestNewLogger_ValidConfigs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cfg  Config
	}{
		{"json info", Config{Level: "info", Format: "json"}},
		{"console debug", Config{Level: "debug", Format: "console"}},
		{"defaults", Config{}},
		{"development", Config{Level: "warn", Format: "console", Development: true}},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			l, err := NewLogger(tc.cfg)
			require.NoError(t, err)
			assert.NotNil(t, l)
		})
	}
}

func TestNewLogger_RejectsUnknownLevelAndFormat(t *testing.T) {
	t.Parallel()

	_, err := NewLogger(Config{Level: "verbose"})
	assert.Error(t, err)

	_, err = NewLogger(Config{Format: "xml"})
	assert.Error(t, err)
}

func TestLogger_EmitsTypedFields(t *testing.T) {
	t.Parallel()

	l, logs := newObservedLogger()
	l.Info("analysis finished",
		String("target_id", "t-1"),
		Int("total_checks", 60),
		Float64("score", 72.5),
		Bool("cached", false),
		Duration("elapsed", 120*time.Millisecond),
		Strings("keywords", []string{"acme", "acme services"}),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "analysis finished", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "t-1", fields["target_id"])
	assert.EqualValues(t, 60, fields["total_checks"])
	assert.Equal(t, 72.5, fields["score"])
	assert.Equal(t, false, fields["cached"])
}

func TestErr_NilIsSkipped(t *testing.T) {
	t.Parallel()

	l, logs := newObservedLogger()
	l.Warn("fetch fallback", Err(nil))

	require.Equal(t, 1, logs.Len())
	_, present := logs.All()[0].ContextMap()["error"]
	assert.False(t, present, "nil error must not emit an error field")
}

func TestErr_NonNil(t *testing.T) {
	t.Parallel()

	l, logs := newObservedLogger()
	l.Error("fetch failed", Err(errors.New("connection refused")))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "connection refused", logs.All()[0].ContextMap()["error"])
}

func TestWith_AttachesFieldsToChildren(t *testing.T) {
	t.Parallel()

	l, logs := newObservedLogger()
	child := l.With(String("component", "fetcher"))
	child.Info("page fetched")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "fetcher", logs.All()[0].ContextMap()["component"])
}

func TestNamed_SetsLoggerName(t *testing.T) {
	t.Parallel()

	l, logs := newObservedLogger()
	l.Named("guard").Info("url allowed")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "guard", logs.All()[0].LoggerName)
}

func TestNopLogger_DoesNothing(t *testing.T) {
	t.Parallel()

	nop := NewNopLogger()
	nop.Info("ignored")
	nop.With(String("a", "b")).Named("x").Error("still ignored", Err(errors.New("boom")))
}

func TestDefault_SetAndGet(t *testing.T) {
	l, _ := newObservedLogger()
	prev := Default()
	defer SetDefault(prev)

	SetDefault(l)
	assert.Equal(t, l, Default())

	// nil must not clobber the installed default
	SetDefault(nil)
	assert.Equal(t, l, Default())
}
