package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func console(buf *bytes.Buffer, level slog.Level) Logger {
	return New(NewConsoleHandler(buf, ConsoleOptions{Level: level}))
}

func TestConsoleLine(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := console(&buf, slog.LevelInfo)
	log.Info("chunk done", "frames", 160, "rtf", 0.125, "took", 3*time.Millisecond, "note", "two words")

	line := buf.String()
	assert.Regexp(t, `^\d\d:\d\d:\d\d\.\d{3} INF chunk done `, line)
	assert.Contains(t, line, " frames=160")
	assert.Contains(t, line, " rtf=0.125")
	assert.Contains(t, line, " took=3ms")
	assert.Contains(t, line, ` note="two words"`)
	assert.True(t, strings.HasSuffix(line, "\n"))
	assert.NotContains(t, line, "\033[")
}

func TestConsoleStreamTag(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := ForStream(console(&buf, slog.LevelDebug), "0123456789abcdef")
	log.Debug("stream started", "pipeline", "demo")

	line := buf.String()
	assert.Contains(t, line, "DBG [01234567] stream started pipeline=demo")
	assert.NotContains(t, line, StreamKey)

	buf.Reset()
	console(&buf, slog.LevelInfo).Info("opened", StreamKey, "abc")
	assert.Contains(t, buf.String(), "INF [abc] opened")
}

func TestConsoleGroupsAndErrors(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := console(&buf, slog.LevelInfo).WithGroup("pool").With("class", 3)
	log.Warn("evicted", slog.Group("stats", "live", 2), "err", errors.New("boom now"))

	line := buf.String()
	assert.Contains(t, line, "WRN evicted")
	assert.Contains(t, line, " pool.class=3")
	assert.Contains(t, line, " pool.stats.live=2")
	assert.Contains(t, line, ` pool.err="boom now"`)
}

func TestConsoleColor(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := New(NewConsoleHandler(&buf, ConsoleOptions{Level: slog.LevelInfo, Color: true}))
	log.Error("failed", "err", errors.New("x"))
	assert.Contains(t, buf.String(), ansiRed+"ERR"+ansiReset)
}

func TestConsoleLevelFiltering(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := console(&buf, slog.LevelWarn)
	log.Info("hidden")
	log.Debug("hidden")
	assert.Zero(t, buf.Len())
	log.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestConsoleConcurrentWriters(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	base := console(&buf, slog.LevelInfo)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := ForStream(base, strings.Repeat(string(rune('a'+i)), 10))
			for range 50 {
				l.Info("tick")
			}
		}()
	}
	wg.Wait()
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 400)
	for _, line := range lines {
		assert.Regexp(t, `INF \[[a-h]{8}\] tick$`, line)
	}
}

func TestJSON(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := JSON(&buf, slog.LevelInfo).With("component", "api")
	log.Info("hello", "key", "value")
	out := buf.String()
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"key":"value"`)
	assert.Contains(t, out, `"component":"api"`)
	assert.Contains(t, out, `"source"`)
}

func TestOpenFormats(t *testing.T) {
	t.Parallel()
	for format, want := range map[string]string{
		"json":   `"msg":"hi"`,
		"text":   "msg=hi",
		"pretty": "INF hi",
		"":       "INF hi",
	} {
		var buf bytes.Buffer
		log, err := Open(&buf, format, slog.LevelInfo)
		require.NoError(t, err, format)
		log.Info("hi")
		assert.Contains(t, buf.String(), want, format)
	}
	_, err := Open(&bytes.Buffer{}, "xml", slog.LevelInfo)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"debug+2": slog.LevelDebug + 2,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	t.Parallel()
	assert.NotNil(t, FromContext(context.Background()))

	var buf bytes.Buffer
	log := console(&buf, slog.LevelInfo)
	got := FromContext(WithContext(context.Background(), log))
	got.Info("via context")
	assert.Contains(t, buf.String(), "via context")
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	log := Discard()
	log.Error("nothing")
	log.With("a", 1).WithGroup("g").Info("nothing")
}
