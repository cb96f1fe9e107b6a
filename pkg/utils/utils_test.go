package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFmtLogger_LevelAndTag(t *testing.T) {
	var buf bytes.Buffer
	l := NewFmtLoggerTo(&buf, LevelInfo).With("Loop")

	l.Debugf("hidden %d", 1)
	l.Infof("tick %d", 2)
	l.Errorf("boom")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[Loop][INFO] tick 2\n")
	assert.Contains(t, out, "[Loop][ERROR] boom\n")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LevelWarn, ParseLevel("warning"))
	assert.Equal(t, LevelError, ParseLevel("error"))
	assert.Equal(t, LevelInfo, ParseLevel("whatever"))
}

func TestTagged_NonFmtLoggerPassthrough(t *testing.T) {
	assert.Equal(t, NopLogger{}, Tagged(nil, "x"))
	assert.Equal(t, NopLogger{}, Tagged(NopLogger{}, "x"))
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "data"), ExpandPath("~/data"))
	assert.Equal(t, "/tmp/x.db", ExpandPath("file:///tmp/x.db"))
	assert.Equal(t, "", ExpandPath("  "))
}

func TestResolveIn(t *testing.T) {
	assert.Equal(t, filepath.Join("/base", "a.sock"), ResolveIn("/base", "a.sock"))
	assert.Equal(t, "/abs/a.sock", ResolveIn("/base", "/abs/a.sock"))
	assert.Equal(t, "", ResolveIn("/base", ""))
}
