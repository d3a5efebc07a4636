package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	SetWriter(buf)
	SetLevel("INFO")
	SetFormat("text")
	t.Cleanup(func() {
		SetWriter(os.Stdout)
		SetLevel("INFO")
		SetFormat("text")
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	buf := reset(t)

	Debug("hidden %d", 1)
	Info("shown %d", 2)
	Warn("warned")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[INFO] shown 2")
	assert.Contains(t, out, "[WARN] warned")

	SetLevel("debug")
	Debug("now visible")
	assert.Contains(t, buf.String(), "[DEBUG] now visible")
	assert.True(t, Enabled(LevelDebug))
}

func TestJSONFormat(t *testing.T) {
	buf := reset(t)
	SetFormat("json")

	Error("conn=%s kind=%s", "abc", "transport")

	var record map[string]string
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record))
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "conn=abc kind=transport", record["msg"])
	assert.NotEmpty(t, record["time"])
}

func TestSetOutputFile(t *testing.T) {
	reset(t)
	path := filepath.Join(t.TempDir(), "server.log")

	require.NoError(t, SetOutput(path))
	Info("to file")
	require.NoError(t, SetOutput("stdout"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "to file"))
}
