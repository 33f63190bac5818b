package logging

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  LogLevel
		ok    bool
	}{
		{name: "debug", input: "debug", want: LevelDebug, ok: true},
		{name: "info", input: "info", want: LevelInfo, ok: true},
		{name: "warn", input: "warn", want: LevelWarn, ok: true},
		{name: "warning alias", input: "warning", want: LevelWarn, ok: true},
		{name: "error", input: "error", want: LevelError, ok: true},
		{name: "case insensitive", input: "DEBUG", want: LevelDebug, ok: true},
		{name: "surrounding space", input: " error ", want: LevelError, ok: true},
		{name: "unknown falls back to info", input: "verbose", want: LevelInfo, ok: false},
		{name: "empty falls back to info", input: "", want: LevelInfo, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLevel(tt.input)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	assert.Less(t, int(LevelDebug), int(LevelInfo))
	assert.Less(t, int(LevelInfo), int(LevelWarn))
	assert.Less(t, int(LevelWarn), int(LevelError))
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "debug", LevelDebug.String())
	assert.Equal(t, "info", LevelInfo.String())
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "error", LevelError.String())
	assert.Equal(t, "unknown(99)", LogLevel(99).String())
}

func TestSetLevelFiltersOutput(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	original := GetLevel()
	defer func() {
		SetLevel(original)
		log.SetOutput(os.Stderr)
	}()

	SetLevel(LevelWarn)
	Debug("debug %d", 1)
	Info("info %d", 2)
	Warn("warn %d", 3)
	Error("error %d", 4)

	out := buf.String()
	assert.NotContains(t, out, "[DEBUG]")
	assert.NotContains(t, out, "[INFO]")
	assert.Contains(t, out, "[WARN] warn 3")
	assert.Contains(t, out, "[ERROR] error 4")
	assert.False(t, IsDebugEnabled())

	buf.Reset()
	SetLevel(LevelDebug)
	Debug("now visible")
	assert.True(t, strings.Contains(buf.String(), "[DEBUG] now visible"))
	assert.True(t, IsDebugEnabled())
}
