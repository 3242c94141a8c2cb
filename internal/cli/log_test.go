package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level   log.Level
		debug   bool
		wantOut bool
	}{
		{log.InfoLevel, false, true},
		{log.InfoLevel, true, false},
		{log.DebugLevel, true, true},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		logger := newLogger(&buf, tt.level)
		if tt.debug {
			logger.Debug("unresolved dependency", "key", "perl")
		} else {
			logger.Info("built graph", "nodes", 2)
		}
		if got := buf.Len() > 0; got != tt.wantOut {
			t.Errorf("level %v, debug=%v: wrote output = %v, want %v", tt.level, tt.debug, got, tt.wantOut)
		}
	}
}

func TestStopwatch(t *testing.T) {
	var buf bytes.Buffer
	sw := newStopwatch(newLogger(&buf, log.InfoLevel))
	time.Sleep(5 * time.Millisecond)
	sw.done("Loaded 2 packages")

	out := buf.String()
	if !strings.Contains(out, "Loaded 2 packages (") || !strings.Contains(out, "ms)") {
		t.Errorf("stopwatch output = %q", out)
	}
}

func TestLoggerFromContext(t *testing.T) {
	if loggerFromContext(context.Background()) != log.Default() {
		t.Error("loggerFromContext without a logger should return log.Default()")
	}

	var buf bytes.Buffer
	custom := newLogger(&buf, log.InfoLevel)
	ctx := withLogger(context.Background(), custom)
	if loggerFromContext(ctx) != custom {
		t.Error("loggerFromContext should return the attached logger")
	}
}
