package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func newTestLogger() (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &Logger{std: log.New(&buf, "", 0), facilities: make(map[string]bool)}, &buf
}

func TestLevelPrefixes(t *testing.T) {
	l, buf := newTestLogger()
	l.Debugf("a %d", 1)
	l.Infof("b %d", 2)
	l.Warnf("c %d", 3)

	out := buf.String()
	for _, want := range []string{"DEBUG: a 1", "INFO: b 2", "WARNING: c 3"} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %q", out, want)
		}
	}
}

func TestConfigureFacilities(t *testing.T) {
	l, _ := newTestLogger()
	l.Configure("scanner, sender")

	if !l.ShouldDebug("scanner") || !l.ShouldDebug("sender") {
		t.Fatal("expected configured facilities to be enabled")
	}
	if l.ShouldDebug("receiver") {
		t.Fatal("expected unconfigured facility to be disabled")
	}
}

func TestConfigureAllFacility(t *testing.T) {
	l, _ := newTestLogger()
	l.Configure("all")

	if !l.ShouldDebug("anything") {
		t.Fatal("expected \"all\" to enable every facility")
	}
}

func TestConfigureEmptyDisablesEverything(t *testing.T) {
	l, _ := newTestLogger()
	l.Configure("scanner")
	l.Configure("")

	if l.ShouldDebug("scanner") {
		t.Fatal("expected re-Configure(\"\") to clear previously enabled facilities")
	}
}
