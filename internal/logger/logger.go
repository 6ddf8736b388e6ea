// Package logger provides the leveled, facility-gated logger used across
// peerdrop. It wraps the standard library's log.Logger instead of reaching
// for a structured logging library, the same choice the teacher codebase
// makes for its own internal/logger package.
package logger

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
)

// Logger writes leveled lines to an underlying log.Logger and tracks which
// trace facilities are currently enabled.
type Logger struct {
	mut        sync.Mutex
	std        *log.Logger
	facilities map[string]bool
	allFacil   bool
}

// DefaultLogger is the logger instance every package imports as "l".
var DefaultLogger = New()

// New constructs a Logger writing to stderr, configured from the
// PEERDROP_TRACE environment variable: a comma-separated list of facility
// names, or "all" to enable every facility's debug output.
func New() *Logger {
	l := &Logger{
		std:        log.New(os.Stderr, "", log.Ltime|log.Ldate),
		facilities: make(map[string]bool),
	}
	l.Configure(os.Getenv("PEERDROP_TRACE"))
	return l
}

// Configure replaces the set of enabled trace facilities.
func (l *Logger) Configure(spec string) {
	l.mut.Lock()
	defer l.mut.Unlock()
	l.facilities = make(map[string]bool)
	l.allFacil = false
	for _, f := range strings.Split(spec, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if f == "all" {
			l.allFacil = true
		}
		l.facilities[f] = true
	}
}

// ShouldDebug reports whether the named facility has debug output enabled.
func (l *Logger) ShouldDebug(facility string) bool {
	l.mut.Lock()
	defer l.mut.Unlock()
	return l.allFacil || l.facilities[facility]
}

func (l *Logger) output(calldepth int, prefix, s string) {
	l.std.Output(calldepth+1, prefix+s)
}

func (l *Logger) Debugln(vals ...interface{}) {
	l.output(2, "DEBUG: ", fmt.Sprintln(vals...))
}

func (l *Logger) Debugf(format string, vals ...interface{}) {
	l.output(2, "DEBUG: ", fmt.Sprintf(format, vals...)+"\n")
}

func (l *Logger) Infoln(vals ...interface{}) {
	l.output(2, "INFO: ", fmt.Sprintln(vals...))
}

func (l *Logger) Infof(format string, vals ...interface{}) {
	l.output(2, "INFO: ", fmt.Sprintf(format, vals...)+"\n")
}

func (l *Logger) Warnln(vals ...interface{}) {
	l.output(2, "WARNING: ", fmt.Sprintln(vals...))
}

func (l *Logger) Warnf(format string, vals ...interface{}) {
	l.output(2, "WARNING: ", fmt.Sprintf(format, vals...)+"\n")
}

func (l *Logger) Fatalln(vals ...interface{}) {
	l.output(2, "FATAL: ", fmt.Sprintln(vals...))
	os.Exit(1)
}

func (l *Logger) Fatalf(format string, vals ...interface{}) {
	l.output(2, "FATAL: ", fmt.Sprintf(format, vals...)+"\n")
	os.Exit(1)
}
