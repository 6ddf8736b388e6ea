// Package syncutil wraps sync.Mutex and sync.RWMutex with optional
// hold-time tracing, gated on the "sync" trace facility. This mirrors the
// teacher codebase's internal/sync package: production builds pay no
// overhead, and a trace build logs any lock held longer than the threshold
// along with the call site that acquired it.
package syncutil

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/peerdrop/peerdrop/internal/logger"
)

const threshold = 100 * time.Millisecond

var l = logger.DefaultLogger

// Mutex is satisfied by both sync.Mutex and the debug-instrumented variant.
type Mutex interface {
	Lock()
	Unlock()
}

// RWMutex is satisfied by both sync.RWMutex and the debug-instrumented variant.
type RWMutex interface {
	Mutex
	RLock()
	RUnlock()
}

// NewMutex returns a Mutex, instrumented if the "sync" trace facility is on.
func NewMutex() Mutex {
	if l.ShouldDebug("sync") {
		return &loggedMutex{}
	}
	return &sync.Mutex{}
}

// NewRWMutex returns an RWMutex, instrumented if the "sync" trace facility is on.
func NewRWMutex() RWMutex {
	if l.ShouldDebug("sync") {
		return &loggedRWMutex{}
	}
	return &sync.RWMutex{}
}

type loggedMutex struct {
	sync.Mutex
	start    time.Time
	lockedAt string
}

func (m *loggedMutex) Lock() {
	m.Mutex.Lock()
	m.start = time.Now()
	m.lockedAt = getCaller()
}

func (m *loggedMutex) Unlock() {
	if d := time.Since(m.start); d >= threshold {
		l.Debugf("mutex held for %v, locked at %s unlocked at %s", d, m.lockedAt, getCaller())
	}
	m.Mutex.Unlock()
}

type loggedRWMutex struct {
	sync.RWMutex
	start    time.Time
	lockedAt string
}

func (m *loggedRWMutex) Lock() {
	start := time.Now()
	m.RWMutex.Lock()
	m.start = time.Now()
	m.lockedAt = getCaller()
	if d := m.start.Sub(start); d > threshold {
		l.Debugf("rwmutex took %v to lock, locked at %s", d, m.lockedAt)
	}
}

func (m *loggedRWMutex) Unlock() {
	if d := time.Since(m.start); d >= threshold {
		l.Debugf("rwmutex held for %v, locked at %s unlocked at %s", d, m.lockedAt, getCaller())
	}
	m.RWMutex.Unlock()
}

func getCaller() string {
	_, file, line, _ := runtime.Caller(2)
	file = filepath.Join(filepath.Base(filepath.Dir(file)), filepath.Base(file))
	return fmt.Sprintf("%s:%d", file, line)
}
