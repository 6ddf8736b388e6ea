// Package scanner implements the periodic walk of spec.md §4.2: take a
// fresh Snapshot of the share root, diff it against the previous pass, and
// emit the changed paths for the Sender pool to transmit — filtered through
// the ReceiveRegistry so a file this endpoint just received is not
// immediately re-sent back to the peer it came from.
//
// Grounded on internal/scanner/walk.go's filepath.Walk-based walker and its
// debug trace-flag convention (internal/scanner/debug.go), and on
// fileScanner.py's load_file/filter_file/compare_file.
package scanner

import (
	"context"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/peerdrop/peerdrop/internal/fingerprint"
	"github.com/peerdrop/peerdrop/internal/logger"
	"github.com/peerdrop/peerdrop/internal/registry"
	"github.com/peerdrop/peerdrop/internal/snapshot"
)

var l = logger.DefaultLogger

// fingerprintConcurrency bounds how many files are hashed at once during one
// walk, so a large share root doesn't open thousands of file descriptors at
// the same instant.
const fingerprintConcurrency = 8

// Emitter is the Sender pool's intake: SendFile queues one path for
// transmission.
type Emitter interface {
	SendFile(path string)
}

// Scanner periodically walks Root, diffs against its previous pass, and
// forwards changed paths to an Emitter. It implements suture.Service (Serve
// takes a context.Context and returns when it is canceled).
type Scanner struct {
	Root     string
	Interval time.Duration
	Registry *registry.Registry
	Provider fingerprint.Provider
	Emit     Emitter

	previous snapshot.Snapshot
}

// New constructs a Scanner with an SHA256Provider, ready to Serve.
func New(root string, interval time.Duration, reg *registry.Registry, emit Emitter) *Scanner {
	return &Scanner{
		Root:     root,
		Interval: interval,
		Registry: reg,
		Provider: fingerprint.SHA256Provider{},
		Emit:     emit,
	}
}

// Serve runs the scan loop until ctx is canceled, per suture.Service.
func (s *Scanner) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.tick()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Scanner) tick() {
	current, err := s.walk()
	if err != nil {
		l.Warnf("scanner: walk %s: %v", s.Root, err)
		return
	}

	s.reconcileRegistry(current)
	s.excludeInFlight(current)

	diff := snapshot.Compare(s.previous, current)
	s.previous = current

	for _, path := range diff.Changed() {
		if l.ShouldDebug("scanner") {
			l.Debugf("scanner: changed %s", path)
		}
		s.Emit.SendFile(path)
	}
}

// reconcileRegistry prunes Settled entries whose fingerprint still matches
// the file on disk (the file this endpoint just received — echo
// suppression per spec.md §4.5) and evicts Settled entries that have
// diverged (a genuine local edit arrived after the receive completed, so
// this pass's diff must pick it up and re-send it). InFlight entries are
// left untouched here; excludeInFlight keeps them out of the diff entirely
// until they settle.
func (s *Scanner) reconcileRegistry(current snapshot.Snapshot) {
	for path, fp := range current {
		entry, ok := s.Registry.Lookup(path)
		if !ok || entry.State != registry.Settled {
			continue
		}
		if entry.Fingerprint == fp {
			// Matches what we just wrote: fold it into "previous" so the
			// diff below treats it as unchanged, then drop the bookkeeping.
			if s.previous == nil {
				s.previous = snapshot.Snapshot{}
			}
			s.previous[path] = fp
		}
		s.Registry.Remove(path)
	}
}

// excludeInFlight removes from current any path the Coordinator currently
// holds InFlight (mid-receive, not yet Settled), carrying forward its prior
// fingerprint instead so the diff sees it as unchanged. Without this, a
// receive spanning more than one scan tick looks like a local edit in
// progress and gets sent straight back to the peer it came from — the exact
// ping-pong echo suppression exists to prevent.
func (s *Scanner) excludeInFlight(current snapshot.Snapshot) {
	for path := range current {
		entry, ok := s.Registry.Lookup(path)
		if !ok || entry.State != registry.InFlight {
			continue
		}
		if prev, ok := s.previous[path]; ok {
			current[path] = prev
		} else {
			delete(current, path)
		}
	}
}

// walkEntry is one file discovered under Root, queued for fingerprinting.
type walkEntry struct {
	rel  string
	path string
}

// walk builds a fresh Snapshot of Root. Paths whose name is not in Unicode
// NFC form are logged and skipped, the same check walk.go performs before
// handing a path to the rest of the pipeline. Fingerprinting (the expensive
// part: a full read of each file) runs across up to fingerprintConcurrency
// files at once via errgroup, the modern equivalent of the teacher's
// hand-rolled sync.WaitGroup fan-out in cmd/syncthing/connections.go.
func (s *Scanner) walk() (snapshot.Snapshot, error) {
	var entries []walkEntry
	err := filepath.WalkDir(s.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.Root, path)
		if err != nil {
			return err
		}
		if !norm.NFC.IsNormalString(rel) {
			l.Warnf("scanner: %s is not NFC-normalized, skipping", rel)
			return nil
		}
		entries = append(entries, walkEntry{rel: rel, path: path})
		return nil
	})
	if err != nil {
		return nil, err
	}

	snap := make(snapshot.Snapshot, len(entries))
	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(fingerprintConcurrency)
	for _, e := range entries {
		e := e
		g.Go(func() error {
			fp, err := s.Provider.Compute(e.path)
			if err != nil {
				l.Warnf("scanner: fingerprint %s: %v", e.rel, err)
				return nil
			}
			mu.Lock()
			snap[e.rel] = fp
			mu.Unlock()
			return nil
		})
	}
	g.Wait() // every goroutine above swallows its own error; Wait never fails
	return snap, nil
}
