// Package registry implements the ReceiveRegistry from spec.md §3/§4.5: the
// shared map the Coordinator mutates on SEND/VRFY and the Scanner reads (and
// prunes) while filtering its own walk. It is the only state spec.md §5
// requires to be shared between components, and is guarded by a single
// read/write lock: Lookup takes it shared, every other operation exclusive.
//
// Block accounting is keyed by (path, block index) rather than a bare
// decrementing counter. spec.md §9's open question #2 notes that a
// counter-based design over-decrements when a retried block produces a
// duplicate VRFY for a path whose SEND was already deduplicated; keying by
// block index makes a duplicate VRFY for an already-completed index a no-op
// instead of an under-count.
package registry

import (
	"github.com/peerdrop/peerdrop/internal/fingerprint"
	"github.com/peerdrop/peerdrop/internal/syncutil"
)

// State distinguishes an in-flight receive from a settled one.
type State int

const (
	// InFlight means at least one block of the file is still expected.
	InFlight State = iota
	// Settled means the file fully arrived and the Entry holds its fingerprint.
	Settled
)

// Entry is one ReceiveRegistry value: either InFlight with a pending block
// set, or Settled with the fingerprint observed right after completion.
type Entry struct {
	State       State
	Pending     map[uint32]struct{} // InFlight only; remaining block indices
	Fingerprint fingerprint.Fingerprint
}

// Registry is the process-wide ReceiveRegistry, exclusively owned by the
// Coordinator for writes and read (and pruned) by the Scanner.
type Registry struct {
	mut     syncutil.RWMutex
	entries map[string]Entry
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		mut:     syncutil.NewRWMutex(),
		entries: make(map[string]Entry),
	}
}

// Lookup returns the current entry for path, if any.
func (r *Registry) Lookup(path string) (Entry, bool) {
	r.mut.RLock()
	defer r.mut.RUnlock()
	e, ok := r.entries[path]
	return e, ok
}

// InsertSend installs an InFlight entry for path covering block indices
// [0, blockCount) if path has no entry yet. A concurrent SEND for the same
// path (e.g. a retried or racing block connection) is a no-op, per spec.md
// §4.5's recv_send: "if already present, leave untouched".
func (r *Registry) InsertSend(path string, blockCount uint32) {
	r.mut.Lock()
	defer r.mut.Unlock()
	if _, ok := r.entries[path]; ok {
		return
	}
	pending := make(map[uint32]struct{}, blockCount)
	for i := uint32(0); i < blockCount; i++ {
		pending[i] = struct{}{}
	}
	r.entries[path] = Entry{State: InFlight, Pending: pending}
}

// CompleteBlock marks blockIndex of path as verified. It reports whether
// that was the last outstanding block for path (the entry is now ready to
// settle). A VRFY for an index that is not pending — a duplicate caused by a
// retried block, or a VRFY with no matching SEND — is ignored.
func (r *Registry) CompleteBlock(path string, blockIndex uint32) (allDone bool) {
	r.mut.Lock()
	defer r.mut.Unlock()
	e, ok := r.entries[path]
	if !ok || e.State != InFlight {
		return false
	}
	delete(e.Pending, blockIndex)
	r.entries[path] = e
	return len(e.Pending) == 0
}

// Settle replaces path's entry with a Settled one carrying fp, the
// fingerprint of the file immediately after the transfer completed.
func (r *Registry) Settle(path string, fp fingerprint.Fingerprint) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.entries[path] = Entry{State: Settled, Fingerprint: fp}
}

// Remove deletes path's entry. Called by the Scanner when it observes a
// Settled entry whose fingerprint has diverged from the current file — a
// genuine local edit after a completed receive.
func (r *Registry) Remove(path string) {
	r.mut.Lock()
	defer r.mut.Unlock()
	delete(r.entries, path)
}
