package registry

import (
	"testing"

	"github.com/peerdrop/peerdrop/internal/fingerprint"
)

func TestInsertSendIsNoOpWhenEntryExists(t *testing.T) {
	r := New()
	r.InsertSend("a.txt", 3)
	r.CompleteBlock("a.txt", 0)

	r.InsertSend("a.txt", 9) // duplicate SEND (e.g. a racing retry)

	e, ok := r.Lookup("a.txt")
	if !ok {
		t.Fatal("expected entry to exist")
	}
	if len(e.Pending) != 2 {
		t.Fatalf("expected the original 2 pending blocks to survive a duplicate SEND, got %d", len(e.Pending))
	}
}

func TestCompleteBlockSettlesOnLastBlock(t *testing.T) {
	r := New()
	r.InsertSend("a.txt", 2)

	if r.CompleteBlock("a.txt", 0) {
		t.Fatal("expected allDone = false after only one of two blocks")
	}
	if !r.CompleteBlock("a.txt", 1) {
		t.Fatal("expected allDone = true after the last block")
	}
}

func TestCompleteBlockDuplicateVrfyIsIgnored(t *testing.T) {
	r := New()
	r.InsertSend("a.txt", 1)

	if !r.CompleteBlock("a.txt", 0) {
		t.Fatal("expected allDone on first VRFY of the only block")
	}
	// Settle before the duplicate VRFY arrives, as the Coordinator would.
	r.Settle("a.txt", fingerprint.Zero)

	if r.CompleteBlock("a.txt", 0) {
		t.Fatal("expected a duplicate VRFY against a Settled entry to be a no-op, not re-trigger allDone")
	}
}

func TestCompleteBlockWithNoMatchingSendIsIgnored(t *testing.T) {
	r := New()
	if r.CompleteBlock("never-sent.txt", 0) {
		t.Fatal("expected CompleteBlock with no matching SEND to report allDone = false")
	}
}

func TestSettleThenRemove(t *testing.T) {
	r := New()
	var fp fingerprint.Fingerprint
	fp[0] = 0xAB
	r.Settle("a.txt", fp)

	e, ok := r.Lookup("a.txt")
	if !ok || e.State != Settled || e.Fingerprint != fp {
		t.Fatalf("unexpected entry after Settle: %+v ok=%v", e, ok)
	}

	r.Remove("a.txt")
	if _, ok := r.Lookup("a.txt"); ok {
		t.Fatal("expected entry to be gone after Remove")
	}
}
