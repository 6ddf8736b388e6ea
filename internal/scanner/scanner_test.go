package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/peerdrop/peerdrop/internal/fingerprint"
	"github.com/peerdrop/peerdrop/internal/registry"
)

type recordingEmitter struct {
	sent []string
}

func (e *recordingEmitter) SendFile(path string) {
	e.sent = append(e.sent, path)
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o777); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o666); err != nil {
		t.Fatal(err)
	}
}

func TestScannerEmitsNewAndChangedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "hello")

	reg := registry.New()
	emit := &recordingEmitter{}
	s := New(root, time.Hour, reg, emit)

	if current, err := s.walk(); err != nil {
		t.Fatal(err)
	} else {
		s.previous = current
	}
	emit.sent = nil

	writeFile(t, root, "a.txt", "hello, world")
	writeFile(t, root, "b.txt", "new file")
	s.tick()

	if len(emit.sent) != 2 {
		t.Fatalf("got %d emitted paths, want 2: %v", len(emit.sent), emit.sent)
	}
}

func TestScannerSuppressesSettledEcho(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "recv.txt", "from peer")

	fp, err := fingerprint.SHA256Provider{}.Compute(filepath.Join(root, "recv.txt"))
	if err != nil {
		t.Fatal(err)
	}

	reg := registry.New()
	reg.Settle("recv.txt", fp)

	emit := &recordingEmitter{}
	s := New(root, time.Hour, reg, emit)
	s.tick()

	if len(emit.sent) != 0 {
		t.Fatalf("expected no emissions for a freshly-settled receive, got %v", emit.sent)
	}
	if _, ok := reg.Lookup("recv.txt"); ok {
		t.Fatal("expected Settled entry to be pruned after reconciliation")
	}
}

func TestScannerResendsAfterLocalEditPostSettle(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "recv.txt", "from peer")

	reg := registry.New()
	reg.Settle("recv.txt", fingerprint.Zero) // stale fingerprint: file has since changed locally

	emit := &recordingEmitter{}
	s := New(root, time.Hour, reg, emit)
	s.tick()

	if len(emit.sent) != 1 || emit.sent[0] != "recv.txt" {
		t.Fatalf("expected recv.txt to be re-sent after diverging from settled fingerprint, got %v", emit.sent)
	}
}

func TestScannerSuppressesInFlightReceive(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "recv.txt", "partial contents written so far")

	reg := registry.New()
	reg.InsertSend("recv.txt", 4) // mid-receive: not yet Settled

	emit := &recordingEmitter{}
	s := New(root, time.Hour, reg, emit)
	s.tick()

	if len(emit.sent) != 0 {
		t.Fatalf("expected no emissions for a file still InFlight, got %v", emit.sent)
	}

	// A second tick, with the file still growing and still InFlight, must
	// not emit it either — otherwise a receive spanning more than one scan
	// tick would get sent back to the peer it's being received from.
	writeFile(t, root, "recv.txt", "partial contents written so far, now more")
	s.tick()

	if len(emit.sent) != 0 {
		t.Fatalf("expected no emissions across a second tick while still InFlight, got %v", emit.sent)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	root := t.TempDir()
	reg := registry.New()
	s := New(root, time.Millisecond, reg, &recordingEmitter{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop after context cancel")
	}
}
