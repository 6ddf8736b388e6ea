// Package filewriter implements the receiver-side FileWriter of spec.md §3:
// one open handle per in-flight SEND, written to at absolute offsets by
// PAKG, truncated to the declared file size on VRFY. Grounded on
// fileLoader.py's fileWriter class.
package filewriter

import (
	"os"
	"path/filepath"
)

// Writer is bound to exactly one path for the duration of one connection's
// SEND..VRFY exchange, per spec.md §3's "at most one FileWriter per path on
// the receiver" (enforced per-connection here; cross-connection duplicate
// SENDs are deduplicated upstream by the ReceiveRegistry).
type Writer struct {
	path     string
	fileSize int64
	f        *os.File
}

// New creates (or opens) path, creating any missing parent directories, and
// returns a Writer that will truncate it to fileSize on Close.
func New(path string, fileSize int64) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o777); err != nil {
			return nil, err
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, err
	}
	return &Writer{path: path, fileSize: fileSize, f: f}, nil
}

// WriteAt writes data at the given absolute byte position.
func (w *Writer) WriteAt(position int64, data []byte) error {
	_, err := w.f.WriteAt(data, position)
	return err
}

// Close truncates the file to the declared file size and closes the handle.
// This establishes the exact final length even if the last PAKG rounded up
// to a full packet.
func (w *Writer) Close() error {
	if err := w.f.Truncate(w.fileSize); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

// Abort closes the handle without truncating, used when a SEND is aborted
// by a LocalFilesystem error partway through (spec.md §7).
func (w *Writer) Abort() error {
	return w.f.Close()
}

// Path returns the destination path this Writer is bound to.
func (w *Writer) Path() string { return w.path }
