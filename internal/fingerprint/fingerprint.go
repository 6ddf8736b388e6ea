// Package fingerprint models the opaque, content-addressed identifier spec.md
// calls FileFingerprint. The algorithm used to compute one is explicitly a
// design non-concern ("modeled abstractly as an opaque FileFingerprint
// provider"), so the concrete Provider here reaches for nothing beyond
// crypto/sha256: there is no wire-compatibility requirement on the
// fingerprint's bytes, only the equality property spec.md §3 requires.
package fingerprint

import (
	"crypto/sha256"
	"io"
	"os"
)

// Fingerprint is an opaque content identifier. Two equal Fingerprints imply
// two files had equal content at sample time.
type Fingerprint [sha256.Size]byte

// Zero is the Fingerprint of no content; it is never returned by Compute for
// a real file and is used as a sentinel by callers that need one.
var Zero Fingerprint

// Provider computes a Fingerprint for the file at path.
type Provider interface {
	Compute(path string) (Fingerprint, error)
}

// SHA256Provider computes fingerprints by hashing the full file contents.
type SHA256Provider struct{}

// Compute opens path and streams its contents through SHA-256.
func (SHA256Provider) Compute(path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}, err
	}

	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp, nil
}
