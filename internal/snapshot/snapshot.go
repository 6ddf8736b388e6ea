// Package snapshot models one scan pass over the share root: a map from
// relative path to content fingerprint, and the set difference between two
// passes. Grounded on fileScanner.py's compare_file, which computes the same
// add/remove/update split over two generations of a path->fingerprint dict.
package snapshot

import "github.com/peerdrop/peerdrop/internal/fingerprint"

// Snapshot maps a canonical relative path under the share root to the
// fingerprint of its contents at the instant of scan. The Scanner adjusts a
// pass's entries while reconciling it with the ReceiveRegistry, and the
// whole Snapshot is replaced by the next scan pass.
type Snapshot map[string]fingerprint.Fingerprint

// Diff is the result of comparing two Snapshots.
type Diff struct {
	Added   []string
	Removed []string
	Updated []string
}

// Compare computes added, removed, and updated paths between an old and a
// new Snapshot. Added and Updated are the paths a caller should act on;
// Removed is informational only per spec.md §4.2.
func Compare(previous, current Snapshot) Diff {
	var d Diff
	for p := range current {
		if _, ok := previous[p]; !ok {
			d.Added = append(d.Added, p)
		}
	}
	for p, oldFP := range previous {
		newFP, ok := current[p]
		if !ok {
			d.Removed = append(d.Removed, p)
			continue
		}
		if oldFP != newFP {
			d.Updated = append(d.Updated, p)
		}
	}
	return d
}

// Changed returns the union of Added and Updated, the set of paths the
// Scanner must emit SendFile events for.
func (d Diff) Changed() []string {
	out := make([]string, 0, len(d.Added)+len(d.Updated))
	out = append(out, d.Added...)
	out = append(out, d.Updated...)
	return out
}
