// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package patch

// Result is the terminal state of one entry in one run.
type Result string

const (
	// Applied means the destination matched its base and was replaced
	// with the patch content.
	Applied Result = "applied"

	// Unchanged means the destination already held the patch content,
	// so there was nothing to do.
	Unchanged Result = "unchanged"

	// Mismatch means the destination differed from its base; it was
	// left untouched and a repair issue was raised.
	Mismatch Result = "mismatch"

	// Missing means the destination file does not exist. This is
	// benign: there is nothing to patch yet.
	Missing Result = "missing"

	// Failed means a source could not be fetched or the destination
	// could not be written. The run continues with the next entry.
	Failed Result = "failed"
)

// EntryResult pairs an entry with its terminal state for one run.
type EntryResult struct {
	Entry  Entry
	Result Result

	// Err holds the detail for Mismatch and Failed results.
	Err error
}

// Results is the per-entry outcome of a run, in declaration order.
type Results []EntryResult

// Applied reports whether any entry was applied this run. Failed
// entries never count towards this, so a broken source can never cause
// a restart on its own.
func (r Results) Applied() bool {
	for _, res := range r {
		if res.Result == Applied {
			return true
		}
	}
	return false
}

// Counts tallies results by terminal state.
func (r Results) Counts() map[Result]int {
	counts := make(map[Result]int)
	for _, res := range r {
		counts[res.Result]++
	}
	return counts
}
