package timer

import "slices"

// dayMask is the live working copy of a configured day filter for the
// current period (a calendar month or an ISO week).
//
// The mask only ever shrinks from the front while a period lasts; it is
// rebuilt to the full filter when the period key changes. An entry is
// consumed either by matching today exactly or by falling strictly in
// the past, in which case carry-forward (if enabled) makes today
// eligible in its place.
type dayMask struct {
	days  []int // configured filter, sorted ascending; empty = no restriction
	carry bool

	key  int // current period key; 0 = no period seen yet
	mask []int
}

func newDayMask(days []int, carry bool) dayMask {
	return dayMask{days: days, carry: carry}
}

// eligible evaluates one day-number against the mask and consumes the
// entries that day leaves behind. It must be called at most once per
// calendar date.
func (m *dayMask) eligible(key, day int) bool {
	if len(m.days) == 0 {
		return true
	}

	carried := false
	if key != m.key {
		m.key = key
		// Unconsumed entries from the old period mean configured days
		// were never reached by any sample.
		carried = m.carry && len(m.mask) > 0
		m.mask = slices.Clone(m.days)
	}

	// Leftmost position of day: everything before it is in the past.
	dc, match := slices.BinarySearch(m.mask, day)
	carried = carried || (m.carry && dc > 0)
	if match {
		dc++
	}
	m.mask = m.mask[dc:]

	return carried || match
}

// remaining exposes the live mask for inspection (tests, snapshots).
func (m *dayMask) remaining() []int {
	return slices.Clone(m.mask)
}
