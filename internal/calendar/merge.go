package calendar

import (
	"sort"
	"time"
)

// Interval is a half-open span of open trading time.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Merged computes the union of the markets' open intervals between from
// and to (outer join of their schedules, overlaps coalesced).
//
// The merged view is informational only: open/closed decisions are
// always answered by a single market's IsOpen, never by the merge.
func Merged(from, to time.Time, markets ...*Market) []Interval {
	if !to.After(from) {
		return nil
	}

	var spans []Interval
	for _, m := range markets {
		if m == nil {
			continue
		}
		d := DateOf(from.In(m.loc))
		for i := 0; i < m.lookahead; i++ {
			open := m.sessionOpen().On(d, m.loc)
			if open.After(to) {
				break
			}
			if m.IsTradingDay(d) {
				end := m.closeOn(d).On(d, m.loc)
				if end.After(from) {
					spans = append(spans, Interval{Start: open, End: end})
				}
			}
			d = d.Next()
		}
	}
	if len(spans) == 0 {
		return nil
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i].Start.Before(spans[j].Start) })

	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.Start.After(last.End) {
			merged = append(merged, s)
			continue
		}
		if s.End.After(last.End) {
			last.End = s.End
		}
	}
	return merged
}
