// Package timer implements calendar-aware recurring triggers evaluated
// against a stream of sampled timestamps.
//
// A Timer is pure state-machine logic: the driving loop feeds it
// non-decreasing timestamps via Check, and the timer decides whether
// its target has been met "now". Day changes, session rollovers and
// repeat advancement are all inferred from the samples themselves; the
// timer is never told in advance when a day or session ends.
//
// Contract:
//   - One Timer instance is owned by one sampling loop; no locking.
//   - Check timestamps must be non-decreasing per instance.
//   - Session boundaries come from the injected calendar.Source; its
//     lookup errors surface to the caller unchanged.
package timer
