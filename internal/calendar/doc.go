// Package calendar answers "when does the session end" and "is the
// market open" for the timer core.
//
// Two sources are provided:
//   - Timezone: a plain IANA timezone with no session schedule; the
//     session is the whole calendar day.
//   - Market: a weekly session table with holidays, early closes and
//     optional pre/post trading bands.
//
// Contract:
//   - Sources are immutable after construction and safe for concurrent use.
//   - Localize interprets a date + time-of-day as wall-clock components
//     in the source's location (DST shifts follow the wall clock).
package calendar
