// Package watcher runs the periodic check cycle.
//
// Each cycle moves through fetching, extracting, diffing, notifying and
// persisting before sleeping until the next tick. A failure at any step is
// logged, recorded in the status and ends the cycle early; the previous
// snapshot stays authoritative. The loop itself only stops when its context
// is cancelled.
//
// The snapshot is saved only after notifications were attempted, so a crash
// in between can repeat a notification on restart but never loses one.
package watcher
