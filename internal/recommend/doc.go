// Package recommend fans similar-track lookups out across seed tracks and merges the results.
//
// # Fan-out
//
// [Aggregator.Run] schedules one task per seed. Tasks run on a pool of
// min(len(seeds), MaxWorkers) goroutines; with the default cap of 50 every seed
// of a typical request gets its own goroutine. Each task calls [Lookup.SimilarTracks]
// under its own timeout and resolves to a [Result] carrying either candidates or an error.
//
// # Merge
//
// Results are folded by the calling goroutine in completion order, not seed order.
// Within one seed the upstream order is kept. With dedup enabled the first folded
// copy of a track wins and later copies are dropped, so which seed a shared track is
// attributed to depends on which lookup finished first. The SeenSet is only touched
// by the fold and needs no lock.
//
// # Failures
//
// A failed, timed out or panicking lookup contributes nothing; it is logged, counted
// and listed in [Report.FailedSeeds]. Only an empty or malformed seed list fails the
// call, with [shared.ErrInvalidRequest], before any lookup is made.
package recommend
