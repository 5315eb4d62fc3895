// Package pipe streams resources out of a data pool through a bounded,
// fault-tolerant concurrent pipeline.
//
// A [Pipe] pairs a [pool.Source] with a [Transform] that turns a
// materialized resource into its domain payload. [Pipe.BatchRetrieve] fans
// the requested IDs out across a worker pool and returns a [Session]
// immediately; the caller pulls completed envelopes from the session at its
// own pace.
//
// # Semantics
//
//   - No work starts until the first pull: the coordinator waits on a start
//     gate, so an unconsumed session costs nothing.
//   - Results arrive in completion order. Every envelope carries the
//     zero-based submission index; consumers needing submission order must
//     resequence by it.
//   - The hand-off channel is bounded at three envelopes per worker. A slow
//     consumer applies backpressure to workers rather than growing memory.
//   - One item's failure never stops the pipeline: the error is captured in
//     an [Error] envelope and delivered as data.
//   - Shutdown is cooperative. Workers stop picking up new items; in-flight
//     items finish naturally; buffered envelopes stay consumable until the
//     channel drains.
package pipe
