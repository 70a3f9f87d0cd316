// Package clock provides the scheduling seam for timer-driven blocks.
// In synchronous test runs blocks schedule against a Virtual clock whose
// time only moves when the test calls JumpAhead; in asynchronous runs
// they schedule against the wall clock through System.
package clock
