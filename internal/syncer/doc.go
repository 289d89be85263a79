// Package syncer drives one synchronization run: a single push, then pulls
// repeated until every target locale meets the stop threshold, polling is
// disabled, or the poll budget is spent.
//
// State machine:
//
//	Pushing → Pulling → Evaluating → {Sleeping → Pulling | Done | Failed}
//
// Push is never repeated within a run; push already dispatched all work.
// Completion is always read back from local storage, so counters reported by
// the server never decide convergence.
package syncer
