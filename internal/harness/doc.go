// Package harness runs end-to-end sync scenarios against an in-memory store
// and an embedded sandbox server.
//
// Scenarios exercise the real push, pull and sync components over the
// in-process transport, then check outcome counters and final local state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	server:
//	  delay: 1
//	steps:
//	  - register:
//	      source: en
//	      targets: [es, fr]
//	      texts: ["Save", "Cancel"]
//	    expect: { sources: 2, stubs: 4 }
//	  - push:
//	      transport: async
//	    expect: { accepted: 2, queued: 4 }
//	  - sync:
//	      poll: 1
//	      max_polls: 5
//	    expect: { converged: true, attempts: 2 }
//	assertions:
//	  - type: completion
//	    locale: es
//	    expect: { pct: 100, missing: 0 }
//	  - type: stub
//	    text: Save
//	    source_locale: en
//	    target: es
//	    expect: { status: translated, text: "[es] Save" }
//
// Each step carries exactly one operation. Its expect map is a subset match
// against the step's outcome counters; an "error" entry matches when the
// step's error message contains the given text.
//
// # Assertion Types
//
//   - completion: per-locale completion (pct, translated, total, missing)
//   - stub: one translation row (status, text, engine)
//   - key: the content key derived for text in source_locale
//   - sleeps: number of poll sleeps the run requested
//   - server_pending: number of queued jobs the sandbox has not completed
//
// # Deterministic Testing
//
// Every scenario runs with a fresh in-memory SQLite database, a fake sleeper
// and fixed run IDs ("<run_id>-1", "<run_id>-2", ...), so traces are identical
// across runs and can be compared against golden files.
package harness
