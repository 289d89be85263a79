// Package store provides the local storage of source strings and
// translation stubs, keyed by content keys instead of foreign keys.
//
// Tables:
//   - sources: immutable originals, code = keys.SourceKey(text, source_locale)
//   - translations: one stub per (source_key, target_locale, engine); text NULL
//     or ” means pending
//
// # Query shapes
//
//   - Pending select: rows WHERE text IS NULL OR text = ”, optionally filtered
//     by engine and target locales, ordered deterministically.
//   - Bulk update: UPDATE ... SET text, status WHERE source_key AND
//     target_locale, never loading rows first. Each call is one transaction.
//   - Completion: COUNT(*) and SUM(translated) grouped by target_locale.
//
// # Invariants
//
//   - A stub is only overwritten while its text is empty unless forced.
//   - An update never clears text, so completion is monotonic.
//   - Writes use ON CONFLICT DO NOTHING and are safe to repeat.
//
// # Drivers
//
//   - sqlite3 (github.com/mattn/go-sqlite3, default): WAL, synchronous=NORMAL,
//     busy_timeout=5000, single connection
//   - sqlite (modernc.org/sqlite): same pragmas, no cgo
//   - postgres (github.com/lib/pq): placeholders rebound to $n
//
// Filtered reads are built with github.com/Masterminds/squirrel using the
// dialect's placeholder format; fixed statements are written by hand.
package store
