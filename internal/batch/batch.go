// Package batch partitions pending rows into per-locale buckets of bounded
// chunks. A chunk is the unit of one network call and one failure boundary.
package batch

import (
	"sort"

	"github.com/survos/lingua/internal/model"
)

// DefaultBatchSize is used when a caller passes a non-positive size.
const DefaultBatchSize = 200

// Mode selects the grouping key.
type Mode int

const (
	// ModeByLocale groups by (source locale, target locale).
	ModeByLocale Mode = iota
	// ModeByTarget groups by target locale only; SourceLocale is "".
	ModeByTarget
	// ModeNone collapses all rows into the single ("", "") bucket.
	ModeNone
)

// Bucket holds the chunks for one grouping key.
type Bucket struct {
	SourceLocale string
	TargetLocale string
	Chunks       [][]model.PendingRow
}

// Rows returns the number of rows across all chunks.
func (b Bucket) Rows() int {
	n := 0
	for _, c := range b.Chunks {
		n += len(c)
	}
	return n
}

type groupKey struct {
	source string
	target string
}

// Group partitions rows into buckets ordered by target then source locale.
// Within a bucket rows keep their input order. Empty input yields nil.
func Group(rows []model.PendingRow, size int, mode Mode) []Bucket {
	if len(rows) == 0 {
		return nil
	}

	grouped := make(map[groupKey][]model.PendingRow)
	var order []groupKey
	for _, r := range rows {
		k := keyFor(r, mode)
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], r)
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].target != order[j].target {
			return order[i].target < order[j].target
		}
		return order[i].source < order[j].source
	})

	buckets := make([]Bucket, 0, len(order))
	for _, k := range order {
		buckets = append(buckets, Bucket{
			SourceLocale: k.source,
			TargetLocale: k.target,
			Chunks:       Chunk(grouped[k], size),
		})
	}
	return buckets
}

func keyFor(r model.PendingRow, mode Mode) groupKey {
	switch mode {
	case ModeNone:
		return groupKey{}
	case ModeByTarget:
		return groupKey{target: r.TargetLocale}
	default:
		return groupKey{source: r.SourceLocale, target: r.TargetLocale}
	}
}

// Chunk splits items into consecutive slices of at most size elements.
// A non-positive size falls back to DefaultBatchSize.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultBatchSize
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end:end])
	}
	return chunks
}
