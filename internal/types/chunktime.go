package types

import "time"

// ChunkTimeFor floors ts (nanoseconds since epoch) to the start of its
// gen1Duration-wide bucket. Every Row's ChunkTime and the snapshot horizon
// that eventually drains it are both computed through this one function, so
// a row and the horizon it's measured against always agree on bucket
// boundaries (spec.md §4.1, §4.3).
func ChunkTimeFor(ts int64, gen1Duration time.Duration) int64 {
	d := int64(gen1Duration)
	if d <= 0 {
		return 0
	}
	bucket := ts / d
	if ts < 0 && ts%d != 0 {
		bucket--
	}
	return bucket * d
}
