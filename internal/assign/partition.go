// Package assign maps tracked producers to monitor worker slots.
//
// [Partition] is the steady-state assignment, computed once per session pool
// generation. [Router] hands newly tracked producers to the on-demand lane
// without touching that partition.
package assign

import (
	"slices"
)

// Partition distributes producers over exactly slots buckets. Producers are
// deduplicated and sorted lexicographically, then dealt round-robin by index,
// so the same input always yields the same buckets. Buckets may be empty.
// A slots value below 1 is treated as 1.
func Partition(producers []string, slots int) [][]string {
	if slots < 1 {
		slots = 1
	}

	ordered := slices.Clone(producers)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	buckets := make([][]string, slots)
	for i := range buckets {
		buckets[i] = []string{}
	}
	for i, p := range ordered {
		buckets[i%slots] = append(buckets[i%slots], p)
	}
	return buckets
}

// Owner returns the bucket index that holds producer, or -1.
func Owner(buckets [][]string, producer string) int {
	for i, bucket := range buckets {
		if slices.Contains(bucket, producer) {
			return i
		}
	}
	return -1
}
