package utils

import (
	"math/rand/v2"
	"slices"
)

// UniqueIDs returns ids with duplicates removed, keeping first occurrences in order.
func UniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	result := make([]int64, 0, len(ids))

	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}

		seen[id] = struct{}{}
		result = append(result, id)
	}

	return result
}

// SampleIDs returns up to n ids picked in random order. The input is not modified.
func SampleIDs(rng *rand.Rand, ids []int64, n int) []int64 {
	sample := slices.Clone(ids)
	rng.Shuffle(len(sample), func(i, j int) {
		sample[i], sample[j] = sample[j], sample[i]
	})

	if len(sample) > n {
		sample = sample[:n]
	}

	return sample
}

// ExcludeIDs returns the ids not present in exclude, preserving order.
func ExcludeIDs(ids []int64, exclude []int64) []int64 {
	if len(exclude) == 0 {
		return ids
	}

	skip := make(map[int64]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}

	result := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			result = append(result, id)
		}
	}

	return result
}
