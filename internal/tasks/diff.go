package tasks

import (
	"github.com/desertthunder/crmigrate/internal/models"
)

// DiffResult partitions a snapshot's items against the target's current
// state. Missing items are candidates for writing; Present items are never
// re-submitted, so target-side mutable fields stay untouched.
type DiffResult[T models.Item] struct {
	Missing []T
	Present []T

	// DuplicateKeys records identity keys the target returned more than
	// once. The first occurrence is treated as canonical; callers should
	// log these as a consistency warning.
	DuplicateKeys []string

	TargetCount int
}

// Total returns the number of source items the diff accounted for.
func (d *DiffResult[T]) Total() int { return len(d.Missing) + len(d.Present) }

// Diff classifies each source item as present or missing on the target by
// identity key. Pure: no I/O, deterministic, linear in |source| + |target|,
// and invariant under reordering of target.
//
// Source items that repeat an identity key are collapsed to their first
// occurrence so the write path never races against itself on one key.
func Diff[T models.Item](source *models.Snapshot[T], target []T) *DiffResult[T] {
	result := &DiffResult[T]{TargetCount: len(target)}

	onTarget := make(map[string]struct{}, len(target))
	for _, item := range target {
		key := item.Key()
		if _, dup := onTarget[key]; dup {
			result.DuplicateKeys = append(result.DuplicateKeys, key)
			continue
		}
		onTarget[key] = struct{}{}
	}

	seen := make(map[string]struct{}, len(source.Items))
	for _, item := range source.Items {
		key := item.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if _, ok := onTarget[key]; ok {
			result.Present = append(result.Present, item)
		} else {
			result.Missing = append(result.Missing, item)
		}
	}
	return result
}
