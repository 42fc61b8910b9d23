// Package assign computes the minimal state transition between a task's
// current and desired assignee sets, and derives the recipient sets for the
// notifications each transition triggers.
package assign

import "slices"

// Delta is the result of diffing two assignee sets. Applying ToRemove then
// ToAdd to the current set yields exactly Final.
type Delta struct {
	ToAdd    []int64
	ToRemove []int64
	Final    []int64
}

// Diff computes the minimal add/remove sets that transition current into
// desired. Duplicates in either input collapse to a single membership; order
// of the inputs is irrelevant. The outputs are sorted for determinism. Empty
// inputs are valid and yield empty results.
func Diff(current, desired []int64) Delta {
	currentSet := toSet(current)
	finalSet := toSet(desired)

	d := Delta{
		ToAdd:    make([]int64, 0),
		ToRemove: make([]int64, 0),
		Final:    make([]int64, 0, len(finalSet)),
	}
	for id := range finalSet {
		d.Final = append(d.Final, id)
		if _, ok := currentSet[id]; !ok {
			d.ToAdd = append(d.ToAdd, id)
		}
	}
	for id := range currentSet {
		if _, ok := finalSet[id]; !ok {
			d.ToRemove = append(d.ToRemove, id)
		}
	}

	slices.Sort(d.ToAdd)
	slices.Sort(d.ToRemove)
	slices.Sort(d.Final)
	return d
}

func toSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
