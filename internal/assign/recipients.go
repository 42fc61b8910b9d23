package assign

// AssignedRecipients is the set of users that must receive a "newly assigned"
// notification for this transition: the added assignees, minus the actor who
// performed the mutation. Actors never get notified about their own edits.
func AssignedRecipients(d Delta, actor int64) []int64 {
	return without(d.ToAdd, actor)
}

// UpdateRecipients is the set of users that must receive a generic "task
// updated" notification: the final assignees minus the newly added ones (those
// get the assigned notification instead, never both) and minus the actor.
func UpdateRecipients(d Delta, actor int64) []int64 {
	added := toSet(d.ToAdd)
	out := make([]int64, 0, len(d.Final))
	for _, id := range d.Final {
		if id == actor {
			continue
		}
		if _, ok := added[id]; ok {
			continue
		}
		out = append(out, id)
	}
	return out
}

// Dedupe collapses duplicate ids, excluding the actor, preserving no
// particular order guarantee beyond determinism (sorted input stays sorted).
// Used by workflows that assemble recipient sets from multiple sources, e.g.
// task creator plus assignees for comment notifications.
func Dedupe(ids []int64, exclude int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func without(ids []int64, exclude int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}
