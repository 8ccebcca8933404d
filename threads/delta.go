package threads

import "sort"

// Delta is the difference between two consecutive snapshots.
type Delta struct {
	NewThreadIDs        []int64
	PerThreadNewReplies map[int64]int
	TotalNewReplies     int
	// Clamped lists threads whose reply count went down (deleted and reused
	// numbers, upstream resets). Their delta is counted as zero.
	Clamped []int64
}

func (d Delta) NewThreads() int {
	return len(d.NewThreadIDs)
}

// NewPosts counts new threads plus new replies.
func (d Delta) NewPosts() int {
	return d.NewThreads() + d.TotalNewReplies
}

// ComputeDelta compares prev and current. A thread absent from prev is new
// and all of its replies count as new; threads only present in prev are
// ignored. Output order is ascending by thread number.
func ComputeDelta(prev, current Snapshot) Delta {
	ids := make([]int64, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	d := Delta{
		NewThreadIDs:        []int64{},
		PerThreadNewReplies: make(map[int64]int, len(current)),
	}

	for _, id := range ids {
		cur := current[id]
		old, seen := prev[id]

		var n int
		if !seen {
			d.NewThreadIDs = append(d.NewThreadIDs, id)
			n = cur.Replies
		} else {
			n = cur.Replies - old.Replies
		}

		if n < 0 {
			d.Clamped = append(d.Clamped, id)
			n = 0
		}

		d.PerThreadNewReplies[id] = n
		d.TotalNewReplies += n
	}

	return d
}
