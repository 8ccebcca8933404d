package threads

import "sort"

// ActiveThread is a thread of the current snapshot with the replies it
// gained during the last cycle.
type ActiveThread struct {
	Thread
	NewReplies int `json:"new_replies"`
}

// ActiveThreads ranks the threads of current by replies gained in d, then by
// total replies, then by thread number. n <= 0 returns every thread.
func ActiveThreads(current Snapshot, d Delta, n int) []ActiveThread {
	ranked := make([]ActiveThread, 0, len(current))
	for id, t := range current {
		ranked = append(ranked, ActiveThread{Thread: t, NewReplies: d.PerThreadNewReplies[id]})
	}

	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.NewReplies != b.NewReplies {
			return a.NewReplies > b.NewReplies
		}
		if a.Replies != b.Replies {
			return a.Replies > b.Replies
		}
		return a.No < b.No
	})

	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
