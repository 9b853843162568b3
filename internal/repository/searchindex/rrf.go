package searchindex

import (
	"sort"

	"github.com/kailas-cloud/indexsync/internal/domain/search/hit"
)

// rrfK is the Reciprocal Rank Fusion constant (standard value from Cormack et al. 2009).
const rrfK = 60

// fuseRRF merges ranked hit lists via Reciprocal Rank Fusion.
// score(d) = sum of 1/(k + rank_i(d)) for each list where d appears.
// Ties keep first-seen order.
func fuseRRF(lists [][]hit.Hit) []hit.Hit {
	type scored struct {
		hit   hit.Hit
		score float64
		seq   int
	}

	merged := make(map[[3]string]*scored)
	for _, list := range lists {
		for rank, h := range list {
			s := 1.0 / float64(rrfK+rank+1)
			key := [3]string{h.Index, h.Type, h.ID}
			if existing, ok := merged[key]; ok {
				existing.score += s
				continue
			}
			merged[key] = &scored{hit: h, score: s, seq: len(merged)}
		}
	}

	all := make([]*scored, 0, len(merged))
	for _, s := range merged {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].seq < all[j].seq
	})

	out := make([]hit.Hit, len(all))
	for i, s := range all {
		out[i] = s.hit
		out[i].Score = s.score
	}
	return out
}
