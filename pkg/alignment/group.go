package alignment

import (
	"github.com/ChrisMcGann/spotkey/pkg/core"
)

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}

// assignGroups gives every connected component of the link graph a group id.
// Groups are numbered in order of their lowest GlobalID. spots must be
// ordered by GlobalID. It returns the number of groups.
func assignGroups(spots []*core.AlignmentSpot) int {
	uf := newUnionFind(len(spots))
	for _, s := range spots {
		for _, l := range s.Links {
			if l.Partner >= 0 && l.Partner < len(spots) {
				uf.union(s.GlobalID, l.Partner)
			}
		}
	}

	ids := make(map[int]int)
	for _, s := range spots {
		root := uf.find(s.GlobalID)
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}
		s.GroupID = id
	}
	return len(ids)
}
