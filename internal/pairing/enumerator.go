package pairing

import (
	"sort"

	"github.com/eargollo/dupview/internal/catalog"
)

// Pair is one candidate pair. Index is its 0-based position in the
// enumeration; Left precedes Right in scan order.
type Pair struct {
	Index    int
	GroupKey string
	Left     catalog.FileRecord
	Right    catalog.FileRecord
}

// Enumerator walks all intra-group pairs without materialising them. For each
// group, in group order, it yields (m[i], m[j]) for every i < j.
type Enumerator struct {
	groups  []Group
	offsets []int // offsets[g] is the index of the first pair of groups[g]
	total   int
}

// NewEnumerator prepares an enumerator over groups. Groups with fewer than two
// members contribute nothing.
func NewEnumerator(groups []Group) *Enumerator {
	e := &Enumerator{}
	for _, g := range groups {
		n := len(g.Members)
		if n < 2 {
			continue
		}
		e.groups = append(e.groups, g)
		e.offsets = append(e.offsets, e.total)
		e.total += n * (n - 1) / 2
	}
	return e
}

// Total is the number of pairs in the enumeration.
func (e *Enumerator) Total() int { return e.total }

// Groups returns the groups that produce pairs.
func (e *Enumerator) Groups() []Group { return e.groups }

// At returns the pair at position pos.
func (e *Enumerator) At(pos int) (Pair, bool) {
	var p Pair
	found := false
	e.Walk(pos, func(pair Pair) bool {
		p, found = pair, true
		return false
	})
	return p, found
}

// Walk calls fn for each pair from position from onwards, stopping early when
// fn returns false.
func (e *Enumerator) Walk(from int, fn func(Pair) bool) {
	if from < 0 || from >= e.total {
		return
	}

	// Last group whose first pair is at or before from.
	g := sort.Search(len(e.offsets), func(k int) bool { return e.offsets[k] > from }) - 1
	i, j := unrank(from-e.offsets[g], len(e.groups[g].Members))

	for pos := from; pos < e.total; pos++ {
		members := e.groups[g].Members
		if !fn(Pair{Index: pos, GroupKey: e.groups[g].Key, Left: members[i], Right: members[j]}) {
			return
		}
		j++
		if j == len(members) {
			i++
			j = i + 1
		}
		if i >= len(members)-1 {
			g++
			i, j = 0, 1
		}
	}
}

// unrank maps k, the index of a pair within a group of n members, back to
// its member indexes (i, j) with i < j.
func unrank(k, n int) (int, int) {
	i := 0
	for row := n - 1; k >= row; row-- {
		k -= row
		i++
	}
	return i, i + 1 + k
}
