package featrack

import (
	"github.com/pkg/errors"
)

// FusionRequest asks for all observations of Retiring to be attributed to Continuing
type FusionRequest struct {
	Continuing int64
	Retiring   int64
}

// MergeResult is the outcome of MergeTracks
type MergeResult struct {
	// Tracks is the rewritten set: retired tracks dropped, survivors extended
	Tracks *TrackSet
	// Replacements maps every retired track ID to its surviving track ID. Untouched tracks are absent
	Replacements map[int64]int64
	// Merged is number of requests which actually fused two distinct chains
	Merged int
}

// disjointSet is index-based union-find over tracks named by fusion requests.
// leader[root] is the node whose identity survives for the root's component.
type disjointSet struct {
	parent  []int
	leader  []int
	into    []int
	members [][]int
}

func (ds *disjointSet) add() int {
	idx := len(ds.parent)
	ds.parent = append(ds.parent, idx)
	ds.leader = append(ds.leader, idx)
	ds.into = append(ds.into, -1)
	ds.members = append(ds.members, []int{idx})
	return idx
}

func (ds *disjointSet) find(i int) int {
	root := i
	for ds.parent[root] != root {
		root = ds.parent[root]
	}
	// Path compression
	for ds.parent[i] != root {
		next := ds.parent[i]
		ds.parent[i] = root
		i = next
	}
	return root
}

// union retires component of r into component of c. Both must be roots
func (ds *disjointSet) union(rootC, rootR, c int) {
	ds.parent[rootR] = rootC
	ds.into[ds.leader[rootR]] = c
	ds.members[rootC] = append(ds.members[rootC], ds.members[rootR]...)
	ds.members[rootR] = nil
}

// reelect breaks a cycle closed by node c: the lowest ID on the chain from c to the current leader survives
func (ds *disjointSet) reelect(root, c int, ids []int64) {
	best := c
	cur := c
	for steps := 0; cur != ds.leader[root] && ds.into[cur] >= 0 && steps < len(ds.parent); steps++ {
		cur = ds.into[cur]
		if ids[cur] < ids[best] {
			best = cur
		}
	}
	if best == ds.leader[root] {
		return
	}
	ds.into[ds.leader[root]] = best
	ds.into[best] = -1
	ds.leader[root] = best
}

// MergeTracks fuses tracks according to requests and returns rewritten set.
//
// Requests are resolved transitively: if Retiring has already been absorbed elsewhere,
// its current survivor is fused instead. Self merges and repeated requests are no-ops.
// A request closing a cycle makes the lowest ID of that cycle the survivor.
// States of retired tracks are spliced into the survivor in frame order; a frame the survivor
// already has is never overwritten. Requests naming tracks missing from the set are ignored.
// Given set is not modified.
func MergeTracks(set *TrackSet, requests []FusionRequest) (MergeResult, error) {
	if set == nil {
		return MergeResult{}, errors.New("can't merge tracks of nil track set")
	}
	ds := disjointSet{}
	ids := make([]int64, 0)
	nodes := make(map[int64]int)
	node := func(id int64) int {
		if idx, ok := nodes[id]; ok {
			return idx
		}
		idx := ds.add()
		nodes[id] = idx
		ids = append(ids, id)
		return idx
	}

	merged := 0
	for _, request := range requests {
		if request.Continuing == request.Retiring {
			continue
		}
		if !set.Contains(request.Continuing) || !set.Contains(request.Retiring) {
			continue
		}
		c := node(request.Continuing)
		r := node(request.Retiring)
		rootC := ds.find(c)
		rootR := ds.find(r)
		if rootC == rootR {
			if ds.leader[rootC] == r {
				ds.reelect(rootC, c, ids)
			}
			continue
		}
		ds.union(rootC, rootR, c)
		merged++
	}

	replacements := make(map[int64]int64)
	survivors := make(map[int64]*Track)
	for idx := range ds.parent {
		if ds.find(idx) != idx || len(ds.members[idx]) < 2 {
			continue
		}
		leader := ds.leader[idx]
		stored, _ := set.lookup(ids[leader])
		survivor := stored.Clone()
		for _, member := range ds.members[idx] {
			if member == leader {
				continue
			}
			retired, _ := set.lookup(ids[member])
			for _, state := range retired.states {
				survivor.Insert(state)
			}
			replacements[ids[member]] = ids[leader]
		}
		survivors[ids[leader]] = survivor
	}

	tracks := make([]*Track, 0, set.Size()-len(replacements))
	for _, track := range set.tracks {
		if _, retired := replacements[track.ID()]; retired {
			continue
		}
		if survivor, ok := survivors[track.ID()]; ok {
			tracks = append(tracks, survivor)
			continue
		}
		tracks = append(tracks, track)
	}
	return MergeResult{
		Tracks:       newTrackSetUnchecked(tracks),
		Replacements: replacements,
		Merged:       merged,
	}, nil
}
