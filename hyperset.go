/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"sort"
	"strconv"
	"strings"
)

// HyperSet stores the multi-edge phasing evidence of one splice graph. It
// keeps two encodings: a node-list multiset filled while reads are being
// collected, and an edge-list form valid for one specific host graph. Each
// edge-list row is a sequence of edge ids with -1 as a gap sentinel; e2s is
// the reverse index from edge id to the rows using it.
type HyperSet struct {
	nodes  map[string]*nodeList
	Edges  [][]int
	Ecnts  []int
	E2s    map[int]map[int]struct{}
	rowsTF [][]int // rows awaiting Transform onto a new host graph
}

type nodeList struct {
	v []int
	c int
}

// NewHyperSet returns an empty hyper-set
func NewHyperSet() *HyperSet {
	hs := &HyperSet{}
	hs.Clear()
	return hs
}

// Clear drops all rows and indexes
func (hs *HyperSet) Clear() {
	hs.nodes = make(map[string]*nodeList)
	hs.Edges = nil
	hs.Ecnts = nil
	hs.E2s = make(map[int]map[int]struct{})
	hs.rowsTF = nil
}

func intsKey(v []int) string {
	var b strings.Builder
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(x))
	}
	return b.String()
}

// AddNodeList merges one vertex-index sequence with count c. Indices are
// external (0-based pexon ids); the +1 shift maps them onto graph vertices.
func (hs *HyperSet) AddNodeList(s []int, c int) {
	v := make([]int, len(s))
	copy(v, s)
	sort.Ints(v)
	for i := range v {
		v[i]++
	}
	k := intsKey(v)
	if nl, ok := hs.nodes[k]; ok {
		nl.c += c
	} else {
		hs.nodes[k] = &nodeList{v: v, c: c}
	}
}

// AddEdgeList installs pre-built edge-index rows to be re-homed with
// Transform; only BuildIndex is compatible with this entry point.
func (hs *HyperSet) AddEdgeList(rows [][]int, cnts []int) {
	hs.nodes = make(map[string]*nodeList)
	hs.Edges = nil
	hs.E2s = make(map[int]map[int]struct{})
	hs.rowsTF = nil
	hs.Ecnts = nil
	for i, r := range rows {
		row := make([]int, len(r))
		copy(row, r)
		hs.rowsTF = append(hs.rowsTF, row)
		hs.Ecnts = append(hs.Ecnts, cnts[i])
	}
}

// CloneNodes copies the node-list form only, for an independent re-build
// on another copy of the host graph
func (hs *HyperSet) CloneNodes() *HyperSet {
	c := NewHyperSet()
	for k, nl := range hs.nodes {
		v := make([]int, len(nl.v))
		copy(v, nl.v)
		c.nodes[k] = &nodeList{v: v, c: nl.c}
	}
	return c
}

// Prepared reports whether the edge-list form is already in place
func (hs *HyperSet) Prepared() bool {
	return hs.Edges != nil
}

// Build converts node lists into edge rows on gr and indexes them
func (hs *HyperSet) Build(gr *SpliceGraph, minRouterCount int) {
	hs.BuildEdges(gr, minRouterCount)
	hs.BuildIndex()
}

// BuildEdges looks up each adjacent vertex pair as a graph edge and emits
// the edge-id rows; pairs without an edge become gaps and drop the row.
func (hs *HyperSet) BuildEdges(gr *SpliceGraph, minRouterCount int) {
	hs.Edges = nil
	hs.Ecnts = nil

	keys := make([]string, 0, len(hs.nodes))
	for k := range hs.nodes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		nl := hs.nodes[k]
		if nl.c < minRouterCount {
			continue
		}
		vv := nl.v
		ve := make([]int, 0, len(vv)-1)
		b := true
		for i := 0; i+1 < len(vv); i++ {
			e, ok := gr.Edge(vv[i], vv[i+1])
			if !ok {
				b = false
				ve = append(ve, -1)
			} else {
				ve = append(ve, e.ID)
			}
		}
		if b && len(ve) >= 2 {
			hs.Edges = append(hs.Edges, ve)
			hs.Ecnts = append(hs.Ecnts, nl.c)
		}
	}
}

// BuildIndex rebuilds e2s from the edge rows
func (hs *HyperSet) BuildIndex() {
	hs.E2s = make(map[int]map[int]struct{})
	for i, v := range hs.Edges {
		for _, e := range v {
			if e == -1 {
				continue
			}
			hs.indexAdd(e, i)
		}
	}
}

func (hs *HyperSet) indexAdd(e, row int) {
	s, ok := hs.E2s[e]
	if !ok {
		s = make(map[int]struct{})
		hs.E2s[e] = s
	}
	s[row] = struct{}{}
}

// UpdateIndex drops index entries whose edge occurrence has become isolated
// (no non-gap neighbor on either side)
func (hs *HyperSet) UpdateIndex() {
	var fb1 []int
	for e, ss := range hs.E2s {
		var fb2 []int
		for row := range ss {
			v := hs.Edges[row]
			for i := 0; i < len(v); i++ {
				if v[i] != e {
					continue
				}
				b1 := i == 0 || v[i-1] == -1
				b2 := i == len(v)-1 || v[i+1] == -1
				if b1 && b2 {
					fb2 = append(fb2, row)
				}
				break
			}
		}
		for _, row := range fb2 {
			delete(ss, row)
		}
		if len(ss) == 0 {
			fb1 = append(fb1, e)
		}
	}
	for _, e := range fb1 {
		delete(hs.E2s, e)
	}
}

// Transform re-homes the pending rows onto a new host graph through the
// old-id to new-id bijection, dropping rows that reference removed edges.
func (hs *HyperSet) Transform(pgr *SpliceGraph, x2y map[int]int) {
	if len(hs.nodes) != 0 || hs.Edges != nil {
		panic("hyper-set transform requires rows staged with AddEdgeList")
	}
	var rows [][]int
	var cnts []int
	for i, vv := range hs.rowsTF {
		ve := make([]int, 0, len(vv))
		keep := true
		for _, k := range vv {
			if k == -1 {
				ve = append(ve, -1)
				continue
			}
			ny, ok := x2y[k]
			if !ok {
				panic("edge missing from x2y bijection")
			}
			if pgr.EdgeByID(ny) == nil {
				keep = false
				break
			}
			ve = append(ve, ny)
		}
		if keep {
			rows = append(rows, ve)
			cnts = append(cnts, hs.Ecnts[i])
		}
	}
	hs.Edges = rows
	hs.Ecnts = cnts
	hs.rowsTF = nil
	hs.BuildIndex()
}

// GetIntersection returns the rows containing every edge of v
func (hs *HyperSet) GetIntersection(v []int) map[int]struct{} {
	ss := make(map[int]struct{})
	if len(v) == 0 {
		return ss
	}
	first, ok := hs.E2s[v[0]]
	if !ok {
		return ss
	}
	for row := range first {
		ss[row] = struct{}{}
	}
	for i := 1; i < len(v); i++ {
		s, ok := hs.E2s[v[i]]
		if !ok {
			return make(map[int]struct{})
		}
		for row := range ss {
			if _, ok := s[row]; !ok {
				delete(ss, row)
			}
		}
	}
	return ss
}

// GetSuccessors tallies the edges observed immediately after e
func (hs *HyperSet) GetSuccessors(e int) map[int]int {
	s := make(map[int]int)
	ss, ok := hs.E2s[e]
	if !ok {
		return s
	}
	for row := range ss {
		v := hs.Edges[row]
		c := hs.Ecnts[row]
		for i := 0; i < len(v); i++ {
			if v[i] != e || i >= len(v)-1 {
				continue
			}
			k := v[i+1]
			if k == -1 {
				continue
			}
			s[k] += c
		}
	}
	return s
}

// GetPredecessors tallies the edges observed immediately before e
func (hs *HyperSet) GetPredecessors(e int) map[int]int {
	s := make(map[int]int)
	ss, ok := hs.E2s[e]
	if !ok {
		return s
	}
	for row := range ss {
		v := hs.Edges[row]
		c := hs.Ecnts[row]
		for i := 0; i < len(v); i++ {
			if v[i] != e || i == 0 {
				continue
			}
			k := v[i-1]
			if k == -1 {
				continue
			}
			s[k] += c
		}
	}
	return s
}

// routePair is one observed (in-edge, out-edge) route through a vertex
type routePair struct {
	E1, E2 int
}

// GetRoutes tallies the routes through vertex x supported by the rows
func (hs *HyperSet) GetRoutes(x int, gr *SpliceGraph) map[routePair]int {
	mpi := make(map[routePair]int)
	for _, e := range gr.InEdges(x) {
		for k, c := range hs.GetSuccessors(e.ID) {
			mpi[routePair{E1: e.ID, E2: k}] += c
		}
	}
	return mpi
}

// Replace collapses every consecutive occurrence of v into the single
// edge e, updating the index
func (hs *HyperSet) Replace(v []int, e int) {
	if len(v) == 0 {
		return
	}
	s := hs.GetIntersection(v)

	var fb []int
	rows := make([]int, 0, len(s))
	for row := range s {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	for _, row := range rows {
		vv := hs.Edges[row]
		bv := consecutiveSubset(vv, v)
		if len(bv) == 0 {
			continue
		}
		b := bv[0]
		vv[b] = e
		vv = append(vv[:b+1], vv[b+len(v):]...)
		hs.Edges[row] = vv
		fb = append(fb, row)
		hs.indexAdd(e, row)
	}

	for _, u := range v {
		ss, ok := hs.E2s[u]
		if !ok {
			continue
		}
		for _, row := range fb {
			delete(ss, row)
		}
		if len(ss) == 0 {
			delete(hs.E2s, u)
		}
	}
}

// Remove replaces every occurrence of e by a gap
func (hs *HyperSet) Remove(e int) {
	ss, ok := hs.E2s[e]
	if !ok {
		return
	}
	for row := range ss {
		vv := hs.Edges[row]
		for i := range vv {
			if vv[i] == e {
				vv[i] = -1
			}
		}
	}
	delete(hs.E2s, e)
}

// RemoveList removes each listed edge
func (hs *HyperSet) RemoveList(v []int) {
	for _, e := range v {
		hs.Remove(e)
	}
}

// RemovePair severs every (x, y) adjacency by inserting a gap between them
func (hs *HyperSet) RemovePair(x, y int) {
	hs.InsertBetween(x, y, -1)
}

// InsertBetween inserts e after every (x, y) adjacency
func (hs *HyperSet) InsertBetween(x, y, e int) {
	ss, ok := hs.E2s[x]
	if !ok {
		return
	}
	rows := make([]int, 0, len(ss))
	for row := range ss {
		rows = append(rows, row)
	}
	sort.Ints(rows)
	for _, row := range rows {
		vv := hs.Edges[row]
		for i := 0; i < len(vv); i++ {
			if i == len(vv)-1 || vv[i] != x || vv[i+1] != y {
				continue
			}
			vv = append(vv, 0)
			copy(vv[i+2:], vv[i+1:])
			vv[i+1] = e
			i++ // skip the inserted slot
			if e != -1 {
				hs.indexAdd(e, row)
			}
		}
		hs.Edges[row] = vv
	}
}

// LeftExtend reports whether any occurrence of e has a non-gap left
// neighbor
func (hs *HyperSet) LeftExtend(e int) bool {
	ss, ok := hs.E2s[e]
	if !ok {
		return false
	}
	for row := range ss {
		vv := hs.Edges[row]
		for i := 1; i < len(vv); i++ {
			if vv[i] == e && vv[i-1] != -1 {
				return true
			}
		}
	}
	return false
}

// RightExtend reports whether any occurrence of e has a non-gap right
// neighbor
func (hs *HyperSet) RightExtend(e int) bool {
	ss, ok := hs.E2s[e]
	if !ok {
		return false
	}
	for row := range ss {
		vv := hs.Edges[row]
		for i := 0; i < len(vv)-1; i++ {
			if vv[i] == e && vv[i+1] != -1 {
				return true
			}
		}
	}
	return false
}

// LeftExtendAny reports LeftExtend over a list
func (hs *HyperSet) LeftExtendAny(s []int) bool {
	for _, e := range s {
		if hs.LeftExtend(e) {
			return true
		}
	}
	return false
}

// RightExtendAny reports RightExtend over a list
func (hs *HyperSet) RightExtendAny(s []int) bool {
	for _, e := range s {
		if hs.RightExtend(e) {
			return true
		}
	}
	return false
}

// LeftDominate is true iff every right-neighbor pair observed after a
// boundary occurrence of e is also observed after a non-boundary occurrence
func (hs *HyperSet) LeftDominate(e int) bool {
	ss, ok := hs.E2s[e]
	if !ok {
		return true
	}
	x1 := make(map[routePair]struct{})
	x2 := make(map[routePair]struct{})
	for row := range ss {
		vv := hs.Edges[row]
		for i := 0; i < len(vv)-1; i++ {
			if vv[i] != e || vv[i+1] == -1 {
				continue
			}
			if i == 0 || vv[i-1] == -1 {
				if i+2 < len(vv) {
					x1[routePair{vv[i+1], vv[i+2]}] = struct{}{}
				} else {
					x1[routePair{vv[i+1], -1}] = struct{}{}
				}
			} else {
				x2[routePair{vv[i+1], -1}] = struct{}{}
				if i+2 < len(vv) {
					x2[routePair{vv[i+1], vv[i+2]}] = struct{}{}
				}
			}
		}
	}
	for p := range x1 {
		if _, ok := x2[p]; !ok {
			return false
		}
	}
	return true
}

// RightDominate is the left-mirror of LeftDominate
func (hs *HyperSet) RightDominate(e int) bool {
	ss, ok := hs.E2s[e]
	if !ok {
		return true
	}
	x1 := make(map[routePair]struct{})
	x2 := make(map[routePair]struct{})
	for row := range ss {
		vv := hs.Edges[row]
		for i := 1; i < len(vv); i++ {
			if vv[i] != e || vv[i-1] == -1 {
				continue
			}
			if i == len(vv)-1 || vv[i+1] == -1 {
				if i-2 >= 0 {
					x1[routePair{vv[i-1], vv[i-2]}] = struct{}{}
				} else {
					x1[routePair{vv[i-1], -1}] = struct{}{}
				}
			} else {
				x2[routePair{vv[i-1], -1}] = struct{}{}
				if i-2 >= 0 {
					x2[routePair{vv[i-1], vv[i-2]}] = struct{}{}
				}
			}
		}
	}
	for p := range x1 {
		if _, ok := x2[p]; !ok {
			return false
		}
	}
	return true
}
