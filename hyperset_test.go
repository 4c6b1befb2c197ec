/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import "testing"

// chainGraph builds source -> 1 -> 2 -> ... -> n -> sink with unit weights
func chainGraph(n int) *SpliceGraph {
	gr := NewSpliceGraph()
	for i := 0; i < n+2; i++ {
		gr.AddVertex()
	}
	for i := 0; i <= n; i++ {
		e := gr.AddEdge(i, i+1)
		e.W = 1
	}
	return gr
}

func TestHyperSetNodeListMerge(t *testing.T) {
	hs := NewHyperSet()
	hs.AddNodeList([]int{2, 0, 1}, 3)
	hs.AddNodeList([]int{0, 1, 2}, 4)
	if len(hs.nodes) != 1 {
		t.Fatalf("identical paths must collide regardless of insertion order, got %d entries", len(hs.nodes))
	}
	for _, nl := range hs.nodes {
		if nl.c != 7 {
			t.Fatalf("counts must merge, got %d", nl.c)
		}
		// external indices are shifted onto graph vertices
		if nl.v[0] != 1 || nl.v[2] != 3 {
			t.Fatalf("node list must be 1-shifted and sorted, got %v", nl.v)
		}
	}
}

func TestHyperSetBuildEdges(t *testing.T) {
	gr := chainGraph(3)
	hs := NewHyperSet()
	hs.AddNodeList([]int{0, 1, 2}, 5)
	hs.AddNodeList([]int{0, 2}, 5) // no edge 1->3: row dropped
	hs.Build(gr, 1)

	if len(hs.Edges) != 1 {
		t.Fatalf("expected one surviving row, got %d", len(hs.Edges))
	}
	if len(hs.Edges[0]) != 2 {
		t.Fatalf("every surviving row has length >= 2, got %v", hs.Edges[0])
	}
	for _, e := range hs.Edges[0] {
		if gr.EdgeByID(e) == nil {
			t.Fatalf("row references a dead edge %d", e)
		}
	}
	for e, rows := range hs.E2s {
		for row := range rows {
			found := false
			for _, x := range hs.Edges[row] {
				if x == e {
					found = true
				}
			}
			if !found {
				t.Fatalf("e2s[%d] lists row %d which does not contain it", e, row)
			}
		}
	}
}

func TestHyperSetMinRouterCount(t *testing.T) {
	gr := chainGraph(3)
	hs := NewHyperSet()
	hs.AddNodeList([]int{0, 1, 2}, 1)
	hs.Build(gr, 2)
	if len(hs.Edges) != 0 {
		t.Fatalf("rows below min router count must be dropped, got %d", len(hs.Edges))
	}
}

func TestHyperSetMutations(t *testing.T) {
	hs := NewHyperSet()
	hs.Edges = [][]int{{1, 2, 3}, {1, 4}}
	hs.Ecnts = []int{5, 7}
	hs.BuildIndex()

	hs.Replace([]int{1, 2}, 9)
	if len(hs.Edges[0]) != 2 || hs.Edges[0][0] != 9 || hs.Edges[0][1] != 3 {
		t.Fatalf("replace must collapse the sub-sequence, got %v", hs.Edges[0])
	}
	if _, ok := hs.E2s[9]; !ok {
		t.Fatal("replacement edge must be indexed")
	}
	if rows := hs.E2s[1]; len(rows) != 1 {
		t.Fatalf("edge 1 must only remain in the untouched row, got %v", rows)
	}

	hs.Remove(4)
	if hs.Edges[1][1] != -1 {
		t.Fatalf("remove must leave a gap, got %v", hs.Edges[1])
	}
	if _, ok := hs.E2s[4]; ok {
		t.Fatal("removed edge must leave the index")
	}

	hs.InsertBetween(9, 3, 5)
	if len(hs.Edges[0]) != 3 || hs.Edges[0][1] != 5 {
		t.Fatalf("insert_between must splice the edge in, got %v", hs.Edges[0])
	}

	hs.RemovePair(9, 5)
	if hs.Edges[0][1] != -1 {
		t.Fatalf("remove_pair must sever the adjacency, got %v", hs.Edges[0])
	}
}

func TestHyperSetUpdateIndex(t *testing.T) {
	hs := NewHyperSet()
	hs.Edges = [][]int{{1, -1, 2}}
	hs.Ecnts = []int{1}
	hs.BuildIndex()
	hs.UpdateIndex()
	if _, ok := hs.E2s[1]; ok {
		t.Fatal("an isolated occurrence must be dropped from the index")
	}
	if _, ok := hs.E2s[2]; ok {
		t.Fatal("an isolated occurrence must be dropped from the index")
	}
}

func TestHyperSetExtendDominate(t *testing.T) {
	hs := NewHyperSet()
	hs.Edges = [][]int{{1, 2, 3}, {2, 3}}
	hs.Ecnts = []int{1, 1}
	hs.BuildIndex()

	if !hs.LeftExtend(2) {
		t.Fatal("edge 2 has a non-gap left neighbor in row 0")
	}
	if hs.LeftExtend(1) {
		t.Fatal("edge 1 never has a left neighbor")
	}
	if !hs.RightExtend(2) {
		t.Fatal("edge 2 has a non-gap right neighbor")
	}
	// every right pair after a boundary occurrence of 2 (row 1) also
	// follows a non-boundary occurrence (row 0)
	if !hs.LeftDominate(2) {
		t.Fatal("edge 2 must be left-dominated")
	}
}

func TestHyperSetTransformDropsRows(t *testing.T) {
	gr := chainGraph(4) // edges 0..4
	x2y := make(map[int]int)
	ngr := gr.Copy(x2y, nil)

	// drop edge 3 from the target graph
	ngr.RemoveEdge(ngr.EdgeByID(x2y[3]))

	hs := NewHyperSet()
	hs.AddEdgeList([][]int{{0, 1, 2}, {0, 3}}, []int{5, 7})
	hs.Transform(ngr, x2y)

	if len(hs.Edges) != 1 {
		t.Fatalf("rows referencing removed edges must be dropped, got %d rows", len(hs.Edges))
	}
	if hs.Ecnts[0] != 5 {
		t.Fatalf("counts must be preserved across surviving rows, got %d", hs.Ecnts[0])
	}
	for _, e := range hs.Edges[0] {
		if e != -1 && ngr.EdgeByID(e) == nil {
			t.Fatalf("transformed row references edge %d absent from the target graph", e)
		}
	}
}

func TestHyperSetSuccessors(t *testing.T) {
	hs := NewHyperSet()
	hs.Edges = [][]int{{1, 2, 3}, {1, 2}}
	hs.Ecnts = []int{4, 6}
	hs.BuildIndex()

	s := hs.GetSuccessors(1)
	if s[2] != 10 {
		t.Fatalf("successor counts must accumulate over rows, got %d", s[2])
	}
	p := hs.GetPredecessors(3)
	if p[2] != 4 {
		t.Fatalf("predecessor counts must follow row counts, got %d", p[2])
	}
}
