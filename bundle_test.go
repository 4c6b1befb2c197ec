/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"fmt"
	"testing"
)

// makeHit fabricates an aligned read from match intervals and splice pairs
func makeHit(name string, itvm [][2]int32, spos [][2]int32) *Hit {
	h := &Hit{
		Qname:  name,
		Qhash:  stringHash(name),
		Strand: '.',
		Xs:     '.',
		Nh:     1,
		Pi:     -1,
		Fidx:   -1,
	}
	h.Pos = itvm[0][0]
	h.Rpos = itvm[len(itvm)-1][1]
	for _, iv := range itvm {
		h.Itvm = append(h.Itvm, pack(iv[0], iv[1]))
	}
	h.Itvna = h.Itvm
	for _, sp := range spos {
		h.Spos = append(h.Spos, NewAsPos(sp[0], sp[1], NonAllele))
	}
	return h
}

// twoExonBundle builds the S1 geometry: spliced reads [100,150)+[250,300)
func twoExonBundle(t *testing.T, n int) *BundleBase {
	bb := NewBundleBase(false)
	for i := 0; i < n; i++ {
		h := makeHit(fmt.Sprintf("read.%d", i),
			[][2]int32{{100, 150}, {250, 300}},
			[][2]int32{{150, 250}})
		if err := bb.AddHit(h); err != nil {
			t.Fatal(err)
		}
	}
	bb.Chrm = "chr1"
	return bb
}

func TestTwoExonTranscript(t *testing.T) {
	cfg := DefaultConfig()
	bb := twoExonBundle(t, 10)

	bd, err := NewBundle(bb, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}

	if len(bd.br.Junctions) != 1 {
		t.Fatalf("expected 1 junction, got %d", len(bd.br.Junctions))
	}
	jc := bd.br.Junctions[0]
	if jc.Lpos.P != 150 || jc.Rpos.P != 250 || jc.Count != 10 {
		t.Fatalf("unexpected junction %s", jc)
	}
	if len(bd.br.Regions) != 3 {
		t.Fatalf("expected 3 regions, got %d", len(bd.br.Regions))
	}
	if len(bd.Pexons) != 2 {
		t.Fatalf("expected 2 partial exons, got %d", len(bd.Pexons))
	}
	for i := range bd.Pexons {
		if bd.Pexons[i].Pid != i {
			t.Fatalf("pexon %d has pid %d", i, bd.Pexons[i].Pid)
		}
	}

	bd.Build(1, true)
	gr := bd.Gr
	if gr.NumVertices() != 4 {
		t.Fatalf("expected 4 vertices (source, 2 internal, sink), got %d", gr.NumVertices())
	}
	e, ok := gr.Edge(1, 2)
	if !ok {
		t.Fatal("junction edge 1->2 missing")
	}
	if e.W != 10 {
		t.Fatalf("junction edge weight must be 10, got %f", e.W)
	}
	if _, ok := gr.Edge(0, 1); !ok {
		t.Fatal("source edge missing")
	}
	if _, ok := gr.Edge(2, 3); !ok {
		t.Fatal("sink edge missing")
	}

	sc := NewDecomposer(gr, bd.Hs, false, cfg)
	sc.Assemble(false)
	if len(sc.Trsts) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(sc.Trsts))
	}
	tr := sc.Trsts[0]
	if len(tr.Exons) != 2 {
		t.Fatalf("expected 2 exons, got %d", len(tr.Exons))
	}
	if tr.Exons[0].L.P != 100 || tr.Exons[0].R.P != 150 ||
		tr.Exons[1].L.P != 250 || tr.Exons[1].R.P != 300 {
		t.Fatalf("unexpected exon chain %v", tr.Exons)
	}
}

func TestIntronContamination(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxIntronContaminationCoverage = 30

	bb := NewBundleBase(false)
	for i := 0; i < 100; i++ {
		h := makeHit(fmt.Sprintf("spliced.%d", i),
			[][2]int32{{100, 150}, {250, 300}},
			[][2]int32{{150, 250}})
		if err := bb.AddHit(h); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 20; i++ {
		h := makeHit(fmt.Sprintf("cont.%d", i), [][2]int32{{100, 300}}, nil)
		if err := bb.AddHit(h); err != nil {
			t.Fatal(err)
		}
	}
	bb.Chrm = "chr1"

	bd, err := NewBundle(bb, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	bd.Build(1, true)

	gr := bd.Gr
	if gr.NumVertices() != 5 {
		t.Fatalf("expected 5 vertices, got %d", gr.NumVertices())
	}
	if vi := gr.GetVertexInfo(2); vi.Type != EmptyVertex {
		t.Fatalf("intron-covering vertex must be tombstoned, type = %d", vi.Type)
	}

	sc := NewDecomposer(gr, bd.Hs, false, cfg)
	sc.Assemble(false)
	if len(sc.Trsts) != 1 {
		t.Fatalf("expected 1 full transcript, got %d", len(sc.Trsts))
	}
	if sc.Trsts[0].Coverage != 100 {
		t.Fatalf("expected the spliced path at coverage 100, got %f", sc.Trsts[0].Coverage)
	}
}

// smallJunctionGraph wires two dominant adjacent pairs and a weight-2
// cross junction between them
func smallJunctionGraph(cfg *Config) *Bundle {
	gr := NewSpliceGraph()
	for i := 0; i < 6; i++ {
		gr.AddVertex()
	}
	set := func(i int, l, r int32, w float64) {
		gr.SetVertexWeight(i, w)
		gr.SetVertexInfo(i, VertexInfo{Lpos: NewPos(l), Rpos: NewPos(r), Length: r - l})
	}
	set(1, 100, 150, 200)
	set(2, 150, 300, 200)
	set(3, 400, 450, 200)
	set(4, 450, 600, 200)

	addEdge := func(s, t int, w float64) {
		e := gr.AddEdge(s, t)
		e.W = w
	}
	addEdge(0, 1, 200)
	addEdge(1, 2, 200) // adjacent, dominant
	addEdge(0, 3, 200)
	addEdge(3, 4, 200) // adjacent, dominant
	addEdge(1, 4, 2)   // small cross junction
	addEdge(2, 5, 200)
	addEdge(4, 5, 200)

	return &Bundle{cfg: cfg, Gr: gr}
}

func TestRemoveSmallJunctions(t *testing.T) {
	cfg := DefaultConfig()
	bd := smallJunctionGraph(cfg)

	if !bd.removeSmallJunctions() {
		t.Fatal("the weight-2 cross junction must be removed")
	}
	if _, ok := bd.Gr.Edge(1, 4); ok {
		t.Fatal("edge (1,4) still present after removeSmallJunctions")
	}
	if _, ok := bd.Gr.Edge(1, 2); !ok {
		t.Fatal("dominant adjacent edge (1,2) must survive")
	}
}

func TestRefineIdempotent(t *testing.T) {
	cfg := DefaultConfig()
	bb := twoExonBundle(t, 10)
	bd, err := NewBundle(bb, nil, cfg)
	if err != nil {
		t.Fatal(err)
	}
	bd.Build(1, true)

	snapshot := func() []string {
		var s []string
		for _, e := range bd.Gr.Edges() {
			s = append(s, fmt.Sprintf("%d-%d:%.4f", e.S, e.T, e.W))
		}
		for i := 0; i < bd.Gr.NumVertices(); i++ {
			s = append(s, fmt.Sprintf("v%d:%d", i, bd.Gr.GetVertexInfo(i).Type))
		}
		return s
	}

	before := snapshot()
	bd.reviseSpliceGraph()
	after := snapshot()

	if len(before) != len(after) {
		t.Fatalf("revising an already-refined graph changed its size: %v vs %v", before, after)
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("revising an already-refined graph changed %s -> %s", before[i], after[i])
		}
	}
}

func TestRefineClearsOneSidedVertices(t *testing.T) {
	cfg := DefaultConfig()
	gr := NewSpliceGraph()
	for i := 0; i < 4; i++ {
		gr.AddVertex()
	}
	// vertex 1 has only an out-edge, vertex 2 only an in-edge
	e := gr.AddEdge(1, 2)
	e.W = 5

	bd := &Bundle{cfg: cfg, Gr: gr}
	bd.refineSpliceGraph()

	for i := 1; i <= 2; i++ {
		if gr.Degree(i) != 0 {
			t.Fatalf("one-sided vertex %d must be cleared", i)
		}
	}
}
