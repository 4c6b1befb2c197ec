/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"math"
	"testing"
)

// diamondGraph builds source -> v1 -> {v2:A1, v3:A2} -> v4 -> sink with the
// given allele weights
func diamondGraph(w1, w2 float64) (*SpliceGraph, *Decomposer) {
	cfg := DefaultConfig()
	gr := NewSpliceGraph()
	for i := 0; i < 6; i++ {
		gr.AddVertex()
	}
	set := func(i int, l, r int32, w float64, gt Genotype, asType int) {
		gr.SetVertexWeight(i, w)
		gr.SetVertexInfo(i, VertexInfo{
			Lpos: NewPos(l), Rpos: NewPos(r), Length: r - l,
			Gt: gt, AsType: asType,
		})
	}
	set(0, 100, 100, 0, Unphased, StartOrSink)
	set(1, 100, 200, w1+w2, Unphased, AjNonvar)
	set(2, 200, 201, w1, Allele1, AsDiploidVar)
	set(3, 200, 201, w2, Allele2, AsDiploidVar)
	set(4, 201, 300, w1+w2, Unphased, AjNonvar)
	set(5, 300, 300, 0, Unphased, StartOrSink)

	addEdge := func(s, t int, w float64) {
		e := gr.AddEdge(s, t)
		e.W = w
	}
	addEdge(0, 1, w1+w2)
	addEdge(1, 2, w1)
	addEdge(1, 3, w2)
	addEdge(2, 4, w1)
	addEdge(3, 4, w2)
	addEdge(4, 5, w1+w2)

	sc := &Decomposer{
		Gr:           gr,
		Hs:           NewHyperSet(),
		cfg:          cfg,
		Partial:      true,
		AsNonzeroSet: map[int]struct{}{2: {}, 3: {}},
		NsNonzeroSet: map[int]struct{}{1: {}, 4: {}},
		Mev:          make(map[int][]int),
	}
	return gr, sc
}

func TestPhaserWeightConservation(t *testing.T) {
	cfg := DefaultConfig()
	gr, sc := diamondGraph(10, 6)

	orig := make(map[int]float64)
	for _, e := range gr.Edges() {
		orig[e.ID] = e.W
	}

	ph, err := NewPhaser(sc, true, cfg)
	if err != nil {
		t.Fatal(err)
	}

	for id, w := range orig {
		w1 := ph.ewrt1[id]
		w2 := ph.ewrt2[id]
		if w1 < 0 || w2 < 0 {
			t.Fatalf("edge %d left unassigned", id)
		}
		if math.Abs(w1+w2-w) > 1e-6 {
			t.Fatalf("edge %d: %f + %f != %f", id, w1, w2, w)
		}
	}
}

func TestPhaserAllelicPurity(t *testing.T) {
	cfg := DefaultConfig()
	gr, sc := diamondGraph(10, 6)

	ph, err := NewPhaser(sc, true, cfg)
	if err != nil {
		t.Fatal(err)
	}

	// every edge incident to an allele-1 vertex carries no allele-2 weight
	for _, i := range []int{2, 3} {
		vi := gr.GetVertexInfo(i)
		for _, es := range [][]*Edge{gr.InEdges(i), gr.OutEdges(i)} {
			for _, e := range es {
				if vi.Gt == Allele1 && ph.ewrt2[e.ID] != 0 {
					t.Fatalf("edge %d of an allele-1 vertex has allele-2 weight %f", e.ID, ph.ewrt2[e.ID])
				}
				if vi.Gt == Allele2 && ph.ewrt1[e.ID] != 0 {
					t.Fatalf("edge %d of an allele-2 vertex has allele-1 weight %f", e.ID, ph.ewrt1[e.ID])
				}
			}
		}
	}
}

func TestPhaserTranscriptsPerAllele(t *testing.T) {
	cfg := DefaultConfig()
	_, sc := diamondGraph(10, 6)

	ph, err := NewPhaser(sc, true, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(ph.Trsts1) != 1 || len(ph.Trsts2) != 1 {
		t.Fatalf("expected one transcript per allele, got %d and %d", len(ph.Trsts1), len(ph.Trsts2))
	}
	if ph.Trsts1[0].Gt != Allele1 || ph.Trsts2[0].Gt != Allele2 {
		t.Fatal("phased transcripts must be tagged with their allele")
	}
	// the diamond collapses to one exon over [100, 300)
	for _, tr := range []Transcript{ph.Trsts1[0], ph.Trsts2[0]} {
		if len(tr.Exons) != 1 || tr.Exons[0].L.P != 100 || tr.Exons[0].R.P != 300 {
			t.Fatalf("unexpected exon chain %v", tr.Exons)
		}
	}
}

// singleAlleleGraph has one phased vertex on allele 1 only
func singleAlleleGraph() (*SpliceGraph, *Decomposer) {
	cfg := DefaultConfig()
	gr := NewSpliceGraph()
	for i := 0; i < 5; i++ {
		gr.AddVertex()
	}
	set := func(i int, l, r int32, w float64, gt Genotype, asType int) {
		gr.SetVertexWeight(i, w)
		gr.SetVertexInfo(i, VertexInfo{
			Lpos: NewPos(l), Rpos: NewPos(r), Length: r - l,
			Gt: gt, AsType: asType,
		})
	}
	set(0, 100, 100, 0, Unphased, StartOrSink)
	set(1, 100, 200, 20, Unphased, AjNonvar)
	set(2, 200, 201, 20, Allele1, AsDiploidVar)
	set(3, 201, 300, 20, Unphased, AjNonvar)
	set(4, 300, 300, 0, Unphased, StartOrSink)

	addEdge := func(s, t int, w float64) {
		e := gr.AddEdge(s, t)
		e.W = w
	}
	addEdge(0, 1, 20)
	addEdge(1, 2, 20)
	addEdge(2, 3, 20)
	addEdge(3, 4, 20)

	sc := &Decomposer{
		Gr:           gr,
		Hs:           NewHyperSet(),
		cfg:          cfg,
		Partial:      true,
		AsNonzeroSet: map[int]struct{}{2: {}},
		NsNonzeroSet: map[int]struct{}{1: {}, 3: {}},
		Mev:          make(map[int][]int),
	}
	return gr, sc
}

func TestPhaserGlobalFallback(t *testing.T) {
	cfg := DefaultConfig()
	_, sc := singleAlleleGraph()

	ph, err := NewPhaser(sc, true, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if ph.ratiobg1 < 0.99 {
		t.Fatalf("with only allele-1 background the ratio must approach 1, got %f", ph.ratiobg1)
	}
	if len(ph.Trsts1) != 1 {
		t.Fatalf("allele 1 must keep the whole transcript, got %d", len(ph.Trsts1))
	}
	if len(ph.Trsts2) != 0 {
		t.Fatalf("allele 2 must end up empty, got %d transcripts", len(ph.Trsts2))
	}
}

func TestNewPhaserRequiresAllelicVertices(t *testing.T) {
	cfg := DefaultConfig()
	_, sc := diamondGraph(10, 6)
	sc.AsNonzeroSet = map[int]struct{}{}

	if _, err := NewPhaser(sc, true, cfg); err == nil {
		t.Fatal("a graph without allelic vertices must be rejected")
	}
}
