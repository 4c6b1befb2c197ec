/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"fmt"
	"math"
)

// Decomposer is the flow decomposer: given a splice graph and its hyper-set
// it peels weighted source-to-sink paths off the graph and reports them as
// transcripts. In partial mode paths through allelic vertices are refused,
// leaving their weight in place for the phaser.
type Decomposer struct {
	Gr      *SpliceGraph
	Hs      *HyperSet
	cfg     *Config
	Partial bool

	Trsts        []Transcript
	NonFullTrsts []Transcript

	AsNonzeroSet map[int]struct{}
	NsNonzeroSet map[int]struct{}

	Mev map[int][]int // edge id -> internal vertices the edge accounts for

	paths []decompPath
}

// decompPath is one extracted path with its abundance
type decompPath struct {
	v   []int
	abd float64
}

// NewDecomposer wires a decomposer onto a graph and hyper-set
func NewDecomposer(gr *SpliceGraph, hs *HyperSet, partial bool, cfg *Config) *Decomposer {
	sc := &Decomposer{
		Gr:      gr,
		Hs:      hs,
		cfg:     cfg,
		Partial: partial,
		Mev:     make(map[int][]int),
	}
	for _, e := range gr.Edges() {
		sc.Mev[e.ID] = nil
	}
	return sc
}

// Assemble peels paths until no decomposable flow remains, then publishes
// transcripts and the surviving-coverage vertex sets
func (sc *Decomposer) Assemble(isAllelic bool) {
	gr := sc.Gr
	if !sc.Hs.Prepared() {
		sc.Hs.Build(gr, sc.cfg.MinRouterCount)
	}

	minAbd := 1.0
	if isAllelic && !sc.Partial {
		// allele splitting halves coverage; keep proportionally thin paths
		minAbd = 0.5
	}

	for {
		v, abd := sc.widestPath()
		if len(v) == 0 || abd < minAbd {
			break
		}
		sc.subtract(v, abd)
		sc.paths = append(sc.paths, decompPath{v: v, abd: abd})
	}

	sc.collectNonzero()
	sc.publish()
}

// widestPath finds the max-bottleneck source-to-sink path; ties break
// toward hyper-set supported routes. Vertex index order is topological.
func (sc *Decomposer) widestPath() ([]int, float64) {
	gr := sc.Gr
	n := gr.NumVertices()
	if n < 2 {
		return nil, 0
	}
	neg := math.Inf(-1)

	dp := make([]float64, n)
	pred := make([]*Edge, n)
	for i := range dp {
		dp[i] = neg
	}
	dp[0] = math.Inf(1)

	for u := 0; u < n-1; u++ {
		if dp[u] == neg {
			continue
		}
		if sc.Partial && u != 0 {
			vi := gr.GetVertexInfo(u)
			if vi.IsAsVertex() {
				continue
			}
		}
		for _, e := range gr.OutEdges(u) {
			if e.W <= 0 {
				continue
			}
			cand := math.Min(dp[u], e.W)
			if cand > dp[e.T] {
				dp[e.T] = cand
				pred[e.T] = e
			} else if cand == dp[e.T] && pred[e.T] != nil && pred[u] != nil {
				// prefer the route the phasing evidence has seen
				cur := sc.Hs.GetSuccessors(pred[u].ID)
				if cur[e.ID] > cur[pred[e.T].ID] {
					pred[e.T] = e
				}
			}
		}
	}

	if dp[n-1] == neg || dp[n-1] <= 0 {
		return nil, 0
	}
	var v []int
	for at := n - 1; at != 0; {
		e := pred[at]
		v = append(v, at)
		at = e.S
	}
	v = append(v, 0)
	for i, j := 0, len(v)-1; i < j; i, j = i+1, j-1 {
		v[i], v[j] = v[j], v[i]
	}
	return v, dp[n-1]
}

// subtract removes abd units of flow along the path, retiring exhausted
// edges from the hyper-set
func (sc *Decomposer) subtract(v []int, abd float64) {
	gr := sc.Gr
	for i := 0; i+1 < len(v); i++ {
		e, ok := gr.Edge(v[i], v[i+1])
		if !ok {
			panic(fmt.Sprintf("path edge %d->%d vanished from graph %s", v[i], v[i+1], gr.Gid))
		}
		e.W -= abd
		if e.W <= 0 {
			e.W = 0
			sc.Hs.Remove(e.ID)
		}
	}
	for _, u := range v {
		if u == 0 || u == gr.NumVertices()-1 {
			continue
		}
		w := gr.GetVertexWeight(u) - abd
		if w < 0 {
			w = 0
		}
		gr.SetVertexWeight(u, w)
	}
}

// collectNonzero partitions the vertices whose coverage survived
// decomposition into allelic and non-allelic sets
func (sc *Decomposer) collectNonzero() {
	gr := sc.Gr
	sc.AsNonzeroSet = make(map[int]struct{})
	sc.NsNonzeroSet = make(map[int]struct{})
	for i := 1; i < gr.NumVertices()-1; i++ {
		if gr.Degree(i) == 0 {
			continue
		}
		if gr.GetVertexWeight(i) <= sc.cfg.MinGuaranteedEdgeWeight {
			continue
		}
		vi := gr.GetVertexInfo(i)
		if vi.IsAsVertex() {
			sc.AsNonzeroSet[i] = struct{}{}
		} else {
			sc.NsNonzeroSet[i] = struct{}{}
		}
	}
}

// publish converts the peeled paths into transcripts; paths through
// tombstoned vertices become non-full transcripts
func (sc *Decomposer) publish() {
	gr := sc.Gr
	for k, p := range sc.paths {
		t := Transcript{
			Seqname:      gr.Chrm,
			GeneID:       gr.Gid,
			TranscriptID: fmt.Sprintf("%s.%d", gr.Gid, k),
			Strand:       gr.Strand,
			Coverage:     p.abd,
		}
		full := true
		gt := Unphased
		for _, u := range p.v {
			if u == 0 || u == gr.NumVertices()-1 {
				continue
			}
			vi := gr.GetVertexInfo(u)
			if vi.Type == EmptyVertex {
				full = false
				continue
			}
			if gtAs(vi.Gt) {
				gt = vi.Gt
			}
			t.AddExon(vi.Lpos, vi.Rpos)
		}
		t.Gt = gt
		if len(t.Exons) == 0 {
			continue
		}
		if full {
			sc.Trsts = append(sc.Trsts, t)
		} else {
			sc.NonFullTrsts = append(sc.NonFullTrsts, t)
		}
	}
}

// Transform re-homes the decomposer onto a structurally modified copy of
// its graph through the edge-id bijection x2y
func (sc *Decomposer) Transform(pgr *SpliceGraph, x2y map[int]int) {
	sc.Hs.Transform(pgr, x2y)
	mev := make(map[int][]int, len(sc.Mev))
	for old, vv := range sc.Mev {
		ny, ok := x2y[old]
		if !ok {
			panic(fmt.Sprintf("edge %d of graph %s missing from x2y", old, sc.Gr.Gid))
		}
		if pgr.EdgeByID(ny) == nil {
			continue
		}
		mev[ny] = vv
	}
	sc.Mev = mev
	sc.Gr = pgr
}
