/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"sort"

	"github.com/willf/bitset"
)

// phaserEpsilon smooths allele ratios: (x+eps)/(x+y+2*eps). The additive
// form biases uncertain splits toward equal instead of collapsing an
// allele on 0/N evidence.
const phaserEpsilon = 0.01

// Phaser splits a partially decomposed mixed splice graph into two
// allele-specific graph/hyper-set pairs with consistent edge-flow
// accounting, then re-runs the decomposer on each allele.
type Phaser struct {
	sc  *Decomposer
	gr  *SpliceGraph
	cfg *Config

	ewrt1 map[int]float64 // per-edge weight on allele 1; -1 = unassigned
	ewrt2 map[int]float64
	vwrt1 []float64
	vwrt2 []float64

	vwrtbg1, vwrtbg2 float64
	ewrtbg1, ewrtbg2 float64
	ratiobg1         float64
	ratiobg2         float64

	x2y1, y2x1 map[int]int
	x2y2, y2x2 map[int]int

	Gr1, Gr2 *SpliceGraph
	Hs1, Hs2 *HyperSet

	Trsts1, Trsts2               []Transcript
	NonFullTrsts1, NonFullTrsts2 []Transcript
}

// NewPhaser runs the full phasing pipeline on a decomposed mixed graph
func NewPhaser(sc *Decomposer, isAllelic bool, cfg *Config) (*Phaser, error) {
	if len(sc.AsNonzeroSet) == 0 {
		return nil, bundleErrorf("graph %s has no allelic vertex to phase", sc.Gr.Gid)
	}
	ph := &Phaser{sc: sc, gr: sc.Gr, cfg: cfg}

	ph.init()
	if err := ph.assignGt(); err != nil {
		return nil, err
	}
	ph.splitGr()
	ph.refineAllelicGraphs()
	ph.splitHs()
	ph.assembleAllelic(isAllelic)
	return ph, nil
}

// init seeds the per-allele weights from the explicitly phased vertices
// and computes the background ratio
func (ph *Phaser) init() {
	gr := ph.gr
	ph.vwrt1 = make([]float64, gr.NumVertices())
	ph.vwrt2 = make([]float64, gr.NumVertices())
	for i := range ph.vwrt1 {
		ph.vwrt1[i] = -1
		ph.vwrt2[i] = -1
	}
	ph.ewrt1 = make(map[int]float64)
	ph.ewrt2 = make(map[int]float64)
	for _, e := range gr.Edges() {
		ph.ewrt1[e.ID] = -1
		ph.ewrt2[e.ID] = -1
	}

	for i := 0; i < gr.NumVertices(); i++ {
		vi := gr.GetVertexInfo(i)
		switch vi.Gt {
		case Allele1:
			for _, e := range gr.InEdges(i) {
				ph.ewrt1[e.ID] = e.W
				ph.ewrt2[e.ID] = 0
				ph.ewrtbg1 += e.W
			}
			for _, e := range gr.OutEdges(i) {
				ph.ewrt1[e.ID] = e.W
				ph.ewrt2[e.ID] = 0
				ph.ewrtbg1 += e.W
			}
			ph.vwrtbg1 += gr.GetVertexWeight(i)
		case Allele2:
			for _, e := range gr.InEdges(i) {
				ph.ewrt1[e.ID] = 0
				ph.ewrt2[e.ID] = e.W
				ph.ewrtbg2 += e.W
			}
			for _, e := range gr.OutEdges(i) {
				ph.ewrt1[e.ID] = 0
				ph.ewrt2[e.ID] = e.W
				ph.ewrtbg2 += e.W
			}
			ph.vwrtbg2 += gr.GetVertexWeight(i)
		}
	}

	ph.ratiobg1, ph.ratiobg2 = normalizeEpsilon(ph.ewrtbg1, ph.ewrtbg2)
}

// normalizeEpsilon returns the smoothed ratio pair, or (-1, -1) when
// neither side has any weight yet
func normalizeEpsilon(x, y float64) (float64, float64) {
	if x < 0 || y < 0 {
		panic("allele weights must be non-negative")
	}
	if x+y <= 0 {
		return -1, -1
	}
	z := (x + phaserEpsilon) / (x + y + 2*phaserEpsilon)
	return z, 1.0 - z
}

// assignGt distributes the weights of every non-allelic non-zero vertex:
// first locally, splitting 1-step neighbors of already-split vertices by
// their incident allele ratio, then globally by the background ratio
func (ph *Phaser) assignGt() error {
	gr := ph.gr
	asCount := 0
	ns := bitset.New(uint(gr.NumVertices()))
	for _, set := range []map[int]struct{}{ph.sc.AsNonzeroSet, ph.sc.NsNonzeroSet} {
		for i := range set {
			vi := gr.GetVertexInfo(i)
			if vi.IsAsVertex() {
				asCount++
			} else {
				ns.Set(uint(i))
			}
		}
	}
	if asCount < 1 {
		return bundleErrorf("graph %s lost its allelic vertices before phasing", gr.Gid)
	}

	// local split, bounded by the exon cap
	if int(ns.Count())+asCount < ph.cfg.MaxNumExons {
		for ns.Any() {
			vi := ph.sortNodesByCurrentMae(ns)
			if len(vi) == 0 {
				break
			}
			progressed := false
			for _, i := range vi {
				if ph.splitLocal(i) {
					ns.Clear(uint(i))
					progressed = true
				} else {
					break
				}
			}
			if !progressed {
				break
			}
		}
	}

	// global split of whatever remains
	if ns.Any() && ph.ratiobg1 <= 0 {
		return bundleErrorf("graph %s has no phased background to split against", gr.Gid)
	}
	for i, ok := ns.NextSet(0); ok; i, ok = ns.NextSet(i + 1) {
		ph.splitByRatio(int(i), ph.ratiobg1)
		ns.Clear(i)
	}
	return nil
}

// sortNodesByCurrentMae orders candidate vertices by descending
// max-allele-expression; vertices without any assigned incident edge are
// excluded
func (ph *Phaser) sortNodesByCurrentMae(ns *bitset.BitSet) []int {
	type nodeMae struct {
		mae float64
		i   int
	}
	var nodes []nodeMae
	for i, ok := ns.NextSet(0); ok; i, ok = ns.NextSet(i + 1) {
		r1, r2 := ph.getAsRatio(int(i))
		mae := maxf(r1, r2)
		if mae <= 0 {
			continue
		}
		nodes = append(nodes, nodeMae{mae: mae, i: int(i)})
	}
	sort.Slice(nodes, func(a, b int) bool {
		if nodes[a].mae != nodes[b].mae {
			return nodes[a].mae > nodes[b].mae
		}
		return nodes[a].i < nodes[b].i
	})
	out := make([]int, len(nodes))
	for k, n := range nodes {
		out[k] = n.i
	}
	return out
}

// getAsRatio computes the local allelic ratio of a vertex over its
// already-assigned incident edges; (-1, -1) when none is assigned
func (ph *Phaser) getAsRatio(i int) (float64, float64) {
	gr := ph.gr
	local1, local2 := 0.0, 0.0
	for _, e := range gr.InEdges(i) {
		if w := ph.ewrt1[e.ID]; w > 0 {
			local1 += w
		}
		if w := ph.ewrt2[e.ID]; w > 0 {
			local2 += w
		}
	}
	for _, e := range gr.OutEdges(i) {
		if w := ph.ewrt1[e.ID]; w > 0 {
			local1 += w
		}
		if w := ph.ewrt2[e.ID]; w > 0 {
			local2 += w
		}
	}
	if local1+local2 <= 0 {
		return -1, -1
	}
	return normalizeEpsilon(local1, local2)
}

// splitLocal splits one vertex by its local allele ratio
func (ph *Phaser) splitLocal(i int) bool {
	r1, r2 := ph.getAsRatio(i)
	if r1+r2 <= 0 {
		return false
	}
	ph.splitByRatio(i, r1)
	return true
}

// splitByRatio assigns the vertex weight and every still-unassigned
// incident edge weight proportionally to the allele-1 ratio
func (ph *Phaser) splitByRatio(v int, ratioAllele1 float64) {
	if ratioAllele1 <= 0 || ratioAllele1 >= 1 {
		panic("allele ratio must be normalized before splitting")
	}
	gr := ph.gr
	ph.vwrt1[v] = gr.GetVertexWeight(v) * ratioAllele1
	ph.vwrt2[v] = gr.GetVertexWeight(v) * (1 - ratioAllele1)
	for _, e := range gr.InEdges(v) {
		if ph.ewrt1[e.ID] < 0 {
			ph.ewrt1[e.ID] = e.W * ratioAllele1
		}
		if ph.ewrt2[e.ID] < 0 {
			ph.ewrt2[e.ID] = e.W * (1 - ratioAllele1)
		}
	}
	for _, e := range gr.OutEdges(v) {
		if ph.ewrt1[e.ID] < 0 {
			ph.ewrt1[e.ID] = e.W * ratioAllele1
		}
		if ph.ewrt2[e.ID] < 0 {
			ph.ewrt2[e.ID] = e.W * (1 - ratioAllele1)
		}
	}
}

// splitGr copies the graph twice, installing the per-allele weights, and
// records the edge-id bijections for the hyper-set transforms
func (ph *Phaser) splitGr() {
	gr := ph.gr
	ph.x2y1 = make(map[int]int)
	ph.y2x1 = make(map[int]int)
	ph.x2y2 = make(map[int]int)
	ph.y2x2 = make(map[int]int)

	ph.Gr1 = gr.Copy(ph.x2y1, ph.y2x1)
	ph.Gr2 = gr.Copy(ph.x2y2, ph.y2x2)
	ph.Gr1.Gid = gr.Gid + ".allele1"
	ph.Gr2.Gid = gr.Gid + ".allele2"

	for i := 0; i < gr.NumVertices(); i++ {
		if ph.vwrt1[i] >= 0 {
			ph.Gr1.SetVertexWeight(i, ph.vwrt1[i])
		}
		if ph.vwrt2[i] >= 0 {
			ph.Gr2.SetVertexWeight(i, ph.vwrt2[i])
		}
	}
	for _, e := range gr.Edges() {
		ph.Gr1.EdgeByID(ph.x2y1[e.ID]).W = ph.ewrt1[e.ID]
		ph.Gr2.EdgeByID(ph.x2y2[e.ID]).W = ph.ewrt2[e.ID]
	}
}

// refineAllelicGraphs drops sub-threshold edges and clears one-sided
// vertices on both copies; vertices stay in the graph as isolated
func (ph *Phaser) refineAllelicGraphs() {
	for _, pgr := range []*SpliceGraph{ph.Gr1, ph.Gr2} {
		for _, e := range pgr.Edges() {
			if e.W < ph.cfg.MinGuaranteedEdgeWeight {
				pgr.RemoveEdge(e)
			}
		}
		for {
			b := false
			for i := 1; i < pgr.NumVertices()-1; i++ {
				if pgr.Degree(i) == 0 {
					continue
				}
				if pgr.InDegree(i) >= 1 && pgr.OutDegree(i) >= 1 {
					continue
				}
				pgr.ClearVertex(i)
				b = true
			}
			if !b {
				break
			}
		}
	}
}

// splitHs keeps, per allele, the hyper-set rows whose every edge carries
// assigned weight, with the bottleneck as the new count
func (ph *Phaser) splitHs() {
	ph.Hs1 = NewHyperSet()
	ph.Hs2 = NewHyperSet()
	for a := 0; a < 2; a++ {
		phs := ph.Hs1
		ewrtCur := ph.ewrt1
		if a == 1 {
			phs = ph.Hs2
			ewrtCur = ph.ewrt2
		}

		var rows [][]int
		var cnts []int
		for j, row := range ph.sc.Hs.Edges {
			bottleneck := float64(ph.sc.Hs.Ecnts[j])
			removed := false
			for _, eidx := range row {
				if eidx == -1 {
					continue
				}
				w, ok := ewrtCur[eidx]
				if !ok || w < 0 {
					removed = true
					break
				}
				if w < bottleneck {
					bottleneck = w
				}
			}
			if removed || int(bottleneck) < 1 {
				continue
			}
			rows = append(rows, row)
			cnts = append(cnts, int(bottleneck))
		}
		phs.AddEdgeList(rows, cnts)
	}
}

// assembleAllelic transforms and re-decomposes each allele, publishing the
// two transcript sets
func (ph *Phaser) assembleAllelic(isAllelic bool) {
	sc1 := NewDecomposer(ph.Gr1, ph.Hs1, false, ph.cfg)
	sc2 := NewDecomposer(ph.Gr2, ph.Hs2, false, ph.cfg)
	ph.Hs1.Transform(ph.Gr1, ph.x2y1)
	ph.Hs2.Transform(ph.Gr2, ph.x2y2)
	sc1.Assemble(isAllelic)
	sc2.Assemble(isAllelic)

	for i := range sc1.Trsts {
		sc1.Trsts[i].Gt = Allele1
	}
	for i := range sc1.NonFullTrsts {
		sc1.NonFullTrsts[i].Gt = Allele1
	}
	for i := range sc2.Trsts {
		sc2.Trsts[i].Gt = Allele2
	}
	for i := range sc2.NonFullTrsts {
		sc2.NonFullTrsts[i].Gt = Allele2
	}

	ph.Trsts1 = sc1.Trsts
	ph.Trsts2 = sc2.Trsts
	ph.NonFullTrsts1 = sc1.NonFullTrsts
	ph.NonFullTrsts2 = sc2.NonFullTrsts
}
