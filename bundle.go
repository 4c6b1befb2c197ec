/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"math"
	"sort"

	"github.com/willf/bitset"
)

// jsetEntry is the support of one partial-exon junction
type jsetEntry struct {
	count  int
	strand byte
}

// Bundle drives the per-bundle assembly: partial exons, splice graph,
// refinement and the hyper-set.
type Bundle struct {
	bb  *BundleBase
	br  *BundleBridge
	cfg *Config

	fmap     *splitIntervalMap
	Pexons   []PartialExon
	regional []bool
	jset     map[[2]int]jsetEntry

	Gr *SpliceGraph
	Hs *HyperSet
}

// NewBundle bridges the bundle base and prepares the partial exons
func NewBundle(bb *BundleBase, vmap *VcfData, cfg *Config) (*Bundle, error) {
	bd := &Bundle{
		bb:  bb,
		br:  NewBundleBridge(bb, vmap, cfg),
		cfg: cfg,
	}
	if err := bd.br.Build(); err != nil {
		return nil, err
	}
	if err := bd.prepare(); err != nil {
		return nil, err
	}
	return bd, nil
}

func (bd *Bundle) prepare() error {
	bd.computeStrand()
	bd.buildIntervals()
	if err := bd.buildPartialExons(); err != nil {
		return err
	}
	bd.pexonJset()
	return nil
}

// Build assembles the splice graph and hyper-set; mode 1 weights vertices
// by maximum coverage, mode 2 by average
func (bd *Bundle) Build(mode int, revise bool) {
	bd.buildSpliceGraph(mode)
	if revise {
		bd.reviseSpliceGraph()
	}
	bd.refineSpliceGraph()
	bd.buildHyperSet()
}

// computeStrand votes the bundle strand from xs on unstranded libraries
func (bd *Bundle) computeStrand() {
	if bd.cfg.LibraryType != Unstranded {
		return
	}
	n0, np, nq := 0, 0, 0
	for _, h := range bd.bb.Hits {
		switch h.Xs {
		case '.':
			n0++
		case '+':
			np++
		case '-':
			nq++
		}
	}
	switch {
	case np > nq:
		bd.bb.Strand = '+'
	case np < nq:
		bd.bb.Strand = '-'
	default:
		bd.bb.Strand = '.'
	}
}

// buildIntervals accumulates the fragment coverage map from bridged
// fragments plus the hits no bridged fragment accounts for
func (bd *Bundle) buildIntervals() {
	bd.fmap = newSplitIntervalMap()
	added := make(map[*Hit]struct{})

	for i := range bd.br.Fragments {
		fr := &bd.br.Fragments[i]
		if len(fr.Paths) != 1 || fr.Paths[0].Type != 1 {
			continue
		}
		vv := bd.br.getAlignedIntervals(fr)
		if len(vv) == 0 {
			continue
		}
		if len(vv)%2 != 0 {
			continue
		}
		for k := 0; k < len(vv)/2; k++ {
			bd.fmap.Add(vv[2*k].P, vv[2*k+1].P, 1)
		}
		added[fr.H1] = struct{}{}
		added[fr.H2] = struct{}{}
	}

	for _, ht := range bd.bb.Hits {
		if ht.Flag&0x100 != 0 && !bd.cfg.UseSecondAlignment {
			continue
		}
		if _, ok := added[ht]; ok {
			continue
		}
		for _, p := range ht.AlignedIntervals() {
			bd.fmap.Add(high32(p.P64), low32(p.P64), 1)
		}
	}
}

// buildPartialExons decomposes non-allelic regions by coverage and attaches
// allelic regions as single parallel pexons, then assigns global pids
func (bd *Bundle) buildPartialExons() error {
	bd.Pexons = bd.Pexons[:0]
	bd.regional = bd.regional[:0]

	m1 := make(map[int32]struct{})
	m2 := make(map[int32]struct{})
	for _, jc := range bd.br.Junctions {
		m1[jc.Lpos.P] = struct{}{}
		m2[jc.Rpos.P] = struct{}{}
	}

	regions := bd.br.Regions
	for i := range regions {
		r := &regions[i]
		if r.IsAllelic() {
			continue
		}
		r.Rebuild(bd.fmap)
		for k := range r.Pexons {
			r.Pexons[k].Rid = i
			r.Pexons[k].Rid2 = k
			bd.Pexons = append(bd.Pexons, r.Pexons[k])
		}
	}

	for i := range regions {
		r := &regions[i]
		if !r.IsAllelic() {
			continue
		}
		if len(r.Pexons) != 0 {
			return bundleErrorf("allelic region %s rebuilt twice", r)
		}

		// left side: keep the region types at junction sites and next to
		// allelic or live neighbors; otherwise open a start boundary
		ltype := -1
		if _, ok := m1[r.Lpos.P]; ok {
			ltype = r.Ltype
		} else if i >= 1 && regions[i-1].IsAllelic() {
			ltype = r.Ltype
		} else if i >= 1 && len(regions[i-1].Pexons) == 0 {
			ltype = StartBoundary
		} else if i >= 1 && regions[i-1].Pexons[len(regions[i-1].Pexons)-1].Type != EmptyVertex {
			ltype = r.Ltype
		} else {
			ltype = StartBoundary
		}

		rtype := -1
		if _, ok := m2[r.Rpos.P]; ok {
			rtype = r.Rtype
		} else if i < len(regions)-1 && regions[i+1].IsAllelic() {
			rtype = r.Rtype
		} else if i < len(regions)-1 && len(regions[i+1].Pexons) == 0 {
			rtype = EndBoundary
		} else if i < len(regions)-1 && regions[i+1].Pexons[0].Type != EmptyVertex {
			rtype = r.Rtype
		} else {
			rtype = EndBoundary
		}

		if i == 0 {
			ltype = r.Ltype
		}
		if i == len(regions)-1 {
			rtype = r.Rtype
		}

		pe := NewPartialExon(r.Lpos, r.Rpos, ltype, rtype, r.Gt)
		pe.AssignAsCov(r.Ave, r.Max, r.Dev)
		pe.Rid = i
		pe.Rid2 = 0
		pe.Type = VertexNormal
		r.Pexons = append(r.Pexons, pe)
		bd.Pexons = append(bd.Pexons, pe)
	}

	sort.SliceStable(bd.Pexons, func(i, j int) bool { return bd.Pexons[i].Less(&bd.Pexons[j]) })
	for i := range bd.Pexons {
		pe := &bd.Pexons[i]
		pe.Pid = i
		if (!pe.Lpos.SamePos(NewPos(bd.bb.Lpos)) || !pe.Rpos.SamePos(NewPos(bd.bb.Rpos))) &&
			pe.Ltype&StartBoundary != 0 && pe.Rtype&EndBoundary != 0 {
			bd.regional = append(bd.regional, true)
		} else {
			bd.regional = append(bd.regional, false)
		}

		if pe.Rid < 0 || pe.Rid >= len(regions) {
			return bundleErrorf("pexon %s has invalid region id", pe)
		}
		rpe := &regions[pe.Rid].Pexons[pe.Rid2]
		if !pe.Lpos.SamePos(rpe.Lpos) || pe.Lpos.Ale != rpe.Lpos.Ale {
			return bundleErrorf("pexon %s diverged from its region child", pe)
		}
		if rpe.Pid != -1 {
			return bundleErrorf("pexon %s assigned a pid twice", pe)
		}
		if i >= 1 && pe.Lpos.P < bd.Pexons[i-1].Lpos.P {
			return bundleErrorf("pexons out of order at %d", i)
		}
		rpe.Pid = i
	}
	return nil
}

// pexonJset lifts region-index junction pairs to partial-exon pairs with
// support counts and majority strands
func (bd *Bundle) pexonJset() {
	regions := bd.br.Regions
	bd.jset = make(map[[2]int]jsetEntry)

	m := make(map[[2]int][]*Hit)
	for i := range bd.br.Fragments {
		fr := &bd.br.Fragments[i]
		if len(fr.Paths) != 1 || fr.Paths[0].Type != 1 {
			continue
		}
		vv := bd.br.getSplicesRegionIndex(fr)
		for k := 0; k+1 < len(vv); k++ {
			xy := [2]int{vv[k], vv[k+1]}
			m[xy] = append(m[xy], fr.H1)
		}
	}

	for _, h := range bd.bb.Hits {
		if h.Bridged {
			continue
		}
		if h.Flag&0x100 != 0 {
			continue
		}
		if _, ok := bd.br.Breads[h.Qname]; ok {
			continue
		}
		v := decodeVlist(h.Vlist)
		for k := 0; k+1 < len(v); k++ {
			xy := [2]int{v[k], v[k+1]}
			m[xy] = append(m[xy], h)
		}
	}

	for xy, v := range m {
		if len(v) < bd.cfg.MinSpliceBoundaryHits {
			continue
		}
		rid1, rid2 := xy[0], xy[1]
		if rid1 >= rid2 {
			continue
		}
		pexons1 := regions[rid1].Pexons
		pexons2 := regions[rid2].Pexons
		if len(pexons1) == 0 || len(pexons2) == 0 {
			continue
		}

		// an edge always connects region1's last pexon to region2's first
		pe1 := &pexons1[len(pexons1)-1]
		pe2 := &pexons2[0]
		pid1, pid2 := pe1.Pid, pe2.Pid
		if pid1 < 0 || pid2 < 0 || pid1 >= pid2 {
			continue
		}
		if !bd.Pexons[pid1].Rpos.SamePos(regions[rid1].Rpos) {
			continue
		}
		if !bd.Pexons[pid2].Lpos.SamePos(regions[rid2].Lpos) {
			continue
		}

		s0, s1, s2 := 0, 0, 0
		for _, h := range v {
			switch h.Xs {
			case '.':
				s0++
			case '+':
				s1++
			case '-':
				s2++
			}
		}
		bd.jset[[2]int{pid1, pid2}] = jsetEntry{count: len(v), strand: majorityStrand(s0, s1, s2)}
	}
}

// alignHitPexons expands an unbridged hit's region list into pexon pids
func (bd *Bundle) alignHitPexons(h *Hit) []int {
	var sp2 []int
	for _, k := range decodeVlist(h.Vlist) {
		r := &bd.br.Regions[k]
		if len(r.Pexons) == 0 {
			return nil
		}
		for i := range r.Pexons {
			sp2 = append(sp2, r.Pexons[i].Pid)
		}
	}
	return sp2
}

// alignFragmentPexons expands a bridged fragment's region path into pexon
// pids
func (bd *Bundle) alignFragmentPexons(fr *Fragment) []int {
	var sp2 []int
	for _, k := range bd.br.getSplicesRegionIndex(fr) {
		r := &bd.br.Regions[k]
		if len(r.Pexons) == 0 {
			return nil
		}
		for i := range r.Pexons {
			sp2 = append(sp2, r.Pexons[i].Pid)
		}
	}
	return sp2
}

// buildSpliceGraph assembles the vertex-per-pexon graph with junction and
// boundary edges
func (bd *Bundle) buildSpliceGraph(mode int) {
	gr := NewSpliceGraph()
	bd.Gr = gr

	gr.AddVertex()
	vi0 := VertexInfo{Lpos: NewPos(bd.bb.Lpos), Rpos: NewPos(bd.bb.Lpos), AsType: StartOrSink}
	gr.SetVertexWeight(0, 0)
	gr.SetVertexInfo(0, vi0)

	for i := range bd.Pexons {
		r := &bd.Pexons[i]
		length := r.Rpos.P - r.Lpos.P
		gr.AddVertex()
		w := r.Ave
		if mode == 1 {
			w = r.Max
		}
		if w < bd.cfg.MinGuaranteedEdgeWeight {
			w = bd.cfg.MinGuaranteedEdgeWeight
		}
		gr.SetVertexWeight(i+1, w)

		vi := VertexInfo{
			Lpos:     r.Lpos,
			Rpos:     r.Rpos,
			Length:   length,
			Gt:       r.Gt,
			Stddev:   r.Dev,
			Regional: bd.regional[i],
			Type:     r.Type,
		}
		if gtAs(r.Gt) || (r.IsAllelic() && r.Gt == Unphased) {
			vi.AsType = AsDiploidVar
		} else {
			vi.AsType = NsNonvar
		}
		gr.SetVertexInfo(i+1, vi)
	}

	gr.AddVertex()
	tt := len(bd.Pexons) + 1
	vin := VertexInfo{Lpos: NewPos(bd.bb.Rpos), Rpos: NewPos(bd.bb.Rpos), AsType: StartOrSink}
	gr.SetVertexWeight(tt, 0)
	gr.SetVertexInfo(tt, vin)

	// junction edges, and AJ tagging of non-variant endpoints
	keys := make([][2]int, 0, len(bd.jset))
	for xy := range bd.jset {
		keys = append(keys, xy)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i][0] != keys[j][0] {
			return keys[i][0] < keys[j][0]
		}
		return keys[i][1] < keys[j][1]
	})
	for _, xy := range keys {
		it := bd.jset[xy]
		lpid, rpid := xy[0], xy[1]
		if lpid < 0 || rpid < 0 {
			continue
		}
		p := gr.AddEdge(lpid+1, rpid+1)
		gr.SetEdgeInfo(p, EdgeInfo{Weight: float64(it.count), Strand: it.strand})
		gr.SetEdgeWeight(p, float64(it.count))

		if !bd.cfg.DecomposeAsNeighbor {
			vx := gr.VertexInfoRef(lpid + 1)
			vy := gr.VertexInfoRef(rpid + 1)
			if vx.IsAsVertex() {
				if !vy.IsAsVertex() {
					vy.AsType = AjNonvar
				}
			} else if vy.IsAsVertex() {
				vx.AsType = AjNonvar
			}
		}
	}

	// boundary edges from source and to sink
	for i := range bd.Pexons {
		r := &bd.Pexons[i]
		if r.Ltype&StartBoundary != 0 {
			p := gr.AddEdge(0, i+1)
			w := bd.cfg.MinGuaranteedEdgeWeight
			if mode == 1 {
				w = r.Max
			}
			if mode == 2 {
				w = r.Ave
			}
			if i >= 1 && bd.Pexons[i-1].Rpos.P == r.Lpos.P {
				if mode == 1 {
					w -= bd.Pexons[i-1].Max
				}
				if mode == 2 {
					w -= bd.Pexons[i-1].Ave
				}
			}
			if w < bd.cfg.MinGuaranteedEdgeWeight {
				w = bd.cfg.MinGuaranteedEdgeWeight
			}
			gr.SetEdgeWeight(p, w)
			gr.SetEdgeInfo(p, EdgeInfo{Weight: w})
		}

		if r.Rtype&EndBoundary != 0 {
			p := gr.AddEdge(i+1, tt)
			w := bd.cfg.MinGuaranteedEdgeWeight
			if mode == 1 {
				w = r.Max
			}
			if mode == 2 {
				w = r.Ave
			}
			if i < len(bd.Pexons)-1 && bd.Pexons[i+1].Lpos.P == r.Rpos.P {
				if mode == 1 {
					w -= bd.Pexons[i+1].Max
				}
				if mode == 2 {
					w -= bd.Pexons[i+1].Ave
				}
			}
			if w < bd.cfg.MinGuaranteedEdgeWeight {
				w = bd.cfg.MinGuaranteedEdgeWeight
			}
			gr.SetEdgeWeight(p, w)
			gr.SetEdgeInfo(p, EdgeInfo{Weight: w})
		}
	}

	gr.Strand = bd.bb.Strand
	gr.Chrm = bd.bb.Chrm
}

// reviseSpliceGraph iterates the refinement heuristics to a fixed point
func (bd *Bundle) reviseSpliceGraph() {
	for {
		if bd.tackleFalseBoundaries() {
			continue
		}
		if bd.removeFalseBoundaries() {
			continue
		}
		if bd.removeInnerBoundaries() {
			continue
		}
		if bd.removeSmallExons() {
			continue
		}
		if bd.removeIntronContamination() {
			continue
		}
		if bd.removeSmallJunctions() {
			bd.refineSpliceGraph()
			continue
		}
		if bd.extendStartBoundaries() {
			continue
		}
		if bd.extendEndBoundaries() {
			continue
		}
		if bd.extendBoundaries() {
			bd.refineSpliceGraph()
			continue
		}
		if bd.keepSurvivingEdges() {
			bd.refineSpliceGraph()
			continue
		}
		break
	}
	bd.refineSpliceGraph()
}

// refineSpliceGraph clears vertices that kept edges on one side only
func (bd *Bundle) refineSpliceGraph() {
	gr := bd.Gr
	for {
		b := false
		for i := 1; i < gr.NumVertices()-1; i++ {
			if gr.Degree(i) == 0 {
				continue
			}
			if gr.InDegree(i) >= 1 && gr.OutDegree(i) >= 1 {
				continue
			}
			gr.ClearVertex(i)
			b = true
		}
		if !b {
			break
		}
	}
}

// extendStartBoundaries adds a source edge to vertices whose weight
// dominates their incoming flow
func (bd *Bundle) extendStartBoundaries() bool {
	gr := bd.Gr
	flag := false
	for i := 1; i < gr.NumVertices()-1; i++ {
		if _, ok := gr.Edge(0, i); ok {
			continue
		}
		wv := gr.GetVertexWeight(i)
		we := 0.0
		for _, e := range gr.InEdges(i) {
			we += e.W
		}
		if wv < we || wv < 10*we*we+10 {
			continue
		}
		ee := gr.AddEdge(0, i)
		gr.SetEdgeWeight(ee, wv-we)
		gr.SetEdgeInfo(ee, EdgeInfo{})
		if bd.cfg.Verbose >= 2 {
			vi := gr.GetVertexInfo(i)
			log.Debugf("extend start boundary: vertex = %d, wv = %.2f, we = %.2f, pos = %s", i, wv, we, vi.Lpos)
		}
		flag = true
	}
	return flag
}

// extendEndBoundaries adds a sink edge to vertices whose weight dominates
// their outgoing flow
func (bd *Bundle) extendEndBoundaries() bool {
	gr := bd.Gr
	flag := false
	for i := 1; i < gr.NumVertices()-1; i++ {
		if _, ok := gr.Edge(i, gr.NumVertices()-1); ok {
			continue
		}
		wv := gr.GetVertexWeight(i)
		we := 0.0
		for _, e := range gr.OutEdges(i) {
			we += e.W
		}
		if wv < we || wv < 10*we*we+10 {
			continue
		}
		ee := gr.AddEdge(i, gr.NumVertices()-1)
		gr.SetEdgeWeight(ee, wv-we)
		gr.SetEdgeInfo(ee, EdgeInfo{})
		if bd.cfg.Verbose >= 2 {
			vi := gr.GetVertexInfo(i)
			log.Debugf("extend end boundary: vertex = %d, wv = %.2f, we = %.2f, pos = %s", i, wv, we, vi.Rpos)
		}
		flag = true
	}
	return flag
}

// extendBoundaries re-routes a gap-crossing edge to the source or sink when
// one endpoint's weight dominates it
func (bd *Bundle) extendBoundaries() bool {
	gr := bd.Gr
	for _, e := range gr.Edges() {
		s := e.S
		t := e.T
		p := gr.GetVertexInfo(t).Lpos.P - gr.GetVertexInfo(s).Rpos.P
		we := e.W
		ws := gr.GetVertexWeight(s)
		wt := gr.GetVertexWeight(t)

		if p <= 0 {
			continue
		}
		if s == 0 {
			continue
		}
		if t == gr.NumVertices()-1 {
			continue
		}

		b := false
		if gr.OutDegree(s) == 1 && ws >= 10.0*we*we+10.0 {
			b = true
		}
		if gr.InDegree(t) == 1 && wt >= 10.0*we*we+10.0 {
			b = true
		}
		if !b {
			continue
		}

		if gr.OutDegree(s) == 1 {
			ee := gr.AddEdge(s, gr.NumVertices()-1)
			gr.SetEdgeWeight(ee, ws)
			gr.SetEdgeInfo(ee, EdgeInfo{})
		}
		if gr.InDegree(t) == 1 {
			ee := gr.AddEdge(0, t)
			gr.SetEdgeWeight(ee, wt)
			gr.SetEdgeInfo(ee, EdgeInfo{})
		}
		gr.RemoveEdge(e)
		return true
	}
	return false
}

// computeMaximalEdges picks the heaviest edge of each weakly connected
// component among the internal edges
func (bd *Bundle) computeMaximalEdges() []*Edge {
	gr := bd.Gr
	type pde struct {
		w float64
		e *Edge
	}
	var ve []pde

	// union-find over internal vertices
	parent := make([]int, gr.NumVertices())
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(x, y int) {
		parent[find(x)] = find(y)
	}

	for _, e := range gr.Edges() {
		if e.S == 0 || e.T == gr.NumVertices()-1 {
			continue
		}
		union(e.S, e.T)
		ve = append(ve, pde{w: e.W, e: e})
	}

	sort.Slice(ve, func(i, j int) bool {
		if ve[i].w != ve[j].w {
			return ve[i].w < ve[j].w
		}
		return ve[i].e.ID < ve[j].e.ID
	})

	var x []*Edge
	sc := make(map[int]struct{})
	for i := len(ve) - 1; i >= 0; i-- {
		e := ve[i].e
		if e.W < 1.5 {
			break
		}
		c := find(e.S)
		if _, ok := sc[c]; ok {
			continue
		}
		x = append(x, e)
		sc[c] = struct{}{}
	}
	return x
}

// keepSurvivingEdges retains heavy edges plus one maximal edge per
// component, then patches vertices that lost a whole side back in
func (bd *Bundle) keepSurvivingEdges() bool {
	gr := bd.Gr
	se := make(map[*Edge]struct{})
	sv1 := bitset.New(uint(gr.NumVertices()))
	sv2 := bitset.New(uint(gr.NumVertices()))

	for _, e := range gr.Edges() {
		if e.W < bd.cfg.MinSurvivingEdgeWeight {
			continue
		}
		se[e] = struct{}{}
		sv1.Set(uint(e.T))
		sv2.Set(uint(e.S))
	}

	for _, ee := range bd.computeMaximalEdges() {
		se[ee] = struct{}{}
		sv1.Set(uint(ee.T))
		sv2.Set(uint(ee.S))
	}

	for {
		b := false
		for e := range se {
			s := e.S
			t := e.T
			if !sv1.Test(uint(s)) && s != 0 {
				ee := gr.MaxInEdge(s)
				if ee == nil {
					panic("surviving vertex lost all in-edges")
				}
				se[ee] = struct{}{}
				sv1.Set(uint(s))
				sv2.Set(uint(ee.S))
				b = true
			}
			if !sv2.Test(uint(t)) && t != gr.NumVertices()-1 {
				ee := gr.MaxOutEdge(t)
				if ee == nil {
					panic("surviving vertex lost all out-edges")
				}
				se[ee] = struct{}{}
				sv1.Set(uint(ee.T))
				sv2.Set(uint(t))
				b = true
			}
			if b {
				break
			}
		}
		if !b {
			break
		}
	}

	var ve []*Edge
	for _, e := range gr.Edges() {
		if _, ok := se[e]; ok {
			continue
		}
		ve = append(ve, e)
	}
	for _, e := range ve {
		if bd.cfg.Verbose >= 2 {
			log.Debugf("remove edge (%d, %d), weight = %.2f", e.S, e.T, e.W)
		}
		gr.RemoveEdge(e)
	}
	return len(ve) >= 1
}

// removeSmallExons tombstones short boundary exons without real adjacency
func (bd *Bundle) removeSmallExons() bool {
	gr := bd.Gr
	flag := false
	for i := 1; i < gr.NumVertices()-1; i++ {
		vi := gr.GetVertexInfo(i)
		if vi.Type == EmptyVertex {
			continue
		}
		p1 := vi.Lpos.P
		p2 := vi.Rpos.P
		if p2-p1 >= bd.cfg.MinExonLength {
			continue
		}
		if gr.Degree(i) <= 0 {
			continue
		}

		b := true
		for _, e := range gr.InEdges(i) {
			s := e.S
			if s != 0 && gr.GetVertexInfo(s).Rpos.P == p1 {
				b = false
				break
			}
		}
		if b {
			for _, e := range gr.OutEdges(i) {
				t := e.T
				if t != gr.NumVertices()-1 && gr.GetVertexInfo(t).Lpos.P == p2 {
					b = false
					break
				}
			}
		}
		if !b {
			continue
		}

		// only boundary small exons are candidates
		_, hasSrc := gr.Edge(0, i)
		_, hasSnk := gr.Edge(i, gr.NumVertices()-1)
		if !hasSrc && !hasSnk {
			continue
		}

		if bd.cfg.Verbose >= 2 {
			log.Debugf("remove small exon: length = %d, pos = %d-%d", p2-p1, p1, p2)
		}
		vi.Type = EmptyVertex
		gr.SetVertexInfo(i, vi)
		flag = true
	}
	return flag
}

// removeSmallJunctions drops junctions dwarfed by their adjacent weights
func (bd *Bundle) removeSmallJunctions() bool {
	gr := bd.Gr
	se := make(map[*Edge]struct{})
	for i := 1; i < gr.NumVertices()-1; i++ {
		if gr.Degree(i) <= 0 {
			continue
		}
		vi := gr.GetVertexInfo(i)
		p1 := vi.Lpos.P
		p2 := vi.Rpos.P
		wi := gr.GetVertexWeight(i)

		ws := 0.0
		for _, e := range gr.InEdges(i) {
			s := e.S
			if s == 0 {
				continue
			}
			if gr.GetVertexInfo(s).Rpos.P != p1 {
				continue
			}
			w := gr.GetVertexWeight(s)
			if w > ws {
				ws = w
			}
		}
		for _, e := range gr.InEdges(i) {
			s := e.S
			w := e.W
			if s == 0 {
				continue
			}
			if gr.GetVertexInfo(s).Rpos.P == p1 {
				continue
			}
			if ws < 2.0*w*w+18.0 {
				continue
			}
			if wi < 2.0*w*w+18.0 {
				continue
			}
			se[e] = struct{}{}
		}

		wt := 0.0
		for _, e := range gr.OutEdges(i) {
			t := e.T
			if t == gr.NumVertices()-1 {
				continue
			}
			if gr.GetVertexInfo(t).Lpos.P != p2 {
				continue
			}
			w := gr.GetVertexWeight(t)
			if w > wt {
				wt = w
			}
		}
		for _, e := range gr.OutEdges(i) {
			t := e.T
			w := e.W
			if t == gr.NumVertices()-1 {
				continue
			}
			if gr.GetVertexInfo(t).Lpos.P == p2 {
				continue
			}
			if wt < 2.0*w*w+18.0 {
				continue
			}
			if wi < 2.0*w*w+18.0 {
				continue
			}
			se[e] = struct{}{}
		}
	}

	if len(se) == 0 {
		return false
	}
	for e := range se {
		if bd.cfg.Verbose >= 2 {
			v1 := gr.GetVertexInfo(e.S)
			v2 := gr.GetVertexInfo(e.T)
			log.Debugf("remove small junction: pos = %s-%s", v1.Rpos, v2.Lpos)
		}
		gr.RemoveEdge(e)
	}
	return true
}

// removeInnerBoundaries tombstones flat 1-in/1-out vertices hanging off
// the source or sink
func (bd *Bundle) removeInnerBoundaries() bool {
	gr := bd.Gr
	flag := false
	n := gr.NumVertices() - 1
	for i := 1; i < n; i++ {
		vi := gr.GetVertexInfo(i)
		if vi.Type == EmptyVertex {
			continue
		}
		if gr.InDegree(i) != 1 || gr.OutDegree(i) != 1 {
			continue
		}
		e1 := gr.InEdges(i)[0]
		e2 := gr.OutEdges(i)[0]
		s := e1.S
		t := e2.T

		if s != 0 && t != n {
			continue
		}
		if s != 0 && gr.OutDegree(s) == 1 {
			continue
		}
		if t != n && gr.InDegree(t) == 1 {
			continue
		}
		if vi.Stddev >= 0.01 {
			continue
		}

		if bd.cfg.Verbose >= 2 {
			log.Debugf("remove inner boundary: vertex = %d, weight = %.2f, pos = %s-%s",
				i, gr.GetVertexWeight(i), vi.Lpos, vi.Rpos)
		}
		vi.Type = EmptyVertex
		gr.SetVertexInfo(i, vi)
		flag = true
	}
	return flag
}

// removeIntronContamination tombstones vertices explained by a spanning
// junction's intron
func (bd *Bundle) removeIntronContamination() bool {
	gr := bd.Gr
	flag := false
	for i := 1; i < gr.NumVertices()-1; i++ {
		vi := gr.GetVertexInfo(i)
		if vi.Type == EmptyVertex {
			continue
		}
		if gr.InDegree(i) != 1 || gr.OutDegree(i) != 1 {
			continue
		}
		e1 := gr.InEdges(i)[0]
		e2 := gr.OutEdges(i)[0]
		s := e1.S
		t := e2.T
		wv := gr.GetVertexWeight(i)

		if s == 0 {
			continue
		}
		if t == gr.NumVertices()-1 {
			continue
		}
		if gr.GetVertexInfo(s).Rpos.P != vi.Lpos.P {
			continue
		}
		if gr.GetVertexInfo(t).Lpos.P != vi.Rpos.P {
			continue
		}
		ee, ok := gr.Edge(s, t)
		if !ok {
			continue
		}
		we := ee.W
		if wv > we {
			continue
		}
		if wv > bd.cfg.MaxIntronContaminationCoverage {
			continue
		}

		if bd.cfg.Verbose >= 2 {
			log.Debugf("clear intron contamination %d, weight = %.2f, edge weight = %.2f", i, wv, we)
		}
		vi.Type = EmptyVertex
		gr.SetVertexInfo(i, vi)
		flag = true
	}
	return flag
}

// removeFalseBoundaries uses paired-end insert-size anomalies of
// non-bridged fragments to tombstone suspect start/end vertices
func (bd *Bundle) removeFalseBoundaries() bool {
	gr := bd.Gr
	fb1 := make(map[int]int) // suspected false end
	fb2 := make(map[int]int) // suspected false start

	for i := range bd.br.Fragments {
		fr := &bd.br.Fragments[i]
		if len(fr.Paths) == 1 && fr.Paths[0].Type == 1 {
			continue
		}
		if _, ok := bd.br.Breads[fr.H1.Qname]; ok {
			continue
		}

		v := bd.alignFragmentPexons(fr)
		if len(v) <= 1 {
			continue
		}

		var tlen int32
		offset1 := fr.Lpos - bd.Pexons[v[0]].Lpos.P
		offset2 := bd.Pexons[v[len(v)-1]].Rpos.P - fr.Rpos
		for _, k := range v {
			tlen += bd.Pexons[k].Rpos.P - bd.Pexons[k].Lpos.P
		}
		tlen -= offset1
		tlen -= offset2

		u1 := gr.LocateVertex(fr.H1.Rpos - 1)
		u2 := gr.LocateVertex(fr.H2.Pos)
		if u1 < 0 || u2 < 0 || u1 >= u2 {
			continue
		}

		types := 0
		for _, p := range fr.Paths {
			types += p.Type
		}
		use := true
		if len(fr.Paths) == 1 && types == 2 && tlen > 10000 {
			use = false
		}
		if !use {
			continue
		}
		fb1[u1]++
		fb2[u2]++
	}

	b := false
	for x, c := range fb1 {
		vi := gr.GetVertexInfo(x)
		if vi.Type == EmptyVertex {
			continue
		}
		if _, ok := gr.Edge(x, gr.NumVertices()-1); !ok {
			continue
		}
		w := gr.GetVertexWeight(x)
		s := math.Log(1+w) - math.Log(1+float64(c))
		if s > 1.5 {
			continue
		}
		if bd.cfg.Verbose >= 2 {
			log.Debugf("detect false end boundary %s with %d reads, vertex = %d, w = %.2f", vi.Rpos, c, x, w)
		}
		vi.Type = EmptyVertex
		gr.SetVertexInfo(x, vi)
		b = true
	}
	for x, c := range fb2 {
		vi := gr.GetVertexInfo(x)
		if vi.Type == EmptyVertex {
			continue
		}
		if _, ok := gr.Edge(0, x); !ok {
			continue
		}
		w := gr.GetVertexWeight(x)
		s := math.Log(1+w) - math.Log(1+float64(c))
		if s > 1.5 {
			continue
		}
		if bd.cfg.Verbose >= 2 {
			log.Debugf("detect false start boundary %s with %d reads, vertex = %d, w = %.2f", vi.Lpos, c, x, w)
		}
		vi.Type = EmptyVertex
		gr.SetVertexInfo(x, vi)
		b = true
	}
	return b
}

// tackleFalseBoundaries breaks start/end boundaries inside fragments whose
// type-2 bridge is longer than the spliced distance between the mates
func (bd *Bundle) tackleFalseBoundaries() bool {
	gr := bd.Gr
	b := false
	points := make([]int, len(bd.Pexons))
	for i := range bd.br.Fragments {
		fr := &bd.br.Fragments[i]
		if len(fr.Paths) != 1 {
			continue
		}
		if fr.Paths[0].Type != 2 {
			continue
		}
		if _, ok := bd.br.Breads[fr.H1.Qname]; ok {
			continue
		}

		v := bd.alignFragmentPexons(fr)
		if len(v) <= 1 {
			continue
		}

		offset1 := fr.Lpos - bd.Pexons[v[0]].Lpos.P
		offset2 := bd.Pexons[v[len(v)-1]].Rpos.P - fr.Rpos
		var tlen int32
		for _, k := range v {
			tlen += bd.Pexons[k].Rpos.P - bd.Pexons[k].Lpos.P
		}
		tlen -= offset1
		tlen -= offset2

		if float64(tlen) < float64(bd.cfg.InsertsizeLow)/2.0 {
			continue
		}
		if float64(tlen) > float64(bd.cfg.InsertsizeHigh)*2.0 {
			continue
		}
		if tlen >= fr.Paths[0].Length {
			continue
		}

		for k := 0; k+1 < len(v); k++ {
			px := &bd.Pexons[v[k]]
			py := &bd.Pexons[v[k+1]]
			if px.Rtype&EndBoundary != 0 {
				points[v[k]]++
			}
			if py.Ltype&StartBoundary != 0 {
				points[v[k+1]]++
			}
		}
	}

	for k, c := range points {
		if c <= 0 {
			continue
		}
		vi := gr.GetVertexInfo(k + 1)
		if vi.Type == EmptyVertex {
			continue
		}
		if _, ok := gr.Edge(k+1, gr.NumVertices()-1); !ok {
			continue
		}
		w := gr.GetVertexWeight(k + 1)
		s := math.Log(1+w) - math.Log(1+float64(c))
		if s > 1.5 {
			continue
		}
		vi.Type = EmptyVertex
		gr.SetVertexInfo(k+1, vi)
		b = true
	}
	for k, c := range points {
		if c <= 0 {
			continue
		}
		vi := gr.GetVertexInfo(k + 1)
		if vi.Type == EmptyVertex {
			continue
		}
		if _, ok := gr.Edge(0, k+1); !ok {
			continue
		}
		w := gr.GetVertexWeight(k + 1)
		s := math.Log(1+w) - math.Log(1+float64(c))
		if s > 1.5 {
			continue
		}
		vi.Type = EmptyVertex
		gr.SetVertexInfo(k+1, vi)
		b = true
	}
	return b
}

// buildHyperSet converts fragment paths and unbridged hits into the
// node-list form of the hyper-set
func (bd *Bundle) buildHyperSet() {
	type entry struct {
		v []int
		c int
	}
	m := make(map[string]*entry)
	add := func(v []int, c int) {
		k := intsKey(v)
		if e, ok := m[k]; ok {
			e.c += c
		} else {
			m[k] = &entry{v: v, c: c}
		}
	}

	for i := range bd.br.Fragments {
		fr := &bd.br.Fragments[i]
		if fr.Type != 0 {
			continue
		}
		if len(fr.Paths) != 1 || fr.Paths[0].Type != 1 {
			continue
		}
		v := bd.alignFragmentPexons(fr)
		add(v, fr.Cnt)
	}

	for _, h := range bd.bb.Hits {
		if h.Bridged {
			continue
		}
		v := bd.alignHitPexons(h)
		add(v, 1)
	}

	bd.Hs = NewHyperSet()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		e := m[k]
		if len(e.v) >= 2 {
			bd.Hs.AddNodeList(e.v, e.c)
		}
	}
}
