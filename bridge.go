/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"sort"
)

// UMI-linked fragment chaining is specified but its upstream design is
// unsettled; the gate mirrors that state.
const enableUMIChaining = false

// FragPath is one bridging solution of a fragment. Type 1 paths have read
// support on every step; type 2 paths include at least one step of bare
// coordinate adjacency.
type FragPath struct {
	Type   int
	V      []int // run-length encoded region indices
	Length int32
}

// Fragment is a paired (or UMI-linked) read cluster
type Fragment struct {
	H1   *Hit
	H2   *Hit
	Lpos int32
	Rpos int32
	Type int // 0: paired-end, 1: UMI, 2: both
	Cnt  int

	Paths []FragPath

	K1l, K1r int32 // offsets of mate 1 into its terminal regions
	K2l, K2r int32 // offsets of mate 2 into its terminal regions
	B1, B2   bool  // terminal-region cleanliness

	Gt         Genotype
	UmiCluster int
}

// BundleBridge infers junctions and regions from a bundle's hits, aligns
// every hit to the region array, and pairs hits into bridged fragments.
type BundleBridge struct {
	bb   *BundleBase
	cfg  *Config
	vmap *VcfData

	RefTrsts  []Transcript
	Junctions []Junction
	Regions   []Region
	Fragments []Fragment
	Breads    map[string]struct{}
	umiLink   [][]int
}

// NewBundleBridge wires a bridge onto a finished bundle base
func NewBundleBridge(bb *BundleBase, vmap *VcfData, cfg *Config) *BundleBridge {
	return &BundleBridge{
		bb:     bb,
		cfg:    cfg,
		vmap:   vmap,
		Breads: make(map[string]struct{}),
	}
}

// Build runs the bridge stages in order
func (br *BundleBridge) Build() error {
	br.buildJunctions()
	br.extendJunctions()
	if err := br.buildRegions(); err != nil {
		return err
	}
	if err := br.alignHitsTranscripts(); err != nil {
		return err
	}
	br.buildFragments()

	// allele-specific bridging never crosses genotype lines; unphased
	// fragments remain eligible in the last pass
	br.bridge(Allele1)
	br.bridge(Allele2)
	br.bridge(Unphased)
	return nil
}

// buildJunctions groups observed splice pairs and votes their strand
func (br *BundleBridge) buildJunctions() {
	br.Junctions = br.Junctions[:0]
	m := make(map[AsPos][]int)
	for i, h := range br.bb.Hits {
		for _, p := range h.Spos {
			m[p] = append(m[p], i)
		}
	}

	keys := make([]AsPos, 0, len(m))
	for p := range m {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	for _, p := range keys {
		v := m[p]
		if len(v) < br.cfg.MinSpliceBoundaryHits {
			continue
		}
		s0, s1, s2, nm := 0, 0, 0, 0
		for _, k := range v {
			h := br.bb.Hits[k]
			nm += h.Nm
			switch h.Xs {
			case '.':
				s0++
			case '+':
				s1++
			case '-':
				s2++
			}
		}
		jc := NewJunction(p, len(v))
		jc.Nm = nm
		jc.Strand = majorityStrand(s0, s1, s2)
		br.Junctions = append(br.Junctions, jc)
	}
	sort.Slice(br.Junctions, func(i, j int) bool { return br.Junctions[i].Less(br.Junctions[j]) })
}

// extendJunctions folds reference-annotation introns wholly inside the
// bundle in with negative support counts marking their origin
func (br *BundleBridge) extendJunctions() {
	m := make(map[AsPos][]int)
	for i, t := range br.RefTrsts {
		for k := 0; k+1 < len(t.Exons); k++ {
			l := t.Exons[k].R.P
			r := t.Exons[k+1].L.P
			if l <= br.bb.Lpos || r >= br.bb.Rpos {
				continue
			}
			p := NewAsPos(l, r, NonAllele)
			m[p] = append(m[p], i)
		}
	}
	keys := make([]AsPos, 0, len(m))
	for p := range m {
		keys = append(keys, p)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	for _, p := range keys {
		v := m[p]
		s0, s1, s2 := 0, 0, 0
		for _, k := range v {
			switch br.RefTrsts[k].Strand {
			case '.':
				s0++
			case '+':
				s1++
			case '-':
				s2++
			}
		}
		jc := NewJunction(p, -len(v))
		jc.Strand = majorityStrand(s0, s1, s2)
		br.Junctions = append(br.Junctions, jc)
	}
}

// buildRegions partitions the bundle at splice sites, variant edges and
// bundle ends; a variant locus yields one parallel region per observed
// allele string
func (br *BundleBridge) buildRegions() error {
	posTypes := make(map[int32]int)
	posTypes[br.bb.Lpos] |= StartBoundary
	posTypes[br.bb.Rpos] |= EndBoundary
	for _, jc := range br.Junctions {
		posTypes[jc.Lpos.P] |= LeftSplice
		posTypes[jc.Rpos.P] |= RightSplice
	}

	// observed allele strings per variant locus
	type locus struct{ l, r int32 }
	posesSeqs := make(map[locus]map[string]int)
	for _, h := range br.bb.Hits {
		for _, p := range h.Apos {
			lc := locus{l: high32(p.P64), r: low32(p.P64)}
			if posesSeqs[lc] == nil {
				posesSeqs[lc] = make(map[string]int)
			}
			posesSeqs[lc][p.Ale]++
		}
	}
	for lc := range posesSeqs {
		posTypes[lc.l] |= AllelicLeftSplice
		posTypes[lc.r] |= AllelicRightSplice
	}

	ps := make([]int32, 0, len(posTypes))
	for p := range posTypes {
		ps = append(ps, p)
	}
	sortInt32s(ps)

	loci := make([]locus, 0, len(posesSeqs))
	for lc := range posesSeqs {
		loci = append(loci, lc)
	}
	sort.Slice(loci, func(i, j int) bool {
		if loci[i].l != loci[j].l {
			return loci[i].l < loci[j].l
		}
		return loci[i].r < loci[j].r
	})

	br.Regions = br.Regions[:0]
	i2 := 0
	for i1 := 0; i1+1 < len(ps); i1++ {
		l1, r1 := ps[i1], ps[i1+1]
		ltype, rtype := posTypes[l1], posTypes[r1]

		if i2 >= len(loci) || loci[i2].l >= r1 {
			rr := NewRegion(NewPos(l1), NewPos(r1), ltype, rtype, Unphased)
			ave, dev, maxc := br.bb.Mmap.EvaluateRectangle(l1, r1)
			rr.Ave, rr.Dev, rr.Max = ave, dev, maxc
			br.Regions = append(br.Regions, rr)
			continue
		}

		lc := loci[i2]
		if lc.l != l1 || lc.r != r1 {
			return bundleErrorf("variant locus %d-%d does not align with region boundaries %d-%d", lc.l, lc.r, l1, r1)
		}
		ales := make([]string, 0, len(posesSeqs[lc]))
		for a := range posesSeqs[lc] {
			ales = append(ales, a)
		}
		sort.Strings(ales)
		for _, a := range ales {
			c := posesSeqs[lc][a]
			gt := br.vmap.GetGenotype(br.bb.Chrm, lc.l, a)
			rr := NewRegion(NewAsPos32(lc.l, a), NewAsPos32(lc.r, a), ltype, rtype, gt)
			rr.AssignAsCov(float64(c), 0.01, float64(c))
			br.Regions = append(br.Regions, rr)
		}
		i2++
	}
	if i2 != len(loci) {
		return bundleErrorf("%d variant loci fell outside the region sweep", len(loci)-i2)
	}

	sort.Slice(br.Regions, func(i, j int) bool { return br.Regions[i].Less(&br.Regions[j]) })

	// successive regions are adjacent or parallel alleles of one locus
	for k := 1; k < len(br.Regions); k++ {
		prev, cur := &br.Regions[k-1], &br.Regions[k]
		continuous := prev.Rpos.SamePos(cur.Lpos)
		same := prev.Lpos.SamePos(cur.Lpos) && prev.Rpos.SamePos(cur.Rpos)
		if !continuous && !same {
			return bundleErrorf("regions %s and %s are neither adjacent nor parallel", prev, cur)
		}
	}
	return nil
}

// alignHitsTranscripts maps every hit onto region indices and run-length
// encodes the result
func (br *BundleBridge) alignHitsTranscripts() error {
	m1 := make(map[AsPos32]int)
	m2 := make(map[AsPos32]int)
	for k := range br.Regions {
		m1[br.Regions[k].Lpos] = k
		m2[br.Regions[k].Rpos] = k
	}

	for _, h := range br.bb.Hits {
		vv, err := br.alignHit(m1, m2, h)
		if err != nil {
			return err
		}
		h.Vlist = encodeVlist(vv)
	}
	return nil
}

// alignHit resolves one hit's aligned intervals to a region index list
func (br *BundleBridge) alignHit(m1, m2 map[AsPos32]int, h *Hit) ([]int, error) {
	v := h.AlignedIntervals()
	if len(v) == 0 && !h.HasVariant() {
		return nil, nil
	}

	type pi struct{ first, second int }
	sp := make([]pi, len(v))

	p1 := v[0].High()
	p2 := v[len(v)-1].Low()

	sp[0].first = br.locateRegionLeft(m1, p1)
	for k := 1; k < len(v); k++ {
		q := v[k].High()
		idx, ok := m1[q]
		if !ok {
			return nil, bundleErrorf("interval start %s of hit %s not at a region boundary", q, h.Qname)
		}
		sp[k].first = idx
	}

	sp[len(sp)-1].second = br.locateRegionRight(m2, p2)
	for k := 0; k+1 < len(v); k++ {
		q := v[k].Low()
		idx, ok := m2[q]
		if !ok {
			return nil, bundleErrorf("interval end %s of hit %s not at a region boundary", q, h.Qname)
		}
		sp[k].second = idx
	}

	var vv []int
	for k := range sp {
		if sp[k].first < 0 || sp[k].second < 0 {
			return nil, nil
		}
		if sp[k].first > sp[k].second {
			return nil, bundleErrorf("inverted region span %d..%d for hit %s", sp[k].first, sp[k].second, h.Qname)
		}
		if k > 0 && sp[k-1].second >= sp[k].first {
			return nil, bundleErrorf("overlapping region spans for hit %s", h.Qname)
		}
		for j := sp[k].first; j <= sp[k].second; j++ {
			vv = append(vv, j)
			if br.Regions[j].IsAllelic() && sp[k].first != sp[k].second {
				return nil, bundleErrorf("allelic region %d spanned as a range by hit %s", j, h.Qname)
			}
		}
	}
	return vv, nil
}

// locateRegionLeft resolves an interval start: allelic positions must be
// exact region boundaries, others are searched
func (br *BundleBridge) locateRegionLeft(m1 map[AsPos32]int, x AsPos32) int {
	if len(br.Regions) == 0 {
		return -1
	}
	if x.IsAllelic() {
		if k, ok := m1[x]; ok {
			return k
		}
		return -1
	}
	return br.locateRegion(x)
}

// locateRegionRight resolves an interval end symmetrically
func (br *BundleBridge) locateRegionRight(m2 map[AsPos32]int, x AsPos32) int {
	if len(br.Regions) == 0 {
		return -1
	}
	if x.IsAllelic() {
		if k, ok := m2[x]; ok {
			return k
		}
		return -1
	}
	return br.locateRegion(NewPos(x.P - 1))
}

// locateRegion binary-searches the region containing a non-allelic position
func (br *BundleBridge) locateRegion(x AsPos32) int {
	lo, hi := 0, len(br.Regions)
	for lo < hi {
		m := (lo + hi) / 2
		r := &br.Regions[m]
		if x.RightSameTo(r.Lpos) && x.LeftTo(r.Rpos) {
			return m
		}
		if x.LeftTo(r.Lpos) {
			hi = m
		} else {
			lo = m + 1
		}
	}
	return -1
}

// buildFragments pairs mates through a bucketed (qhash, pos, isize) index
// and assigns each fragment its genotype
func (br *BundleBridge) buildFragments() {
	const maxMisalignment1 = 20
	const maxMisalignment2 = 10

	br.Fragments = br.Fragments[:0]
	hits := br.bb.Hits
	if len(hits) == 0 {
		return
	}

	maxIndex := min(len(hits)+1, 1000000)
	vv := make([][]int, maxIndex)

	for i, h := range hits {
		if h.Isize >= 0 {
			continue
		}
		if len(h.Vlist) == 0 {
			continue
		}
		k := (int(h.Qhash%uint64(maxIndex)) + int(h.Pos)%maxIndex + int(0-h.Isize)%maxIndex) % maxIndex
		vv[k] = append(vv[k], i)
	}

	for i, h := range hits {
		if h.Paired || h.Isize <= 0 || len(h.Vlist) == 0 {
			continue
		}
		k := (int(h.Qhash%uint64(maxIndex)) + int(h.Mpos)%maxIndex + int(h.Isize)%maxIndex) % maxIndex

		x := -1
		for _, j := range vv[k] {
			z := hits[j]
			if z.Paired || z.Pos != h.Mpos || z.Isize+h.Isize != 0 {
				continue
			}
			if z.Qhash != h.Qhash || z.Qname != h.Qname {
				continue
			}
			x = j
			break
		}
		if x == -1 || len(hits[x].Vlist) == 0 {
			continue
		}

		fr := Fragment{H1: h, H2: hits[x], Cnt: 1}
		h.Pi, hits[x].Pi = x, i
		h.Fidx, hits[x].Fidx = len(br.Fragments), len(br.Fragments)
		fr.Type = 0
		fr.Lpos = h.Pos
		fr.Rpos = hits[x].Rpos

		v1 := decodeVlist(h.Vlist)
		v2 := decodeVlist(hits[x].Vlist)
		fr.K1l = fr.H1.Pos - br.Regions[v1[0]].Lpos.P
		fr.K1r = br.Regions[v1[len(v1)-1]].Rpos.P - fr.H1.Rpos
		fr.K2l = fr.H2.Pos - br.Regions[v2[0]].Lpos.P
		fr.K2r = br.Regions[v2[len(v2)-1]].Rpos.P - fr.H2.Rpos

		fr.B1 = true
		last1 := v1[len(v1)-1]
		if len(v1) <= 1 {
			fr.B1 = false
		} else if v1[len(v1)-2] == last1-1 {
			if fr.H1.Rpos-br.Regions[last1].Lpos.P > maxMisalignment1+int32(fr.H1.Nm) {
				fr.B1 = false
			}
		} else {
			if fr.H1.Rpos-br.Regions[last1].Lpos.P > maxMisalignment2+int32(fr.H1.Nm) {
				fr.B1 = false
			}
		}

		fr.B2 = true
		first2 := v2[0]
		if len(v2) <= 1 {
			fr.B2 = false
		} else if v2[1] == first2+1 {
			if br.Regions[first2].Rpos.P-fr.H2.Pos > maxMisalignment1+int32(fr.H2.Nm) {
				fr.B2 = false
			}
		} else {
			if br.Regions[first2].Rpos.P-fr.H2.Pos > maxMisalignment2+int32(fr.H2.Nm) {
				fr.B2 = false
			}
		}

		fr.Gt = br.fragmentGenotype(v1, v2)

		br.Fragments = append(br.Fragments, fr)
		h.Paired = true
		hits[x].Paired = true
	}

	if enableUMIChaining {
		br.buildUMIFragments()
	}
}

// fragmentGenotype tallies allele evidence across the regions both mates
// span; a clear majority picks the allele, anything else stays unphased
func (br *BundleBridge) fragmentGenotype(v1, v2 []int) Genotype {
	seen := make(map[int]struct{})
	mm := make(map[Genotype]int)
	for _, v := range [][]int{v1, v2} {
		for _, r := range v {
			if _, ok := seen[r]; ok {
				continue
			}
			seen[r] = struct{}{}
			mm[br.Regions[r].Gt]++
		}
	}
	a1, a2 := mm[Allele1], mm[Allele2]
	total := float64(a1 + a2)
	switch {
	case a1 == 0 && a2 == 0:
		return Unphased
	case float64(a1) > total*br.cfg.MajorGtThreshold:
		return Allele1
	case float64(a2) > total*br.cfg.MajorGtThreshold:
		return Allele2
	}
	return Unphased
}

// buildUMIFragments chains hits sharing a UMI into fragments. Unreachable
// until enableUMIChaining is turned on.
func (br *BundleBridge) buildUMIFragments() {
	hits := br.bb.Hits
	var ub []string
	var hlist [][]int

	for i, h := range hits {
		if h.Flag&0x4 != 0 || h.Umi == "" {
			continue
		}
		idx := -1
		for j := range ub {
			if ub[j] == h.Umi {
				idx = j
				break
			}
		}
		if idx == -1 {
			ub = append(ub, h.Umi)
			hlist = append(hlist, []int{i})
		} else {
			hlist[idx] = append(hlist[idx], i)
		}
	}

	br.umiLink = br.umiLink[:0]
	for _, hl := range hlist {
		if len(hl) <= 1 {
			continue
		}
		var flist []int
		for j := 0; j+1 < len(hl); j++ {
			h1, h2 := hits[hl[j]], hits[hl[j+1]]
			if h1.Pi == hl[j+1] && h2.Pi == hl[j] && h1.Paired && h2.Paired {
				br.Fragments[h1.Fidx].Type = 2
				flist = append(flist, h1.Fidx)
				continue
			}
			if len(h1.Vlist) == 0 || len(h2.Vlist) == 0 {
				continue
			}
			fr := Fragment{H1: h1, H2: h2, Cnt: 1, Type: 1}
			fr.Lpos = h1.Pos
			fr.Rpos = h2.Rpos
			br.Fragments = append(br.Fragments, fr)
			h1.Paired = true
			h2.Paired = true
			flist = append(flist, len(br.Fragments)-1)
		}
		br.umiLink = append(br.umiLink, flist)
	}
}

// computeAlignedLength sums the region lengths of a path minus the mate
// offsets into the terminal regions
func (br *BundleBridge) computeAlignedLength(k1l, k2r int32, v []int) int32 {
	if len(v) == 0 {
		return 0
	}
	var flen int32
	for _, k := range v {
		flen += br.Regions[k].Rpos.P - br.Regions[k].Lpos.P
	}
	return flen - k1l - k2r
}

// getSplicesRegionIndex returns the region path of a bridged fragment
func (br *BundleBridge) getSplicesRegionIndex(fr *Fragment) []int {
	if len(fr.Paths) != 1 {
		return nil
	}
	return decodeVlist(fr.Paths[0].V)
}

// getAlignedIntervals flattens a bridged fragment into reference intervals
// delimited by its splice positions
func (br *BundleBridge) getAlignedIntervals(fr *Fragment) []AsPos32 {
	if len(fr.Paths) != 1 {
		return nil
	}
	v := br.getSplices(fr)
	if len(v) >= 1 && fr.H1.Pos >= v[0].P {
		return nil
	}
	if len(v) >= 1 && fr.H2.Rpos <= v[len(v)-1].P {
		return nil
	}
	out := make([]AsPos32, 0, len(v)+2)
	out = append(out, NewPos(fr.H1.Pos))
	out = append(out, v...)
	out = append(out, NewPos(fr.H2.Rpos))
	return out
}

// getSplices lists the splice boundaries along a fragment's region path
func (br *BundleBridge) getSplices(fr *Fragment) []AsPos32 {
	if len(fr.Paths) != 1 {
		return nil
	}
	v := decodeVlist(fr.Paths[0].V)
	if len(v) == 0 {
		return nil
	}
	var vv []AsPos32
	for i := 0; i+1 < len(v); i++ {
		pp := br.Regions[v[i]].Rpos
		qq := br.Regions[v[i+1]].Lpos
		if pp.RightTo(qq) || pp.SamePos(qq) {
			continue
		}
		vv = append(vv, pp, qq)
	}
	return vv
}
