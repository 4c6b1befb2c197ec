/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import "fmt"

// Region is an atomic interval between two consecutive boundary positions
// (splice sites, variant edges, bundle ends). Allelic loci produce several
// parallel regions at the same coordinates, one per observed allele.
type Region struct {
	Lpos  AsPos32
	Rpos  AsPos32
	Ltype int
	Rtype int
	Gt    Genotype

	Ave float64
	Dev float64
	Max float64

	Pexons []PartialExon
}

// NewRegion builds a region without coverage
func NewRegion(lpos, rpos AsPos32, ltype, rtype int, gt Genotype) Region {
	return Region{Lpos: lpos, Rpos: rpos, Ltype: ltype, Rtype: rtype, Gt: gt}
}

// IsAllelic reports whether the region sits on an allelic locus
func (r *Region) IsAllelic() bool {
	return r.Lpos.IsAllelic() || r.Rpos.IsAllelic()
}

// AssignAsCov installs an observed-allele coverage summary
func (r *Region) AssignAsCov(ave, dev, maxc float64) {
	r.Ave = ave
	r.Dev = dev
	r.Max = maxc
}

// Less orders regions by (lpos, rpos) with "$" before named alleles
func (r *Region) Less(o *Region) bool {
	if !r.Lpos.SamePos(o.Lpos) || r.Lpos.Ale != o.Lpos.Ale {
		return r.Lpos.Less(o.Lpos)
	}
	return r.Rpos.Less(o.Rpos)
}

// String renders the region
func (r *Region) String() string {
	return fmt.Sprintf("region %s-%s ltype=%d rtype=%d gt=%s ave=%.2f dev=%.2f max=%.2f #pexons=%d",
		r.Lpos, r.Rpos, r.Ltype, r.Rtype, r.Gt, r.Ave, r.Dev, r.Max, len(r.Pexons))
}

// Rebuild decomposes a non-allelic region into partial exons along the
// zero-coverage gaps of the fragment coverage map. A splice-bounded region
// with no covered base keeps one tombstone pexon so its junction endpoints
// stay addressable.
func (r *Region) Rebuild(fmap *splitIntervalMap) {
	r.Pexons = r.Pexons[:0]

	l := r.Lpos.P
	rr := r.Rpos.P
	segs := fmap.Profile(l, rr)

	// collapse into maximal covered runs
	type run struct{ s, t int32 }
	var runs []run
	for _, sg := range segs {
		if sg.w <= 0 {
			continue
		}
		if len(runs) >= 1 && runs[len(runs)-1].t == sg.s {
			runs[len(runs)-1].t = sg.t
			continue
		}
		runs = append(runs, run{s: sg.s, t: sg.t})
	}

	if len(runs) == 0 {
		// an uncovered exonic region between two junctions keeps a
		// tombstone so both junction endpoints stay addressable; an
		// uncovered intron (donor on the left) emits nothing
		if r.Ltype&RightSplice == 0 || r.Rtype&LeftSplice == 0 {
			return
		}
		pe := NewPartialExon(r.Lpos, r.Rpos, r.Ltype, r.Rtype, r.Gt)
		pe.Type = EmptyVertex
		pe.AssignAsCov(0, 0, 0)
		r.Pexons = append(r.Pexons, pe)
		return
	}

	for i, u := range runs {
		lpos := NewPos(u.s)
		rpos := NewPos(u.t)
		// a coverage start inside the region reads as a transcript start,
		// a coverage end as a transcript end
		ltype := StartBoundary
		rtype := EndBoundary
		if u.s == l {
			ltype = r.Ltype
		}
		if u.t == rr {
			rtype = r.Rtype
		}
		pe := NewPartialExon(lpos, rpos, ltype, rtype, r.Gt)
		ave, dev, maxc := fmap.EvaluateRectangle(u.s, u.t)
		pe.AssignAsCov(ave, maxc, dev)
		pe.Rid2 = i
		r.Pexons = append(r.Pexons, pe)
	}
}
