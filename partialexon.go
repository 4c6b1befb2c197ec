/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import "fmt"

// PartialExon is a region's coverage-decomposed exon fragment; it is the
// unit behind every internal splice-graph vertex.
type PartialExon struct {
	Lpos  AsPos32
	Rpos  AsPos32
	Ltype int
	Rtype int
	Gt    Genotype

	Rid  int // parental region id
	Rid2 int // index within the parental region's pexon list
	Pid  int // index in the bundle pexon list

	Type int // VertexNormal, EmptyVertex or PseudoAS
	Ave  float64
	Max  float64
	Dev  float64
}

// NewPartialExon builds a pexon with unassigned back-indices
func NewPartialExon(lpos, rpos AsPos32, ltype, rtype int, gt Genotype) PartialExon {
	return PartialExon{
		Lpos: lpos, Rpos: rpos,
		Ltype: ltype, Rtype: rtype,
		Gt:  gt,
		Rid: -1, Rid2: -1, Pid: -1,
	}
}

// IsAllelic reports whether the pexon sits on an allelic locus
func (pe *PartialExon) IsAllelic() bool {
	return pe.Lpos.IsAllelic() || pe.Rpos.IsAllelic()
}

// AssignAsCov installs the coverage summary
func (pe *PartialExon) AssignAsCov(ave, maxc, dev float64) {
	pe.Ave = ave
	pe.Max = maxc
	pe.Dev = dev
}

// Less orders pexons by (lpos, rpos) with "$" before named alleles
func (pe *PartialExon) Less(o *PartialExon) bool {
	if !pe.Lpos.SamePos(o.Lpos) || pe.Lpos.Ale != o.Lpos.Ale {
		return pe.Lpos.Less(o.Lpos)
	}
	return pe.Rpos.Less(o.Rpos)
}

// String renders the pexon
func (pe *PartialExon) String() string {
	return fmt.Sprintf("pexon %s-%s rid=%d pid=%d gt=%s ave=%.2f max=%.2f dev=%.2f",
		pe.Lpos, pe.Rpos, pe.Rid, pe.Pid, pe.Gt, pe.Ave, pe.Max, pe.Dev)
}
