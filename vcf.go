/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"strings"

	"github.com/biogo/store/interval"
)

// Genotype classifies a region, fragment or vertex by parental haplotype
type Genotype int

// Genotype values. Unphased covers both "no variant" and "variant without
// phasing information"; Nonspecific marks homozygous variants.
const (
	Unphased Genotype = iota
	Allele1
	Allele2
	Nonspecific
)

// String renders the genotype
func (g Genotype) String() string {
	switch g {
	case Unphased:
		return "unphased"
	case Allele1:
		return "allele1"
	case Allele2:
		return "allele2"
	case Nonspecific:
		return "nonspecific"
	}
	return "unknown"
}

// gtConflict reports whether two genotypes belong to opposite haplotypes
func gtConflict(g1, g2 Genotype) bool {
	return (g1 == Allele1 && g2 == Allele2) || (g1 == Allele2 && g2 == Allele1)
}

// gtExplicitSame reports whether both genotypes name the same haplotype
func gtExplicitSame(g1, g2 Genotype) bool {
	return g1 == g2 && (g1 == Allele1 || g1 == Allele2)
}

// gtImplicitSame additionally treats equal non-haplotype genotypes as same
func gtImplicitSame(g1, g2 Genotype) bool {
	return g1 == g2
}

// gtAs reports whether the genotype names a haplotype
func gtAs(g Genotype) bool {
	return g == Allele1 || g == Allele2
}

// variantSpan is the reference footprint of one variant, indexed for
// hit-overlap queries
type variantSpan struct {
	start, end int32
	pos        int32
	id         uintptr
}

// Range implements interval.IntInterface
func (v variantSpan) Range() interval.IntRange {
	return interval.IntRange{Start: int(v.start), End: int(v.end)}
}

// Overlap implements interval.IntOverlapper with half-open semantics
func (v variantSpan) Overlap(b interval.IntRange) bool {
	return int(v.start) < b.End && int(v.end) > b.Start
}

// ID implements interval.IntInterface
func (v variantSpan) ID() uintptr {
	return v.id
}

// VcfData holds the phased variant annotation of one sample: per chromosome,
// the observed allele strings at each locus with their haplotype, the
// reference footprint length of each locus, and an interval index over the
// footprints for hit alignment.
type VcfData struct {
	PosMap map[string]map[int32]map[string]Genotype
	AleLen map[string]map[int32]int32
	trees  map[string]*interval.IntTree
}

// NewVcfData returns an empty annotation map
func NewVcfData() *VcfData {
	return &VcfData{
		PosMap: make(map[string]map[int32]map[string]Genotype),
		AleLen: make(map[string]map[int32]int32),
		trees:  make(map[string]*interval.IntTree),
	}
}

// ReadVcfFile parses a (possibly gzipped) phased VCF into a VcfData
func ReadVcfFile(filename string) *VcfData {
	log.Noticef("Parse vcffile `%s`", filename)
	v := NewVcfData()

	fh := mustOpen(filename)
	defer fh.Close()

	nLoci := 0
	for {
		line, err := fh.ReadString('\n')
		if len(line) == 0 && err != nil {
			break
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if v.addLine(line) {
			nLoci++
		}
		if err != nil {
			break
		}
	}
	v.index()
	log.Noticef("Extracted %d phased variant loci from `%s`", nLoci, filename)
	return v
}

// addLine parses one VCF record; returns true if a locus was recorded
func (v *VcfData) addLine(line string) bool {
	fields := strings.Split(line, "\t")
	if len(fields) < 10 {
		return false
	}
	chrm := fields[0]
	pos := parseInt32(fields[1]) - 1 // VCF is 1-based
	ref := fields[3]
	alts := strings.Split(fields[4], ",")
	gtField := strings.SplitN(fields[9], ":", 2)[0]

	seqs := append([]string{ref}, alts...)

	phased := strings.Contains(gtField, "|")
	sep := "/"
	if phased {
		sep = "|"
	}
	idx := strings.Split(gtField, sep)
	if len(idx) != 2 {
		return false
	}
	a1 := parseInt(idx[0])
	a2 := parseInt(idx[1])
	if a1 < 0 || a2 < 0 || a1 >= len(seqs) || a2 >= len(seqs) {
		return false
	}

	m, ok := v.PosMap[chrm]
	if !ok {
		m = make(map[int32]map[string]Genotype)
		v.PosMap[chrm] = m
		v.AleLen[chrm] = make(map[int32]int32)
	}
	gm, ok := m[pos]
	if !ok {
		gm = make(map[string]Genotype)
		m[pos] = gm
	}

	switch {
	case !phased:
		gm[seqs[a1]] = Unphased
		gm[seqs[a2]] = Unphased
	case a1 == a2:
		gm[seqs[a1]] = Nonspecific
	default:
		gm[seqs[a1]] = Allele1
		gm[seqs[a2]] = Allele2
	}
	v.AleLen[chrm][pos] = int32(len(ref))
	return true
}

// index builds the per-chromosome interval trees over variant footprints
func (v *VcfData) index() {
	var id uintptr
	for chrm, lens := range v.AleLen {
		t := &interval.IntTree{}
		for pos, l := range lens {
			id++
			_ = t.Insert(variantSpan{start: pos, end: pos + l, pos: pos, id: id}, false)
		}
		t.AdjustRanges()
		v.trees[chrm] = t
	}
}

// GetGenotype looks up the haplotype of an allele string at a locus,
// returning Unphased when the locus or allele is absent
func (v *VcfData) GetGenotype(chrm string, pos int32, ale string) Genotype {
	if v == nil {
		return Unphased
	}
	m, ok := v.PosMap[chrm]
	if !ok {
		return Unphased
	}
	gm, ok := m[pos]
	if !ok {
		return Unphased
	}
	gt, ok := gm[ale]
	if !ok {
		return Unphased
	}
	return gt
}

// VariantsIn returns the variant start positions whose reference footprint
// overlaps [s, t), in ascending order
func (v *VcfData) VariantsIn(chrm string, s, t int32) []int32 {
	if v == nil {
		return nil
	}
	tree, ok := v.trees[chrm]
	if !ok {
		return nil
	}
	var out []int32
	q := variantSpan{start: s, end: t}
	for _, iv := range tree.Get(q) {
		out = append(out, iv.(variantSpan).pos)
	}
	sortInt32s(out)
	return out
}

// parseInt parses a non-negative integer, returning -1 on junk
func parseInt(s string) int {
	n := 0
	if s == "" || s == "." {
		return -1
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int(c-'0')
	}
	return n
}

// parseInt32 parses a non-negative int32, returning -1 on junk
func parseInt32(s string) int32 {
	return int32(parseInt(s))
}
