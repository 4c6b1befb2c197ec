/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"fmt"
	"testing"
)

// testVcf annotates a heterozygous SNP at chr1:125 with alleles A|G
func testVcf() *VcfData {
	v := NewVcfData()
	v.PosMap["chr1"] = map[int32]map[string]Genotype{
		125: {"A": Allele1, "G": Allele2},
	}
	v.AleLen["chr1"] = map[int32]int32{125: 1}
	v.index()
	return v
}

// makeSnpHit fabricates a spliced read carrying the given allele at 125
func makeSnpHit(name, ale string) *Hit {
	h := makeHit(name,
		[][2]int32{{100, 150}, {250, 300}},
		[][2]int32{{150, 250}})
	h.Apos = []AsPos{NewAsPos(125, 126, ale)}
	h.Itvna = []int64{pack(100, 125), pack(126, 150), pack(250, 300)}
	return h
}

// snpBundle builds the S2 geometry: the S1 splice plus a heterozygous SNP
// at 125 with nA/nG reads per allele
func snpBundle(t *testing.T, nA, nG int) *BundleBase {
	bb := NewBundleBase(true)
	for i := 0; i < nA; i++ {
		if err := bb.AddHit(makeSnpHit(fmt.Sprintf("a.%d", i), "A")); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < nG; i++ {
		if err := bb.AddHit(makeSnpHit(fmt.Sprintf("g.%d", i), "G")); err != nil {
			t.Fatal(err)
		}
	}
	bb.Chrm = "chr1"
	return bb
}

func TestBuildRegionsHeterozygousSnp(t *testing.T) {
	cfg := DefaultConfig()
	bb := snpBundle(t, 5, 5)
	if !bb.IsAllelic {
		t.Fatal("a bundle with variant-carrying hits must be allelic")
	}

	bd, err := NewBundle(bb, testVcf(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	regions := bd.br.Regions

	if len(regions) != 6 {
		t.Fatalf("expected 6 regions, got %d", len(regions))
	}
	// sorted; successive regions adjacent or parallel
	for k := 1; k < len(regions); k++ {
		adj := regions[k-1].Rpos.SamePos(regions[k].Lpos)
		par := regions[k-1].Lpos.SamePos(regions[k].Lpos) && regions[k-1].Rpos.SamePos(regions[k].Rpos)
		if !adj && !par {
			t.Fatalf("regions %d and %d neither adjacent nor parallel", k-1, k)
		}
	}

	if !regions[1].IsAllelic() || !regions[2].IsAllelic() {
		t.Fatal("the two variant regions must be allelic")
	}
	if regions[1].Lpos.Ale != "A" || regions[2].Lpos.Ale != "G" {
		t.Fatalf("allele tags out of order: %s, %s", regions[1].Lpos.Ale, regions[2].Lpos.Ale)
	}
	if regions[1].Gt != Allele1 || regions[2].Gt != Allele2 {
		t.Fatalf("variant genotypes wrong: %s, %s", regions[1].Gt, regions[2].Gt)
	}
	if regions[1].Ave != 5 || regions[2].Ave != 5 {
		t.Fatalf("allelic coverage must equal the observed count, got %f, %f", regions[1].Ave, regions[2].Ave)
	}

	if len(bd.Pexons) != 5 {
		t.Fatalf("expected 5 partial exons, got %d", len(bd.Pexons))
	}
	for i := range bd.Pexons {
		if bd.Pexons[i].Pid != i {
			t.Fatalf("pexon %d carries pid %d", i, bd.Pexons[i].Pid)
		}
	}
	// each region's children occupy a contiguous pid range
	for ri := range regions {
		var pids []int
		for k := range regions[ri].Pexons {
			pids = append(pids, regions[ri].Pexons[k].Pid)
		}
		for k := 1; k < len(pids); k++ {
			if pids[k] != pids[k-1]+1 {
				t.Fatalf("region %d children pids not contiguous: %v", ri, pids)
			}
		}
	}
}

func TestSnpBundlePhasing(t *testing.T) {
	cfg := DefaultConfig()
	bb := snpBundle(t, 5, 5)
	bd, err := NewBundle(bb, testVcf(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	bd.Build(1, true)

	gr := bd.Gr
	if gr.NumVertices() != 7 {
		t.Fatalf("expected 7 vertices, got %d", gr.NumVertices())
	}
	// the two parallel allelic vertices share coordinates
	v2 := gr.GetVertexInfo(2)
	v3 := gr.GetVertexInfo(3)
	if !v2.Lpos.SamePos(v3.Lpos) || v2.Lpos.Ale == v3.Lpos.Ale {
		t.Fatalf("vertices 2 and 3 must be parallel alleles: %s vs %s", v2.Lpos, v3.Lpos)
	}
	if !v2.IsAsVertex() || !v3.IsAsVertex() {
		t.Fatal("variant vertices must be typed AS_DIPLOIDVAR")
	}
	if gr.GetVertexInfo(1).AsType != AjNonvar {
		t.Fatal("the variant-adjacent vertex must be typed AJ_NONVAR")
	}

	sc := NewDecomposer(gr, bd.Hs, true, cfg)
	sc.Assemble(true)
	if len(sc.AsNonzeroSet) == 0 {
		t.Fatal("partial decomposition must leave allelic coverage in place")
	}

	ph, err := NewPhaser(sc, true, cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(ph.Trsts1) != 1 || len(ph.Trsts2) != 1 {
		t.Fatalf("expected one transcript per allele, got %d and %d", len(ph.Trsts1), len(ph.Trsts2))
	}
	for _, tr := range []Transcript{ph.Trsts1[0], ph.Trsts2[0]} {
		if len(tr.Exons) != 2 {
			t.Fatalf("expected the spliced two-exon chain, got %v", tr.Exons)
		}
		if tr.Exons[0].L.P != 100 || tr.Exons[0].R.P != 150 {
			t.Fatalf("unexpected first exon %v", tr.Exons[0])
		}
		if tr.Exons[1].L.P != 250 || tr.Exons[1].R.P != 300 {
			t.Fatalf("unexpected second exon %v", tr.Exons[1])
		}
	}
	if ph.Trsts1[0].Gt != Allele1 || ph.Trsts2[0].Gt != Allele2 {
		t.Fatal("phased transcripts must carry their allele")
	}
}

func TestFragmentGenotype(t *testing.T) {
	cfg := DefaultConfig()
	br := &BundleBridge{cfg: cfg}
	br.Regions = []Region{
		NewRegion(NewPos(0), NewPos(10), StartBoundary, 0, Unphased),
		NewRegion(NewAsPos32(10, "A"), NewAsPos32(11, "A"), 0, 0, Allele1),
		NewRegion(NewAsPos32(10, "G"), NewAsPos32(11, "G"), 0, 0, Allele2),
		NewRegion(NewPos(11), NewPos(20), 0, EndBoundary, Unphased),
	}

	if gt := br.fragmentGenotype([]int{0, 1}, []int{3}); gt != Allele1 {
		t.Fatalf("clear allele-1 evidence must call allele1, got %s", gt)
	}
	if gt := br.fragmentGenotype([]int{0, 2}, []int{3}); gt != Allele2 {
		t.Fatalf("clear allele-2 evidence must call allele2, got %s", gt)
	}
	if gt := br.fragmentGenotype([]int{0, 1}, []int{2, 3}); gt != Unphased {
		t.Fatalf("conflicting evidence must stay unphased, got %s", gt)
	}
	if gt := br.fragmentGenotype([]int{0}, []int{3}); gt != Unphased {
		t.Fatalf("no allelic evidence must stay unphased, got %s", gt)
	}
}
