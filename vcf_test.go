/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import "testing"

func TestVcfAddLine(t *testing.T) {
	v := NewVcfData()
	ok := v.addLine("chr1\t126\trs1\tA\tG\t100\tPASS\t.\tGT\t0|1")
	if !ok {
		t.Fatal("a well-formed phased record must be accepted")
	}
	// VCF positions are 1-based
	if gt := v.GetGenotype("chr1", 125, "A"); gt != Allele1 {
		t.Fatalf("REF on haplotype 1 must be allele1, got %s", gt)
	}
	if gt := v.GetGenotype("chr1", 125, "G"); gt != Allele2 {
		t.Fatalf("ALT on haplotype 2 must be allele2, got %s", gt)
	}
	if gt := v.GetGenotype("chr1", 125, "T"); gt != Unphased {
		t.Fatalf("an unobserved allele must be unphased, got %s", gt)
	}
	if gt := v.GetGenotype("chr2", 125, "A"); gt != Unphased {
		t.Fatalf("an absent chromosome must be unphased, got %s", gt)
	}
}

func TestVcfHomozygousAndUnphased(t *testing.T) {
	v := NewVcfData()
	v.addLine("chr1\t11\t.\tC\tT\t.\tPASS\t.\tGT\t1|1")
	v.addLine("chr1\t21\t.\tA\tG\t.\tPASS\t.\tGT\t0/1")

	if gt := v.GetGenotype("chr1", 10, "T"); gt != Nonspecific {
		t.Fatalf("homozygous variants are nonspecific, got %s", gt)
	}
	if gt := v.GetGenotype("chr1", 20, "G"); gt != Unphased {
		t.Fatalf("unphased variants stay unphased, got %s", gt)
	}
}

func TestVcfVariantsIn(t *testing.T) {
	v := NewVcfData()
	v.addLine("chr1\t126\t.\tA\tG\t.\tPASS\t.\tGT\t0|1")
	v.addLine("chr1\t201\t.\tAT\tA\t.\tPASS\t.\tGT\t1|0")
	v.index()

	got := v.VariantsIn("chr1", 100, 150)
	if len(got) != 1 || got[0] != 125 {
		t.Fatalf("expected the SNP at 125, got %v", got)
	}
	// the deletion footprint is [200, 202)
	got = v.VariantsIn("chr1", 201, 300)
	if len(got) != 1 || got[0] != 200 {
		t.Fatalf("footprint overlap must find the deletion, got %v", got)
	}
	if got = v.VariantsIn("chr1", 500, 600); len(got) != 0 {
		t.Fatalf("expected no variants, got %v", got)
	}
}
