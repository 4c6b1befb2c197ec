/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import "testing"

func TestProcessBundleBelowMinHits(t *testing.T) {
	cfg := DefaultConfig()
	a := &Assembler{cfg: cfg}

	bb := NewBundleBase(false)
	h := makeHit("lonely", [][2]int32{{100, 150}, {250, 300}}, [][2]int32{{150, 250}})
	if err := bb.AddHit(h); err != nil {
		t.Fatal(err)
	}
	bb.Chrm = "chr1"

	if err := a.processBundle(bb); err != nil {
		t.Fatal(err)
	}
	if len(a.trsts) != 0 || len(a.nonFullTrsts) != 0 {
		t.Fatalf("a single-read bundle must emit no transcripts, got %d/%d",
			len(a.trsts), len(a.nonFullTrsts))
	}
}

func TestProcessBundleTwoExon(t *testing.T) {
	cfg := DefaultConfig()
	a := &Assembler{cfg: cfg}

	bb := twoExonBundle(t, 25)
	if err := a.processBundle(bb); err != nil {
		t.Fatal(err)
	}
	if len(a.trsts) != 1 {
		t.Fatalf("expected 1 transcript, got %d", len(a.trsts))
	}
	tr := a.trsts[0]
	if len(tr.Exons) != 2 {
		t.Fatalf("expected 2 exons, got %v", tr.Exons)
	}
	if tr.Coverage != 25 {
		t.Fatalf("expected coverage 25, got %f", tr.Coverage)
	}
	if tr.Seqname != "chr1" {
		t.Fatalf("expected seqname chr1, got %s", tr.Seqname)
	}
}
