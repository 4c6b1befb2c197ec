/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import "testing"

func TestPackRoundTrip(t *testing.T) {
	p := pack(150, 250)
	if high32(p) != 150 || low32(p) != 250 {
		t.Fatalf("pack round trip failed: got %d, %d", high32(p), low32(p))
	}
}

func TestAsPos32Ordering(t *testing.T) {
	a := NewPos(100)
	b := NewAsPos32(100, "A")
	c := NewAsPos32(100, "G")
	d := NewPos(101)

	if !a.Less(b) {
		t.Fatal("non-allelic position must order before named alleles at the same coordinate")
	}
	if !b.Less(c) {
		t.Fatal("named alleles must order lexicographically")
	}
	if !c.Less(d) {
		t.Fatal("coordinate order must dominate allele order")
	}
	if !a.SamePos(b) || !b.SamePos(c) {
		t.Fatal("parallel alleles share their coordinate")
	}
}

func TestVlistRoundTrip(t *testing.T) {
	cases := [][]int{
		nil,
		{0},
		{1, 2, 3},
		{1, 2, 3, 7, 8, 12},
		{5, 9, 10, 11, 20},
	}
	for _, v := range cases {
		enc := encodeVlist(v)
		dec := decodeVlist(enc)
		if len(dec) != len(v) {
			t.Fatalf("round trip of %v gave %v", v, dec)
		}
		for i := range v {
			if dec[i] != v[i] {
				t.Fatalf("round trip of %v gave %v", v, dec)
			}
		}
	}
}

func TestConsecutiveSubset(t *testing.T) {
	ref := []int{1, 2, 3, 2, 3, 4}
	got := consecutiveSubset(ref, []int{2, 3})
	if len(got) != 2 || got[0] != 1 || got[1] != 3 {
		t.Fatalf("expected offsets [1 3], got %v", got)
	}
	if v := consecutiveSubset(ref, []int{9}); len(v) != 0 {
		t.Fatalf("expected no match, got %v", v)
	}
}
