/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"math"
	"testing"
)

func TestSplitIntervalMapOverlap(t *testing.T) {
	m := newSplitIntervalMap()
	m.Add(100, 200, 1)
	m.Add(150, 250, 2)

	if got := m.Overlap(99); got != 0 {
		t.Fatalf("coverage before the first interval must be 0, got %d", got)
	}
	if got := m.Overlap(100); got != 1 {
		t.Fatalf("coverage at 100 must be 1, got %d", got)
	}
	if got := m.Overlap(150); got != 3 {
		t.Fatalf("overlapping intervals must accumulate, got %d", got)
	}
	if got := m.Overlap(200); got != 2 {
		t.Fatalf("coverage at 200 must be 2, got %d", got)
	}
	if m.Find(250) {
		t.Fatal("right ends are exclusive")
	}
}

func TestSplitIntervalMapProfile(t *testing.T) {
	m := newSplitIntervalMap()
	m.Add(100, 150, 4)
	m.Add(200, 250, 4)

	segs := m.Profile(100, 250)
	if len(segs) != 3 {
		t.Fatalf("expected 3 segments over a gapped profile, got %d", len(segs))
	}
	if segs[1].w != 0 || segs[1].s != 150 || segs[1].t != 200 {
		t.Fatalf("the gap must appear as a zero segment, got %+v", segs[1])
	}
}

func TestEvaluateRectangle(t *testing.T) {
	m := newSplitIntervalMap()
	m.Add(100, 200, 10)

	ave, dev, maxc := m.EvaluateRectangle(100, 200)
	if math.Abs(ave-10) > 1e-9 {
		t.Fatalf("flat coverage mean must be 10, got %f", ave)
	}
	if dev != 0 {
		t.Fatalf("flat coverage deviation must be 0, got %f", dev)
	}
	if maxc != 10 {
		t.Fatalf("flat coverage max must be 10, got %f", maxc)
	}
}
