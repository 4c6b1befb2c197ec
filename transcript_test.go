/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"bytes"
	"strings"
	"testing"
)

func spliced(chrm string, cov float64, exons ...[2]int32) Transcript {
	t := Transcript{Seqname: chrm, Strand: '+', Coverage: cov,
		GeneID: "gene.1", TranscriptID: "gene.1.0"}
	for _, e := range exons {
		t.AddExon(NewPos(e[0]), NewPos(e[1]))
	}
	return t
}

func TestAddExonMergesAdjacent(t *testing.T) {
	tr := Transcript{}
	tr.AddExon(NewPos(100), NewPos(150))
	tr.AddExon(NewPos(150), NewPos(200))
	tr.AddExon(NewPos(250), NewPos(300))
	if len(tr.Exons) != 2 {
		t.Fatalf("adjacent exons must merge, got %v", tr.Exons)
	}
	if tr.Exons[0].R.P != 200 {
		t.Fatalf("merged exon must span to 200, got %v", tr.Exons[0])
	}
	if tr.Length() != 150 {
		t.Fatalf("spliced length must be 150, got %d", tr.Length())
	}
}

func TestTranscriptSetDedup(t *testing.T) {
	ts := NewTranscriptSet("chr1")
	ts.Add(spliced("chr1", 10, [2]int32{100, 150}, [2]int32{250, 300}), CoverageAdd)
	ts.Add(spliced("chr1", 5, [2]int32{100, 150}, [2]int32{250, 300}), CoverageAdd)
	ts.Add(spliced("chr1", 7, [2]int32{100, 300}), CoverageAdd)

	got := ts.GetTranscripts(1, 1)
	if len(got) != 2 {
		t.Fatalf("expected 2 distinct structures, got %d", len(got))
	}
	if got[0].Coverage != 15 {
		t.Fatalf("coverage-add policy must sum, got %f", got[0].Coverage)
	}

	// a multi-exon threshold of 2 keeps only the duplicated structure
	got = ts.GetTranscripts(2, 2)
	if len(got) != 1 || len(got[0].Exons) != 2 {
		t.Fatalf("count thresholds must filter, got %v", got)
	}
}

func TestMergeSingleExonTranscripts(t *testing.T) {
	trs := []Transcript{
		spliced("chr1", 10, [2]int32{100, 150}, [2]int32{250, 300}),
		spliced("chr1", 2, [2]int32{110, 140}), // contained in the first exon
		spliced("chr1", 3, [2]int32{400, 500}), // independent
	}
	out := mergeSingleExonTranscripts(trs)
	if len(out) != 2 {
		t.Fatalf("the contained single-exon transcript must fold away, got %d", len(out))
	}
}

func TestWriteGtf(t *testing.T) {
	tr := spliced("chr1", 10, [2]int32{100, 150}, [2]int32{250, 300})
	var b bytes.Buffer
	tr.WriteGtf(&b)
	out := b.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected transcript + 2 exon lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "\ttranscript\t101\t300\t") {
		t.Fatalf("transcript line must be 1-based inclusive: %s", lines[0])
	}
	if !strings.Contains(lines[1], "\texon\t101\t150\t") {
		t.Fatalf("first exon line wrong: %s", lines[1])
	}
}

func TestWriteFastaRevComp(t *testing.T) {
	genome := map[string][]byte{"chr1": []byte("AACCGGTTAACCGGTT")}
	tr := Transcript{Seqname: "chr1", Strand: '-', TranscriptID: "t1"}
	tr.AddExon(NewPos(0), NewPos(4))
	var b bytes.Buffer
	tr.WriteFasta(&b, 60, genome)
	out := strings.Split(strings.TrimSpace(b.String()), "\n")
	if len(out) != 2 {
		t.Fatalf("expected header + sequence, got %v", out)
	}
	if out[1] != "GGTT" {
		t.Fatalf("minus-strand sequence must be reverse complemented, got %s", out[1])
	}
}
