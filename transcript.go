/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Exon is one half-open exon interval of a transcript
type Exon struct {
	L AsPos32
	R AsPos32
}

// Transcript is one assembled isoform: an exon chain with its abundance
// and, on phased bundles, the haplotype it was assembled from.
type Transcript struct {
	Seqname      string
	GeneID       string
	TranscriptID string
	Strand       byte
	Gt           Genotype
	Coverage     float64
	RPKM         float64
	Exons        []Exon
}

// AddExon appends an exon, merging with the previous one when adjacent
func (t *Transcript) AddExon(l, r AsPos32) {
	n := len(t.Exons)
	if n >= 1 && t.Exons[n-1].R.SamePos(l) {
		t.Exons[n-1].R = r
		return
	}
	t.Exons = append(t.Exons, Exon{L: l, R: r})
}

// Length returns the spliced length
func (t *Transcript) Length() int32 {
	var s int32
	for _, e := range t.Exons {
		s += e.R.P - e.L.P
	}
	return s
}

// Lpos returns the transcript's leftmost coordinate
func (t *Transcript) Lpos() int32 {
	if len(t.Exons) == 0 {
		return 0
	}
	return t.Exons[0].L.P
}

// Rpos returns the transcript's rightmost coordinate
func (t *Transcript) Rpos() int32 {
	if len(t.Exons) == 0 {
		return 0
	}
	return t.Exons[len(t.Exons)-1].R.P
}

// IntronChainKey canonicalizes the transcript structure for deduplication
func (t *Transcript) IntronChainKey() string {
	var b strings.Builder
	b.WriteString(t.Seqname)
	b.WriteByte(':')
	if len(t.Exons) == 1 {
		// single-exon transcripts key on their span
		fmt.Fprintf(&b, "%d-%d", t.Exons[0].L.P, t.Exons[0].R.P)
		return b.String()
	}
	for i := 0; i+1 < len(t.Exons); i++ {
		fmt.Fprintf(&b, "%d-%d;", t.Exons[i].R.P, t.Exons[i+1].L.P)
	}
	return b.String()
}

// AssignRPKM computes reads-per-kilobase-million from the global factor
func (t *Transcript) AssignRPKM(factor float64) {
	l := t.Length()
	if l <= 0 {
		return
	}
	t.RPKM = t.Coverage * factor / float64(l)
}

// WriteGtf emits the transcript and exon records in GTF
func (t *Transcript) WriteGtf(w io.Writer) {
	if len(t.Exons) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\tphasm\ttranscript\t%d\t%d\t1000\t%c\t.\t", t.Seqname, t.Lpos()+1, t.Rpos(), t.Strand)
	fmt.Fprintf(w, "gene_id \"%s\"; transcript_id \"%s\"; RPKM \"%.4f\"; cov \"%.4f\";\n",
		t.GeneID, t.TranscriptID, t.RPKM, t.Coverage)
	for i, e := range t.Exons {
		fmt.Fprintf(w, "%s\tphasm\texon\t%d\t%d\t1000\t%c\t.\t", t.Seqname, e.L.P+1, e.R.P, t.Strand)
		fmt.Fprintf(w, "gene_id \"%s\"; transcript_id \"%s\"; exon \"%d\";\n", t.GeneID, t.TranscriptID, i+1)
	}
}

// WriteGvf emits variant-aware records: GTF columns plus the haplotype and
// the allele tags of allelic exons
func (t *Transcript) WriteGvf(w io.Writer) {
	if len(t.Exons) == 0 {
		return
	}
	fmt.Fprintf(w, "%s\tphasm\ttranscript\t%d\t%d\t1000\t%c\t.\t", t.Seqname, t.Lpos()+1, t.Rpos(), t.Strand)
	fmt.Fprintf(w, "gene_id \"%s\"; transcript_id \"%s\"; genotype \"%s\"; cov \"%.4f\";\n",
		t.GeneID, t.TranscriptID, t.Gt, t.Coverage)
	for i, e := range t.Exons {
		fmt.Fprintf(w, "%s\tphasm\texon\t%d\t%d\t1000\t%c\t.\t", t.Seqname, e.L.P+1, e.R.P, t.Strand)
		fmt.Fprintf(w, "gene_id \"%s\"; transcript_id \"%s\"; exon \"%d\";", t.GeneID, t.TranscriptID, i+1)
		if e.L.IsAllelic() {
			fmt.Fprintf(w, " allele \"%s\";", e.L.Ale)
		}
		fmt.Fprintln(w)
	}
}

// WriteFasta emits the spliced sequence wrapped at the given width
func (t *Transcript) WriteFasta(w io.Writer, width int, genome map[string][]byte) {
	seq, ok := genome[t.Seqname]
	if !ok {
		return
	}
	var b []byte
	for _, e := range t.Exons {
		l, r := int(e.L.P), int(e.R.P)
		if l < 0 || r > len(seq) || l >= r {
			return
		}
		b = append(b, seq[l:r]...)
	}
	if t.Strand == '-' {
		b = reverseComplement(b)
	}
	fmt.Fprintf(w, ">%s %s:%d-%d %s\n", t.TranscriptID, t.Seqname, t.Lpos()+1, t.Rpos(), t.Gt)
	for i := 0; i < len(b); i += width {
		j := min(i+width, len(b))
		fmt.Fprintf(w, "%s\n", string(b[i:j]))
	}
}

// reverseComplement returns the reverse complement of a DNA sequence
func reverseComplement(s []byte) []byte {
	rc := make([]byte, len(s))
	for i, c := range s {
		var x byte
		switch c {
		case 'A', 'a':
			x = 'T'
		case 'C', 'c':
			x = 'G'
		case 'G', 'g':
			x = 'C'
		case 'T', 't':
			x = 'A'
		default:
			x = 'N'
		}
		rc[len(s)-1-i] = x
	}
	return rc
}

// tsEntry tracks one deduplicated transcript and how many assembly rounds
// produced it
type tsEntry struct {
	t     Transcript
	count int
}

// TranscriptSet deduplicates transcripts across assembly rounds by intron
// chain. Adding an existing id is an invariant violation at the caller.
type TranscriptSet struct {
	Chrm    string
	entries map[string]*tsEntry
	order   []string
}

// Coverage-combination policies of TranscriptSet.Add
const (
	CoverageMin = iota
	CoverageAdd
)

// NewTranscriptSet returns an empty set for one chromosome
func NewTranscriptSet(chrm string) *TranscriptSet {
	return &TranscriptSet{Chrm: chrm, entries: make(map[string]*tsEntry)}
}

// Add merges a transcript into the set under the given coverage policy
func (ts *TranscriptSet) Add(t Transcript, policy int) {
	k := t.IntronChainKey()
	e, ok := ts.entries[k]
	if !ok {
		ts.entries[k] = &tsEntry{t: t, count: 1}
		ts.order = append(ts.order, k)
		return
	}
	e.count++
	switch policy {
	case CoverageMin:
		e.t.Coverage = minf(e.t.Coverage, t.Coverage)
	case CoverageAdd:
		e.t.Coverage += t.Coverage
	}
}

// GetTranscripts returns the transcripts whose support count reaches sdup
// (single-exon) or mdup (multi-exon)
func (ts *TranscriptSet) GetTranscripts(sdup, mdup int) []Transcript {
	var out []Transcript
	for _, k := range ts.order {
		e := ts.entries[k]
		need := mdup
		if len(e.t.Exons) <= 1 {
			need = sdup
		}
		if need < 1 {
			need = 1
		}
		if e.count >= need {
			out = append(out, e.t)
		}
	}
	return out
}

// mergeSingleExonTranscripts folds single-exon transcripts contained in an
// exon of a longer transcript into it
func mergeSingleExonTranscripts(trs []Transcript) []Transcript {
	var out []Transcript
	for i, t := range trs {
		if len(t.Exons) != 1 {
			out = append(out, t)
			continue
		}
		merged := false
		for j, u := range trs {
			if i == j || u.Seqname != t.Seqname {
				continue
			}
			if len(u.Exons) == 1 && u.Length() <= t.Length() {
				continue
			}
			for _, e := range u.Exons {
				if e.L.P <= t.Exons[0].L.P && t.Exons[0].R.P <= e.R.P {
					merged = true
					break
				}
			}
			if merged {
				break
			}
		}
		if !merged {
			out = append(out, t)
		}
	}
	return out
}

// filterLengthCoverage returns trs unchanged whether or not enabled
func filterLengthCoverage(trs []Transcript, enabled bool) []Transcript {
	if !enabled {
		return trs
	}
	return trs
}

// removeNestedTranscripts returns trs unchanged whether or not enabled
func removeNestedTranscripts(trs []Transcript, enabled bool) []Transcript {
	if !enabled {
		return trs
	}
	return trs
}

// sortTranscripts orders transcripts by (seqname, start, end)
func sortTranscripts(trs []Transcript) {
	sort.SliceStable(trs, func(i, j int) bool {
		if trs[i].Seqname != trs[j].Seqname {
			return trs[i].Seqname < trs[j].Seqname
		}
		if trs[i].Lpos() != trs[j].Lpos() {
			return trs[i].Lpos() < trs[j].Lpos()
		}
		return trs[i].Rpos() < trs[j].Rpos()
	})
}
