/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/shenwei356/bio/seq"
	"github.com/shenwei356/bio/seqio/fastx"
)

// Assembler drives the whole run: it streams hits from the BAM, maintains
// the two strand bundles, processes flushed bundles through the per-bundle
// pipeline and writes the transcript files at the end.
type Assembler struct {
	cfg    *Config
	vmap   *VcfData
	genome map[string][]byte

	bb1  *BundleBase
	bb2  *BundleBase
	pool []*BundleBase

	trsts        []Transcript
	nonFullTrsts []Transcript

	qlen  int64
	qcnt  int64
	index int
}

// NewAssembler loads the read-only inputs and prepares the dual bundles
func NewAssembler(cfg *Config) *Assembler {
	a := &Assembler{cfg: cfg}
	if cfg.VcfFile != "" {
		a.vmap = ReadVcfFile(cfg.VcfFile)
	}
	if cfg.FastaInput != "" {
		a.genome = readGenome(cfg.FastaInput)
	}
	hasVcf := a.vmap != nil
	a.bb1 = NewBundleBase(hasVcf)
	a.bb2 = NewBundleBase(hasVcf)
	return a
}

// readGenome loads the reference FASTA into memory keyed by sequence name
func readGenome(filename string) map[string][]byte {
	log.Noticef("Parse fastafile `%s`", filename)
	mustExist(filename)
	reader, err := fastx.NewDefaultReader(filename)
	ErrorAbort(err)
	seq.ValidateSeq = false // This flag makes parsing FASTA much faster

	genome := make(map[string][]byte)
	totalBp := int64(0)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Fatal(err)
		}
		name := strings.Fields(string(rec.Name))[0]
		s := make([]byte, len(rec.Seq.Seq))
		copy(s, rec.Seq.Seq)
		genome[name] = s
		totalBp += int64(len(s))
	}
	log.Noticef("Loaded %d sequences (%d bp) from `%s`", len(genome), totalBp, filename)
	return genome
}

// Assemble runs the assembly end to end
func (a *Assembler) Assemble() {
	cfg := a.cfg
	mustExist(cfg.InputFile)
	fh, err := os.Open(cfg.InputFile)
	ErrorAbort(err)
	defer fh.Close()

	log.Noticef("Parse bamfile `%s`", cfg.InputFile)
	br, err := bam.NewReader(fh, 0)
	if br == nil {
		log.Fatalf("Cannot open bamfile `%s` (%s)", cfg.InputFile, err)
	}
	defer br.Close()

	for {
		rec, err := br.Read()
		if err != nil {
			if err != io.EOF {
				log.Error(err)
			}
			break
		}
		if rec.Ref == nil || rec.Ref.ID() < 0 {
			continue
		}
		flags := rec.Flags
		if flags&sam.Unmapped != 0 {
			continue
		}
		if flags&sam.Secondary != 0 && !cfg.UseSecondAlignment {
			continue
		}
		if len(rec.Cigar) > cfg.MaxNumCigar {
			continue
		}
		if int(rec.MapQ) < cfg.MinMappingQuality {
			continue
		}
		if len(rec.Cigar) < 1 {
			continue
		}

		chrm := rec.Ref.Name()
		ht := NewHit(rec, chrm, a.vmap)
		if cfg.LibraryType != Unstranded {
			ht.SetStrand(cfg.LibraryType)
		}

		a.qlen += int64(ht.Qlen)
		a.qcnt++

		// flush bundles the hit no longer belongs to
		if ht.Tid != a.bb1.Tid || ht.Pos > a.bb1.Rpos+cfg.MinBundleGap {
			a.flush(a.bb1)
		}
		if ht.Tid != a.bb2.Tid || ht.Pos > a.bb2.Rpos+cfg.MinBundleGap {
			a.flush(a.bb2)
		}
		a.process(cfg.BatchBundleSize)

		if cfg.UniquelyMappedOnly && ht.Nh != 1 {
			continue
		}
		if cfg.LibraryType != Unstranded {
			if ht.Strand == '+' && ht.Xs == '-' {
				continue
			}
			if ht.Strand == '-' && ht.Xs == '+' {
				continue
			}
			if ht.Strand == '.' && ht.Xs != '.' {
				ht.Strand = ht.Xs
			}
			if ht.Strand == '+' {
				a.addHit(a.bb1, ht, chrm)
			}
			if ht.Strand == '-' {
				a.addHit(a.bb2, ht, chrm)
			}
		} else {
			switch ht.Xs {
			case '.':
				a.addHit(a.bb1, ht, chrm)
				a.addHit(a.bb2, ht, chrm)
			case '+':
				a.addHit(a.bb1, ht, chrm)
			case '-':
				a.addHit(a.bb2, ht, chrm)
			}
		}
	}

	a.flush(a.bb1)
	a.flush(a.bb2)
	a.process(0)

	a.assignRPKM()
	a.trsts = mergeSingleExonTranscripts(a.trsts)
	a.nonFullTrsts = mergeSingleExonTranscripts(a.nonFullTrsts)
	a.trsts = filterLengthCoverage(a.trsts, a.cfg.FilterLengthCoverage)
	a.trsts = removeNestedTranscripts(a.trsts, a.cfg.RemoveNestedTranscripts)
	sortTranscripts(a.trsts)
	sortTranscripts(a.nonFullTrsts)

	a.write()
	log.Noticef("Assembled %d transcripts (%d non-full) from %d reads",
		len(a.trsts), len(a.nonFullTrsts), a.qcnt)
}

// addHit dispatches a private copy of the hit into a bundle; a hit shared
// between both strand bundles must not share pairing state
func (a *Assembler) addHit(bb *BundleBase, ht *Hit, chrm string) {
	h := *ht
	if err := bb.AddHit(&h); err != nil {
		log.Errorf("drop hit %s: %v", h.Qname, err)
		return
	}
	bb.Chrm = chrm
}

// flush moves a non-empty bundle into the processing pool
func (a *Assembler) flush(bb *BundleBase) {
	if len(bb.Hits) >= 1 {
		nb := *bb
		a.pool = append(a.pool, &nb)
	}
	bb.Clear()
}

// process drains the pool once it holds at least n bundles; a bundle that
// violates an internal invariant is logged and dropped
func (a *Assembler) process(n int) {
	if len(a.pool) < n {
		return
	}
	for _, bb := range a.pool {
		if err := a.processBundle(bb); err != nil {
			log.Errorf("drop bundle %s:%d-%d: %v", bb.Chrm, bb.Lpos, bb.Rpos, err)
		}
	}
	a.pool = a.pool[:0]
}

// processBundle runs the per-bundle pipeline for both weighting modes and
// collects the surviving transcripts
func (a *Assembler) processBundle(bb *BundleBase) error {
	cfg := a.cfg
	if len(bb.Hits) < cfg.MinNumHitsInBundle {
		return nil
	}
	if bb.Tid < 0 {
		return nil
	}

	ts1 := NewTranscriptSet(bb.Chrm)
	ts2 := NewTranscriptSet(bb.Chrm)

	bd, err := NewBundle(bb, a.vmap, cfg)
	if err != nil {
		return err
	}

	for _, mode := range []int{1, 2} {
		bd.Build(mode, true)
		a.index++
		if err := a.assembleGraph(bd.Gr, bd.Hs, bb.IsAllelic, ts1, ts2); err != nil {
			return err
		}
	}

	sdup := cfg.AssembleDuplicates/1 + 1
	mdup := cfg.AssembleDuplicates / 2

	gv1 := ts1.GetTranscripts(sdup, mdup)
	gv2 := ts2.GetTranscripts(sdup, mdup)
	for k := range gv1 {
		if len(gv1[k].Exons) >= 2 {
			gv1[k].Coverage /= float64(cfg.AssembleDuplicates)
		}
	}
	for k := range gv2 {
		if len(gv2[k].Exons) >= 2 {
			gv2[k].Coverage /= float64(cfg.AssembleDuplicates)
		}
	}
	a.trsts = append(a.trsts, gv1...)
	a.nonFullTrsts = append(a.nonFullTrsts, gv2...)
	return nil
}

// assembleGraph decomposes one built graph and, when the bundle carries
// allelic vertices, phases it into two allele-specific assemblies
func (a *Assembler) assembleGraph(gr0 *SpliceGraph, hs0 *HyperSet, isAllelic bool, ts1, ts2 *TranscriptSet) error {
	cfg := a.cfg
	if a.determineRegionalGraph(gr0) {
		return nil
	}
	if gr0.NumEdges() <= 0 {
		return nil
	}

	for r := 0; r < cfg.AssembleDuplicates; r++ {
		gid := fmt.Sprintf("gene.%d.%d", a.index, r)
		gr := gr0.Copy(nil, nil)
		gr.Gid = gid
		hs := hs0.CloneNodes()

		sc := NewDecomposer(gr, hs, isAllelic, cfg)
		sc.Assemble(isAllelic)
		for _, t := range sc.Trsts {
			ts1.Add(t, CoverageMin)
		}
		for _, t := range sc.NonFullTrsts {
			ts2.Add(t, CoverageMin)
		}

		if len(sc.AsNonzeroSet) == 0 {
			// nothing to phase; the plain decomposition stands
			continue
		}

		ph, err := NewPhaser(sc, isAllelic, cfg)
		if err != nil {
			return err
		}
		for _, t := range ph.Trsts1 {
			ts1.Add(t, CoverageMin)
		}
		for _, t := range ph.Trsts2 {
			ts1.Add(t, CoverageMin)
		}
		for _, t := range ph.NonFullTrsts1 {
			ts2.Add(t, CoverageMin)
		}
		for _, t := range ph.NonFullTrsts2 {
			ts2.Add(t, CoverageMin)
		}
	}
	return nil
}

// determineRegionalGraph reports whether every internal vertex is regional
func (a *Assembler) determineRegionalGraph(gr *SpliceGraph) bool {
	for i := 1; i < gr.NumVertices()-1; i++ {
		if !gr.GetVertexInfo(i).Regional {
			return false
		}
	}
	return gr.NumVertices() > 2
}

// assignRPKM normalizes transcript abundances by the total aligned length
func (a *Assembler) assignRPKM() {
	if a.qlen <= 0 {
		return
	}
	factor := 1e9 / float64(a.qlen)
	for i := range a.trsts {
		a.trsts[i].AssignRPKM(factor)
	}
}

// write emits the gtf/gvf/fa outputs plus the non-full transcript file
func (a *Assembler) write() {
	cfg := a.cfg
	fout := mustCreate(cfg.OutputFile + ".gtf")
	gvfout := mustCreate(cfg.OutputFile + ".gvf")
	for i := range a.trsts {
		a.trsts[i].WriteGtf(fout)
		a.trsts[i].WriteGvf(gvfout)
	}
	fout.Close()
	gvfout.Close()

	if a.genome != nil {
		faout := mustCreate(cfg.OutputFile + ".fa")
		for i := range a.trsts {
			a.trsts[i].WriteFasta(faout, 60, a.genome)
		}
		faout.Close()
	}

	fout1 := mustCreate(cfg.OutputFile + ".full.gtf")
	for i := range a.nonFullTrsts {
		a.nonFullTrsts[i].WriteGtf(fout1)
	}
	fout1.Close()

	log.Noticef("Transcripts written to `%s.gtf`", cfg.OutputFile)
}
