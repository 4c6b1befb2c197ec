/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

// previewCount is how many accepted hits the previewer samples
const previewCount = 2000

// Previewer samples the head of the BAM to infer the library type from
// XS-vs-orientation concordance and to set the insert-size window from the
// observed template lengths.
type Previewer struct {
	cfg *Config
}

// NewPreviewer wires a previewer onto the configuration
func NewPreviewer(cfg *Config) *Previewer {
	return &Previewer{cfg: cfg}
}

// Preview samples the input and updates LibraryType, InsertsizeLow and
// InsertsizeHigh in place
func (pv *Previewer) Preview() {
	cfg := pv.cfg
	mustExist(cfg.InputFile)
	fh, err := os.Open(cfg.InputFile)
	ErrorAbort(err)
	defer fh.Close()

	br, err := bam.NewReader(fh, 0)
	if br == nil {
		log.Fatalf("Cannot open bamfile `%s` (%s)", cfg.InputFile, err)
	}
	defer br.Close()

	agreeFirst, agreeSecond, voted := 0, 0, 0
	var isizes []int32
	n := 0

	for n < previewCount {
		rec, err := br.Read()
		if err != nil {
			if err != io.EOF {
				log.Error(err)
			}
			break
		}
		flags := rec.Flags
		if flags&sam.Unmapped != 0 || flags&sam.Secondary != 0 {
			continue
		}
		if len(rec.Cigar) < 1 {
			continue
		}
		n++

		if rec.TempLen > 0 {
			isizes = append(isizes, int32(rec.TempLen))
		}

		aux, ok := rec.Tag([]byte("XS"))
		if !ok {
			continue
		}
		xs, ok := aux.Value().(byte)
		if !ok || xs == '.' {
			continue
		}

		h := &Hit{Flag: int(flags)}
		h.SetStrand(FrFirst)
		first := h.Strand
		h.SetStrand(FrSecond)
		second := h.Strand

		voted++
		if first == xs {
			agreeFirst++
		}
		if second == xs {
			agreeSecond++
		}
	}

	if voted >= 20 {
		ratioFirst := float64(agreeFirst) / float64(voted)
		ratioSecond := float64(agreeSecond) / float64(voted)
		switch {
		case ratioFirst >= 0.8:
			cfg.LibraryType = FrFirst
			log.Noticef("Preview: library inferred first-strand (%.1f%% concordant)", 100*ratioFirst)
		case ratioSecond >= 0.8:
			cfg.LibraryType = FrSecond
			log.Noticef("Preview: library inferred second-strand (%.1f%% concordant)", 100*ratioSecond)
		default:
			cfg.LibraryType = Unstranded
			log.Noticef("Preview: library inferred unstranded")
		}
	}

	if len(isizes) >= 50 {
		sortInt32s(isizes)
		low := isizes[len(isizes)*5/100]
		high := isizes[len(isizes)*99/100]
		if low < high {
			cfg.InsertsizeLow = low
			cfg.InsertsizeHigh = high
			log.Noticef("Preview: insert size window %d-%d from %d pairs", low, high, len(isizes))
		}
	}
}
