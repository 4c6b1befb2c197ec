/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"github.com/biogo/hts/sam"
)

// matchSeg maps one aligned reference segment back to read coordinates
type matchSeg struct {
	refs  int32
	reft  int32
	reads int32
}

// Hit is one read alignment, decomposed into reference intervals plus the
// variant alleles the read was observed to carry.
type Hit struct {
	Tid    int
	Pos    int32
	Rpos   int32
	Mpos   int32
	Isize  int32
	Qual   int
	Flag   int
	NCigar int
	Nh     int
	Nm     int
	Qlen   int32
	Xs     byte
	Strand byte
	Qname  string
	Umi    string
	Qhash  uint64

	Itvm  []int64 // matched intervals on reference
	Itvi  []int64 // intron intervals (N ops)
	Itvd  []int64 // deletion intervals (D ops)
	Itvna []int64 // matched intervals minus variant footprints
	Spos  []AsPos // splice positions, packed (donor, acceptor)
	Apos  []AsPos // overlapped variants, packed (start, end) + observed allele

	// bundle-stage state
	Vlist   []int // run-length encoded region indices
	Paired  bool
	Bridged bool
	Pi      int // index of the paired hit
	Fidx    int // index of the owning fragment

	segs []matchSeg
	seq  []byte
}

// NewHit decomposes a BAM record. The variant annotation may be nil.
func NewHit(rec *sam.Record, chrm string, vmap *VcfData) *Hit {
	h := &Hit{
		Tid:    rec.Ref.ID(),
		Pos:    int32(rec.Pos),
		Mpos:   int32(rec.MatePos),
		Isize:  int32(rec.TempLen),
		Qual:   int(rec.MapQ),
		Flag:   int(rec.Flags),
		NCigar: len(rec.Cigar),
		Nh:     1,
		Xs:     '.',
		Strand: '.',
		Qname:  rec.Name,
		Qhash:  stringHash(rec.Name),
		Pi:     -1,
		Fidx:   -1,
		seq:    rec.Seq.Expand(),
	}

	h.parseCigar(rec.Cigar)
	h.parseTags(rec)
	if rec.Flags&sam.Reverse != 0 {
		h.Strand = '-'
	} else {
		h.Strand = '+'
	}
	h.findVariants(chrm, vmap)
	return h
}

// parseCigar walks the alignment, filling match/intron/deletion intervals
// and the read-coordinate map used for allele extraction
func (h *Hit) parseCigar(cigar sam.Cigar) {
	p := h.Pos
	var readAt int32
	for _, co := range cigar {
		n := int32(co.Len())
		switch co.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			h.Itvm = append(h.Itvm, pack(p, p+n))
			h.segs = append(h.segs, matchSeg{refs: p, reft: p + n, reads: readAt})
			p += n
			readAt += n
			h.Qlen += n
		case sam.CigarInsertion:
			readAt += n
			h.Qlen += n
		case sam.CigarDeletion:
			h.Itvd = append(h.Itvd, pack(p, p+n))
			p += n
		case sam.CigarSkipped:
			h.Itvi = append(h.Itvi, pack(p, p+n))
			h.Spos = append(h.Spos, NewAsPos(p, p+n, NonAllele))
			p += n
		case sam.CigarSoftClipped:
			readAt += n
			h.Qlen += n
		}
	}
	h.Rpos = p
}

// parseTags extracts XS/NH/NM/UB auxiliary tags
func (h *Hit) parseTags(rec *sam.Record) {
	if aux, ok := rec.Tag([]byte("XS")); ok {
		if v, ok := aux.Value().(byte); ok {
			h.Xs = v
		}
	}
	if aux, ok := rec.Tag([]byte("NH")); ok {
		h.Nh = auxInt(aux, 1)
	}
	if aux, ok := rec.Tag([]byte("NM")); ok {
		h.Nm = auxInt(aux, 0)
	}
	if aux, ok := rec.Tag([]byte("UB")); ok {
		if v, ok := aux.Value().(string); ok {
			h.Umi = v
		}
	}
}

// auxInt widens any integer-kind aux value
func auxInt(aux sam.Aux, def int) int {
	switch v := aux.Value().(type) {
	case int8:
		return int(v)
	case uint8:
		return int(v)
	case int16:
		return int(v)
	case uint16:
		return int(v)
	case int32:
		return int(v)
	case uint32:
		return int(v)
	}
	return def
}

// SetStrand infers the transcriptional strand of a stranded library from
// the read-pair orientation flags
func (h *Hit) SetStrand(libraryType int) {
	f := sam.Flags(h.Flag)
	switch libraryType {
	case FrFirst:
		if f&sam.Read1 != 0 {
			if f&sam.Reverse != 0 {
				h.Strand = '+'
			} else {
				h.Strand = '-'
			}
		} else if f&sam.Read2 != 0 {
			if f&sam.Reverse != 0 {
				h.Strand = '-'
			} else {
				h.Strand = '+'
			}
		}
	case FrSecond:
		if f&sam.Read1 != 0 {
			if f&sam.Reverse != 0 {
				h.Strand = '-'
			} else {
				h.Strand = '+'
			}
		} else if f&sam.Read2 != 0 {
			if f&sam.Reverse != 0 {
				h.Strand = '+'
			} else {
				h.Strand = '-'
			}
		}
	default:
		h.Strand = '.'
	}
}

// findVariants intersects the match intervals with the variant footprints,
// recording the observed allele string at every fully-spanned locus, and
// derives the non-allelic remainder intervals
func (h *Hit) findVariants(chrm string, vmap *VcfData) {
	if vmap == nil {
		h.Itvna = h.Itvm
		return
	}
	for _, seg := range h.segs {
		cut := seg.refs
		for _, pos := range vmap.VariantsIn(chrm, seg.refs, seg.reft) {
			l := vmap.AleLen[chrm][pos]
			if pos < seg.refs || pos+l > seg.reft {
				continue // partially spanned locus carries no usable allele
			}
			off := seg.reads + (pos - seg.refs)
			if int(off+l) > len(h.seq) {
				continue
			}
			ale := string(h.seq[off : off+l])
			h.Apos = append(h.Apos, NewAsPos(pos, pos+l, ale))
			if pos > cut {
				h.Itvna = append(h.Itvna, pack(cut, pos))
			}
			cut = pos + l
		}
		if cut < seg.reft {
			h.Itvna = append(h.Itvna, pack(cut, seg.reft))
		}
	}
}

// HasVariant reports whether the hit spans any annotated variant
func (h *Hit) HasVariant() bool {
	return len(h.Apos) > 0
}

// AlignedIntervals returns the hit's reference intervals for region
// alignment: match intervals merged across deletions, then split at the
// variant loci the read carries, with each variant piece tagged by its
// observed allele.
func (h *Hit) AlignedIntervals() []AsPos {
	dels := make(map[int64]struct{}, len(h.Itvd))
	for _, d := range h.Itvd {
		dels[d] = struct{}{}
	}

	// merge M runs whose gap is exactly one deletion
	type span struct{ s, t int32 }
	var merged []span
	for _, p := range h.Itvm {
		s, t := high32(p), low32(p)
		n := len(merged)
		if n >= 1 {
			gap := pack(merged[n-1].t, s)
			if _, ok := dels[gap]; ok || merged[n-1].t == s {
				merged[n-1].t = t
				continue
			}
		}
		merged = append(merged, span{s: s, t: t})
	}

	var out []AsPos
	for _, sp := range merged {
		cut := sp.s
		for _, a := range h.Apos {
			ps, pt := high32(a.P64), low32(a.P64)
			if ps < sp.s || pt > sp.t {
				continue
			}
			if ps > cut {
				out = append(out, NewAsPos(cut, ps, NonAllele))
			}
			out = append(out, a)
			cut = pt
		}
		if cut < sp.t {
			out = append(out, NewAsPos(cut, sp.t, NonAllele))
		}
	}
	return out
}
