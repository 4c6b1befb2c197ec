/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

// BundleBase accumulates the hits of one gap-connected genomic region
// together with the coverage maps the later stages consume.
type BundleBase struct {
	Tid       int
	Chrm      string
	Lpos      int32
	Rpos      int32
	Strand    byte
	IsAllelic bool

	Hits   []*Hit
	Mmap   *splitIntervalMap // matched-interval coverage
	Imap   *splitIntervalMap // intron and deletion coverage
	Nammap *splitIntervalMap // non-allelic matched coverage

	hasVcf bool
}

// NewBundleBase returns an empty bundle; hasVcf selects whether nammap is
// tracked separately from mmap
func NewBundleBase(hasVcf bool) *BundleBase {
	bb := &BundleBase{hasVcf: hasVcf}
	bb.reset()
	return bb
}

func (bb *BundleBase) reset() {
	bb.Tid = -1
	bb.Chrm = ""
	bb.Lpos = 1 << 30
	bb.Rpos = 0
	bb.Strand = '.'
	bb.IsAllelic = false
	bb.Hits = nil
	bb.Mmap = newSplitIntervalMap()
	bb.Imap = newSplitIntervalMap()
	bb.Nammap = newSplitIntervalMap()
}

// AddHit extends the bundle with one alignment. All hits of a bundle must
// share tid and strand.
func (bb *BundleBase) AddHit(ht *Hit) error {
	bb.Hits = append(bb.Hits, ht)

	if ht.Pos < bb.Lpos {
		bb.Lpos = ht.Pos
	}
	if ht.Rpos > bb.Rpos {
		bb.Rpos = ht.Rpos
	}

	if bb.Tid == -1 {
		bb.Tid = ht.Tid
	}
	if bb.Tid != ht.Tid {
		return bundleErrorf("hit tid %d does not match bundle tid %d", ht.Tid, bb.Tid)
	}

	if len(bb.Hits) <= 1 {
		bb.Strand = ht.Strand
	}
	if bb.Strand != ht.Strand {
		return bundleErrorf("hit strand %c does not match bundle strand %c", ht.Strand, bb.Strand)
	}

	if len(ht.Apos) != 0 {
		bb.IsAllelic = true
	}

	for _, p := range ht.Itvm {
		bb.Mmap.Add(high32(p), low32(p), 1)
	}
	for _, p := range ht.Itvi {
		bb.Imap.Add(high32(p), low32(p), 1)
	}
	for _, p := range ht.Itvd {
		bb.Imap.Add(high32(p), low32(p), 1)
	}

	if !bb.hasVcf {
		for _, p := range ht.Itvm {
			bb.Nammap.Add(high32(p), low32(p), 1)
		}
	} else {
		for _, p := range ht.Itvna {
			bb.Nammap.Add(high32(p), low32(p), 1)
		}
	}
	return nil
}

// Overlap reports whether the hit's first or last base is covered
func (bb *BundleBase) Overlap(ht *Hit) bool {
	if bb.Mmap.Find(ht.Pos) {
		return true
	}
	if bb.Mmap.Find(ht.Rpos - 1) {
		return true
	}
	return false
}

// Clear releases the bundle's entire object graph
func (bb *BundleBase) Clear() {
	bb.reset()
}
