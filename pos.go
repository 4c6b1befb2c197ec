/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import "fmt"

// AsPos32 is a reference coordinate extended with an allele tag. The tag is
// NonAllele ("$") on non-allelic positions, or the observed nucleotide
// string at a variant locus. Coordinate arithmetic uses only the integer
// component; the tag participates in ordering and identity.
type AsPos32 struct {
	P   int32
	Ale string
}

// NewPos returns a non-allelic position
func NewPos(p int32) AsPos32 {
	return AsPos32{P: p, Ale: NonAllele}
}

// NewAsPos32 returns a position tagged with an allele string
func NewAsPos32(p int32, ale string) AsPos32 {
	return AsPos32{P: p, Ale: ale}
}

// IsAllelic reports whether the position carries an allele tag
func (a AsPos32) IsAllelic() bool {
	return a.Ale != NonAllele
}

// SamePos reports coordinate equality regardless of allele tags
func (a AsPos32) SamePos(b AsPos32) bool {
	return a.P == b.P
}

// LeftTo reports a.P < b.P
func (a AsPos32) LeftTo(b AsPos32) bool {
	return a.P < b.P
}

// LeftSameTo reports a.P <= b.P
func (a AsPos32) LeftSameTo(b AsPos32) bool {
	return a.P <= b.P
}

// RightTo reports a.P > b.P
func (a AsPos32) RightTo(b AsPos32) bool {
	return a.P > b.P
}

// RightSameTo reports a.P >= b.P
func (a AsPos32) RightSameTo(b AsPos32) bool {
	return a.P >= b.P
}

// Less orders positions by coordinate, with "$" before named alleles and
// named alleles lexicographically at equal coordinates
func (a AsPos32) Less(b AsPos32) bool {
	if a.P != b.P {
		return a.P < b.P
	}
	if a.Ale == b.Ale {
		return false
	}
	if a.Ale == NonAllele {
		return true
	}
	if b.Ale == NonAllele {
		return false
	}
	return a.Ale < b.Ale
}

// String renders the position with its allele tag
func (a AsPos32) String() string {
	return fmt.Sprintf("%d%s", a.P, a.Ale)
}

// AsPos packs a pair of 32-bit coordinates plus a shared allele tag; it
// encodes a junction (donor, acceptor) or a variant span (start, end).
type AsPos struct {
	P64 int64
	Ale string
}

// pack combines two int32 into one int64
func pack(x, y int32) int64 {
	return int64(x)<<32 | int64(uint32(y))
}

// high32 extracts the high half of a packed pair
func high32(p int64) int32 {
	return int32(p >> 32)
}

// low32 extracts the low half of a packed pair
func low32(p int64) int32 {
	return int32(p)
}

// NewAsPos packs (x, y) under an allele tag
func NewAsPos(x, y int32, ale string) AsPos {
	return AsPos{P64: pack(x, y), Ale: ale}
}

// High returns the high coordinate with the pair's allele tag
func (a AsPos) High() AsPos32 {
	return AsPos32{P: high32(a.P64), Ale: a.Ale}
}

// Low returns the low coordinate with the pair's allele tag
func (a AsPos) Low() AsPos32 {
	return AsPos32{P: low32(a.P64), Ale: a.Ale}
}

// Less orders packed pairs by coordinates, "$" first at ties
func (a AsPos) Less(b AsPos) bool {
	if a.P64 != b.P64 {
		return a.P64 < b.P64
	}
	if a.Ale == b.Ale {
		return false
	}
	if a.Ale == NonAllele {
		return true
	}
	if b.Ale == NonAllele {
		return false
	}
	return a.Ale < b.Ale
}
