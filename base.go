/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"fmt"
	"hash/fnv"
	"os"
	"path"
	"strings"

	logging "github.com/op/go-logging"
	"github.com/shenwei356/xopen"
)

const (
	// Version is the current version of phasm
	Version = "0.3.1"
	// NonAllele is the allele tag of a non-allelic position
	NonAllele = "$"
	// StartBoundary marks a region/partial-exon left end at the bundle start
	// or at a start of coverage
	StartBoundary = 1
	// EndBoundary marks a region/partial-exon right end at the bundle end
	// or at an end of coverage
	EndBoundary = 2
	// LeftSplice marks the left (donor) side of a junction
	LeftSplice = 4
	// RightSplice marks the right (acceptor) side of a junction
	RightSplice = 8
	// AllelicLeftSplice marks the inclusive start of a variant locus
	AllelicLeftSplice = 16
	// AllelicRightSplice marks the exclusive end of a variant locus
	AllelicRightSplice = 32
	// MiddleCut is a reserved type bit that no stage sets; coverage-derived
	// boundaries inside a region carry StartBoundary/EndBoundary
	MiddleCut = 64
)

// Partial-exon type labels. EmptyVertex is a tombstone: the vertex index
// stays valid but every downstream pass treats the vertex as deleted.
const (
	VertexNormal = 0
	EmptyVertex  = -9
	PseudoAS     = -1
)

// Vertex as_type values of the splice graph.
const (
	StartOrSink = iota
	NsNonvar
	AsDiploidVar
	AjNonvar // non-variant vertex adjacent to a variant vertex
)

var log = logging.MustGetLogger("phasm")
var format = logging.MustStringFormatter(
	`%{color}%{time:15:04:05} %{shortfunc} | %{level:.6s} %{color:reset} %{message}`,
)

// Backend is the default stderr output
var Backend = logging.NewLogBackend(os.Stderr, "", 0)

// BackendFormatter contains the fancy debug formatter
var BackendFormatter = logging.NewBackendFormatter(Backend, format)

// ErrorAbort logs the error and exits
func ErrorAbort(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

// bundleError is raised when a per-bundle invariant is violated; the driver
// drops the bundle and continues with the next one.
type bundleError struct {
	msg string
}

func (e *bundleError) Error() string {
	return e.msg
}

func bundleErrorf(f string, args ...interface{}) error {
	return &bundleError{msg: fmt.Sprintf(f, args...)}
}

// RemoveExt returns the substring minus the extension
func RemoveExt(filename string) string {
	return strings.TrimSuffix(filename, path.Ext(filename))
}

// mustExist checks the existence of a file and aborts if missing
func mustExist(filename string) {
	if _, err := os.Stat(filename); err != nil {
		log.Fatalf("file `%s` not found", filename)
	}
}

// mustOpen opens a possibly-compressed file for reading and aborts on failure
func mustOpen(filename string) *xopen.Reader {
	r, err := xopen.Ropen(filename)
	ErrorAbort(err)
	return r
}

// mustCreate opens a file for writing and aborts on failure
func mustCreate(filename string) *xopen.Writer {
	w, err := xopen.Wopen(filename)
	ErrorAbort(err)
	return w
}

// abs gets the absolute value of an int
func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// abs32 gets the absolute value of an int32
func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}

// min gets the minimum for two ints
func min(x, y int) int {
	if x < y {
		return x
	}
	return y
}

// max gets the maximum for two ints
func max(x, y int) int {
	if x > y {
		return x
	}
	return y
}

// minf gets the minimum for two float64s
func minf(x, y float64) float64 {
	if x < y {
		return x
	}
	return y
}

// maxf gets the maximum for two float64s
func maxf(x, y float64) float64 {
	if x > y {
		return x
	}
	return y
}

// stringHash hashes a query name into a bucket key
func stringHash(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}

// encodeVlist run-length encodes a sorted list of region indices into
// (start, length) pairs. decodeVlist is its inverse.
func encodeVlist(v []int) []int {
	vv := make([]int, 0, len(v))
	if len(v) == 0 {
		return vv
	}
	p := v[0]
	k := 1
	for i := 1; i < len(v); i++ {
		if v[i] == v[i-1]+1 {
			k++
			continue
		}
		vv = append(vv, p, k)
		p = v[i]
		k = 1
	}
	vv = append(vv, p, k)
	return vv
}

// decodeVlist expands (start, length) pairs back into the original list
func decodeVlist(v []int) []int {
	var vv []int
	if len(v)%2 != 0 {
		panic("vlist encoding must have even length")
	}
	for i := 0; i < len(v)/2; i++ {
		p := v[2*i]
		k := v[2*i+1]
		for j := p; j < p+k; j++ {
			vv = append(vv, j)
		}
	}
	return vv
}

// consecutiveSubset returns the offsets at which x occurs in ref as a
// consecutive sub-sequence
func consecutiveSubset(ref, x []int) []int {
	var v []int
	if len(x) == 0 || len(ref) == 0 || len(x) > len(ref) {
		return v
	}
	for i := 0; i+len(x) <= len(ref); i++ {
		b := true
		for j := 0; j < len(x); j++ {
			if ref[i+j] != x[j] {
				b = false
				break
			}
		}
		if b {
			v = append(v, i)
		}
	}
	return v
}
