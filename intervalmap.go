/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// splitIntervalMap accumulates weighted half-open intervals on the reference
// and answers per-base coverage queries. Adding [s,t) with weight w raises
// the coverage of every base in [s,t) by w; overlapping intervals split at
// their boundaries, which is the behavior region construction relies on.
type splitIntervalMap struct {
	events map[int32]int
	dirty  bool

	bounds []int32 // sorted boundary positions
	covs   []int   // covs[i] is the coverage of [bounds[i], bounds[i+1])
}

// coverSegment is one maximal run of constant coverage
type coverSegment struct {
	s, t int32
	w    int
}

func newSplitIntervalMap() *splitIntervalMap {
	return &splitIntervalMap{events: make(map[int32]int)}
}

// Add raises coverage of [s, t) by w
func (m *splitIntervalMap) Add(s, t int32, w int) {
	if s >= t {
		return
	}
	m.events[s] += w
	m.events[t] -= w
	m.dirty = true
}

// Clear drops all accumulated intervals
func (m *splitIntervalMap) Clear() {
	m.events = make(map[int32]int)
	m.bounds = nil
	m.covs = nil
	m.dirty = false
}

// Clone returns a deep copy of the accumulated events
func (m *splitIntervalMap) Clone() *splitIntervalMap {
	c := newSplitIntervalMap()
	for k, v := range m.events {
		c.events[k] = v
	}
	c.dirty = true
	return c
}

// build flattens the event map into sorted segments of constant coverage
func (m *splitIntervalMap) build() {
	if !m.dirty {
		return
	}
	m.bounds = m.bounds[:0]
	for p := range m.events {
		m.bounds = append(m.bounds, p)
	}
	sortInt32s(m.bounds)
	m.covs = make([]int, len(m.bounds))
	c := 0
	for i, p := range m.bounds {
		c += m.events[p]
		m.covs[i] = c
	}
	m.dirty = false
}

// locate returns the segment index covering pos, or -1
func (m *splitIntervalMap) locate(pos int32) int {
	m.build()
	i := sort.Search(len(m.bounds), func(i int) bool { return m.bounds[i] > pos })
	return i - 1
}

// Overlap returns the coverage at pos
func (m *splitIntervalMap) Overlap(pos int32) int {
	i := m.locate(pos)
	if i < 0 || i >= len(m.covs) {
		return 0
	}
	return m.covs[i]
}

// Find reports whether pos lies in a positively covered segment
func (m *splitIntervalMap) Find(pos int32) bool {
	return m.Overlap(pos) > 0
}

// Profile returns the constant-coverage segments of [l, r), clipped to the
// query; uncovered gaps appear as zero-weight segments
func (m *splitIntervalMap) Profile(l, r int32) []coverSegment {
	m.build()
	var out []coverSegment
	if l >= r {
		return out
	}
	i := sort.Search(len(m.bounds), func(i int) bool { return m.bounds[i] > l })
	i-- // segment containing l, or -1 when l precedes all boundaries

	at := l
	for at < r {
		var t int32
		var w int
		if i < 0 {
			w = 0
		} else if i < len(m.covs) {
			w = m.covs[i]
		}
		if i+1 < len(m.bounds) && m.bounds[i+1] < r {
			t = m.bounds[i+1]
		} else {
			t = r
		}
		if t > at {
			out = append(out, coverSegment{s: at, t: t, w: w})
		}
		at = t
		i++
	}
	return out
}

// EvaluateRectangle computes the base-level mean, standard deviation and
// maximum coverage over [l, r)
func (m *splitIntervalMap) EvaluateRectangle(l, r int32) (ave, dev, maxc float64) {
	segs := m.Profile(l, r)
	if len(segs) == 0 {
		return 0, 0, 0
	}
	xs := make([]float64, len(segs))
	ws := make([]float64, len(segs))
	for i, sg := range segs {
		xs[i] = float64(sg.w)
		ws[i] = float64(sg.t - sg.s)
		if xs[i] > maxc {
			maxc = xs[i]
		}
	}
	ave, dev = stat.MeanStdDev(xs, ws)
	if len(segs) == 1 {
		dev = 0
	}
	return ave, dev, maxc
}

// sortInt32s sorts a slice of int32
func sortInt32s(a []int32) {
	sort.Slice(a, func(i, j int) bool {
		return a[i] < a[j]
	})
}
