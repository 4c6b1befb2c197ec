/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import (
	"fmt"
	"sort"
)

// VertexInfo annotates one splice-graph vertex
type VertexInfo struct {
	Lpos     AsPos32
	Rpos     AsPos32
	Length   int32
	Gt       Genotype
	Stddev   float64
	Type     int // VertexNormal or EmptyVertex
	AsType   int // StartOrSink, NsNonvar, AsDiploidVar, AjNonvar
	Regional bool
}

// IsAsVertex reports whether the vertex sits on a variant locus
func (vi *VertexInfo) IsAsVertex() bool {
	return vi.AsType == AsDiploidVar
}

// EdgeInfo annotates one splice-graph edge
type EdgeInfo struct {
	Weight float64
	Strand byte
}

// Edge is a directed splice-graph edge. The id indexes the owning graph's
// arena and doubles as the hyper-set edge index; removed edges leave a nil
// slot so ids stay stable.
type Edge struct {
	ID   int
	S    int
	T    int
	W    float64
	Info EdgeInfo
}

func (e *Edge) String() string {
	return fmt.Sprintf("edge %d: %d->%d w=%.2f", e.ID, e.S, e.T, e.W)
}

// SpliceGraph is a DAG whose vertex 0 is the source and vertex n-1 the
// sink; internal vertices are partial exons.
type SpliceGraph struct {
	Gid    string
	Chrm   string
	Strand byte

	vwrt  []float64
	vinf  []VertexInfo
	outEs [][]*Edge
	inEs  [][]*Edge
	arena []*Edge
}

// NewSpliceGraph returns an empty graph
func NewSpliceGraph() *SpliceGraph {
	return &SpliceGraph{}
}

// Clear drops all vertices and edges
func (g *SpliceGraph) Clear() {
	g.vwrt = nil
	g.vinf = nil
	g.outEs = nil
	g.inEs = nil
	g.arena = nil
}

// AddVertex appends a vertex and returns its index
func (g *SpliceGraph) AddVertex() int {
	g.vwrt = append(g.vwrt, 0)
	g.vinf = append(g.vinf, VertexInfo{})
	g.outEs = append(g.outEs, nil)
	g.inEs = append(g.inEs, nil)
	return len(g.vwrt) - 1
}

// NumVertices returns the vertex count including source and sink
func (g *SpliceGraph) NumVertices() int {
	return len(g.vwrt)
}

// NumEdges returns the live edge count
func (g *SpliceGraph) NumEdges() int {
	n := 0
	for _, e := range g.arena {
		if e != nil {
			n++
		}
	}
	return n
}

// SetVertexWeight sets the weight of vertex i
func (g *SpliceGraph) SetVertexWeight(i int, w float64) {
	g.vwrt[i] = w
}

// GetVertexWeight returns the weight of vertex i
func (g *SpliceGraph) GetVertexWeight(i int) float64 {
	return g.vwrt[i]
}

// SetVertexInfo sets the annotation of vertex i
func (g *SpliceGraph) SetVertexInfo(i int, vi VertexInfo) {
	g.vinf[i] = vi
}

// GetVertexInfo returns the annotation of vertex i
func (g *SpliceGraph) GetVertexInfo(i int) VertexInfo {
	return g.vinf[i]
}

// VertexInfoRef returns a mutable pointer to the annotation of vertex i
func (g *SpliceGraph) VertexInfoRef(i int) *VertexInfo {
	return &g.vinf[i]
}

// AddEdge creates an edge s->t and returns it
func (g *SpliceGraph) AddEdge(s, t int) *Edge {
	e := &Edge{ID: len(g.arena), S: s, T: t}
	g.arena = append(g.arena, e)
	g.outEs[s] = append(g.outEs[s], e)
	g.inEs[t] = append(g.inEs[t], e)
	return e
}

// RemoveEdge detaches an edge, leaving a nil arena slot
func (g *SpliceGraph) RemoveEdge(e *Edge) {
	g.outEs[e.S] = dropEdge(g.outEs[e.S], e)
	g.inEs[e.T] = dropEdge(g.inEs[e.T], e)
	g.arena[e.ID] = nil
}

func dropEdge(es []*Edge, e *Edge) []*Edge {
	for i, x := range es {
		if x == e {
			return append(es[:i], es[i+1:]...)
		}
	}
	return es
}

// Edge returns any live edge s->t
func (g *SpliceGraph) Edge(s, t int) (*Edge, bool) {
	for _, e := range g.outEs[s] {
		if e.T == t {
			return e, true
		}
	}
	return nil, false
}

// EdgeByID returns the live edge with the given arena id
func (g *SpliceGraph) EdgeByID(id int) *Edge {
	if id < 0 || id >= len(g.arena) {
		return nil
	}
	return g.arena[id]
}

// MaxEdgeID returns the arena size (one past the largest id ever assigned)
func (g *SpliceGraph) MaxEdgeID() int {
	return len(g.arena)
}

// Edges returns the live edges in id order
func (g *SpliceGraph) Edges() []*Edge {
	var es []*Edge
	for _, e := range g.arena {
		if e != nil {
			es = append(es, e)
		}
	}
	return es
}

// InEdges returns the in-edges of vertex i
func (g *SpliceGraph) InEdges(i int) []*Edge {
	return g.inEs[i]
}

// OutEdges returns the out-edges of vertex i
func (g *SpliceGraph) OutEdges(i int) []*Edge {
	return g.outEs[i]
}

// InDegree returns the in-degree of vertex i
func (g *SpliceGraph) InDegree(i int) int {
	return len(g.inEs[i])
}

// OutDegree returns the out-degree of vertex i
func (g *SpliceGraph) OutDegree(i int) int {
	return len(g.outEs[i])
}

// Degree returns the total degree of vertex i
func (g *SpliceGraph) Degree(i int) int {
	return len(g.inEs[i]) + len(g.outEs[i])
}

// ClearVertex removes every edge incident to vertex i
func (g *SpliceGraph) ClearVertex(i int) {
	for _, e := range append([]*Edge{}, g.inEs[i]...) {
		g.RemoveEdge(e)
	}
	for _, e := range append([]*Edge{}, g.outEs[i]...) {
		g.RemoveEdge(e)
	}
}

// SetEdgeWeight sets the weight of an edge
func (g *SpliceGraph) SetEdgeWeight(e *Edge, w float64) {
	e.W = w
}

// GetEdgeWeight returns the weight of an edge
func (g *SpliceGraph) GetEdgeWeight(e *Edge) float64 {
	return e.W
}

// SetEdgeInfo sets the annotation of an edge
func (g *SpliceGraph) SetEdgeInfo(e *Edge, ei EdgeInfo) {
	e.Info = ei
}

// GetEdgeInfo returns the annotation of an edge
func (g *SpliceGraph) GetEdgeInfo(e *Edge) EdgeInfo {
	return e.Info
}

// MaxInEdge returns the heaviest in-edge of vertex i
func (g *SpliceGraph) MaxInEdge(i int) *Edge {
	var best *Edge
	for _, e := range g.inEs[i] {
		if best == nil || e.W > best.W {
			best = e
		}
	}
	return best
}

// MaxOutEdge returns the heaviest out-edge of vertex i
func (g *SpliceGraph) MaxOutEdge(i int) *Edge {
	var best *Edge
	for _, e := range g.outEs[i] {
		if best == nil || e.W > best.W {
			best = e
		}
	}
	return best
}

// LocateVertex finds the internal vertex whose interval contains pos.
// Internal vertices are sorted by lpos by construction.
func (g *SpliceGraph) LocateVertex(pos int32) int {
	n := g.NumVertices()
	if n <= 2 {
		return -1
	}
	lo := sort.Search(n-2, func(k int) bool {
		return g.vinf[k+1].Lpos.P > pos
	})
	for i := lo; i >= 1; i-- {
		vi := &g.vinf[i]
		if vi.Lpos.P <= pos && pos < vi.Rpos.P {
			return i
		}
	}
	return -1
}

// Copy duplicates the graph's topology, weights and annotations. x2y and
// y2x receive the edge-id bijection between this graph and the copy.
func (g *SpliceGraph) Copy(x2y, y2x map[int]int) *SpliceGraph {
	c := NewSpliceGraph()
	c.Gid = g.Gid
	c.Chrm = g.Chrm
	c.Strand = g.Strand
	for i := 0; i < g.NumVertices(); i++ {
		c.AddVertex()
		c.SetVertexWeight(i, g.vwrt[i])
		c.SetVertexInfo(i, g.vinf[i])
	}
	for _, e := range g.arena {
		if e == nil {
			continue
		}
		ne := c.AddEdge(e.S, e.T)
		ne.W = e.W
		ne.Info = e.Info
		if x2y != nil {
			x2y[e.ID] = ne.ID
		}
		if y2x != nil {
			y2x[ne.ID] = e.ID
		}
	}
	return c
}
