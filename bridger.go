/*
 * Part of phasm, an allele-specific transcript assembler.
 * See LICENSE for licensing.
 */

package phasm

import "sort"

// maxBridgeSpan bounds the number of regions a bridging path may cross
const maxBridgeSpan = 64

// regionEdge is one traversable step of the region graph
type regionEdge struct {
	to      int
	support int // read-observed count; 0 for bare coordinate adjacency
}

// bridge runs one bridging pass. The region graph is built from regions
// whose genotype does not conflict with gt; only fragments of exactly that
// genotype are bridged, so allele-specific bridging never crosses genotype
// lines while unphased fragments remain eligible in the last pass.
func (br *BundleBridge) bridge(gt Genotype) {
	adj := br.buildRegionGraph(gt)

	for i := range br.Fragments {
		fr := &br.Fragments[i]
		if len(fr.Paths) >= 1 {
			continue
		}
		if fr.Gt != gt {
			continue
		}
		v1 := decodeVlist(fr.H1.Vlist)
		v2 := decodeVlist(fr.H2.Vlist)
		if len(v1) == 0 || len(v2) == 0 {
			continue
		}

		whole, supported, ok := br.connect(adj, v1, v2)
		if !ok {
			continue
		}

		ptype := 1
		if !supported {
			ptype = 2
		}
		fr.Paths = append(fr.Paths, FragPath{
			Type:   ptype,
			V:      encodeVlist(whole),
			Length: br.computeAlignedLength(fr.K1l, fr.K2r, whole),
		})
		fr.H1.Bridged = true
		fr.H2.Bridged = true
		br.Breads[fr.H1.Qname] = struct{}{}
	}
}

// buildRegionGraph compiles the traversable steps between regions: pairs
// consecutively observed in read vlists (with their support), plus bare
// coordinate adjacency. Regions conflicting with gt are excluded.
func (br *BundleBridge) buildRegionGraph(gt Genotype) map[int][]regionEdge {
	blocked := make([]bool, len(br.Regions))
	for i := range br.Regions {
		if gtAs(gt) && gtConflict(br.Regions[i].Gt, gt) {
			blocked[i] = true
		}
	}

	support := make(map[[2]int]int)
	for _, h := range br.bb.Hits {
		v := decodeVlist(h.Vlist)
		for k := 0; k+1 < len(v); k++ {
			if blocked[v[k]] || blocked[v[k+1]] {
				continue
			}
			support[[2]int{v[k], v[k+1]}]++
		}
	}

	adj := make(map[int][]regionEdge)
	for p, c := range support {
		adj[p[0]] = append(adj[p[0]], regionEdge{to: p[1], support: c})
	}

	// coordinate adjacency; parallel allelic regions fan out to every
	// successor at the shared coordinate
	for i := range br.Regions {
		if blocked[i] {
			continue
		}
		for j := i + 1; j < len(br.Regions); j++ {
			if blocked[j] {
				continue
			}
			if br.Regions[j].Lpos.P > br.Regions[i].Rpos.P {
				break
			}
			if !br.Regions[i].Rpos.SamePos(br.Regions[j].Lpos) {
				continue
			}
			if _, ok := support[[2]int{i, j}]; ok {
				continue
			}
			adj[i] = append(adj[i], regionEdge{to: j, support: 0})
		}
	}
	for i := range adj {
		es := adj[i]
		sort.Slice(es, func(a, b int) bool { return es[a].to < es[b].to })
	}
	return adj
}

// connect joins the two mates' region paths: by overlap when they meet,
// else through a minimal-hop search between v1's end and v2's start.
// supported reports whether every step of the joined path carries read
// support.
func (br *BundleBridge) connect(adj map[int][]regionEdge, v1, v2 []int) (whole []int, supported bool, ok bool) {
	last1 := v1[len(v1)-1]
	first2 := v2[0]

	if last1 >= first2 {
		// overlapping mates: v2 must begin inside v1 and agree on the overlap
		idx := -1
		for k, r := range v1 {
			if r == first2 {
				idx = k
				break
			}
		}
		if idx == -1 {
			return nil, false, false
		}
		for k := 0; idx+k < len(v1); k++ {
			if k >= len(v2) || v1[idx+k] != v2[k] {
				return nil, false, false
			}
		}
		whole = append(whole, v1[:idx]...)
		whole = append(whole, v2...)
		return whole, true, true
	}

	mid, supported, ok := br.searchPath(adj, last1, first2)
	if !ok {
		return nil, false, false
	}
	whole = append(whole, v1...)
	whole = append(whole, mid...)
	whole = append(whole, v2...)
	return whole, supported, true
}

// searchPath finds a minimal-hop, maximal-support path from src to dst over
// the region DAG. The returned list excludes both endpoints; supported
// reports whether every step carries read support.
func (br *BundleBridge) searchPath(adj map[int][]regionEdge, src, dst int) (mid []int, supported, ok bool) {
	if dst-src > maxBridgeSpan {
		return nil, false, false
	}
	const inf = int(^uint(0) >> 1)

	type state struct {
		hops    int
		minSupp int
		pred    int
	}
	best := make(map[int]state)
	best[src] = state{hops: 0, minSupp: inf, pred: -1}

	for u := src; u <= dst; u++ {
		su, okU := best[u]
		if !okU {
			continue
		}
		for _, e := range adj[u] {
			if e.to > dst {
				continue
			}
			cand := state{hops: su.hops + 1, minSupp: min(su.minSupp, e.support), pred: u}
			cur, seen := best[e.to]
			if !seen || cand.hops < cur.hops ||
				(cand.hops == cur.hops && cand.minSupp > cur.minSupp) {
				best[e.to] = cand
			}
		}
	}

	sd, okD := best[dst]
	if !okD || sd.hops > maxBridgeSpan {
		return nil, false, false
	}
	for at := sd.pred; at != src && at != -1; at = best[at].pred {
		mid = append(mid, at)
	}
	for i, j := 0, len(mid)-1; i < j; i, j = i+1, j-1 {
		mid[i], mid[j] = mid[j], mid[i]
	}
	return mid, sd.minSupp > 0, true
}
