package clustering

import (
	"fmt"
	"math"
)

// normalize L2-normalizes each vector. Zero vectors stay zero.
func normalize(vectors [][]float32) ([][]float64, error) {
	if len(vectors) == 0 {
		return nil, nil
	}

	dims := len(vectors[0])
	if dims == 0 {
		return nil, fmt.Errorf("embedding 0 is empty")
	}

	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("embedding %d has %d dimensions, expected %d", i, len(v), dims)
		}

		norm := 0.0
		row := make([]float64, dims)
		for j, x := range v {
			f := float64(x)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, fmt.Errorf("embedding %d holds a non-finite value", i)
			}
			row[j] = f
			norm += f * f
		}

		norm = math.Sqrt(norm)
		if norm > 0 {
			for j := range row {
				row[j] /= norm
			}
		}
		out[i] = row
	}
	return out, nil
}

// cosineDistances builds the full pairwise 1 - cos matrix, clipped to [0, 2]
func cosineDistances(unit [][]float64) ([][]float64, error) {
	n := len(unit)
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			dot := 0.0
			for k := range unit[i] {
				dot += unit[i][k] * unit[j][k]
			}
			d := 1 - dot
			if math.IsNaN(d) {
				return nil, fmt.Errorf("distance between %d and %d is NaN", i, j)
			}
			d = math.Min(math.Max(d, 0), 2)
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist, nil
}

// averageLinkage runs bottom-up clustering over a precomputed distance
// matrix. Two groups merge while their mean pairwise distance is below
// threshold. It returns one label per row; label values carry no order.
//
// Merges are found with a nearest-neighbour chain, so the whole run is
// O(n^2). Average linkage is reducible: the chain yields the same merges as
// always joining the closest pair, and merge heights never decrease along
// the dendrogram, so cutting at threshold keeps exactly the merges below it.
func averageLinkage(dist [][]float64, threshold float64) []int {
	n := len(dist)

	d := make([][]float64, n)
	for i := range dist {
		d[i] = append([]float64(nil), dist[i]...)
	}

	groups := newUnionFind(n)
	size := make([]float64, n)
	active := make([]bool, n)
	for i := range active {
		size[i] = 1
		active[i] = true
	}

	chain := make([]int, 0, n)
	for remaining := n; remaining > 1; {
		if len(chain) == 0 {
			for i := range active {
				if active[i] {
					chain = append(chain, i)
					break
				}
			}
		}

		a := chain[len(chain)-1]
		prev, best := -1, math.Inf(1)
		if len(chain) > 1 {
			prev = chain[len(chain)-2]
			best = d[a][prev]
		}

		// strict comparison keeps prev on ties, so the chain cannot cycle
		b := prev
		for k := 0; k < n; k++ {
			if active[k] && k != a && d[a][k] < best {
				best = d[a][k]
				b = k
			}
		}

		if b != prev {
			chain = append(chain, b)
			continue
		}

		// a and prev are reciprocal nearest neighbours: fold a into prev
		chain = chain[:len(chain)-2]
		if best < threshold {
			groups.union(prev, a)
		}

		// Lance-Williams update for average linkage
		np, na := size[prev], size[a]
		for k := 0; k < n; k++ {
			if !active[k] || k == prev || k == a {
				continue
			}
			merged := (np*d[prev][k] + na*d[a][k]) / (np + na)
			d[prev][k] = merged
			d[k][prev] = merged
		}

		size[prev] += na
		active[a] = false
		remaining--
	}

	labels := make([]int, n)
	byRoot := make(map[int]int)
	for i := 0; i < n; i++ {
		root := groups.find(i)
		label, ok := byRoot[root]
		if !ok {
			label = len(byRoot)
			byRoot[root] = label
		}
		labels[i] = label
	}
	return labels
}

// unionFind tracks which rows have been merged into one group
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

func (u *unionFind) union(i, j int) {
	ri, rj := u.find(i), u.find(j)
	if ri != rj {
		u.parent[rj] = ri
	}
}
