package model

import "math"

// Node is one node of a regression tree. Leaves have Left == -1.
type Node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t"`
	Left      int     `json:"l"`
	Right     int     `json:"r"`
	Value     float64 `json:"v"`
	Gain      float64 `json:"g,omitempty"`
}

// Tree is a regression tree stored as a flat node slice rooted at 0.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// predict walks the tree. Missing values go left.
func (t *Tree) predict(row []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		x := row[n.Feature]
		if math.IsNaN(x) || x <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeBuilder grows one tree on second-order gradient statistics using
// precomputed histogram bins.
type treeBuilder struct {
	bins     [][]uint16
	binner   *binner
	grad     []float64
	hess     []float64
	features []int
	params   Params

	nodes []Node
}

func (b *treeBuilder) build(rows []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(rows, 0)
	return Tree{Nodes: append([]Node(nil), b.nodes...)}
}

func (b *treeBuilder) grow(rows []int, depth int) int {
	var G, H float64
	for _, r := range rows {
		G += b.grad[r]
		H += b.hess[r]
	}
	lambda, mcw := b.params.Lambda, b.params.MinChildWeight

	idx := len(b.nodes)
	b.nodes = append(b.nodes, Node{
		Left:  -1,
		Right: -1,
		Value: -G / (H + lambda) * b.params.LearningRate,
	})
	if depth >= b.params.MaxDepth || H < 2*mcw {
		return idx
	}

	parent := G * G / (H + lambda)
	bestGain, bestFeature, bestBin := 0.0, -1, -1
	for _, f := range b.features {
		nb := b.binner.numBins(f)
		if nb < 2 {
			continue
		}
		hg := make([]float64, nb)
		hh := make([]float64, nb)
		for _, r := range rows {
			bin := b.bins[r][f]
			hg[bin] += b.grad[r]
			hh[bin] += b.hess[r]
		}
		var GL, HL float64
		for bin := 0; bin < nb-1; bin++ {
			GL += hg[bin]
			HL += hh[bin]
			GR, HR := G-GL, H-HL
			if HL < mcw || HR < mcw {
				continue
			}
			gain := GL*GL/(HL+lambda) + GR*GR/(HR+lambda) - parent
			if gain > bestGain {
				bestGain, bestFeature, bestBin = gain, f, bin
			}
		}
	}
	if bestFeature < 0 {
		return idx
	}

	var left, right []int
	for _, r := range rows {
		if int(b.bins[r][bestFeature]) <= bestBin {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.grow(left, depth+1)
	rgt := b.grow(right, depth+1)
	n := &b.nodes[idx]
	n.Feature = bestFeature
	n.Threshold = b.binner.edges[bestFeature][bestBin]
	n.Left, n.Right = l, rgt
	n.Gain = bestGain
	return idx
}
