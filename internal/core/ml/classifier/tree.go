package classifier

import (
	"math/rand"
	"slices"
)

// tree is a binary decision tree stored as a flat node list; node 0 is the root.
type tree struct {
	Nodes []treeNode `json:"nodes"`
}

type treeNode struct {
	// Feature is -1 for leaves.
	Feature   int       `json:"feature"`
	Threshold float64   `json:"threshold,omitempty"`
	Left      int       `json:"left,omitempty"`
	Right     int       `json:"right,omitempty"`
	Value     []float64 `json:"value,omitempty"`
}

func (t *tree) leaf(row []float64) []float64 {
	i := 0
	for t.Nodes[i].Feature >= 0 {
		n := t.Nodes[i]
		if row[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return t.Nodes[i].Value
}

type treeConfig struct {
	// maxDepth <= 0 grows until leaves are pure or too small.
	maxDepth int
	minSplit int
	// maxFeatures <= 0 considers every feature at each split.
	maxFeatures int
	rng         *rand.Rand
}

// criterion scores candidate splits and produces leaf values.
type criterion interface {
	leaf(idx []int) []float64
	// parent returns the score of an unsplit node; splits must beat it.
	parent(idx []int) float64
	// reset puts every row on the right; move shifts one row to the left.
	reset(idx []int)
	move(i int)
	score(nLeft, nRight int) float64
}

func growTree(rows [][]float64, idx []int, c criterion, cfg treeConfig) *tree {
	t := &tree{}
	t.build(rows, idx, c, cfg, 0)
	return t
}

func (t *tree) build(rows [][]float64, idx []int, c criterion, cfg treeConfig, depth int) int {
	pos := len(t.Nodes)
	t.Nodes = append(t.Nodes, treeNode{Feature: -1})

	if (cfg.maxDepth <= 0 || depth < cfg.maxDepth) && len(idx) >= cfg.minSplit {
		if f, thr, ok := bestSplit(rows, idx, c, cfg); ok {
			left, right := partition(rows, idx, f, thr)
			l := t.build(rows, left, c, cfg, depth+1)
			r := t.build(rows, right, c, cfg, depth+1)
			t.Nodes[pos] = treeNode{Feature: f, Threshold: thr, Left: l, Right: r}
			return pos
		}
	}
	t.Nodes[pos].Value = c.leaf(idx)
	return pos
}

func bestSplit(rows [][]float64, idx []int, c criterion, cfg treeConfig) (int, float64, bool) {
	width := len(rows[idx[0]])
	features := candidateFeatures(width, cfg)

	best := c.parent(idx)
	bestFeature, bestThreshold, found := -1, 0.0, false
	sorted := make([]int, len(idx))
	for _, f := range features {
		copy(sorted, idx)
		slices.SortFunc(sorted, func(a, b int) int {
			switch {
			case rows[a][f] < rows[b][f]:
				return -1
			case rows[a][f] > rows[b][f]:
				return 1
			default:
				return 0
			}
		})
		if rows[sorted[0]][f] == rows[sorted[len(sorted)-1]][f] {
			continue
		}

		c.reset(sorted)
		for p := 0; p < len(sorted)-1; p++ {
			c.move(sorted[p])
			lo, hi := rows[sorted[p]][f], rows[sorted[p+1]][f]
			if lo == hi {
				continue
			}
			if s := c.score(p+1, len(sorted)-p-1); s > best+1e-12 {
				best = s
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func candidateFeatures(width int, cfg treeConfig) []int {
	if cfg.maxFeatures <= 0 || cfg.maxFeatures >= width || cfg.rng == nil {
		all := make([]int, width)
		for i := range all {
			all[i] = i
		}
		return all
	}
	return cfg.rng.Perm(width)[:cfg.maxFeatures]
}

func partition(rows [][]float64, idx []int, f int, thr float64) ([]int, []int) {
	var left, right []int
	for _, i := range idx {
		if rows[i][f] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	return left, right
}

// gini maximises sum(count^2)/n over both children, which is equivalent to
// minimising weighted Gini impurity.
type gini struct {
	y       []int
	classes int

	left, right     []float64
	sqLeft, sqRight float64
}

func newGini(y []int, classes int) *gini {
	return &gini{y: y, classes: classes, left: make([]float64, classes), right: make([]float64, classes)}
}

func (g *gini) leaf(idx []int) []float64 {
	dist := make([]float64, g.classes)
	for _, i := range idx {
		dist[g.y[i]]++
	}
	for k := range dist {
		dist[k] /= float64(len(idx))
	}
	return dist
}

func (g *gini) parent(idx []int) float64 {
	counts := make([]float64, g.classes)
	for _, i := range idx {
		counts[g.y[i]]++
	}
	var sq float64
	for _, n := range counts {
		sq += n * n
	}
	return sq / float64(len(idx))
}

func (g *gini) reset(idx []int) {
	clear(g.left)
	clear(g.right)
	g.sqLeft, g.sqRight = 0, 0
	for _, i := range idx {
		g.right[g.y[i]]++
	}
	for _, n := range g.right {
		g.sqRight += n * n
	}
}

func (g *gini) move(i int) {
	k := g.y[i]
	g.sqLeft += 2*g.left[k] + 1
	g.left[k]++
	g.sqRight -= 2*g.right[k] - 1
	g.right[k]--
}

func (g *gini) score(nLeft, nRight int) float64 {
	return g.sqLeft/float64(nLeft) + g.sqRight/float64(nRight)
}

// variance maximises sum^2/n over both children, which is equivalent to
// minimising the squared error of a mean prediction.
type variance struct {
	target    []float64
	leafValue func(idx []int) float64

	sumLeft, sumRight float64
}

func (v *variance) leaf(idx []int) []float64 {
	return []float64{v.leafValue(idx)}
}

func (v *variance) parent(idx []int) float64 {
	var s float64
	for _, i := range idx {
		s += v.target[i]
	}
	return s * s / float64(len(idx))
}

func (v *variance) reset(idx []int) {
	v.sumLeft, v.sumRight = 0, 0
	for _, i := range idx {
		v.sumRight += v.target[i]
	}
}

func (v *variance) move(i int) {
	v.sumLeft += v.target[i]
	v.sumRight -= v.target[i]
}

func (v *variance) score(nLeft, nRight int) float64 {
	return v.sumLeft*v.sumLeft/float64(nLeft) + v.sumRight*v.sumRight/float64(nRight)
}
