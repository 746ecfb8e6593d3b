package transform

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mathext"
)

// mutualInfo estimates the mutual information between a continuous feature and a
// discrete label with the nearest-neighbour estimator of Ross (2014):
//
//	I = ψ(N) + <ψ(k)> - <ψ(N_c)> - <ψ(m)>
//
// where for every sample the radius is the distance to its k-th neighbour within
// its own class and m counts all samples inside that radius. Samples whose class
// has a single member are ignored. The result is clamped at 0.
func mutualInfo(x []float64, classes []int, neighbors int) float64 {
	n := len(x)
	radius := make([]float64, n)
	kAll := make([]int, n)
	counts := make([]int, n)

	byClass := make(map[int][]int)
	for i, c := range classes {
		byClass[c] = append(byClass[c], i)
	}

	for _, members := range byClass {
		count := len(members)
		for _, i := range members {
			counts[i] = count
		}
		if count < 2 {
			continue
		}
		k := min(neighbors, count-1)
		values := make([]float64, count)
		for p, i := range members {
			values[p] = x[i]
		}
		sorted := make([]int, count)
		for p := range sorted {
			sorted[p] = p
		}
		sort.Slice(sorted, func(a, b int) bool { return values[sorted[a]] < values[sorted[b]] })
		line := make([]float64, count)
		for p, idx := range sorted {
			line[p] = values[idx]
		}
		for p, idx := range sorted {
			r := kthNeighborDistance(line, p, k)
			i := members[idx]
			radius[i] = math.Nextafter(r, 0)
			kAll[i] = k
		}
	}

	var kept []int
	for i := 0; i < n; i++ {
		if counts[i] > 1 {
			kept = append(kept, i)
		}
	}
	if len(kept) == 0 {
		return 0
	}

	line := make([]float64, len(kept))
	for p, i := range kept {
		line[p] = x[i]
	}
	sort.Float64s(line)

	var sumK, sumCounts, sumM float64
	for _, i := range kept {
		lo := sort.SearchFloat64s(line, x[i]-radius[i])
		hi := sort.Search(len(line), func(p int) bool { return line[p] > x[i]+radius[i] })
		m := hi - lo
		if m < 1 {
			m = 1
		}
		sumK += mathext.Digamma(float64(kAll[i]))
		sumCounts += mathext.Digamma(float64(counts[i]))
		sumM += mathext.Digamma(float64(m))
	}

	total := float64(len(kept))
	mi := mathext.Digamma(total) + sumK/total - sumCounts/total - sumM/total
	if math.IsNaN(mi) || mi < 0 {
		return 0
	}
	return mi
}

// kthNeighborDistance returns the distance from line[p] to its k-th nearest
// neighbour in the sorted slice line, excluding itself.
func kthNeighborDistance(line []float64, p, k int) float64 {
	left, right := p-1, p+1
	var d float64
	for step := 0; step < k; step++ {
		switch {
		case left < 0:
			d = line[right] - line[p]
			right++
		case right >= len(line):
			d = line[p] - line[left]
			left--
		case line[p]-line[left] <= line[right]-line[p]:
			d = line[p] - line[left]
			left--
		default:
			d = line[right] - line[p]
			right++
		}
	}
	return d
}
