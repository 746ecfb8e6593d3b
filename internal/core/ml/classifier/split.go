package classifier

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"

	"gonum.org/v1/gonum/mat"
)

const (
	TestFraction = 0.2
	SplitSeed    = 123
)

// StratifiedSplit partitions row indices into train and test sets so every class
// keeps roughly the same proportion in both. Each class needs at least two rows.
// The result is deterministic for a given seed.
func StratifiedSplit(y []int, testFraction float64, seed int64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("test fraction %v out of range", testFraction)
	}
	if len(y) == 0 {
		return nil, nil, errors.New("no rows to split")
	}

	byClass := map[int][]int{}
	for i, c := range y {
		byClass[c] = append(byClass[c], i)
	}
	classes := make([]int, 0, len(byClass))
	for c, members := range byClass {
		if len(members) < 2 {
			return nil, nil, fmt.Errorf("class %d has %d row(s), need at least 2", c, len(members))
		}
		classes = append(classes, c)
	}
	slices.Sort(classes)

	rng := rand.New(rand.NewSource(seed))
	for _, c := range classes {
		members := byClass[c]
		rng.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		n := int(math.Round(testFraction * float64(len(members))))
		n = max(1, min(n, len(members)-1))
		test = append(test, members[:n]...)
		train = append(train, members[n:]...)
	}
	slices.Sort(train)
	slices.Sort(test)
	return train, test, nil
}

// Subset copies the given rows of x and y.
func Subset(x mat.Matrix, y []int, idx []int) (*mat.Dense, []int) {
	_, c := x.Dims()
	out := mat.NewDense(len(idx), c, nil)
	labels := make([]int, len(idx))
	for p, i := range idx {
		for j := 0; j < c; j++ {
			out.Set(p, j, x.At(i, j))
		}
		labels[p] = y[i]
	}
	return out, labels
}
