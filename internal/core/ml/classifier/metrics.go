package classifier

// Accuracy is the share of positions where pred equals truth.
func Accuracy(truth, pred []int) float64 {
	if len(truth) == 0 {
		return 0
	}
	hits := 0
	for i := range truth {
		if truth[i] == pred[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(truth))
}

// WeightedF1 averages per-class F1 weighted by each class's support in truth.
// Classes that appear only in pred contribute zero weight; a class with no
// predicted or no true members scores 0.
func WeightedF1(truth, pred []int) float64 {
	if len(truth) == 0 {
		return 0
	}
	support := map[int]int{}
	predicted := map[int]int{}
	correct := map[int]int{}
	for i := range truth {
		support[truth[i]]++
		predicted[pred[i]]++
		if truth[i] == pred[i] {
			correct[truth[i]]++
		}
	}

	var total float64
	for class, n := range support {
		tp := float64(correct[class])
		denom := float64(n + predicted[class])
		if denom == 0 || tp == 0 {
			continue
		}
		total += float64(n) * (2 * tp / denom)
	}
	return total / float64(len(truth))
}
