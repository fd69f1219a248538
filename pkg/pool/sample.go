package pool

// moveSampleToTail runs the last k steps of a Fisher-Yates shuffle over
// lines: for each tail slot, working backwards, it swaps in an element
// drawn uniformly from the not-yet-chosen prefix. Afterwards lines[n-k:]
// is a uniform k-subset of the input and lines[:n-k] holds
// everything else, so truncating the slice removes the sample without
// leaving holes.
//
// intN must return a value in [0, n). The cost is O(k).
func moveSampleToTail(lines []string, k int, intN func(int) int) {
	n := len(lines)
	for i := 0; i < k; i++ {
		last := n - 1 - i
		j := intN(last + 1)
		lines[j], lines[last] = lines[last], lines[j]
	}
}
