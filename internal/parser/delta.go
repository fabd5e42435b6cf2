package parser

// DeltaDecode returns the running sums of deltas: the first value is
// absolute, every later one is the previous value plus its delta.
func DeltaDecode(deltas []int64) []int64 {
	values := make([]int64, len(deltas))
	var sum int64
	for i, delta := range deltas {
		sum += delta
		values[i] = sum
	}
	return values
}

// DeltaEncode is the inverse of DeltaDecode.
func DeltaEncode(values []int64) []int64 {
	deltas := make([]int64, len(values))
	var previous int64
	for i, v := range values {
		deltas[i] = v - previous
		previous = v
	}
	return deltas
}
