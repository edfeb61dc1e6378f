package utils

// PrefixSum returns the exclusive prefix sums of values, with one extra trailing
// element holding the total: len(result) == len(values)+1 and result[0] == 0.
func PrefixSum(values []int) []int {
	result := make([]int, len(values)+1)
	for i, v := range values {
		result[i+1] = result[i] + v
	}
	return result
}
