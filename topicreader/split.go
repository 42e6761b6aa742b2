package topicreader

import "math/bits"

// splitBytes divides total into len(weights) parts proportional to weights.
// The parts always sum to total exactly; equal weights are used when every
// weight is zero.
func splitBytes(total int64, weights []int64) []int64 {
	shares := make([]int64, len(weights))
	if len(weights) == 0 || total <= 0 {
		return shares
	}

	var sum uint64
	for _, w := range weights {
		if w > 0 {
			sum += uint64(w)
		}
	}
	equal := sum == 0
	weight := func(i int) uint64 {
		if equal {
			return 1
		}
		if weights[i] < 0 {
			return 0
		}
		return uint64(weights[i])
	}
	if equal {
		sum = uint64(len(weights))
	}

	var cum, prev uint64
	for i := range weights {
		cum += weight(i)
		hi, lo := bits.Mul64(uint64(total), cum)
		// cum <= sum, so the quotient never exceeds total
		upto, _ := bits.Div64(hi, lo, sum)
		shares[i] = int64(upto - prev)
		prev = upto
	}
	return shares
}
