package peinfo

import "math"

// Entropy computes the Shannon entropy of data in bits per byte.
func Entropy(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var counts [256]int
	for _, b := range data {
		counts[b]++
	}
	entropy := 0.0
	total := float64(len(data))
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// IsSuspicious flags sections without raw data, with almost constant
// content or with packed or encrypted looking content.
func IsSuspicious(rawSize uint32, entropy float64) bool {
	return rawSize == 0 || (entropy > 0 && entropy < 1) || entropy > 7
}
