package textmatch

import "strings"

// Similarity returns the Dice coefficient of the character bigrams of the
// compacted inputs, in [0, 1]. Single-character inputs compare by equality.
func Similarity(a, b string) float64 {
	ra := []rune(Compact(a))
	rb := []rune(Compact(b))
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	if string(ra) == string(rb) {
		return 1
	}
	if len(ra) < 2 || len(rb) < 2 {
		return 0
	}

	counts := make(map[[2]rune]int, len(ra))
	for i := 0; i+1 < len(ra); i++ {
		counts[[2]rune{ra[i], ra[i+1]}]++
	}

	shared := 0
	for i := 0; i+1 < len(rb); i++ {
		key := [2]rune{rb[i], rb[i+1]}
		if counts[key] > 0 {
			counts[key]--
			shared++
		}
	}

	return 2 * float64(shared) / float64(len(ra)-1+len(rb)-1)
}

// Contains reports whether needle occurs in haystack after compaction
func Contains(haystack, needle string) bool {
	n := Compact(needle)
	return n != "" && strings.Contains(Compact(haystack), n)
}
