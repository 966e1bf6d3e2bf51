package admission

// Similarity scores how close two strings are, as
// 1 - editDistance(a,b)/max(len(a),len(b)), in [0,1].
// Two empty strings are identical by convention.
func Similarity(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}

	var (
		ra      = []rune(a)
		rb      = []rune(b)
		longest = len(ra)
	)

	if len(rb) > longest {
		longest = len(rb)
	}

	return 1.0 - float64(editDistance(ra, rb))/float64(longest)
}

// editDistance is the classic single-character insert/delete/substitute
// distance with unit costs, computed over two rolling DP rows.
func editDistance(a, b []rune) int {
	prev := make([]int, len(a)+1)
	curr := make([]int, len(a)+1)

	for i := 0; i <= len(a); i++ {
		prev[i] = i
	}

	for j := 1; j <= len(b); j++ {
		curr[0] = j

		for i := 1; i <= len(a); i++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}

			curr[i] = min3(curr[i-1]+1, prev[i]+1, prev[i-1]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(a)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}

	if c < a {
		a = c
	}

	return a
}
