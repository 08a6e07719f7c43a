package diff

// editKind tags a single step of an edit script.
type editKind uint8

const (
	editEqual editKind = iota
	editDelete
	editInsert
)

// edit is one step of the shortest edit script from a to b. For deletes only
// A is meaningful, for inserts only B.
type edit struct {
	Kind editKind
	A    int
	B    int
}

// internLines maps every distinct line of a and b to a small integer so the
// inner Myers loop compares ints instead of strings.
func internLines(a, b []string) ([]int, []int) {
	ids := make(map[string]int, len(a)+len(b))
	conv := func(lines []string) []int {
		out := make([]int, len(lines))
		for i, l := range lines {
			id, ok := ids[l]
			if !ok {
				id = len(ids)
				ids[l] = id
			}
			out[i] = id
		}
		return out
	}
	return conv(a), conv(b)
}

// myers computes the shortest edit script transforming a into b using the
// greedy O(ND) algorithm. Each round stores only the diagonals it can reach,
// so memory is O(D^2) rather than O(D*(N+M)).
func myers(a, b []int) []edit {
	n, m := len(a), len(b)
	max := n + m
	if max == 0 {
		return nil
	}

	off := max + 1
	v := make([]int, 2*max+3)
	var trace [][]int

	for d := 0; d <= max; d++ {
		snap := make([]int, 2*d+1)
		copy(snap, v[off-d:off+d+1])
		trace = append(trace, snap)

		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[off+k-1] < v[off+k+1]) {
				x = v[off+k+1]
			} else {
				x = v[off+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[off+k] = x
			if x >= n && y >= m {
				return backtrack(trace, n, m)
			}
		}
	}
	return nil
}

// backtrack walks the saved rounds from (n, m) back to the origin.
func backtrack(trace [][]int, n, m int) []edit {
	x, y := n, m
	var ops []edit

	for d := len(trace) - 1; d >= 0; d-- {
		if d == 0 {
			for x > 0 && y > 0 {
				x--
				y--
				ops = append(ops, edit{Kind: editEqual, A: x, B: y})
			}
			break
		}

		snap := trace[d]
		at := func(k int) int { return snap[k+d] }
		k := x - y

		var prevK int
		if k == -d || (k != d && at(k-1) < at(k+1)) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := at(prevK)
		prevY := prevX - prevK

		for x > prevX && y > prevY {
			x--
			y--
			ops = append(ops, edit{Kind: editEqual, A: x, B: y})
		}
		if x == prevX {
			ops = append(ops, edit{Kind: editInsert, A: prevX, B: prevY})
		} else {
			ops = append(ops, edit{Kind: editDelete, A: prevX, B: prevY})
		}
		x, y = prevX, prevY
	}

	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return ops
}
