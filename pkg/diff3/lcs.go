package diff3

// DiffType classifies a single edit operation.
type DiffType int

const (
	Equal DiffType = iota
	Insert
	Delete
)

func (t DiffType) String() string {
	switch t {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	default:
		return "unknown"
	}
}

// DiffOp is one step of an edit script from a to b.
type DiffOp struct {
	Type DiffType
	Line string
}

// MyersDiff computes a shortest edit script turning a into b. Deletions are
// emitted before insertions within a changed region.
func MyersDiff(a, b []string) []DiffOp {
	n, m := len(a), len(b)
	if n == 0 && m == 0 {
		return nil
	}
	max := n + m
	offset := max
	v := make([]int, 2*max+2)
	var trace [][]int

	found := false
	for d := 0; d <= max && !found; d++ {
		snapshot := make([]int, len(v))
		copy(snapshot, v)
		trace = append(trace, snapshot)
		for k := -d; k <= d; k += 2 {
			var x int
			if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
				x = v[offset+k+1]
			} else {
				x = v[offset+k-1] + 1
			}
			y := x - k
			for x < n && y < m && a[x] == b[y] {
				x++
				y++
			}
			v[offset+k] = x
			if x >= n && y >= m {
				found = true
				break
			}
		}
	}
	return backtrack(trace, a, b, offset)
}

func backtrack(trace [][]int, a, b []string, offset int) []DiffOp {
	x, y := len(a), len(b)
	ops := make([]DiffOp, 0, x+y)
	for d := len(trace) - 1; d >= 0 && (x > 0 || y > 0); d-- {
		v := trace[d]
		k := x - y
		var prevK int
		if k == -d || (k != d && v[offset+k-1] < v[offset+k+1]) {
			prevK = k + 1
		} else {
			prevK = k - 1
		}
		prevX := v[offset+prevK]
		prevY := prevX - prevK
		for x > prevX && y > prevY {
			x--
			y--
			ops = append(ops, DiffOp{Type: Equal, Line: a[x]})
		}
		if d == 0 {
			break
		}
		if x == prevX {
			y--
			ops = append(ops, DiffOp{Type: Insert, Line: b[y]})
		} else {
			x--
			ops = append(ops, DiffOp{Type: Delete, Line: a[x]})
		}
	}
	for i, j := 0, len(ops)-1; i < j; i, j = i+1, j-1 {
		ops[i], ops[j] = ops[j], ops[i]
	}
	return normalizeRuns(ops)
}

// normalizeRuns reorders each maximal non-equal run so deletes precede inserts.
func normalizeRuns(ops []DiffOp) []DiffOp {
	out := make([]DiffOp, 0, len(ops))
	for i := 0; i < len(ops); {
		if ops[i].Type == Equal {
			out = append(out, ops[i])
			i++
			continue
		}
		j := i
		for j < len(ops) && ops[j].Type != Equal {
			j++
		}
		for _, op := range ops[i:j] {
			if op.Type == Delete {
				out = append(out, op)
			}
		}
		for _, op := range ops[i:j] {
			if op.Type == Insert {
				out = append(out, op)
			}
		}
		i = j
	}
	return out
}
