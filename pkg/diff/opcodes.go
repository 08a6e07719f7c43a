package diff

// Tag names what an Opcode does to its ranges.
type Tag uint8

const (
	TagEqual Tag = iota
	TagReplace
	TagDelete
	TagInsert
)

func (t Tag) String() string {
	switch t {
	case TagEqual:
		return "equal"
	case TagReplace:
		return "replace"
	case TagDelete:
		return "delete"
	case TagInsert:
		return "insert"
	}
	return "unknown"
}

// Opcode describes how a[I1:I2] turns into b[J1:J2].
type Opcode struct {
	Tag    Tag
	I1, I2 int
	J1, J2 int
}

// DefaultContext is the number of unchanged lines shown around a change.
const DefaultContext = 3

// Opcodes returns the edit operations that turn a into b. Adjacent deletes
// and inserts are merged into a single replace.
//
// The alignment does not depend on argument order: Opcodes(b, a) is always
// Opcodes(a, b) with the sides swapped.
func Opcodes(a, b []string) []Opcode {
	if compareLines(a, b) > 0 {
		return invert(opcodes(b, a))
	}
	return opcodes(a, b)
}

func opcodes(a, b []string) []Opcode {
	ia, ib := internLines(a, b)
	edits := myers(ia, ib)

	var out []Opcode
	i, j := 0, 0
	for pos := 0; pos < len(edits); {
		if edits[pos].Kind == editEqual {
			start := pos
			for pos < len(edits) && edits[pos].Kind == editEqual {
				pos++
			}
			n := pos - start
			out = append(out, Opcode{Tag: TagEqual, I1: i, I2: i + n, J1: j, J2: j + n})
			i += n
			j += n
			continue
		}

		var dels, ins int
		for pos < len(edits) && edits[pos].Kind != editEqual {
			if edits[pos].Kind == editDelete {
				dels++
			} else {
				ins++
			}
			pos++
		}
		op := Opcode{I1: i, I2: i + dels, J1: j, J2: j + ins}
		switch {
		case dels > 0 && ins > 0:
			op.Tag = TagReplace
		case dels > 0:
			op.Tag = TagDelete
		default:
			op.Tag = TagInsert
		}
		out = append(out, op)
		i += dels
		j += ins
	}
	return out
}

func invert(ops []Opcode) []Opcode {
	for k, op := range ops {
		op.I1, op.I2, op.J1, op.J2 = op.J1, op.J2, op.I1, op.I2
		switch op.Tag {
		case TagDelete:
			op.Tag = TagInsert
		case TagInsert:
			op.Tag = TagDelete
		}
		ops[k] = op
	}
	return ops
}

func compareLines(a, b []string) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	}
	return 0
}

// GroupedOpcodes splits the opcodes of a and b into hunks, keeping up to n
// lines of unchanged context around every change. Identical inputs yield no
// groups.
func GroupedOpcodes(a, b []string, n int) [][]Opcode {
	codes := Opcodes(a, b)
	if len(codes) == 0 {
		codes = []Opcode{{Tag: TagEqual, I1: 0, I2: 1, J1: 0, J2: 1}}
	}

	if first := &codes[0]; first.Tag == TagEqual {
		first.I1 = max(first.I1, first.I2-n)
		first.J1 = max(first.J1, first.J2-n)
	}
	if last := &codes[len(codes)-1]; last.Tag == TagEqual {
		last.I2 = min(last.I2, last.I1+n)
		last.J2 = min(last.J2, last.J1+n)
	}

	var groups [][]Opcode
	var group []Opcode
	for _, op := range codes {
		if op.Tag == TagEqual && op.I2-op.I1 > 2*n {
			group = append(group, Opcode{
				Tag: TagEqual,
				I1:  op.I1, I2: min(op.I2, op.I1+n),
				J1: op.J1, J2: min(op.J2, op.J1+n),
			})
			groups = append(groups, group)
			group = nil
			op.I1 = max(op.I1, op.I2-n)
			op.J1 = max(op.J1, op.J2-n)
		}
		group = append(group, op)
	}
	if len(group) > 0 && !(len(group) == 1 && group[0].Tag == TagEqual) {
		groups = append(groups, group)
	}
	return groups
}
