// Package lww implements the last-writer-wins conflict resolver: given a
// flat batch of Updates (local and received, in insertion order), it
// picks the winning subset to apply.
package lww

import "github.com/ehrlich-b/synctext/internal/update"

// Collides reports whether a and b touch overlapping column spans on the
// same line: two insertions at the same point, a point falling inside a
// range, or two overlapping ranges.
func Collides(a, b update.Update) bool {
	if a.Line != b.Line {
		return false
	}

	aStart, aEnd := normalize(a.StartCol, a.EndCol)
	bStart, bEnd := normalize(b.StartCol, b.EndCol)
	aLen := aEnd - aStart
	bLen := bEnd - bStart

	switch {
	case aLen == 0 && bLen == 0:
		return aStart == bStart
	case aLen == 0:
		return aStart >= bStart && aStart < bEnd
	case bLen == 0:
		return bStart >= aStart && bStart < aEnd
	default:
		return aStart < bEnd && bStart < aEnd
	}
}

func normalize(start, end int) (int, int) {
	if start > end {
		return end, start
	}
	return start, end
}

// Beats reports whether a wins over b: higher timestamp wins, ties broken
// by lexicographically smaller uid.
func Beats(a, b update.Update) bool {
	if a.TS != b.TS {
		return a.TS > b.TS
	}
	return a.UID < b.UID
}

// Merge runs the O(n^2) pairwise collision check over all, dropping the
// loser of every colliding pair, and returns the surviving Updates in
// their original order. For a given input order the result is
// deterministic. Reordering the input leaves the result unchanged when
// every group of colliding Updates collides pairwise; when collisions
// chain (a beats b, b beats c, a and c do not collide) the surviving set
// can depend on the order.
func Merge(all []update.Update) []update.Update {
	n := len(all)
	keep := make([]bool, n)
	for i := range keep {
		keep[i] = true
	}

	for i := 0; i < n; i++ {
		if !keep[i] {
			continue
		}
		for j := i + 1; j < n; j++ {
			if !keep[j] {
				continue
			}
			if Collides(all[i], all[j]) {
				if Beats(all[i], all[j]) {
					keep[j] = false
				} else {
					keep[i] = false
				}
			}
		}
	}

	out := make([]update.Update, 0, n)
	for i, k := range keep {
		if k {
			out = append(out, all[i])
		}
	}
	return out
}

// Conflicted reports whether merging input produced fewer Updates than
// went in, i.e. at least one collision was resolved.
func Conflicted(input, winners []update.Update) bool {
	return len(winners) < len(input)
}
