// Package lineapply applies an ordered set of winning Updates to a
// mutable line vector.
package lineapply

import "github.com/ehrlich-b/synctext/internal/update"

// Apply mutates lines in place, applying each winner in the order given.
// Negative line numbers are silently ignored. Columns are byte offsets
// and are clamped into range rather than rejected.
func Apply(lines *[]string, winners []update.Update) {
	for _, u := range winners {
		if u.Line < 0 {
			continue
		}
		if u.Line >= len(*lines) {
			grown := make([]string, u.Line+1)
			copy(grown, *lines)
			*lines = grown
		}

		line := (*lines)[u.Line]

		switch u.Op {
		case update.Insert:
			pos := clamp(u.StartCol, 0, len(line))
			line = line[:pos] + u.Next + line[pos:]

		case update.Delete:
			start := clamp(u.StartCol, 0, len(line)-1)
			n := u.EndCol - u.StartCol
			if n > len(line)-start {
				n = len(line) - start
			}
			if n < 0 {
				n = 0
			}
			line = line[:start] + line[start+n:]

		case update.Replace:
			start := clamp(u.StartCol, 0, len(line))
			n := u.EndCol - u.StartCol
			if n > len(line)-start {
				n = len(line) - start
			}
			if n < 0 {
				n = 0
			}
			line = line[:start] + u.Next + line[start+n:]
		}

		(*lines)[u.Line] = line
	}
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
