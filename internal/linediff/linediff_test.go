package linediff

import (
	"testing"

	"github.com/ehrlich-b/synctext/internal/lineapply"
	"github.com/ehrlich-b/synctext/internal/update"
)

func withFixedClock(t *testing.T, ts int64) {
	t.Helper()
	orig := Now
	Now = func() int64 { return ts }
	t.Cleanup(func() { Now = orig })
}

func TestDiffNoChange(t *testing.T) {
	withFixedClock(t, 1)
	got := Diff([]string{"a", "b"}, []string{"a", "b"}, "u")
	if len(got) != 0 {
		t.Fatalf("expected no updates, got %v", got)
	}
}

func TestDiffInsertLine(t *testing.T) {
	withFixedClock(t, 1)
	got := Diff([]string{"foo", "bar"}, []string{"foo", "bar", "baz"}, "a")
	if len(got) != 1 {
		t.Fatalf("expected 1 update, got %d: %v", len(got), got)
	}
	u := got[0]
	if u.Op != update.Insert || u.Line != 2 || u.StartCol != 0 || u.EndCol != 0 || u.Next != "baz" || u.Prev != "" {
		t.Errorf("unexpected insert update: %+v", u)
	}
}

func TestDiffDeleteLine(t *testing.T) {
	withFixedClock(t, 1)
	got := Diff([]string{"a", "b"}, []string{"a", ""}, "u")
	if len(got) != 1 {
		t.Fatalf("expected 1 update, got %d", len(got))
	}
	u := got[0]
	if u.Op != update.Delete || u.Line != 1 || u.StartCol != 0 || u.EndCol != 1 || u.Prev != "b" || u.Next != "" {
		t.Errorf("unexpected delete update: %+v", u)
	}
}

func TestDiffSimpleReplace(t *testing.T) {
	withFixedClock(t, 1)
	got := Diff([]string{"hello"}, []string{"HELLO"}, "a")
	if len(got) != 1 {
		t.Fatalf("expected 1 update, got %d", len(got))
	}
	u := got[0]
	if u.Op != update.Replace || u.StartCol != 0 || u.EndCol != 5 || u.Prev != "hello" || u.Next != "HELLO" {
		t.Errorf("unexpected replace update: %+v", u)
	}
}

func TestDiffPrefixSuffixMinimalSpan(t *testing.T) {
	withFixedClock(t, 1)
	got := Diff([]string{"foobarbaz"}, []string{"fooXbaz"}, "a")
	if len(got) != 1 {
		t.Fatalf("expected 1 update, got %d", len(got))
	}
	u := got[0]
	if u.Prev != "bar" || u.Next != "X" || u.StartCol != 3 {
		t.Errorf("expected minimal span replace, got %+v", u)
	}
}

func TestDiffWordBoundaryExpansion(t *testing.T) {
	withFixedClock(t, 1)
	// "ab" -> "aXb": prefix=1, suffix=1, mid is empty at start=1 (not at a
	// word boundary) so the span must expand left to column 0.
	got := Diff([]string{"ab"}, []string{"aXb"}, "a")
	if len(got) != 1 {
		t.Fatalf("expected 1 update, got %d", len(got))
	}
	u := got[0]
	if u.StartCol != 0 {
		t.Errorf("expected expansion to column 0, got startCol=%d (%+v)", u.StartCol, u)
	}
	if u.Prev != "a" || u.Next != "aX" {
		t.Errorf("unexpected expanded span: %+v", u)
	}
}

func TestDiffWordBoundaryExpandsOnlyToSpace(t *testing.T) {
	withFixedClock(t, 1)
	got := Diff([]string{"foo ab"}, []string{"foo aXb"}, "a")
	if len(got) != 1 {
		t.Fatalf("expected 1 update, got %d", len(got))
	}
	u := got[0]
	if u.StartCol != 4 {
		t.Errorf("expected expansion to stop right after the space at col 4, got %d (%+v)", u.StartCol, u)
	}
}

func TestDiffInverse(t *testing.T) {
	withFixedClock(t, 1)
	cases := [][2][]string{
		{{"foo", "bar"}, {"foo", "bar", "baz"}},
		{{"hello"}, {"HELLO"}},
		{{"ab"}, {"aXb"}},
		{{"a", "b", "c"}, {"a", "", "c", "d"}},
		{{}, {"new line"}},
		{{"only"}, {}},
	}
	for _, c := range cases {
		old, want := c[0], c[1]
		ups := Diff(old, want, "u")
		got := append([]string{}, old...)
		lineapply.Apply(&got, ups)
		if !equalLines(got, want) {
			t.Errorf("apply(diff(%v, %v)) = %v, want %v", old, want, got, want)
		}
	}
}

func equalLines(a, b []string) bool {
	maxN := len(a)
	if len(b) > maxN {
		maxN = len(b)
	}
	for i := 0; i < maxN; i++ {
		var x, y string
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			return false
		}
	}
	return true
}
