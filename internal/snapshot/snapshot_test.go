package snapshot

import (
	"testing"

	"github.com/ehrlich-b/synctext/internal/update"
)

func TestClassifyInsertAndDelete(t *testing.T) {
	if got := Classify(update.Update{Op: update.Insert}); got != Inserted {
		t.Errorf("insert: got %v, want %v", got, Inserted)
	}
	if got := Classify(update.Update{Op: update.Delete}); got != Deleted {
		t.Errorf("delete: got %v, want %v", got, Deleted)
	}
}

func TestClassifyReplaceGrowsShrinksEqual(t *testing.T) {
	grows := update.Update{Op: update.Replace, Prev: "hi", Next: "hello there"}
	if got := Classify(grows); got != Modified {
		t.Errorf("grow: got %v, want %v", got, Modified)
	}
	shrinks := update.Update{Op: update.Replace, Prev: "hello there", Next: "hi"}
	if got := Classify(shrinks); got != Deleted {
		t.Errorf("shrink: got %v, want %v", got, Deleted)
	}
	equal := update.Update{Op: update.Replace, Prev: "abc", Next: "xyz"}
	if got := Classify(equal); got != Modified {
		t.Errorf("equal-length: got %v, want %v", got, Modified)
	}
}

func TestHighlightClamps(t *testing.T) {
	u := update.Update{StartCol: 2, Next: "longer-than-line"}
	start, end := Highlight(u, "abc")
	if start != 2 || end != 3 {
		t.Errorf("got [%d,%d), want [2,3)", start, end)
	}
}

func TestHighlightNegativeStartClampsToZero(t *testing.T) {
	u := update.Update{StartCol: -5, Next: "ab"}
	start, end := Highlight(u, "abcdef")
	if start != 0 || end != 2 {
		t.Errorf("got [%d,%d), want [0,2)", start, end)
	}
}

func TestBoardNotifyAndClear(t *testing.T) {
	b := NewBoard()
	b.Notify("Received update from alice: Line 1 modified")
	v := b.Snapshot()
	if !v.ShowNotifications || len(v.Notifications) != 1 {
		t.Fatalf("unexpected view after Notify: %+v", v)
	}
	b.ClearNotifications()
	v = b.Snapshot()
	if v.ShowNotifications || len(v.Notifications) != 0 {
		t.Errorf("expected cleared notifications, got %+v", v)
	}
}

func TestBoardSetMergeNotificationReplacesBuffer(t *testing.T) {
	b := NewBoard()
	b.Notify("one")
	b.Notify("two")
	b.SetMergeNotification("All updates merged successfully")
	v := b.Snapshot()
	if len(v.Notifications) != 1 || v.Notifications[0] != "All updates merged successfully" {
		t.Errorf("got %+v, want single merge notification", v.Notifications)
	}
}

func TestBoardSnapshotIsolation(t *testing.T) {
	b := NewBoard()
	b.SetDoc([]string{"a", "b"})
	v := b.Snapshot()
	v.Lines[0] = "mutated"
	v2 := b.Snapshot()
	if v2.Lines[0] != "a" {
		t.Error("mutating a returned snapshot must not affect the board's internal state")
	}
}
