package toast

import (
	"testing"
	"time"

	"github.com/dsasheet/tui/internal/api"
	"github.com/dsasheet/tui/internal/clock"
)

func note(id string) api.Notification {
	return api.Notification{ID: id, Type: api.NotifyInfo, Title: "t", Message: "m"}
}

func TestPushAndExpiry(t *testing.T) {
	clk := clock.NewFake()
	q := NewQueue(clk)

	q.Push(note("n1"))
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1 right after push", q.Len())
	}

	clk.Advance(DisplayDuration - time.Millisecond)
	if q.Len() != 1 {
		t.Fatal("entry expired early")
	}

	clk.Advance(time.Millisecond)
	if q.Len() != 0 {
		t.Fatalf("len = %d, want 0 after %v", q.Len(), DisplayDuration)
	}
}

func TestDismissIdempotent(t *testing.T) {
	clk := clock.NewFake()
	q := NewQueue(clk)

	q.Push(note("n1"))
	q.Dismiss("n1")
	q.Dismiss("n1")
	q.Dismiss("never-existed")
	if q.Len() != 0 {
		t.Fatalf("len = %d, want 0", q.Len())
	}

	// The expiry timer was stopped with the dismissal.
	if clk.Pending() != 0 {
		t.Errorf("pending timers = %d, want 0", clk.Pending())
	}
}

func TestExpiryIsPerEntry(t *testing.T) {
	clk := clock.NewFake()
	q := NewQueue(clk)

	q.Push(note("n1"))
	clk.Advance(2 * time.Second)
	q.Push(note("n2"))

	clk.Advance(3 * time.Second) // n1 at 5s, n2 at 3s
	items := q.Items()
	if len(items) != 1 || items[0].ID != "n2" {
		t.Fatalf("items = %+v, want only n2", items)
	}
}

func TestOrderPreserved(t *testing.T) {
	clk := clock.NewFake()
	q := NewQueue(clk)

	q.Push(note("a"))
	q.Push(note("b"))
	q.Push(note("c"))
	q.Dismiss("b")

	items := q.Items()
	if len(items) != 2 || items[0].ID != "a" || items[1].ID != "c" {
		t.Fatalf("items = %+v, want [a c]", items)
	}
}

func TestOnChange(t *testing.T) {
	clk := clock.NewFake()
	q := NewQueue(clk)

	var calls int
	q.SetOnChange(func() { calls++ })

	q.Push(note("n1")) // 1
	q.Dismiss("n1")    // 2
	q.Dismiss("n1")    // idempotent, no change
	if calls != 2 {
		t.Errorf("onChange calls = %d, want 2", calls)
	}

	q.Push(note("n2"))
	clk.Advance(DisplayDuration) // expiry counts as a change
	if calls != 4 {
		t.Errorf("onChange calls = %d, want 4", calls)
	}
}
