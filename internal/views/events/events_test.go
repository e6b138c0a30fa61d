package events

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestRecordEntry(t *testing.T) {
	m := New()
	m.Record(KindChannel, "connected")
	if len(m.Entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(m.Entries))
	}
	if m.Entries[0].Kind != KindChannel {
		t.Errorf("kind = %v, want channel", m.Entries[0].Kind)
	}
}

func TestBoundedBuffer(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Record(KindPush, "msg")
	}
	if len(m.Entries) != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
}

func TestScrollUpDown(t *testing.T) {
	m := New()
	for i := 0; i < 20; i++ {
		m.Record(KindChannel, "msg")
	}
	if m.Offset != 0 {
		t.Fatal("expected offset 0 after records")
	}

	m.ScrollUp(5)
	if m.Offset != 5 {
		t.Errorf("expected offset 5, got %d", m.Offset)
	}

	m.ScrollDown(3)
	if m.Offset != 2 {
		t.Errorf("expected offset 2, got %d", m.Offset)
	}

	m.ScrollDown(10) // clamps at the tail
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}
}

func TestScrollUpCapped(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.Record(KindChannel, "msg")
	}
	m.ScrollUp(100)
	if m.Offset != 4 { // oldest entry stays reachable
		t.Errorf("expected offset 4, got %d", m.Offset)
	}
}

func TestRecordResetsScroll(t *testing.T) {
	m := New()
	for i := 0; i < 10; i++ {
		m.Record(KindChannel, "msg")
	}
	m.ScrollUp(5)
	m.Record(KindChannel, "new")
	if m.Offset != 0 {
		t.Error("recording must snap the viewport back to the tail")
	}
}

func TestViewEmpty(t *testing.T) {
	m := New()
	if v := m.View(80, 20); !strings.Contains(v, "Nothing recorded") {
		t.Error("empty view should say nothing was recorded")
	}
}

func TestViewWithEntries(t *testing.T) {
	m := New()
	m.Record(KindChannel, "connected")
	m.Record(KindError, "dial timeout")
	v := m.View(80, 20)
	if !strings.Contains(v, "connected") {
		t.Error("view should contain 'connected'")
	}
	if !strings.Contains(v, "dial timeout") {
		t.Error("view should contain 'dial timeout'")
	}
}

func TestSummaryCountsPerKind(t *testing.T) {
	m := New()
	m.Record(KindChannel, "connected")
	m.Record(KindChannel, "reconnecting")
	m.Record(KindSession, "authenticated")
	got := m.summary()
	if !strings.Contains(got, "channel 2") || !strings.Contains(got, "session 1") {
		t.Errorf("summary = %q", got)
	}
	if strings.Contains(got, "error") {
		t.Errorf("summary must omit empty kinds: %q", got)
	}
}

func TestClipKeepsRunesIntact(t *testing.T) {
	m := New()
	m.Record(KindPush, strings.Repeat("Stück für Stück übersetzt ", 20))
	if v := m.View(40, 10); !utf8.ValidString(v) {
		t.Error("clipping split a multibyte rune")
	}
}
