package telegram

import (
	"strings"
	"testing"
)

func TestSplitTextShort(t *testing.T) {
	got := splitText("hello", 10)
	if len(got) != 1 || got[0] != "hello" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitTextPrefersNewline(t *testing.T) {
	in := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	got := splitText(in, 10)
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(got), got)
	}
	if got[0] != strings.Repeat("a", 6) {
		t.Fatalf("first chunk = %q", got[0])
	}
	if got[1] != strings.Repeat("b", 6) {
		t.Fatalf("second chunk = %q", got[1])
	}
}

func TestSplitTextHardCut(t *testing.T) {
	got := splitText(strings.Repeat("x", 25), 10)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	if len(got[2]) != 5 {
		t.Fatalf("last chunk len = %d", len(got[2]))
	}
}

func TestNewRejectsEmptyToken(t *testing.T) {
	if _, err := New("  ", 0); err == nil {
		t.Fatal("expected error for empty token")
	}
}
