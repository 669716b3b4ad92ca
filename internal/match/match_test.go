package match

import "testing"

func TestGenerateKey(t *testing.T) {
	a := GenerateKey("Сибирь — Авангард", "10 ноября, пятница, 19:00")
	b := GenerateKey("Сибирь — Авангард", "10 ноября, пятница, 19:00")
	if a != b {
		t.Errorf("GenerateKey() not deterministic: %q vs %q", a, b)
	}
	if len(a) != 40 {
		t.Errorf("GenerateKey() length = %d, want 40 hex chars", len(a))
	}

	if GenerateKey("A — B", "10 ноября") == GenerateKey("A — B", "11 ноября") {
		t.Error("different dates should produce different keys")
	}
	// The separator must keep "a|bc" and "ab|c" apart.
	if GenerateKey("a", "bc") == GenerateKey("ab", "c") {
		t.Error("key should not collide when the split point moves")
	}
}

func TestIdentityKey_RecomputedWhenMissing(t *testing.T) {
	m := &Match{Title: "A — B", DateDisplay: "10 ноября"}
	if got, want := m.IdentityKey(), GenerateKey("A — B", "10 ноября"); got != want {
		t.Errorf("IdentityKey() = %q, want %q", got, want)
	}
}

func TestDedupe(t *testing.T) {
	first := New("A — B", "10 ноября", "https://tickets.example/1")
	dup := New("A — B", "10 ноября", "https://tickets.example/other")
	second := New("C — D", "12 ноября", "")

	got := Dedupe([]*Match{first, dup, nil, second, first})

	if len(got) != 2 {
		t.Fatalf("Dedupe() returned %d matches, want 2", len(got))
	}
	if got[0] != first {
		t.Error("first occurrence should win")
	}
	if got[1] != second {
		t.Error("order of first occurrence should be preserved")
	}
}

func TestHasTicketLink(t *testing.T) {
	if New("A — B", "10 ноября", "").HasTicketLink() {
		t.Error("match without URL should not report a ticket link")
	}
	if !New("A — B", "10 ноября", "https://tickets.example/1").HasTicketLink() {
		t.Error("match with URL should report a ticket link")
	}
}
