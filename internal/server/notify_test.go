package server

import "testing"

func fixedHash(b byte) [32]byte {
	var h [32]byte
	h[0] = b
	return h
}

// TestRecentTxBufferFindsStoredEntry checks the basic store/find path.
func TestRecentTxBufferFindsStoredEntry(t *testing.T) {
	buf := NewRecentTxBuffer(4)
	h := fixedHash(0x01)
	buf.Add(h, []byte("raw-tx"))

	got, ok := buf.Find(h)
	if !ok {
		t.Fatal("expected to find the stored entry")
	}
	if string(got) != "raw-tx" {
		t.Errorf("got %q, want %q", got, "raw-tx")
	}

	if _, ok := buf.Find(fixedHash(0x02)); ok {
		t.Error("expected lookup of an unknown hash to miss")
	}
}

// TestRecentTxBufferEvictsOldest checks that once capacity is exceeded
// the oldest entry is the one dropped, not an arbitrary one.
func TestRecentTxBufferEvictsOldest(t *testing.T) {
	buf := NewRecentTxBuffer(2)
	buf.Add(fixedHash(0x01), []byte("one"))
	buf.Add(fixedHash(0x02), []byte("two"))
	buf.Add(fixedHash(0x03), []byte("three"))

	if _, ok := buf.Find(fixedHash(0x01)); ok {
		t.Error("expected the oldest entry to have been evicted")
	}
	if _, ok := buf.Find(fixedHash(0x02)); !ok {
		t.Error("expected the second entry to still be present")
	}
	if _, ok := buf.Find(fixedHash(0x03)); !ok {
		t.Error("expected the newest entry to still be present")
	}
}

// TestRecentTxBufferAddIsIdempotent checks that re-adding an already
// stored hash doesn't churn the eviction order.
func TestRecentTxBufferAddIsIdempotent(t *testing.T) {
	buf := NewRecentTxBuffer(2)
	buf.Add(fixedHash(0x01), []byte("one"))
	buf.Add(fixedHash(0x02), []byte("two"))
	buf.Add(fixedHash(0x01), []byte("one-again"))

	if got, ok := buf.Find(fixedHash(0x01)); !ok || string(got) != "one" {
		t.Error("expected the re-add to leave the original first entry unchanged")
	}

	buf.Add(fixedHash(0x03), []byte("three"))

	if _, ok := buf.Find(fixedHash(0x01)); ok {
		t.Error("expected the first entry to still be the oldest and be evicted")
	}
	if _, ok := buf.Find(fixedHash(0x02)); !ok {
		t.Error("expected the second entry to survive")
	}
}

// TestClientRegistrySnapshot checks register/remove bookkeeping. The
// registry never dereferences the wrapped peer, so a nil SimpleNode is
// sufficient to exercise it.
func TestClientRegistrySnapshot(t *testing.T) {
	r := NewClientRegistry()
	r.Register("127.0.0.1:1", nil)
	r.Register("127.0.0.1:2", nil)

	if got := len(r.Snapshot()); got != 2 {
		t.Fatalf("expected 2 registered clients, got %d", got)
	}

	r.Remove("127.0.0.1:1")
	snap := r.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 registered client after removal, got %d", len(snap))
	}
	if snap[0].addr != "127.0.0.1:2" {
		t.Errorf("unexpected surviving client: %s", snap[0].addr)
	}
}
