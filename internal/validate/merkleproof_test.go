package validate

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func mustHash(t *testing.T, hexStr string) [32]byte {
	t.Helper()
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		t.Fatalf("bad fixture hex: %v", err)
	}
	var h [32]byte
	copy(h[:], b)
	return h
}

// Block 2,434,337 on testnet: three transactions, fixture values lifted
// from the node's own Merkle validation scenarios.
var (
	block2434337Txn1 = "54b2d6b671b7f80fb4e050c9939f6adec3c77372f859710524bb3a413397c1c6"
	block2434337Txn2 = "9ffcee1c31c3b22455fea210a262dfa40567d856a8bd8f358fd9645d7b715f43"
	block2434337Txn3 = "75611a4c06cdc67f68bc508f2f088d4259c4034bda075dbc3a829c3296d449d0"
	block2434337Root = "08cbeabc3530d46fc2aad58996f943ce866de1be627c9c78d9bf8a5b20d8d61e"
)

func TestBuildLevelsRootMatchesKnownBlock(t *testing.T) {
	txHashes := [][32]byte{
		mustHash(t, block2434337Txn1),
		mustHash(t, block2434337Txn2),
		mustHash(t, block2434337Txn3),
	}
	wantRoot := mustHash(t, block2434337Root)

	levels := BuildLevels(txHashes)
	root := levels[len(levels)-1][0]
	if !bytes.Equal(root[:], wantRoot[:]) {
		t.Fatalf("root mismatch: got %x, want %x", root, wantRoot)
	}
}

func TestProofRoundTripsThreeLeaves(t *testing.T) {
	txHashes := [][32]byte{
		mustHash(t, block2434337Txn1),
		mustHash(t, block2434337Txn2),
		mustHash(t, block2434337Txn3),
	}
	wantRoot := mustHash(t, block2434337Root)

	proof, ok := Proof(txHashes[1], txHashes)
	if !ok {
		t.Fatal("expected to find txn2 in tree")
	}
	gotRoot := RootFromProof(proof)
	if !bytes.Equal(gotRoot[:], wantRoot[:]) {
		t.Fatalf("proof did not fold back to root: got %x, want %x", gotRoot, wantRoot)
	}
}

func TestProofSingleLeafBlock(t *testing.T) {
	// Block 2,434,432: a single transaction equals the root itself.
	only := mustHash(t, "88e62c580f2eca71f4ad4dfc0fe78a8f00697bf1a3cee579fe7dfb2ac5989c43")
	txHashes := [][32]byte{only}

	levels := BuildLevels(txHashes)
	root := levels[len(levels)-1][0]
	if !bytes.Equal(root[:], only[:]) {
		t.Fatalf("single-leaf root should equal the leaf: got %x, want %x", root, only)
	}

	proof, ok := Proof(only, txHashes)
	if !ok {
		t.Fatal("expected to find the sole transaction in the tree")
	}
	if len(proof) != 1 {
		t.Fatalf("expected a one-step proof for a single-leaf tree, got %d steps", len(proof))
	}
}

func TestProofMissingLeafReturnsFalse(t *testing.T) {
	txHashes := [][32]byte{mustHash(t, block2434337Txn1)}
	var notInTree [32]byte
	if _, ok := Proof(notInTree, txHashes); ok {
		t.Fatal("expected false for a hash not present in the tree")
	}
}
