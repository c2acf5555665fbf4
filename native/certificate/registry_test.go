package certificate

import (
	"errors"
	"testing"

	"dqchain/core/state"
	nativecommon "dqchain/native/common"
	"dqchain/storage"
	"dqchain/storage/trie"
)

var (
	admin   = addr(0x01)
	minter  = addr(0x02)
	student = addr(0x03)
	other   = addr(0x04)
)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	mgr := state.NewManager(tr)
	if err := mgr.SetRole("ROLE_ADMIN", admin[:]); err != nil {
		t.Fatalf("grant admin: %v", err)
	}
	if err := mgr.SetRole("ROLE_MINTER", minter[:]); err != nil {
		t.Fatalf("grant minter: %v", err)
	}
	reg := NewRegistry()
	reg.SetState(mgr)
	return reg
}

func TestMint(t *testing.T) {
	reg := newTestRegistry(t)

	cert, err := reg.Mint(minter, student, 7, "Intro to Data Engineering", 85, "ipfs://cert/7", 1_700_000_000)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if cert.TokenID != 1 {
		t.Fatalf("first token ID: got %d want 1", cert.TokenID)
	}
	if cert.Score != 85 || cert.CourseID != 7 {
		t.Fatalf("unexpected record: %+v", cert)
	}

	ok, err := reg.Verify(student, 7)
	if err != nil || !ok {
		t.Fatalf("verify after mint: ok=%v err=%v", ok, err)
	}
	ok, err = reg.Verify(student, 8)
	if err != nil || ok {
		t.Fatalf("verify unknown course: ok=%v err=%v", ok, err)
	}

	uri, err := reg.TokenURI(1)
	if err != nil || uri != "ipfs://cert/7" {
		t.Fatalf("token URI: %q err=%v", uri, err)
	}
}

func TestMintScoreThreshold(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.Mint(minter, student, 1, "Go Fundamentals", 69, "", 0); !errors.Is(err, ErrScoreTooLow) {
		t.Fatalf("expected score too low at 69, got %v", err)
	}
	if _, err := reg.Mint(minter, student, 1, "Go Fundamentals", 70, "", 0); err != nil {
		t.Fatalf("mint at exactly 70: %v", err)
	}
}

func TestMintDuplicate(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.Mint(minter, student, 3, "SQL Basics", 90, "", 0); err != nil {
		t.Fatalf("first mint: %v", err)
	}
	if _, err := reg.Mint(minter, student, 3, "SQL Basics", 95, "", 0); !errors.Is(err, ErrAlreadyIssued) {
		t.Fatalf("expected already issued, got %v", err)
	}
	// Same course for another student is fine.
	if _, err := reg.Mint(minter, other, 3, "SQL Basics", 75, "", 0); err != nil {
		t.Fatalf("mint other student: %v", err)
	}
}

func TestMintAuthorization(t *testing.T) {
	reg := newTestRegistry(t)

	if _, err := reg.Mint(student, student, 1, "Go Fundamentals", 90, "", 0); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
}

func TestHolderTokens(t *testing.T) {
	reg := newTestRegistry(t)

	for courseID := uint64(1); courseID <= 3; courseID++ {
		if _, err := reg.Mint(minter, student, courseID, "Course", 80, "", 0); err != nil {
			t.Fatalf("mint course %d: %v", courseID, err)
		}
	}
	ids, err := reg.HolderTokens(student)
	if err != nil {
		t.Fatalf("holder tokens: %v", err)
	}
	if len(ids) != 3 || ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("holder tokens out of order: %v", ids)
	}

	empty, err := reg.HolderTokens(other)
	if err != nil || len(empty) != 0 {
		t.Fatalf("holder tokens for fresh address: %v err=%v", empty, err)
	}

	total, err := reg.TotalIssued()
	if err != nil || total != 3 {
		t.Fatalf("total issued: got %d err=%v", total, err)
	}
}

func TestGetUnknown(t *testing.T) {
	reg := newTestRegistry(t)
	if _, err := reg.Get(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := reg.TokenURI(42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found from token URI, got %v", err)
	}
}

func TestPause(t *testing.T) {
	reg := newTestRegistry(t)

	if err := reg.Pause(minter); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if err := reg.Pause(admin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !reg.Paused() {
		t.Fatalf("pause flag not set")
	}
	if _, err := reg.Mint(minter, student, 1, "Go Fundamentals", 90, "", 0); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused mint, got %v", err)
	}
	// Reads stay available while paused.
	if _, err := reg.Verify(student, 1); err != nil {
		t.Fatalf("verify while paused: %v", err)
	}
	if err := reg.Unpause(admin); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := reg.Mint(minter, student, 1, "Go Fundamentals", 90, "", 0); err != nil {
		t.Fatalf("mint after unpause: %v", err)
	}
}
