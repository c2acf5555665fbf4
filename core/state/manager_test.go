package state

import (
	"math/big"
	"testing"

	"dqchain/storage"
	"dqchain/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	return NewManager(tr)
}

func TestTokenRegistration(t *testing.T) {
	mgr := newTestManager(t)

	if err := mgr.RegisterToken("dqt", "DataQuest Token", 18); err != nil {
		t.Fatalf("register: %v", err)
	}
	meta, err := mgr.Token("DQT")
	if err != nil || meta == nil {
		t.Fatalf("token lookup: meta=%v err=%v", meta, err)
	}
	if meta.Symbol != "DQT" || meta.Decimals != 18 {
		t.Fatalf("unexpected metadata: %+v", meta)
	}
	if err := mgr.RegisterToken("DQT", "Other", 6); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if mgr.TokenExists("NOPE") {
		t.Fatalf("unknown token reported as existing")
	}
}

func TestBalances(t *testing.T) {
	mgr := newTestManager(t)
	addr := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a,
		0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10, 0x11, 0x12, 0x13, 0x14}

	if err := mgr.SetBalance(addr, "DQT", big.NewInt(5)); err == nil {
		t.Fatalf("expected unregistered token error")
	}
	if err := mgr.RegisterToken("DQT", "DataQuest Token", 18); err != nil {
		t.Fatalf("register: %v", err)
	}

	bal, err := mgr.Balance(addr, "DQT")
	if err != nil || bal.Sign() != 0 {
		t.Fatalf("missing balance should be zero: %s err=%v", bal, err)
	}
	if err := mgr.SetBalance(addr, "DQT", big.NewInt(-1)); err == nil {
		t.Fatalf("expected negative balance rejection")
	}
	if err := mgr.SetBalance(addr, "DQT", big.NewInt(42)); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	bal, err = mgr.Balance(addr, "dqt")
	if err != nil || bal.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("case-insensitive read: %s err=%v", bal, err)
	}
}

func TestSupply(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.SetTokenSupply("DQT", big.NewInt(1000)); err != nil {
		t.Fatalf("set supply: %v", err)
	}
	supply, err := mgr.TokenSupply("DQT")
	if err != nil || supply.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("supply: %s err=%v", supply, err)
	}
}

func TestRoles(t *testing.T) {
	mgr := newTestManager(t)
	a := make([]byte, 20)
	b := make([]byte, 20)
	a[19], b[19] = 0xaa, 0xbb

	if mgr.HasRole("ROLE_ADMIN", a) {
		t.Fatalf("role reported before grant")
	}
	if err := mgr.SetRole("ROLE_ADMIN", b); err != nil {
		t.Fatalf("grant b: %v", err)
	}
	if err := mgr.SetRole("ROLE_ADMIN", a); err != nil {
		t.Fatalf("grant a: %v", err)
	}
	// Duplicate grants are no-ops.
	if err := mgr.SetRole("ROLE_ADMIN", a); err != nil {
		t.Fatalf("regrant a: %v", err)
	}
	members, err := mgr.RoleMembers("ROLE_ADMIN")
	if err != nil || len(members) != 2 {
		t.Fatalf("members: %v err=%v", members, err)
	}
	// The stored list is hex-sorted for determinism.
	if members[0][19] != 0xaa || members[1][19] != 0xbb {
		t.Fatalf("members not sorted: %x", members)
	}
	if err := mgr.RemoveRole("ROLE_ADMIN", a); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if mgr.HasRole("ROLE_ADMIN", a) {
		t.Fatalf("role survives revoke")
	}
	if !mgr.HasRole("ROLE_ADMIN", b) {
		t.Fatalf("unrelated grant lost")
	}
}

func TestPauseFlags(t *testing.T) {
	mgr := newTestManager(t)
	if mgr.ModulePaused("token") {
		t.Fatalf("fresh module reported paused")
	}
	if err := mgr.SetModulePaused("token", true); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !mgr.ModulePaused("token") {
		t.Fatalf("pause flag missing")
	}
	if mgr.ModulePaused("marketplace") {
		t.Fatalf("pause leaked across modules")
	}
	if err := mgr.SetModulePaused("token", false); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if mgr.ModulePaused("token") {
		t.Fatalf("unpause not applied")
	}
}

func TestSequences(t *testing.T) {
	mgr := newTestManager(t)
	current, err := mgr.CurrentID("cert/token")
	if err != nil || current != 0 {
		t.Fatalf("fresh sequence: %d err=%v", current, err)
	}
	for want := uint64(1); want <= 3; want++ {
		got, err := mgr.NextID("cert/token")
		if err != nil || got != want {
			t.Fatalf("next: got %d want %d err=%v", got, want, err)
		}
	}
	// Sequences are independent.
	got, err := mgr.NextID("market/course")
	if err != nil || got != 1 {
		t.Fatalf("second sequence: %d err=%v", got, err)
	}
}

type kvRecord struct {
	Name  string
	Count uint64
}

func TestKVHelpers(t *testing.T) {
	mgr := newTestManager(t)
	key := []byte("test/record/1")

	var out kvRecord
	ok, err := mgr.KVGet(key, &out)
	if err != nil || ok {
		t.Fatalf("missing key: ok=%v err=%v", ok, err)
	}
	if err := mgr.KVPut(key, &kvRecord{Name: "alpha", Count: 7}); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err = mgr.KVGet(key, &out)
	if err != nil || !ok || out.Name != "alpha" || out.Count != 7 {
		t.Fatalf("get: ok=%v out=%+v err=%v", ok, out, err)
	}
	if err := mgr.KVDelete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err = mgr.KVGet(key, &out)
	if err != nil || ok {
		t.Fatalf("deleted key still present: ok=%v err=%v", ok, err)
	}
}

func TestKVLists(t *testing.T) {
	mgr := newTestManager(t)
	key := []byte("test/list")

	var list [][]byte
	if err := mgr.KVGetList(key, &list); err != nil {
		t.Fatalf("empty list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", list)
	}
	for _, entry := range [][]byte{{0x01}, {0x02}, {0x01}} {
		if err := mgr.KVAppend(key, entry); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := mgr.KVGetList(key, &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	// The duplicate append is dropped, order is preserved.
	if len(list) != 2 || list[0][0] != 0x01 || list[1][0] != 0x02 {
		t.Fatalf("unexpected list: %x", list)
	}
}
