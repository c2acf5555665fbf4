package genesis

import (
	"fmt"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"dqchain/core/state"
	"dqchain/crypto"
	"dqchain/native/marketplace"
	"dqchain/native/token"
	"dqchain/storage"
	"dqchain/storage/trie"
)

func testAddr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func bech(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.DQPrefix, addr[:]).String()
}

func specJSON(admin, treasury [20]byte) string {
	return fmt.Sprintf(`{
  "genesisTime": "2025-01-01T00:00:00Z",
  "token": {"symbol": "DQT", "name": "DataQuest Token", "decimals": 18, "totalSupply": "1000000"},
  "alloc": {%q: "600000", %q: "300000"},
  "rewardPool": "100000",
  "roles": {"ROLE_ADMIN": [%q], "ROLE_COURSE_CREATOR": [%q]},
  "params": {"stakeAprBps": 1500}
}`, bech(admin), bech(treasury), bech(admin), bech(treasury))
}

func TestParseSpec(t *testing.T) {
	admin, treasury := testAddr(0x01), testAddr(0x02)
	spec, err := ParseSpec([]byte(specJSON(admin, treasury)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if spec.Token.Symbol != "DQT" {
		t.Fatalf("symbol: %q", spec.Token.Symbol)
	}
	params, err := spec.TokenParams()
	if err != nil {
		t.Fatalf("token params: %v", err)
	}
	if params.StakeAPRBps != 1500 {
		t.Fatalf("apr override: got %d", params.StakeAPRBps)
	}
	if params.MinStakeLockSeconds != token.DefaultMinStakeLockSeconds {
		t.Fatalf("lock default lost: got %d", params.MinStakeLockSeconds)
	}
}

func TestParseSpecSupplyMismatch(t *testing.T) {
	admin, treasury := testAddr(0x01), testAddr(0x02)
	raw := strings.Replace(specJSON(admin, treasury), `"rewardPool": "100000"`, `"rewardPool": "1"`, 1)
	if _, err := ParseSpec([]byte(raw)); err == nil || !strings.Contains(err.Error(), "totalSupply") {
		t.Fatalf("expected supply mismatch, got %v", err)
	}
}

func TestParseSpecUnknownField(t *testing.T) {
	admin, treasury := testAddr(0x01), testAddr(0x02)
	raw := strings.Replace(specJSON(admin, treasury), `"rewardPool"`, `"rewardPoool"`, 1)
	if _, err := ParseSpec([]byte(raw)); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestApply(t *testing.T) {
	admin, treasury := testAddr(0x01), testAddr(0x02)
	spec, err := ParseSpec([]byte(specJSON(admin, treasury)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	mgr := state.NewManager(tr)
	if err := Apply(spec, mgr); err != nil {
		t.Fatalf("apply: %v", err)
	}

	bal, err := mgr.Balance(admin[:], token.Symbol)
	if err != nil || bal.Cmp(big.NewInt(600000)) != 0 {
		t.Fatalf("admin balance: %s err=%v", bal, err)
	}
	pool, err := mgr.Balance(token.RewardPoolAddress[:], token.Symbol)
	if err != nil || pool.Cmp(big.NewInt(100000)) != 0 {
		t.Fatalf("reward pool: %s err=%v", pool, err)
	}
	supply, err := mgr.TokenSupply(token.Symbol)
	if err != nil || supply.Cmp(big.NewInt(1000000)) != 0 {
		t.Fatalf("supply: %s err=%v", supply, err)
	}
	if !mgr.HasRole("ROLE_ADMIN", admin[:]) {
		t.Fatalf("admin role missing")
	}
	if !mgr.HasRole("ROLE_MINTER", marketplace.ModuleAddress[:]) {
		t.Fatalf("marketplace minter grant missing")
	}

	// Replaying genesis over live state must fail.
	if err := Apply(spec, mgr); err == nil {
		t.Fatalf("expected replay rejection")
	}
}

func TestApplyDeterministicRoot(t *testing.T) {
	admin, treasury := testAddr(0x01), testAddr(0x02)
	var roots [2]common.Hash
	for i := 0; i < 2; i++ {
		spec, err := ParseSpec([]byte(specJSON(admin, treasury)))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		db := storage.NewMemDB()
		tr, err := trie.NewTrie(db, nil)
		if err != nil {
			t.Fatalf("new trie: %v", err)
		}
		if err := Apply(spec, state.NewManager(tr)); err != nil {
			t.Fatalf("apply: %v", err)
		}
		roots[i] = tr.Hash()
		db.Close()
	}
	if roots[0] != roots[1] {
		t.Fatalf("non-deterministic genesis root: %x vs %x", roots[0], roots[1])
	}
}
