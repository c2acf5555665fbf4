package marketplace

import (
	"errors"
	"math/big"
	"testing"

	"dqchain/core/state"
	"dqchain/native/certificate"
	nativecommon "dqchain/native/common"
	"dqchain/native/token"
	"dqchain/storage"
	"dqchain/storage/trie"
)

var (
	admin   = addr(0x01)
	creator = addr(0x02)
	buyer   = addr(0x03)
	other   = addr(0x04)
)

func addr(b byte) [20]byte {
	var out [20]byte
	out[19] = b
	return out
}

func tokens(n int64) *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(token.Decimals)), nil)
	return new(big.Int).Mul(big.NewInt(n), unit)
}

type testEnv struct {
	engine *Engine
	certs  *certificate.Registry
	mgr    *state.Manager
	now    int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	if err != nil {
		t.Fatalf("new trie: %v", err)
	}
	mgr := state.NewManager(tr)
	if err := mgr.RegisterToken(token.Symbol, "DataQuest Token", token.Decimals); err != nil {
		t.Fatalf("register token: %v", err)
	}
	if err := mgr.SetTokenSupply(token.Symbol, tokens(10_000)); err != nil {
		t.Fatalf("set supply: %v", err)
	}
	if err := mgr.SetBalance(buyer[:], token.Symbol, tokens(10_000)); err != nil {
		t.Fatalf("seed buyer: %v", err)
	}
	if err := mgr.SetRole("ROLE_ADMIN", admin[:]); err != nil {
		t.Fatalf("grant admin: %v", err)
	}
	if err := mgr.SetRole("ROLE_COURSE_CREATOR", creator[:]); err != nil {
		t.Fatalf("grant creator: %v", err)
	}
	if err := mgr.SetRole("ROLE_MINTER", ModuleAddress[:]); err != nil {
		t.Fatalf("grant module minter: %v", err)
	}
	certs := certificate.NewRegistry()
	certs.SetState(mgr)
	env := &testEnv{engine: NewEngine(), certs: certs, mgr: mgr, now: 1_700_000_000}
	env.engine.SetState(mgr)
	env.engine.SetCertificates(certs)
	env.engine.SetNowFunc(func() int64 { return env.now })
	return env
}

func (env *testEnv) balance(t *testing.T, owner [20]byte) *big.Int {
	t.Helper()
	bal, err := env.mgr.Balance(owner[:], token.Symbol)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func (env *testEnv) createCourse(t *testing.T, price *big.Int, sharePct uint8) *Course {
	t.Helper()
	course, err := env.engine.CreateCourse(creator, price, "ipfs://course", sharePct)
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	return course
}

func TestCreateCourse(t *testing.T) {
	env := newTestEnv(t)

	course := env.createCourse(t, tokens(100), 80)
	if course.ID != 1 {
		t.Fatalf("first course ID: got %d want 1", course.ID)
	}
	if !course.Active || course.RevenueSharePct != 80 {
		t.Fatalf("unexpected course: %+v", course)
	}

	if _, err := env.engine.CreateCourse(other, tokens(100), "", 80); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if _, err := env.engine.CreateCourse(creator, big.NewInt(0), "", 80); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected invalid price, got %v", err)
	}
	if _, err := env.engine.CreateCourse(creator, tokens(100), "", 101); !errors.Is(err, ErrInvalidRevenueShare) {
		t.Fatalf("expected invalid revenue share, got %v", err)
	}

	// A zero share is a legal listing: the platform keeps every sale.
	zeroShare := env.createCourse(t, tokens(50), 0)
	if zeroShare.RevenueSharePct != 0 {
		t.Fatalf("zero share: got %d want 0", zeroShare.RevenueSharePct)
	}

	next, err := env.engine.NextCourseID()
	if err != nil || next != 3 {
		t.Fatalf("next course ID: got %d err=%v", next, err)
	}
	ids, err := env.engine.CoursesByCreator(creator)
	if err != nil || len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("courses by creator: %v err=%v", ids, err)
	}
}

func TestPurchaseCourse(t *testing.T) {
	env := newTestEnv(t)
	course := env.createCourse(t, tokens(100), 80)

	purchased, err := env.engine.PurchaseCourse(buyer, course.ID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	// 80 of 100 accrues to the creator escrow, 20 funds the reward pool.
	if purchased.AccruedRevenue.Cmp(tokens(80)) != 0 {
		t.Fatalf("accrued revenue: got %s want %s", purchased.AccruedRevenue, tokens(80))
	}
	if got := env.balance(t, EscrowVaultAddress); got.Cmp(tokens(80)) != 0 {
		t.Fatalf("escrow balance: got %s", got)
	}
	if got := env.balance(t, token.RewardPoolAddress); got.Cmp(tokens(20)) != 0 {
		t.Fatalf("reward pool balance: got %s", got)
	}
	if got := env.balance(t, buyer); got.Cmp(tokens(9_900)) != 0 {
		t.Fatalf("buyer balance: got %s", got)
	}

	enrolled, err := env.engine.IsEnrolled(buyer, course.ID)
	if err != nil || !enrolled {
		t.Fatalf("enrollment missing: ok=%v err=%v", enrolled, err)
	}

	if _, err := env.engine.PurchaseCourse(buyer, 99); !errors.Is(err, ErrCourseNotFound) {
		t.Fatalf("expected course not found, got %v", err)
	}
	if _, err := env.engine.PurchaseCourse(other, course.ID); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected insufficient funds, got %v", err)
	}
}

func TestPurchaseSplitRounding(t *testing.T) {
	env := newTestEnv(t)
	// Price 99 wei at 80 percent: creator gets 79 (floor), platform the
	// remaining 20, so shares always sum to the price.
	course, err := env.engine.CreateCourse(creator, big.NewInt(99), "", 80)
	if err != nil {
		t.Fatalf("create course: %v", err)
	}
	if _, err := env.engine.PurchaseCourse(buyer, course.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if got := env.balance(t, EscrowVaultAddress); got.Cmp(big.NewInt(79)) != 0 {
		t.Fatalf("escrow: got %s want 79", got)
	}
	if got := env.balance(t, token.RewardPoolAddress); got.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("reward pool: got %s want 20", got)
	}
}

func TestPurchaseZeroShareCourse(t *testing.T) {
	env := newTestEnv(t)
	course := env.createCourse(t, tokens(100), 0)

	purchased, err := env.engine.PurchaseCourse(buyer, course.ID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	// Nothing accrues to the creator: the whole price funds the reward pool.
	if purchased.AccruedRevenue.Sign() != 0 {
		t.Fatalf("accrued revenue: got %s want 0", purchased.AccruedRevenue)
	}
	if got := env.balance(t, EscrowVaultAddress); got.Sign() != 0 {
		t.Fatalf("escrow balance: got %s want 0", got)
	}
	if got := env.balance(t, token.RewardPoolAddress); got.Cmp(tokens(100)) != 0 {
		t.Fatalf("reward pool balance: got %s want %s", got, tokens(100))
	}
	if _, err := env.engine.WithdrawRevenue(creator, course.ID); !errors.Is(err, ErrNothingToWithdraw) {
		t.Fatalf("expected nothing to withdraw, got %v", err)
	}
}

func TestToggleAndUpdate(t *testing.T) {
	env := newTestEnv(t)
	course := env.createCourse(t, tokens(100), 80)

	if _, err := env.engine.ToggleCourseStatus(other, course.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorized toggle, got %v", err)
	}
	toggled, err := env.engine.ToggleCourseStatus(creator, course.ID)
	if err != nil || toggled.Active {
		t.Fatalf("toggle off: active=%v err=%v", toggled.Active, err)
	}
	if _, err := env.engine.PurchaseCourse(buyer, course.ID); !errors.Is(err, ErrCourseInactive) {
		t.Fatalf("expected inactive, got %v", err)
	}
	toggled, err = env.engine.ToggleCourseStatus(creator, course.ID)
	if err != nil || !toggled.Active {
		t.Fatalf("toggle back on: active=%v err=%v", toggled.Active, err)
	}

	updated, err := env.engine.UpdateCourse(creator, course.ID, tokens(150), "ipfs://course/v2", 70)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Price.Cmp(tokens(150)) != 0 || updated.RevenueSharePct != 70 || updated.MetadataURI != "ipfs://course/v2" {
		t.Fatalf("unexpected update result: %+v", updated)
	}
	updated, err = env.engine.UpdateCourse(creator, course.ID, tokens(150), "ipfs://course/v2", 0)
	if err != nil {
		t.Fatalf("update to zero share: %v", err)
	}
	if updated.RevenueSharePct != 0 {
		t.Fatalf("zero share not stored: got %d", updated.RevenueSharePct)
	}
	if _, err := env.engine.UpdateCourse(other, course.ID, tokens(1), "", 70); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorized update, got %v", err)
	}
}

func TestWithdrawRevenue(t *testing.T) {
	env := newTestEnv(t)
	course := env.createCourse(t, tokens(100), 80)

	if _, err := env.engine.WithdrawRevenue(creator, course.ID); !errors.Is(err, ErrNothingToWithdraw) {
		t.Fatalf("expected nothing to withdraw, got %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := env.engine.PurchaseCourse(buyer, course.ID); err != nil {
			t.Fatalf("purchase %d: %v", i, err)
		}
	}

	if _, err := env.engine.WithdrawRevenue(other, course.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorized withdraw, got %v", err)
	}
	amount, err := env.engine.WithdrawRevenue(creator, course.ID)
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if amount.Cmp(tokens(160)) != 0 {
		t.Fatalf("withdrawn amount: got %s want %s", amount, tokens(160))
	}
	if got := env.balance(t, creator); got.Cmp(tokens(160)) != 0 {
		t.Fatalf("creator balance: got %s", got)
	}
	if got := env.balance(t, EscrowVaultAddress); got.Sign() != 0 {
		t.Fatalf("escrow not drained: %s", got)
	}

	if _, err := env.engine.WithdrawRevenue(creator, course.ID); !errors.Is(err, ErrNothingToWithdraw) {
		t.Fatalf("expected nothing to withdraw after drain, got %v", err)
	}
}

func TestIssueCertificate(t *testing.T) {
	env := newTestEnv(t)
	course := env.createCourse(t, tokens(100), 80)

	if _, err := env.engine.IssueCertificate(creator, buyer, course.ID, "Go Fundamentals", 85, "ipfs://cert/1"); !errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("expected not enrolled, got %v", err)
	}
	if _, err := env.engine.PurchaseCourse(buyer, course.ID); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := env.engine.IssueCertificate(other, buyer, course.ID, "Go Fundamentals", 85, ""); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}

	cert, err := env.engine.IssueCertificate(creator, buyer, course.ID, "Go Fundamentals", 85, "ipfs://cert/1")
	if err != nil {
		t.Fatalf("issue certificate: %v", err)
	}
	if cert.TokenID != 1 || cert.Student != buyer || cert.CourseID != course.ID {
		t.Fatalf("unexpected certificate: %+v", cert)
	}

	// Below the passing bar the registry rejects the mint.
	if _, err := env.engine.IssueCertificate(creator, buyer, course.ID, "Go Fundamentals", 69, ""); !errors.Is(err, certificate.ErrScoreTooLow) {
		t.Fatalf("expected score too low, got %v", err)
	}
	// A second passing grade for the same course is rejected by uniqueness.
	if _, err := env.engine.IssueCertificate(creator, buyer, course.ID, "Go Fundamentals", 95, ""); !errors.Is(err, certificate.ErrAlreadyIssued) {
		t.Fatalf("expected already issued, got %v", err)
	}
}

func TestMarketplacePause(t *testing.T) {
	env := newTestEnv(t)
	course := env.createCourse(t, tokens(100), 80)

	if err := env.engine.Pause(other); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected not authorized, got %v", err)
	}
	if err := env.engine.Pause(admin); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := env.engine.PurchaseCourse(buyer, course.ID); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused purchase, got %v", err)
	}
	if _, err := env.engine.CreateCourse(creator, tokens(10), "", 80); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("expected paused create, got %v", err)
	}
	// Reads keep working.
	if _, err := env.engine.GetCourse(course.ID); err != nil {
		t.Fatalf("get while paused: %v", err)
	}
	if err := env.engine.Unpause(admin); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if _, err := env.engine.PurchaseCourse(buyer, course.ID); err != nil {
		t.Fatalf("purchase after unpause: %v", err)
	}
}
