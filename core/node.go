package core

import (
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"dqchain/core/events"
	"dqchain/core/genesis"
	"dqchain/core/state"
	"dqchain/core/types"
	"dqchain/crypto"
	"dqchain/native/certificate"
	"dqchain/native/marketplace"
	"dqchain/native/token"
	"dqchain/observability"
	"dqchain/storage"
	"dqchain/storage/trie"
)

// ErrInvalidRole is returned when a role grant names an unknown role.
var ErrInvalidRole = errors.New("core: unknown role")

// maxBufferedEvents bounds the in-memory event log served over RPC.
const maxBufferedEvents = 4096

var knownRoles = map[string]struct{}{
	"ROLE_ADMIN":          {},
	"ROLE_MINTER":         {},
	"ROLE_COURSE_CREATOR": {},
}

// Node is the central controller wiring storage, state and the native engines
// together. Every mutating operation runs as an atomic state transition: the
// trie journal commits on success and is discarded on error, so a failed
// operation leaves no partial writes behind.
type Node struct {
	mu     sync.Mutex
	db     storage.Database
	trie   *trie.Trie
	state  *state.Manager
	token  *token.Engine
	certs  *certificate.Registry
	market *marketplace.Engine

	events []types.Event
	height uint64
	nowFn  func() int64
	log    *slog.Logger
}

// NewNode opens the ledger on top of the provided database, resuming from the
// latest committed state root when one exists.
func NewNode(db storage.Database, logger *slog.Logger) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	root, err := trie.LatestRoot(db)
	if err != nil {
		return nil, fmt.Errorf("core: load latest root: %w", err)
	}
	stateTrie, err := trie.NewTrie(db, root.Bytes())
	if err != nil {
		return nil, fmt.Errorf("core: open state trie: %w", err)
	}

	n := &Node{
		db:    db,
		trie:  stateTrie,
		state: state.NewManager(stateTrie),
		nowFn: func() int64 { return time.Now().Unix() },
		log:   logger.With("component", "node"),
	}

	n.token = token.NewEngine()
	n.token.SetState(n.state)
	n.token.SetEmitter(n)

	n.certs = certificate.NewRegistry()
	n.certs.SetState(n.state)
	n.certs.SetEmitter(n)

	n.market = marketplace.NewEngine()
	n.market.SetState(n.state)
	n.market.SetCertificates(n.certs)
	n.market.SetEmitter(n)

	return n, nil
}

// Emit implements events.Emitter. Typed engine events are flattened into the
// buffered attribute form served over RPC.
func (n *Node) Emit(evt events.Event) {
	typed, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	flattened := typed.Event()
	if flattened == nil {
		return
	}
	observability.LedgerMetrics().RecordEvent(flattened.Type)
	n.events = append(n.events, *flattened)
	if len(n.events) > maxBufferedEvents {
		n.events = n.events[len(n.events)-maxBufferedEvents:]
	}
}

// Initialized reports whether the ledger already carries committed state.
func (n *Node) Initialized() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trie.Root() != gethtypes.EmptyRootHash
}

// InitGenesis seeds a fresh ledger from the spec and commits the result. It
// fails on a ledger that already carries state.
func (n *Node) InitGenesis(spec *genesis.Spec) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.trie.Root() != gethtypes.EmptyRootHash {
		return fmt.Errorf("core: ledger already initialized")
	}
	parent := n.trie.Root()
	if err := genesis.Apply(spec, n.state); err != nil {
		if resetErr := n.trie.Reset(parent); resetErr != nil {
			return errors.Join(err, resetErr)
		}
		return err
	}
	root, err := n.trie.Commit(parent, 0)
	if err != nil {
		return err
	}
	n.log.Info("genesis applied", "stateRoot", root.Hex())
	return nil
}

// withTransition runs a mutating operation atomically: on error the trie
// journal and any events emitted during the attempt are discarded.
func (n *Node) withTransition(op string, fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	parent := n.trie.Root()
	eventMark := len(n.events)
	if err := fn(); err != nil {
		n.events = n.events[:eventMark]
		if resetErr := n.trie.Reset(parent); resetErr != nil {
			return errors.Join(err, resetErr)
		}
		observability.LedgerMetrics().RecordTransition(op, false)
		n.log.Debug("state transition rejected", "op", op, "err", err)
		return err
	}
	if !n.trie.Dirty() {
		return nil
	}
	root, err := n.trie.Commit(parent, n.height+1)
	if err != nil {
		return err
	}
	n.height++
	observability.LedgerMetrics().RecordTransition(op, true)
	observability.LedgerMetrics().SetHeight(n.height)
	n.log.Debug("state transition committed", "op", op, "height", n.height, "stateRoot", root.Hex())
	return nil
}

// StateRoot returns the latest committed state root.
func (n *Node) StateRoot() common.Hash {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.trie.Root()
}

// Height returns the number of committed state transitions.
func (n *Node) Height() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.height
}

// Events returns a copy of the buffered event log, oldest first.
func (n *Node) Events() []types.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]types.Event, len(n.events))
	copy(out, n.events)
	return out
}

// --- Role administration ---

// GrantRole assigns a role to an address. Admin only.
func (n *Node) GrantRole(caller crypto.Address, role string, addr crypto.Address) error {
	return n.withTransition("core.grantRole", func() error {
		if !n.state.HasRole("ROLE_ADMIN", caller.Bytes()) {
			return token.ErrNotAuthorized
		}
		if _, ok := knownRoles[role]; !ok {
			return fmt.Errorf("%w: %s", ErrInvalidRole, role)
		}
		return n.state.SetRole(role, addr.Bytes())
	})
}

// RevokeRole removes a role grant. Admin only.
func (n *Node) RevokeRole(caller crypto.Address, role string, addr crypto.Address) error {
	return n.withTransition("core.revokeRole", func() error {
		if !n.state.HasRole("ROLE_ADMIN", caller.Bytes()) {
			return token.ErrNotAuthorized
		}
		if _, ok := knownRoles[role]; !ok {
			return fmt.Errorf("%w: %s", ErrInvalidRole, role)
		}
		return n.state.RemoveRole(role, addr.Bytes())
	})
}

// HasRole reports whether an address holds a role.
func (n *Node) HasRole(role string, addr crypto.Address) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.HasRole(role, addr.Bytes())
}

func toBytes20(addr crypto.Address) [20]byte {
	var out [20]byte
	copy(out[:], addr.Bytes())
	return out
}

// --- Token operations ---

// TokenTransfer moves tokens between two accounts.
func (n *Node) TokenTransfer(from, to crypto.Address, amount *big.Int) error {
	return n.withTransition("token.transfer", func() error {
		return n.token.Transfer(toBytes20(from), toBytes20(to), amount)
	})
}

// TokenFundRewardPool moves caller balance into the reward pool and returns
// the resulting pool balance.
func (n *Node) TokenFundRewardPool(from crypto.Address, amount *big.Int) (*big.Int, error) {
	var pool *big.Int
	err := n.withTransition("token.fundRewardPool", func() error {
		var innerErr error
		pool, innerErr = n.token.FundRewardPool(toBytes20(from), amount)
		return innerErr
	})
	return pool, err
}

// TokenStake locks caller balance into the staking sub-ledger.
func (n *Node) TokenStake(owner crypto.Address, amount *big.Int) (*token.StakeRecord, error) {
	var record *token.StakeRecord
	err := n.withTransition("token.stake", func() error {
		var innerErr error
		record, innerErr = n.token.Stake(toBytes20(owner), amount)
		return innerErr
	})
	return record, err
}

// TokenUnstake releases the caller's stake plus the accrued reward.
func (n *Node) TokenUnstake(owner crypto.Address) (*token.UnstakeReceipt, error) {
	var receipt *token.UnstakeReceipt
	err := n.withTransition("token.unstake", func() error {
		var innerErr error
		receipt, innerErr = n.token.Unstake(toBytes20(owner))
		return innerErr
	})
	return receipt, err
}

// TokenRewardCourseCompletion pays the completion reward to a student.
func (n *Node) TokenRewardCourseCompletion(caller, student crypto.Address) (*big.Int, error) {
	var paid *big.Int
	err := n.withTransition("token.rewardCourseCompletion", func() error {
		var innerErr error
		paid, innerErr = n.token.RewardCourseCompletion(toBytes20(caller), toBytes20(student))
		return innerErr
	})
	return paid, err
}

// TokenRewardContribution pays the contribution reward to a contributor.
func (n *Node) TokenRewardContribution(caller, contributor crypto.Address) (*big.Int, error) {
	var paid *big.Int
	err := n.withTransition("token.rewardContribution", func() error {
		var innerErr error
		paid, innerErr = n.token.RewardContribution(toBytes20(caller), toBytes20(contributor))
		return innerErr
	})
	return paid, err
}

// TokenSetCourseCompletionReward updates the completion payout. Admin only.
func (n *Node) TokenSetCourseCompletionReward(caller crypto.Address, amount *big.Int) error {
	return n.withTransition("token.setCourseCompletionReward", func() error {
		return n.token.SetCourseCompletionReward(toBytes20(caller), amount)
	})
}

// TokenSetContributionReward updates the contribution payout. Admin only.
func (n *Node) TokenSetContributionReward(caller crypto.Address, amount *big.Int) error {
	return n.withTransition("token.setContributionReward", func() error {
		return n.token.SetContributionReward(toBytes20(caller), amount)
	})
}

// TokenPause gates staking and reward payouts. Admin only.
func (n *Node) TokenPause(caller crypto.Address) error {
	return n.withTransition("token.pause", func() error {
		return n.token.Pause(toBytes20(caller))
	})
}

// TokenUnpause lifts the token pause. Admin only.
func (n *Node) TokenUnpause(caller crypto.Address) error {
	return n.withTransition("token.unpause", func() error {
		return n.token.Unpause(toBytes20(caller))
	})
}

// TokenBalance reports the spendable balance for an address.
func (n *Node) TokenBalance(addr crypto.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.token.BalanceOf(toBytes20(addr))
}

// TokenStakeInfo returns the active stake record for an address, if any.
func (n *Node) TokenStakeInfo(addr crypto.Address) (*token.StakeRecord, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.token.StakeInfo(toBytes20(addr))
}

// TokenStakingReward previews the reward an unstake would pay now.
func (n *Node) TokenStakingReward(addr crypto.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.token.StakingReward(toBytes20(addr))
}

// TokenParams returns the current reward/staking parameters.
func (n *Node) TokenParams() (*token.Params, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.token.Params()
}

// SupplyInfo summarizes where the fixed supply currently sits.
type SupplyInfo struct {
	TotalSupply  *big.Int
	RewardPool   *big.Int
	StakeVault   *big.Int
	MarketEscrow *big.Int
}

// TokenSupplyInfo reports the fixed supply and the module-held balances.
func (n *Node) TokenSupplyInfo() (*SupplyInfo, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	total, err := n.state.TokenSupply(token.Symbol)
	if err != nil {
		return nil, err
	}
	pool, err := n.state.Balance(token.RewardPoolAddress[:], token.Symbol)
	if err != nil {
		return nil, err
	}
	vault, err := n.state.Balance(token.StakeVaultAddress[:], token.Symbol)
	if err != nil {
		return nil, err
	}
	escrow, err := n.state.Balance(marketplace.EscrowVaultAddress[:], token.Symbol)
	if err != nil {
		return nil, err
	}
	return &SupplyInfo{TotalSupply: total, RewardPool: pool, StakeVault: vault, MarketEscrow: escrow}, nil
}

// --- Certificate operations ---

// CertificateMint issues a completion certificate directly. The caller must
// hold ROLE_MINTER.
func (n *Node) CertificateMint(caller, student crypto.Address, courseID uint64, courseName string, score uint8, metadataURI string) (*certificate.Certificate, error) {
	var cert *certificate.Certificate
	err := n.withTransition("cert.mint", func() error {
		var innerErr error
		cert, innerErr = n.certs.Mint(toBytes20(caller), toBytes20(student), courseID, courseName, score, metadataURI, n.nowFn())
		return innerErr
	})
	return cert, err
}

// CertificateVerify reports whether a student holds a certificate for a course.
func (n *Node) CertificateVerify(student crypto.Address, courseID uint64) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.certs.Verify(toBytes20(student), courseID)
}

// CertificateGet loads a certificate by token ID.
func (n *Node) CertificateGet(tokenID uint64) (*certificate.Certificate, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.certs.Get(tokenID)
}

// CertificateTokenURI returns the metadata URI for a certificate.
func (n *Node) CertificateTokenURI(tokenID uint64) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.certs.TokenURI(tokenID)
}

// CertificateHolderTokens lists the token IDs held by a student.
func (n *Node) CertificateHolderTokens(student crypto.Address) ([]uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.certs.HolderTokens(toBytes20(student))
}

// CertificateTotalIssued reports how many certificates exist.
func (n *Node) CertificateTotalIssued() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.certs.TotalIssued()
}

// CertificatePause gates minting. Admin only.
func (n *Node) CertificatePause(caller crypto.Address) error {
	return n.withTransition("cert.pause", func() error {
		return n.certs.Pause(toBytes20(caller))
	})
}

// CertificateUnpause lifts the certificate pause. Admin only.
func (n *Node) CertificateUnpause(caller crypto.Address) error {
	return n.withTransition("cert.unpause", func() error {
		return n.certs.Unpause(toBytes20(caller))
	})
}

// --- Marketplace operations ---

// MarketCreateCourse lists a new course for the creator.
func (n *Node) MarketCreateCourse(creator crypto.Address, price *big.Int, metadataURI string, revenueSharePct uint8) (*marketplace.Course, error) {
	var course *marketplace.Course
	err := n.withTransition("market.createCourse", func() error {
		var innerErr error
		course, innerErr = n.market.CreateCourse(toBytes20(creator), price, metadataURI, revenueSharePct)
		return innerErr
	})
	return course, err
}

// MarketPurchaseCourse settles a course sale for the buyer.
func (n *Node) MarketPurchaseCourse(buyer crypto.Address, courseID uint64) (*marketplace.Course, error) {
	var course *marketplace.Course
	err := n.withTransition("market.purchaseCourse", func() error {
		var innerErr error
		course, innerErr = n.market.PurchaseCourse(toBytes20(buyer), courseID)
		return innerErr
	})
	return course, err
}

// MarketUpdateCourse changes a listing's price, metadata and revenue share.
func (n *Node) MarketUpdateCourse(caller crypto.Address, courseID uint64, price *big.Int, metadataURI string, revenueSharePct uint8) (*marketplace.Course, error) {
	var course *marketplace.Course
	err := n.withTransition("market.updateCourse", func() error {
		var innerErr error
		course, innerErr = n.market.UpdateCourse(toBytes20(caller), courseID, price, metadataURI, revenueSharePct)
		return innerErr
	})
	return course, err
}

// MarketToggleCourseStatus flips a listing between active and inactive.
func (n *Node) MarketToggleCourseStatus(caller crypto.Address, courseID uint64) (*marketplace.Course, error) {
	var course *marketplace.Course
	err := n.withTransition("market.toggleCourseStatus", func() error {
		var innerErr error
		course, innerErr = n.market.ToggleCourseStatus(toBytes20(caller), courseID)
		return innerErr
	})
	return course, err
}

// MarketWithdrawRevenue drains a course's accrued creator revenue.
func (n *Node) MarketWithdrawRevenue(caller crypto.Address, courseID uint64) (*big.Int, error) {
	var amount *big.Int
	err := n.withTransition("market.withdrawRevenue", func() error {
		var innerErr error
		amount, innerErr = n.market.WithdrawRevenue(toBytes20(caller), courseID)
		return innerErr
	})
	return amount, err
}

// MarketIssueCertificate certifies a student's completion of a purchased
// course under the marketplace's minter identity.
func (n *Node) MarketIssueCertificate(caller, student crypto.Address, courseID uint64, courseName string, score uint8, metadataURI string) (*certificate.Certificate, error) {
	var cert *certificate.Certificate
	err := n.withTransition("market.issueCertificate", func() error {
		var innerErr error
		cert, innerErr = n.market.IssueCertificate(toBytes20(caller), toBytes20(student), courseID, courseName, score, metadataURI)
		return innerErr
	})
	return cert, err
}

// MarketGetCourse loads a course listing by ID.
func (n *Node) MarketGetCourse(courseID uint64) (*marketplace.Course, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.GetCourse(courseID)
}

// MarketNextCourseID reports the ID the next created course will receive.
func (n *Node) MarketNextCourseID() (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.NextCourseID()
}

// MarketCoursesByCreator lists the course IDs published by an address.
func (n *Node) MarketCoursesByCreator(creator crypto.Address) ([]uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.CoursesByCreator(toBytes20(creator))
}

// MarketEnrollments lists the course IDs a student has purchased.
func (n *Node) MarketEnrollments(student crypto.Address) ([]uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.market.Enrollments(toBytes20(student))
}

// MarketPause gates listings, purchases and withdrawals. Admin only.
func (n *Node) MarketPause(caller crypto.Address) error {
	return n.withTransition("market.pause", func() error {
		return n.market.Pause(toBytes20(caller))
	})
}

// MarketUnpause lifts the marketplace pause. Admin only.
func (n *Node) MarketUnpause(caller crypto.Address) error {
	return n.withTransition("market.unpause", func() error {
		return n.market.Unpause(toBytes20(caller))
	})
}

// ModulePaused reports the pause flag for a native module.
func (n *Node) ModulePaused(module string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state.ModulePaused(module)
}

// SetNowFunc overrides the time source of all engines, for deterministic
// testing.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.nowFn = now
	n.token.SetNowFunc(now)
	n.market.SetNowFunc(now)
}
