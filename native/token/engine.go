package token

import (
	"math/big"
	"time"

	"dqchain/core/events"
	"dqchain/core/state"
	nativecommon "dqchain/native/common"
)

const roleAdmin = "ROLE_ADMIN"

type engineState interface {
	Balance(addr []byte, symbol string) (*big.Int, error)
	SetBalance(addr []byte, symbol string, amount *big.Int) error
	HasRole(role string, addr []byte) bool
	ModulePaused(module string) bool
	SetModulePaused(module string, paused bool) error
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

// Engine wires the fungible ledger business logic with persistence and event
// emission. All mutating entry points are atomic from the caller's view: the
// surrounding node commits on success and rolls the trie back on error.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
}

// NewEngine constructs a token engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(st engineState) { e.state = st }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

type statePauses struct{ st engineState }

func (p statePauses) IsPaused(module string) bool { return p.st.ModulePaused(module) }

func (e *Engine) guardPaused() error {
	return nativecommon.Guard(statePauses{st: e.state}, ModuleName)
}

func validAmount(amount *big.Int) bool {
	return amount != nil && amount.Sign() > 0
}

func (e *Engine) balance(addr [20]byte) (*big.Int, error) {
	return e.state.Balance(addr[:], Symbol)
}

func (e *Engine) setBalance(addr [20]byte, amount *big.Int) error {
	return e.state.SetBalance(addr[:], Symbol, amount)
}

// move debits from and credits to in one step. Callers have already validated
// the amount; the balance check here is the authoritative one.
func (e *Engine) move(from, to [20]byte, amount *big.Int) error {
	fromBal, err := e.balance(from)
	if err != nil {
		return err
	}
	if fromBal.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	if err := e.setBalance(from, new(big.Int).Sub(fromBal, amount)); err != nil {
		return err
	}
	toBal, err := e.balance(to)
	if err != nil {
		return err
	}
	return e.setBalance(to, new(big.Int).Add(toBal, amount))
}

// Params returns the current reward/staking configuration, falling back to the
// defaults when genesis never wrote one.
func (e *Engine) Params() (*Params, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	params := new(Params)
	ok, err := e.state.KVGet(state.TokenParamsKey(), params)
	if err != nil {
		return nil, err
	}
	if !ok {
		return DefaultParams(), nil
	}
	if params.CourseCompletionReward == nil {
		params.CourseCompletionReward = big.NewInt(0)
	}
	if params.ContributionReward == nil {
		params.ContributionReward = big.NewInt(0)
	}
	return params, nil
}

func (e *Engine) writeParams(params *Params) error {
	return e.state.KVPut(state.TokenParamsKey(), params)
}

// BalanceOf reports the spendable balance for an address.
func (e *Engine) BalanceOf(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.balance(addr)
}

// RewardPoolBalance reports the protocol-held reward pool balance.
func (e *Engine) RewardPoolBalance() (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.balance(RewardPoolAddress)
}

// Transfer moves amount from the caller to the destination address. Transfers
// stay available while the module is paused; only staking and reward payouts
// are gated.
func (e *Engine) Transfer(from, to [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	if err := e.move(from, to, amount); err != nil {
		return err
	}
	e.emit(events.TokenTransferred{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// FundRewardPool moves caller balance into the protocol reward pool.
func (e *Engine) FundRewardPool(from [20]byte, amount *big.Int) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if err := e.move(from, RewardPoolAddress, amount); err != nil {
		return nil, err
	}
	pool, err := e.balance(RewardPoolAddress)
	if err != nil {
		return nil, err
	}
	e.emit(events.TokenPoolFunded{From: from, Amount: new(big.Int).Set(amount), Pool: pool})
	return pool, nil
}

func (e *Engine) stakeGet(owner [20]byte) (*StakeRecord, bool, error) {
	record := new(StakeRecord)
	ok, err := e.state.KVGet(state.TokenStakeKey(owner[:]), record)
	if err != nil || !ok {
		return nil, false, err
	}
	if record.Principal == nil {
		record.Principal = big.NewInt(0)
	}
	return record, true, nil
}

// Stake locks amount from the caller's balance into the staking sub-ledger. A
// stake on top of an active position merges the principal and restarts the
// lock clock.
func (e *Engine) Stake(owner [20]byte, amount *big.Int) (*StakeRecord, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := e.guardPaused(); err != nil {
		return nil, err
	}
	if !validAmount(amount) {
		return nil, ErrInvalidAmount
	}
	if err := e.move(owner, StakeVaultAddress, amount); err != nil {
		return nil, err
	}
	record, ok, err := e.stakeGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		record = &StakeRecord{Owner: owner, Principal: big.NewInt(0)}
	}
	record.Principal = new(big.Int).Add(record.Principal, amount)
	record.StartTime = uint64(e.now())
	if err := e.state.KVPut(state.TokenStakeKey(owner[:]), record); err != nil {
		return nil, err
	}
	e.emit(events.TokenStaked{
		Owner:     owner,
		Amount:    new(big.Int).Set(amount),
		Principal: new(big.Int).Set(record.Principal),
		StartTime: record.StartTime,
	})
	return record.Clone(), nil
}

func stakingReward(principal *big.Int, aprBps, elapsedDays uint64) *big.Int {
	if principal == nil || principal.Sign() <= 0 || aprBps == 0 || elapsedDays == 0 {
		return big.NewInt(0)
	}
	reward := new(big.Int).Mul(principal, new(big.Int).SetUint64(aprBps))
	reward.Mul(reward, new(big.Int).SetUint64(elapsedDays))
	return reward.Div(reward, big.NewInt(bpsDenom*daysPerYear))
}

func (e *Engine) elapsed(record *StakeRecord) (secs uint64, days uint64) {
	now := e.now()
	if now <= 0 || uint64(now) <= record.StartTime {
		return 0, 0
	}
	secs = uint64(now) - record.StartTime
	return secs, secs / secondsPerDay
}

// StakingReward previews the reward an unstake would pay right now without
// mutating state. Callers without an active stake receive ErrNoActiveStake.
func (e *Engine) StakingReward(owner [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	record, ok, err := e.stakeGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNoActiveStake
	}
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	_, days := e.elapsed(record)
	return stakingReward(record.Principal, params.StakeAPRBps, days), nil
}

// StakeInfo returns the active stake record for an owner, if any.
func (e *Engine) StakeInfo(owner [20]byte) (*StakeRecord, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	record, ok, err := e.stakeGet(owner)
	if err != nil || !ok {
		return nil, ok, err
	}
	return record.Clone(), true, nil
}

// Unstake releases the caller's full stake once the minimum lock has elapsed.
// Principal returns from the stake vault; the accrued reward is paid from the
// reward pool and the whole operation fails if the pool cannot cover it.
func (e *Engine) Unstake(owner [20]byte) (*UnstakeReceipt, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := e.guardPaused(); err != nil {
		return nil, err
	}
	record, ok, err := e.stakeGet(owner)
	if err != nil {
		return nil, err
	}
	if !ok || record.Principal.Sign() == 0 {
		return nil, ErrNoActiveStake
	}
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	secs, days := e.elapsed(record)
	if secs < params.MinStakeLockSeconds {
		return nil, ErrLockPeriodNotMet
	}
	reward := stakingReward(record.Principal, params.StakeAPRBps, days)
	if reward.Sign() > 0 {
		pool, err := e.balance(RewardPoolAddress)
		if err != nil {
			return nil, err
		}
		if pool.Cmp(reward) < 0 {
			return nil, ErrInsufficientRewardPool
		}
		if err := e.move(RewardPoolAddress, owner, reward); err != nil {
			return nil, err
		}
	}
	if err := e.move(StakeVaultAddress, owner, record.Principal); err != nil {
		return nil, err
	}
	if err := e.state.KVDelete(state.TokenStakeKey(owner[:])); err != nil {
		return nil, err
	}
	receipt := &UnstakeReceipt{
		Owner:       owner,
		Principal:   new(big.Int).Set(record.Principal),
		Reward:      reward,
		ElapsedDays: days,
	}
	e.emit(events.TokenUnstaked{
		Owner:       owner,
		Principal:   new(big.Int).Set(receipt.Principal),
		Reward:      new(big.Int).Set(reward),
		ElapsedDays: days,
	})
	return receipt, nil
}

func (e *Engine) payFromPool(kind string, recipient [20]byte, amount *big.Int) error {
	if err := e.guardPaused(); err != nil {
		return err
	}
	if !validAmount(amount) {
		return ErrInvalidAmount
	}
	pool, err := e.balance(RewardPoolAddress)
	if err != nil {
		return err
	}
	if pool.Cmp(amount) < 0 {
		return ErrInsufficientRewardPool
	}
	if err := e.move(RewardPoolAddress, recipient, amount); err != nil {
		return err
	}
	e.emit(events.TokenRewardPaid{Kind: kind, Recipient: recipient, Amount: new(big.Int).Set(amount)})
	return nil
}

// RewardCourseCompletion pays the configured completion reward to a student
// from the reward pool. Admin only.
func (e *Engine) RewardCourseCompletion(caller, student [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !e.state.HasRole(roleAdmin, caller[:]) {
		return nil, ErrNotAuthorized
	}
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	if err := e.payFromPool(events.RewardKindCourseCompletion, student, params.CourseCompletionReward); err != nil {
		return nil, err
	}
	return new(big.Int).Set(params.CourseCompletionReward), nil
}

// RewardContribution pays the configured contribution reward from the reward
// pool. Admin only.
func (e *Engine) RewardContribution(caller, contributor [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if !e.state.HasRole(roleAdmin, caller[:]) {
		return nil, ErrNotAuthorized
	}
	params, err := e.Params()
	if err != nil {
		return nil, err
	}
	if err := e.payFromPool(events.RewardKindContribution, contributor, params.ContributionReward); err != nil {
		return nil, err
	}
	return new(big.Int).Set(params.ContributionReward), nil
}

// SetCourseCompletionReward updates the completion payout amount. Admin only.
func (e *Engine) SetCourseCompletionReward(caller [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(roleAdmin, caller[:]) {
		return ErrNotAuthorized
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	params, err := e.Params()
	if err != nil {
		return err
	}
	params.CourseCompletionReward = new(big.Int).Set(amount)
	return e.writeParams(params)
}

// SetContributionReward updates the contribution payout amount. Admin only.
func (e *Engine) SetContributionReward(caller [20]byte, amount *big.Int) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(roleAdmin, caller[:]) {
		return ErrNotAuthorized
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	params, err := e.Params()
	if err != nil {
		return err
	}
	params.ContributionReward = new(big.Int).Set(amount)
	return e.writeParams(params)
}

// Pause blocks staking and reward payouts. Admin only.
func (e *Engine) Pause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(roleAdmin, caller[:]) {
		return ErrNotAuthorized
	}
	return e.state.SetModulePaused(ModuleName, true)
}

// Unpause lifts a previous pause. Admin only.
func (e *Engine) Unpause(caller [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if !e.state.HasRole(roleAdmin, caller[:]) {
		return ErrNotAuthorized
	}
	return e.state.SetModulePaused(ModuleName, false)
}

// Paused reports whether the module pause flag is set.
func (e *Engine) Paused() bool {
	if e == nil || e.state == nil {
		return false
	}
	return e.state.ModulePaused(ModuleName)
}
