package token

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Symbol is the native token every balance in this ledger is denominated in.
const Symbol = "DQT"

// Decimals mirrors the precision the original asset was issued with.
const Decimals uint8 = 18

// ModuleName labels the token module for pause flags and metrics.
const ModuleName = "token"

// StakeRecord captures a staking position. A second stake while one is active
// merges into the principal and restarts the lock clock.
type StakeRecord struct {
	Owner     [20]byte
	Principal *big.Int
	StartTime uint64
}

// Clone returns a deep copy of the stake record.
func (s *StakeRecord) Clone() *StakeRecord {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Principal != nil {
		clone.Principal = new(big.Int).Set(s.Principal)
	} else {
		clone.Principal = big.NewInt(0)
	}
	return &clone
}

// UnstakeReceipt reports the amounts released by a successful unstake.
type UnstakeReceipt struct {
	Owner       [20]byte
	Principal   *big.Int
	Reward      *big.Int
	ElapsedDays uint64
}

// Params holds the admin-tunable reward and staking configuration.
type Params struct {
	CourseCompletionReward *big.Int
	ContributionReward     *big.Int
	StakeAPRBps            uint64
	MinStakeLockSeconds    uint64
}

const (
	// DefaultStakeAPRBps is the 12% annual staking yield in basis points.
	DefaultStakeAPRBps uint64 = 1_200
	// DefaultMinStakeLockSeconds is the 30 day minimum staking period.
	DefaultMinStakeLockSeconds uint64 = 30 * 24 * 60 * 60

	secondsPerDay = 24 * 60 * 60
	daysPerYear   = 365
	bpsDenom      = 10_000
)

var oneToken = new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(Decimals)), nil)

// DefaultParams returns the parameter block applied when genesis does not
// override it: 100 DQT per course completion, 10 DQT per contribution.
func DefaultParams() *Params {
	return &Params{
		CourseCompletionReward: new(big.Int).Mul(big.NewInt(100), oneToken),
		ContributionReward:     new(big.Int).Mul(big.NewInt(10), oneToken),
		StakeAPRBps:            DefaultStakeAPRBps,
		MinStakeLockSeconds:    DefaultMinStakeLockSeconds,
	}
}

// Clone returns a deep copy of the parameter block.
func (p *Params) Clone() *Params {
	if p == nil {
		return nil
	}
	clone := *p
	if p.CourseCompletionReward != nil {
		clone.CourseCompletionReward = new(big.Int).Set(p.CourseCompletionReward)
	}
	if p.ContributionReward != nil {
		clone.ContributionReward = new(big.Int).Set(p.ContributionReward)
	}
	return &clone
}

func deriveModuleAddress(label string) [20]byte {
	var addr [20]byte
	digest := ethcrypto.Keccak256([]byte("dqchain/module/" + label))
	copy(addr[:], digest[12:])
	return addr
}

var (
	// RewardPoolAddress holds the protocol balance that funds completion,
	// contribution, and staking rewards.
	RewardPoolAddress = deriveModuleAddress("reward-pool")
	// StakeVaultAddress holds all locked staking principal so the sum of
	// account balances always equals the fixed total supply.
	StakeVaultAddress = deriveModuleAddress("stake-vault")
)
