package events

import (
	"math/big"

	"dqchain/core/types"
	"dqchain/crypto"
)

const (
	// TypeTokenTransferred is emitted for native balance movements.
	TypeTokenTransferred = "token.transferred"
	// TypeTokenStaked captures principal locked into the staking sub-ledger.
	TypeTokenStaked = "token.staked"
	// TypeTokenUnstaked captures principal plus accrued reward returned to a staker.
	TypeTokenUnstaked = "token.unstaked"
	// TypeTokenRewardPaid is emitted for completion and contribution payouts.
	TypeTokenRewardPaid = "token.reward.paid"
	// TypeTokenPoolFunded is emitted when tokens move into the reward pool.
	TypeTokenPoolFunded = "token.pool.funded"

	// RewardKindCourseCompletion identifies course-completion payouts.
	RewardKindCourseCompletion = "courseCompletion"
	// RewardKindContribution identifies contribution payouts.
	RewardKindContribution = "contribution"
)

func bech(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.DQPrefix, addr[:]).String()
}

// TokenTransferred captures a balance movement between two accounts.
type TokenTransferred struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (TokenTransferred) EventType() string { return TypeTokenTransferred }

func (e TokenTransferred) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenTransferred,
		Attributes: map[string]string{
			"from":   bech(e.From),
			"to":     bech(e.To),
			"amount": formatAmount(e.Amount),
		},
	}
}

// TokenStaked captures a stake deposit and the resulting principal.
type TokenStaked struct {
	Owner     [20]byte
	Amount    *big.Int
	Principal *big.Int
	StartTime uint64
}

func (TokenStaked) EventType() string { return TypeTokenStaked }

func (e TokenStaked) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenStaked,
		Attributes: map[string]string{
			"owner":     bech(e.Owner),
			"amount":    formatAmount(e.Amount),
			"principal": formatAmount(e.Principal),
			"startTime": uintToString(e.StartTime),
		},
	}
}

// TokenUnstaked captures the release of a stake with its accrued reward.
type TokenUnstaked struct {
	Owner       [20]byte
	Principal   *big.Int
	Reward      *big.Int
	ElapsedDays uint64
}

func (TokenUnstaked) EventType() string { return TypeTokenUnstaked }

func (e TokenUnstaked) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenUnstaked,
		Attributes: map[string]string{
			"owner":       bech(e.Owner),
			"principal":   formatAmount(e.Principal),
			"reward":      formatAmount(e.Reward),
			"elapsedDays": uintToString(e.ElapsedDays),
		},
	}
}

// TokenRewardPaid captures a reward-pool payout to a recipient.
type TokenRewardPaid struct {
	Kind      string
	Recipient [20]byte
	Amount    *big.Int
}

func (TokenRewardPaid) EventType() string { return TypeTokenRewardPaid }

func (e TokenRewardPaid) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenRewardPaid,
		Attributes: map[string]string{
			"kind":      e.Kind,
			"recipient": bech(e.Recipient),
			"amount":    formatAmount(e.Amount),
		},
	}
}

// TokenPoolFunded captures a deposit into the protocol reward pool.
type TokenPoolFunded struct {
	From   [20]byte
	Amount *big.Int
	Pool   *big.Int
}

func (TokenPoolFunded) EventType() string { return TypeTokenPoolFunded }

func (e TokenPoolFunded) Event() *types.Event {
	return &types.Event{
		Type: TypeTokenPoolFunded,
		Attributes: map[string]string{
			"from":   bech(e.From),
			"amount": formatAmount(e.Amount),
			"pool":   formatAmount(e.Pool),
		},
	}
}
