package token

import "errors"

var (
	// ErrNilState is returned when the engine is used before wiring state.
	ErrNilState = errors.New("token: state not configured")
	// ErrInvalidAmount rejects nil, zero, or negative amounts.
	ErrInvalidAmount = errors.New("token: amount must be positive")
	// ErrInsufficientBalance is returned when a debit exceeds the balance.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientRewardPool is returned when the reward pool cannot cover
	// a payout. Nothing is debited when this fires.
	ErrInsufficientRewardPool = errors.New("token: insufficient reward pool")
	// ErrNoActiveStake is returned when unstaking without a stake record.
	ErrNoActiveStake = errors.New("token: no active stake")
	// ErrLockPeriodNotMet is returned when unstaking before the minimum
	// staking period has elapsed.
	ErrLockPeriodNotMet = errors.New("token: minimum staking period not met")
	// ErrNotAuthorized is returned when the caller lacks the required role.
	ErrNotAuthorized = errors.New("token: caller not authorized")
)
