package genesis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"dqchain/crypto"
	"dqchain/native/token"
)

// Spec is the JSON document that seeds a fresh ledger: token metadata, the
// fixed supply and its initial distribution, role grants and the reward
// parameter block. The ledger mints exactly once, here.
type Spec struct {
	GenesisTime string              `json:"genesisTime"`
	Token       TokenSpec           `json:"token"`
	Alloc       map[string]string   `json:"alloc"`      // bech32 addr -> amount
	RewardPool  string              `json:"rewardPool"` // pre-funded pool amount
	Roles       map[string][]string `json:"roles"`      // role -> []bech32 addr
	Params      *ParamsSpec         `json:"params,omitempty"`

	genesisTimestamp time.Time
	rewardPoolAmt    *big.Int
	allocAmts        map[[20]byte]*big.Int
}

// TokenSpec describes the single native token.
type TokenSpec struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Decimals    uint8  `json:"decimals"`
	TotalSupply string `json:"totalSupply"`

	totalSupplyAmt *big.Int
}

// ParamsSpec overrides the default reward/staking parameters.
type ParamsSpec struct {
	CourseCompletionReward string  `json:"courseCompletionReward,omitempty"`
	ContributionReward     string  `json:"contributionReward,omitempty"`
	StakeAPRBps            *uint64 `json:"stakeAprBps,omitempty"`
	MinStakeLockSeconds    *uint64 `json:"minStakeLockSeconds,omitempty"`
}

// LoadSpec reads and validates a genesis spec from disk.
func LoadSpec(path string) (*Spec, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("genesis spec path must be provided")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis spec %q: %w", path, err)
	}
	spec, err := ParseSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("genesis spec %q: %w", path, err)
	}
	return spec, nil
}

// ParseSpec decodes and validates a genesis spec from raw JSON. Unknown fields
// are rejected so typos fail loudly instead of silently misconfiguring.
func ParseSpec(raw []byte) (*Spec, error) {
	var spec Spec
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := spec.validate(); err != nil {
		return nil, err
	}
	return &spec, nil
}

// GenesisTimestamp returns the parsed genesis time.
func (s *Spec) GenesisTimestamp() time.Time { return s.genesisTimestamp }

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("%s: amount must not be negative", field)
	}
	return amount, nil
}

func parseAccount(field, addrStr string) ([20]byte, error) {
	var out [20]byte
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(addrStr))
	if err != nil {
		return out, fmt.Errorf("%s: %w", field, err)
	}
	if decoded.Prefix() != crypto.DQPrefix {
		return out, fmt.Errorf("%s: unsupported address prefix %q", field, decoded.Prefix())
	}
	copy(out[:], decoded.Bytes())
	return out, nil
}

func (s *Spec) validate() error {
	parsedTime, err := time.Parse(time.RFC3339, strings.TrimSpace(s.GenesisTime))
	if err != nil {
		return fmt.Errorf("genesisTime: %w", err)
	}
	s.genesisTimestamp = parsedTime

	symbol := strings.ToUpper(strings.TrimSpace(s.Token.Symbol))
	if symbol == "" {
		return fmt.Errorf("token.symbol must not be empty")
	}
	if symbol != token.Symbol {
		return fmt.Errorf("token.symbol: unsupported token %q", symbol)
	}
	if strings.TrimSpace(s.Token.Name) == "" {
		return fmt.Errorf("token.name must not be empty")
	}
	supply, err := parseAmount("token.totalSupply", s.Token.TotalSupply)
	if err != nil {
		return err
	}
	if supply.Sign() <= 0 {
		return fmt.Errorf("token.totalSupply must be positive")
	}
	s.Token.totalSupplyAmt = supply

	pool, err := parseAmount("rewardPool", s.RewardPool)
	if err != nil {
		return err
	}
	s.rewardPoolAmt = pool

	s.allocAmts = make(map[[20]byte]*big.Int, len(s.Alloc))
	distributed := new(big.Int).Set(pool)
	for addrStr, amountStr := range s.Alloc {
		account, err := parseAccount(fmt.Sprintf("alloc[%q]", addrStr), addrStr)
		if err != nil {
			return err
		}
		amount, err := parseAmount(fmt.Sprintf("alloc[%q]", addrStr), amountStr)
		if err != nil {
			return err
		}
		if _, exists := s.allocAmts[account]; exists {
			return fmt.Errorf("alloc[%q]: duplicate account", addrStr)
		}
		s.allocAmts[account] = amount
		distributed.Add(distributed, amount)
	}
	// The fixed supply must be fully accounted for: every token sits in an
	// allocation or the reward pool from block zero.
	if distributed.Cmp(supply) != 0 {
		return fmt.Errorf("alloc + rewardPool (%s) must equal token.totalSupply (%s)", distributed, supply)
	}

	for role, members := range s.Roles {
		if strings.TrimSpace(role) == "" {
			return fmt.Errorf("roles: role name must not be empty")
		}
		for _, addrStr := range members {
			if _, err := parseAccount(fmt.Sprintf("roles[%q]", role), addrStr); err != nil {
				return err
			}
		}
	}

	if s.Params != nil {
		if _, err := parseAmount("params.courseCompletionReward", s.Params.CourseCompletionReward); err != nil {
			return err
		}
		if _, err := parseAmount("params.contributionReward", s.Params.ContributionReward); err != nil {
			return err
		}
	}
	return nil
}

// TokenParams resolves the reward/staking parameters, starting from the
// defaults and applying any overrides from the spec.
func (s *Spec) TokenParams() (*token.Params, error) {
	params := token.DefaultParams()
	if s.Params == nil {
		return params, nil
	}
	if strings.TrimSpace(s.Params.CourseCompletionReward) != "" {
		amount, err := parseAmount("params.courseCompletionReward", s.Params.CourseCompletionReward)
		if err != nil {
			return nil, err
		}
		params.CourseCompletionReward = amount
	}
	if strings.TrimSpace(s.Params.ContributionReward) != "" {
		amount, err := parseAmount("params.contributionReward", s.Params.ContributionReward)
		if err != nil {
			return nil, err
		}
		params.ContributionReward = amount
	}
	if s.Params.StakeAPRBps != nil {
		params.StakeAPRBps = *s.Params.StakeAPRBps
	}
	if s.Params.MinStakeLockSeconds != nil {
		params.MinStakeLockSeconds = *s.Params.MinStakeLockSeconds
	}
	return params, nil
}
