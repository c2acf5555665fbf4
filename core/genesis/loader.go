package genesis

import (
	"bytes"
	"fmt"
	"math/big"
	"sort"

	"dqchain/core/state"
	"dqchain/native/marketplace"
	"dqchain/native/token"
)

// Apply seeds a fresh state manager from the spec. Iteration orders are fixed
// so the resulting state root is deterministic across nodes.
func Apply(spec *Spec, manager *state.Manager) error {
	if spec == nil {
		return fmt.Errorf("genesis spec must not be nil")
	}
	if manager == nil {
		return fmt.Errorf("state manager must not be nil")
	}

	if err := manager.RegisterToken(spec.Token.Symbol, spec.Token.Name, spec.Token.Decimals); err != nil {
		return fmt.Errorf("register token: %w", err)
	}
	if err := manager.SetTokenSupply(token.Symbol, spec.Token.totalSupplyAmt); err != nil {
		return fmt.Errorf("set total supply: %w", err)
	}

	// 1) Allocations, sorted by address bytes.
	accounts := make([][20]byte, 0, len(spec.allocAmts))
	for account := range spec.allocAmts {
		accounts = append(accounts, account)
	}
	sort.Slice(accounts, func(i, j int) bool {
		return bytes.Compare(accounts[i][:], accounts[j][:]) < 0
	})
	for _, account := range accounts {
		amount := new(big.Int).Set(spec.allocAmts[account])
		if err := manager.SetBalance(account[:], token.Symbol, amount); err != nil {
			return fmt.Errorf("alloc %x: %w", account, err)
		}
	}

	// 2) Reward pool pre-funding.
	if spec.rewardPoolAmt.Sign() > 0 {
		if err := manager.SetBalance(token.RewardPoolAddress[:], token.Symbol, spec.rewardPoolAmt); err != nil {
			return fmt.Errorf("fund reward pool: %w", err)
		}
	}

	// 3) Roles, sorted by role name then member address.
	roleNames := make([]string, 0, len(spec.Roles))
	for role := range spec.Roles {
		roleNames = append(roleNames, role)
	}
	sort.Strings(roleNames)
	for _, role := range roleNames {
		members := append([]string(nil), spec.Roles[role]...)
		sort.Strings(members)
		for _, addrStr := range members {
			account, err := parseAccount(fmt.Sprintf("roles[%q]", role), addrStr)
			if err != nil {
				return err
			}
			if err := manager.SetRole(role, account[:]); err != nil {
				return fmt.Errorf("roles[%q]: %w", role, err)
			}
		}
	}
	// The marketplace mints certificates under its own module identity.
	if err := manager.SetRole("ROLE_MINTER", marketplace.ModuleAddress[:]); err != nil {
		return fmt.Errorf("grant marketplace minter: %w", err)
	}

	// 4) Reward parameters.
	params, err := spec.TokenParams()
	if err != nil {
		return err
	}
	if err := manager.KVPut(state.TokenParamsKey(), params); err != nil {
		return fmt.Errorf("write token params: %w", err)
	}
	return nil
}
