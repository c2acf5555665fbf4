package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"dqchain/core"
	"dqchain/core/types"
	"dqchain/crypto"
	"dqchain/native/certificate"
	"dqchain/native/marketplace"
	"dqchain/native/token"
)

// decodeParams unmarshals the single object parameter every method accepts.
func decodeParams(raw []json.RawMessage, out interface{}) error {
	if len(raw) == 0 {
		return fmt.Errorf("params object required")
	}
	if len(raw) > 1 {
		return fmt.Errorf("expected a single params object")
	}
	if err := json.Unmarshal(raw[0], out); err != nil {
		return fmt.Errorf("invalid params: %w", err)
	}
	return nil
}

func parseAddress(field, value string) (crypto.Address, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return crypto.Address{}, fmt.Errorf("%s is required", field)
	}
	addr, err := crypto.DecodeAddress(trimmed)
	if err != nil {
		return crypto.Address{}, fmt.Errorf("%s: %w", field, err)
	}
	if addr.Prefix() != crypto.DQPrefix {
		return crypto.Address{}, fmt.Errorf("%s: unsupported address prefix %q", field, addr.Prefix())
	}
	return addr, nil
}

func parseAmount(field, value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, fmt.Errorf("%s is required", field)
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%s: invalid amount %q", field, value)
	}
	return amount, nil
}

func bech(raw [20]byte) string {
	return crypto.MustNewAddress(crypto.DQPrefix, raw[:]).String()
}

// --- Response shapes ---

type stakeResult struct {
	Owner     string `json:"owner"`
	Principal string `json:"principal"`
	StartTime uint64 `json:"startTime"`
}

func formatStake(record *token.StakeRecord) *stakeResult {
	if record == nil {
		return nil
	}
	return &stakeResult{
		Owner:     bech(record.Owner),
		Principal: record.Principal.String(),
		StartTime: record.StartTime,
	}
}

type unstakeResult struct {
	Owner       string `json:"owner"`
	Principal   string `json:"principal"`
	Reward      string `json:"reward"`
	ElapsedDays uint64 `json:"elapsedDays"`
}

func formatUnstake(receipt *token.UnstakeReceipt) *unstakeResult {
	if receipt == nil {
		return nil
	}
	return &unstakeResult{
		Owner:       bech(receipt.Owner),
		Principal:   receipt.Principal.String(),
		Reward:      receipt.Reward.String(),
		ElapsedDays: receipt.ElapsedDays,
	}
}

type paramsResult struct {
	CourseCompletionReward string `json:"courseCompletionReward"`
	ContributionReward     string `json:"contributionReward"`
	StakeAPRBps            uint64 `json:"stakeAprBps"`
	MinStakeLockSeconds    uint64 `json:"minStakeLockSeconds"`
}

func formatParams(params *token.Params) *paramsResult {
	if params == nil {
		return nil
	}
	return &paramsResult{
		CourseCompletionReward: params.CourseCompletionReward.String(),
		ContributionReward:     params.ContributionReward.String(),
		StakeAPRBps:            params.StakeAPRBps,
		MinStakeLockSeconds:    params.MinStakeLockSeconds,
	}
}

type certificateResult struct {
	TokenID     uint64 `json:"tokenId"`
	Student     string `json:"student"`
	CourseID    uint64 `json:"courseId"`
	CourseName  string `json:"courseName"`
	Score       uint8  `json:"score"`
	MetadataURI string `json:"metadataURI"`
	IssuedAt    uint64 `json:"issuedAt"`
}

func formatCertificate(cert *certificate.Certificate) *certificateResult {
	if cert == nil {
		return nil
	}
	return &certificateResult{
		TokenID:     cert.TokenID,
		Student:     bech(cert.Student),
		CourseID:    cert.CourseID,
		CourseName:  cert.CourseName,
		Score:       cert.Score,
		MetadataURI: cert.MetadataURI,
		IssuedAt:    cert.IssuedAt,
	}
}

type courseResult struct {
	ID              uint64 `json:"id"`
	Creator         string `json:"creator"`
	Price           string `json:"price"`
	MetadataURI     string `json:"metadataURI"`
	Active          bool   `json:"active"`
	RevenueSharePct uint8  `json:"revenueSharePct"`
	AccruedRevenue  string `json:"accruedRevenue"`
	CreatedAt       uint64 `json:"createdAt"`
}

func formatCourse(course *marketplace.Course) *courseResult {
	if course == nil {
		return nil
	}
	return &courseResult{
		ID:              course.ID,
		Creator:         bech(course.Creator),
		Price:           course.Price.String(),
		MetadataURI:     course.MetadataURI,
		Active:          course.Active,
		RevenueSharePct: course.RevenueSharePct,
		AccruedRevenue:  course.AccruedRevenue.String(),
		CreatedAt:       course.CreatedAt,
	}
}

type supplyInfoResult struct {
	TotalSupply  string `json:"totalSupply"`
	RewardPool   string `json:"rewardPool"`
	StakeVault   string `json:"stakeVault"`
	MarketEscrow string `json:"marketEscrow"`
}

func formatSupplyInfo(info *core.SupplyInfo) *supplyInfoResult {
	if info == nil {
		return nil
	}
	return &supplyInfoResult{
		TotalSupply:  info.TotalSupply.String(),
		RewardPool:   info.RewardPool.String(),
		StakeVault:   info.StakeVault.String(),
		MarketEscrow: info.MarketEscrow.String(),
	}
}

type eventResult struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

func formatEvents(events []types.Event) []eventResult {
	out := make([]eventResult, 0, len(events))
	for _, evt := range events {
		out = append(out, eventResult{Type: evt.Type, Attributes: evt.Attributes})
	}
	return out
}
