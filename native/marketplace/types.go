package marketplace

import (
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ModuleName identifies the marketplace for pause flags and routing.
const ModuleName = "marketplace"

// courseSeq names the monotonic sequence backing course IDs. The first course
// receives ID 1.
const courseSeq = "market/course"

// Course is the persisted listing record. AccruedRevenue tracks the creator
// share held in escrow until withdrawn.
type Course struct {
	ID              uint64
	Creator         [20]byte
	Price           *big.Int
	MetadataURI     string
	Active          bool
	RevenueSharePct uint8
	AccruedRevenue  *big.Int
	CreatedAt       uint64
}

// Clone returns a deep copy safe to hand to callers.
func (c *Course) Clone() *Course {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Price != nil {
		clone.Price = new(big.Int).Set(c.Price)
	}
	if c.AccruedRevenue != nil {
		clone.AccruedRevenue = new(big.Int).Set(c.AccruedRevenue)
	}
	return &clone
}

func deriveModuleAddress(label string) [20]byte {
	hash := ethcrypto.Keccak256([]byte("dqchain/module/" + label))
	var out [20]byte
	copy(out[:], hash[12:])
	return out
}

var (
	// ModuleAddress is the marketplace's own account. It is granted
	// ROLE_MINTER at genesis so purchases can be certified.
	ModuleAddress = deriveModuleAddress("marketplace")
	// EscrowVaultAddress holds creator revenue between purchase and
	// withdrawal.
	EscrowVaultAddress = deriveModuleAddress("market-escrow")
)
