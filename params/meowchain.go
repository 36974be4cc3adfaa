package params

import (
	"fmt"
	"math/big"

	ethparams "github.com/ethereum/go-ethereum/params"
)

// Meowchain protocol constants.
const (
	// DefaultChainID is the chain id used by development networks.
	DefaultChainID uint64 = 9323310

	// DefaultEpoch is the default number of blocks between signer list
	// checkpoints in the header extra-data.
	DefaultEpoch uint64 = 30000

	// DefaultPeriod is the default block interval in seconds.
	DefaultPeriod uint64 = 2

	// ExtraVanity is the fixed number of extra-data prefix bytes reserved
	// for signer vanity.
	ExtraVanity = 32

	// ExtraSeal is the fixed number of extra-data suffix bytes reserved
	// for the signer seal (r ‖ s ‖ v).
	ExtraSeal = 65

	// MinExtraLength is the smallest extra-data a production block may
	// carry: vanity plus seal.
	MinExtraLength = ExtraVanity + ExtraSeal
)

// GasLimitBoundDivisor bounds gas-limit drift between consecutive blocks.
const GasLimitBoundDivisor = ethparams.GasLimitBoundDivisor

// PoaConfig holds the proof-of-authority consensus engine configuration.
type PoaConfig struct {
	Period uint64 `json:"period"` // Number of seconds between blocks to enforce
	Epoch  uint64 `json:"epoch"`  // Epoch length to checkpoint the signer list in extra-data
}

// String implements the stringer interface, returning the consensus engine details.
func (c *PoaConfig) String() string {
	return fmt.Sprintf("poa(period: %d, epoch: %d)", c.Period, c.Epoch)
}

// Copy returns a deep copy of the config.
func (c *PoaConfig) Copy() *PoaConfig {
	cpy := *c
	return &cpy
}

// DefaultPoaConfig returns the consensus parameters used when the genesis
// does not override them.
func DefaultPoaConfig() *PoaConfig {
	return &PoaConfig{
		Period: DefaultPeriod,
		Epoch:  DefaultEpoch,
	}
}

// MeowchainChainConfig assembles the go-ethereum chain configuration for a
// Meowchain network: every hardfork through Cancun active at genesis and a
// zero terminal total difficulty, so the execution layer runs in its
// post-merge shape from block zero. Authority is proven by header seals,
// never by difficulty.
func MeowchainChainConfig(chainID uint64, poa *PoaConfig) *ethparams.ChainConfig {
	if poa == nil {
		poa = DefaultPoaConfig()
	}
	zero := uint64(0)
	return &ethparams.ChainConfig{
		ChainID:                 new(big.Int).SetUint64(chainID),
		HomesteadBlock:          common0(),
		EIP150Block:             common0(),
		EIP155Block:             common0(),
		EIP158Block:             common0(),
		ByzantiumBlock:          common0(),
		ConstantinopleBlock:     common0(),
		PetersburgBlock:         common0(),
		IstanbulBlock:           common0(),
		MuirGlacierBlock:        common0(),
		BerlinBlock:             common0(),
		LondonBlock:             common0(),
		ArrowGlacierBlock:       common0(),
		GrayGlacierBlock:        common0(),
		MergeNetsplitBlock:      common0(),
		ShanghaiTime:            &zero,
		CancunTime:              &zero,
		TerminalTotalDifficulty: big.NewInt(0),
		Clique: &ethparams.CliqueConfig{
			Period: poa.Period,
			Epoch:  poa.Epoch,
		},
	}
}

func common0() *big.Int {
	return big.NewInt(0)
}
