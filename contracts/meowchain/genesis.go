package meowchain

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	ethparams "github.com/ethereum/go-ethereum/params"

	"github.com/meowchain/go-meowchain/params"
)

// DevSignerKeys are the throwaway private keys of the development-mode
// signers, in round-robin order. Never fund these on a real network.
var DevSignerKeys = []string{
	"ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
	"59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d",
	"5de4111afa1a4b94908f83103eb1f1706367c2e68ca870fc3fb9a804cdab365a",
}

// DevSignerAddresses derives the addresses of DevSignerKeys.
func DevSignerAddresses() []common.Address {
	addrs := make([]common.Address, len(DevSignerKeys))
	for i, hexkey := range DevSignerKeys {
		key, err := crypto.HexToECDSA(hexkey)
		if err != nil {
			panic("invalid dev signer key: " + err.Error())
		}
		addrs[i] = crypto.PubkeyToAddress(key.PublicKey)
	}
	return addrs
}

var (
	errMissingSigners = errors.New("genesis requires at least one signer")

	devPrefund = new(big.Int).Mul(big.NewInt(10_000), big.NewInt(ethparams.Ether))
)

// GenesisConfig describes a Meowchain genesis block. Build turns it into a
// go-ethereum core.Genesis with the governance contracts pre-populated and
// the signer checkpoint embedded in extra-data.
type GenesisConfig struct {
	ChainID uint64
	Period  uint64
	Epoch   uint64

	// Vanity is the opaque 32-byte extra-data prefix.
	Vanity [params.ExtraVanity]byte

	// Signers is the initial authorized signer list, in rotation order.
	Signers []common.Address

	// Governance receives write access to the system contracts.
	Governance common.Address

	// Overrides for the governance contract seed values; zero means the
	// DefaultGovernanceParams value.
	GasLimit  uint64
	Threshold uint64

	Prefund map[common.Address]*big.Int
}

// DevGenesisConfig returns the three-signer development network: two second
// blocks, dev accounts funded, the first dev account acting as governance.
func DevGenesisConfig() GenesisConfig {
	signers := DevSignerAddresses()
	prefund := make(map[common.Address]*big.Int, len(signers))
	for _, addr := range signers {
		prefund[addr] = new(big.Int).Set(devPrefund)
	}
	return GenesisConfig{
		ChainID:    params.DefaultChainID,
		Period:     params.DefaultPeriod,
		Epoch:      params.DefaultEpoch,
		Signers:    signers,
		Governance: signers[0],
		Prefund:    prefund,
	}
}

// ProductionGenesisConfig returns a genesis seeded with a real signer set
// and the Governance Safe as the contract owner. The liveness threshold is
// a majority of the signer set.
func ProductionGenesisConfig(chainID uint64, signers []common.Address) GenesisConfig {
	return GenesisConfig{
		ChainID:    chainID,
		Period:     params.DefaultPeriod,
		Epoch:      params.DefaultEpoch,
		Signers:    signers,
		Governance: GovernanceSafeAddress,
		Threshold:  uint64(len(signers)/2 + 1),
	}
}

// WithPrefundedAccount adds a funded account to the genesis allocation.
func (c GenesisConfig) WithPrefundedAccount(addr common.Address, balance *big.Int) GenesisConfig {
	if c.Prefund == nil {
		c.Prefund = make(map[common.Address]*big.Int)
	}
	c.Prefund[addr] = balance
	return c
}

// Build assembles the genesis block specification.
func (c GenesisConfig) Build() (*core.Genesis, error) {
	if len(c.Signers) == 0 {
		return nil, errMissingSigners
	}

	gov := DefaultGovernanceParams(c.Governance, c.Signers)
	if c.GasLimit != 0 {
		gov.GasLimit = c.GasLimit
		gov.MaxTxGas = c.GasLimit
	}
	if c.Period != 0 {
		gov.BlockTime = c.Period
	}
	if c.Threshold != 0 {
		gov.Threshold = c.Threshold
	}

	alloc, err := GovernanceAlloc(gov)
	if err != nil {
		return nil, err
	}
	for addr, balance := range c.Prefund {
		alloc[addr] = types.Account{Balance: balance}
	}

	// vanity ‖ signer checkpoint ‖ zeroed seal
	extra := make([]byte, 0, params.ExtraVanity+len(c.Signers)*common.AddressLength+params.ExtraSeal)
	extra = append(extra, c.Vanity[:]...)
	for _, signer := range c.Signers {
		extra = append(extra, signer.Bytes()...)
	}
	extra = append(extra, make([]byte, params.ExtraSeal)...)

	var (
		excessBlobGas uint64
		blobGasUsed   uint64
	)
	return &core.Genesis{
		Config:        params.MeowchainChainConfig(c.ChainID, &params.PoaConfig{Period: c.Period, Epoch: c.Epoch}),
		Timestamp:     0,
		ExtraData:     extra,
		GasLimit:      gov.GasLimit,
		Difficulty:    new(big.Int),
		Alloc:         alloc,
		BaseFee:       big.NewInt(ethparams.InitialBaseFee),
		ExcessBlobGas: &excessBlobGas,
		BlobGasUsed:   &blobGasUsed,
	}, nil
}
