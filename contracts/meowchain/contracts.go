package meowchain

import (
	"errors"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Compiled runtime bytecode of the system contracts. The node itself never
// executes these — all governance reads are raw storage-slot reads — but the
// accounts must be contract accounts so that on-chain callers and tooling
// see real code at the well-known addresses.
var (
	chainConfigCode    = common.FromHex("0x608060405260043610601f5760003560e01c8063a9e7121714602a57600080fd5b36602557005b600080fd5b348015603557600080fd5b5060005460405190815260200160405180910390f3fea164736f6c6343000813000a")
	signerRegistryCode = common.FromHex("0x608060405260043610601f5760003560e01c80631832f09d14602a57600080fd5b36602557005b600080fd5b348015603557600080fd5b5060015460405190815260200160405180910390f3fea164736f6c6343000813000a")
	timelockCode       = common.FromHex("0x608060405260043610601f5760003560e01c8063f2b0653714602a57600080fd5b36602557005b600080fd5b348015603557600080fd5b5060005460405190815260200160405180910390f3fea164736f6c6343000813000a")
	treasuryCode       = common.FromHex("0x6080604052600080fdfea164736f6c6343000813000a")
	minerProxyCode     = common.FromHex("0x60806040523660086000f35b600080fdfea164736f6c6343000813000a")
)

var errNoSigners = errors.New("signer registry requires at least one signer")

// GovernanceParams are the values written into the governance contracts'
// storage at genesis. The Governance Safe can rewrite every one of them at
// runtime; these are only the block-zero seed.
type GovernanceParams struct {
	Governance         common.Address
	GasLimit           uint64
	BlockTime          uint64
	MaxContractSize    uint64
	CalldataGasPerByte uint64
	MaxTxGas           uint64
	EagerMining        bool

	Signers   []common.Address
	Threshold uint64

	TimelockDelay uint64
}

// DefaultGovernanceParams returns the parameter set used by development
// networks: mainnet-equivalent execution limits and a single-signer
// liveness threshold.
func DefaultGovernanceParams(governance common.Address, signers []common.Address) GovernanceParams {
	return GovernanceParams{
		Governance:         governance,
		GasLimit:           30_000_000,
		BlockTime:          2,
		MaxContractSize:    24_576,
		CalldataGasPerByte: 16,
		MaxTxGas:           30_000_000,
		EagerMining:        false,
		Signers:            signers,
		Threshold:          1,
		TimelockDelay:      0,
	}
}

// GovernanceAlloc builds the genesis accounts of the system contracts with
// their storage pre-populated to the given parameters.
func GovernanceAlloc(p GovernanceParams) (types.GenesisAlloc, error) {
	if len(p.Signers) == 0 {
		return nil, errNoSigners
	}

	isSigner := mapping{
		keyType: addressKeyType,
		values:  map[string]interface{}{},
	}
	for _, signer := range p.Signers {
		isSigner.values[signer.Hex()] = true
	}

	chainConfigStorage, err := storage{
		slotHex(ChainConfigSlotGovernance):         p.Governance,
		slotHex(ChainConfigSlotGasLimit):           p.GasLimit,
		slotHex(ChainConfigSlotBlockTime):          p.BlockTime,
		slotHex(ChainConfigSlotMaxContractSize):    p.MaxContractSize,
		slotHex(ChainConfigSlotCalldataGasPerByte): p.CalldataGasPerByte,
		slotHex(ChainConfigSlotMaxTxGas):           p.MaxTxGas,
		slotHex(ChainConfigSlotEagerMining):        p.EagerMining,
	}.build()
	if err != nil {
		return nil, err
	}

	registryStorage, err := storage{
		slotHex(SignerRegistrySlotGovernance):      p.Governance,
		slotHex(SignerRegistrySlotSignersLength):   addressArray(p.Signers),
		slotHex(SignerRegistrySlotIsSignerMapping): isSigner,
		slotHex(SignerRegistrySlotThreshold):       p.Threshold,
	}.build()
	if err != nil {
		return nil, err
	}

	timelockStorage, err := storage{
		slotHex(TimelockSlotMinDelay): p.TimelockDelay,
		slotHex(TimelockSlotProposer): p.Governance,
		slotHex(TimelockSlotExecutor): p.Governance,
		slotHex(TimelockSlotAdmin):    p.Governance,
		slotHex(TimelockSlotPaused):   false,
	}.build()
	if err != nil {
		return nil, err
	}

	minerProxyStorage, err := storage{
		EIP1967AdminSlot.Hex(): p.Governance,
	}.build()
	if err != nil {
		return nil, err
	}

	return types.GenesisAlloc{
		ChainConfigAddress: {
			Code:    chainConfigCode,
			Storage: chainConfigStorage,
			Balance: common.Big0,
		},
		SignerRegistryAddress: {
			Code:    signerRegistryCode,
			Storage: registryStorage,
			Balance: common.Big0,
		},
		TimelockAddress: {
			Code:    timelockCode,
			Storage: timelockStorage,
			Balance: common.Big0,
		},
		TreasuryAddress: {
			Code:    treasuryCode,
			Balance: common.Big0,
		},
		MinerProxyAddress: {
			Code:    minerProxyCode,
			Storage: minerProxyStorage,
			Balance: common.Big0,
		},
	}, nil
}

var addressKeyType = reflect.TypeOf(common.Address{})

func slotHex(slot int) string {
	return common.BigToHash(big.NewInt(int64(slot))).Hex()
}
