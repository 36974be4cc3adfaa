package meowchain

import "github.com/ethereum/go-ethereum/common"

// Deterministic, pre-assigned addresses of the system contracts. They are
// allocated at genesis and never deployed through transactions, so every
// network places them at the same location.
var (
	// ChainConfigAddress holds the governance-controlled chain parameters
	// (gas limit, block time, tx limits).
	ChainConfigAddress = common.HexToAddress("0x00000000000000000000000000000000C04F1600")

	// SignerRegistryAddress holds the authorized signer list consulted at
	// every epoch boundary.
	SignerRegistryAddress = common.HexToAddress("0x000000000000000000000000000000005164EB00")

	// TreasuryAddress accumulates protocol fees.
	TreasuryAddress = common.HexToAddress("0x0000000000000000000000000000000007EA5B00")

	// TimelockAddress enforces a delay on governance operations.
	TimelockAddress = common.HexToAddress("0x00000000000000000000000000000000714E4C00")

	// GovernanceSafeAddress is the multisig holding write access to the
	// governance contracts. Reads require no authority.
	GovernanceSafeAddress = common.HexToAddress("0x000000000000000000000000000000006F5AFE00")

	// MinerProxyAddress is the block coinbase and collects transaction fees
	// behind an EIP-1967 proxy so the distribution logic can be upgraded
	// without touching consensus.
	MinerProxyAddress = common.HexToAddress("0x0000000000000000000000000000000000001967")
)

// EIP1967AdminSlot is the admin slot of the miner reward proxy.
var EIP1967AdminSlot = common.HexToHash("0xb53127684a568b3173ae13b9f8a6016e243e63b6e8ee1178d6a717850b5d6103")

// ChainConfig contract storage layout. Matches the Solidity source compiled
// into the genesis allocation.
const (
	ChainConfigSlotGovernance = iota
	ChainConfigSlotGasLimit
	ChainConfigSlotBlockTime
	ChainConfigSlotMaxContractSize
	ChainConfigSlotCalldataGasPerByte
	ChainConfigSlotMaxTxGas
	ChainConfigSlotEagerMining
)

// SignerRegistry contract storage layout.
const (
	SignerRegistrySlotGovernance = iota
	SignerRegistrySlotSignersLength
	SignerRegistrySlotIsSignerMapping
	SignerRegistrySlotThreshold
)

// Timelock contract storage layout.
const (
	TimelockSlotMinDelay = iota
	TimelockSlotProposer
	TimelockSlotExecutor
	TimelockSlotAdmin
	TimelockSlotPaused
)
