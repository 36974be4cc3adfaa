package onchain

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"github.com/meowchain/go-meowchain/contracts/meowchain"
)

// DynamicChainConfig is the chain configuration read live from the on-chain
// ChainConfig contract. The Governance Safe can change every field at
// runtime. ReadChainConfig decodes whatever its reader returns, so through a
// CachedReader a changed slot is seen only once its cache entry is gone.
type DynamicChainConfig struct {
	Governance         common.Address
	GasLimit           uint64
	BlockTime          uint64
	MaxContractSize    uint64
	CalldataGasPerByte uint64
	MaxTxGas           uint64
	EagerMining        bool
}

// DynamicSignerList is the signer set read live from the on-chain
// SignerRegistry contract. Changes take effect at the next epoch boundary.
type DynamicSignerList struct {
	Governance common.Address
	Signers    []common.Address
	Threshold  uint64
}

// ReadChainConfig decodes the full ChainConfig contract. Returns nil when
// the contract is missing (slot 0 unreadable); it never fails on malformed
// data, each field simply decodes its fixed byte range.
func ReadChainConfig(reader StorageReader) *DynamicChainConfig {
	addr := meowchain.ChainConfigAddress

	governance, ok := reader.ReadStorage(addr, slotHash(meowchain.ChainConfigSlotGovernance))
	if !ok {
		return nil
	}
	// The numeric fields decode as zero when their slot is unset.
	gasLimit, _ := reader.ReadStorage(addr, slotHash(meowchain.ChainConfigSlotGasLimit))
	blockTime, _ := reader.ReadStorage(addr, slotHash(meowchain.ChainConfigSlotBlockTime))
	maxContractSize, _ := reader.ReadStorage(addr, slotHash(meowchain.ChainConfigSlotMaxContractSize))
	calldataGas, _ := reader.ReadStorage(addr, slotHash(meowchain.ChainConfigSlotCalldataGasPerByte))
	maxTxGas, _ := reader.ReadStorage(addr, slotHash(meowchain.ChainConfigSlotMaxTxGas))
	// eagerMining is false when unset, which a missing slot also means.
	eagerMining, _ := reader.ReadStorage(addr, slotHash(meowchain.ChainConfigSlotEagerMining))

	return &DynamicChainConfig{
		Governance:         decodeAddress(governance),
		GasLimit:           decodeU64(gasLimit),
		BlockTime:          decodeU64(blockTime),
		MaxContractSize:    decodeU64(maxContractSize),
		CalldataGasPerByte: decodeU64(calldataGas),
		MaxTxGas:           decodeU64(maxTxGas),
		EagerMining:        decodeBool(eagerMining),
	}
}

// ReadGasLimit reads just the block gas limit, the payload builder hot path.
func ReadGasLimit(reader StorageReader) (uint64, bool) {
	value, ok := reader.ReadStorage(meowchain.ChainConfigAddress, slotHash(meowchain.ChainConfigSlotGasLimit))
	if !ok {
		return 0, false
	}
	return decodeU64(value), true
}

// ReadBlockTime reads just the block interval in seconds.
func ReadBlockTime(reader StorageReader) (uint64, bool) {
	value, ok := reader.ReadStorage(meowchain.ChainConfigAddress, slotHash(meowchain.ChainConfigSlotBlockTime))
	if !ok {
		return 0, false
	}
	return decodeU64(value), true
}

// ReadSignerList decodes the full SignerRegistry contract: the ordered
// signer array plus the liveness threshold. Returns nil when the contract is
// missing (slot 0 unreadable); an unset length or threshold decodes as zero.
func ReadSignerList(reader StorageReader) *DynamicSignerList {
	addr := meowchain.SignerRegistryAddress

	governance, ok := reader.ReadStorage(addr, slotHash(meowchain.SignerRegistrySlotGovernance))
	if !ok {
		return nil
	}
	length, _ := reader.ReadStorage(addr, slotHash(meowchain.SignerRegistrySlotSignersLength))
	threshold, _ := reader.ReadStorage(addr, slotHash(meowchain.SignerRegistrySlotThreshold))

	count := decodeU64(length)
	base := arrayBaseSlot(meowchain.SignerRegistrySlotSignersLength)

	signers := make([]common.Address, 0, count)
	for i := uint64(0); i < count; i++ {
		if value, ok := reader.ReadStorage(addr, arrayElemSlot(base, i)); ok {
			signers = append(signers, decodeAddress(value))
		}
	}

	return &DynamicSignerList{
		Governance: decodeAddress(governance),
		Signers:    signers,
		Threshold:  decodeU64(threshold),
	}
}

// IsSignerOnChain checks membership through the registry's isSigner mapping
// without walking the array.
func IsSignerOnChain(reader StorageReader, address common.Address) bool {
	slot := mappingAddressSlot(address, meowchain.SignerRegistrySlotIsSignerMapping)
	value, ok := reader.ReadStorage(meowchain.SignerRegistryAddress, slot)
	return ok && decodeBool(value)
}

// ReadTimelockDelay reads the minimum governance execution delay in seconds.
func ReadTimelockDelay(reader StorageReader) (uint64, bool) {
	value, ok := reader.ReadStorage(meowchain.TimelockAddress, slotHash(meowchain.TimelockSlotMinDelay))
	if !ok {
		return 0, false
	}
	return decodeU64(value), true
}

// IsTimelockPaused reports whether governance execution is paused.
func IsTimelockPaused(reader StorageReader) bool {
	value, ok := reader.ReadStorage(meowchain.TimelockAddress, slotHash(meowchain.TimelockSlotPaused))
	return ok && decodeBool(value)
}

// Solidity storage-layout helpers.

func slotHash(slot int) common.Hash {
	return common.BigToHash(big.NewInt(int64(slot)))
}

// decodeU64 takes the low 8 bytes of a word, big-endian.
func decodeU64(word common.Hash) uint64 {
	return binary.BigEndian.Uint64(word[24:])
}

// decodeAddress takes the low 20 bytes of a word.
func decodeAddress(word common.Hash) common.Address {
	return common.BytesToAddress(word[12:])
}

// decodeBool treats any non-zero word as true.
func decodeBool(word common.Hash) bool {
	return word != (common.Hash{})
}

// arrayBaseSlot returns keccak256(be32(rootSlot)), the first element slot of
// a Solidity dynamic array whose length lives at rootSlot.
func arrayBaseSlot(rootSlot int) *uint256.Int {
	root := slotHash(rootSlot)
	return new(uint256.Int).SetBytes(crypto.Keccak256(root.Bytes()))
}

// arrayElemSlot returns base + i.
func arrayElemSlot(base *uint256.Int, i uint64) common.Hash {
	slot := new(uint256.Int).AddUint64(base, i)
	return common.Hash(slot.Bytes32())
}

// mappingAddressSlot returns keccak256(pad32(key) ‖ be32(rootSlot)), the
// value slot of key under a Solidity mapping rooted at rootSlot.
func mappingAddressSlot(key common.Address, rootSlot int) common.Hash {
	root := slotHash(rootSlot)
	padded := common.LeftPadBytes(key.Bytes(), 32)
	return common.BytesToHash(crypto.Keccak256(append(padded, root.Bytes()...)))
}
