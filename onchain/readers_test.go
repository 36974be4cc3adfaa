package onchain

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/meowchain/go-meowchain/contracts/meowchain"
)

func devGenesis(t *testing.T) *core.Genesis {
	t.Helper()
	genesis, err := meowchain.DevGenesisConfig().Build()
	require.NoError(t, err)
	return genesis
}

func TestReadChainConfigFromGenesis(t *testing.T) {
	reader := NewGenesisReader(devGenesis(t))

	cfg := ReadChainConfig(reader)
	require.NotNil(t, cfg)

	signers := meowchain.DevSignerAddresses()
	require.Equal(t, signers[0], cfg.Governance)
	require.EqualValues(t, 30_000_000, cfg.GasLimit)
	require.EqualValues(t, 2, cfg.BlockTime)
	require.EqualValues(t, 24_576, cfg.MaxContractSize)
	require.EqualValues(t, 16, cfg.CalldataGasPerByte)
	require.EqualValues(t, 30_000_000, cfg.MaxTxGas)
	require.False(t, cfg.EagerMining)
}

func TestReadChainConfigMissingContract(t *testing.T) {
	genesis := devGenesis(t)
	delete(genesis.Alloc, meowchain.ChainConfigAddress)

	require.Nil(t, ReadChainConfig(NewGenesisReader(genesis)))
}

func TestReadGasLimitHotPath(t *testing.T) {
	reader := NewGenesisReader(devGenesis(t))

	gasLimit, ok := ReadGasLimit(reader)
	require.True(t, ok)
	require.EqualValues(t, 30_000_000, gasLimit)

	blockTime, ok := ReadBlockTime(reader)
	require.True(t, ok)
	require.EqualValues(t, 2, blockTime)
}

func TestReadSignerListFromGenesis(t *testing.T) {
	reader := NewGenesisReader(devGenesis(t))

	list := ReadSignerList(reader)
	require.NotNil(t, list)
	require.Equal(t, meowchain.DevSignerAddresses(), list.Signers, "signer order must match the registry array")
	require.EqualValues(t, 1, list.Threshold)
}

func TestIsSignerOnChain(t *testing.T) {
	reader := NewGenesisReader(devGenesis(t))

	for _, addr := range meowchain.DevSignerAddresses() {
		require.True(t, IsSignerOnChain(reader, addr), "genesis signer %s missing from mapping", addr)
	}
	require.False(t, IsSignerOnChain(reader, common.HexToAddress("0xdead")))
}

func TestReadTimelock(t *testing.T) {
	reader := NewGenesisReader(devGenesis(t))

	delay, ok := ReadTimelockDelay(reader)
	require.False(t, ok, "zero delay reads as absent")
	require.Zero(t, delay)
	require.False(t, IsTimelockPaused(reader))
}

func TestReadersComposeWithCache(t *testing.T) {
	cache := NewHotStateCache(64)
	reader := NewCachedReader(NewGenesisReader(devGenesis(t)), cache)

	first := ReadSignerList(reader)
	require.NotNil(t, first)
	missesAfterFirst := cache.Stats().Misses

	second := ReadSignerList(reader)
	require.Equal(t, first, second)
	require.Equal(t, missesAfterFirst, cache.Stats().Misses, "repeated decode must be served from the cache")

	// Per-address invalidation forces a re-read of the registry only.
	cache.InvalidateAddress(meowchain.SignerRegistryAddress)
	third := ReadSignerList(reader)
	require.Equal(t, first, third)
	require.Greater(t, cache.Stats().Misses, missesAfterFirst)
}

func TestDecodeHelpers(t *testing.T) {
	word := common.HexToHash("0x000000000000000000000000000000000000000000000000000000000000002a")
	require.EqualValues(t, 42, decodeU64(word))

	addr := common.HexToAddress("0x00000000000000000000000000000000C04F1600")
	require.Equal(t, addr, decodeAddress(common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))))

	require.False(t, decodeBool(common.Hash{}))
	require.True(t, decodeBool(common.HexToHash("0x01")))
	require.True(t, decodeBool(common.HexToHash("0x8000000000000000000000000000000000000000000000000000000000000000")))
}

func TestSoliditySlotArithmetic(t *testing.T) {
	// signers[i] lives at keccak256(be32(1)) + i.
	root := common.BigToHash(common.Big1)
	base := arrayBaseSlot(1)
	require.Equal(t, common.BytesToHash(crypto.Keccak256(root.Bytes())), arrayElemSlot(base, 0))

	// isSigner[addr] lives at keccak256(pad32(addr) ‖ be32(2)).
	addr := common.HexToAddress("0x1234")
	manual := crypto.Keccak256(
		append(common.LeftPadBytes(addr.Bytes(), 32), common.BigToHash(common.Big2).Bytes()...))
	require.Equal(t, common.BytesToHash(manual), mappingAddressSlot(addr, 2))
}
