// Package onchain reads governance state directly from contract storage.
//
// The ChainConfig and SignerRegistry system contracts are decoded without an
// EVM call: their Solidity storage layouts are fixed, so a raw slot read is
// enough. Readers come in two flavors, one over the live state database and
// one over a genesis allocation, both behind the StorageReader capability so
// the decoders and the hot cache compose with either.
package onchain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core"
)

// StorageReader reads a single word of contract storage. The second return
// is false when the contract or the slot is absent.
type StorageReader interface {
	ReadStorage(addr common.Address, slot common.Hash) (common.Hash, bool)
}

// StateGetter is the slice of the state database the live reader needs.
// *state.StateDB satisfies it.
type StateGetter interface {
	GetState(common.Address, common.Hash) common.Hash
	Exist(common.Address) bool
}

// StateReader reads storage from a live state database. A zero word is
// reported as absent: Ethereum state cannot distinguish zero from never
// written, and every populated governance slot is non-zero by construction.
type StateReader struct {
	state StateGetter
}

// NewStateReader wraps a state database.
func NewStateReader(state StateGetter) *StateReader {
	return &StateReader{state: state}
}

// ReadStorage implements StorageReader.
func (r *StateReader) ReadStorage(addr common.Address, slot common.Hash) (common.Hash, bool) {
	if !r.state.Exist(addr) {
		return common.Hash{}, false
	}
	value := r.state.GetState(addr, slot)
	if value == (common.Hash{}) {
		return common.Hash{}, false
	}
	return value, true
}

// GenesisReader reads storage from a genesis allocation, for decoding the
// governance contracts before any state database exists.
type GenesisReader struct {
	genesis *core.Genesis
}

// NewGenesisReader wraps a genesis specification.
func NewGenesisReader(genesis *core.Genesis) *GenesisReader {
	return &GenesisReader{genesis: genesis}
}

// ReadStorage implements StorageReader.
func (r *GenesisReader) ReadStorage(addr common.Address, slot common.Hash) (common.Hash, bool) {
	account, ok := r.genesis.Alloc[addr]
	if !ok || account.Storage == nil {
		return common.Hash{}, false
	}
	value, ok := account.Storage[slot]
	return value, ok
}
