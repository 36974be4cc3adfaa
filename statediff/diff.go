// Package statediff models the per-block account and storage changes
// computed during execution. Diffs feed the replica-sync broadcast: a
// replica applies them to its state map instead of re-executing, then drops
// them.
package statediff

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SlotDiff is one storage slot transition.
type SlotDiff struct {
	Old common.Hash `json:"old"`
	New common.Hash `json:"new"`
}

// IsNoop reports whether the slot ended where it started.
func (d SlotDiff) IsNoop() bool {
	return d.Old == d.New
}

// AccountDiff collects every change to a single account within one block.
type AccountDiff struct {
	BalanceChanged bool     `json:"balanceChanged"`
	OldBalance     *big.Int `json:"oldBalance,omitempty"`
	NewBalance     *big.Int `json:"newBalance,omitempty"`

	NonceChanged bool   `json:"nonceChanged"`
	OldNonce     uint64 `json:"oldNonce,omitempty"`
	NewNonce     uint64 `json:"newNonce,omitempty"`

	CodeChanged bool `json:"codeChanged"`

	Storage map[common.Hash]SlotDiff `json:"storage,omitempty"`
}

// StorageChangeCount returns the number of changed slots.
func (d *AccountDiff) StorageChangeCount() int {
	return len(d.Storage)
}

// IsEmpty reports whether nothing about the account changed.
func (d *AccountDiff) IsEmpty() bool {
	return !d.BalanceChanged && !d.NonceChanged && !d.CodeChanged && len(d.Storage) == 0
}

// IsStorageOnly reports whether only storage slots changed.
func (d *AccountDiff) IsStorageOnly() bool {
	return !d.BalanceChanged && !d.NonceChanged && !d.CodeChanged && len(d.Storage) > 0
}

// Diff is the full state transition of one block.
type Diff struct {
	BlockNumber uint64      `json:"blockNumber"`
	BlockHash   common.Hash `json:"blockHash"`
	GasUsed     uint64      `json:"gasUsed"`
	TxCount     int         `json:"txCount"`

	Accounts map[common.Address]*AccountDiff `json:"accounts"`
}

// TouchedAccountCount returns the number of accounts with changes.
func (d *Diff) TouchedAccountCount() int {
	return len(d.Accounts)
}

// TotalStorageChanges returns the number of changed slots across accounts.
func (d *Diff) TotalStorageChanges() int {
	total := 0
	for _, account := range d.Accounts {
		total += len(account.Storage)
	}
	return total
}

// IsEmpty reports whether the block changed no state.
func (d *Diff) IsEmpty() bool {
	return len(d.Accounts) == 0
}

// Summary returns a one-line description for logging.
func (d *Diff) Summary() string {
	return fmt.Sprintf("block %d (%s): %d accounts, %d slots, %d txs, %d gas",
		d.BlockNumber, d.BlockHash, d.TouchedAccountCount(), d.TotalStorageChanges(), d.TxCount, d.GasUsed)
}

// AccountDiff returns the changes of one account, or nil.
func (d *Diff) AccountDiff(addr common.Address) *AccountDiff {
	return d.Accounts[addr]
}

// StorageAfter returns the post-state value of one slot, when it changed.
func (d *Diff) StorageAfter(addr common.Address, slot common.Hash) (common.Hash, bool) {
	account, ok := d.Accounts[addr]
	if !ok {
		return common.Hash{}, false
	}
	change, ok := account.Storage[slot]
	if !ok {
		return common.Hash{}, false
	}
	return change.New, true
}

// Builder accumulates changes during execution and freezes them into a Diff.
type Builder struct {
	diff *Diff
}

// NewBuilder starts a diff for the given block.
func NewBuilder(number uint64, hash common.Hash) *Builder {
	return &Builder{diff: &Diff{
		BlockNumber: number,
		BlockHash:   hash,
		Accounts:    make(map[common.Address]*AccountDiff),
	}}
}

// SetGasUsed records the block's total gas consumption.
func (b *Builder) SetGasUsed(gas uint64) {
	b.diff.GasUsed = gas
}

// SetTxCount records the number of transactions.
func (b *Builder) SetTxCount(count int) {
	b.diff.TxCount = count
}

// RecordBalanceChange notes a balance transition.
func (b *Builder) RecordBalanceChange(addr common.Address, old, updated *big.Int) {
	account := b.account(addr)
	if !account.BalanceChanged {
		account.OldBalance = new(big.Int).Set(old)
	}
	account.BalanceChanged = true
	account.NewBalance = new(big.Int).Set(updated)
}

// RecordNonceChange notes a nonce transition.
func (b *Builder) RecordNonceChange(addr common.Address, old, updated uint64) {
	account := b.account(addr)
	if !account.NonceChanged {
		account.OldNonce = old
	}
	account.NonceChanged = true
	account.NewNonce = updated
}

// RecordCodeChange notes a code deployment or self-destruct.
func (b *Builder) RecordCodeChange(addr common.Address) {
	b.account(addr).CodeChanged = true
}

// RecordStorageChange notes a slot transition. Repeated writes to the same
// slot keep the first old value and the last new value.
func (b *Builder) RecordStorageChange(addr common.Address, slot common.Hash, old, updated common.Hash) {
	account := b.account(addr)
	if account.Storage == nil {
		account.Storage = make(map[common.Hash]SlotDiff)
	}
	if prior, ok := account.Storage[slot]; ok {
		old = prior.Old
	}
	account.Storage[slot] = SlotDiff{Old: old, New: updated}
}

// Build freezes the accumulated changes, dropping no-op slot writes and
// untouched accounts.
func (b *Builder) Build() *Diff {
	for addr, account := range b.diff.Accounts {
		for slot, change := range account.Storage {
			if change.IsNoop() {
				delete(account.Storage, slot)
			}
		}
		if account.IsEmpty() {
			delete(b.diff.Accounts, addr)
		}
	}
	return b.diff
}

func (b *Builder) account(addr common.Address) *AccountDiff {
	account, ok := b.diff.Accounts[addr]
	if !ok {
		account = new(AccountDiff)
		b.diff.Accounts[addr] = account
	}
	return account
}

// Apply writes a diff's post-state into a replica storage map. Afterwards
// the map equals the diff's post-state for every changed slot.
func Apply(state map[common.Address]map[common.Hash]common.Hash, diff *Diff) {
	for addr, account := range diff.Accounts {
		if len(account.Storage) == 0 {
			continue
		}
		slots, ok := state[addr]
		if !ok {
			slots = make(map[common.Hash]common.Hash)
			state[addr] = slots
		}
		for slot, change := range account.Storage {
			if change.New == (common.Hash{}) {
				delete(slots, slot)
			} else {
				slots[slot] = change.New
			}
		}
	}
}

// VerifyAgainstPreState checks that every old value in the diff matches the
// given pre-state map, catching replicas that drifted before applying.
func VerifyAgainstPreState(diff *Diff, pre map[common.Address]map[common.Hash]common.Hash) error {
	for addr, account := range diff.Accounts {
		for slot, change := range account.Storage {
			var have common.Hash
			if slots, ok := pre[addr]; ok {
				have = slots[slot]
			}
			if have != change.Old {
				return fmt.Errorf("pre-state mismatch at %s slot %s: have %s, diff expects %s",
					addr, slot, have, change.Old)
			}
		}
	}
	return nil
}
