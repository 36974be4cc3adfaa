// Package signer holds block-sealing keys in memory and signs seal hashes
// with them.
package signer

import (
	"bytes"
	"crypto/ecdsa"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	// ErrNoSignerForAddress is returned when signing is requested for an
	// address whose key is not held.
	ErrNoSignerForAddress = errors.New("no signer for address")

	// ErrInvalidPrivateKey is returned when a key fails to parse or lies
	// outside the secp256k1 group.
	ErrInvalidPrivateKey = errors.New("invalid private key")

	// ErrSigningFailed is returned when the ECDSA signing operation itself
	// fails.
	ErrSigningFailed = errors.New("signing failed")
)

var signingErrorCounter = metrics.NewRegisteredCounter("meow/signer/error", nil)

// Manager maps authorized addresses to their private keys. The map is
// guarded by a reader-writer lock so any number of SignHash calls proceed in
// parallel; only key import and removal take the write lock.
type Manager struct {
	mu   sync.RWMutex
	keys map[common.Address]*ecdsa.PrivateKey
}

// NewManager creates an empty key store.
func NewManager() *Manager {
	return &Manager{keys: make(map[common.Address]*ecdsa.PrivateKey)}
}

// Add imports a hex-encoded private key and returns the derived address.
func (m *Manager) Add(hexKey string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return common.Address{}, ErrInvalidPrivateKey
	}
	return m.AddKey(key), nil
}

// AddKey imports an already-parsed private key and returns its address.
func (m *Manager) AddKey(key *ecdsa.PrivateKey) common.Address {
	addr := crypto.PubkeyToAddress(key.PublicKey)

	m.mu.Lock()
	m.keys[addr] = key
	m.mu.Unlock()

	log.Info("Imported block signer key", "address", addr)
	return addr
}

// Has reports whether the key for the given address is held.
func (m *Manager) Has(addr common.Address) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.keys[addr]
	return ok
}

// Addresses returns the held addresses in ascending order.
func (m *Manager) Addresses() []common.Address {
	m.mu.RLock()
	addrs := make([]common.Address, 0, len(m.keys))
	for addr := range m.keys {
		addrs = append(addrs, addr)
	}
	m.mu.RUnlock()

	sort.Slice(addrs, func(i, j int) bool {
		return bytes.Compare(addrs[i][:], addrs[j][:]) < 0
	})
	return addrs
}

// Remove drops a key, reporting whether it was held.
func (m *Manager) Remove(addr common.Address) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.keys[addr]
	delete(m.keys, addr)
	return ok
}

// Count returns the number of held keys.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.keys)
}

// SignHash produces a 65-byte [R ‖ S ‖ V] signature over a 32-byte hash
// with the key of the given address. The lock is released before the
// CPU-bound signing so concurrent signs do not serialize.
func (m *Manager) SignHash(addr common.Address, hash common.Hash) ([]byte, error) {
	m.mu.RLock()
	key, ok := m.keys[addr]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNoSignerForAddress
	}
	sig, err := crypto.Sign(hash[:], key)
	if err != nil {
		signingErrorCounter.Inc(1)
		return nil, ErrSigningFailed
	}
	return sig, nil
}
