package meowchain

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type storage map[string]interface{}

// Returns the contract storage slot map.
// see: https://docs.soliditylang.org/en/v0.8.11/internals/layout_in_storage.html
func (s storage) build() (map[common.Hash]common.Hash, error) {
	built := make(map[common.Hash]common.Hash)
	for slot, val := range s {
		if err := setStorage(built, common.HexToHash(slot), val); err != nil {
			return nil, err
		}
	}
	return built, nil
}

// `mapping` type storage.
type mapping struct {
	keyType reflect.Type
	values  map[string]interface{}
}

// Add mapping values to storage. The value slot of key k under root slot p
// is keccak256(pad32(k) ‖ p).
func (m *mapping) add(built map[common.Hash]common.Hash, rootSlot common.Hash) error {
	if m.keyType != reflect.TypeOf(common.Address{}) {
		return fmt.Errorf("unsupported key type: %s", m.keyType)
	}

	for mkey, mval := range m.values {
		k := bytes.Join([][]byte{common.HexToHash(mkey).Bytes(), rootSlot[:]}, nil)
		slot := common.BytesToHash(crypto.Keccak256(k))
		if err := setStorage(built, slot, mval); err != nil {
			return err
		}
	}

	return nil
}

// `address[]` dynamic-array storage. The root slot holds the length, the
// body starts at keccak256(rootSlot).
type addressArray []common.Address

func (a addressArray) add(built map[common.Hash]common.Hash, rootSlot common.Hash) error {
	if len(a) == 0 {
		return nil
	}
	built[rootSlot] = common.BigToHash(big.NewInt(int64(len(a))))

	base := new(big.Int).SetBytes(crypto.Keccak256(rootSlot.Bytes()))
	for i, addr := range a {
		slot := common.BigToHash(new(big.Int).Add(base, big.NewInt(int64(i))))
		built[slot] = common.BytesToHash(common.LeftPadBytes(addr.Bytes(), 32))
	}
	return nil
}

// setStorage writes one value into the slot map. Zero values are skipped
// entirely: an unwritten Solidity slot and a zero one are indistinguishable
// on-chain, and genesis dumps omit them.
func setStorage(built map[common.Hash]common.Hash, slot common.Hash, val interface{}) error {
	switch t := val.(type) {
	case common.Hash:
		if t != (common.Hash{}) {
			built[slot] = t
		}
	case common.Address:
		if t != (common.Address{}) {
			built[slot] = common.BytesToHash(common.LeftPadBytes(t.Bytes(), 32))
		}
	case *big.Int:
		if t.Sign() != 0 {
			built[slot] = common.BigToHash(t)
		}
	case uint64:
		if t != 0 {
			built[slot] = common.BigToHash(new(big.Int).SetUint64(t))
		}
	case bool:
		if t {
			built[slot] = common.BigToHash(common.Big1)
		}
	case mapping:
		if err := t.add(built, slot); err != nil {
			return err
		}
	case addressArray:
		if err := t.add(built, slot); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported type: %v, slot: %s", t, slot.String())
	}
	return nil
}
