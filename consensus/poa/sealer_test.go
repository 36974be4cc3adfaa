package poa

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/meowchain/go-meowchain/params"
	"github.com/meowchain/go-meowchain/signer"
)

func makeTestHeader(number uint64) *types.Header {
	return &types.Header{
		ParentHash: common.HexToHash("0x01"),
		UncleHash:  types.CalcUncleHash(nil),
		Number:     new(big.Int).SetUint64(number),
		GasLimit:   30_000_000,
		GasUsed:    0,
		Time:       2,
		Extra:      make([]byte, params.MinExtraLength),
		Difficulty: new(big.Int),
		BaseFee:    big.NewInt(1_000_000_000),
	}
}

func TestSealRoundTrip(t *testing.T) {
	manager := signer.NewManager()
	key, _ := crypto.GenerateKey()
	addr := manager.AddKey(key)

	sealed, err := SealHeader(makeTestHeader(1), addr, manager)
	if err != nil {
		t.Fatalf("SealHeader: %v", err)
	}
	recovered, err := RecoverSigner(sealed)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if recovered != addr {
		t.Errorf("recovered signer mismatch: have %s, want %s", recovered, addr)
	}
}

func TestSealHashIgnoresTrailingSeal(t *testing.T) {
	a := makeTestHeader(1)
	b := makeTestHeader(1)
	for i := len(b.Extra) - params.ExtraSeal; i < len(b.Extra); i++ {
		b.Extra[i] = 0xff
	}
	if SealHash(a) != SealHash(b) {
		t.Error("seal hash depends on the trailing 65 extra-data bytes")
	}
}

func TestSealHashCoversVanity(t *testing.T) {
	a := makeTestHeader(1)
	b := makeTestHeader(1)
	b.Extra[0] = 0xca
	if SealHash(a) == SealHash(b) {
		t.Error("seal hash ignores the vanity prefix")
	}
}

func TestSealHashShortExtra(t *testing.T) {
	// Headers with less than a seal's worth of extra-data hash whole.
	h := makeTestHeader(1)
	h.Extra = []byte{0x01, 0x02}
	if SealHash(h) == (common.Hash{}) {
		t.Error("empty seal hash")
	}
}

func TestSealHeaderReplacesPlaceholder(t *testing.T) {
	manager := signer.NewManager()
	key, _ := crypto.GenerateKey()
	addr := manager.AddKey(key)

	header := makeTestHeader(1)
	sealed, err := SealHeader(header, addr, manager)
	if err != nil {
		t.Fatalf("SealHeader: %v", err)
	}
	if len(sealed.Extra) != len(header.Extra) {
		t.Fatalf("extra-data length changed: have %d, want %d", len(sealed.Extra), len(header.Extra))
	}
	if bytes.Equal(sealed.Extra[len(sealed.Extra)-params.ExtraSeal:], make([]byte, params.ExtraSeal)) {
		t.Error("seal placeholder not overwritten")
	}
	// The original header must be untouched.
	if !bytes.Equal(header.Extra[len(header.Extra)-params.ExtraSeal:], make([]byte, params.ExtraSeal)) {
		t.Error("input header mutated by sealing")
	}
}

func TestSealHeaderUnknownKey(t *testing.T) {
	manager := signer.NewManager()
	if _, err := SealHeader(makeTestHeader(1), common.HexToAddress("0xdead"), manager); err != signer.ErrNoSignerForAddress {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRecoverSignerShortExtra(t *testing.T) {
	h := makeTestHeader(1)
	h.Extra = make([]byte, 10)
	if _, err := RecoverSigner(h); err == nil {
		t.Error("expected recovery failure on short extra-data")
	}
}

func TestRecoverSignerGarbageSeal(t *testing.T) {
	h := makeTestHeader(1)
	for i := range h.Extra {
		h.Extra[i] = 0x37
	}
	if _, err := RecoverSigner(h); err == nil {
		t.Error("expected recovery failure on garbage seal")
	}
}
