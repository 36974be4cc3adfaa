package poa

import (
	"bytes"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/crypto/sha3"

	"github.com/meowchain/go-meowchain/params"
	"github.com/meowchain/go-meowchain/signer"
)

// SealHash returns the hash of a header prior to it being sealed: the
// keccak256 of the RLP encoding with the trailing 65 signature bytes
// stripped from extra-data. The hash committed to by the seal must be
// independent of the seal itself, and signer and verifier must agree on
// this encoding exactly.
func SealHash(header *types.Header) (hash common.Hash) {
	hasher := sha3.NewLegacyKeccak256()
	encodeSigHeader(hasher, header)
	hasher.(crypto.KeccakState).Read(hash[:])
	return hash
}

// MeowRLP returns the rlp bytes which need to be signed for sealing: the
// entire header apart from the 65 byte signature at the end of extra-data.
func MeowRLP(header *types.Header) []byte {
	b := new(bytes.Buffer)
	encodeSigHeader(b, header)
	return b.Bytes()
}

func encodeSigHeader(w io.Writer, header *types.Header) {
	extra := header.Extra
	if len(extra) >= params.ExtraSeal {
		extra = extra[:len(extra)-params.ExtraSeal]
	}
	enc := []interface{}{
		header.ParentHash,
		header.UncleHash,
		header.Coinbase,
		header.Root,
		header.TxHash,
		header.ReceiptHash,
		header.Bloom,
		header.Difficulty,
		header.Number,
		header.GasLimit,
		header.GasUsed,
		header.Time,
		extra,
		header.MixDigest,
		header.Nonce,
	}
	if header.BaseFee != nil {
		enc = append(enc, header.BaseFee)
	}
	if header.WithdrawalsHash != nil {
		enc = append(enc, header.WithdrawalsHash)
	}
	if header.BlobGasUsed != nil {
		enc = append(enc, header.BlobGasUsed)
	}
	if header.ExcessBlobGas != nil {
		enc = append(enc, header.ExcessBlobGas)
	}
	if header.ParentBeaconRoot != nil {
		enc = append(enc, header.ParentBeaconRoot)
	}
	if err := rlp.Encode(w, enc); err != nil {
		panic("can't encode: " + err.Error())
	}
}

// SealHeader signs the header's seal hash with the given address' key from
// the manager and returns a copy carrying the seal in its trailing 65
// extra-data bytes.
func SealHeader(header *types.Header, signAddr common.Address, manager *signer.Manager) (*types.Header, error) {
	sealed := types.CopyHeader(header)

	sig, err := manager.SignHash(signAddr, SealHash(sealed))
	if err != nil {
		return nil, err
	}

	extra := sealed.Extra
	if len(extra) >= params.ExtraSeal {
		extra = extra[:len(extra)-params.ExtraSeal]
	}
	sealed.Extra = append(append([]byte{}, extra...), sig...)
	return sealed, nil
}

// RecoverSigner extracts the sealing address from a header's trailing seal
// bytes via ECDSA public key recovery.
func RecoverSigner(header *types.Header) (common.Address, error) {
	if len(header.Extra) < params.ExtraSeal {
		return common.Address{}, ErrInvalidSignature
	}
	sig := header.Extra[len(header.Extra)-params.ExtraSeal:]

	pubkey, err := crypto.Ecrecover(SealHash(header).Bytes(), sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	var addr common.Address
	copy(addr[:], crypto.Keccak256(pubkey[1:])[12:])
	return addr, nil
}

// ecrecover extracts the sealing address from a signed header, memoizing by
// block hash to speed up repeated validation of the same headers.
func ecrecover(header *types.Header, sigcache *lru.ARCCache) (common.Address, error) {
	hash := header.Hash()
	if address, known := sigcache.Get(hash); known {
		return address.(common.Address), nil
	}
	addr, err := RecoverSigner(header)
	if err != nil {
		return common.Address{}, err
	}
	sigcache.Add(hash, addr)
	return addr, nil
}
