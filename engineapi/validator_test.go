package engineapi

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/beacon/engine"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/meowchain/go-meowchain/params"
)

// sealedPoaBlock builds a block whose extra-data is POA-sized: vanity plus a
// fake 65-byte seal.
func sealedPoaBlock() *types.Block {
	extra := make([]byte, params.MinExtraLength)
	for i := range extra {
		extra[i] = byte(i)
	}
	header := &types.Header{
		ParentHash:  common.HexToHash("0x01"),
		UncleHash:   types.EmptyUncleHash,
		Coinbase:    common.HexToAddress("0x1967"),
		Root:        common.HexToHash("0x02"),
		TxHash:      types.EmptyTxsHash,
		ReceiptHash: types.EmptyReceiptsHash,
		Difficulty:  new(big.Int),
		Number:      big.NewInt(7),
		GasLimit:    30_000_000,
		GasUsed:     0,
		Time:        14,
		Extra:       extra,
		BaseFee:     big.NewInt(1_000_000_000),
	}
	return types.NewBlockWithHeader(header)
}

func TestConvertPayloadRoundTrip(t *testing.T) {
	block := sealedPoaBlock()
	data := *engine.BlockToExecutableData(block, new(big.Int), nil).ExecutionPayload

	// The plain host decoder must reject the oversized extra-data; that gap
	// is exactly what the validator bridges.
	if _, err := engine.ExecutableDataToBlock(data, nil, nil); err == nil {
		t.Fatal("host decoder accepted oversized extra-data")
	}

	converted, err := NewPayloadValidator().ConvertPayloadToBlock(data, nil, nil)
	if err != nil {
		t.Fatalf("ConvertPayloadToBlock: %v", err)
	}
	if converted.Hash() != block.Hash() {
		t.Errorf("block hash: have %s, want %s", converted.Hash(), block.Hash())
	}
	if len(converted.Extra()) != params.MinExtraLength {
		t.Errorf("extra-data not restored: %d bytes", len(converted.Extra()))
	}
}

func TestConvertPayloadClaimedHashMismatch(t *testing.T) {
	block := sealedPoaBlock()
	data := *engine.BlockToExecutableData(block, new(big.Int), nil).ExecutionPayload
	data.BlockHash = common.HexToHash("0xbad")

	_, err := NewPayloadValidator().ConvertPayloadToBlock(data, nil, nil)
	if !errors.Is(err, ErrBlockHashMismatch) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestConvertPayloadSmallExtra(t *testing.T) {
	// Ethereum-sized extra-data must keep working through the same path.
	block := sealedPoaBlock()
	header := block.Header()
	header.Extra = []byte{0x01, 0x02}
	block = block.WithSeal(header)

	data := *engine.BlockToExecutableData(block, new(big.Int), nil).ExecutionPayload
	converted, err := NewPayloadValidator().ConvertPayloadToBlock(data, nil, nil)
	if err != nil {
		t.Fatalf("ConvertPayloadToBlock: %v", err)
	}
	if converted.Hash() != block.Hash() {
		t.Errorf("block hash: have %s, want %s", converted.Hash(), block.Hash())
	}
}
