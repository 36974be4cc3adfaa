package txlimits

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/meowchain/go-meowchain/onchain"
)

func testConfig() *onchain.DynamicChainConfig {
	return &onchain.DynamicChainConfig{
		GasLimit:           30_000_000,
		MaxTxGas:           1_000_000,
		MaxContractSize:    24_576,
		CalldataGasPerByte: 16,
	}
}

func makeTx(gas uint64, to *common.Address, data []byte) *types.Transaction {
	return types.NewTx(&types.LegacyTx{
		Nonce:    0,
		Gas:      gas,
		GasPrice: big.NewInt(1),
		To:       to,
		Value:    new(big.Int),
		Data:     data,
	})
}

func TestVerifyTxWithinLimits(t *testing.T) {
	to := common.HexToAddress("0x01")
	if err := VerifyTx(makeTx(100_000, &to, nil), testConfig()); err != nil {
		t.Errorf("VerifyTx: %v", err)
	}
}

func TestVerifyTxGasTooHigh(t *testing.T) {
	to := common.HexToAddress("0x01")
	if err := VerifyTx(makeTx(2_000_000, &to, nil), testConfig()); err != ErrTxGasTooHigh {
		t.Errorf("want=%v got=%v", ErrTxGasTooHigh, err)
	}
}

func TestVerifyTxInitCodeTooLarge(t *testing.T) {
	cfg := testConfig()
	initCode := make([]byte, 2*cfg.MaxContractSize+1)
	if err := VerifyTx(makeTx(1_000_000, nil, initCode), cfg); err != ErrInitCodeTooLarge {
		t.Errorf("want=%v got=%v", ErrInitCodeTooLarge, err)
	}
	// A call with the same payload is fine; only deployments are bounded.
	to := common.HexToAddress("0x01")
	if err := VerifyTx(makeTx(1_000_000, &to, initCode), cfg); err != nil {
		t.Errorf("call with large data rejected: %v", err)
	}
}

func TestVerifyTxCalldataFloor(t *testing.T) {
	to := common.HexToAddress("0x01")
	data := make([]byte, 1000)
	// 21000 + 16*1000 = 37000 is the floor.
	if err := VerifyTx(makeTx(36_999, &to, data), testConfig()); err != ErrCalldataGasTooLow {
		t.Errorf("want=%v got=%v", ErrCalldataGasTooLow, err)
	}
	if err := VerifyTx(makeTx(37_000, &to, data), testConfig()); err != nil {
		t.Errorf("floor-exact gas rejected: %v", err)
	}
}

func TestVerifyTxNilConfig(t *testing.T) {
	to := common.HexToAddress("0x01")
	if err := VerifyTx(makeTx(30_000_000, &to, nil), nil); err != nil {
		t.Errorf("nil config must disable the checks: %v", err)
	}
}

func TestVerifyTxs(t *testing.T) {
	to := common.HexToAddress("0x01")
	txs := types.Transactions{
		makeTx(100_000, &to, nil),
		makeTx(2_000_000, &to, nil),
	}
	if err := VerifyTxs(txs, testConfig()); err != ErrTxGasTooHigh {
		t.Errorf("want=%v got=%v", ErrTxGasTooHigh, err)
	}
}
