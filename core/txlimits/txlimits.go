// Package txlimits checks transactions against the governance-controlled
// execution limits from the on-chain ChainConfig contract.
package txlimits

import (
	"errors"

	"github.com/ethereum/go-ethereum/core/types"
	ethparams "github.com/ethereum/go-ethereum/params"

	"github.com/meowchain/go-meowchain/onchain"
)

var (
	// ErrTxGasTooHigh is returned if a transaction's gas allowance exceeds
	// the governance maxTxGas.
	ErrTxGasTooHigh = errors.New("transaction gas exceeds governance limit")

	// ErrInitCodeTooLarge is returned if a deployment's init code cannot
	// possibly produce a contract within the governance code-size limit.
	ErrInitCodeTooLarge = errors.New("contract init code exceeds governance limit")

	// ErrCalldataGasTooLow is returned if a transaction's gas allowance
	// cannot cover the governance per-byte calldata floor.
	ErrCalldataGasTooLow = errors.New("transaction gas below calldata floor")
)

// VerifyTx checks if it is ok to process the transaction under the given
// governance configuration. A nil config means governance was unreadable and
// the host's built-in limits apply alone.
func VerifyTx(tx *types.Transaction, cfg *onchain.DynamicChainConfig) error {
	if cfg == nil {
		return nil
	}
	if cfg.MaxTxGas > 0 && tx.Gas() > cfg.MaxTxGas {
		return ErrTxGasTooHigh
	}
	if tx.To() == nil && cfg.MaxContractSize > 0 {
		// EIP-3860 shape: init code may be at most twice the code size cap.
		if uint64(len(tx.Data())) > 2*cfg.MaxContractSize {
			return ErrInitCodeTooLarge
		}
	}
	if cfg.CalldataGasPerByte > 0 {
		floor := ethparams.TxGas + cfg.CalldataGasPerByte*uint64(len(tx.Data()))
		if tx.Gas() < floor {
			return ErrCalldataGasTooLow
		}
	}
	return nil
}

// VerifyTxs checks a whole block body, failing on the first offender.
func VerifyTxs(txs types.Transactions, cfg *onchain.DynamicChainConfig) error {
	for _, tx := range txs {
		if err := VerifyTx(tx, cfg); err != nil {
			return err
		}
	}
	return nil
}
