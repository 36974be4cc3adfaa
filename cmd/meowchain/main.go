// meowchain is the command-line entry point of the Meowchain node: genesis
// management, signer key handling and configuration tooling around the
// proof-of-authority core.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/urfave/cli/v2"

	"github.com/meowchain/go-meowchain/contracts/meowchain"
	"github.com/meowchain/go-meowchain/params"
)

var (
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the databases and keystore",
		Value: DefaultConfig().DataDir,
	}
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	devFlag = &cli.BoolFlag{
		Name:  "dev",
		Usage: "Use the built-in three-signer development chain",
	}
	chainIDFlag = &cli.Uint64Flag{
		Name:  "chainid",
		Usage: "Chain identifier of the network",
		Value: params.DefaultChainID,
	}
	periodFlag = &cli.Uint64Flag{
		Name:  "period",
		Usage: "Block interval in seconds",
		Value: params.DefaultPeriod,
	}
	epochFlag = &cli.Uint64Flag{
		Name:  "epoch",
		Usage: "Blocks between signer checkpoints",
		Value: params.DefaultEpoch,
	}
	signersFlag = &cli.StringSliceFlag{
		Name:  "signers",
		Usage: "Comma-separated hex addresses of the genesis signer set",
	}
)

func main() {
	app := &cli.App{
		Name:  "meowchain",
		Usage: "the Meowchain proof-of-authority node",
		Flags: []cli.Flag{dataDirFlag, configFlag},
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Initialize the chain database from a genesis specification",
				Flags:  []cli.Flag{dataDirFlag, devFlag, chainIDFlag, periodFlag, epochFlag, signersFlag},
				Action: initGenesis,
			},
			{
				Name:   "genesis",
				Usage:  "Print the genesis specification as JSON",
				Flags:  []cli.Flag{devFlag, chainIDFlag, periodFlag, epochFlag, signersFlag},
				Action: dumpGenesis,
			},
			{
				Name:      "import-key",
				Usage:     "Import a hex private key into the encrypted keystore",
				ArgsUsage: "<hexkey> <password>",
				Flags:     []cli.Flag{dataDirFlag},
				Action:    importKey,
			},
			{
				Name:   "dumpconfig",
				Usage:  "Print the configuration (defaults, then --config file, then flags) as TOML",
				Flags:  []cli.Flag{dataDirFlag, devFlag, chainIDFlag, periodFlag, epochFlag},
				Action: dumpConfig,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func makeGenesisConfig(ctx *cli.Context) (meowchain.GenesisConfig, error) {
	if ctx.Bool(devFlag.Name) {
		return meowchain.DevGenesisConfig(), nil
	}
	raw := ctx.StringSlice(signersFlag.Name)
	if len(raw) == 0 {
		return meowchain.GenesisConfig{}, fmt.Errorf("a non-dev genesis needs --signers")
	}
	signers := make([]common.Address, 0, len(raw))
	for _, s := range raw {
		if !common.IsHexAddress(s) {
			return meowchain.GenesisConfig{}, fmt.Errorf("invalid signer address: %s", s)
		}
		signers = append(signers, common.HexToAddress(s))
	}
	cfg := meowchain.ProductionGenesisConfig(ctx.Uint64(chainIDFlag.Name), signers)
	cfg.Period = ctx.Uint64(periodFlag.Name)
	cfg.Epoch = ctx.Uint64(epochFlag.Name)
	return cfg, nil
}

func initGenesis(ctx *cli.Context) error {
	cfg, err := makeGenesisConfig(ctx)
	if err != nil {
		return err
	}
	genesis, err := cfg.Build()
	if err != nil {
		return err
	}

	chaindata := filepath.Join(ctx.String(dataDirFlag.Name), "chaindata")
	db, err := rawdb.NewLevelDBDatabase(chaindata, 0, 0, "", false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	block, err := genesis.Commit(db, triedb.NewDatabase(db, nil))
	if err != nil {
		return fmt.Errorf("failed to write genesis: %w", err)
	}
	log.Info("Successfully wrote genesis state", "database", chaindata, "hash", block.Hash())
	return nil
}

func dumpGenesis(ctx *cli.Context) error {
	cfg, err := makeGenesisConfig(ctx)
	if err != nil {
		return err
	}
	genesis, err := cfg.Build()
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(genesis)
}

func importKey(ctx *cli.Context) error {
	if ctx.NArg() != 2 {
		return fmt.Errorf("usage: import-key <hexkey> <password>")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(ctx.Args().Get(0), "0x"))
	if err != nil {
		return fmt.Errorf("invalid private key: %w", err)
	}

	ks := keystore.NewKeyStore(
		filepath.Join(ctx.String(dataDirFlag.Name), "keystore"),
		keystore.StandardScryptN, keystore.StandardScryptP)
	account, err := ks.ImportECDSA(key, ctx.Args().Get(1))
	if err != nil {
		return err
	}
	fmt.Printf("Imported signer %s\n", account.Address.Hex())
	return nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg := DefaultConfig()
	if ctx.IsSet(configFlag.Name) {
		loaded, err := LoadConfig(ctx.String(configFlag.Name))
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	cfg.Dev = ctx.Bool(devFlag.Name)
	if ctx.IsSet(chainIDFlag.Name) {
		cfg.ChainID = ctx.Uint64(chainIDFlag.Name)
	}
	if ctx.IsSet(periodFlag.Name) {
		cfg.Period = ctx.Uint64(periodFlag.Name)
	}
	if ctx.IsSet(epochFlag.Name) {
		cfg.Epoch = ctx.Uint64(epochFlag.Name)
	}
	return SaveConfigTo(cfg, os.Stdout)
}
