package params

import (
	"math/big"
	"testing"
)

func TestPoaConfigDefaults(t *testing.T) {
	cfg := DefaultPoaConfig()
	if cfg.Period != DefaultPeriod || cfg.Epoch != DefaultEpoch {
		t.Errorf("defaults: %+v", cfg)
	}
	if got := cfg.String(); got != "poa(period: 2, epoch: 30000)" {
		t.Errorf("String: %q", got)
	}

	cpy := cfg.Copy()
	cpy.Period = 99
	if cfg.Period == cpy.Period {
		t.Error("Copy aliases the original")
	}
}

func TestMeowchainChainConfig(t *testing.T) {
	cfg := MeowchainChainConfig(DefaultChainID, nil)

	if cfg.ChainID.Uint64() != DefaultChainID {
		t.Errorf("chain id: %v", cfg.ChainID)
	}
	if cfg.TerminalTotalDifficulty.Sign() != 0 {
		t.Error("terminal total difficulty must be zero")
	}
	if cfg.ShanghaiTime == nil || *cfg.ShanghaiTime != 0 {
		t.Error("shanghai must activate at genesis")
	}
	if cfg.CancunTime == nil || *cfg.CancunTime != 0 {
		t.Error("cancun must activate at genesis")
	}
	zero := big.NewInt(0)
	if !cfg.IsLondon(zero) || !cfg.IsBerlin(zero) || !cfg.IsByzantium(zero) {
		t.Error("block-based forks must activate at genesis")
	}
	if cfg.Clique == nil || cfg.Clique.Epoch != DefaultEpoch {
		t.Errorf("engine config: %+v", cfg.Clique)
	}
}

func TestExtraLayoutConstants(t *testing.T) {
	if MinExtraLength != 97 {
		t.Errorf("minimum extra length: want=97 got=%d", MinExtraLength)
	}
}
