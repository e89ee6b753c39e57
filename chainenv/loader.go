package chainenv

import (
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/eil-protocol/eil-go/eiltypes"
)

// File entry for one chain; addresses are hex strings in the config file.
type chainFileEntry struct {
	ChainID    uint64 `mapstructure:"chain_id"`
	RPCURL     string `mapstructure:"rpc_url"`
	EntryPoint string `mapstructure:"entry_point"`
	Paymaster  string `mapstructure:"paymaster"`
	BundlerURL string `mapstructure:"bundler_url"`
}

// LoadConfig reads a CrossChainConfig from a config file (yaml/json/toml,
// detected by viper). Missing scalar keys keep the defaults.
func LoadConfig(path string) (*CrossChainConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()

	if v.IsSet("expire_time_seconds") {
		cfg.ExpireTime = time.Duration(v.GetInt64("expire_time_seconds")) * time.Second
	}
	if v.IsSet("confirmation_timeout_seconds") {
		cfg.ConfirmationTimeout = time.Duration(v.GetInt64("confirmation_timeout_seconds")) * time.Second
	}
	if v.IsSet("start_fee_percent") {
		cfg.Fee.StartFeePercent = v.GetFloat64("start_fee_percent")
	}
	if v.IsSet("max_fee_percent") {
		cfg.Fee.MaxFeePercent = v.GetFloat64("max_fee_percent")
	}
	if v.IsSet("fee_increase_per_second") {
		cfg.Fee.FeeIncreasePerSecond = v.GetFloat64("fee_increase_per_second")
	}
	if v.IsSet("unspent_voucher_fee_percent") {
		cfg.Fee.UnspentVoucherFeePercent = v.GetFloat64("unspent_voucher_fee_percent")
	}
	if v.IsSet("deposit_reserve_factor") {
		cfg.XlpSelection.DepositReserveFactor = v.GetFloat64("deposit_reserve_factor")
	}
	if v.IsSet("xlp_max_fee") {
		maxFee, ok := new(big.Int).SetString(v.GetString("xlp_max_fee"), 10)
		if !ok {
			return nil, fmt.Errorf("failed to parse xlp_max_fee %q", v.GetString("xlp_max_fee"))
		}
		cfg.XlpSelection.MaxFee = maxFee
	}
	if v.IsSet("xlp_allowlist") {
		for _, addr := range v.GetStringSlice("xlp_allowlist") {
			cfg.XlpSelection.Allowlist = append(cfg.XlpSelection.Allowlist, ethcommon.HexToAddress(addr))
		}
	}

	var entries []chainFileEntry
	if err := v.UnmarshalKey("chains", &entries); err != nil {
		return nil, fmt.Errorf("failed to parse chains section: %w", err)
	}
	for _, e := range entries {
		cfg.AddChain(ChainInfo{
			ChainID:    eiltypes.ChainId(e.ChainID),
			RPCURL:     e.RPCURL,
			EntryPoint: ethcommon.HexToAddress(e.EntryPoint),
			Paymaster:  ethcommon.HexToAddress(e.Paymaster),
			BundlerURL: e.BundlerURL,
		})
	}

	return cfg, nil
}
