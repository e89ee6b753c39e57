// Demo = network environment + simulated collaborators + one cross-chain
// operation driven end to end, plus an optional http reporter on top.
// All components are configured via environment variables (strings!).

package cmd

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/eil-protocol/eil-go/account"
	"github.com/eil-protocol/eil-go/actions"
	"github.com/eil-protocol/eil-go/builder"
	"github.com/eil-protocol/eil-go/chainenv"
	"github.com/eil-protocol/eil-go/eiltypes"
	"github.com/eil-protocol/eil-go/executor"
	"github.com/eil-protocol/eil-go/multichain"
	"github.com/eil-protocol/eil-go/opstore"
	"github.com/eil-protocol/eil-go/reporter"
	"github.com/eil-protocol/eil-go/voucher"
	"github.com/eil-protocol/eil-go/xlp"
)

// Default params for the demo operation.
const (
	demoVoucherRef   = "demo-v1"
	demoAmount       = 90_000000 // 90 USDC in 6-decimal base units
	confirmLatency   = 200 * time.Millisecond
	issuanceLatency  = 300 * time.Millisecond
	executionTimeout = 60 * time.Second
)

// Keep the configuration's fields as "text" as possible.
// Its easier to load it from env vars or a config file.
type DemoServerConfig struct {
	ConfigFilePath string // YAML network config, empty = built-in demo chains
	DbFilePath     string // sqlite batch store location, empty = in-memory
	HttpIp         string
	HttpPort       string // empty disables the http reporter
}

// StartDemoAndWait runs one producer/consumer operation across two
// chains with simulated collaborators, then serves batch status over
// http until interrupted (if a port is configured).
func StartDemoAndWait(cfg *DemoServerConfig) error {
	env, err := makeEnvironment(cfg.ConfigFilePath)
	if err != nil {
		return err
	}

	chainIDs := env.ChainIDs()
	if len(chainIDs) < 2 {
		return fmt.Errorf("demo needs at least two configured chains, got %d", len(chainIDs))
	}
	sourceChain, destChain := chainIDs[0], chainIDs[1]

	store, err := makeStore(cfg.DbFilePath)
	if err != nil {
		return err
	}
	defer store.Close()

	token := multichain.NewMultichainToken("USDC", multichain.AddressPerChain{
		sourceChain: ethcommon.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"),
		destChain:   ethcommon.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
	})

	acct := account.NewBaseMultichainAccount(map[eiltypes.ChainId]ethcommon.Address{
		sourceChain: ethcommon.HexToAddress("0x1000000000000000000000000000000000000001"),
		destChain:   ethcommon.HexToAddress("0x1000000000000000000000000000000000000001"),
	}, account.NewSimSigner(ethcommon.HexToAddress("0x2000000000000000000000000000000000000002")))

	candidates := xlp.NewSimCandidateSource()
	candidates.Add(destChain, xlp.Candidate{
		Address:          ethcommon.HexToAddress("0x3000000000000000000000000000000000000003"),
		Fee:              big.NewInt(10),
		AvailableDeposit: big.NewInt(1_000_000_000),
	})
	candidates.Add(destChain, xlp.Candidate{
		Address:          ethcommon.HexToAddress("0x4000000000000000000000000000000000000004"),
		Fee:              big.NewInt(5),
		AvailableDeposit: big.NewInt(500_000_000),
	})

	confirmer := executor.NewSimConfirmer()
	confirmer.Latency = confirmLatency
	watcher := executor.NewSimWatcher()
	watcher.AutoIssue = true
	watcher.Latency = issuanceLatency

	b := builder.New(builder.Config{
		Env:        env,
		Candidates: candidates,
		Bundler:    account.NewSimBundler(),
		Confirmer:  confirmer,
		Watcher:    watcher,
		Store:      store,
	})
	if err := b.UseAccount(acct); err != nil {
		return err
	}

	exec, err := buildDemoOperation(b, token, sourceChain, destChain)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), executionTimeout)
	defer cancel()

	err = exec.Execute(ctx, func(data executor.CallbackData) {
		fields := logger.Fields{
			"batch":   data.Index,
			"chainId": data.ChainID,
			"event":   data.Type,
		}
		if data.RefID != "" {
			fields["refId"] = data.RefID
		}
		if data.RevertReason != "" {
			fields["reason"] = data.RevertReason
		}
		logger.WithFields(fields).Info("execution event")
	})
	if err != nil {
		return err
	}
	logger.Info("demo operation completed")

	if cfg.HttpPort == "" {
		return nil
	}

	rep := reporter.NewHttpReporter(cfg.HttpIp, cfg.HttpPort, store)
	go rep.Run()
	logger.WithField("addr", cfg.HttpIp+":"+cfg.HttpPort).Info("http reporter running, press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}

// buildDemoOperation assembles two batches: the first produces a voucher
// on the source chain, the second spends it on the destination chain.
func buildDemoOperation(
	b *builder.CrossChainBuilder,
	token *multichain.MultichainToken,
	sourceChain, destChain eiltypes.ChainId,
) (*executor.CrossChainExecutor, error) {
	batchA, err := b.StartBatch(sourceChain)
	if err != nil {
		return nil, err
	}
	batchA, err = batchA.AddVoucherRequest(voucher.Request{
		RefID:              demoVoucherRef,
		DestinationChainID: destChain,
		Tokens: []multichain.TokenAmount{{
			Token:  token,
			Amount: eiltypes.FixedUint64(demoAmount),
		}},
	})
	if err != nil {
		return nil, err
	}
	b, err = batchA.EndBatch()
	if err != nil {
		return nil, err
	}

	batchB, err := b.StartBatch(destChain)
	if err != nil {
		return nil, err
	}
	batchB, err = batchB.UseVoucher(demoVoucherRef)
	if err != nil {
		return nil, err
	}
	batchB.AddAction(&actions.TransferAction{
		Token:     token,
		Recipient: ethcommon.HexToAddress("0x5000000000000000000000000000000000000005"),
		Amount:    eiltypes.FixedUint64(demoAmount),
	})
	b, err = batchB.EndBatch()
	if err != nil {
		return nil, err
	}

	return b.Finalize(context.Background())
}

func makeEnvironment(configFilePath string) (*chainenv.NetworkEnvironment, error) {
	if configFilePath != "" {
		cfg, err := chainenv.LoadConfig(configFilePath)
		if err != nil {
			return nil, err
		}
		return chainenv.NewNetworkEnvironment(cfg), nil
	}

	cfg := chainenv.DefaultConfig()
	cfg.AddChain(chainenv.ChainInfo{
		ChainID:    eiltypes.Optimism,
		RPCURL:     "http://127.0.0.1:9545",
		EntryPoint: ethcommon.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"),
		Paymaster:  ethcommon.HexToAddress("0x00000000000000000000000000000000000000A1"),
	})
	cfg.AddChain(chainenv.ChainInfo{
		ChainID:    eiltypes.Arbitrum,
		RPCURL:     "http://127.0.0.1:9546",
		EntryPoint: ethcommon.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"),
		Paymaster:  ethcommon.HexToAddress("0x00000000000000000000000000000000000000A2"),
	})
	return chainenv.NewNetworkEnvironment(cfg), nil
}

func makeStore(dbFilePath string) (opstore.BatchStore, error) {
	if dbFilePath == "" {
		return opstore.NewMemoryBatchStore(), nil
	}
	return opstore.NewSQLiteBatchStore(dbFilePath)
}
