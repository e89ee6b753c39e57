// Cross-chain operation builder. The builder walks three states:
// Building (no account bound), ReadyToBuild (batches may be opened and
// closed) and Signed (terminal, the executor has been produced). Every
// mutating call checks the state and fails fast instead of deferring the
// problem to execution time.

package builder

import (
	"context"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/eil-protocol/eil-go/account"
	"github.com/eil-protocol/eil-go/actions"
	"github.com/eil-protocol/eil-go/chainenv"
	"github.com/eil-protocol/eil-go/common"
	"github.com/eil-protocol/eil-go/eiltypes"
	"github.com/eil-protocol/eil-go/executor"
	"github.com/eil-protocol/eil-go/opstore"
	"github.com/eil-protocol/eil-go/userop"
	"github.com/eil-protocol/eil-go/voucher"
	"github.com/eil-protocol/eil-go/xlp"
)

// State is the builder's lifecycle phase.
type State string

const (
	Building     State = "building"
	ReadyToBuild State = "ready_to_build"
	Signed       State = "signed"
)

// Default user operation gas parameters, matching the paymaster's
// accepted envelope.
var (
	defaultCallGasLimit         = big.NewInt(3_000_000)
	defaultVerificationGasLimit = big.NewInt(500_000)
	defaultPreVerificationGas   = big.NewInt(100_000)
	defaultMaxFeePerGas         = big.NewInt(1_000_000_000)
	defaultMaxUserOpCost        = big.NewInt(10_000_000_000_000_000) // 0.01 ETH
)

// Config wires the builder's collaborators.
type Config struct {
	Env        *chainenv.NetworkEnvironment
	Candidates xlp.CandidateSource
	Bundler    account.BundlerClient
	Confirmer  executor.Confirmer
	Watcher    executor.VoucherWatcher

	// Store persists batch progress during execution. Optional.
	Store opstore.BatchStore
}

// CrossChainBuilder assembles one multi-chain operation.
type CrossChainBuilder struct {
	cfg     Config
	acct    account.MultiChainSmartAccount
	coord   *voucher.Coordinator
	batches []*BatchBuilder
	open    *BatchBuilder

	// declaredVars maps a runtime variable name to the batch index that
	// set it. Entries appear when the declaring batch closes, so a
	// variable is only visible to later batches.
	declaredVars map[string]int

	state State
	exec  *executor.CrossChainExecutor
}

func New(cfg Config) *CrossChainBuilder {
	return &CrossChainBuilder{
		cfg:          cfg,
		coord:        voucher.NewCoordinator(),
		declaredVars: make(map[string]int),
		state:        Building,
	}
}

// State returns the current lifecycle phase.
func (b *CrossChainBuilder) State() State {
	return b.state
}

// BatchCount returns the number of closed batches.
func (b *CrossChainBuilder) BatchCount() int {
	return len(b.batches)
}

// Coordinator exposes the operation's voucher table. Read-only for
// callers; all mutation goes through batch construction.
func (b *CrossChainBuilder) Coordinator() *voucher.Coordinator {
	return b.coord
}

// UseAccount binds the executing account and moves to ReadyToBuild.
func (b *CrossChainBuilder) UseAccount(acct account.MultiChainSmartAccount) error {
	if b.state != Building {
		return ErrWrongState("bind an account", b.state)
	}
	b.acct = acct
	b.state = ReadyToBuild
	return nil
}

// StartBatch opens a batch on chainID. The previous batch must be closed.
func (b *CrossChainBuilder) StartBatch(chainID eiltypes.ChainId) (*BatchBuilder, error) {
	if b.state != ReadyToBuild {
		return nil, ErrWrongState("start a batch", b.state)
	}
	if b.open != nil {
		return nil, ErrBatchOpen
	}
	if !b.cfg.Env.Supports(chainID) {
		return nil, eiltypes.ErrChainUnknown(chainID)
	}

	b.open = &BatchBuilder{
		parent:  b,
		chainID: chainID,
		index:   len(b.batches),
	}
	return b.open, nil
}

// Executor returns the finalized executor, nil before Finalize succeeded.
func (b *CrossChainBuilder) Executor() *executor.CrossChainExecutor {
	return b.exec
}

// Finalize resolves providers for every voucher, validates that no
// voucher is left unconsumed, builds and signs the per-chain user
// operations and transitions to Signed. On any error the builder stays
// in ReadyToBuild and the caller may correct and retry.
func (b *CrossChainBuilder) Finalize(ctx context.Context) (*executor.CrossChainExecutor, error) {
	if b.state != ReadyToBuild {
		return nil, ErrWrongState("finalize", b.state)
	}
	if b.open != nil {
		return nil, ErrBatchOpen
	}

	if err := b.resolveXlps(ctx); err != nil {
		return nil, err
	}
	if err := b.buildContractRequests(ctx); err != nil {
		return nil, err
	}
	if err := b.coord.ValidateAllConsumed(); err != nil {
		return nil, err
	}

	singleChainBatches, ops, err := b.buildUserOps(ctx)
	if err != nil {
		return nil, err
	}
	if err := b.acct.SignUserOps(ctx, ops); err != nil {
		return nil, err
	}
	for _, scb := range singleChainBatches {
		scb.UserOpHash = scb.UserOp.SigningHash()
	}

	opID := common.ByteSliceToPureHexStr(common.RandBytes(16))
	b.exec = executor.New(executor.Config{
		OpID:      opID,
		Env:       b.cfg.Env,
		Bundler:   b.cfg.Bundler,
		Confirmer: b.cfg.Confirmer,
		Watcher:   b.cfg.Watcher,
		Store:     b.cfg.Store,
	}, singleChainBatches, b.coord)
	b.state = Signed

	logger.WithFields(logger.Fields{
		"opId":     opID,
		"batches":  len(singleChainBatches),
		"vouchers": len(b.coord.All()),
	}).Info("operation finalized and signed")
	return b.exec, nil
}

// resolveXlps picks a provider for every registered voucher.
func (b *CrossChainBuilder) resolveXlps(ctx context.Context) error {
	sel := b.cfg.Env.Config().XlpSelection
	policy := xlp.Policy{
		Allowlist: sel.Allowlist,
		MaxFee:    sel.MaxFee,
	}
	if sel.DepositReserveFactor > 0 {
		policy.DepositReserveNumerator = int64(sel.DepositReserveFactor * 10_000)
		policy.DepositReserveDenominator = 10_000
	}

	for _, info := range b.coord.All() {
		demand := voucherDemand(info.Request)
		candidates, err := b.cfg.Candidates.Candidates(ctx, demand)
		if err != nil {
			return err
		}
		chosen, err := xlp.Select(demand, candidates, policy)
		if err != nil {
			return err
		}
		if err := b.coord.SetSelectedXlp(info.Request.RefID, chosen.Address); err != nil {
			return err
		}
	}
	return nil
}

// voucherDemand aggregates a request's token amounts into one provider
// demand on the destination chain. Runtime amounts contribute their
// minimum-deposit floor instead.
func voucherDemand(req voucher.Request) xlp.Demand {
	total := new(big.Int)
	var minDeposit *big.Int
	for _, t := range req.Tokens {
		if t.Amount.IsRuntime() {
			if t.MinProviderDeposit != nil {
				total.Add(total, t.MinProviderDeposit)
			} else {
				total.Add(total, big.NewInt(1))
			}
			continue
		}
		total.Add(total, t.Amount.Value())
		if t.MinProviderDeposit != nil {
			if minDeposit == nil {
				minDeposit = new(big.Int)
			}
			minDeposit.Add(minDeposit, t.MinProviderDeposit)
		}
	}
	return xlp.Demand{
		ChainID:            req.DestinationChainID,
		Amount:             total,
		MinProviderDeposit: minDeposit,
	}
}

// buildContractRequests converts every registered voucher into the
// contract-level request the paymaster and the chosen provider sign.
func (b *CrossChainBuilder) buildContractRequests(ctx context.Context) error {
	cfg := b.cfg.Env.Config()
	feeRule := userop.AtomicSwapFeeRule{
		StartFeePercentNumerator: chainenv.FeeNumerator(cfg.Fee.StartFeePercent),
		MaxFeePercentNumerator:   chainenv.FeeNumerator(cfg.Fee.MaxFeePercent),
		FeeIncreasePerSecond:     chainenv.FeeNumerator(cfg.Fee.FeeIncreasePerSecond),
		UnspentVoucherFee:        chainenv.FeeNumerator(cfg.Fee.UnspentVoucherFeePercent),
	}
	expiresAt := big.NewInt(time.Now().Add(cfg.ExpireTime).Unix())

	for _, info := range b.coord.All() {
		req := info.Request

		sourceSender, err := b.acct.AddressOn(req.SourceChainID)
		if err != nil {
			return err
		}
		destSender := sourceSender
		if req.Target != nil {
			destSender = *req.Target
		} else if addr, err := b.acct.AddressOn(req.DestinationChainID); err == nil {
			destSender = addr
		}

		sourcePaymaster, err := b.cfg.Env.Paymaster(req.SourceChainID)
		if err != nil {
			return err
		}
		destPaymaster, err := b.cfg.Env.Paymaster(req.DestinationChainID)
		if err != nil {
			return err
		}

		sourceAssets, err := requestAssets(req, req.SourceChainID)
		if err != nil {
			return err
		}
		destAssets, err := requestAssets(req, req.DestinationChainID)
		if err != nil {
			return err
		}

		nonce, err := b.acct.Nonce(ctx, req.SourceChainID)
		if err != nil {
			return err
		}

		var allowedXlps []ethcommon.Address
		if info.SelectedXlp != nil {
			allowedXlps = append(allowedXlps, *info.SelectedXlp)
		}

		contractReq := &userop.VoucherRequest{
			Origination: userop.SourceSwapComponent{
				ChainID:     req.SourceChainID,
				Sender:      sourceSender,
				Paymaster:   sourcePaymaster,
				Assets:      sourceAssets,
				FeeRule:     feeRule,
				SenderNonce: nonce,
				AllowedXlps: allowedXlps,
			},
			Destination: userop.DestinationSwapComponent{
				ChainID:       req.DestinationChainID,
				Sender:        destSender,
				Paymaster:     destPaymaster,
				Assets:        destAssets,
				MaxUserOpCost: defaultMaxUserOpCost,
				ExpiresAt:     expiresAt,
			},
		}
		if err := b.coord.SetContractRequest(req.RefID, contractReq); err != nil {
			return err
		}
	}
	return nil
}

// requestAssets resolves a request's tokens on one chain. Runtime amounts
// settle on chain; the request carries their deposit floor instead.
func requestAssets(req voucher.Request, chainID eiltypes.ChainId) ([]userop.Asset, error) {
	var assets []userop.Asset
	for _, t := range req.Tokens {
		addr, ok := t.Token.AddressOn(chainID)
		if !ok {
			return nil, actions.ErrTokenNotDeployed(t.Token.Name, chainID)
		}
		amount := t.Amount.Value()
		if amount == nil {
			amount = big.NewInt(1)
			if t.MinProviderDeposit != nil {
				amount = new(big.Int).Set(t.MinProviderDeposit)
			}
		}
		assets = append(assets, userop.Asset{ERC20Token: addr, Amount: amount})
	}
	return assets, nil
}

// buildUserOps assembles one unsigned user operation per closed batch.
func (b *CrossChainBuilder) buildUserOps(ctx context.Context) ([]*executor.SingleChainBatch, []*userop.UserOperation, error) {
	var singleChainBatches []*executor.SingleChainBatch
	var ops []*userop.UserOperation

	for _, batch := range b.batches {
		sender, err := b.acct.AddressOn(batch.chainID)
		if err != nil {
			return nil, nil, err
		}
		nonce, err := b.acct.Nonce(ctx, batch.chainID)
		if err != nil {
			return nil, nil, err
		}
		callData, err := b.acct.EncodeCalls(batch.chainID, batch.calls)
		if err != nil {
			return nil, nil, err
		}
		entryPoint, err := b.cfg.Env.EntryPoint(batch.chainID)
		if err != nil {
			return nil, nil, err
		}

		op := &userop.UserOperation{
			Sender:               sender,
			Nonce:                nonce,
			CallData:             callData,
			CallGasLimit:         defaultCallGasLimit,
			VerificationGasLimit: defaultVerificationGasLimit,
			PreVerificationGas:   defaultPreVerificationGas,
			MaxFeePerGas:         defaultMaxFeePerGas,
			MaxPriorityFeePerGas: defaultMaxFeePerGas,
			ChainID:              batch.chainID,
			EntryPoint:           entryPoint,
		}
		ops = append(ops, op)
		singleChainBatches = append(singleChainBatches, &executor.SingleChainBatch{
			Index:         batch.index,
			ChainID:       batch.chainID,
			UserOp:        op,
			ProducedRefID: batch.producedRefID,
			ConsumedRefID: batch.consumedRefID,
		})
	}
	return singleChainBatches, ops, nil
}
