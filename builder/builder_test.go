package builder

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/eil-protocol/eil-go/account"
	"github.com/eil-protocol/eil-go/actions"
	"github.com/eil-protocol/eil-go/chainenv"
	"github.com/eil-protocol/eil-go/eiltypes"
	"github.com/eil-protocol/eil-go/executor"
	"github.com/eil-protocol/eil-go/multichain"
	"github.com/eil-protocol/eil-go/userop"
	"github.com/eil-protocol/eil-go/voucher"
	"github.com/eil-protocol/eil-go/xlp"
)

func testEnv() *chainenv.NetworkEnvironment {
	cfg := chainenv.DefaultConfig()
	cfg.AddChain(chainenv.ChainInfo{
		ChainID:    eiltypes.Optimism,
		EntryPoint: ethcommon.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"),
		Paymaster:  ethcommon.HexToAddress("0x00000000000000000000000000000000000000A1"),
	})
	cfg.AddChain(chainenv.ChainInfo{
		ChainID:    eiltypes.Arbitrum,
		EntryPoint: ethcommon.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032"),
		Paymaster:  ethcommon.HexToAddress("0x00000000000000000000000000000000000000A2"),
	})
	return chainenv.NewNetworkEnvironment(cfg)
}

func testToken() *multichain.MultichainToken {
	return multichain.NewMultichainToken("USDC", multichain.AddressPerChain{
		eiltypes.Optimism: ethcommon.HexToAddress("0x0b2C639c533813f4Aa9D7837CAf62653d097Ff85"),
		eiltypes.Arbitrum: ethcommon.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831"),
	})
}

func testAccount() *account.BaseMultichainAccount {
	return account.NewBaseMultichainAccount(map[eiltypes.ChainId]ethcommon.Address{
		eiltypes.Optimism: ethcommon.HexToAddress("0x1111111111111111111111111111111111111111"),
		eiltypes.Arbitrum: ethcommon.HexToAddress("0x1111111111111111111111111111111111111111"),
	}, account.NewSimSigner(ethcommon.HexToAddress("0xaa")))
}

func testCandidates() *xlp.SimCandidateSource {
	src := xlp.NewSimCandidateSource()
	src.Add(eiltypes.Arbitrum, xlp.Candidate{
		Address:          ethcommon.HexToAddress("0x0000000000000000000000000000000000000b01"),
		Fee:              big.NewInt(10),
		AvailableDeposit: big.NewInt(1_000_000_000),
	})
	src.Add(eiltypes.Arbitrum, xlp.Candidate{
		Address:          ethcommon.HexToAddress("0x0000000000000000000000000000000000000b02"),
		Fee:              big.NewInt(5),
		AvailableDeposit: big.NewInt(2_000_000_000),
	})
	return src
}

func newTestBuilder(mutate func(*Config)) *CrossChainBuilder {
	watcher := executor.NewSimWatcher()
	watcher.AutoIssue = true
	cfg := Config{
		Env:        testEnv(),
		Candidates: testCandidates(),
		Bundler:    account.NewSimBundler(),
		Confirmer:  executor.NewSimConfirmer(),
		Watcher:    watcher,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

func voucherRequest(refID string) voucher.Request {
	return voucher.Request{
		RefID:              refID,
		DestinationChainID: eiltypes.Arbitrum,
		Tokens: []multichain.TokenAmount{{
			Token:  testToken(),
			Amount: eiltypes.FixedUint64(90_000000),
		}},
	}
}

func TestStartBatchRequiresAccount(t *testing.T) {
	b := newTestBuilder(nil)
	_, err := b.StartBatch(eiltypes.Optimism)
	assert.True(t, errors.Is(err, ErrBuilderState))

	assert.NoError(t, b.UseAccount(testAccount()))
	_, err = b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
}

func TestUseAccountOnlyOnce(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))
	err := b.UseAccount(testAccount())
	assert.True(t, errors.Is(err, ErrBuilderState))
}

func TestStartBatchRejectsUnknownChain(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	_, err := b.StartBatch(eiltypes.ChainId(999))
	assert.True(t, errors.Is(err, eiltypes.ErrUnsupportedChain))
}

func TestSecondBatchNeedsFirstClosed(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	_, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	_, err = b.StartBatch(eiltypes.Arbitrum)
	assert.True(t, errors.Is(err, ErrBatchOpen))
}

// full happy path: a producing batch on one chain, a consuming batch on
// another, finalize, execute, and the exact event sequence
func TestProducerConsumerEndToEnd(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	batchA, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	batchA, err = batchA.AddVoucherRequest(voucherRequest("v1"))
	assert.NoError(t, err)
	batchA.AddAction(&actions.ApproveAction{
		Token:   testToken(),
		Spender: ethcommon.HexToAddress("0x00000000000000000000000000000000000000A1"),
		Value:   eiltypes.FixedUint64(90_000000),
	})
	b, err = batchA.EndBatch()
	assert.NoError(t, err)

	batchB, err := b.StartBatch(eiltypes.Arbitrum)
	assert.NoError(t, err)
	batchB, err = batchB.UseVoucher("v1")
	assert.NoError(t, err)
	batchB.AddAction(&actions.ApproveAction{
		Token:   testToken(),
		Spender: ethcommon.HexToAddress("0x77"),
		Value:   eiltypes.FixedUint64(90_000000),
	}).AddAction(&actions.TransferAction{
		Token:     testToken(),
		Recipient: ethcommon.HexToAddress("0x99"),
		Amount:    eiltypes.FixedUint64(90_000000),
	})
	b, err = batchB.EndBatch()
	assert.NoError(t, err)

	exec, err := b.Finalize(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, Signed, b.State())
	assert.Equal(t, exec, b.Executor())

	var mu sync.Mutex
	var events []executor.CallbackData
	err = exec.Execute(context.Background(), func(data executor.CallbackData) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, data)
	})
	assert.NoError(t, err)

	want := []struct {
		index int
		typ   executor.CallbackType
	}{
		{0, executor.Executing},
		{0, executor.WaitingForVouchers},
		{0, executor.VoucherIssued},
		{0, executor.Done},
		{1, executor.Executing},
		{1, executor.Done},
	}
	assert.Equal(t, len(want), len(events))
	for i, w := range want {
		assert.Equal(t, w.index, events[i].Index, "event %d", i)
		assert.Equal(t, w.typ, events[i].Type, "event %d", i)
	}
}

// consuming a voucher before its producing batch exists fails at the
// call, not at execution
func TestUseVoucherBeforeRegistration(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	batchB, err := b.StartBatch(eiltypes.Arbitrum)
	assert.NoError(t, err)
	_, err = batchB.UseVoucher("v1")
	assert.True(t, errors.Is(err, voucher.ErrVoucherNotFound))
}

// an unconsumed voucher aborts finalize; the builder stays usable and a
// corrected operation finalizes
func TestUnconsumedVoucherAbortsFinalize(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	batchA, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	batchA, err = batchA.AddVoucherRequest(voucherRequest("v1"))
	assert.NoError(t, err)
	b, err = batchA.EndBatch()
	assert.NoError(t, err)

	_, err = b.Finalize(context.Background())
	assert.True(t, errors.Is(err, voucher.ErrUnconsumedVoucher))
	assert.Contains(t, err.Error(), "v1")
	assert.Equal(t, ReadyToBuild, b.State())

	// append the missing consumer and retry
	batchB, err := b.StartBatch(eiltypes.Arbitrum)
	assert.NoError(t, err)
	batchB, err = batchB.UseVoucher("v1")
	assert.NoError(t, err)
	b, err = batchB.EndBatch()
	assert.NoError(t, err)

	_, err = b.Finalize(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, Signed, b.State())
}

func TestFinalizeOnlyOnce(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	_, err := b.Finalize(context.Background())
	assert.NoError(t, err)

	_, err = b.Finalize(context.Background())
	assert.True(t, errors.Is(err, ErrBuilderState))
}

func TestSameChainVoucherRejected(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	batch, err := b.StartBatch(eiltypes.Arbitrum)
	assert.NoError(t, err)
	_, err = batch.AddVoucherRequest(voucherRequest("v1"))
	assert.True(t, errors.Is(err, voucher.ErrSameChainVoucher))
}

func TestOneProducedVoucherPerBatch(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	batch, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	batch, err = batch.AddVoucherRequest(voucherRequest("v1"))
	assert.NoError(t, err)
	_, err = batch.AddVoucherRequest(voucherRequest("v2"))
	assert.True(t, errors.Is(err, ErrProducedVoucherLimit))
}

func TestOneConsumedVoucherPerBatch(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	batchA, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	batchA, err = batchA.AddVoucherRequest(voucherRequest("v1"))
	assert.NoError(t, err)
	b, err = batchA.EndBatch()
	assert.NoError(t, err)

	batchB, err := b.StartBatch(eiltypes.Arbitrum)
	assert.NoError(t, err)
	batchB, err = batchB.UseVoucher("v1")
	assert.NoError(t, err)
	_, err = batchB.UseVoucher("v1")
	assert.True(t, errors.Is(err, ErrConsumedVoucherLimit))
}

func TestDuplicateRefIDRejectedAtBatchClose(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	batchA, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	batchA, err = batchA.AddVoucherRequest(voucherRequest("v1"))
	assert.NoError(t, err)
	b, err = batchA.EndBatch()
	assert.NoError(t, err)

	batchC, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	batchC, err = batchC.AddVoucherRequest(voucherRequest("v1"))
	assert.NoError(t, err)
	_, err = batchC.EndBatch()
	assert.True(t, errors.Is(err, voucher.ErrDuplicateVoucher))
}

// a runtime variable set in one batch is usable in the next; an
// undeclared one fails at batch close
func TestRuntimeVarCrossBatch(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	setVar, err := actions.NewSetVarAction("bal", actions.FunctionCall{
		Target: ethcommon.HexToAddress("0x42"),
		ABI:    multichain.ERC20ABI(),
		Method: "balanceOf",
		Args:   []interface{}{ethcommon.HexToAddress("0x11")},
	})
	assert.NoError(t, err)

	batchA, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	b, err = batchA.AddAction(setVar).EndBatch()
	assert.NoError(t, err)

	v, err := eiltypes.NewRuntimeVar("bal")
	assert.NoError(t, err)
	batchB, err := b.StartBatch(eiltypes.Arbitrum)
	assert.NoError(t, err)
	_, err = batchB.AddAction(&actions.TransferAction{
		Token:     testToken(),
		Recipient: ethcommon.HexToAddress("0x99"),
		Amount:    eiltypes.FromVar(v),
	}).EndBatch()
	assert.NoError(t, err)
}

func TestUndeclaredRuntimeVarFailsAtBatchClose(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	v, err := eiltypes.NewRuntimeVar("ghost")
	assert.NoError(t, err)
	batch, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	_, err = batch.AddAction(&actions.TransferAction{
		Token:     testToken(),
		Recipient: ethcommon.HexToAddress("0x99"),
		Amount:    eiltypes.FromVar(v),
	}).EndBatch()
	assert.True(t, errors.Is(err, actions.ErrUndeclaredVar))
}

// a batch whose close failed can be abandoned and the operation rebuilt
func TestAbandonReopensBuilderAfterFailedClose(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	v, err := eiltypes.NewRuntimeVar("ghost")
	assert.NoError(t, err)
	batch, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	_, err = batch.AddAction(&actions.TransferAction{
		Token:     testToken(),
		Recipient: ethcommon.HexToAddress("0x99"),
		Amount:    eiltypes.FromVar(v),
	}).EndBatch()
	assert.True(t, errors.Is(err, actions.ErrUndeclaredVar))

	_, err = b.StartBatch(eiltypes.Arbitrum)
	assert.True(t, errors.Is(err, ErrBatchOpen))

	batch.Abandon()

	batch, err = b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	batch.AddAction(&actions.TransferAction{
		Token:     testToken(),
		Recipient: ethcommon.HexToAddress("0x99"),
		Amount:    eiltypes.FixedUint64(1_000000),
	})
	b, err = batch.EndBatch()
	assert.NoError(t, err)
	assert.Equal(t, 1, b.BatchCount())

	_, err = b.Finalize(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, Signed, b.State())
}

// abandoning a batch that used a voucher must leave the voucher
// spendable by the batch built in its place
func TestAbandonedBatchLeavesVoucherSpendable(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	batchA, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	batchA, err = batchA.AddVoucherRequest(voucherRequest("v1"))
	assert.NoError(t, err)
	b, err = batchA.EndBatch()
	assert.NoError(t, err)

	batchB, err := b.StartBatch(eiltypes.Arbitrum)
	assert.NoError(t, err)
	batchB, err = batchB.UseVoucher("v1")
	assert.NoError(t, err)
	batchB.Abandon()

	batchB, err = b.StartBatch(eiltypes.Arbitrum)
	assert.NoError(t, err)
	batchB, err = batchB.UseVoucher("v1")
	assert.NoError(t, err)
	b, err = batchB.EndBatch()
	assert.NoError(t, err)
	assert.NoError(t, b.Coordinator().ValidateAllConsumed())
}

// a variable is not visible inside the batch that sets it
func TestRuntimeVarNotVisibleInOwnBatch(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	setVar, err := actions.NewSetVarAction("bal", actions.FunctionCall{
		Target: ethcommon.HexToAddress("0x42"),
		ABI:    multichain.ERC20ABI(),
		Method: "balanceOf",
		Args:   []interface{}{ethcommon.HexToAddress("0x11")},
	})
	assert.NoError(t, err)

	v, err := eiltypes.NewRuntimeVar("bal")
	assert.NoError(t, err)
	batch, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	_, err = batch.AddAction(setVar).AddAction(&actions.TransferAction{
		Token:     testToken(),
		Recipient: ethcommon.HexToAddress("0x99"),
		Amount:    eiltypes.FromVar(v),
	}).EndBatch()
	assert.True(t, errors.Is(err, actions.ErrUndeclaredVar))
}

func TestNoEligibleXlpAbortsFinalize(t *testing.T) {
	b := newTestBuilder(func(cfg *Config) {
		cfg.Candidates = xlp.NewSimCandidateSource() // empty pool
	})
	assert.NoError(t, b.UseAccount(testAccount()))

	batchA, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	batchA, err = batchA.AddVoucherRequest(voucherRequest("v1"))
	assert.NoError(t, err)
	b, err = batchA.EndBatch()
	assert.NoError(t, err)

	batchB, err := b.StartBatch(eiltypes.Arbitrum)
	assert.NoError(t, err)
	batchB, err = batchB.UseVoucher("v1")
	assert.NoError(t, err)
	b, err = batchB.EndBatch()
	assert.NoError(t, err)

	_, err = b.Finalize(context.Background())
	assert.True(t, errors.Is(err, xlp.ErrNoEligibleXlp))
	assert.Equal(t, ReadyToBuild, b.State())
}

// finalize converts the voucher into the contract-level request with the
// cheapest provider pinned and an expiry in the future
func TestFinalizeBuildsContractRequest(t *testing.T) {
	b := newTestBuilder(nil)
	assert.NoError(t, b.UseAccount(testAccount()))

	batchA, err := b.StartBatch(eiltypes.Optimism)
	assert.NoError(t, err)
	batchA, err = batchA.AddVoucherRequest(voucherRequest("v1"))
	assert.NoError(t, err)
	b, err = batchA.EndBatch()
	assert.NoError(t, err)

	batchB, err := b.StartBatch(eiltypes.Arbitrum)
	assert.NoError(t, err)
	batchB, err = batchB.UseVoucher("v1")
	assert.NoError(t, err)
	b, err = batchB.EndBatch()
	assert.NoError(t, err)

	exec, err := b.Finalize(context.Background())
	assert.NoError(t, err)

	info, err := b.Coordinator().Get("v1")
	assert.NoError(t, err)
	assert.NotNil(t, info.SelectedXlp)
	// the cheaper provider wins
	assert.Equal(t, ethcommon.HexToAddress("0x0000000000000000000000000000000000000b02"), *info.SelectedXlp)

	req := info.ContractRequest
	assert.NotNil(t, req)
	assert.Equal(t, eiltypes.Optimism, req.Origination.ChainID)
	assert.Equal(t, eiltypes.Arbitrum, req.Destination.ChainID)
	assert.Equal(t, []ethcommon.Address{*info.SelectedXlp}, req.Origination.AllowedXlps)
	assert.Equal(t, big.NewInt(90_000000), req.Origination.Assets[0].Amount)
	assert.True(t, req.Destination.ExpiresAt.Int64() > 0)
	assert.NotEqual(t, userop.VoucherRequest{}, *req)

	// both ops are signed and chain-bound
	batches := exec.Batches()
	assert.Equal(t, 2, len(batches))
	for _, scb := range batches {
		assert.NotEmpty(t, scb.UserOp.Signature)
		assert.Equal(t, scb.ChainID, scb.UserOp.ChainID)
		assert.Equal(t, scb.UserOp.SigningHash(), scb.UserOpHash)
	}
	assert.Equal(t, "v1", batches[0].ProducedRefID)
	assert.Equal(t, "v1", batches[1].ConsumedRefID)
}
