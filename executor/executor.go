// Cross-chain execution engine. Drives every batch of a finalized
// operation to a terminal state, submitting independent batches
// concurrently and holding each consumer batch until its producer batch
// confirmed and the voucher issuance was observed.

package executor

import (
	"context"
	"errors"
	"sync"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
	logger "github.com/sirupsen/logrus"

	"github.com/eil-protocol/eil-go/account"
	"github.com/eil-protocol/eil-go/chainenv"
	"github.com/eil-protocol/eil-go/eiltypes"
	"github.com/eil-protocol/eil-go/opstore"
	"github.com/eil-protocol/eil-go/voucher"
)

// Confirmer waits until a submitted bundler transaction is included.
type Confirmer interface {
	// WaitMined blocks until txHash is mined on chainID. A wrapped
	// ErrOnChainRevert reports a reverted inclusion.
	WaitMined(ctx context.Context, chainID eiltypes.ChainId, txHash ethcommon.Hash) error
}

// VoucherWatcher resolves when a voucher issuance event is observed on
// the producing chain.
type VoucherWatcher interface {
	WaitForIssuance(ctx context.Context, chainID eiltypes.ChainId, refID string) error
}

type Config struct {
	// OpID identifies this operation in logs and the batch store.
	OpID string

	Env       *chainenv.NetworkEnvironment
	Bundler   account.BundlerClient
	Confirmer Confirmer
	Watcher   VoucherWatcher

	// Store persists per-batch progress. Optional.
	Store opstore.BatchStore

	// ConfirmationTimeout overrides the environment's value when positive.
	ConfirmationTimeout time.Duration
}

// CrossChainExecutor runs one finalized operation. Execute may be called
// once.
type CrossChainExecutor struct {
	cfg     Config
	batches []*SingleChainBatch
	coord   *voucher.Coordinator
	timeout time.Duration

	mu      sync.Mutex
	started bool
}

func New(cfg Config, batches []*SingleChainBatch, coord *voucher.Coordinator) *CrossChainExecutor {
	timeout := cfg.ConfirmationTimeout
	if timeout <= 0 && cfg.Env != nil {
		timeout = cfg.Env.Config().ConfirmationTimeout
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CrossChainExecutor{
		cfg:     cfg,
		batches: batches,
		coord:   coord,
		timeout: timeout,
	}
}

// Batches returns the operation's batches in submission order.
func (e *CrossChainExecutor) Batches() []*SingleChainBatch {
	return e.batches
}

// Execute drives all batches to a terminal state and returns the first
// failure, if any. After the first failure, or once ctx is cancelled,
// in-flight batches run to completion but no new batch enters
// submission; batches that have not started stay pending and emit no
// events.
func (e *CrossChainExecutor) Execute(ctx context.Context, cb Callback) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrExecutionAlreadyStarted
	}
	e.started = true
	e.mu.Unlock()

	for _, b := range e.batches {
		if len(b.UserOp.Signature) == 0 {
			return ErrBatchNotSigned(b.Index)
		}
	}

	logger.WithFields(logger.Fields{
		"opId":    e.cfg.OpID,
		"batches": len(e.batches),
	}).Info("starting cross-chain execution")

	// consumer index -> producer indices it must wait on
	producers := make(map[int][]int)
	for _, edge := range e.coord.DependencyEdges() {
		producers[edge.ConsumerIndex] = append(producers[edge.ConsumerIndex], edge.ProducerIndex)
	}

	confirmed := make(map[int]chan struct{}, len(e.batches))
	for _, b := range e.batches {
		confirmed[b.Index] = make(chan struct{})
		e.record(b, eiltypes.BatchPending, ethcommon.Hash{}, "")
	}

	abort := make(chan struct{})
	var abortOnce sync.Once
	var errMu sync.Mutex
	var firstErr error
	fail := func(err error) {
		errMu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		errMu.Unlock()
		abortOnce.Do(func() { close(abort) })
	}

	// callbacks are serialized
	var cbMu sync.Mutex
	emit := func(data CallbackData) {
		if cb == nil {
			return
		}
		cbMu.Lock()
		defer cbMu.Unlock()
		cb(data)
	}

	var wg sync.WaitGroup
	for _, b := range e.batches {
		wg.Add(1)
		go func(b *SingleChainBatch) {
			defer wg.Done()
			e.runBatch(ctx, b, producers[b.Index], confirmed, abort, emit, fail)
		}(b)
	}
	wg.Wait()

	errMu.Lock()
	defer errMu.Unlock()
	return firstErr
}

func (e *CrossChainExecutor) runBatch(
	ctx context.Context,
	b *SingleChainBatch,
	producerIdx []int,
	confirmed map[int]chan struct{},
	abort chan struct{},
	emit func(CallbackData),
	fail func(error),
) {
	log := logger.WithFields(logger.Fields{
		"opId":    e.cfg.OpID,
		"batch":   b.Index,
		"chainId": b.ChainID,
	})

	waitCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	for _, p := range producerIdx {
		select {
		case <-confirmed[p]:
		case <-abort:
			// a sibling failed before this batch started
			log.Debug("batch skipped after sibling failure")
			return
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				// cancelled while waiting; the batch never started and
				// stays pending with no events
				log.Debug("batch withheld after cancellation")
				fail(ctx.Err())
				return
			}
			e.failBatch(b, ErrBatchTimedOut(b.Index, e.timeout), ethcommon.Hash{}, emit, fail)
			return
		}
	}

	select {
	case <-abort:
		log.Debug("batch skipped after sibling failure")
		return
	case <-ctx.Done():
		log.Debug("batch withheld after cancellation")
		fail(ctx.Err())
		return
	default:
	}

	e.record(b, eiltypes.BatchSubmitting, ethcommon.Hash{}, "")
	emit(CallbackData{Index: b.Index, Type: Executing, ChainID: b.ChainID, UserOpHash: b.UserOpHash})

	entryPoint, err := e.cfg.Env.EntryPoint(b.ChainID)
	if err != nil {
		e.failBatch(b, err, ethcommon.Hash{}, emit, fail)
		return
	}

	txHash, err := e.cfg.Bundler.SendUserOperation(waitCtx, b.UserOp, entryPoint)
	if err != nil {
		log.WithField("err", err).Error("bundler rejected user operation")
		e.failBatch(b, err, ethcommon.Hash{}, emit, fail)
		return
	}
	log.WithField("txHash", txHash.Hex()).Debug("user operation submitted")
	e.record(b, eiltypes.BatchSubmitted, txHash, "")

	if err := e.cfg.Confirmer.WaitMined(waitCtx, b.ChainID, txHash); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = e.waitErr(ctx, b)
		}
		e.failBatch(b, err, txHash, emit, fail)
		return
	}

	if b.ProducedRefID != "" {
		e.record(b, eiltypes.BatchWaitingForVouchers, txHash, "")
		emit(CallbackData{
			Index: b.Index, Type: WaitingForVouchers, ChainID: b.ChainID,
			UserOpHash: b.UserOpHash, TxHash: txHash, RefID: b.ProducedRefID,
		})

		if err := e.cfg.Watcher.WaitForIssuance(waitCtx, b.ChainID, b.ProducedRefID); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = e.waitErr(ctx, b)
			}
			e.failBatch(b, err, txHash, emit, fail)
			return
		}
		emit(CallbackData{
			Index: b.Index, Type: VoucherIssued, ChainID: b.ChainID,
			UserOpHash: b.UserOpHash, TxHash: txHash, RefID: b.ProducedRefID,
		})
	}

	e.record(b, eiltypes.BatchConfirmed, txHash, "")
	emit(CallbackData{Index: b.Index, Type: Done, ChainID: b.ChainID, UserOpHash: b.UserOpHash, TxHash: txHash})
	log.Info("batch confirmed")

	close(confirmed[b.Index])
}

// waitErr distinguishes caller cancellation from the confirmation timeout.
func (e *CrossChainExecutor) waitErr(ctx context.Context, b *SingleChainBatch) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return ErrBatchTimedOut(b.Index, e.timeout)
}

func (e *CrossChainExecutor) failBatch(
	b *SingleChainBatch,
	err error,
	txHash ethcommon.Hash,
	emit func(CallbackData),
	fail func(error),
) {
	e.record(b, eiltypes.BatchFailed, txHash, err.Error())
	emit(CallbackData{
		Index: b.Index, Type: Failed, ChainID: b.ChainID,
		UserOpHash: b.UserOpHash, TxHash: txHash, RevertReason: err.Error(),
	})
	fail(err)
}

// record persists progress when a store is configured. Persistence is
// best effort; a store error never fails the execution.
func (e *CrossChainExecutor) record(b *SingleChainBatch, status eiltypes.BatchStatus, txHash ethcommon.Hash, reason string) {
	if e.cfg.Store == nil {
		return
	}
	row := &opstore.MonitoredBatch{
		OpID:          e.cfg.OpID,
		BatchIndex:    b.Index,
		ChainID:       b.ChainID,
		UserOpHash:    b.UserOpHash.Bytes(),
		Status:        status,
		RevertReason:  reason,
		UpdatedAtUnix: time.Now().Unix(),
	}
	if txHash != (ethcommon.Hash{}) {
		row.TxHash = txHash.Bytes()
	}
	if err := e.cfg.Store.Upsert(row); err != nil {
		logger.WithFields(logger.Fields{
			"opId":  e.cfg.OpID,
			"batch": b.Index,
			"err":   err,
		}).Warn("failed to persist batch status")
	}
}
