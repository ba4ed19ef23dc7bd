package partition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/alphabill-org/guild/keyvaluedb"
	"github.com/alphabill-org/guild/logger"
	"github.com/alphabill-org/guild/observability"
	"github.com/alphabill-org/guild/txbuffer"
	"github.com/alphabill-org/guild/txsystem"
	"github.com/alphabill-org/guild/types"
)

var ErrBlockNotFound = errors.New("block not found")

type (
	Observability interface {
		Tracer(name string, options ...trace.TracerOption) trace.Tracer
		Meter(name string, opts ...metric.MeterOption) metric.Meter
		Logger() *slog.Logger
	}

	/*
	Node is the single authority of the guild partition: it accepts transactions
	into the buffer and periodically executes them as a block. Every block is
	persisted before the round is committed in the transaction system so the
	state can be rebuilt by replaying the blocks.

	Only the goroutine running the Run loop executes transactions, public methods
	are safe to call concurrently with it.
	*/
	Node struct {
		configuration     *configuration
		transactionSystem txsystem.TransactionSystem
		txBuffer          *txbuffer.TxBuffer
		blockStore        keyvaluedb.KeyValueDB
		txIndexer         *TxIndexer
		log               *slog.Logger
		tracer            trace.Tracer

		// header of the latest block, guarded by mu
		mu         sync.RWMutex
		lastHeader *types.Header
		lastHash   []byte

		execTxCnt metric.Int64Counter
		execTxDur metric.Float64Histogram
		blockSize metric.Int64Counter
	}
)

/*
NewNode creates a new instance of the partition node and brings the state of
the transaction system up to date with the block store. Functions implementing
the NodeOption interface can be used to override default configuration values.
*/
func NewNode(
	ctx context.Context,
	partitionID types.PartitionID,
	txSystem txsystem.TransactionSystem, // used transaction system
	observe Observability,
	nodeOptions ...NodeOption, // additional optional configuration parameters
) (*Node, error) {
	tracer := observe.Tracer("partition.node")
	ctx, span := tracer.Start(ctx, "partition.NewNode")
	defer span.End()

	conf, err := loadAndValidateConfiguration(partitionID, txSystem, nodeOptions...)
	if err != nil {
		return nil, fmt.Errorf("invalid node configuration: %w", err)
	}
	buf, err := txbuffer.New(conf.txBufferSize, conf.hashAlgorithm, partitionID, observe)
	if err != nil {
		return nil, fmt.Errorf("creating tx buffer: %w", err)
	}

	n := &Node{
		configuration:     conf,
		transactionSystem: txSystem,
		txBuffer:          buf,
		blockStore:        conf.blockStore,
		txIndexer:         NewTxIndexer(conf.hashAlgorithm, conf.txIndexStore, observe.Logger()),
		log:               observe.Logger(),
		tracer:            tracer,
	}

	if err := n.initMetrics(observe); err != nil {
		return nil, fmt.Errorf("initialize metrics: %w", err)
	}
	if err := n.initState(ctx); err != nil {
		return nil, fmt.Errorf("node state initialization failed: %w", err)
	}
	if err := n.initTxIndex(ctx); err != nil {
		return nil, fmt.Errorf("tx index initialization failed: %w", err)
	}
	return n, nil
}

func (n *Node) initMetrics(observe Observability) (err error) {
	m := observe.Meter("partition.node")

	_, err = m.Int64ObservableCounter("round", metric.WithDescription("latest committed round"),
		metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
			io.Observe(int64(n.transactionSystem.CommittedRound())) /* #nosec G115 its unlikely that value of round exceeds int64 max value */
			return nil
		}))
	if err != nil {
		return fmt.Errorf("creating counter for round number: %w", err)
	}

	n.blockSize, err = m.Int64Counter("block.size", metric.WithDescription("Number of transactions in the blocks made by the node"), metric.WithUnit("{transaction}"))
	if err != nil {
		return fmt.Errorf("creating counter for block size: %w", err)
	}
	n.execTxCnt, err = m.Int64Counter("exec.tx.count", metric.WithDescription("Number of transactions processed by the node"), metric.WithUnit("{transaction}"))
	if err != nil {
		return fmt.Errorf("creating counter for processed tx: %w", err)
	}
	n.execTxDur, err = m.Float64Histogram("exec.tx.time",
		metric.WithDescription("How long it took to process transaction (validate and execute)"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(200e-6, 400e-6, 800e-6, 0.0016, 0.003, 0.006, 0.015, 0.03))
	if err != nil {
		return fmt.Errorf("creating histogram for processed tx: %w", err)
	}
	return nil
}

/*
initState replays the blocks which build on the state of the transaction
system. Never look further back from the committed round of the state.
*/
func (n *Node) initState(ctx context.Context) (err error) {
	ctx, span := n.tracer.Start(ctx, "node.initState")
	defer span.End()

	committed := n.transactionSystem.CommittedRound()
	if committed > 0 {
		var b types.Block
		found, err := n.blockStore.Read(keyvaluedb.Uint64ToKey(committed), &b)
		if err != nil {
			return fmt.Errorf("reading block %d: %w", committed, err)
		}
		if found {
			if err := n.setLatestBlock(&b); err != nil {
				return err
			}
		}
	}

	dbIt := n.blockStore.Find(keyvaluedb.Uint64ToKey(committed + 1))
	defer func() { err = errors.Join(err, dbIt.Close()) }()

	for ; dbIt.Valid(); dbIt.Next() {
		var b types.Block
		roundNo := keyvaluedb.KeyToUint64(dbIt.Key())
		if err = dbIt.Value(&b); err != nil {
			return fmt.Errorf("failed to read block %v from db: %w", roundNo, err)
		}
		if err = n.replayBlock(ctx, &b); err != nil {
			return fmt.Errorf("failed to replay block %v: %w", roundNo, err)
		}
	}

	n.log.InfoContext(ctx, fmt.Sprintf("State initialized from persistent store up to round %d", n.transactionSystem.CommittedRound()))
	return nil
}

// initTxIndex indexes the stored blocks the tx index doesn't know about.
func (n *Node) initTxIndex(ctx context.Context) (err error) {
	dbIt := n.blockStore.Find(keyvaluedb.Uint64ToKey(n.txIndexer.LatestIndexedRound() + 1))
	defer func() { err = errors.Join(err, dbIt.Close()) }()

	for ; dbIt.Valid(); dbIt.Next() {
		var b types.Block
		if err = dbIt.Value(&b); err != nil {
			return fmt.Errorf("failed to read block %v from db: %w", keyvaluedb.KeyToUint64(dbIt.Key()), err)
		}
		if err = n.txIndexer.IndexBlock(ctx, &b); err != nil {
			return err
		}
	}
	return nil
}

/*
replayBlock re-executes the transactions of the stored block, the outcome of
every transaction and the resulting state must match the block.
*/
func (n *Node) replayBlock(ctx context.Context, b *types.Block) (rErr error) {
	if err := b.IsValid(); err != nil {
		return fmt.Errorf("invalid block: %w", err)
	}
	if b.Header.PartitionID != n.configuration.partitionID {
		return fmt.Errorf("block is for partition %s, expected %s", b.Header.PartitionID, n.configuration.partitionID)
	}
	if err := n.verifyPreviousBlockHash(b.Header); err != nil {
		return err
	}
	if err := n.transactionSystem.BeginBlock(b.Header.Round, b.Header.Timestamp); err != nil {
		return fmt.Errorf("starting round %d: %w", b.Header.Round, err)
	}
	defer func() {
		if rErr != nil {
			n.transactionSystem.Revert()
		}
	}()

	for i, txr := range b.Transactions {
		if txr == nil || txr.ServerMetadata == nil {
			return fmt.Errorf("transaction record %d is incomplete", i)
		}
		sm, err := n.transactionSystem.Execute(txr.TransactionOrder)
		if sm == nil {
			return fmt.Errorf("transaction %d is not valid: %w", i, err)
		}
		if sm.SuccessIndicator != txr.ServerMetadata.SuccessIndicator {
			return fmt.Errorf("transaction %d: status %d does not match recorded status %d", i, sm.SuccessIndicator, txr.ServerMetadata.SuccessIndicator)
		}
	}
	summary, err := n.transactionSystem.EndBlock()
	if err != nil {
		return fmt.Errorf("ending round %d: %w", b.Header.Round, err)
	}
	if !bytes.Equal(summary.Root, b.StateHash) {
		return fmt.Errorf("transaction system state does not match block, expected '%X', got '%X'", b.StateHash, summary.Root)
	}
	if err := n.transactionSystem.Commit(); err != nil {
		return fmt.Errorf("committing round %d: %w", b.Header.Round, err)
	}
	return n.setLatestBlock(b)
}

func (n *Node) verifyPreviousBlockHash(h *types.Header) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.lastHeader != nil && !bytes.Equal(h.PreviousBlockHash, n.lastHash) {
		return fmt.Errorf("previous block hash %X does not match hash of block %d %X", h.PreviousBlockHash, n.lastHeader.Round, n.lastHash)
	}
	return nil
}

func (n *Node) setLatestBlock(b *types.Block) error {
	h, err := b.Hash(n.configuration.hashAlgorithm)
	if err != nil {
		return fmt.Errorf("hashing block %d: %w", b.GetRoundNumber(), err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.lastHeader = b.Header
	n.lastHash = h
	return nil
}

/*
Run produces a block on every tick of the block interval until the ctx is
cancelled. Rounds without transactions do not produce a block.
*/
func (n *Node) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.configuration.blockInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			n.log.DebugContext(ctx, "node main loop exit", logger.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
			if err := n.produceBlock(ctx, n.configuration.clock()); err != nil {
				return fmt.Errorf("producing block: %w", err)
			}
		}
	}
}

func (n *Node) produceBlock(ctx context.Context, now time.Time) (rErr error) {
	if n.txBuffer.Len() == 0 {
		return nil
	}
	round := n.transactionSystem.CommittedRound() + 1
	ctx, span := n.tracer.Start(ctx, "node.produceBlock", trace.WithNewRoot(), trace.WithAttributes(observability.Round(round)))
	defer func() {
		if rErr != nil {
			span.RecordError(rErr)
			span.SetStatus(codes.Error, rErr.Error())
		}
		span.End()
	}()

	header := &types.Header{
		PartitionID: n.configuration.partitionID,
		Round:       round,
		Timestamp:   uint64(now.Unix()), /* #nosec G115 block time is after the epoch */
	}
	n.mu.RLock()
	if n.lastHeader != nil {
		header.PreviousBlockHash = n.lastHash
		// block time never goes backwards
		header.Timestamp = max(header.Timestamp, n.lastHeader.Timestamp)
	}
	n.mu.RUnlock()

	if err := n.transactionSystem.BeginBlock(header.Round, header.Timestamp); err != nil {
		return fmt.Errorf("starting round %d: %w", round, err)
	}
	defer func() {
		if rErr != nil {
			n.transactionSystem.Revert()
		}
	}()

	b := &types.Block{Header: header, Transactions: []*types.TransactionRecord{}}
	for len(b.Transactions) < n.configuration.maxTxPerBlock && n.txBuffer.Len() > 0 {
		tx, err := n.txBuffer.Remove(ctx)
		if err != nil {
			return fmt.Errorf("reading tx buffer: %w", err)
		}
		if txr := n.process(ctx, tx, round); txr != nil {
			b.Transactions = append(b.Transactions, txr)
		}
	}
	if len(b.Transactions) == 0 {
		n.transactionSystem.Revert()
		return nil
	}

	summary, err := n.transactionSystem.EndBlock()
	if err != nil {
		return fmt.Errorf("ending round %d: %w", round, err)
	}
	b.StateHash = summary.Root
	if err := n.finalizeBlock(ctx, b); err != nil {
		return err
	}
	n.blockSize.Add(ctx, int64(len(b.Transactions)))
	n.log.InfoContext(ctx, fmt.Sprintf("block %d with %d transactions, state %X", round, len(b.Transactions), summary.Root), logger.Round(round))
	return nil
}

/*
process executes the transaction and returns the record to be included into the
block. Nil is returned for the transactions which are not valid in the round.
*/
func (n *Node) process(ctx context.Context, tx *types.TransactionOrder, round uint64) *types.TransactionRecord {
	sm, err := n.validateAndExecuteTx(ctx, tx, round)
	if sm == nil {
		n.log.WarnContext(ctx, "dropping invalid transaction", logger.Error(err), logger.UnitID(tx.UnitID()), logger.Round(round))
		return nil
	}
	if err != nil {
		n.log.DebugContext(ctx, fmt.Sprintf("%s transaction failed", tx.PayloadType()), logger.Error(err), logger.UnitID(tx.UnitID()), logger.Round(round))
	}
	return &types.TransactionRecord{TransactionOrder: tx, ServerMetadata: sm}
}

func (n *Node) validateAndExecuteTx(ctx context.Context, tx *types.TransactionOrder, round uint64) (sm *types.ServerMetadata, rErr error) {
	defer func(start time.Time) {
		txTypeAttr := observability.TxType(tx.PayloadType())
		n.execTxCnt.Add(ctx, 1, metric.WithAttributeSet(attribute.NewSet(txTypeAttr, attribute.String("status", statusCodeOfTx(sm, rErr)))))
		n.execTxDur.Record(ctx, time.Since(start).Seconds(), metric.WithAttributeSet(attribute.NewSet(txTypeAttr)))
	}(time.Now())

	if err := n.configuration.txValidator.Validate(tx, round); err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	return n.transactionSystem.Execute(tx)
}

func statusCodeOfTx(sm *types.ServerMetadata, err error) string {
	switch {
	case err == nil:
		return "ok"
	case sm != nil:
		return "failed"
	case errors.Is(err, ErrTxTimeout), errors.Is(err, txsystem.ErrTransactionExpired):
		return "tx.timeout"
	case errors.Is(err, txsystem.ErrInvalidPartitionIdentifier):
		return "invalid.partition"
	default:
		return "err"
	}
}

// finalizeBlock adds the block to the blockStore and commits the round.
func (n *Node) finalizeBlock(ctx context.Context, b *types.Block) error {
	blockNumber := b.GetRoundNumber()
	ctx, span := n.tracer.Start(ctx, "Node.finalizeBlock", trace.WithAttributes(attribute.Int64("block.number", int64(blockNumber)))) /* #nosec G115 its unlikely that value of round exceeds int64 max value */
	defer span.End()

	// persist the block _before_ committing to tx system
	// if write fails but the round is committed in tx system, there's no way back,
	// but if commit fails, we just remove the block from the store
	roundKey := keyvaluedb.Uint64ToKey(blockNumber)
	if err := n.blockStore.Write(roundKey, b); err != nil {
		return fmt.Errorf("db write failed, %w", err)
	}
	if err := n.transactionSystem.Commit(); err != nil {
		err = fmt.Errorf("unable to finalize block %d: %w", blockNumber, err)
		if err2 := n.blockStore.Delete(roundKey); err2 != nil {
			err = errors.Join(err, fmt.Errorf("unable to delete block %d from store: %w", blockNumber, err2))
		}
		return err
	}
	if err := n.setLatestBlock(b); err != nil {
		return err
	}
	if err := n.txIndexer.IndexBlock(ctx, b); err != nil {
		// the index is rebuilt from the block store on restart
		n.log.WarnContext(ctx, "indexing block", logger.Error(err), logger.Round(blockNumber))
	}
	return nil
}

/*
SubmitTx validates the transaction against the next round and adds it to the
transaction buffer. Returns the hash of the transaction order.
*/
func (n *Node) SubmitTx(ctx context.Context, tx *types.TransactionOrder) (txOrderHash []byte, err error) {
	if err = n.configuration.txValidator.Validate(tx, n.transactionSystem.CommittedRound()+1); err != nil {
		return nil, err
	}
	return n.txBuffer.Add(ctx, tx)
}

// GetBlock returns the block of the round, ErrBlockNotFound when the round didn't produce a block.
func (n *Node) GetBlock(_ context.Context, blockNr uint64) (*types.Block, error) {
	var bl types.Block
	found, err := n.blockStore.Read(keyvaluedb.Uint64ToKey(blockNr), &bl)
	if err != nil {
		return nil, fmt.Errorf("failed to read block from round %v from db, %w", blockNr, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: round %d", ErrBlockNotFound, blockNr)
	}
	return &bl, nil
}

// LatestBlockNumber returns the latest committed round number.
func (n *Node) LatestBlockNumber() uint64 {
	return n.transactionSystem.CommittedRound()
}

/*
GetTransactionRecord returns the record of the transaction order with hash
"txoHash" and the location of the record in the block store.
*/
func (n *Node) GetTransactionRecord(ctx context.Context, txoHash []byte) (*types.TransactionRecord, *TxIndex, error) {
	index, err := n.txIndexer.Read(txoHash)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to query tx index: %w", err)
	}
	b, err := n.GetBlock(ctx, index.RoundNumber)
	if err != nil {
		return nil, nil, err
	}
	if index.TxOrderIndex < 0 || index.TxOrderIndex >= len(b.Transactions) {
		return nil, nil, fmt.Errorf("transaction index %d is invalid for block %d", index.TxOrderIndex, index.RoundNumber)
	}
	return b.Transactions[index.TxOrderIndex], index, nil
}

func (n *Node) TransactionSystemState() txsystem.StateReader {
	return n.transactionSystem.State()
}

func (n *Node) PartitionID() types.PartitionID {
	return n.configuration.partitionID
}
