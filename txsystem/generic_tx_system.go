package txsystem

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/alphabill-org/guild/logger"
	"github.com/alphabill-org/guild/state"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

var _ TransactionSystem = (*GenericTxSystem)(nil)

var ErrUnknownTxType = errors.New("unknown transaction type")

type GenericTxSystem struct {
	partitionID         types.PartitionID
	hashAlgorithm       crypto.Hash
	state               *state.State
	currentRound        uint64
	currentTimestamp    uint64
	executors           txtypes.TxExecutors
	beginBlockFunctions []func(round uint64) error
	endBlockFunctions   []func(round uint64) error
	roundCommitted      bool
	log                 *slog.Logger
	txCount             metric.Int64Counter
}

type Observability interface {
	Meter(name string, opts ...metric.MeterOption) metric.Meter
	Logger() *slog.Logger
}

func NewGenericTxSystem(partitionID types.PartitionID, modules []txtypes.Module, observe Observability, opts ...Option) (*GenericTxSystem, error) {
	if partitionID == 0 {
		return nil, errors.New("partition ID must be assigned")
	}
	options := DefaultOptions()
	for _, option := range opts {
		option(options)
	}
	txs := &GenericTxSystem{
		partitionID:         partitionID,
		hashAlgorithm:       options.hashAlgorithm,
		state:               options.state,
		currentRound:        options.state.CommittedRound(),
		beginBlockFunctions: options.beginBlockFunctions,
		endBlockFunctions:   options.endBlockFunctions,
		executors:           make(txtypes.TxExecutors),
		roundCommitted:      true,
		log:                 observe.Logger(),
	}

	for _, module := range modules {
		if err := txs.executors.Add(module.TxHandlers()); err != nil {
			return nil, fmt.Errorf("registering tx executors: %w", err)
		}
	}

	if err := txs.initMetrics(observe.Meter("txsystem")); err != nil {
		return nil, fmt.Errorf("initializing metrics: %w", err)
	}

	return txs, nil
}

func (m *GenericTxSystem) StateSummary() (*StateSummary, error) {
	if !m.state.IsCommitted() {
		return nil, ErrStateContainsUncommittedChanges
	}
	return m.getStateSummary()
}

func (m *GenericTxSystem) getStateSummary() (*StateSummary, error) {
	hash, err := m.state.CalculateRoot()
	if err != nil {
		return nil, err
	}
	return &StateSummary{Round: m.currentRound, Root: hash, UnitCount: uint64(m.state.Size())}, nil
}

/*
BeginBlock starts new round. The timestamp is the block time (unix seconds),
transaction handlers see it as "now".
*/
func (m *GenericTxSystem) BeginBlock(round, timestamp uint64) error {
	if round <= m.state.CommittedRound() {
		return fmt.Errorf("round %d is not after committed round %d", round, m.state.CommittedRound())
	}
	if timestamp < m.currentTimestamp {
		return fmt.Errorf("block timestamp %d is before previous block timestamp %d", timestamp, m.currentTimestamp)
	}
	m.currentRound = round
	m.currentTimestamp = timestamp
	m.roundCommitted = false
	for _, function := range m.beginBlockFunctions {
		if err := function(round); err != nil {
			return fmt.Errorf("begin block function call failed: %w", err)
		}
	}
	return nil
}

/*
Execute validates and executes the transaction.

When the transaction is not valid (wrong partition, expired, invalid owner
proof, unknown type) only error is returned and the transaction must not be
included in the block. When the transaction handler fails all the changes made
by the transaction are reverted and both the error and server metadata with
failed status are returned, such transaction is included in the block.
*/
func (m *GenericTxSystem) Execute(tx *types.TransactionOrder) (sm *types.ServerMetadata, rErr error) {
	caller, err := m.validateGenericTransaction(tx)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction: %w", err)
	}
	exeCtx := txtypes.NewExecutionContext(m, caller)

	savepointID := m.state.Savepoint()
	defer func() {
		status := "ok"
		if rErr != nil {
			// transaction execution failed. revert every change made by the transaction order
			m.state.RollbackToSavepoint(savepointID)
			sm = &types.ServerMetadata{
				SuccessIndicator:  types.TxStatusFailed,
				TargetUnits:       []types.UnitID{tx.UnitID()},
				ProcessingDetails: rErr.Error(),
			}
			status = "failed"
			m.log.Debug(fmt.Sprintf("%s failed", tx.PayloadType()), logger.Error(rErr), logger.UnitID(tx.UnitID()), logger.Round(m.currentRound))
		} else {
			m.state.ReleaseToSavepoint(savepointID)
		}
		m.txCount.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("tx", tx.PayloadType()),
			attribute.String("status", status)))
	}()

	m.log.Debug(fmt.Sprintf("execute %s", tx.PayloadType()), logger.UnitID(tx.UnitID()), logger.Data(tx), logger.Round(m.currentRound))
	attr, err := m.executors.Validate(tx, exeCtx)
	if err != nil {
		return nil, fmt.Errorf("'%s' validation failed: %w", tx.PayloadType(), err)
	}
	sm, err = m.executors.ExecuteWithAttr(tx, attr, exeCtx)
	if err != nil {
		return nil, err
	}
	return sm, nil
}

/*
validateGenericTransaction does the tx validation common to all transaction
types and returns the identity which signed the transaction.
*/
func (m *GenericTxSystem) validateGenericTransaction(tx *types.TransactionOrder) (types.Identity, error) {
	if tx == nil || tx.Payload == nil {
		return types.Identity{}, errors.New("transaction order payload is nil")
	}
	// 1. transaction is sent to this partition
	if m.partitionID != tx.PartitionID() {
		return types.Identity{}, ErrInvalidPartitionIdentifier
	}
	// 2. transaction has not expired
	if m.currentRound >= tx.Timeout() {
		return types.Identity{}, ErrTransactionExpired
	}
	// 3. there is handler for the transaction
	if _, ok := m.executors[tx.PayloadType()]; !ok {
		return types.Identity{}, fmt.Errorf("%w %q", ErrUnknownTxType, tx.PayloadType())
	}
	// 4. owner proof verifies, the signer is the caller of the transaction
	return VerifyOwnerProof(tx)
}

func (m *GenericTxSystem) GetUnit(id types.UnitID, committed bool) (*state.Unit, error) {
	return m.state.GetUnit(id, committed)
}

func (m *GenericTxSystem) CurrentRound() uint64 { return m.currentRound }

func (m *GenericTxSystem) CurrentTimestamp() uint64 { return m.currentTimestamp }

func (m *GenericTxSystem) State() StateReader {
	return m.state.Clone()
}

func (m *GenericTxSystem) EndBlock() (*StateSummary, error) {
	for _, function := range m.endBlockFunctions {
		if err := function(m.currentRound); err != nil {
			return nil, fmt.Errorf("end block function call failed: %w", err)
		}
	}
	return m.getStateSummary()
}

func (m *GenericTxSystem) Revert() {
	if m.roundCommitted {
		return
	}
	m.state.Revert()
}

func (m *GenericTxSystem) Commit() error {
	if _, err := m.state.CalculateRoot(); err != nil {
		return fmt.Errorf("calculating state root: %w", err)
	}
	if err := m.state.Commit(m.currentRound); err != nil {
		return err
	}
	m.roundCommitted = true
	return nil
}

func (m *GenericTxSystem) CommittedRound() uint64 {
	return m.state.CommittedRound()
}

func (m *GenericTxSystem) SerializeState(writer io.Writer, committed bool) error {
	return m.state.Serialize(writer, committed)
}

func (m *GenericTxSystem) initMetrics(mtr metric.Meter) (err error) {
	if _, err := mtr.Int64ObservableUpDownCounter(
		"unit.count",
		metric.WithDescription(`Number of units in the state.`),
		metric.WithUnit("{unit}"),
		metric.WithInt64Callback(func(ctx context.Context, io metric.Int64Observer) error {
			io.Observe(int64(m.state.Size()))
			return nil
		}),
	); err != nil {
		return fmt.Errorf("creating state unit counter: %w", err)
	}

	if m.txCount, err = mtr.Int64Counter(
		"tx.count",
		metric.WithDescription(`Number of transactions executed, by type and status.`),
		metric.WithUnit("{transaction}"),
	); err != nil {
		return fmt.Errorf("creating transaction counter: %w", err)
	}
	return nil
}
