package types

import (
	"fmt"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/types"
)

type (
	Module interface {
		TxHandlers() map[string]TxExecutor
	}

	TxHandler[A any] struct {
		Execute  func(tx *types.TransactionOrder, attributes *A, exeCtx ExecutionContext) (*types.ServerMetadata, error)
		Validate func(tx *types.TransactionOrder, attributes *A, exeCtx ExecutionContext) error
	}

	TxExecutor interface {
		ValidateTx(tx *types.TransactionOrder, exeCtx ExecutionContext) (any, error)
		ExecuteTxWithAttr(tx *types.TransactionOrder, attributes any, exeCtx ExecutionContext) (*types.ServerMetadata, error)
	}

	TxExecutors map[string]TxExecutor

	GenericExecuteFunc[A any] func(tx *types.TransactionOrder, attributes *A, exeCtx ExecutionContext) (*types.ServerMetadata, error)

	GenericValidateFunc[A any] func(tx *types.TransactionOrder, attributes *A, exeCtx ExecutionContext) error

	// ExecutionContext - provides additional context and info for tx validation and execution
	ExecutionContext interface {
		GetUnit(id types.UnitID, committed bool) (*state.Unit, error)
		// CurrentRound returns the height of the block being produced.
		CurrentRound() uint64
		// Now returns the timestamp of the block being produced, unix seconds.
		Now() uint64
		// Caller returns the identity which signed the transaction.
		Caller() types.Identity
	}
)

/*
NewTxHandler creates executor for transaction with attributes of type A.
The validate func "v" may be nil, then attributes are only decoded before
calling "e".
*/
func NewTxHandler[A any](v GenericValidateFunc[A], e GenericExecuteFunc[A]) *TxHandler[A] {
	return &TxHandler[A]{Validate: v, Execute: e}
}

func (t *TxHandler[A]) ValidateTx(txo *types.TransactionOrder, exeCtx ExecutionContext) (any, error) {
	attr := new(A)
	if err := txo.UnmarshalAttributes(attr); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if t.Validate == nil {
		return attr, nil
	}
	if err := t.Validate(txo, attr, exeCtx); err != nil {
		return nil, err
	}
	return attr, nil
}

func (t *TxHandler[A]) ExecuteTxWithAttr(txo *types.TransactionOrder, attr any, exeCtx ExecutionContext) (*types.ServerMetadata, error) {
	txAttr, ok := attr.(*A)
	if !ok {
		return nil, fmt.Errorf("incorrect attribute type: %T for transaction order %s", attr, txo.PayloadType())
	}
	return t.Execute(txo, txAttr, exeCtx)
}

func (h TxExecutors) Validate(txo *types.TransactionOrder, exeCtx ExecutionContext) (any, error) {
	handler, found := h[txo.PayloadType()]
	if !found {
		return nil, fmt.Errorf("unknown transaction type %s", txo.PayloadType())
	}
	return handler.ValidateTx(txo, exeCtx)
}

func (h TxExecutors) ExecuteWithAttr(txo *types.TransactionOrder, attr any, exeCtx ExecutionContext) (*types.ServerMetadata, error) {
	handler, found := h[txo.PayloadType()]
	if !found {
		return nil, fmt.Errorf("unknown transaction type %s", txo.PayloadType())
	}
	sm, err := handler.ExecuteTxWithAttr(txo, attr, exeCtx)
	if err != nil {
		return nil, fmt.Errorf("'%s' execution failed: %w", txo.PayloadType(), err)
	}
	return sm, nil
}

func (h TxExecutors) Add(src TxExecutors) error {
	for name, handler := range src {
		if name == "" {
			return fmt.Errorf("transaction executor must have non-empty transaction type name")
		}
		if handler == nil {
			return fmt.Errorf("transaction executor must not be nil (%s)", name)
		}
		if _, ok := h[name]; ok {
			return fmt.Errorf("transaction executor for %q is already registered", name)
		}
		h[name] = handler
	}
	return nil
}

// SuccessMetadata is the server metadata of a successful transaction which modified "targets".
func SuccessMetadata(targets ...types.UnitID) *types.ServerMetadata {
	return &types.ServerMetadata{SuccessIndicator: types.TxStatusSuccessful, TargetUnits: targets}
}
