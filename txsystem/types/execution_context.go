package types

import (
	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/types"
)

type (
	StateInfo interface {
		GetUnit(id types.UnitID, committed bool) (*state.Unit, error)
		CurrentRound() uint64
		CurrentTimestamp() uint64
	}

	// TxExecutionContext - implementation of ExecutionContext interface for generic tx handler
	TxExecutionContext struct {
		txs    StateInfo
		caller types.Identity
	}
)

func NewExecutionContext(txSys StateInfo, caller types.Identity) *TxExecutionContext {
	return &TxExecutionContext{
		txs:    txSys,
		caller: caller,
	}
}

func (ec *TxExecutionContext) GetUnit(id types.UnitID, committed bool) (*state.Unit, error) {
	return ec.txs.GetUnit(id, committed)
}

func (ec *TxExecutionContext) CurrentRound() uint64 { return ec.txs.CurrentRound() }

func (ec *TxExecutionContext) Now() uint64 { return ec.txs.CurrentTimestamp() }

func (ec *TxExecutionContext) Caller() types.Identity { return ec.caller }
