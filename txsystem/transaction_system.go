package txsystem

import (
	"errors"
	"io"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/types"
)

var ErrStateContainsUncommittedChanges = errors.New("state contains uncommitted changes")

type (
	/*
	TransactionSystem is a set of rules and logic for defining units and performing transactions with them.

	The lifecycle of a round is

		BeginBlock(round, timestamp) -> Execute(tx)... -> EndBlock() -> Commit()

	or Revert() instead of Commit() to discard all the changes of the round.
	*/
	TransactionSystem interface {
		StateSummary() (*StateSummary, error)
		BeginBlock(round, timestamp uint64) error
		Execute(tx *types.TransactionOrder) (*types.ServerMetadata, error)
		EndBlock() (*StateSummary, error)
		Revert()
		Commit() error
		CommittedRound() uint64
		State() StateReader
		SerializeState(writer io.Writer, committed bool) error
	}

	StateReader interface {
		GetUnit(id types.UnitID, committed bool) (*state.Unit, error)
		CommittedRound() uint64
		CommittedHash() []byte
		Traverse(fn func(id types.UnitID, u *state.Unit) error, committed bool) error
	}

	// StateSummary is the result of executing a round.
	StateSummary struct {
		_         struct{} `cbor:",toarray"`
		Round     uint64
		Root      types.Bytes
		UnitCount uint64
	}
)
