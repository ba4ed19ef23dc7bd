package votingpower

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/guild/state"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

const (
	MemberPowerUnitType = 0x04
	TotalPowerUnitType  = 0x05
)

var (
	ErrCheckpointOutOfOrder = txtypes.NewCondition(txtypes.ErrIntegrity, "checkpoint height is before the last checkpoint")

	TotalPowerID = types.NewUnitID(TotalPowerUnitType, 0)
)

func NewMemberPowerID(memberID uint64) types.UnitID {
	return types.NewUnitID(MemberPowerUnitType, memberID)
}

/*
Ledger answers the questions "what was the voting power of the member at
height H" and "what was the total voting power at height H".

The ledger is append only, the only way to modify it is RecordPower which
keeps the total in sync with the sum of member powers.
*/
type Ledger struct {
	state state.UnitReader
}

func NewLedger(s state.UnitReader) *Ledger {
	return &Ledger{state: s}
}

func (l *Ledger) PowerAt(memberID, height uint64) (uint64, error) {
	h, err := l.history(NewMemberPowerID(memberID))
	if err != nil {
		return 0, fmt.Errorf("reading power history of member %d: %w", memberID, err)
	}
	return h.ValueAt(height), nil
}

func (l *Ledger) TotalAt(height uint64) (uint64, error) {
	h, err := l.history(TotalPowerID)
	if err != nil {
		return 0, fmt.Errorf("reading total power history: %w", err)
	}
	return h.ValueAt(height), nil
}

// Power returns the latest recorded power of the member.
func (l *Ledger) Power(memberID uint64) (uint64, error) {
	h, err := l.history(NewMemberPowerID(memberID))
	if err != nil {
		return 0, err
	}
	return h.Latest(), nil
}

// History returns the checkpoints of the member, used by API.
func (l *Ledger) History(memberID uint64) ([]Checkpoint, error) {
	h, err := l.history(NewMemberPowerID(memberID))
	if err != nil {
		return nil, err
	}
	return h.Checkpoints, nil
}

func (l *Ledger) history(id types.UnitID) (*History, error) {
	u, err := l.state.GetUnit(id, false)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return &History{}, nil
		}
		return nil, err
	}
	h, ok := u.Data().(*History)
	if !ok {
		return nil, fmt.Errorf("unit %s doesn't contain power history but %T", id, u.Data())
	}
	return h, nil
}

/*
RecordPower returns action which records "value" as the power of the member
starting from "height" and adjusts the total power by the difference of the new
and the previous value of the member. Both checkpoints are written in the same
action so the total is never out of sync with the members.
*/
func RecordPower(memberID, value, height uint64) state.Action {
	return func(s state.ShardState) error {
		var prev uint64
		err := state.AddOrUpdateUnit(NewMemberPowerID(memberID), func(data state.UnitData) (state.UnitData, error) {
			h, err := asHistory(data)
			if err != nil {
				return nil, err
			}
			prev = h.Latest()
			return h, h.push(height, value)
		})(s)
		if err != nil {
			return fmt.Errorf("recording power of member %d: %w", memberID, err)
		}

		err = state.AddOrUpdateUnit(TotalPowerID, func(data state.UnitData) (state.UnitData, error) {
			h, err := asHistory(data)
			if err != nil {
				return nil, err
			}
			total := h.Latest()
			if total < prev {
				return nil, fmt.Errorf("total power %d is less than power %d of member %d", total, prev, memberID)
			}
			return h, h.push(height, total-prev+value)
		})(s)
		if err != nil {
			return fmt.Errorf("recording total power: %w", err)
		}
		return nil
	}
}

func asHistory(data state.UnitData) (*History, error) {
	if data == nil {
		return &History{}, nil
	}
	h, ok := data.(*History)
	if !ok {
		return nil, fmt.Errorf("expected power history, got %T", data)
	}
	return h, nil
}
