package params

import (
	"errors"
	"fmt"
	"hash"
	"slices"

	"github.com/alphabill-org/guild/state"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

const UnitType = 0x06

var UnitID = types.NewUnitID(UnitType, 0)

var ErrUnknownParameter = txtypes.NewCondition(txtypes.ErrIntegrity, "unknown parameter")

// Param identifies governance parameter.
type Param uint8

const (
	VotingDelay Param = iota
	VotingPeriod
	QuorumBps
	OrderDelay
	ExecutionDelay
	QuotaCeiling
	FundLockRank
	TransfersEnabled
	CallsEnabled

	paramCount
)

// Definition declares the name, default value and the bounds of a parameter.
type Definition struct {
	Name    string
	Default uint64
	Min     uint64
	Max     uint64
	Unit    string
}

const (
	day = 24 * 60 * 60
)

var definitions = [paramCount]Definition{
	VotingDelay:      {Name: "voting_delay", Default: 0, Min: 0, Max: 7 * day, Unit: "s"},
	VotingPeriod:     {Name: "voting_period", Default: 7 * day, Min: 3600, Max: 30 * day, Unit: "s"},
	QuorumBps:        {Name: "quorum_bps", Default: 2000, Min: 100, Max: 10000, Unit: "bps"},
	OrderDelay:       {Name: "order_delay", Default: 10 * day, Min: 3600, Max: 30 * day, Unit: "s"},
	ExecutionDelay:   {Name: "execution_delay", Default: 2 * day, Min: 3600, Max: 30 * day, Unit: "s"},
	QuotaCeiling:     {Name: "quota_ceiling", Default: 1e15, Min: 1, Max: 1e18, Unit: "base units"},
	FundLockRank:     {Name: "fund_lock_rank", Default: 8, Min: 5, Max: 9, Unit: "rank"},
	TransfersEnabled: {Name: "transfers_enabled", Default: 1, Min: 0, Max: 1, Unit: "flag"},
	CallsEnabled:     {Name: "calls_enabled", Default: 0, Min: 0, Max: 1, Unit: "flag"},
}

func (p Param) Definition() Definition {
	if p >= paramCount {
		return Definition{Name: fmt.Sprintf("param(%d)", uint8(p))}
	}
	return definitions[p]
}

func (p Param) String() string { return p.Definition().Name }

// Check returns error when "value" is not within the bounds of the parameter.
func (p Param) Check(value uint64) error {
	if p >= paramCount {
		return fmt.Errorf("%w: %d", ErrUnknownParameter, uint8(p))
	}
	d := definitions[p]
	if value < d.Min || value > d.Max {
		return fmt.Errorf("%w: %s must be in range [%d, %d], got %d", txtypes.ErrOutOfBounds, d.Name, d.Min, d.Max, value)
	}
	return nil
}

func Parse(name string) (Param, error) {
	for i, d := range definitions {
		if d.Name == name {
			return Param(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownParameter, name)
}

// All returns all the parameters in declaration order.
func All() []Param {
	r := make([]Param, paramCount)
	for i := range r {
		r[i] = Param(i)
	}
	return r
}

// Values is the unit data of the parameters unit, indexed by Param.
type Values struct {
	_      struct{} `cbor:",toarray"`
	Values []uint64
}

func Defaults() *Values {
	v := &Values{Values: make([]uint64, paramCount)}
	for i, d := range definitions {
		v.Values[i] = d.Default
	}
	return v
}

func (v *Values) Write(hasher hash.Hash) error {
	return state.WriteCBOR(hasher, v)
}

func (v *Values) Copy() state.UnitData {
	return &Values{Values: slices.Clone(v.Values)}
}

// Get returns the value of the parameter, default value when not set.
func (v *Values) Get(p Param) uint64 {
	if v == nil || int(p) >= len(v.Values) {
		return p.Definition().Default
	}
	return v.Values[p]
}

func (v *Values) Enabled(p Param) bool {
	return v.Get(p) != 0
}

func (v *Values) set(p Param, value uint64) error {
	if err := p.Check(value); err != nil {
		return err
	}
	for len(v.Values) <= int(p) {
		v.Values = append(v.Values, Param(len(v.Values)).Definition().Default)
	}
	v.Values[p] = value
	return nil
}

/*
Load returns the current parameter values. Defaults are returned when the
parameters unit doesn't exist.
*/
func Load(s state.UnitReader) (*Values, error) {
	u, err := s.GetUnit(UnitID, false)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return Defaults(), nil
		}
		return nil, fmt.Errorf("loading parameters: %w", err)
	}
	v, ok := u.Data().(*Values)
	if !ok {
		return nil, fmt.Errorf("invalid parameters unit data type %T", u.Data())
	}
	return v, nil
}

// Set returns action which changes the value of the parameter, the value
// must be within the declared bounds.
func Set(p Param, value uint64) state.Action {
	return state.AddOrUpdateUnit(UnitID, func(data state.UnitData) (state.UnitData, error) {
		v := Defaults()
		if data != nil {
			var ok bool
			if v, ok = data.(*Values); !ok {
				return nil, fmt.Errorf("invalid parameters unit data type %T", data)
			}
		}
		return v, v.set(p, value)
	})
}
