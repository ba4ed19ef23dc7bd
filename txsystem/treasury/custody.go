package treasury

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/params"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

// Spender is the mechanism moving funds out of the fund.
type Spender uint8

const (
	SpenderProposal Spender = iota + 1
	SpenderTreasurer
)

func (s Spender) String() string {
	switch s {
	case SpenderProposal:
		return "proposal"
	case SpenderTreasurer:
		return "treasurer"
	default:
		return fmt.Sprintf("spender(%d)", uint8(s))
	}
}

var (
	ErrFundLocked        = txtypes.NewCondition(txtypes.ErrPolicy, "fund is locked")
	ErrFeatureDisabled   = txtypes.NewCondition(txtypes.ErrPolicy, "feature is disabled")
	ErrTargetNotAllowed  = txtypes.NewCondition(txtypes.ErrPolicy, "call target is not allow-listed")
	ErrInsufficientFunds = txtypes.NewCondition(txtypes.ErrPolicy, "insufficient funds")
	ErrInvalidSpender    = txtypes.NewCondition(txtypes.ErrUnauthorized, "spender is not allowed to move funds")
)

/*
Custody guards the fund. Outbound transfers and calls are checked against the
fund lock, the feature flags and (calls) the call target allow-list at the
moment of the transfer.
*/
type Custody struct {
	state *state.State
}

func NewCustody(s *state.State) *Custody {
	return &Custody{state: s}
}

func (c *Custody) Fund() (*Fund, error) {
	return loadFund(c.state)
}

func loadFund(s state.UnitReader) (*Fund, error) {
	u, err := s.GetUnit(FundID, false)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return &Fund{}, nil
		}
		return nil, fmt.Errorf("reading fund: %w", err)
	}
	f, ok := u.Data().(*Fund)
	if !ok {
		return nil, fmt.Errorf("invalid fund unit data type %T", u.Data())
	}
	return f, nil
}

func (c *Custody) update(f func(fund *Fund) error) error {
	return c.state.Apply(state.AddOrUpdateUnit(FundID, func(data state.UnitData) (state.UnitData, error) {
		fund := &Fund{}
		if data != nil {
			var ok bool
			if fund, ok = data.(*Fund); !ok {
				return nil, fmt.Errorf("invalid fund unit data type %T", data)
			}
		}
		return fund, f(fund)
	}))
}

// Deposit credits the fund, deposits are accepted even when the fund is locked.
func (c *Custody) Deposit(asset string, amount *Amount) error {
	if asset == "" {
		return fmt.Errorf("%w: asset name is empty", txtypes.ErrInvalidArgument)
	}
	if amount.IsZero() {
		return fmt.Errorf("%w: deposit amount is zero", txtypes.ErrInvalidArgument)
	}
	return c.update(func(fund *Fund) error {
		b, err := add(fund.Balance(asset), amount)
		if err != nil {
			return err
		}
		fund.setBalance(asset, b)
		return nil
	})
}

// Lock engages the emergency lock, only proposal may lift it.
func (c *Custody) Lock() error {
	return c.update(func(fund *Fund) error {
		fund.Locked = true
		return nil
	})
}

func (c *Custody) Unlock() error {
	return c.update(func(fund *Fund) error {
		fund.Locked = false
		return nil
	})
}

func (c *Custody) SetCallTarget(target types.Identity, allowed bool) error {
	if target.IsZero() {
		return fmt.Errorf("%w: call target is empty", txtypes.ErrInvalidArgument)
	}
	return c.update(func(fund *Fund) error {
		fund.setCallTarget(target, allowed)
		return nil
	})
}

/*
Transfer moves "amount" of "asset" out of the fund to "to". Returns ID of the
outbound record.
*/
func (c *Custody) Transfer(spender Spender, asset string, to types.Identity, amount *Amount, round uint64) (types.UnitID, error) {
	if err := c.checkOutbound(spender, params.TransfersEnabled, nil); err != nil {
		return nil, err
	}
	if to.IsZero() {
		return nil, fmt.Errorf("%w: transfer recipient is empty", txtypes.ErrInvalidArgument)
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: transfer amount is zero", txtypes.ErrInvalidArgument)
	}
	return c.withdraw(&Outbound{
		Kind:    OutboundTransfer,
		Spender: spender,
		Asset:   asset,
		Amount:  amount.Clone(),
		To:      to,
		Round:   round,
	})
}

/*
Call records external call to allow-listed "target" carrying "value" of the
native asset. Returns ID of the outbound record.
*/
func (c *Custody) Call(spender Spender, target types.Identity, value *Amount, payload []byte, round uint64) (types.UnitID, error) {
	if err := c.checkOutbound(spender, params.CallsEnabled, &target); err != nil {
		return nil, err
	}
	return c.withdraw(&Outbound{
		Kind:    OutboundCall,
		Spender: spender,
		Asset:   NativeAsset,
		Amount:  value.Clone(),
		To:      target,
		Payload: payload,
		Round:   round,
	})
}

func (c *Custody) checkOutbound(spender Spender, feature params.Param, callTarget *types.Identity) error {
	if spender != SpenderProposal && spender != SpenderTreasurer {
		return fmt.Errorf("%w: %s", ErrInvalidSpender, spender)
	}
	fund, err := c.Fund()
	if err != nil {
		return err
	}
	if fund.Locked {
		return ErrFundLocked
	}
	p, err := params.Load(c.state)
	if err != nil {
		return err
	}
	if !p.Enabled(feature) {
		return fmt.Errorf("%w: %s", ErrFeatureDisabled, feature)
	}
	if callTarget != nil && !fund.CallAllowed(*callTarget) {
		return fmt.Errorf("%w: %s", ErrTargetNotAllowed, *callTarget)
	}
	return nil
}

func (c *Custody) withdraw(out *Outbound) (types.UnitID, error) {
	err := c.update(func(fund *Fund) error {
		b, err := sub(fund.Balance(out.Asset), out.Amount)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
		}
		fund.setBalance(out.Asset, b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	var n uint64
	if err := c.state.Apply(txtypes.NextID(OutboundCounterID, &n)); err != nil {
		return nil, fmt.Errorf("assigning outbound record id: %w", err)
	}
	id := NewOutboundID(n)
	if err := c.state.Apply(state.AddUnit(id, out)); err != nil {
		return nil, fmt.Errorf("adding outbound record: %w", err)
	}
	return id, nil
}
