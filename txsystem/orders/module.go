package orders

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/membership"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

const (
	TxCreateOrder  = "createOrder"
	TxExecuteOrder = "executeOrder"
	TxBlockOrder   = "blockOrder"
	TxRescindOrder = "rescindOrder"
)

var (
	ErrOrderNotFound   = txtypes.NewCondition(txtypes.ErrIntegrity, "order does not exist")
	ErrOrderNotPending = txtypes.NewCondition(txtypes.ErrStateConflict, "order is not pending")
)

var _ txtypes.Module = (*Module)(nil)

type Module struct {
	state    *state.State
	registry *membership.Registry
}

func NewModule(s *state.State, registry *membership.Registry) (*Module, error) {
	if s == nil {
		return nil, errors.New("state is nil")
	}
	if registry == nil {
		return nil, errors.New("membership registry is nil")
	}
	return &Module{state: s, registry: registry}, nil
}

func (m *Module) TxHandlers() map[string]txtypes.TxExecutor {
	return map[string]txtypes.TxExecutor{
		TxCreateOrder:  txtypes.NewTxHandler[CreateOrderAttributes](m.validateCreateOrderTx, m.executeCreateOrderTx),
		TxExecuteOrder: txtypes.NewTxHandler[ExecuteOrderAttributes](m.validateExecuteOrderTx, m.executeExecuteOrderTx),
		TxBlockOrder:   txtypes.NewTxHandler[BlockOrderAttributes](m.validateBlockOrderTx, m.executeBlockOrderTx),
		TxRescindOrder: txtypes.NewTxHandler[RescindOrderAttributes](m.validateRescindOrderTx, m.executeRescindOrderTx),
	}
}

func (m *Module) GetOrder(id uint64) (*Order, error) {
	u, err := m.state.GetUnit(NewOrderID(id), false)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("reading order %d: %w", id, err)
	}
	o, ok := u.Data().(*Order)
	if !ok {
		return nil, fmt.Errorf("unit %s doesn't contain order but %T", NewOrderID(id), u.Data())
	}
	return o, nil
}

func (m *Module) orderOfTx(tx *types.TransactionOrder) (*Order, error) {
	if !tx.UnitID().HasType(OrderUnitType) {
		return nil, fmt.Errorf("%w: unit %s is not an order", txtypes.ErrInvalidArgument, tx.UnitID())
	}
	o, err := m.GetOrder(tx.UnitID().Number())
	if err != nil {
		return nil, err
	}
	if o.Status != Pending {
		return nil, fmt.Errorf("%w: order %d is %s", ErrOrderNotPending, o.ID, o.Status)
	}
	return o, nil
}

/*
BlockByProposal blocks the order as result of passed order-block proposal. The
order must be in its delay window, same as when blocked by a member.
*/
func (m *Module) BlockByProposal(id, now uint64) error {
	o, err := m.GetOrder(id)
	if err != nil {
		return err
	}
	if err := checkBlockable(o, now); err != nil {
		return err
	}
	return m.resolve(o, Blocked, 0)
}

// CheckBlockable returns error when the order can't be blocked at time "now".
func (m *Module) CheckBlockable(id, now uint64) error {
	o, err := m.GetOrder(id)
	if err != nil {
		return err
	}
	return checkBlockable(o, now)
}

func checkBlockable(o *Order, now uint64) error {
	if o.Status != Pending {
		return fmt.Errorf("%w: order %d is %s", ErrOrderNotPending, o.ID, o.Status)
	}
	if !orderBlockable(o, now) {
		return fmt.Errorf("%w: delay window of the order ended at %d", txtypes.ErrTooLate, o.EarliestExecution)
	}
	return nil
}

/*
resolve moves the order into terminal status, releases the pending action slot
of the target and the order quota of the issuer.
*/
func (m *Module) resolve(o *Order, status Status, blocker uint64) error {
	err := m.state.Apply(state.UpdateUnitData(NewOrderID(o.ID), func(data state.UnitData) (state.UnitData, error) {
		od := data.(*Order)
		od.Status = status
		od.BlockedBy = blocker
		return od, nil
	}))
	if err != nil {
		return fmt.Errorf("updating order status: %w", err)
	}
	if err := m.registry.ClearPendingAction(o.Target, membership.PendingAction{Kind: membership.PendingOrder, ID: o.ID}); err != nil {
		return fmt.Errorf("releasing target: %w", err)
	}
	if err := m.registry.AdjustOrderCount(o.Issuer, -1); err != nil {
		return fmt.Errorf("releasing issuer quota: %w", err)
	}
	return nil
}
