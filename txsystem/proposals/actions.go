package proposals

import (
	"errors"
	"fmt"
	"slices"

	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/params"
	"github.com/alphabill-org/guild/txsystem/rank"
	"github.com/alphabill-org/guild/txsystem/treasury"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

type ActionKind uint8

const (
	KindGrantRank ActionKind = iota + 1
	KindDemoteRank
	KindChangeAuthority
	KindChangeParameter
	KindBlockOrder
	KindRecoverFunds
	KindTransferFunds
	KindCallTarget
	KindGrantTreasurer
	KindRevokeTreasurer
	KindSetCallTarget
)

func (k ActionKind) String() string {
	switch k {
	case KindGrantRank:
		return "grant-rank"
	case KindDemoteRank:
		return "demote-rank"
	case KindChangeAuthority:
		return "change-authority"
	case KindChangeParameter:
		return "change-parameter"
	case KindBlockOrder:
		return "block-order"
	case KindRecoverFunds:
		return "recover-funds"
	case KindTransferFunds:
		return "transfer-funds"
	case KindCallTarget:
		return "call-target"
	case KindGrantTreasurer:
		return "grant-treasurer"
	case KindRevokeTreasurer:
		return "revoke-treasurer"
	case KindSetCallTarget:
		return "set-call-target"
	default:
		return fmt.Sprintf("action(%d)", uint8(k))
	}
}

/*
Action is the payload of a proposal. The set of actions is closed, every
action type is declared in this package.
*/
type Action interface {
	Kind() ActionKind
	// TargetMember returns ID of the member whose rank or authority the
	// action changes, zero when the action doesn't target a member.
	TargetMember() uint64
	// Delayed actions are executed after the execution delay once the
	// proposal has passed, other actions are applied when the proposal is
	// finalized.
	Delayed() bool

	// validate is called when the proposal is created.
	validate(m *Module, now uint64) error
	apply(m *Module, round, now uint64) error
}

// ActionEnvelope is the serialized form of an Action.
type ActionEnvelope struct {
	_    struct{}      `cbor:",toarray"`
	Kind ActionKind    `json:"kind"`
	Body types.RawCBOR `json:"body"`
}

func EncodeAction(a Action) (*ActionEnvelope, error) {
	body, err := types.Cbor.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encoding %s action: %w", a.Kind(), err)
	}
	return &ActionEnvelope{Kind: a.Kind(), Body: body}, nil
}

func DecodeAction(env *ActionEnvelope) (Action, error) {
	var a Action
	switch env.Kind {
	case KindGrantRank:
		a = &GrantRank{}
	case KindDemoteRank:
		a = &DemoteRank{}
	case KindChangeAuthority:
		a = &ChangeAuthority{}
	case KindChangeParameter:
		a = &ChangeParameter{}
	case KindBlockOrder:
		a = &BlockOrder{}
	case KindRecoverFunds:
		a = &RecoverFunds{}
	case KindTransferFunds:
		a = &TransferFunds{}
	case KindCallTarget:
		a = &CallTarget{}
	case KindGrantTreasurer:
		a = &GrantTreasurer{}
	case KindRevokeTreasurer:
		a = &RevokeTreasurer{}
	case KindSetCallTarget:
		a = &SetCallTarget{}
	default:
		return nil, fmt.Errorf("%w: unknown action kind %d", txtypes.ErrInvalidArgument, env.Kind)
	}
	if err := types.Cbor.Unmarshal(env.Body, a); err != nil {
		return nil, fmt.Errorf("%w: decoding %s action: %w", txtypes.ErrInvalidArgument, env.Kind, err)
	}
	return a, nil
}

type (
	GrantRank struct {
		_      struct{}  `cbor:",toarray"`
		Member uint64    `json:"member"`
		Rank   rank.Rank `json:"rank"`
	}

	DemoteRank struct {
		_      struct{}  `cbor:",toarray"`
		Member uint64    `json:"member"`
		Rank   rank.Rank `json:"rank"`
	}

	ChangeAuthority struct {
		_            struct{}       `cbor:",toarray"`
		Member       uint64         `json:"member"`
		NewAuthority types.Identity `json:"newAuthority"`
	}

	ChangeParameter struct {
		_     struct{} `cbor:",toarray"`
		Name  string   `json:"name"`
		Value uint64   `json:"value"`
	}

	BlockOrder struct {
		_     struct{} `cbor:",toarray"`
		Order uint64   `json:"order"`
	}

	// RecoverFunds lifts the fund lock and revokes the listed treasurer grants.
	RecoverFunds struct {
		_                struct{}         `cbor:",toarray"`
		RevokeMembers    []uint64         `json:"revokeMembers"`
		RevokeIdentities []types.Identity `json:"revokeIdentities"`
	}

	TransferFunds struct {
		_      struct{}         `cbor:",toarray"`
		Asset  string           `json:"asset"`
		To     types.Identity   `json:"to"`
		Amount *treasury.Amount `json:"amount"`
	}

	CallTarget struct {
		_       struct{}         `cbor:",toarray"`
		Target  types.Identity   `json:"target"`
		Value   *treasury.Amount `json:"value"`
		Payload types.Bytes      `json:"payload"`
	}

	/*
	GrantTreasurer creates spending grant. When Member is assigned the grant
	is rank-linked to the member, otherwise it is a flat grant of the Principal.
	*/
	GrantTreasurer struct {
		_          struct{}         `cbor:",toarray"`
		Member     uint64           `json:"member"`
		Principal  types.Identity   `json:"principal"`
		Base       *treasury.Amount `json:"base"`
		Multiplier *treasury.Amount `json:"multiplier"`
		MinRank    rank.Rank        `json:"minRank"`
		Period     uint64           `json:"period"`
	}

	RevokeTreasurer struct {
		_         struct{}       `cbor:",toarray"`
		Member    uint64         `json:"member"`
		Principal types.Identity `json:"principal"`
	}

	SetCallTarget struct {
		_       struct{}       `cbor:",toarray"`
		Target  types.Identity `json:"target"`
		Allowed bool           `json:"allowed"`
	}
)

func activeTarget(m *Module, id uint64) (*membership.Member, error) {
	member, err := m.registry.GetMember(id)
	if err != nil {
		return nil, err
	}
	if !member.Active {
		return nil, fmt.Errorf("%w: member %d", txtypes.ErrMemberInactive, id)
	}
	return member, nil
}

func (a *GrantRank) Kind() ActionKind { return KindGrantRank }
func (a *GrantRank) TargetMember() uint64 { return a.Member }
func (a *GrantRank) Delayed() bool { return false }

func (a *GrantRank) validate(m *Module, _ uint64) error {
	if err := a.Rank.Valid(); err != nil {
		return fmt.Errorf("%w: %w", txtypes.ErrOutOfBounds, err)
	}
	member, err := activeTarget(m, a.Member)
	if err != nil {
		return err
	}
	if a.Rank <= member.Rank {
		return fmt.Errorf("%w: granted rank %s must be above the current rank %s", txtypes.ErrOutOfBounds, a.Rank, member.Rank)
	}
	return nil
}

func (a *GrantRank) apply(m *Module, round, _ uint64) error {
	return m.registry.SetRank(membership.PathwayProposal, a.Member, a.Rank, round)
}

func (a *DemoteRank) Kind() ActionKind { return KindDemoteRank }
func (a *DemoteRank) TargetMember() uint64 { return a.Member }
func (a *DemoteRank) Delayed() bool { return false }

func (a *DemoteRank) validate(m *Module, _ uint64) error {
	member, err := activeTarget(m, a.Member)
	if err != nil {
		return err
	}
	if a.Rank >= member.Rank {
		return fmt.Errorf("%w: new rank %s must be below the current rank %s", txtypes.ErrOutOfBounds, a.Rank, member.Rank)
	}
	return nil
}

func (a *DemoteRank) apply(m *Module, round, _ uint64) error {
	return m.registry.SetRank(membership.PathwayProposal, a.Member, a.Rank, round)
}

func (a *ChangeAuthority) Kind() ActionKind { return KindChangeAuthority }
func (a *ChangeAuthority) TargetMember() uint64 { return a.Member }
func (a *ChangeAuthority) Delayed() bool { return false }

func (a *ChangeAuthority) validate(m *Module, _ uint64) error {
	if _, err := activeTarget(m, a.Member); err != nil {
		return err
	}
	return m.registry.EnsureUnclaimed(a.NewAuthority)
}

func (a *ChangeAuthority) apply(m *Module, _, _ uint64) error {
	return m.registry.SetAuthority(membership.PathwayProposal, a.Member, a.NewAuthority)
}

func (a *ChangeParameter) Kind() ActionKind { return KindChangeParameter }
func (a *ChangeParameter) TargetMember() uint64 { return 0 }
func (a *ChangeParameter) Delayed() bool { return false }

func (a *ChangeParameter) validate(*Module, uint64) error {
	p, err := params.Parse(a.Name)
	if err != nil {
		return err
	}
	return p.Check(a.Value)
}

func (a *ChangeParameter) apply(m *Module, _, _ uint64) error {
	p, err := params.Parse(a.Name)
	if err != nil {
		return err
	}
	return m.state.Apply(params.Set(p, a.Value))
}

func (a *BlockOrder) Kind() ActionKind { return KindBlockOrder }
func (a *BlockOrder) TargetMember() uint64 { return 0 }
func (a *BlockOrder) Delayed() bool { return false }

// validate requires the vote to be finalizable before the delay window of the
// order ends.
func (a *BlockOrder) validate(m *Module, now uint64) error {
	prm, err := params.Load(m.state)
	if err != nil {
		return err
	}
	end := now + prm.Get(params.VotingDelay) + prm.Get(params.VotingPeriod)
	return m.orders.CheckBlockable(a.Order, end+1)
}

func (a *BlockOrder) apply(m *Module, _, now uint64) error {
	return m.orders.BlockByProposal(a.Order, now)
}

func (a *RecoverFunds) Kind() ActionKind { return KindRecoverFunds }
func (a *RecoverFunds) TargetMember() uint64 { return 0 }
func (a *RecoverFunds) Delayed() bool { return false }

func (a *RecoverFunds) validate(*Module, uint64) error { return nil }

// apply revokes the listed grants which still exist.
func (a *RecoverFunds) apply(m *Module, _, _ uint64) error {
	if err := m.treasury.Custody().Unlock(); err != nil {
		return fmt.Errorf("unlocking fund: %w", err)
	}
	limiter := m.treasury.Limiter()
	for _, id := range a.RevokeMembers {
		if err := limiter.RevokeRankLinked(id); err != nil && !errors.Is(err, treasury.ErrGrantNotFound) {
			return err
		}
	}
	for _, id := range a.RevokeIdentities {
		if err := limiter.RevokeIdentityLinked(id); err != nil && !errors.Is(err, treasury.ErrGrantNotFound) {
			return err
		}
	}
	return nil
}

func (a *TransferFunds) Kind() ActionKind { return KindTransferFunds }
func (a *TransferFunds) TargetMember() uint64 { return 0 }
func (a *TransferFunds) Delayed() bool { return true }

func (a *TransferFunds) validate(*Module, uint64) error {
	switch {
	case a.Asset == "":
		return fmt.Errorf("%w: asset name is empty", txtypes.ErrInvalidArgument)
	case a.To.IsZero():
		return fmt.Errorf("%w: transfer recipient is empty", txtypes.ErrInvalidArgument)
	case a.Amount.IsZero():
		return fmt.Errorf("%w: transfer amount is zero", txtypes.ErrInvalidArgument)
	}
	return nil
}

// apply checks the fund lock and the feature flag at the time of execution,
// not when the proposal was created.
func (a *TransferFunds) apply(m *Module, round, _ uint64) error {
	_, err := m.treasury.Custody().Transfer(treasury.SpenderProposal, a.Asset, a.To, a.Amount, round)
	return err
}

func (a *CallTarget) Kind() ActionKind { return KindCallTarget }
func (a *CallTarget) TargetMember() uint64 { return 0 }
func (a *CallTarget) Delayed() bool { return true }

func (a *CallTarget) validate(*Module, uint64) error {
	if a.Target.IsZero() {
		return fmt.Errorf("%w: call target is empty", txtypes.ErrInvalidArgument)
	}
	return nil
}

func (a *CallTarget) apply(m *Module, round, _ uint64) error {
	_, err := m.treasury.Custody().Call(treasury.SpenderProposal, a.Target, a.Value, slices.Clone(a.Payload), round)
	return err
}

func (a *GrantTreasurer) Kind() ActionKind { return KindGrantTreasurer }
func (a *GrantTreasurer) TargetMember() uint64 { return 0 }
func (a *GrantTreasurer) Delayed() bool { return true }

func (a *GrantTreasurer) validate(m *Module, _ uint64) error {
	if (a.Member == 0) == a.Principal.IsZero() {
		return fmt.Errorf("%w: exactly one of member and principal must be assigned", txtypes.ErrInvalidArgument)
	}
	if err := treasury.ValidatePeriod(a.Period); err != nil {
		return err
	}
	if a.Member == 0 {
		_, err := m.treasury.Limiter().IdentityGrant(a.Principal)
		return grantMustNotExist(err)
	}
	if _, err := m.registry.GetMember(a.Member); err != nil {
		return err
	}
	if err := a.MinRank.Valid(); err != nil {
		return fmt.Errorf("%w: %w", txtypes.ErrOutOfBounds, err)
	}
	_, err := m.treasury.Limiter().RankGrant(a.Member)
	return grantMustNotExist(err)
}

func grantMustNotExist(err error) error {
	switch {
	case err == nil:
		return treasury.ErrGrantExists
	case errors.Is(err, treasury.ErrGrantNotFound):
		return nil
	default:
		return err
	}
}

func (a *GrantTreasurer) apply(m *Module, _, now uint64) error {
	if a.Member == 0 {
		return m.treasury.Limiter().GrantIdentityLinked(a.Principal, a.Base, a.Period, now)
	}
	return m.treasury.Limiter().GrantRankLinked(a.Member, a.Base, a.Multiplier, a.MinRank, a.Period, now)
}

func (a *RevokeTreasurer) Kind() ActionKind { return KindRevokeTreasurer }
func (a *RevokeTreasurer) TargetMember() uint64 { return 0 }
func (a *RevokeTreasurer) Delayed() bool { return false }

func (a *RevokeTreasurer) validate(m *Module, _ uint64) error {
	if (a.Member == 0) == a.Principal.IsZero() {
		return fmt.Errorf("%w: exactly one of member and principal must be assigned", txtypes.ErrInvalidArgument)
	}
	if a.Member == 0 {
		_, err := m.treasury.Limiter().IdentityGrant(a.Principal)
		return err
	}
	_, err := m.treasury.Limiter().RankGrant(a.Member)
	return err
}

func (a *RevokeTreasurer) apply(m *Module, _, _ uint64) error {
	if a.Member == 0 {
		return m.treasury.Limiter().RevokeIdentityLinked(a.Principal)
	}
	return m.treasury.Limiter().RevokeRankLinked(a.Member)
}

func (a *SetCallTarget) Kind() ActionKind { return KindSetCallTarget }
func (a *SetCallTarget) TargetMember() uint64 { return 0 }

// Delayed - widening the allow-list is a treasury action, narrowing it is not.
func (a *SetCallTarget) Delayed() bool { return a.Allowed }

func (a *SetCallTarget) validate(*Module, uint64) error {
	if a.Target.IsZero() {
		return fmt.Errorf("%w: call target is empty", txtypes.ErrInvalidArgument)
	}
	return nil
}

func (a *SetCallTarget) apply(m *Module, _, _ uint64) error {
	return m.treasury.Custody().SetCallTarget(a.Target, a.Allowed)
}

var (
	_ Action = (*GrantRank)(nil)
	_ Action = (*DemoteRank)(nil)
	_ Action = (*ChangeAuthority)(nil)
	_ Action = (*ChangeParameter)(nil)
	_ Action = (*BlockOrder)(nil)
	_ Action = (*RecoverFunds)(nil)
	_ Action = (*TransferFunds)(nil)
	_ Action = (*CallTarget)(nil)
	_ Action = (*GrantTreasurer)(nil)
	_ Action = (*RevokeTreasurer)(nil)
	_ Action = (*SetCallTarget)(nil)
)
