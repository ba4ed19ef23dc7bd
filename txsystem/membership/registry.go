package membership

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/rank"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/txsystem/votingpower"
	"github.com/alphabill-org/guild/types"
)

/*
Pathway names the mechanism asking the registry to mutate a member. Every
mutation hook accepts only the pathways sanctioned for it.
*/
type Pathway uint8

const (
	PathwayBootstrap Pathway = iota + 1
	PathwayCollaborator
	PathwaySelfService
	PathwayOrder
	PathwayProposal
)

func (p Pathway) String() string {
	switch p {
	case PathwayBootstrap:
		return "bootstrap"
	case PathwayCollaborator:
		return "collaborator"
	case PathwaySelfService:
		return "self-service"
	case PathwayOrder:
		return "order"
	case PathwayProposal:
		return "proposal"
	default:
		return fmt.Sprintf("pathway(%d)", uint8(p))
	}
}

var (
	ErrPathwayNotAllowed = txtypes.NewCondition(txtypes.ErrUnauthorized, "mutation pathway is not allowed")
	ErrBootstrapClosed   = txtypes.NewCondition(txtypes.ErrStateConflict, "bootstrap phase is closed")
)

/*
Registry is the membership registry: members, the identity index and the
bootstrap phase. All the rank and active flag mutations record the new power
of the member in the voting power ledger at the given height.

Mutations are applied to the state directly, when called by a transaction
handler they are part of the transaction and rolled back when the
transaction fails.
*/
type Registry struct {
	state  *state.State
	ledger *votingpower.Ledger
}

func NewRegistry(s *state.State) *Registry {
	return &Registry{state: s, ledger: votingpower.NewLedger(s)}
}

func (r *Registry) Ledger() *votingpower.Ledger { return r.ledger }

func (r *Registry) GetMember(id uint64) (*Member, error) {
	u, err := r.state.GetUnit(NewMemberID(id), false)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return nil, fmt.Errorf("%w: %d", txtypes.ErrMemberNotFound, id)
		}
		return nil, fmt.Errorf("reading member %d: %w", id, err)
	}
	m, ok := u.Data().(*Member)
	if !ok {
		return nil, fmt.Errorf("unit %s doesn't contain member data but %T", NewMemberID(id), u.Data())
	}
	return m, nil
}

// MemberIDOf returns the id of the member whose authority is "identity".
func (r *Registry) MemberIDOf(identity types.Identity) (uint64, error) {
	u, err := r.state.GetUnit(NewIdentityID(identity), false)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return 0, fmt.Errorf("%w: %s", txtypes.ErrNotMember, identity)
		}
		return 0, fmt.Errorf("reading identity index: %w", err)
	}
	idx, ok := u.Data().(*IdentityIndex)
	if !ok {
		return 0, fmt.Errorf("invalid identity index unit data type %T", u.Data())
	}
	return idx.MemberID, nil
}

// MemberOf returns the member whose authority is "identity".
func (r *Registry) MemberOf(identity types.Identity) (*Member, error) {
	id, err := r.MemberIDOf(identity)
	if err != nil {
		return nil, err
	}
	return r.GetMember(id)
}

// ActiveMemberOf returns the member whose authority is "identity" when the member is active.
func (r *Registry) ActiveMemberOf(identity types.Identity) (*Member, error) {
	m, err := r.MemberOf(identity)
	if err != nil {
		return nil, err
	}
	if !m.Active {
		return nil, fmt.Errorf("%w: %d", txtypes.ErrMemberInactive, m.ID)
	}
	return m, nil
}

func (r *Registry) IsActive(id uint64) bool {
	m, err := r.GetMember(id)
	return err == nil && m.Active
}

// IsClaimed returns true when the identity is the authority of some member.
func (r *Registry) IsClaimed(identity types.Identity) (bool, error) {
	_, err := r.MemberIDOf(identity)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, txtypes.ErrNotMember):
		return false, nil
	default:
		return false, err
	}
}

// EnsureUnclaimed returns ErrIdentityClaimed when identity is the authority of some member.
func (r *Registry) EnsureUnclaimed(identity types.Identity) error {
	if identity.IsZero() {
		return fmt.Errorf("%w: authority identity is empty", txtypes.ErrInvalidArgument)
	}
	claimed, err := r.IsClaimed(identity)
	if err != nil {
		return err
	}
	if claimed {
		return fmt.Errorf("%w: %s", txtypes.ErrIdentityClaimed, identity)
	}
	return nil
}

// Data returns the member counter and the bootstrap phase state.
func (r *Registry) Data() (*RegistryData, error) {
	u, err := r.state.GetUnit(RegistryID, false)
	if err != nil {
		return nil, fmt.Errorf("reading registry: %w", err)
	}
	reg, ok := u.Data().(*RegistryData)
	if !ok {
		return nil, fmt.Errorf("invalid registry unit data type %T", u.Data())
	}
	return reg, nil
}

// BootstrapOpen returns true while the bootstrap phase is open.
func (r *Registry) BootstrapOpen() (bool, error) {
	reg, err := r.Data()
	if err != nil {
		return false, err
	}
	return reg.BootstrapOpen, nil
}

/*
Init creates the registry unit, must be called once when creating the genesis
state. Bootstrap phase is open until closed by CloseBootstrap.
*/
func (r *Registry) Init(bootstrapAuthority types.Identity) error {
	if bootstrapAuthority.IsZero() {
		return errors.New("bootstrap authority must be assigned")
	}
	return r.state.Apply(state.AddUnit(RegistryID, &RegistryData{
		BootstrapOpen:      true,
		BootstrapAuthority: bootstrapAuthority,
	}))
}

// CloseBootstrap closes the bootstrap phase, once closed it can't be reopened.
func (r *Registry) CloseBootstrap() error {
	return r.state.Apply(state.UpdateUnitData(RegistryID, func(data state.UnitData) (state.UnitData, error) {
		reg := data.(*RegistryData)
		if !reg.BootstrapOpen {
			return nil, ErrBootstrapClosed
		}
		reg.BootstrapOpen = false
		return reg, nil
	}))
}

/*
Admit creates new active member with the authority and rank, returns the id
assigned to the new member. Bootstrap pathway is only allowed while the
bootstrap phase is open.
*/
func (r *Registry) Admit(p Pathway, authority types.Identity, rnk rank.Rank, now, height uint64) (uint64, error) {
	reg, err := r.Data()
	if err != nil {
		return 0, err
	}
	switch p {
	case PathwayBootstrap:
		if !reg.BootstrapOpen {
			return 0, ErrBootstrapClosed
		}
	case PathwayCollaborator:
	default:
		return 0, fmt.Errorf("%w: admit via %s", ErrPathwayNotAllowed, p)
	}
	if err := rnk.Valid(); err != nil {
		return 0, fmt.Errorf("%w: %w", txtypes.ErrOutOfBounds, err)
	}
	if err := r.EnsureUnclaimed(authority); err != nil {
		return 0, err
	}

	m := &Member{
		ID:        reg.LastMemberID + 1,
		Rank:      rnk,
		Authority: authority,
		JoinedAt:  now,
		Active:    true,
	}
	err = r.state.Apply(
		state.UpdateUnitData(RegistryID, func(data state.UnitData) (state.UnitData, error) {
			reg := data.(*RegistryData)
			reg.LastMemberID = m.ID
			return reg, nil
		}),
		state.AddUnit(NewMemberID(m.ID), m),
		state.AddUnit(NewIdentityID(authority), &IdentityIndex{MemberID: m.ID}),
		votingpower.RecordPower(m.ID, m.Power(), height),
	)
	if err != nil {
		return 0, fmt.Errorf("adding member: %w", err)
	}
	return m.ID, nil
}

// SetRank changes the rank of the member, allowed pathways are Order and Proposal.
func (r *Registry) SetRank(p Pathway, id uint64, rnk rank.Rank, height uint64) error {
	if p != PathwayOrder && p != PathwayProposal {
		return fmt.Errorf("%w: set rank via %s", ErrPathwayNotAllowed, p)
	}
	if err := rnk.Valid(); err != nil {
		return fmt.Errorf("%w: %w", txtypes.ErrOutOfBounds, err)
	}
	return r.updateMember(id, height, func(m *Member) error {
		m.Rank = rnk
		return nil
	})
}

/*
SetAuthority changes the authority identity of the member, allowed pathways
are SelfService, Order and Proposal. The new identity must not be claimed by
any member.
*/
func (r *Registry) SetAuthority(p Pathway, id uint64, authority types.Identity) error {
	switch p {
	case PathwaySelfService, PathwayOrder, PathwayProposal:
	default:
		return fmt.Errorf("%w: set authority via %s", ErrPathwayNotAllowed, p)
	}
	if err := r.EnsureUnclaimed(authority); err != nil {
		return err
	}
	m, err := r.GetMember(id)
	if err != nil {
		return err
	}
	old := m.Authority
	err = r.state.Apply(
		state.UpdateUnitData(NewMemberID(id), func(data state.UnitData) (state.UnitData, error) {
			m := data.(*Member)
			m.Authority = authority
			return m, nil
		}),
		state.DeleteUnit(NewIdentityID(old)),
		state.AddUnit(NewIdentityID(authority), &IdentityIndex{MemberID: id}),
	)
	if err != nil {
		return fmt.Errorf("changing authority of member %d: %w", id, err)
	}
	return nil
}

// SetActive changes the active flag of the member, allowed pathways are
// Collaborator and SelfService (resignation only).
func (r *Registry) SetActive(p Pathway, id uint64, active bool, height uint64) error {
	switch {
	case p == PathwayCollaborator:
	case p == PathwaySelfService && !active:
	default:
		return fmt.Errorf("%w: set active=%t via %s", ErrPathwayNotAllowed, active, p)
	}
	return r.updateMember(id, height, func(m *Member) error {
		m.Active = active
		return nil
	})
}

/*
SetPendingAction occupies the pending action slot of the member, fails with
ErrPendingAction when the slot is already occupied.
*/
func (r *Registry) SetPendingAction(id uint64, action PendingAction) error {
	return r.modifyMember(id, func(m *Member) error {
		if m.HasPendingAction() {
			return fmt.Errorf("%w: member %d has pending %s %d", txtypes.ErrPendingAction, id, m.Pending.Kind, m.Pending.ID)
		}
		m.Pending = action
		return nil
	})
}

// ClearPendingAction releases the pending action slot of the member when it
// is occupied by "action".
func (r *Registry) ClearPendingAction(id uint64, action PendingAction) error {
	return r.modifyMember(id, func(m *Member) error {
		if m.Pending.Kind == action.Kind && m.Pending.ID == action.ID {
			m.Pending = PendingAction{}
		}
		return nil
	})
}

func (r *Registry) AdjustOrderCount(id uint64, delta int) error {
	return r.modifyMember(id, func(m *Member) error {
		return adjust(&m.ActiveOrders, delta)
	})
}

func (r *Registry) AdjustProposalCount(id uint64, delta int) error {
	return r.modifyMember(id, func(m *Member) error {
		return adjust(&m.ActiveProposals, delta)
	})
}

func adjust(cnt *uint32, delta int) error {
	v := int64(*cnt) + int64(delta)
	if v < 0 {
		return fmt.Errorf("counter would become negative: %d%+d", *cnt, delta)
	}
	*cnt = uint32(v)
	return nil
}

// updateMember modifies member and records the (possibly) changed power of the member.
func (r *Registry) updateMember(id, height uint64, f func(m *Member) error) error {
	var power uint64
	err := r.modifyMember(id, func(m *Member) error {
		if err := f(m); err != nil {
			return err
		}
		power = m.Power()
		return nil
	})
	if err != nil {
		return err
	}
	return r.state.Apply(votingpower.RecordPower(id, power, height))
}

func (r *Registry) modifyMember(id uint64, f func(m *Member) error) error {
	if _, err := r.GetMember(id); err != nil {
		return err
	}
	return r.state.Apply(state.UpdateUnitData(NewMemberID(id), func(data state.UnitData) (state.UnitData, error) {
		m, ok := data.(*Member)
		if !ok {
			return nil, fmt.Errorf("invalid member unit data type %T", data)
		}
		return m, f(m)
	}))
}
