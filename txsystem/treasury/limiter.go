package treasury

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/params"
	"github.com/alphabill-org/guild/txsystem/rank"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

// MaxGrantPeriod is the longest spending period of a grant, ten years.
const MaxGrantPeriod = 10 * 365 * 24 * 60 * 60

var (
	ErrNoGrant       = txtypes.NewCondition(txtypes.ErrUnauthorized, "principal has no spending grant")
	ErrGrantExists   = txtypes.NewCondition(txtypes.ErrStateConflict, "spending grant already exists")
	ErrGrantNotFound = txtypes.NewCondition(txtypes.ErrIntegrity, "spending grant does not exist")
)

/*
Limiter authorizes treasurer spending against the grants.

Every asset has its own spending counter and period under the grant. Counter
of an asset is rolled over to the new period lazily, the first time the asset
is spent after the period boundary. Counters of other assets are not touched.
*/
type Limiter struct {
	state    *state.State
	registry *membership.Registry
}

func NewLimiter(s *state.State, registry *membership.Registry) *Limiter {
	return &Limiter{state: s, registry: registry}
}

/*
Authorize checks that "principal" may spend "amount" of "asset" and records the
spending. Rank-linked grant of the member whose authority the principal is, is
tried first, identity-linked grant of the principal when the rank-linked grant
doesn't exist or doesn't allow the spend.

Spending is recorded before the funds are moved, the caller must move the
funds in the same transaction. Returns ID of the grant unit charged.
*/
func (l *Limiter) Authorize(principal types.Identity, asset string, amount *Amount, now uint64) (types.UnitID, error) {
	ceiling, err := l.ceiling()
	if err != nil {
		return nil, err
	}

	rankID, rankErr := l.authorizeRankLinked(principal, asset, amount, ceiling, now)
	if rankErr == nil && rankID != nil {
		return rankID, nil
	}
	if rankErr != nil && !isDenial(rankErr) {
		return nil, rankErr
	}

	id := NewIdentityGrantID(principal)
	g, err := l.IdentityGrant(principal)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			if rankErr != nil {
				return nil, rankErr
			}
			return nil, ErrNoGrant
		}
		return nil, err
	}
	quota := minAmount(g.Base, ceiling)
	err = l.state.Apply(state.UpdateUnitData(id, func(data state.UnitData) (state.UnitData, error) {
		g := data.(*IdentityGrant)
		return g, charge(&g.Spending, asset, amount, quota, g.Start, g.Period, now)
	}))
	if err != nil {
		return nil, fmt.Errorf("identity-linked grant: %w", err)
	}
	return id, nil
}

/*
authorizeRankLinked returns nil ID and nil error when the rank-linked grant
doesn't apply to the principal.
*/
func (l *Limiter) authorizeRankLinked(principal types.Identity, asset string, amount, ceiling *Amount, now uint64) (types.UnitID, error) {
	memberID, err := l.registry.MemberIDOf(principal)
	if err != nil {
		if errors.Is(err, txtypes.ErrNotMember) {
			return nil, nil
		}
		return nil, err
	}
	g, err := l.RankGrant(memberID)
	if err != nil {
		if errors.Is(err, ErrGrantNotFound) {
			return nil, nil
		}
		return nil, err
	}
	member, err := l.registry.GetMember(memberID)
	if err != nil {
		return nil, fmt.Errorf("rank-linked grant: %w", err)
	}
	if !member.Active {
		return nil, fmt.Errorf("rank-linked grant: %w", txtypes.ErrMemberInactive)
	}
	if member.Rank < g.MinRank {
		return nil, fmt.Errorf("rank-linked grant: %w: grant requires rank %s, member has %s", txtypes.ErrRankTooLow, g.MinRank, member.Rank)
	}

	quota, err := RankQuota(g.Base, g.Multiplier, member.Rank, ceiling)
	if err != nil {
		return nil, err
	}
	id := NewRankGrantID(memberID)
	err = l.state.Apply(state.UpdateUnitData(id, func(data state.UnitData) (state.UnitData, error) {
		g := data.(*RankGrant)
		return g, charge(&g.Spending, asset, amount, quota, g.Start, g.Period, now)
	}))
	if err != nil {
		return nil, fmt.Errorf("rank-linked grant: %w", err)
	}
	return id, nil
}

// isDenial returns true when the error is a reason to deny spending (as
// opposed to internal error).
func isDenial(err error) bool {
	return txtypes.Category(err) != nil
}

func (l *Limiter) ceiling() (*Amount, error) {
	p, err := params.Load(l.state)
	if err != nil {
		return nil, err
	}
	return NewAmount(p.Get(params.QuotaCeiling)), nil
}

// RankQuota returns min(base + multiplier * power(r), ceiling).
func RankQuota(base, multiplier *Amount, r rank.Rank, ceiling *Amount) (*Amount, error) {
	m, overflow := new(uint256.Int).MulOverflow(multiplier.Clone().Int(), uint256.NewInt(r.Power()))
	if overflow {
		return ceiling.Clone(), nil
	}
	q, overflow := m.AddOverflow(m, base.Clone().Int())
	if overflow {
		return ceiling.Clone(), nil
	}
	return minAmount((*Amount)(q), ceiling), nil
}

func minAmount(a, b *Amount) *Amount {
	if a.Cmp(b) <= 0 {
		return a.Clone()
	}
	return b.Clone()
}

// periodElapsed - the spending period which started at "start" is over.
func periodElapsed(start, period, now uint64) bool {
	return now >= start && now-start >= period
}

// ValidatePeriod checks the spending period of a new grant.
func ValidatePeriod(period uint64) error {
	if period == 0 {
		return fmt.Errorf("%w: grant period is zero", txtypes.ErrInvalidArgument)
	}
	if period > MaxGrantPeriod {
		return fmt.Errorf("%w: grant period %d is longer than %d", txtypes.ErrOutOfBounds, period, uint64(MaxGrantPeriod))
	}
	return nil
}

/*
charge adds "amount" to the spending of the "asset", rolling over the period of
the asset first when it has elapsed.
*/
func charge(spending *[]*SpendingState, asset string, amount, quota *Amount, grantStart, period, now uint64) error {
	if period == 0 {
		return fmt.Errorf("%w: grant period is zero", txtypes.ErrInvalidArgument)
	}
	var st *SpendingState
	for _, s := range *spending {
		if s.Asset == asset {
			st = s
			break
		}
	}
	if st == nil {
		// counter of the asset starts from the current period of the grant
		start := grantStart
		if now > grantStart {
			start += (now - grantStart) / period * period
		}
		st = &SpendingState{Asset: asset, Spent: NewAmount(0), PeriodStart: start}
		*spending = append(*spending, st)
	}
	if periodElapsed(st.PeriodStart, period, now) {
		st.Spent = NewAmount(0)
		st.PeriodStart += (now - st.PeriodStart) / period * period
	}

	spent, err := add(st.Spent, amount)
	if err != nil {
		return fmt.Errorf("%w: %w", txtypes.ErrQuotaExceeded, err)
	}
	if spent.Cmp(quota) > 0 {
		return fmt.Errorf("%w: spending %s of %s would bring the total to %s, quota is %s", txtypes.ErrQuotaExceeded, amount, asset, spent, quota)
	}
	st.Spent = spent
	return nil
}

func (l *Limiter) RankGrant(memberID uint64) (*RankGrant, error) {
	u, err := l.state.GetUnit(NewRankGrantID(memberID), false)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return nil, fmt.Errorf("%w: member %d", ErrGrantNotFound, memberID)
		}
		return nil, err
	}
	g, ok := u.Data().(*RankGrant)
	if !ok {
		return nil, fmt.Errorf("invalid rank grant unit data type %T", u.Data())
	}
	return g, nil
}

func (l *Limiter) IdentityGrant(principal types.Identity) (*IdentityGrant, error) {
	u, err := l.state.GetUnit(NewIdentityGrantID(principal), false)
	if err != nil {
		if errors.Is(err, state.ErrUnitNotFound) {
			return nil, fmt.Errorf("%w: principal %s", ErrGrantNotFound, principal)
		}
		return nil, err
	}
	g, ok := u.Data().(*IdentityGrant)
	if !ok {
		return nil, fmt.Errorf("invalid identity grant unit data type %T", u.Data())
	}
	return g, nil
}

// GrantRankLinked creates rank-linked grant for the member, period starts at "now".
func (l *Limiter) GrantRankLinked(memberID uint64, base, multiplier *Amount, minRank rank.Rank, period, now uint64) error {
	if _, err := l.registry.GetMember(memberID); err != nil {
		return err
	}
	if err := minRank.Valid(); err != nil {
		return fmt.Errorf("%w: %w", txtypes.ErrOutOfBounds, err)
	}
	if err := ValidatePeriod(period); err != nil {
		return err
	}
	if _, err := l.RankGrant(memberID); err == nil {
		return fmt.Errorf("%w: member %d", ErrGrantExists, memberID)
	}
	return l.state.Apply(state.AddUnit(NewRankGrantID(memberID), &RankGrant{
		Member:     memberID,
		Base:       base.Clone(),
		Multiplier: multiplier.Clone(),
		MinRank:    minRank,
		Period:     period,
		Start:      now,
	}))
}

// GrantIdentityLinked creates flat grant for the principal, period starts at "now".
func (l *Limiter) GrantIdentityLinked(principal types.Identity, base *Amount, period, now uint64) error {
	if principal.IsZero() {
		return fmt.Errorf("%w: principal is empty", txtypes.ErrInvalidArgument)
	}
	if err := ValidatePeriod(period); err != nil {
		return err
	}
	if _, err := l.IdentityGrant(principal); err == nil {
		return fmt.Errorf("%w: principal %s", ErrGrantExists, principal)
	}
	return l.state.Apply(state.AddUnit(NewIdentityGrantID(principal), &IdentityGrant{
		Principal: principal,
		Base:      base.Clone(),
		Period:    period,
		Start:     now,
	}))
}

func (l *Limiter) RevokeRankLinked(memberID uint64) error {
	if _, err := l.RankGrant(memberID); err != nil {
		return err
	}
	return l.state.Apply(state.DeleteUnit(NewRankGrantID(memberID)))
}

func (l *Limiter) RevokeIdentityLinked(principal types.Identity) error {
	if _, err := l.IdentityGrant(principal); err != nil {
		return err
	}
	return l.state.Apply(state.DeleteUnit(NewIdentityGrantID(principal)))
}
