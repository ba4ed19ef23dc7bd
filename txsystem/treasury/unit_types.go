package treasury

import (
	"hash"
	"slices"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/rank"
	"github.com/alphabill-org/guild/types"
)

const (
	FundUnitType          = 0x0C
	RankGrantUnitType     = 0x0D
	IdentityGrantUnitType = 0x0E
	OutboundUnitType      = 0x0F
	OutboundCounterType   = 0x10

	// NativeAsset is the asset external calls transfer value in.
	NativeAsset = "native"
)

var (
	FundID            = types.NewUnitID(FundUnitType, 0)
	OutboundCounterID = types.NewUnitID(OutboundCounterType, 0)
)

func NewRankGrantID(memberID uint64) types.UnitID {
	return types.NewUnitID(RankGrantUnitType, memberID)
}

func NewIdentityGrantID(principal types.Identity) types.UnitID {
	return types.NewUnitIDFromBytes(IdentityGrantUnitType, principal[:])
}

func NewOutboundID(n uint64) types.UnitID {
	return types.NewUnitID(OutboundUnitType, n)
}

type (
	Balance struct {
		_      struct{} `cbor:",toarray"`
		Asset  string   `json:"asset"`
		Amount *Amount  `json:"amount"`
	}

	// Fund is the shared fund of the guild.
	Fund struct {
		_        struct{}   `cbor:",toarray"`
		Balances []*Balance `json:"balances"` // ordered by asset
		Locked   bool       `json:"locked"`
		// allow-list of external call targets, ordered
		CallTargets []types.Identity `json:"callTargets"`
	}

	/*
	Outbound is the record of funds leaving the fund, either as transfer of
	an asset or as an external call carrying native asset value.
	*/
	Outbound struct {
		_       struct{}       `cbor:",toarray"`
		Kind    OutboundKind   `json:"kind"`
		Spender Spender        `json:"spender"`
		Asset   string         `json:"asset"`
		Amount  *Amount        `json:"amount"`
		To      types.Identity `json:"to"`
		Payload types.Bytes    `json:"payload,omitempty"`
		Round   uint64         `json:"round"`
	}

	// SpendingState tracks the amount of single asset spent in the current period.
	SpendingState struct {
		_           struct{} `cbor:",toarray"`
		Asset       string   `json:"asset"`
		Spent       *Amount  `json:"spent"`
		PeriodStart uint64   `json:"periodStart"`
	}

	/*
	RankGrant allows the member to spend base + multiplier * power of the
	current rank of the member per period, for every asset separately.
	*/
	RankGrant struct {
		_          struct{}         `cbor:",toarray"`
		Member     uint64           `json:"member"`
		Base       *Amount          `json:"base"`
		Multiplier *Amount          `json:"multiplier"`
		MinRank    rank.Rank        `json:"minRank"`
		Period     uint64           `json:"period"`
		Start      uint64           `json:"start"`
		Spending   []*SpendingState `json:"spending"`
	}

	// IdentityGrant allows the principal to spend flat amount per period.
	IdentityGrant struct {
		_         struct{}         `cbor:",toarray"`
		Principal types.Identity   `json:"principal"`
		Base      *Amount          `json:"base"`
		Period    uint64           `json:"period"`
		Start     uint64           `json:"start"`
		Spending  []*SpendingState `json:"spending"`
	}
)

type OutboundKind uint8

const (
	OutboundTransfer OutboundKind = iota + 1
	OutboundCall
)

func (f *Fund) Write(hasher hash.Hash) error { return state.WriteCBOR(hasher, f) }

func (f *Fund) Copy() state.UnitData {
	c := &Fund{
		Balances:    make([]*Balance, len(f.Balances)),
		Locked:      f.Locked,
		CallTargets: slices.Clone(f.CallTargets),
	}
	for i, b := range f.Balances {
		c.Balances[i] = &Balance{Asset: b.Asset, Amount: b.Amount.Clone()}
	}
	return c
}

// Balance returns the balance of the asset, zero when the fund doesn't hold the asset.
func (f *Fund) Balance(asset string) *Amount {
	if idx, ok := f.balanceIdx(asset); ok {
		return f.Balances[idx].Amount.Clone()
	}
	return NewAmount(0)
}

func (f *Fund) setBalance(asset string, amount *Amount) {
	idx, ok := f.balanceIdx(asset)
	if ok {
		f.Balances[idx].Amount = amount
		return
	}
	f.Balances = slices.Insert(f.Balances, idx, &Balance{Asset: asset, Amount: amount})
}

func (f *Fund) balanceIdx(asset string) (int, bool) {
	return slices.BinarySearchFunc(f.Balances, asset, func(b *Balance, asset string) int {
		switch {
		case b.Asset < asset:
			return -1
		case b.Asset > asset:
			return 1
		}
		return 0
	})
}

func (f *Fund) CallAllowed(target types.Identity) bool {
	_, ok := slices.BinarySearchFunc(f.CallTargets, target, compareIdentity)
	return ok
}

func (f *Fund) setCallTarget(target types.Identity, allowed bool) {
	idx, ok := slices.BinarySearchFunc(f.CallTargets, target, compareIdentity)
	switch {
	case allowed && !ok:
		f.CallTargets = slices.Insert(f.CallTargets, idx, target)
	case !allowed && ok:
		f.CallTargets = slices.Delete(f.CallTargets, idx, idx+1)
	}
}

func compareIdentity(a, b types.Identity) int {
	return slices.Compare(a[:], b[:])
}

func (o *Outbound) Write(hasher hash.Hash) error { return state.WriteCBOR(hasher, o) }

func (o *Outbound) Copy() state.UnitData {
	c := *o
	c.Amount = o.Amount.Clone()
	c.Payload = slices.Clone(o.Payload)
	return &c
}

func (s *SpendingState) clone() *SpendingState {
	return &SpendingState{Asset: s.Asset, Spent: s.Spent.Clone(), PeriodStart: s.PeriodStart}
}

func cloneSpending(s []*SpendingState) []*SpendingState {
	r := make([]*SpendingState, len(s))
	for i, v := range s {
		r[i] = v.clone()
	}
	return r
}

func (g *RankGrant) Write(hasher hash.Hash) error { return state.WriteCBOR(hasher, g) }

func (g *RankGrant) Copy() state.UnitData {
	c := *g
	c.Base = g.Base.Clone()
	c.Multiplier = g.Multiplier.Clone()
	c.Spending = cloneSpending(g.Spending)
	return &c
}

func (g *IdentityGrant) Write(hasher hash.Hash) error { return state.WriteCBOR(hasher, g) }

func (g *IdentityGrant) Copy() state.UnitData {
	c := *g
	c.Base = g.Base.Clone()
	c.Spending = cloneSpending(g.Spending)
	return &c
}
