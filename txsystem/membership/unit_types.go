package membership

import (
	"hash"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem/rank"
	"github.com/alphabill-org/guild/types"
)

const (
	MemberUnitType   = 0x01
	IdentityUnitType = 0x02
	RegistryUnitType = 0x03
)

var RegistryID = types.NewUnitID(RegistryUnitType, 0)

func NewMemberID(memberID uint64) types.UnitID {
	return types.NewUnitID(MemberUnitType, memberID)
}

func NewIdentityID(id types.Identity) types.UnitID {
	return types.NewUnitIDFromBytes(IdentityUnitType, id[:])
}

// PendingKind is the kind of the action occupying the pending action slot of a member.
type PendingKind uint8

const (
	PendingNone PendingKind = iota
	PendingOrder
	PendingProposal
)

func (k PendingKind) String() string {
	switch k {
	case PendingNone:
		return "none"
	case PendingOrder:
		return "order"
	case PendingProposal:
		return "proposal"
	default:
		return "unknown"
	}
}

type (
	// PendingAction is the order or proposal which is going to mutate the member.
	PendingAction struct {
		_    struct{}    `cbor:",toarray"`
		Kind PendingKind `json:"kind"`
		ID   uint64      `json:"id"`
	}

	Member struct {
		_         struct{}       `cbor:",toarray"`
		ID        uint64         `json:"id"`
		Rank      rank.Rank      `json:"rank"`
		Authority types.Identity `json:"authority"`
		JoinedAt  uint64         `json:"joinedAt"`
		Active    bool           `json:"active"`
		Pending   PendingAction  `json:"pending"`
		// number of Pending orders issued by the member
		ActiveOrders uint32 `json:"activeOrders"`
		// number of proposals in Voting state created by the member
		ActiveProposals uint32 `json:"activeProposals"`
	}

	// IdentityIndex maps authority identity to the member.
	IdentityIndex struct {
		_        struct{} `cbor:",toarray"`
		MemberID uint64
	}

	// RegistryData holds the member id counter and the bootstrap phase state.
	RegistryData struct {
		_                  struct{}       `cbor:",toarray"`
		LastMemberID       uint64         `json:"lastMemberId"`
		BootstrapOpen      bool           `json:"bootstrapOpen"`
		BootstrapAuthority types.Identity `json:"bootstrapAuthority"`
	}
)

func (m *Member) Write(hasher hash.Hash) error { return state.WriteCBOR(hasher, m) }

func (m *Member) Copy() state.UnitData {
	c := *m
	return &c
}

// Power is the voting power the member currently should have in the ledger.
func (m *Member) Power() uint64 {
	if !m.Active {
		return 0
	}
	return m.Rank.Power()
}

func (m *Member) HasPendingAction() bool {
	return m.Pending.Kind != PendingNone
}

func (ii *IdentityIndex) Write(hasher hash.Hash) error { return state.WriteCBOR(hasher, ii) }

func (ii *IdentityIndex) Copy() state.UnitData {
	return &IdentityIndex{MemberID: ii.MemberID}
}

func (r *RegistryData) Write(hasher hash.Hash) error { return state.WriteCBOR(hasher, r) }

func (r *RegistryData) Copy() state.UnitData {
	c := *r
	return &c
}
