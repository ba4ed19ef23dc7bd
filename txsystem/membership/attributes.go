package membership

import (
	"github.com/alphabill-org/guild/txsystem/rank"
	"github.com/alphabill-org/guild/types"
)

const (
	TxSeedMember            = "seedMember"
	TxSetBootstrapParameter = "setBootstrapParameter"
	TxCloseBootstrap        = "closeBootstrap"
	TxChangeAuthority       = "changeAuthority"
	TxResign                = "resign"
)

type (
	// SeedMemberAttributes admits a member during the bootstrap phase, tx unit
	// is the registry unit.
	SeedMemberAttributes struct {
		_         struct{} `cbor:",toarray"`
		Authority types.Identity
		Rank      rank.Rank
	}

	SetBootstrapParameterAttributes struct {
		_     struct{} `cbor:",toarray"`
		Name  string
		Value uint64
	}

	CloseBootstrapAttributes struct {
		_ struct{} `cbor:",toarray"`
	}

	// ChangeAuthorityAttributes - member (tx unit) hands its authority over to
	// a new identity.
	ChangeAuthorityAttributes struct {
		_            struct{} `cbor:",toarray"`
		NewAuthority types.Identity
	}

	ResignAttributes struct {
		_ struct{} `cbor:",toarray"`
	}
)
