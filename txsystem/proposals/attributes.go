package proposals

type (
	// CreateProposalAttributes - tx unit is the proposal counter unit.
	CreateProposalAttributes struct {
		_      struct{} `cbor:",toarray"`
		Action ActionEnvelope
	}

	// VoteAttributes - tx unit is the proposal, Support is true for "yes" vote.
	VoteAttributes struct {
		_       struct{} `cbor:",toarray"`
		Support bool
	}

	FinalizeProposalAttributes struct {
		_ struct{} `cbor:",toarray"`
	}

	ExecuteProposalAttributes struct {
		_ struct{} `cbor:",toarray"`
	}
)
