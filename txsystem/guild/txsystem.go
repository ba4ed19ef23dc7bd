package guild

import (
	"crypto"
	"fmt"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/txsystem"
	"github.com/alphabill-org/guild/txsystem/membership"
	"github.com/alphabill-org/guild/txsystem/orders"
	"github.com/alphabill-org/guild/txsystem/proposals"
	"github.com/alphabill-org/guild/txsystem/treasury"
	txtypes "github.com/alphabill-org/guild/txsystem/types"
	"github.com/alphabill-org/guild/types"
)

const DefaultPartitionID types.PartitionID = 0x00000007

type (
	Options struct {
		partitionID   types.PartitionID
		state         *state.State
		hashAlgorithm crypto.Hash
	}

	Option func(*Options)
)

func WithPartitionID(id types.PartitionID) Option {
	return func(o *Options) {
		o.partitionID = id
	}
}

// WithState makes the tx system to operate on existing (ie genesis or
// recovered) state.
func WithState(s *state.State) Option {
	return func(o *Options) {
		o.state = s
	}
}

func WithHashAlgorithm(hashAlgorithm crypto.Hash) Option {
	return func(o *Options) {
		o.hashAlgorithm = hashAlgorithm
	}
}

/*
NewTxSystem creates transaction system with all the guild modules (membership,
orders, proposals and treasury) sharing the same state.
*/
func NewTxSystem(observe txsystem.Observability, opts ...Option) (*txsystem.GenericTxSystem, error) {
	options := &Options{
		partitionID:   DefaultPartitionID,
		hashAlgorithm: crypto.SHA256,
	}
	for _, option := range opts {
		option(options)
	}
	if options.state == nil {
		options.state = state.NewEmptyState(state.WithHashAlgorithm(options.hashAlgorithm))
	}

	modules, err := NewModules(options.state)
	if err != nil {
		return nil, err
	}
	return txsystem.NewGenericTxSystem(
		options.partitionID,
		modules,
		observe,
		txsystem.WithHashAlgorithm(options.hashAlgorithm),
		txsystem.WithState(options.state),
	)
}

// NewModules creates the guild modules on the state "s" in dependency order.
func NewModules(s *state.State) ([]txtypes.Module, error) {
	membershipModule, err := membership.NewModule(s)
	if err != nil {
		return nil, fmt.Errorf("creating membership module: %w", err)
	}
	ordersModule, err := orders.NewModule(s, membershipModule.Registry())
	if err != nil {
		return nil, fmt.Errorf("creating orders module: %w", err)
	}
	treasuryModule, err := treasury.NewModule(s, membershipModule.Registry())
	if err != nil {
		return nil, fmt.Errorf("creating treasury module: %w", err)
	}
	proposalsModule, err := proposals.NewModule(s, membershipModule.Registry(), ordersModule, treasuryModule)
	if err != nil {
		return nil, fmt.Errorf("creating proposals module: %w", err)
	}
	return []txtypes.Module{membershipModule, ordersModule, treasuryModule, proposalsModule}, nil
}
