package txsystem

import (
	"crypto"

	"github.com/alphabill-org/guild/state"
)

type Options struct {
	hashAlgorithm       crypto.Hash
	state               *state.State
	beginBlockFunctions []func(round uint64) error
	endBlockFunctions   []func(round uint64) error
}

type Option func(*Options)

func DefaultOptions() *Options {
	return &Options{
		hashAlgorithm: crypto.SHA256,
		state:         state.NewEmptyState(),
	}
}

func WithBeginBlockFunctions(funcs ...func(round uint64) error) Option {
	return func(g *Options) {
		g.beginBlockFunctions = append(g.beginBlockFunctions, funcs...)
	}
}

func WithEndBlockFunctions(funcs ...func(round uint64) error) Option {
	return func(g *Options) {
		g.endBlockFunctions = append(g.endBlockFunctions, funcs...)
	}
}

func WithHashAlgorithm(hashAlgorithm crypto.Hash) Option {
	return func(g *Options) {
		g.hashAlgorithm = hashAlgorithm
	}
}

// WithState makes the tx system to operate on existing state, the modules
// must use the same state.
func WithState(s *state.State) Option {
	return func(g *Options) {
		g.state = s
	}
}
