package state

import (
	"crypto"
)

type (
	options struct {
		hashAlgorithm crypto.Hash
	}

	Option func(o *options)
)

// WithHashAlgorithm sets the hash function of the unit and root hashes,
// unavailable algorithms are ignored and SHA-256 is used instead.
func WithHashAlgorithm(hashAlgorithm crypto.Hash) Option {
	return func(o *options) {
		if hashAlgorithm.Available() {
			o.hashAlgorithm = hashAlgorithm
		}
	}
}

func loadOptions(opts ...Option) *options {
	o := &options{hashAlgorithm: crypto.SHA256}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
