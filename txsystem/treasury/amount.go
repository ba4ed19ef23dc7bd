package treasury

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/alphabill-org/guild/types"
)

/*
Amount is a fund amount in base units of the asset.

In CBOR the amount is encoded as minimal big-endian byte string, in text
encodings (JSON, YAML) as decimal number.
*/
type Amount uint256.Int

func NewAmount(v uint64) *Amount {
	return (*Amount)(uint256.NewInt(v))
}

// AmountFromInt returns copy of "v" as Amount.
func AmountFromInt(v *uint256.Int) *Amount {
	return (*Amount)(new(uint256.Int).Set(v))
}

// Int returns the amount as uint256.Int, the returned value shares memory with the amount.
func (a *Amount) Int() *uint256.Int {
	return (*uint256.Int)(a)
}

// Clone returns copy of the amount, zero amount when "a" is nil.
func (a *Amount) Clone() *Amount {
	if a == nil {
		return NewAmount(0)
	}
	return AmountFromInt(a.Int())
}

func (a *Amount) IsZero() bool {
	return a == nil || a.Int().IsZero()
}

func (a *Amount) Cmp(b *Amount) int {
	return a.Clone().Int().Cmp(b.Clone().Int())
}

func (a *Amount) String() string {
	if a == nil {
		return "0"
	}
	return a.Int().Dec()
}

func (a *Amount) MarshalCBOR() ([]byte, error) {
	return types.Cbor.Marshal(a.Int().Bytes())
}

func (a *Amount) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := types.Cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	if len(b) > 32 {
		return fmt.Errorf("amount is %d bytes, max 32 bytes allowed", len(b))
	}
	a.Int().SetBytes(b)
	return nil
}

func (a *Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Amount) UnmarshalText(text []byte) error {
	if err := a.Int().SetFromDecimal(string(text)); err != nil {
		return fmt.Errorf("invalid amount %q: %w", text, err)
	}
	return nil
}

// add returns a+b, error on overflow.
func add(a, b *Amount) (*Amount, error) {
	r, overflow := new(uint256.Int).AddOverflow(a.Clone().Int(), b.Clone().Int())
	if overflow {
		return nil, fmt.Errorf("amount overflow: %s + %s", a, b)
	}
	return (*Amount)(r), nil
}

// sub returns a-b, error when b > a.
func sub(a, b *Amount) (*Amount, error) {
	r, underflow := new(uint256.Int).SubOverflow(a.Clone().Int(), b.Clone().Int())
	if underflow {
		return nil, fmt.Errorf("amount underflow: %s - %s", a, b)
	}
	return (*Amount)(r), nil
}
