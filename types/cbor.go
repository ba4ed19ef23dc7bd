package types

import (
	"bytes"
	"errors"
	"io"

	"github.com/fxamacker/cbor/v2"
)

var Cbor = newCborHandler()

var cborNil = []byte{0xf6}

type (
	// RawCBOR is a pre-encoded CBOR item, it is written to the output as is.
	RawCBOR []byte

	cborHandler struct {
		encMode cbor.EncMode
		decMode cbor.DecMode
	}
)

func newCborHandler() cborHandler {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{MaxArrayElements: 1 << 20, MaxMapPairs: 1 << 20}.DecMode()
	if err != nil {
		panic(err)
	}
	return cborHandler{encMode: enc, decMode: dec}
}

func (c cborHandler) Marshal(v any) ([]byte, error) {
	return c.encMode.Marshal(v)
}

func (c cborHandler) Unmarshal(data []byte, v any) error {
	return c.decMode.Unmarshal(data, v)
}

func (c cborHandler) Encode(w io.Writer, v any) error {
	return c.encMode.NewEncoder(w).Encode(v)
}

func (c cborHandler) Decode(r io.Reader, v any) error {
	return c.decMode.NewDecoder(r).Decode(v)
}

func (c cborHandler) GetEncoder(w io.Writer) (*cbor.Encoder, error) {
	return c.encMode.NewEncoder(w), nil
}

func (c cborHandler) GetDecoder(r io.Reader) *cbor.Decoder {
	return c.decMode.NewDecoder(r)
}

// MarshalCBOR returns r or CBOR nil if r is empty.
func (r RawCBOR) MarshalCBOR() ([]byte, error) {
	if len(r) == 0 || bytes.Equal(r, cborNil) {
		return cborNil, nil
	}
	return r, nil
}

// UnmarshalCBOR creates a copy of data and saves to *r.
func (r *RawCBOR) UnmarshalCBOR(data []byte) error {
	if r == nil {
		return errors.New("UnmarshalCBOR on nil pointer")
	}
	if bytes.Equal(data, cborNil) {
		*r = nil
		return nil
	}
	*r = bytes.Clone(data)
	return nil
}
