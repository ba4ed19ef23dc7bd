package types

import (
	"crypto"
	"errors"
	"fmt"
)

type (
	TransactionOrder struct {
		_          struct{} `cbor:",toarray"`
		Payload    *Payload
		OwnerProof Bytes
	}

	Payload struct {
		_              struct{} `cbor:",toarray"`
		PartitionID    PartitionID
		Type           string
		UnitID         UnitID
		Attributes     RawCBOR
		ClientMetadata *ClientMetadata
	}

	ClientMetadata struct {
		_               struct{} `cbor:",toarray"`
		Timeout         uint64   // the transaction expires at this round
		ReferenceNumber []byte
	}

	ProofGenerator func(bytesToSign []byte) (proof []byte, err error)
)

func (t *TransactionOrder) PayloadBytes() ([]byte, error) {
	if t.Payload == nil {
		return nil, errors.New("payload is nil")
	}
	return t.Payload.Bytes()
}

func (t *TransactionOrder) UnmarshalAttributes(v any) error {
	if t == nil {
		return errors.New("transaction order is nil")
	}
	return t.Payload.UnmarshalAttributes(v)
}

func (t *TransactionOrder) UnitID() UnitID {
	if t.Payload == nil {
		return nil
	}
	return t.Payload.UnitID
}

func (t *TransactionOrder) PartitionID() PartitionID {
	if t.Payload == nil {
		return 0
	}
	return t.Payload.PartitionID
}

func (t *TransactionOrder) Timeout() uint64 {
	if t.Payload == nil || t.Payload.ClientMetadata == nil {
		return 0
	}
	return t.Payload.ClientMetadata.Timeout
}

func (t *TransactionOrder) PayloadType() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload.Type
}

func (t *TransactionOrder) Hash(algorithm crypto.Hash) ([]byte, error) {
	b, err := Cbor.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encoding transaction order: %w", err)
	}
	hasher := algorithm.New()
	hasher.Write(b)
	return hasher.Sum(nil), nil
}

/*
SetOwnerProof assigns the bytes returned by the function provided as argument to
the OwnerProof field unless the function (or reading data to be signed by that
function) returned error.
*/
func (t *TransactionOrder) SetOwnerProof(proofer ProofGenerator) error {
	data, err := t.PayloadBytes()
	if err != nil {
		return fmt.Errorf("reading payload bytes to sign: %w", err)
	}
	if t.OwnerProof, err = proofer(data); err != nil {
		return fmt.Errorf("generating owner proof: %w", err)
	}
	return nil
}

/*
SetAttributes serializes "attr" and assigns the result to payload's Attributes field.
The "attr" is expected to be one of the transaction attribute structs but there is
no validation!
The Payload.UnmarshalAttributes can be used to decode the attributes.
*/
func (p *Payload) SetAttributes(attr any) error {
	b, err := Cbor.Marshal(attr)
	if err != nil {
		return fmt.Errorf("marshaling %T as tx attributes: %w", attr, err)
	}
	p.Attributes = b
	return nil
}

func (p *Payload) UnmarshalAttributes(v any) error {
	if p == nil {
		return errors.New("payload is nil")
	}
	return Cbor.Unmarshal(p.Attributes, v)
}

func (p *Payload) Bytes() ([]byte, error) {
	return Cbor.Marshal(p)
}
