package state

import (
	"fmt"
	"hash"

	"github.com/alphabill-org/guild/types"
)

type (
	// UnitData is the module specific content of a unit.
	UnitData interface {
		// Write adds the data to the hasher, used to calculate the state root hash.
		Write(hasher hash.Hash) error
		Copy() UnitData
	}

	// UnitReader is implemented by the State and by the transaction execution
	// context, modules use it to read units.
	UnitReader interface {
		GetUnit(id types.UnitID, committed bool) (*Unit, error)
	}

	// Unit is an item in the state.
	Unit struct {
		data UnitData
	}
)

func NewUnit(data UnitData) *Unit {
	return &Unit{
		data: data,
	}
}

func (u *Unit) Clone() *Unit {
	if u == nil {
		return nil
	}
	return &Unit{
		data: copyData(u.data),
	}
}

func (u *Unit) String() string {
	return fmt.Sprintf("data=%T", u.data)
}

func (u *Unit) Data() UnitData {
	return copyData(u.data)
}

func MarshalUnitData(u UnitData) ([]byte, error) {
	return types.Cbor.Marshal(u)
}

/*
WriteCBOR is a helper for UnitData implementations: it writes the
canonical CBOR encoding of the data into the hasher.
*/
func WriteCBOR(hasher hash.Hash, data any) error {
	b, err := types.Cbor.Marshal(data)
	if err != nil {
		return fmt.Errorf("encoding unit data: %w", err)
	}
	_, err = hasher.Write(b)
	return err
}

func copyData(data UnitData) UnitData {
	if data == nil {
		return nil
	}
	return data.Copy()
}
