package types

import (
	"fmt"
	"hash"

	"github.com/alphabill-org/guild/state"
	"github.com/alphabill-org/guild/types"
)

// Counter is the unit data of ID counters, holds the last assigned ID.
type Counter struct {
	_     struct{} `cbor:",toarray"`
	Value uint64
}

func (c *Counter) Write(hasher hash.Hash) error { return state.WriteCBOR(hasher, c) }

func (c *Counter) Copy() state.UnitData { return &Counter{Value: c.Value} }

/*
NextID returns action which increments the counter unit "id" (the unit is
created when it doesn't exist) and assigns the new value of the counter to
"value". As counters live in the state the ID allocation of failed
transaction is rolled back too.
*/
func NextID(id types.UnitID, value *uint64) state.Action {
	return state.AddOrUpdateUnit(id, func(data state.UnitData) (state.UnitData, error) {
		if data == nil {
			*value = 1
			return &Counter{Value: 1}, nil
		}
		c, ok := data.(*Counter)
		if !ok {
			return nil, fmt.Errorf("unit %s is not a counter but %T", id, data)
		}
		c.Value++
		*value = c.Value
		return c, nil
	})
}
