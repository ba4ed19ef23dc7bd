package state

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/guild/types"
)

type (
	ShardState interface {
		Add(id types.UnitID, u *Unit) error
		Get(id types.UnitID) (*Unit, error)
		Update(id types.UnitID, unit *Unit) error
		Delete(id types.UnitID) error
	}

	Action func(s ShardState) error

	// UpdateFunction is a function for updating the data of an item. Taken in previous UnitData and returns new UnitData.
	UpdateFunction func(data UnitData) (newData UnitData, err error)
)

// AddUnit adds a new unit with given identifier and unit data.
func AddUnit(id types.UnitID, data UnitData) Action {
	return func(s ShardState) error {
		if id == nil {
			return errors.New("id is nil")
		}
		if err := s.Add(id, NewUnit(copyData(data))); err != nil {
			return fmt.Errorf("unable to add unit: %w", err)
		}
		return nil
	}
}

// UpdateUnitData changes the data of the item.
func UpdateUnitData(id types.UnitID, f UpdateFunction) Action {
	return func(s ShardState) error {
		if f == nil {
			return errors.New("update function is nil")
		}
		u, err := s.Get(id)
		if err != nil {
			return fmt.Errorf("failed to get unit: %w", err)
		}

		cloned := u.Clone()
		newData, err := f(cloned.data)
		if err != nil {
			return fmt.Errorf("unable to update unit data: %w", err)
		}
		cloned.data = newData
		if err = s.Update(id, cloned); err != nil {
			return fmt.Errorf("unable to update unit: %w", err)
		}
		return nil
	}
}

// AddOrUpdateUnit adds the unit when it doesn't exist yet (f receives nil data) or updates it.
func AddOrUpdateUnit(id types.UnitID, f UpdateFunction) Action {
	return func(s ShardState) error {
		if f == nil {
			return errors.New("update function is nil")
		}
		u, err := s.Get(id)
		if err != nil && !errors.Is(err, ErrUnitNotFound) {
			return fmt.Errorf("failed to get unit: %w", err)
		}
		if u == nil {
			data, err := f(nil)
			if err != nil {
				return fmt.Errorf("unable to create unit data: %w", err)
			}
			return AddUnit(id, data)(s)
		}
		return UpdateUnitData(id, f)(s)
	}
}

// DeleteUnit removes the unit from the state with given identifier.
func DeleteUnit(id types.UnitID) Action {
	return func(s ShardState) error {
		if id == nil {
			return errors.New("id is nil")
		}
		if err := s.Delete(id); err != nil {
			return fmt.Errorf("unable to delete unit: %w", err)
		}
		return nil
	}
}
