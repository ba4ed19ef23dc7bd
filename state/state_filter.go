package state

import (
	"github.com/alphabill-org/guild/types"
)

type (
	Filter struct {
		filterFn        func(unitID types.UnitID, unit *Unit) (bool, error)
		filteredUnitIDs []types.UnitID
	}
)

func NewFilter(filterFn func(unitID types.UnitID, unit *Unit) (bool, error)) *Filter {
	return &Filter{filterFn: filterFn}
}

// Visit is the State.Traverse callback collecting the IDs accepted by the filter function.
func (f *Filter) Visit(unitID types.UnitID, unit *Unit) error {
	ok, err := f.filterFn(unitID, unit)
	if err != nil {
		return err
	}
	if ok {
		f.filteredUnitIDs = append(f.filteredUnitIDs, unitID)
	}
	return nil
}

func (f *Filter) FilteredUnitIDs() []types.UnitID {
	return f.filteredUnitIDs
}
