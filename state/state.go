package state

import (
	"crypto"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/alphabill-org/guild/types"
)

var ErrUnitNotFound = errors.New("not found")

type (
	/*
	State is a data structure that keeps track of units and calculates the state root hash.

	State can be changed by calling Apply function with one or more Action function. Savepoint method can be used
	to add a special marker to the state that allows all actions that are executed after savepoint was established
	to be rolled back. In the other words, savepoint lets you roll back part of the state changes instead of the
	entire state. Releasing a savepoint does NOT trigger a state root hash calculation. To calculate the root hash
	of the state use method CalculateRoot. Calling a Commit method commits and releases all savepoints.
	*/
	State struct {
		mutex          sync.RWMutex
		hashAlgorithm  crypto.Hash
		committed      map[string]*Unit
		committedRound uint64
		committedHash  []byte

		// savepoints are layers of changes on top of the committed units, the
		// first layer holds the changes of the current round. A nil unit in a
		// layer marks deleted unit.
		savepoints []changeSet
		// root hash of the latest savepoint, nil when not calculated after the latest change
		rootHash []byte
	}

	changeSet map[string]*Unit

	// UnitDataConstructor is a function that constructs an empty UnitData structure based on UnitID
	UnitDataConstructor func(types.UnitID) (UnitData, error)

	// stateView is the ShardState actions operate on: reads see through all the
	// savepoints, writes go to the latest savepoint.
	stateView struct {
		s *State
	}
)

func NewEmptyState(opts ...Option) *State {
	options := loadOptions(opts...)
	return &State{
		hashAlgorithm: options.hashAlgorithm,
		committed:     map[string]*Unit{},
		committedHash: make([]byte, options.hashAlgorithm.Size()),
		savepoints:    []changeSet{{}},
		rootHash:      make([]byte, options.hashAlgorithm.Size()),
	}
}

func NewRecoveredState(stateData io.Reader, udc UnitDataConstructor, opts ...Option) (*State, error) {
	if stateData == nil {
		return nil, fmt.Errorf("reader is nil")
	}
	if udc == nil {
		return nil, fmt.Errorf("unit data constructor is nil")
	}
	return readState(stateData, udc, opts...)
}

// Clone returns a clone of the state. The original state and the cloned state can be used by different goroutines but
// can never be merged. The cloned state is usually used by read only operations (e.g. API queries).
func (s *State) Clone() *State {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	committed := make(map[string]*Unit, len(s.committed))
	for k, u := range s.committed {
		committed[k] = u
	}
	changes := changeSet{}
	for _, sp := range s.savepoints {
		for k, u := range sp {
			changes[k] = u
		}
	}
	return &State{
		hashAlgorithm:  s.hashAlgorithm,
		committed:      committed,
		committedRound: s.committedRound,
		committedHash:  s.committedHash,
		savepoints:     []changeSet{changes},
		rootHash:       s.rootHash,
	}
}

func (s *State) GetUnit(id types.UnitID, committed bool) (*Unit, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var u *Unit
	if committed {
		u = s.committed[string(id)]
	} else {
		u = s.get(id)
	}
	if u == nil {
		return nil, fmt.Errorf("item %X does not exist: %w", []byte(id), ErrUnitNotFound)
	}
	return u.Clone(), nil
}

// Apply applies given actions to the state. All Action functions are executed together as a single atomic operation. If
// any of the Action functions returns an error all previous state changes made by any of the action function will be
// reverted.
func (s *State) Apply(actions ...Action) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	id := s.createSavepoint()
	view := stateView{s: s}
	for _, action := range actions {
		if err := action(view); err != nil {
			s.rollbackToSavepoint(id)
			return err
		}
	}
	s.releaseToSavepoint(id)
	return nil
}

// Commit makes the changes in the latest savepoint permanent.
func (s *State) Commit(round uint64) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if len(s.savepoints) != 1 {
		return fmt.Errorf("state has %d open savepoints", len(s.savepoints)-1)
	}
	if s.rootHash == nil {
		return fmt.Errorf("call CalculateRoot method before committing a state")
	}
	if round < s.committedRound {
		return fmt.Errorf("committing round %d, state is already at round %d", round, s.committedRound)
	}
	for k, u := range s.savepoints[0] {
		if u == nil {
			delete(s.committed, k)
		} else {
			s.committed[k] = u
		}
	}
	s.savepoints = []changeSet{{}}
	s.committedRound = round
	s.committedHash = s.rootHash
	return nil
}

// CommittedRound returns the round number of the committed state.
func (s *State) CommittedRound() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.committedRound
}

// CommittedHash returns the root hash of the committed state.
func (s *State) CommittedHash() []byte {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.committedHash
}

// Revert rolls back all changes made to the state.
func (s *State) Revert() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.savepoints = []changeSet{{}}
	s.rootHash = s.committedHash
}

// Savepoint creates a new savepoint and returns an id of the savepoint. Use RollbackToSavepoint to roll back all
// changes made after calling Savepoint method. Use ReleaseToSavepoint to save all changes made to the state.
func (s *State) Savepoint() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.createSavepoint()
}

// RollbackToSavepoint destroys savepoints without keeping the changes in the state. All actions that were executed
// after the savepoint was established are rolled back, restoring the state to what it was at the time of the savepoint.
func (s *State) RollbackToSavepoint(id int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.rollbackToSavepoint(id)
}

// ReleaseToSavepoint destroys all savepoints, keeping all state changes after it was created. If a savepoint with given
// id does not exist then this method does nothing.
//
// Releasing savepoints does NOT trigger a state root hash calculation. To calculate the root hash of the state a
// CalculateRoot method must be called.
func (s *State) ReleaseToSavepoint(id int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.releaseToSavepoint(id)
}

/*
CalculateRoot returns the root hash of the latest savepoint. The hash is calculated
over all the units in the ascending order of unit IDs:

	H(id_1 || H(data_1) || ... || id_n || H(data_n))

Empty state has all-zero root hash.
*/
func (s *State) CalculateRoot() ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.rootHash != nil {
		return s.rootHash, nil
	}
	ids := s.sortedIDs(false)
	if len(ids) == 0 {
		s.rootHash = make([]byte, s.hashAlgorithm.Size())
		return s.rootHash, nil
	}
	hasher := s.hashAlgorithm.New()
	dataHasher := s.hashAlgorithm.New()
	for _, id := range ids {
		u := s.get(types.UnitID(id))
		dataHasher.Reset()
		if u.data != nil {
			if err := u.data.Write(dataHasher); err != nil {
				return nil, fmt.Errorf("hashing unit %X: %w", []byte(id), err)
			}
		}
		hasher.Write([]byte(id))
		hasher.Write(dataHasher.Sum(nil))
	}
	s.rootHash = hasher.Sum(nil)
	return s.rootHash, nil
}

// IsCommitted returns true when there are no uncommitted changes in the state.
func (s *State) IsCommitted() bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.savepoints) == 1 && len(s.savepoints[0]) == 0
}

// Size returns the number of units in the latest savepoint.
func (s *State) Size() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.sortedIDs(false))
}

func (s *State) HashAlgorithm() crypto.Hash {
	return s.hashAlgorithm
}

/*
Traverse calls fn for every unit in ascending order of unit IDs. Traversal stops
on the first error returned by fn.
*/
func (s *State) Traverse(fn func(id types.UnitID, u *Unit) error, committed bool) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	for _, id := range s.sortedIDs(committed) {
		var u *Unit
		if committed {
			u = s.committed[id]
		} else {
			u = s.get(types.UnitID(id))
		}
		if err := fn(types.UnitID(id), u.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// GetUnits returns IDs of units of the given type, nil type returns all units.
func (s *State) GetUnits(unitType *byte, committed bool) ([]types.UnitID, error) {
	filter := NewFilter(func(unitID types.UnitID, _ *Unit) (bool, error) {
		if unitType == nil {
			return true, nil
		}
		return unitID.HasType(*unitType), nil
	})
	if err := s.Traverse(filter.Visit, committed); err != nil {
		return nil, fmt.Errorf("failed to traverse state: %w", err)
	}
	return filter.FilteredUnitIDs(), nil
}

func (s *State) createSavepoint() int {
	s.savepoints = append(s.savepoints, changeSet{})
	return len(s.savepoints) - 1
}

func (s *State) rollbackToSavepoint(id int) {
	if id < 1 || id >= len(s.savepoints) {
		// nothing to revert
		return
	}
	s.savepoints = s.savepoints[0:id]
	s.rootHash = nil
}

func (s *State) releaseToSavepoint(id int) {
	if id < 1 || id >= len(s.savepoints) {
		// nothing to release
		return
	}
	target := s.savepoints[id-1]
	for _, sp := range s.savepoints[id:] {
		for k, u := range sp {
			target[k] = u
		}
	}
	s.savepoints = s.savepoints[0:id]
}

func (s *State) get(id types.UnitID) *Unit {
	k := string(id)
	for i := len(s.savepoints) - 1; i >= 0; i-- {
		if u, ok := s.savepoints[i][k]; ok {
			return u
		}
	}
	return s.committed[k]
}

func (s *State) sortedIDs(committed bool) []string {
	ids := make([]string, 0, len(s.committed))
	if committed {
		for k := range s.committed {
			ids = append(ids, k)
		}
	} else {
		seen := map[string]struct{}{}
		for k := range s.committed {
			seen[k] = struct{}{}
		}
		for _, sp := range s.savepoints {
			for k := range sp {
				seen[k] = struct{}{}
			}
		}
		for k := range seen {
			if s.get(types.UnitID(k)) != nil {
				ids = append(ids, k)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

func (v stateView) Add(id types.UnitID, u *Unit) error {
	if v.s.get(id) != nil {
		return fmt.Errorf("key %X exists", []byte(id))
	}
	v.set(id, u)
	return nil
}

func (v stateView) Get(id types.UnitID) (*Unit, error) {
	u := v.s.get(id)
	if u == nil {
		return nil, fmt.Errorf("item %X does not exist: %w", []byte(id), ErrUnitNotFound)
	}
	return u, nil
}

func (v stateView) Update(id types.UnitID, u *Unit) error {
	if v.s.get(id) == nil {
		return fmt.Errorf("item %X does not exist: %w", []byte(id), ErrUnitNotFound)
	}
	v.set(id, u)
	return nil
}

func (v stateView) Delete(id types.UnitID) error {
	if v.s.get(id) == nil {
		return fmt.Errorf("item %X does not exist: %w", []byte(id), ErrUnitNotFound)
	}
	v.set(id, nil)
	return nil
}

func (v stateView) set(id types.UnitID, u *Unit) {
	v.s.savepoints[len(v.s.savepoints)-1][string(id)] = u
	v.s.rootHash = nil
}
