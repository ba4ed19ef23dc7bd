package votingpower

import (
	"hash"
	"slices"
	"sort"

	"github.com/alphabill-org/guild/state"
)

type (
	// Checkpoint is the voting power "Value" in effect from ledger height "Height".
	Checkpoint struct {
		_      struct{} `cbor:",toarray"`
		Height uint64
		Value  uint64
	}

	// History is the unit data of both the member and the total power units.
	// Checkpoints are ordered by strictly increasing height.
	History struct {
		_           struct{} `cbor:",toarray"`
		Checkpoints []Checkpoint
	}
)

func (h *History) Write(hasher hash.Hash) error {
	return state.WriteCBOR(hasher, h)
}

func (h *History) Copy() state.UnitData {
	return &History{Checkpoints: slices.Clone(h.Checkpoints)}
}

/*
ValueAt returns the value of the checkpoint with greatest height not after
"height", zero when there is no such checkpoint.
*/
func (h *History) ValueAt(height uint64) uint64 {
	if h == nil {
		return 0
	}
	// index of the first checkpoint after the height
	idx := sort.Search(len(h.Checkpoints), func(i int) bool {
		return h.Checkpoints[i].Height > height
	})
	if idx == 0 {
		return 0
	}
	return h.Checkpoints[idx-1].Value
}

// Latest returns the value of the last checkpoint.
func (h *History) Latest() uint64 {
	if h == nil || len(h.Checkpoints) == 0 {
		return 0
	}
	return h.Checkpoints[len(h.Checkpoints)-1].Value
}

/*
push appends checkpoint or, when the height is the same as the height of the
last checkpoint, overwrites the value of the last checkpoint.
*/
func (h *History) push(height, value uint64) error {
	n := len(h.Checkpoints)
	if n > 0 {
		last := &h.Checkpoints[n-1]
		switch {
		case last.Height > height:
			return ErrCheckpointOutOfOrder
		case last.Height == height:
			last.Value = value
			return nil
		}
	}
	h.Checkpoints = append(h.Checkpoints, Checkpoint{Height: height, Value: value})
	return nil
}
