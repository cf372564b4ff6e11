package contract

import (
	"fmt"
	"sort"

	"github.com/eauxxs/rgb-std/pkg/canonhash"
)

// MergeRevealError reports two observations that claim to describe the
// same entity but contradict each other. Merge-reveal never overwrites
// previously known data.
type MergeRevealError struct {
	Field string
	Left  string
	Right string
}

func (e *MergeRevealError) Error() string {
	return fmt.Sprintf("merge-reveal conflict on %s: %s vs %s", e.Field, e.Left, e.Right)
}

// RevealError reports an attempt to reveal a transition a bundle's input
// map does not reference.
type RevealError struct {
	BundleID BundleID
	OpID     OpID
}

func (e *RevealError) Error() string {
	return fmt.Sprintf("transition %s is not part of bundle %s", e.OpID, e.BundleID)
}

// TransitionBundle groups the transitions of one contract anchored by a
// single witness. The input map is complete from construction; known
// transitions are revealed progressively.
//
// Invariant: every known transition id appears among the input map values.
type TransitionBundle struct {
	InputMap         map[Opout]OpID      `json:"inputMap"`
	KnownTransitions map[OpID]Transition `json:"knownTransitions"`
}

// NewBundle builds a fully revealed bundle from transitions.
func NewBundle(transitions ...Transition) TransitionBundle {
	b := TransitionBundle{
		InputMap:         make(map[Opout]OpID),
		KnownTransitions: make(map[OpID]Transition, len(transitions)),
	}
	for _, t := range transitions {
		id := t.ID()
		b.KnownTransitions[id] = t
		for _, in := range t.Inputs {
			b.InputMap[in.PrevOut] = id
		}
	}
	return b
}

// BundleID derives the bundle id from the input map alone, so partial
// reveals and merge-reveal never change it.
func (b TransitionBundle) BundleID() BundleID {
	type entry struct {
		PrevOut Opout `json:"prevOut"`
		OpID    OpID  `json:"opId"`
	}
	entries := make([]entry, 0, len(b.InputMap))
	for opout, opid := range b.InputMap {
		entries = append(entries, entry{PrevOut: opout, OpID: opid})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PrevOut.Less(entries[j].PrevOut) })
	id, err := canonhash.SumID(entries)
	if err != nil {
		panic(fmt.Sprintf("bundle commitment: %v", err))
	}
	return BundleID(id)
}

// CheckConsistency verifies that known transition ids form a subset of the
// input map values.
func (b TransitionBundle) CheckConsistency() bool {
	values := make(map[OpID]struct{}, len(b.InputMap))
	for _, id := range b.InputMap {
		values[id] = struct{}{}
	}
	for id := range b.KnownTransitions {
		if _, ok := values[id]; !ok {
			return false
		}
	}
	return true
}

// References reports whether the input map mentions the given operation.
func (b TransitionBundle) References(id OpID) bool {
	for _, v := range b.InputMap {
		if v == id {
			return true
		}
	}
	return false
}

// RevealTransition adds a transition to the known set. The transition must
// be referenced by the input map; a differing observation of an already
// known transition is a merge-reveal conflict.
func (b *TransitionBundle) RevealTransition(t Transition) error {
	id := t.ID()
	if !b.References(id) {
		return &RevealError{BundleID: b.BundleID(), OpID: id}
	}
	if known, ok := b.KnownTransitions[id]; ok {
		merged, err := known.MergeReveal(t)
		if err != nil {
			return err
		}
		t = merged
	}
	if b.KnownTransitions == nil {
		b.KnownTransitions = make(map[OpID]Transition)
	}
	b.KnownTransitions[id] = t
	return nil
}

// Clone returns a bundle with fresh map headers, so reveals on the copy
// never reach the original. Transition values are shared; they are only
// ever replaced wholesale, never mutated in place.
func (b TransitionBundle) Clone() TransitionBundle {
	out := TransitionBundle{
		InputMap:         make(map[Opout]OpID, len(b.InputMap)),
		KnownTransitions: make(map[OpID]Transition, len(b.KnownTransitions)),
	}
	for opout, id := range b.InputMap {
		out.InputMap[opout] = id
	}
	for id, t := range b.KnownTransitions {
		out.KnownTransitions[id] = t
	}
	return out
}

// MergeReveal combines two partial reveals of the same bundle. The merge
// is commutative and idempotent and only ever adds knowledge.
func (b TransitionBundle) MergeReveal(other TransitionBundle) (TransitionBundle, error) {
	if b.BundleID() != other.BundleID() {
		return TransitionBundle{}, &MergeRevealError{Field: "bundle", Left: b.BundleID().String(), Right: other.BundleID().String()}
	}
	out := TransitionBundle{
		InputMap:         b.InputMap,
		KnownTransitions: make(map[OpID]Transition, len(b.KnownTransitions)),
	}
	for id, t := range b.KnownTransitions {
		out.KnownTransitions[id] = t
	}
	for id, t := range other.KnownTransitions {
		if known, ok := out.KnownTransitions[id]; ok {
			merged, err := known.MergeReveal(t)
			if err != nil {
				return TransitionBundle{}, err
			}
			out.KnownTransitions[id] = merged
			continue
		}
		out.KnownTransitions[id] = t
	}
	return out, nil
}

// TransitionIDs lists known transition ids in ascending order.
func (b TransitionBundle) TransitionIDs() []OpID {
	ids := make([]OpID, 0, len(b.KnownTransitions))
	for id := range b.KnownTransitions {
		ids = append(ids, id)
	}
	SortHashes(ids)
	return ids
}
