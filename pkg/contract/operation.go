package contract

import (
	"fmt"
	"sort"

	"github.com/eauxxs/rgb-std/pkg/canonhash"
)

// Input consumes one prior operation output.
type Input struct {
	PrevOut Opout `json:"prevOut"`
}

// Assignment is one typed output of an operation: a seal plus the state it
// carries.
type Assignment struct {
	Seal  AssignmentSeal `json:"seal"`
	State PersistedState `json:"state"`
}

// MergeReveal combines two observations of the same assignment.
func (a Assignment) MergeReveal(other Assignment) (Assignment, error) {
	seal, err := a.Seal.MergeReveal(other.Seal)
	if err != nil {
		return Assignment{}, err
	}
	if !a.State.SameValue(other.State) {
		return Assignment{}, &MergeRevealError{Field: "assignment state", Left: a.Seal.Secret().String(), Right: other.Seal.Secret().String()}
	}
	return Assignment{Seal: seal, State: a.State}, nil
}

// Transition is a state-update operation: it consumes prior outputs and
// produces new typed assignments.
type Transition struct {
	ContractID     ContractID                      `json:"contractId"`
	TransitionType uint16                          `json:"transitionType"`
	Inputs         []Input                         `json:"inputs"`
	Assignments    map[AssignmentType][]Assignment `json:"assignments"`
	Metadata       []byte                          `json:"metadata,omitempty"`
}

// opCommitment is the concealed projection hashed into the operation id.
// Seals appear only in secret form so revealing them keeps the id stable.
type opCommitment struct {
	ContractID     ContractID `json:"contractId"`
	TransitionType uint16     `json:"transitionType"`
	Inputs         []Opout    `json:"inputs"`
	Assignments    []struct {
		Ty    AssignmentType `json:"ty"`
		Seal  SecretSeal     `json:"seal"`
		State PersistedState `json:"state"`
	} `json:"assignments"`
	Metadata []byte `json:"metadata,omitempty"`
}

// ID derives the operation id from the concealed transition content.
func (t Transition) ID() OpID {
	var c opCommitment
	c.ContractID = t.ContractID
	c.TransitionType = t.TransitionType
	c.Inputs = make([]Opout, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		c.Inputs = append(c.Inputs, in.PrevOut)
	}
	SortOpouts(c.Inputs)
	for _, ty := range t.AssignmentTypes() {
		for _, a := range t.Assignments[ty] {
			c.Assignments = append(c.Assignments, struct {
				Ty    AssignmentType `json:"ty"`
				Seal  SecretSeal     `json:"seal"`
				State PersistedState `json:"state"`
			}{Ty: ty, Seal: a.Seal.Secret(), State: a.State})
		}
	}
	c.Metadata = t.Metadata
	id, err := canonhash.SumID(c)
	if err != nil {
		panic(fmt.Sprintf("transition commitment: %v", err))
	}
	return OpID(id)
}

// AssignmentTypes lists the transition's assignment types in ascending
// order.
func (t Transition) AssignmentTypes() []AssignmentType {
	types := make([]AssignmentType, 0, len(t.Assignments))
	for ty := range t.Assignments {
		types = append(types, ty)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Assignment returns the assignment at (ty, no).
func (t Transition) Assignment(ty AssignmentType, no uint16) (Assignment, bool) {
	list := t.Assignments[ty]
	if int(no) >= len(list) {
		return Assignment{}, false
	}
	return list[no], true
}

// MergeReveal combines two observations of the same transition. The merge
// is commutative and idempotent; observations of different transitions or
// contradicting reveals are an error.
func (t Transition) MergeReveal(other Transition) (Transition, error) {
	if t.ID() != other.ID() {
		return Transition{}, &MergeRevealError{Field: "transition", Left: t.ID().String(), Right: other.ID().String()}
	}
	out := t
	out.Assignments = make(map[AssignmentType][]Assignment, len(t.Assignments))
	for ty, list := range t.Assignments {
		merged := make([]Assignment, len(list))
		for i, a := range list {
			m, err := a.MergeReveal(other.Assignments[ty][i])
			if err != nil {
				return Transition{}, err
			}
			merged[i] = m
		}
		out.Assignments[ty] = merged
	}
	return out, nil
}

// Genesis is the contract origin operation. Its outputs are addressed with
// the contract id in place of an operation id.
type Genesis struct {
	SchemaID    SchemaID                        `json:"schemaId"`
	Chain       Chain                           `json:"chain"`
	AssetTags   map[AssignmentType]AssetTag     `json:"assetTags,omitempty"`
	Assignments map[AssignmentType][]Assignment `json:"assignments"`
	Metadata    []byte                          `json:"metadata,omitempty"`
}

// ContractID derives the contract id from the concealed genesis content.
func (g Genesis) ContractID() ContractID {
	type genesisCommitment struct {
		SchemaID    SchemaID                    `json:"schemaId"`
		Chain       Chain                       `json:"chain"`
		AssetTags   map[AssignmentType]AssetTag `json:"assetTags,omitempty"`
		Assignments []struct {
			Ty    AssignmentType `json:"ty"`
			Seal  SecretSeal     `json:"seal"`
			State PersistedState `json:"state"`
		} `json:"assignments"`
		Metadata []byte `json:"metadata,omitempty"`
	}
	var c genesisCommitment
	c.SchemaID = g.SchemaID
	c.Chain = g.Chain
	c.AssetTags = g.AssetTags
	types := make([]AssignmentType, 0, len(g.Assignments))
	for ty := range g.Assignments {
		types = append(types, ty)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	for _, ty := range types {
		for _, a := range g.Assignments[ty] {
			c.Assignments = append(c.Assignments, struct {
				Ty    AssignmentType `json:"ty"`
				Seal  SecretSeal     `json:"seal"`
				State PersistedState `json:"state"`
			}{Ty: ty, Seal: a.Seal.Secret(), State: a.State})
		}
	}
	c.Metadata = g.Metadata
	id, err := canonhash.SumID(c)
	if err != nil {
		panic(fmt.Sprintf("genesis commitment: %v", err))
	}
	return ContractID(id)
}
