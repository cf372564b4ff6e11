// Package validate models the status an external protocol validator
// reports for consignments and contracts.
package validate

import (
	"strings"

	"github.com/eauxxs/rgb-std/pkg/contract"
)

// Validity summarizes a validation outcome.
type Validity string

const (
	Valid                  Validity = "VALID"
	UnresolvedTransactions Validity = "UNRESOLVED_TRANSACTIONS"
	UnminedTerminals       Validity = "UNMINED_TERMINALS"
	Invalid                Validity = "INVALID"
)

// Failure is one validation rule violation.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Status is the full validator report. Its validity is derived, not
// stored: failures dominate, then unresolved witnesses, then unmined
// terminal witnesses.
type Status struct {
	Failures        []Failure            `json:"failures,omitempty"`
	Warnings        []string             `json:"warnings,omitempty"`
	Unresolved      []contract.WitnessID `json:"unresolved,omitempty"`
	UnminedTerminal []contract.WitnessID `json:"unminedTerminal,omitempty"`
}

// Validity derives the overall outcome of the report.
func (s Status) Validity() Validity {
	switch {
	case len(s.Failures) > 0:
		return Invalid
	case len(s.Unresolved) > 0:
		return UnresolvedTransactions
	case len(s.UnminedTerminal) > 0:
		return UnminedTerminals
	default:
		return Valid
	}
}

func (s Status) String() string {
	v := string(s.Validity())
	if len(s.Failures) == 0 {
		return v
	}
	msgs := make([]string, 0, len(s.Failures))
	for _, f := range s.Failures {
		msgs = append(msgs, f.Code)
	}
	return v + ": " + strings.Join(msgs, ", ")
}
