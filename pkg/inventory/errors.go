package inventory

import (
	"errors"
	"fmt"
)

// Tier classifies every inventory failure so callers can branch without
// inspecting message text.
type Tier uint8

const (
	// TierConnectivity: a storage or resolver collaborator failed.
	// Retrying the operation is safe.
	TierConnectivity Tier = iota + 1
	// TierData: caller-supplied or imported content violates a structural
	// or business rule. Permanent for that input.
	TierData
	// TierInternal: an invariant assumed to hold by construction was
	// violated. Indicates a library defect or corrupted storage; must be
	// reported, never recovered from silently.
	TierInternal
)

func (t Tier) String() string {
	switch t {
	case TierConnectivity:
		return "connectivity"
	case TierData:
		return "data"
	case TierInternal:
		return "internal"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// Code names the precise failure cause.
type Code string

const (
	// Data-tier codes.
	CodeTooManyBundles         Code = "TOO_MANY_BUNDLES"
	CodeTooManyTerminals       Code = "TOO_MANY_TERMINALS"
	CodeTooManyContracts       Code = "TOO_MANY_CONTRACTS"
	CodeConcealedPublicState   Code = "CONCEALED_PUBLIC_STATE"
	CodeMergeConflict          Code = "MERGE_CONFLICT"
	CodeInvalidBundle          Code = "INVALID_BUNDLE"
	CodeInvoiceExpired         Code = "INVOICE_EXPIRED"
	CodeNoContract             Code = "NO_CONTRACT"
	CodeNoIface                Code = "NO_IFACE"
	CodeNoBeneficiaryOutput    Code = "NO_BENEFICIARY_OUTPUT"
	CodeInsufficientState      Code = "INSUFFICIENT_STATE"
	CodeNoBlankOrChange        Code = "NO_BLANK_OR_CHANGE"
	CodeBuilder                Code = "BUILDER"
	CodeNotValidated           Code = "NOT_VALIDATED"
	CodeInvalid                Code = "INVALID"
	CodeUnresolvedTransactions Code = "UNRESOLVED_TRANSACTIONS"
	CodeTerminalsUnmined       Code = "TERMINALS_UNMINED"
	CodeChainMismatch          Code = "CHAIN_MISMATCH"
	CodeOutpointUnknown        Code = "OUTPOINT_UNKNOWN"
	CodeNoIfaceImpl            Code = "NO_IFACE_IMPL"
	CodeUnknownSchema          Code = "UNKNOWN_SCHEMA"
	CodeUnknownIface           Code = "UNKNOWN_IFACE"
	CodeConcealed              Code = "CONCEALED"
	CodeConfinement            Code = "CONFINEMENT"

	// Internal-tier codes.
	CodeStateAbsent           Code = "STATE_ABSENT"
	CodeBundleAbsent          Code = "BUNDLE_ABSENT"
	CodeBundleContractUnknown Code = "BUNDLE_CONTRACT_UNKNOWN"
	CodeNoBundleAnchor        Code = "NO_BUNDLE_ANCHOR"
	CodeUnrelatedAnchor       Code = "UNRELATED_ANCHOR"
	CodeOutsizedBundle        Code = "OUTSIZED_BUNDLE"
	CodeBundleReveal          Code = "BUNDLE_REVEAL"

	// Connectivity-tier code.
	CodeConnectivity Code = "CONNECTIVITY"
)

// Error is the error type of every fallible inventory operation.
type Error struct {
	Tier    Tier
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s/%s: %s", e.Tier, e.Code, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches errors by code, so callers can compare against bare
// &Error{Code: ...} templates.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code && (t.Tier == 0 || e.Tier == t.Tier)
	}
	return false
}

func dataErr(code Code, format string, args ...any) *Error {
	return &Error{Tier: TierData, Code: code, Message: fmt.Sprintf(format, args...)}
}

func dataWrap(code Code, err error) *Error {
	return &Error{Tier: TierData, Code: code, Err: err}
}

func internalErr(code Code, format string, args ...any) *Error {
	return &Error{Tier: TierInternal, Code: code, Message: fmt.Sprintf(format, args...)}
}

func internalWrap(code Code, err error) *Error {
	return &Error{Tier: TierInternal, Code: code, Err: err}
}

func connectivity(op string, err error) *Error {
	return &Error{Tier: TierConnectivity, Code: CodeConnectivity, Message: op, Err: err}
}

// TierOf extracts the failure tier, or zero for foreign errors.
func TierOf(err error) Tier {
	var e *Error
	if errors.As(err, &e) {
		return e.Tier
	}
	return 0
}

// CodeOf extracts the failure code, or empty for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsConnectivity reports whether the failure is retryable.
func IsConnectivity(err error) bool { return TierOf(err) == TierConnectivity }

// IsDataError reports whether the failure is permanent for the input.
func IsDataError(err error) bool { return TierOf(err) == TierData }

// IsInternal reports whether the failure indicates a library defect or
// corrupted storage.
func IsInternal(err error) bool { return TierOf(err) == TierInternal }
