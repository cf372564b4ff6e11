package inventory

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTiersAreBranchable(t *testing.T) {
	connErr := connectivity("lookup", fmt.Errorf("dial tcp: refused"))
	if !IsConnectivity(connErr) || IsDataError(connErr) || IsInternal(connErr) {
		t.Fatalf("unexpected classification for %v", connErr)
	}

	dErr := dataErr(CodeInsufficientState, "have %d want %d", 30, 50)
	if !IsDataError(dErr) {
		t.Fatalf("expected data tier")
	}

	iErr := internalErr(CodeStateAbsent, "state vanished")
	if !IsInternal(iErr) {
		t.Fatalf("expected internal tier")
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := dataErr(CodeInvoiceExpired, "expired")
	if !errors.Is(err, &Error{Code: CodeInvoiceExpired}) {
		t.Fatalf("expected match by code")
	}
	if errors.Is(err, &Error{Code: CodeInvalid}) {
		t.Fatalf("expected no match for different code")
	}
	if !errors.Is(err, &Error{Tier: TierData, Code: CodeInvoiceExpired}) {
		t.Fatalf("expected match by tier and code")
	}
	if errors.Is(err, &Error{Tier: TierInternal, Code: CodeInvoiceExpired}) {
		t.Fatalf("expected no match for different tier")
	}
}

func TestErrorUnwrapsCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := connectivity("fold witness", cause)
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause preserved")
	}
	if CodeOf(err) != CodeConnectivity {
		t.Fatalf("unexpected code %s", CodeOf(err))
	}
}

func TestCodeOfForeignError(t *testing.T) {
	if CodeOf(fmt.Errorf("plain")) != "" {
		t.Fatalf("foreign errors carry no code")
	}
	if TierOf(nil) != 0 {
		t.Fatalf("nil carries no tier")
	}
}

func TestErrorMessageIncludesTierAndCode(t *testing.T) {
	err := dataErr(CodeNoContract, "invoice names no contract")
	want := "data/NO_CONTRACT: invoice names no contract"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}
