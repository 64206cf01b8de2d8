package validation

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestReasonTaxonomy(t *testing.T) {
	all := Reasons()
	if len(all) != 40 {
		t.Fatalf("reasons = %d, want 40", len(all))
	}
	seen := make(map[string]bool)
	for i, r := range all {
		if r.Code() != i {
			t.Errorf("%s: code = %d, want %d", r, r.Code(), i)
		}
		name := r.String()
		if name == "" || seen[name] {
			t.Errorf("reason %d: duplicate or empty name %q", i, name)
		}
		seen[name] = true
		if got, ok := ParseReason(name); !ok || got != r {
			t.Errorf("ParseReason(%q) = %v, %v", name, got, ok)
		}
	}
}

func TestReasonStableNames(t *testing.T) {
	tests := []struct {
		r    InvalidReason
		code int
		name string
	}{
		{WrongChainID, 0, "WRONG_CHAIN_ID"},
		{NonceOverflow, 8, "NONCE_OVERFLOW"},
		{ChainHeadNotAvailable, 13, "CHAIN_HEAD_NOT_AVAILABLE"},
		{InvalidTransactionFormat, 17, "INVALID_TRANSACTION_FORMAT"},
		{TxFeecapExceeded, 29, "TX_FEECAP_EXCEEDED"},
		{InvalidBlobs, 33, "INVALID_BLOBS"},
		{EmptyCodeDelegation, 39, "EMPTY_CODE_DELEGATION"},
	}
	for _, tt := range tests {
		if tt.r.Code() != tt.code {
			t.Errorf("%s: code = %d, want %d", tt.name, tt.r.Code(), tt.code)
		}
		if tt.r.String() != tt.name {
			t.Errorf("code %d: name = %s, want %s", tt.code, tt.r, tt.name)
		}
	}
}

func TestReasonFaults(t *testing.T) {
	env := map[InvalidReason]bool{
		ChainHeadNotAvailable:           true,
		ChainHeadWorldStateNotAvailable: true,
		BlockNotFound:                   true,
	}
	internal := map[InvalidReason]bool{
		InternalError:        true,
		ExecutionInterrupted: true,
	}
	for _, r := range Reasons() {
		want := TxFault
		switch {
		case env[r]:
			want = EnvironmentFault
		case internal[r]:
			want = InternalFault
		}
		if r.Fault() != want {
			t.Errorf("%s: fault = %s, want %s", r, r.Fault(), want)
		}
		if r.Retryable() != env[r] {
			t.Errorf("%s: retryable = %v", r, r.Retryable())
		}
	}
}

func TestReasonCategories(t *testing.T) {
	tests := []struct {
		r    InvalidReason
		want Category
	}{
		{WrongChainID, CategorySignature},
		{InvalidSignature, CategorySignature},
		{UpfrontCostExceedsBalance, CategoryEconomic},
		{NonceTooLow, CategoryAuthorization},
		{NonceOverflow, CategoryFormat},
		{InitcodeTooLarge, CategorySizing},
		{TransactionAlreadyKnown, CategoryPool},
		{BlockNotFound, CategoryChain},
		{PluginTxPoolValidator, CategoryPlugin},
		{EOFCodeInvalid, CategoryExecution},
	}
	for _, tt := range tests {
		if got := tt.r.Category(); got != tt.want {
			t.Errorf("%s: category = %s, want %s", tt.r, got, tt.want)
		}
	}
}

func TestUnknownReason(t *testing.T) {
	var zero InvalidReason
	if zero.IsKnown() {
		t.Fatal("zero reason is known")
	}
	unknown := InvalidReason(200)
	if unknown.String() != "UNKNOWN_REASON(200)" {
		t.Errorf("name = %s", unknown)
	}
	if unknown.Fault() != InternalFault {
		t.Errorf("fault = %s, want internal", unknown.Fault())
	}
	if _, err := unknown.MarshalText(); err == nil {
		t.Error("expected marshal error")
	}
	if _, ok := ParseReason("NOT_A_REASON"); ok {
		t.Error("parsed unknown name")
	}
}

func TestReasonText(t *testing.T) {
	b, err := NonceTooLow.MarshalText()
	if err != nil {
		t.Fatal(err)
	}
	var r InvalidReason
	if err := r.UnmarshalText(b); err != nil {
		t.Fatal(err)
	}
	if r != NonceTooLow {
		t.Errorf("round trip = %s", r)
	}
	if err := r.UnmarshalText([]byte("nonce_too_low")); err == nil {
		t.Error("names are case sensitive")
	}
}

func TestOutcome(t *testing.T) {
	if v := Valid(); !v.IsValid() || v.Err() != nil || v.String() != "VALID" {
		t.Errorf("valid outcome = %v", v)
	}
	out := Invalid(NonceTooLow).at(StageAccount)
	if out.IsValid() {
		t.Fatal("invalid outcome reports valid")
	}
	if out.String() != "INVALID(NONCE_TOO_LOW)" {
		t.Errorf("string = %s", out)
	}
	err := out.Err()
	if !errors.Is(err, NonceTooLow) {
		t.Errorf("errors.Is(%v, NonceTooLow) = false", err)
	}
	var txErr *TxError
	if !errors.As(err, &txErr) || txErr.Stage != StageAccount {
		t.Errorf("stage = %v", txErr)
	}

	plugin := InvalidWithCause(PluginTxValidator, "denied")
	if plugin.Cause() != "denied" || plugin.String() != "INVALID(PLUGIN_TX_VALIDATOR: denied)" {
		t.Errorf("plugin outcome = %s", plugin)
	}
	if c := InvalidWithCause(NonceTooLow, "ignored").Cause(); c != "" {
		t.Errorf("non-plugin cause = %q", c)
	}
}

func TestFromExecution(t *testing.T) {
	tests := []struct {
		err  error
		want InvalidReason
	}{
		{context.Canceled, ExecutionInterrupted},
		{fmt.Errorf("evm: %w", context.DeadlineExceeded), ExecutionInterrupted},
		{ErrExecutionHalted, ExecutionHalted},
		{fmt.Errorf("create: %w", ErrInvalidEOF), EOFCodeInvalid},
		{fmt.Errorf("apply: %w", NonceTooHigh), NonceTooHigh},
		{errors.New("disk on fire"), InternalError},
	}
	for _, tt := range tests {
		out := FromExecution(tt.err)
		if out.Reason() != tt.want {
			t.Errorf("FromExecution(%v) = %s, want %s", tt.err, out, tt.want)
		}
		if out.Stage() != StageExecution {
			t.Errorf("FromExecution(%v) stage = %s", tt.err, out.Stage())
		}
	}
	if !FromExecution(nil).IsValid() {
		t.Error("nil error is not valid")
	}
}
