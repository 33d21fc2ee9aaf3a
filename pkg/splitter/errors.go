package splitter

import (
	"errors"
	"fmt"

	"github.com/alphabill-org/payment-splitter/internal/ledger"
	"github.com/alphabill-org/payment-splitter/internal/plutus"
	"github.com/alphabill-org/payment-splitter/pkg/wallet/txsubmitter"
)

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindConfiguration
	KindEncoding
	KindFunds
	KindLedgerRejection
	// KindUnconfirmed means the transaction was accepted by the ledger but
	// not seen in a block in time.
	KindUnconfirmed
)

var (
	ErrMissingSigner    = errors.New("signer is not configured")
	ErrMissingValidator = errors.New("validator is not configured")

	errorKinds = []struct {
		kind ErrorKind
		errs []error
	}{
		{KindConfiguration, []error{ErrEmptyPayeeSet, ErrDivisionByZero, ledger.ErrInvalidNetwork, ErrMissingSigner, ErrMissingValidator, plutus.ErrUnknownLanguage, ErrDatumMismatch}},
		{KindEncoding, []error{plutus.ErrInvalidScriptEncoding, plutus.ErrParameterApplication}},
		{KindFunds, []error{ledger.ErrInsufficientFunds, ErrInsufficientCollateral, ErrNoScriptFunds, ErrOutputBelowMinimum, ledger.ErrTooManyCollateralInputs}},
		{KindLedgerRejection, []error{ledger.ErrTxRejected, ledger.ErrInputAlreadySpent}},
		{KindUnconfirmed, []error{txsubmitter.ErrConfirmationTimeout}},
	}
)

func (k ErrorKind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration error"
	case KindEncoding:
		return "encoding error"
	case KindFunds:
		return "funds error"
	case KindLedgerRejection:
		return "ledger rejection"
	case KindUnconfirmed:
		return "unconfirmed transaction"
	default:
		return "error"
	}
}

// KindOf classifies err, KindUnknown for errors of the collaborators
// (network failures and alike).
func KindOf(err error) ErrorKind {
	for _, k := range errorKinds {
		for _, target := range k.errs {
			if errors.Is(err, target) {
				return k.kind
			}
		}
	}
	return KindUnknown
}

// StepError tells which step of an operation failed and on what resource.
type StepError struct {
	Step     string
	Resource string
	Err      error
}

func (e *StepError) Error() string {
	if e.Resource == "" {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s failed (%s): %v", e.Step, e.Resource, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepError(step, resource string, err error) error {
	return &StepError{Step: step, Resource: resource, Err: err}
}
