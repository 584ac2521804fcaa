package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the client.
type ErrorKind string

// Error kinds.
const (
	KindNoProvider          ErrorKind = "no_provider"
	KindInvalidInput        ErrorKind = "invalid_input"
	KindInvalidReceiver     ErrorKind = "invalid_receiver"
	KindNotConnected        ErrorKind = "not_connected"
	KindStoreUnavailable    ErrorKind = "store_unavailable"
	KindEncodingError       ErrorKind = "encoding_error"
	KindSubmissionRejected  ErrorKind = "submission_rejected"
	KindTransactionReverted ErrorKind = "transaction_reverted"
	KindProviderTimeout     ErrorKind = "provider_timeout"
	KindReadError           ErrorKind = "read_error"
)

var (
	ErrNoProvider          = errors.New("no identity provider")
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidReceiver     = errors.New("invalid receiver")
	ErrNotConnected        = errors.New("not connected")
	ErrStoreUnavailable    = errors.New("content store unavailable")
	ErrEncoding            = errors.New("encoding error")
	ErrSubmissionRejected  = errors.New("submission rejected")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrProviderTimeout     = errors.New("provider timeout")
	ErrRead                = errors.New("ledger read error")
)

var kindSentinels = map[ErrorKind]error{
	KindNoProvider:          ErrNoProvider,
	KindInvalidInput:        ErrInvalidInput,
	KindInvalidReceiver:     ErrInvalidReceiver,
	KindNotConnected:        ErrNotConnected,
	KindStoreUnavailable:    ErrStoreUnavailable,
	KindEncodingError:       ErrEncoding,
	KindSubmissionRejected:  ErrSubmissionRejected,
	KindTransactionReverted: ErrTransactionReverted,
	KindProviderTimeout:     ErrProviderTimeout,
	KindReadError:           ErrRead,
}

// Error tags an underlying failure with its kind.
// errors.Is matches both the kind sentinel and the wrapped cause.
type Error struct {
	Kind ErrorKind
	Err  error
}

// NewError builds a kinded error. err may be nil.
func NewError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func (e *Error) Error() string {
	base := string(e.Kind)
	if s, ok := kindSentinels[e.Kind]; ok {
		base = s.Error()
	}
	if e.Err == nil {
		return base
	}
	return base + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := kindSentinels[e.Kind]; ok {
		errs = append(errs, s)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindOf returns the kind of the first kinded error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return ""
}

// Stage names the step of a send pipeline that failed.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageSubmit   Stage = "submit"
	StageFinality Stage = "finality"
)

// StageError reports a send that ended in failed(stage, reason).
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("send failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the failed stage recorded in err, or "" if err is not a send failure.
func StageOf(err error) Stage {
	var serr *StageError
	if errors.As(err, &serr) {
		return serr.Stage
	}
	return ""
}
