package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an execution ended with error status
type ErrorKind string

// Error kinds
const (
	KindUnsupportedLanguage ErrorKind = "unsupported_language"
	KindEntryPointNotFound  ErrorKind = "entry_point_not_found"
	KindArgumentCoercion    ErrorKind = "argument_coercion"
	KindCompile             ErrorKind = "compile"
	KindTimeout             ErrorKind = "timeout"
	KindInfrastructure      ErrorKind = "infrastructure"
	KindRuntime             ErrorKind = "runtime"
	KindResultParse         ErrorKind = "result_parse"
	KindInternal            ErrorKind = "internal"
)

// Fixed user visible messages
const (
	MsgEntryPointNotFound = "no testable function found"
	MsgTimeout            = "execution timed out"
	MsgInfrastructure     = "execution environment unavailable"
	MsgResultParse        = "malformed result output"
)

// Error is a classified judging error
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Sentinels for errors.Is, matched by kind
var (
	ErrUnsupportedLanguage = &Error{Kind: KindUnsupportedLanguage}
	ErrEntryPointNotFound  = &Error{Kind: KindEntryPointNotFound}
	ErrArgumentCoercion    = &Error{Kind: KindArgumentCoercion}
	ErrCompile             = &Error{Kind: KindCompile}
	ErrTimeout             = &Error{Kind: KindTimeout}
	ErrInfrastructure      = &Error{Kind: KindInfrastructure}
	ErrRuntime             = &Error{Kind: KindRuntime}
	ErrResultParse         = &Error{Kind: KindResultParse}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// UnsupportedLanguageError creates the error for an unknown language
func UnsupportedLanguageError(lang Language) *Error {
	return &Error{Kind: KindUnsupportedLanguage, Message: fmt.Sprintf("Unsupported language: %s", lang)}
}

// EntryPointNotFoundError creates the error when no callable could be located
func EntryPointNotFoundError(detail string) *Error {
	e := &Error{Kind: KindEntryPointNotFound, Message: MsgEntryPointNotFound}
	if detail != "" {
		e.Err = errors.New(detail)
	}
	return e
}

// ArgumentCoercionError creates the error for a test input not matching the entry point
func ArgumentCoercionError(format string, args ...any) *Error {
	return &Error{Kind: KindArgumentCoercion, Message: fmt.Sprintf(format, args...)}
}

// CompileError carries compiler diagnostics
func CompileError(diagnostics string) *Error {
	return &Error{Kind: KindCompile, Message: diagnostics}
}

// TimeoutError is returned when a step exceeded its wall clock budget
func TimeoutError(step string) *Error {
	return &Error{Kind: KindTimeout, Message: MsgTimeout, Err: fmt.Errorf("%s step exceeded its time limit", step)}
}

// InfrastructureError wraps a failure of the sandbox runtime itself
func InfrastructureError(err error) *Error {
	return &Error{Kind: KindInfrastructure, Message: MsgInfrastructure, Err: err}
}

// KindOf returns the kind of a classified error, KindInternal otherwise
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// ErrorVerdict converts err into an error verdict. Infrastructure errors only
// expose the fixed message, the cause is left for logs.
func ErrorVerdict(err error) Verdict {
	v := Verdict{
		Status:  StatusError,
		Results: []TestResult{},
		Kind:    KindOf(err),
	}
	var e *Error
	switch {
	case errors.As(err, &e) && e.Kind == KindInfrastructure:
		v.Message = MsgInfrastructure
	case errors.As(err, &e) && e.Message != "":
		v.Message = e.Message
	default:
		v.Message = err.Error()
	}
	return v
}
