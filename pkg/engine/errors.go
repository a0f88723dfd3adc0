package engine

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEngineUnavailable is returned when an engine instance cannot be created
	// or is not usable at all.
	ErrEngineUnavailable = errors.New("audio engine unavailable")
	// ErrAssetNotFound is returned when a sound or instrument bank is missing.
	ErrAssetNotFound = errors.New("asset not found")
	// ErrUnsupportedFormat is returned when a file cannot be decoded.
	ErrUnsupportedFormat = errors.New("unsupported format")
	// ErrDeviceUnavailable is returned when no usable output device exists.
	// Callers usually recover by falling back to OutputNoSound.
	ErrDeviceUnavailable = errors.New("output device unavailable")
	// ErrEngine covers every other failed engine call.
	ErrEngine = errors.New("engine call failed")
	// ErrInvalidConfig is returned when the engine reports parameters that
	// cannot drive a render loop.
	ErrInvalidConfig = errors.New("invalid engine configuration")
)

// CallError is a failed engine call.
type CallError struct {
	Op   string
	Code Result
	// Err is set when the engine failed with something other than a Result.
	Err error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: (%d) %s: %v", e.Op, int(e.Code), e.Code, e.Err)
	}
	return fmt.Sprintf("%s: (%d) %s", e.Op, int(e.Code), e.Code)
}

// Is matches the sentinel category of the code.
func (e *CallError) Is(target error) bool {
	return target == e.Code.Kind()
}

func (e *CallError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Code
}

// NewCallError wraps err returned by op. A nil err yields nil.
func NewCallError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return err
	}
	var code Result
	if errors.As(err, &code) {
		return &CallError{Op: op, Code: code}
	}
	return &CallError{Op: op, Code: ResultInternal, Err: err}
}

// CodeOf returns the Result carried by err, ResultOK for nil and
// ResultInternal for foreign errors.
func CodeOf(err error) Result {
	if err == nil {
		return ResultOK
	}
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Code
	}
	var code Result
	if errors.As(err, &code) {
		return code
	}
	return ResultInternal
}

// Errors collects failures of a call sequence.
type Errors []error

func (e Errors) Error() string {
	s := make([]string, 0, len(e))
	for _, err := range e {
		s = append(s, err.Error())
	}
	return strings.Join(s, "; ")
}

func (e Errors) Unwrap() []error {
	return e
}

// Ret returns untyped nil if the list is empty.
func (e Errors) Ret() error {
	if len(e) > 0 {
		return e
	}
	return nil
}
