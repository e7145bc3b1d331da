package endpoint

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOperation reports a protocol violation by the caller.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidArgument reports a missing or invalid argument.
	ErrInvalidArgument = errors.New("invalid argument")
)

// EndPointError carries the operation and end-point an engine error was raised for.
type EndPointError struct {
	Op       string
	EndPoint EndPointID
	Err      error
	Detail   string
}

func (e *EndPointError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Detail == "" {
		return fmt.Sprintf("endpoint %s: %s: %v", e.EndPoint, e.Op, e.Err)
	}
	return fmt.Sprintf("endpoint %s: %s: %v: %s", e.EndPoint, e.Op, e.Err, e.Detail)
}

func (e *EndPointError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func invalidOperation(op string, id EndPointID, format string, args ...any) error {
	return &EndPointError{Op: op, EndPoint: id, Err: ErrInvalidOperation, Detail: fmt.Sprintf(format, args...)}
}

func invalidArgument(op string, id EndPointID, format string, args ...any) error {
	return &EndPointError{Op: op, EndPoint: id, Err: ErrInvalidArgument, Detail: fmt.Sprintf(format, args...)}
}
