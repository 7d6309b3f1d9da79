package gatt

import (
	"errors"
	"fmt"
)

// ATTError is an Attribute Protocol error code reported back to the peer.
type ATTError uint8

const (
	ATTSuccess                ATTError = 0x00
	ATTInvalidHandle          ATTError = 0x01
	ATTReadNotPermitted       ATTError = 0x02
	ATTWriteNotPermitted      ATTError = 0x03
	ATTRequestNotSupported    ATTError = 0x06
	ATTInvalidAttributeLength ATTError = 0x0D
	ATTUnlikely               ATTError = 0x0E
	ATTCCCDImproperlyConfig   ATTError = 0xFD
)

func (c ATTError) String() string {
	switch c {
	case ATTSuccess:
		return "success"
	case ATTInvalidHandle:
		return "invalid handle"
	case ATTReadNotPermitted:
		return "read not permitted"
	case ATTWriteNotPermitted:
		return "write not permitted"
	case ATTRequestNotSupported:
		return "request not supported"
	case ATTInvalidAttributeLength:
		return "invalid attribute value length"
	case ATTUnlikely:
		return "unlikely error"
	case ATTCCCDImproperlyConfig:
		return "invalid descriptor value"
	default:
		return fmt.Sprintf("att error 0x%02x", uint8(c))
	}
}

// AttributeError is a peer-visible failure of an attribute operation.
type AttributeError struct {
	Code   ATTError
	Handle Handle
	Msg    string
}

// Error implements the error interface
func (e *AttributeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	s := fmt.Sprintf("%s (0x%02x)", e.Code, uint8(e.Code))
	if e.Handle != InvalidHandle {
		s = fmt.Sprintf("%s: handle %d", s, e.Handle)
	}
	if e.Msg != "" {
		s = fmt.Sprintf("%s: %s", s, e.Msg)
	}
	return s
}

// Is allows errors.Is to compare AttributeError values by Code
func (e *AttributeError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*AttributeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Predefined sentinel errors, matched by ATT code
var (
	ErrInvalidHandle          = &AttributeError{Code: ATTInvalidHandle, Handle: InvalidHandle}
	ErrReadNotPermitted       = &AttributeError{Code: ATTReadNotPermitted, Handle: InvalidHandle}
	ErrWriteNotPermitted      = &AttributeError{Code: ATTWriteNotPermitted, Handle: InvalidHandle}
	ErrRequestNotSupported    = &AttributeError{Code: ATTRequestNotSupported, Handle: InvalidHandle}
	ErrInvalidLength          = &AttributeError{Code: ATTInvalidAttributeLength, Handle: InvalidHandle}
	ErrInvalidDescriptorValue = &AttributeError{Code: ATTCCCDImproperlyConfig, Handle: InvalidHandle}
)

// ErrPayloadTooLarge is returned when a local producer hands a characteristic
// more bytes than its capacity and the characteristic does not truncate.
var ErrPayloadTooLarge = errors.New("payload exceeds characteristic capacity")

func attrError(code ATTError, h Handle, format string, args ...interface{}) error {
	return &AttributeError{Code: code, Handle: h, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the ATT code carried by err. Errors that are not attribute
// errors map to ATTUnlikely.
func CodeOf(err error) ATTError {
	if err == nil {
		return ATTSuccess
	}
	var aerr *AttributeError
	if errors.As(err, &aerr) {
		return aerr.Code
	}
	return ATTUnlikely
}

// TransportError wraps a failure reported by the link layer while pushing a
// notification.
type TransportError struct {
	Handle Handle
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: notify handle %d: %v", e.Handle, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
