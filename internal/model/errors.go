package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies extraction failures.
type ErrorKind string

const (
	KindInvalidURL             ErrorKind = "InvalidUrlError"
	KindUnsupportedPlatform    ErrorKind = "UnsupportedPlatformError"
	KindFieldNotFound          ErrorKind = "FieldNotFoundError"
	KindPageLoadTimeout        ErrorKind = "PageLoadTimeoutError"
	KindNormalizationAmbiguous ErrorKind = "NormalizationAmbiguousError"
	KindReconciliationDegraded ErrorKind = "ReconciliationDegradedError"
	KindBrowserSession         ErrorKind = "BrowserSessionError"
)

// Fatal reports whether an error of this kind ends processing of a request.
func (k ErrorKind) Fatal() bool {
	switch k {
	case KindInvalidURL, KindUnsupportedPlatform, KindPageLoadTimeout, KindBrowserSession:
		return true
	}
	return false
}

// Error is a classified extraction error.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// WrapError classifies err under kind.
func WrapError(err error, kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain, or
// the empty kind.
func KindOf(err error) ErrorKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}
