// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package session

import "fmt"

// Error is a tagged FSM error: every command that fails returns one of
// these rather than a bare string, so callers can switch on Kind.
type Error struct {
	Kind   ErrorKind
	Reason string
}

// ErrorKind enumerates the taxonomy from the error handling design:
// configuration errors (raised synchronously, state unchanged), connect
// phase errors, protocol errors, transport errors, and busy/refusal
// errors.
type ErrorKind int

const (
	// Configuration errors.
	ErrIncorrectJID ErrorKind = iota
	ErrAuthMethodUndefined
	ErrAuthInfoUndefined
	ErrAuthOrDomainUndefined

	// Connect-phase errors.
	ErrConnect
	ErrTimeout

	// Protocol errors.
	ErrStream
	ErrBind
	ErrAuth
	ErrRegister
	ErrNotAuthMethodResult
	ErrNoSupportedAuthMethod
	ErrNoStreamIDForDigestAuth

	// Transport errors.
	ErrTCPClosed
	ErrCouldNotCompress
	ErrCouldNotEncrypt

	// Busy/refusal errors.
	ErrBusyConnecting
	ErrNotConnected
	ErrNotLoggedIn
	ErrUnallowedCommand
)

var errorKindNames = [...]string{
	ErrIncorrectJID:            "incorrect_jid",
	ErrAuthMethodUndefined:     "auth_method_undefined",
	ErrAuthInfoUndefined:       "auth_info_undefined",
	ErrAuthOrDomainUndefined:   "authentication_or_domain_undefined",
	ErrConnect:                 "connect_error",
	ErrTimeout:                 "timeout",
	ErrStream:                  "stream_error",
	ErrBind:                    "bind_error",
	ErrAuth:                    "auth_error",
	ErrRegister:                "register_error",
	ErrNotAuthMethodResult:     "not_auth_method_result",
	ErrNoSupportedAuthMethod:   "no_supported_auth_method",
	ErrNoStreamIDForDigestAuth: "no_streamid_for_digest_auth",
	ErrTCPClosed:               "tcp_closed",
	ErrCouldNotCompress:        "could-not-compress-stream",
	ErrCouldNotEncrypt:         "could-not-encrypt-stream",
	ErrBusyConnecting:          "busy_connecting_to_server",
	ErrNotConnected:            "not_connected",
	ErrNotLoggedIn:             "not_logged_in",
	ErrUnallowedCommand:        "unallowed_command",
}

func (k ErrorKind) String() string {
	if int(k) < 0 || int(k) >= len(errorKindNames) || errorKindNames[k] == "" {
		return "unknown_error"
	}
	return errorKindNames[k]
}

// Error satisfies the error interface.
func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

// newErr builds an *Error, optionally annotated with reason.
func newErr(kind ErrorKind, reason string) *Error {
	return &Error{Kind: kind, Reason: reason}
}

// terminal reports whether a protocol or transport error of this kind is
// fatal (drives the FSM to StreamError/termination) as opposed to
// recoverable (eg. auth_error, register_error leave the session usable in
// StreamOpened).
func (k ErrorKind) terminal() bool {
	switch k {
	case ErrAuth, ErrRegister, ErrNotAuthMethodResult:
		return false
	default:
		return true
	}
}
