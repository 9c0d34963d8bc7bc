// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

// Package sasl drives the SASL mechanisms the session FSM negotiates during
// authentication (C3): PLAIN wraps mellium.im/sasl, while ANONYMOUS and
// DIGEST-MD5 are hand-rolled (no SASL library in the ecosystem implements the
// RFC 2831 mechanism). Every mechanism is exposed through the same Driver
// interface so the FSM can drive whichever one was negotiated without a type
// switch at the call site.
package sasl // import "github.com/xmppcore/session/sasl"

import "errors"

// ErrMechanismNotFound is returned by Lookup when no registered Driver
// matches the requested mechanism name.
var ErrMechanismNotFound = errors.New("sasl: no driver for mechanism")

// Step is the outcome of a single round of mechanism negotiation.
type Step int

const (
	// StepContinue means Response must be sent to the peer and a further
	// challenge is expected.
	StepContinue Step = iota
	// StepDone means negotiation succeeded; no further bytes need be sent.
	StepDone
	// StepFail means negotiation failed; Err explains why.
	StepFail
)

// Result is returned by Driver.Step.
type Result struct {
	Step     Step
	Response []byte
	State    State
	Err      error
}

// State is an opaque, mechanism-specific negotiation state threaded through
// InitialResponse and Step calls. Each Driver defines its own concrete type;
// callers must not inspect it.
type State interface{}

// Driver is the capability set the FSM requires from a SASL mechanism (C3).
// PLAIN and ANONYMOUS are stateless: Init simply captures the credentials
// needed to build the initial response. DIGEST-MD5 carries realm/nonce state
// across rounds.
type Driver interface {
	// Name is the mechanism name as advertised in <mechanism/> elements, eg.
	// "PLAIN", "ANONYMOUS", "DIGEST-MD5".
	Name() string

	// Init prepares negotiation state from the credentials the FSM was
	// configured with. host is the authentication host (usually equal to
	// domain); domain is the XMPP service domain used to build realm-scoped
	// challenge responses.
	Init(username, host, domain, password string) (State, error)

	// InitialResponse returns the bytes to send alongside <auth/>. It may be
	// empty (callers must substitute the single "=" RFC 6120 §6.4.2
	// placeholder themselves when sending on the wire).
	InitialResponse(state State) []byte

	// Step advances negotiation given a base64-decoded challenge from the
	// peer.
	Step(state State, challenge []byte) Result
}

// registry of built-in drivers, keyed by mechanism name.
var registry = map[string]func() Driver{
	"PLAIN":      func() Driver { return new(PlainDriver) },
	"ANONYMOUS":  func() Driver { return new(AnonymousDriver) },
	"DIGEST-MD5": func() Driver { return new(DigestMD5Driver) },
}

// Lookup returns a new Driver instance for the named mechanism.
func Lookup(name string) (Driver, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, ErrMechanismNotFound
	}
	return ctor(), nil
}

// Supported returns the mechanism names the FSM may offer to negotiate, in
// the preference order the FSM should try them.
func Supported() []string {
	return []string{"DIGEST-MD5", "PLAIN", "ANONYMOUS"}
}
