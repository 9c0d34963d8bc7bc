// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package session

import "github.com/xmppcore/session/jid"

// AuthMethod is the tagged variant selecting which authentication path
// login() drives the FSM through.
type AuthMethod int

// The set of authentication methods the FSM understands.
const (
	// Unset means no auth method has been selected yet; login() fails with
	// ErrAuthMethodUndefined in this state.
	Unset AuthMethod = iota
	// Password selects XEP-0078 legacy plaintext authentication.
	Password
	// Digest selects XEP-0078 legacy digest-SHA1 authentication.
	Digest
	// Plain selects the SASL PLAIN mechanism.
	Plain
	// Anonymous selects the SASL ANONYMOUS mechanism.
	Anonymous
	// DigestMD5 selects the SASL DIGEST-MD5 mechanism.
	DigestMD5
)

func (m AuthMethod) String() string {
	switch m {
	case Password:
		return "password"
	case Digest:
		return "digest"
	case Plain:
		return "PLAIN"
	case Anonymous:
		return "ANONYMOUS"
	case DigestMD5:
		return "DIGEST-MD5"
	default:
		return "unset"
	}
}

// saslMechanism returns the SASL mechanism name to negotiate for m, or ""
// if m does not correspond to a SASL mechanism.
func (m AuthMethod) saslMechanism() string {
	switch m {
	case Plain:
		return "PLAIN"
	case Anonymous:
		return "ANONYMOUS"
	case DigestMD5:
		return "DIGEST-MD5"
	default:
		return ""
	}
}

func (m AuthMethod) legacy() bool {
	return m == Password || m == Digest
}

// Credentials is the (jid, password) pair the FSM authenticates with.
type Credentials struct {
	JID      jid.JID
	Password string
}

// Flags are the three monotonic booleans carried on Session state: each may
// only ever flip from false to true over a session's lifetime.
type Flags struct {
	Authenticated bool
	Compressed    bool
	Encrypted     bool
}
