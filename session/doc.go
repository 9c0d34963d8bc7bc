// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package session implements the client-side XMPP session engine (C5): a
// single-threaded cooperative finite-state machine that drives a Transport
// (C1) through stream negotiation, optional STARTTLS and stream compression
// upgrades, SASL or legacy authentication (C3), resource binding, session
// establishment, and steady-state stanza exchange, dispatching inbound
// stanzas (C6) to an owning client through a synchronous command surface
// (C7).
//
// Exactly one goroutine — the FSM's own actor loop — ever reads or mutates
// session state; owner commands and parser events are serialized onto the
// same channel so there is a total order over every input the machine sees.
package session // import "github.com/xmppcore/session/session"
