// Copyright 2016 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// Package ns provides namespace constants that are used by the session
// package and other internal packages.
package ns // import "github.com/xmppcore/session/internal/ns"

// List of commonly used namespaces.
const (
	Bind     = "urn:ietf:params:xml:ns:xmpp-bind"
	SASL     = "urn:ietf:params:xml:ns:xmpp-sasl"
	StartTLS = "urn:ietf:params:xml:ns:xmpp-tls"
	XML      = "http://www.w3.org/XML/1998/namespace"
	Stanza   = "urn:ietf:params:xml:ns:xmpp-stanzas"
	Client   = "jabber:client"
	Server   = "jabber:server"
	Delay    = "urn:xmpp:delay"
	Session  = "urn:ietf:params:xml:ns:xmpp-session"
	Stream   = "http://etherx.jabber.org/streams"
	Compress = "http://jabber.org/protocol/compress"
	CompressFeature = "http://jabber.org/features/compress"
	LegacyAuth = "jabber:iq:auth"
	Register = "jabber:iq:register"
)
