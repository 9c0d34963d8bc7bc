// Package jid implements XMPP addresses (historically called "Jabber ID's" or
// "JID's") as described in RFC 7622.
package jid // import "github.com/xmppcore/session/jid"
