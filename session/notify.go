// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package session

import "github.com/xmppcore/session/stanza"

// Notification is the owner-facing record delivered over the stanza
// notification channel: one of the three stanza kinds classified by C6, or
// a terminal stream-error report.
type Notification struct {
	// StreamError is true when this notification reports a fatal
	// <stream:error/>; only Condition is populated in that case.
	StreamError bool
	Condition   string

	Kind    stanza.Kind
	Type    string
	From    string
	ID      string
	QueryNS string
	Raw     []byte
}

// Notifier receives asynchronous stanza and stream-error notifications from
// a Session (C7's "owner"). Deliver must not block for long; the FSM's
// actor loop calls it inline between processing other inputs.
type Notifier interface {
	Deliver(Notification)
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(Notification)

// Deliver calls f(n).
func (f NotifierFunc) Deliver(n Notification) { f(n) }

// discardNotifier is used as the owner of a Session that has not yet had
// SetControllingProcess called; it silently drops every notification.
type discardNotifier struct{}

func (discardNotifier) Deliver(Notification) {}
