// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package session

import (
	"net"
	"time"

	"github.com/xmppcore/session/sasl"
	"github.com/xmppcore/session/stanza"
	"github.com/xmppcore/session/streamxml"
	"github.com/xmppcore/session/transport"
)

// cmdResult is what a blocking owner command eventually receives, either
// immediately or from a later actor-goroutine transition.
type cmdResult struct {
	value interface{}
	err   error
}

// pendingReply is the Session's single outstanding blocking caller (data
// model invariant: at most one at a time).
type pendingReply struct {
	reply chan cmdResult
}

// Session is the client-side XMPP session FSM (C5). The zero value is not
// usable; construct one with New.
type Session struct {
	opts   Options
	dialer transport.Dialer

	actorCh chan func()
	// stopCh is closed exactly once, by closeStream, the moment the FSM
	// enters StreamClosed. Every send to actorCh from outside the actor
	// goroutine races it against stopCh so callers never block forever on
	// a loop that has already exited.
	stopCh    chan struct{}
	stopFired bool

	state State
	flags Flags

	creds *Credentials

	authMethod AuthMethod

	streamVersion string // "1.0" or "0.0"
	streamID      string

	lastStreamError string

	transport transport.Transport
	parser    *streamxml.Parser
	features  streamFeatures

	saslDriver sasl.Driver
	saslState  sasl.State

	pending *pendingReply

	pingTimer *time.Timer

	owner Notifier

	stopped bool
}

// New constructs a Session in Setup, ready to receive configuration and
// connect commands. It spawns the actor goroutine immediately; the
// transport and parser are created later by a connect_* command.
func New(opts Options) *Session {
	version := opts.StreamVersion
	if version == "" {
		version = "1.0"
	}
	s := &Session{
		opts:          opts,
		actorCh:       make(chan func(), 16),
		stopCh:        make(chan struct{}),
		state:         Setup,
		streamVersion: version,
		owner:         discardNotifier{},
	}
	if opts.LocalIP != "" || opts.LocalPort != 0 {
		s.dialer.LocalAddr = &net.TCPAddr{IP: net.ParseIP(opts.LocalIP), Port: opts.LocalPort}
	}
	go s.loop()
	return s
}

// closeStream moves the FSM into StreamClosed and unblocks every goroutine
// parked trying to hand work to the actor. Must be called from the actor
// goroutine, and is safe to call more than once.
func (s *Session) closeStream() {
	s.state = StreamClosed
	if !s.stopFired {
		s.stopFired = true
		close(s.stopCh)
	}
}

// loop is the single-threaded cooperative actor: it processes exactly one
// queued input (owner command or parser event) to completion at a time,
// giving total order over every input the FSM sees.
func (s *Session) loop() {
	for f := range s.actorCh {
		f()
		if s.state == StreamClosed {
			s.teardown()
			return
		}
	}
}

// teardown releases the transport and parser and stops the ping timer. It
// runs on the actor goroutine as the last thing loop does.
func (s *Session) teardown() {
	if s.pingTimer != nil {
		s.pingTimer.Stop()
	}
	if s.transport != nil {
		_ = s.transport.Close()
	}
}

// runBlocking queues body to run on the actor goroutine and waits up to
// timeout for a reply. body must arrange for exactly one cmdResult to
// reach the reply channel it is given, either by sending one itself before
// returning (synchronous commands) or by storing s.pending = &pendingReply{reply}
// for a later transition to fulfil (connect/login/register).
func (s *Session) runBlocking(timeout time.Duration, body func(reply chan<- cmdResult)) (interface{}, error) {
	reply := make(chan cmdResult, 1)
	started := make(chan struct{})
	select {
	case s.actorCh <- func() {
		body(reply)
		close(started)
	}:
	case <-s.stopCh:
		return nil, newErr(ErrNotConnected, "session stopped")
	}
	select {
	case <-started:
	case <-s.stopCh:
		return nil, newErr(ErrNotConnected, "session stopped")
	}

	if timeout <= 0 {
		select {
		case res := <-reply:
			return res.value, res.err
		case <-s.stopCh:
			return nil, newErr(ErrNotConnected, "session stopped")
		}
	}

	select {
	case res := <-reply:
		return res.value, res.err
	case <-s.stopCh:
		return nil, newErr(ErrNotConnected, "session stopped")
	case <-time.After(timeout):
		cleared := make(chan struct{})
		select {
		case s.actorCh <- func() {
			if s.pending != nil && s.pending.reply == reply {
				s.pending = nil
				s.state = StreamError
			}
			close(cleared)
		}:
			<-cleared
		case <-s.stopCh:
		}
		return nil, newErr(ErrTimeout, "")
	}
}

// runNow is runBlocking's shortcut for commands that never suspend: body
// runs on the actor goroutine and returns its result directly.
func (s *Session) runNow(body func() (interface{}, error)) (interface{}, error) {
	return s.runBlocking(0, func(reply chan<- cmdResult) {
		v, err := body()
		reply <- cmdResult{value: v, err: err}
	})
}

// replyPendingOK fulfils the current pending reply with value and clears it.
// Must be called from the actor goroutine.
func (s *Session) replyPendingOK(value interface{}) {
	if s.pending == nil {
		return
	}
	s.pending.reply <- cmdResult{value: value}
	s.pending = nil
}

// replyPendingErr fulfils the current pending reply with err and clears it.
// Must be called from the actor goroutine.
func (s *Session) replyPendingErr(err error) {
	if s.pending == nil {
		return
	}
	s.pending.reply <- cmdResult{err: err}
	s.pending = nil
}

// State returns the FSM's current state. Safe to call from any goroutine
// for diagnostics; the value may be stale the instant it's read.
func (s *Session) State() State {
	res, _ := s.runNow(func() (interface{}, error) {
		return s.state, nil
	})
	st, _ := res.(State)
	return st
}

// startReader spawns the background goroutine that feeds parser events
// into the actor. Exactly one is alive per transport generation; a new one
// is spawned whenever the transport is swapped (STARTTLS, compression).
func (s *Session) startReader() {
	parser := s.parser
	go func() {
		for {
			ev := parser.Next()
			stop := false
			done := make(chan struct{})
			select {
			case s.actorCh <- func() {
				if s.parser == parser {
					s.handleParserEvent(ev)
				}
				stop = s.state == StreamClosed || s.state == StreamError || s.parser != parser
				close(done)
			}:
			case <-s.stopCh:
				return
			}
			select {
			case <-done:
			case <-s.stopCh:
				return
			}
			if stop {
				return
			}
		}
	}()
}

// setTransport installs tr as the active transport and (re)creates the
// parser over it, per C1's connect/reset_parser contract.
func (s *Session) setTransport(tr transport.Transport) {
	s.transport = tr
	s.parser = streamxml.New(tr)
}

// resetParser discards parser state and begins decoding from the current
// transport again; must be called whenever a new <stream> is opened on the
// same transport (invariant 3).
func (s *Session) resetParser() {
	s.parser.Reset(s.transport)
}

// originAddr renders the JID the FSM authenticates as, for the stream
// open's from= attribute; empty until credentials are set.
func (s *Session) originAddr() string {
	if s.creds != nil {
		return s.creds.JID.String()
	}
	return ""
}

// effectiveDomain resolves the stream `to=` value: an explicit Options.Domain
// override takes precedence over the credential JID's domain part.
func (s *Session) effectiveDomain() string {
	if s.opts.Domain != "" {
		return s.opts.Domain
	}
	if s.creds != nil {
		return s.creds.JID.Domainpart()
	}
	return ""
}

func (s *Session) deliver(n Notification) {
	s.owner.Deliver(n)
}

func (s *Session) deliverStreamError(condition string) {
	s.lastStreamError = condition
	s.deliver(Notification{StreamError: true, Condition: condition})
}

// classifyAndDeliver runs C6's classification over a StreamElement event
// and either dispatches it as a stanza notification or, for a bare
// top-level <error/> (a stream-level error per RFC 6120 §4.9), records the
// condition and transitions to StreamError.
func (s *Session) classifyAndDeliver(ev streamxml.Event) bool {
	payload, _ := decodeChildren(ev.Raw)
	n, ok := stanza.Classify(ev.Start, payload)
	if !ok {
		return false
	}
	switch n.Kind {
	case stanza.StreamErrorKind:
		s.deliverStreamError(n.Condition)
		s.replyPendingErr(newErr(ErrStream, n.Condition))
		s.state = StreamError
	default:
		s.deliver(Notification{
			Kind:    n.Kind,
			Type:    n.Type,
			From:    n.From,
			ID:      n.ID,
			QueryNS: n.QueryNS,
			Raw:     ev.Raw,
		})
	}
	return true
}
