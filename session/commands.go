// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package session

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"net"
	"strconv"

	"github.com/xmppcore/session/jid"
	"github.com/xmppcore/session/sasl"
	"github.com/xmppcore/session/transport"
)

// SetCredentials installs the (jid, password) pair the FSM authenticates
// with. Valid in Setup or StreamOpened.
func (s *Session) SetCredentials(j jid.JID, password string) error {
	_, err := s.runNow(func() (interface{}, error) {
		if s.state != Setup && s.state != StreamOpened {
			return nil, newErr(ErrUnallowedCommand, s.state.String())
		}
		s.creds = &Credentials{JID: j, Password: password}
		return nil, nil
	})
	return err
}

// SetAuthMethod selects the authentication method login() will use. Valid
// in Setup or StreamOpened.
func (s *Session) SetAuthMethod(m AuthMethod) error {
	_, err := s.runNow(func() (interface{}, error) {
		if s.state != Setup && s.state != StreamOpened {
			return nil, newErr(ErrUnallowedCommand, s.state.String())
		}
		s.authMethod = m
		return nil, nil
	})
	return err
}

// SetAuth is the combined form of SetAuthMethod + SetCredentials.
func (s *Session) SetAuth(m AuthMethod, j jid.JID, password string) error {
	_, err := s.runNow(func() (interface{}, error) {
		if s.state != Setup && s.state != StreamOpened {
			return nil, newErr(ErrUnallowedCommand, s.state.String())
		}
		s.authMethod = m
		s.creds = &Credentials{JID: j, Password: password}
		return nil, nil
	})
	return err
}

// ConnectTCP dials the server and opens the XMPP stream. With a non-zero port
// it dials host (or the session's domain, if host is empty) on that port
// directly; with port 0 it discovers the server for that name via DNS SRV,
// falling back to the name itself on the default client port. It blocks until the server's opening
// <stream:stream> is observed, up to Options.ConnectTimeout (default 5s).
// Options.SocketType selects plain vs. implicit-TLS dialing; Options.LocalIP/
// LocalPort, if set, bind the source endpoint for the dial. Valid only in
// Setup.
func (s *Session) ConnectTCP(ctx context.Context, host string, port int) (string, error) {
	v, err := s.connect(ctx, func(ctx context.Context) (transport.Transport, error) {
		if port != 0 {
			addr := host
			if addr == "" {
				addr = s.effectiveDomain()
			}
			conn, err := s.dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
			if err != nil {
				return nil, err
			}
			if s.opts.SocketType == TLS {
				tlsConn := tls.Client(conn, &tls.Config{ServerName: addr})
				if err := tlsConn.HandshakeContext(ctx); err != nil {
					conn.Close()
					return nil, err
				}
				return transport.NewTCP(tlsConn), nil
			}
			return transport.NewTCP(conn), nil
		}
		domain := host
		if domain == "" {
			domain = s.effectiveDomain()
		}
		if s.opts.SocketType == TLS {
			return s.dialer.DialTLS(ctx, domain, nil)
		}
		return s.dialer.DialTCP(ctx, domain)
	})
	j, _ := v.(string)
	return j, err
}

// ConnectTLS is like ConnectTCP but performs an implicit TLS handshake
// immediately after connecting (the "old-style" SSL port convention).
func (s *Session) ConnectTLS(ctx context.Context, host string, port int) (string, error) {
	v, err := s.connect(ctx, func(ctx context.Context) (transport.Transport, error) {
		domain := host
		if domain == "" {
			domain = s.effectiveDomain()
		}
		if port != 0 {
			conn, err := s.dialer.DialContext(ctx, "tcp", net.JoinHostPort(domain, strconv.Itoa(port)))
			if err != nil {
				return nil, err
			}
			tlsConn := tls.Client(conn, &tls.Config{ServerName: domain})
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return transport.NewTCP(tlsConn), nil
		}
		return s.dialer.DialTLS(ctx, domain, nil)
	})
	j, _ := v.(string)
	return j, err
}

// ConnectBOSH establishes a BOSH (XEP-0124/0206) session against url and
// opens the XMPP stream over it.
func (s *Session) ConnectBOSH(ctx context.Context, url, host string) (string, error) {
	v, err := s.connect(ctx, func(ctx context.Context) (transport.Transport, error) {
		domain := host
		if domain == "" {
			domain = s.effectiveDomain()
		}
		return transport.DialBOSH(ctx, domain, transport.BOSHOptions{URL: url})
	})
	j, _ := v.(string)
	return j, err
}

// connect is the shared body of ConnectTCP/ConnectTLS/ConnectBOSH: dial,
// open the stream, and suspend the caller until the server's stream-open
// (or an error) resolves it.
func (s *Session) connect(ctx context.Context, dial func(context.Context) (transport.Transport, error)) (interface{}, error) {
	return s.runBlocking(s.opts.connectTimeout(), func(reply chan<- cmdResult) {
		if s.state != Setup {
			reply <- cmdResult{err: newErr(ErrUnallowedCommand, s.state.String())}
			return
		}
		if s.creds == nil && s.opts.Domain == "" {
			reply <- cmdResult{err: newErr(ErrAuthOrDomainUndefined, "")}
			return
		}
		tr, err := dial(ctx)
		if err != nil {
			reply <- cmdResult{err: newErr(ErrConnect, err.Error())}
			return
		}
		s.setTransport(tr)
		if err := writeStreamOpen(s.transport, s.effectiveDomain(), s.originAddr(), s.streamVersion); err != nil {
			reply <- cmdResult{err: newErr(ErrConnect, err.Error())}
			return
		}
		s.pending = &pendingReply{reply: reply}
		s.state = WaitForStream
		s.startReader()
	})
}

// RegisterAccount performs in-band registration (XEP-0077) using the
// username implied by the already-configured credentials' JID localpart
// (the same pattern LoginMechanism uses for legacy auth). Valid only in
// StreamOpened.
func (s *Session) RegisterAccount(password string) error {
	_, err := s.runBlocking(s.opts.connectTimeout(), func(reply chan<- cmdResult) {
		if s.state != StreamOpened {
			reply <- cmdResult{err: newErr(ErrUnallowedCommand, s.state.String())}
			return
		}
		if s.creds == nil {
			reply <- cmdResult{err: newErr(ErrAuthInfoUndefined, "")}
			return
		}
		s.registerSubmit(reply, s.creds.JID.Localpart(), password)
	})
	return err
}

// RegisterAccountAs is RegisterAccount with an explicit username, for
// callers that haven't configured credentials (or want to register under a
// different localpart than the one they'll later authenticate as). Valid
// only in StreamOpened.
func (s *Session) RegisterAccountAs(username, password string) error {
	_, err := s.runBlocking(s.opts.connectTimeout(), func(reply chan<- cmdResult) {
		if s.state != StreamOpened {
			reply <- cmdResult{err: newErr(ErrUnallowedCommand, s.state.String())}
			return
		}
		s.registerSubmit(reply, username, password)
	})
	return err
}

// registerSubmit is the shared body of RegisterAccount/RegisterAccountAs:
// submit the registration form and park the caller for the result. Must run
// on the actor goroutine.
func (s *Session) registerSubmit(reply chan<- cmdResult, username, password string) {
	id := genID()
	if err := writeRegisterSubmit(s.transport, id, username, password); err != nil {
		reply <- cmdResult{err: newErr(ErrRegister, err.Error())}
		return
	}
	s.pending = &pendingReply{reply: reply}
	s.state = WaitForRegisterResult
}

// Login authenticates using the previously selected auth method. Valid
// only in StreamOpened.
func (s *Session) Login() (string, error) {
	return s.LoginMechanism(s.authMethod)
}

// LoginMechanism is Login with an explicit method override (used when the
// caller knows which SASL mechanism or legacy auth style to try).
func (s *Session) LoginMechanism(method AuthMethod) (string, error) {
	v, err := s.runBlocking(s.opts.connectTimeout(), func(reply chan<- cmdResult) {
		if s.state != StreamOpened {
			reply <- cmdResult{err: newErr(ErrUnallowedCommand, s.state.String())}
			return
		}
		if method == Unset {
			reply <- cmdResult{err: newErr(ErrAuthMethodUndefined, "")}
			return
		}
		if s.creds == nil {
			reply <- cmdResult{err: newErr(ErrAuthInfoUndefined, "")}
			return
		}
		s.authMethod = method

		if method.legacy() {
			id := genID()
			username := s.creds.JID.Localpart()
			if err := writeLegacyAuthRequest(s.transport, id, username); err != nil {
				reply <- cmdResult{err: newErr(ErrConnect, err.Error())}
				return
			}
			s.pending = &pendingReply{reply: reply}
			s.state = WaitForLegacyAuthMethod
			return
		}

		mech := method.saslMechanism()
		if mech == "" {
			reply <- cmdResult{err: newErr(ErrNoSupportedAuthMethod, "")}
			return
		}
		driver, err := sasl.Lookup(mech)
		if err != nil {
			reply <- cmdResult{err: newErr(ErrNoSupportedAuthMethod, mech)}
			return
		}
		host := s.effectiveDomain()
		state, err := driver.Init(s.creds.JID.Localpart(), host, s.effectiveDomain(), s.creds.Password)
		if err != nil {
			reply <- cmdResult{err: newErr(ErrAuth, err.Error())}
			return
		}
		s.saslDriver = driver
		s.saslState = state
		if err := writeSASLAuth(s.transport, mech, driver.InitialResponse(state)); err != nil {
			reply <- cmdResult{err: newErr(ErrConnect, err.Error())}
			return
		}
		s.pending = &pendingReply{reply: reply}
		s.state = WaitForSaslResponse
	})
	j, _ := v.(string)
	return j, err
}

// SendPacket writes payload (a complete stanza element) to the wire,
// assigning it a fresh id if it doesn't already carry one. Valid in
// StreamOpened or LoggedIn. Returns the id the stanza was sent with.
func (s *Session) SendPacket(payload []byte) (string, error) {
	v, err := s.runNow(func() (interface{}, error) {
		if s.state != StreamOpened && s.state != LoggedIn {
			return nil, newErr(ErrNotConnected, s.state.String())
		}
		out, id, err := ensureID(payload)
		if err != nil {
			return nil, newErr(ErrUnallowedCommand, err.Error())
		}
		if _, err := s.transport.Write(out); err != nil {
			return nil, newErr(ErrTCPClosed, err.Error())
		}
		return id, nil
	})
	id, _ := v.(string)
	return id, err
}

// ensureID parses payload's root start element and, if it lacks an id
// attribute, injects a freshly generated one (packet-id assignment).
func ensureID(payload []byte) ([]byte, string, error) {
	dec := xml.NewDecoder(bytes.NewReader(payload))
	tok, err := dec.Token()
	if err != nil {
		return nil, "", err
	}
	start, ok := tok.(xml.StartElement)
	if !ok {
		return nil, "", fmt.Errorf("session: payload is not an element")
	}
	if _, id := attrValue(start, "id"); id != "" {
		return payload, id, nil
	}
	id := genID()
	start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: "id"}, Value: id})

	// rest holds every token after the root's opening tag, up to and
	// including its own matching closing tag (decodeChildren reads to EOF,
	// and payload is exactly one complete top-level element).
	rest, err := decodeChildren(payload)
	if err != nil {
		return nil, "", err
	}
	var buf []byte
	w := &bytesBuf{b: &buf}
	enc := xml.NewEncoder(w)
	if err := enc.EncodeToken(start); err != nil {
		return nil, "", err
	}
	for _, t := range rest {
		if err := enc.EncodeToken(t); err != nil {
			return nil, "", err
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, "", err
	}
	return buf, id, nil
}

// GetConnectionProperty delegates to the active transport's property
// lookup. Valid in any state; returns an error if no transport exists yet.
func (s *Session) GetConnectionProperty(name string) (interface{}, error) {
	return s.runNow(func() (interface{}, error) {
		if s.transport == nil {
			return nil, newErr(ErrNotConnected, "")
		}
		v, err := s.transport.GetProperty(name)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}

// SetControllingProcess redirects future stanza notifications to n. Valid
// always.
func (s *Session) SetControllingProcess(n Notifier) {
	select {
	case s.actorCh <- func() {
		if n == nil {
			n = discardNotifier{}
		}
		s.owner = n
	}:
	case <-s.stopCh:
	}
}

// Stop terminates the session, closing the transport and replying to any
// pending caller with the termination reason. Idempotent, including after
// the actor goroutine itself has already exited.
func (s *Session) Stop() error {
	_, err := s.runNow(func() (interface{}, error) {
		if s.stopped {
			return nil, nil
		}
		s.stopped = true
		s.replyPendingErr(newErr(ErrNotConnected, "session stopped"))
		s.closeStream()
		return nil, nil
	})
	// Once the actor has already torn down, runBlocking can only report the
	// stopCh sentinel rather than reach the s.stopped check above; treat that
	// the same as the idempotent no-op it would have been.
	if e, ok := err.(*Error); ok && e.Kind == ErrNotConnected && e.Reason == "session stopped" {
		return nil
	}
	return err
}
