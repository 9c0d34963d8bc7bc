// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package session

import (
	"bytes"
	"crypto/tls"
	"encoding/xml"
	"io"

	"github.com/xmppcore/session/internal/ns"
	"github.com/xmppcore/session/jid"
	"github.com/xmppcore/session/sasl"
	"github.com/xmppcore/session/streamxml"
)

// decodeChildren re-decodes a captured StreamElement's raw bytes into the
// token list stanza.Classify inspects for its first-child lookups (IQ
// query namespace, stream-error condition).
func decodeChildren(raw []byte) ([]xml.Token, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	// Discard the element's own opening tag.
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	var toks []xml.Token
	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return toks, err
		}
		toks = append(toks, xml.CopyToken(tok))
	}
	return toks, nil
}

// handleParserEvent is the FSM's core transition function (C5): given the
// current state and a single parser event, it performs whatever transport
// writes the transition requires and moves to the next state. It is only
// ever invoked on the actor goroutine.
func (s *Session) handleParserEvent(ev streamxml.Event) {
	switch ev.Kind {
	case streamxml.StreamError:
		s.deliverStreamError("not-well-formed")
		s.replyPendingErr(newErr(ErrStream, ev.Err.Error()))
		s.state = StreamError
		return
	case streamxml.StreamEnd:
		s.closeStream()
		return
	}

	// A bare top-level <error/> in the stream namespace is RFC 6120's
	// stream-level error, regardless of what state we're in.
	if ev.Kind == streamxml.StreamElement && ev.Name.Local == "error" && ev.Name.Space == streamxml.NS {
		payload, _ := decodeChildren(ev.Raw)
		condition := "undefined-condition"
		for _, tok := range payload {
			if se, ok := tok.(xml.StartElement); ok {
				condition = se.Name.Local
				break
			}
		}
		s.deliverStreamError(condition)
		s.replyPendingErr(newErr(ErrStream, condition))
		s.state = StreamError
		return
	}

	switch s.state {
	case WaitForStream:
		s.onWaitForStream(ev)
	case WaitForStreamFeatures:
		s.onWaitForStreamFeatures(ev)
	case WaitForStarttlsResult:
		s.onWaitForStarttlsResult(ev)
	case WaitForCompressionResult:
		s.onWaitForCompressionResult(ev)
	case StreamOpened, LoggedIn:
		s.onSteadyState(ev)
	case WaitForSaslResponse:
		s.onWaitForSaslResponse(ev)
	case WaitForLegacyAuthMethod:
		s.onWaitForLegacyAuthMethod(ev)
	case WaitForAuthResult:
		s.onWaitForAuthResult(ev)
	case WaitForBindResponse:
		s.onWaitForBindResponse(ev)
	case WaitForSessionResponse:
		s.onWaitForSessionResponse(ev)
	case WaitForRegisterResult:
		s.onWaitForRegisterResult(ev)
	default:
		// StreamError/StreamClosed/Setup: nothing further is expected from
		// the wire; ignore.
	}
}

func (s *Session) onWaitForStream(ev streamxml.Event) {
	if ev.Kind != streamxml.StreamStart {
		return
	}
	s.streamID = ev.Attrs["id"]
	version := ev.Attrs["version"]
	if version == "1.0" {
		s.streamVersion = "1.0"
		s.state = WaitForStreamFeatures
		return
	}
	s.streamVersion = "0.0"
	s.state = StreamOpened
	s.replyPendingOK(s.streamID)
}

func (s *Session) onWaitForStreamFeatures(ev streamxml.Event) {
	if ev.Kind != streamxml.StreamElement || ev.Name.Local != "features" {
		return
	}
	f, err := parseFeatures(ev.Raw)
	if err != nil {
		s.deliverStreamError("bad-format")
		s.replyPendingErr(newErr(ErrStream, "bad-format"))
		s.state = StreamError
		return
	}
	s.features = f

	switch {
	case f.startTLSRequired && !s.flags.Encrypted && !s.opts.starttlsEnabled():
		s.deliverStreamError("policy-violation")
		s.replyPendingErr(newErr(ErrStream, "policy-violation"))
		s.state = StreamError

	case f.startTLS && !s.flags.Encrypted && s.opts.starttlsEnabled():
		if err := writeStartTLS(s.transport); err != nil {
			s.failConnect(err)
			return
		}
		s.state = WaitForStarttlsResult

	case len(f.compressMethods) > 0 && !s.flags.Compressed && s.opts.compressionEnabled() && hasZlib(f.compressMethods):
		if err := writeCompressRequest(s.transport, "zlib"); err != nil {
			s.failConnect(err)
			return
		}
		s.state = WaitForCompressionResult

	case s.flags.Authenticated && f.bind:
		id := genID()
		resource := ""
		if s.creds != nil {
			resource = s.creds.JID.Resourcepart()
		}
		if err := writeBindRequest(s.transport, id, resource); err != nil {
			s.failConnect(err)
			return
		}
		s.state = WaitForBindResponse

	default:
		s.state = StreamOpened
		s.replyPendingOK(s.streamID)
	}
}

func hasZlib(methods []string) bool {
	for _, m := range methods {
		if m == "zlib" {
			return true
		}
	}
	return false
}

func (s *Session) failConnect(err error) {
	s.replyPendingErr(newErr(ErrConnect, err.Error()))
	s.state = StreamError
}

func (s *Session) onWaitForStarttlsResult(ev streamxml.Event) {
	if ev.Kind != streamxml.StreamElement {
		return
	}
	switch ev.Name.Local {
	case "proceed":
		upgraded, err := s.transport.StartTLS(&tls.Config{ServerName: s.effectiveDomain()})
		if err != nil {
			s.replyPendingErr(newErr(ErrCouldNotEncrypt, err.Error()))
			s.state = StreamError
			return
		}
		s.flags.Encrypted = true
		s.setTransport(upgraded)
		if err := writeStreamOpen(s.transport, s.effectiveDomain(), s.originAddr(), "1.0"); err != nil {
			s.failConnect(err)
			return
		}
		s.state = WaitForStream
		s.startReader()
	case "failure":
		s.replyPendingErr(newErr(ErrCouldNotEncrypt, "server refused starttls"))
		s.state = StreamError
	}
}

func (s *Session) onWaitForCompressionResult(ev streamxml.Event) {
	if ev.Kind != streamxml.StreamElement {
		return
	}
	switch ev.Name.Local {
	case "compressed":
		upgraded, err := s.transport.Compress()
		if err != nil {
			s.replyPendingErr(newErr(ErrCouldNotCompress, err.Error()))
			s.state = StreamError
			return
		}
		s.flags.Compressed = true
		s.setTransport(upgraded)
		if err := writeStreamOpen(s.transport, s.effectiveDomain(), s.originAddr(), "1.0"); err != nil {
			s.failConnect(err)
			return
		}
		s.state = WaitForStream
		s.startReader()
	case "failure":
		s.replyPendingErr(newErr(ErrCouldNotCompress, "server refused compression"))
		s.state = StreamError
	}
}

func (s *Session) onSteadyState(ev streamxml.Event) {
	if ev.Kind != streamxml.StreamElement {
		return
	}
	if s.classifyAndDeliver(ev) {
		s.armPing()
		return
	}
	// Unrecognized top-level element in StreamOpened: forward raw per §4.4.
	s.deliver(Notification{Raw: ev.Raw})
	s.armPing()
}

func (s *Session) onWaitForSaslResponse(ev streamxml.Event) {
	if ev.Kind != streamxml.StreamElement || ev.Name.Space != ns.SASL {
		return
	}
	switch ev.Name.Local {
	case "challenge":
		text := string(bytes.TrimSpace(elementText(ev.Raw)))
		challenge, err := b64dec(text)
		if err != nil {
			s.replyPendingErr(newErr(ErrAuth, "malformed challenge"))
			s.state = StreamOpened
			return
		}
		res := s.saslDriver.Step(s.saslState, challenge)
		switch res.Step {
		case sasl.StepContinue:
			s.saslState = res.State
			if err := writeSASLResponse(s.transport, res.Response); err != nil {
				s.failConnect(err)
			}
		case sasl.StepFail:
			s.replyPendingErr(newErr(ErrAuth, errString(res.Err)))
			s.state = StreamOpened
		case sasl.StepDone:
			if err := writeSASLResponse(s.transport, res.Response); err != nil {
				s.failConnect(err)
			}
		}
	case "success":
		s.flags.Authenticated = true
		s.resetParser()
		if err := writeStreamOpen(s.transport, s.effectiveDomain(), s.originAddr(), "1.0"); err != nil {
			s.failConnect(err)
			return
		}
		s.state = WaitForStream
	case "failure":
		condition := firstChildLocal(ev.Raw, "not-authorized")
		s.replyPendingErr(newErr(ErrAuth, condition))
		s.state = StreamOpened
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// elementText extracts the concatenated character data of a captured
// top-level element (eg. a base64 SASL challenge).
func elementText(raw []byte) []byte {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	var buf bytes.Buffer
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		if cd, ok := tok.(xml.CharData); ok {
			buf.Write(cd)
		}
	}
	return buf.Bytes()
}

// firstChildLocal returns the local name of the first child element of raw,
// or def if raw has no children.
func firstChildLocal(raw []byte, def string) string {
	children, err := decodeChildren(raw)
	if err != nil {
		return def
	}
	for _, tok := range children {
		if se, ok := tok.(xml.StartElement); ok {
			return se.Name.Local
		}
	}
	return def
}

func (s *Session) onWaitForLegacyAuthMethod(ev streamxml.Event) {
	if ev.Kind != streamxml.StreamElement || ev.Name.Local != "iq" {
		return
	}
	_, typ := attrValue(ev.Start, "type")
	if typ == "error" {
		s.replyPendingErr(newErr(ErrNotAuthMethodResult, firstErrorCondition(ev.Raw)))
		s.state = StreamOpened
		return
	}

	username := ""
	if s.creds != nil {
		username = s.creds.JID.Localpart()
	}
	password := ""
	if s.creds != nil {
		password = s.creds.Password
	}
	resource := ""
	if s.creds != nil {
		resource = s.creds.JID.Resourcepart()
	}
	id := genID()

	if s.authMethod == Digest {
		if s.streamID == "" {
			s.replyPendingErr(newErr(ErrNoStreamIDForDigestAuth, ""))
			s.state = StreamOpened
			return
		}
		digest := legacyDigest(s.streamID, password)
		if err := writeLegacyAuthDigest(s.transport, id, username, digest, resource); err != nil {
			s.failConnect(err)
			return
		}
	} else {
		if err := writeLegacyAuthPlain(s.transport, id, username, password, resource); err != nil {
			s.failConnect(err)
			return
		}
	}
	s.state = WaitForAuthResult
}

func (s *Session) onWaitForAuthResult(ev streamxml.Event) {
	if ev.Kind != streamxml.StreamElement || ev.Name.Local != "iq" {
		return
	}
	_, typ := attrValue(ev.Start, "type")
	if typ == "error" {
		s.replyPendingErr(newErr(ErrAuth, firstErrorCondition(ev.Raw)))
		s.state = StreamOpened
		return
	}
	s.flags.Authenticated = true
	s.state = LoggedIn
	j := ""
	if s.creds != nil {
		j = s.creds.JID.String()
	}
	s.replyPendingOK(j)
	s.armPing()
}

func (s *Session) onWaitForBindResponse(ev streamxml.Event) {
	if ev.Kind != streamxml.StreamElement || ev.Name.Local != "iq" {
		return
	}
	_, typ := attrValue(ev.Start, "type")
	if typ == "error" {
		s.replyPendingErr(newErr(ErrBind, firstErrorCondition(ev.Raw)))
		s.state = StreamOpened
		return
	}
	boundJID := extractBoundJID(ev.Raw)
	if boundJID.IsZero() {
		s.replyPendingErr(newErr(ErrBind, "missing bound jid"))
		s.state = StreamOpened
		return
	}
	if s.creds == nil {
		s.creds = &Credentials{}
	}
	s.creds.JID = boundJID
	id := genID()
	if err := writeSessionRequest(s.transport, id); err != nil {
		s.failConnect(err)
		return
	}
	s.state = WaitForSessionResponse
}

func extractBoundJID(raw []byte) jid.JID {
	var resp struct {
		XMLName xml.Name `xml:"iq"`
		Bind    struct {
			JID string `xml:"jid"`
		} `xml:"urn:ietf:params:xml:ns:xmpp-bind bind"`
	}
	if err := xml.Unmarshal(raw, &resp); err != nil || resp.Bind.JID == "" {
		return jid.JID{}
	}
	j, err := jid.New(resp.Bind.JID)
	if err != nil {
		return jid.JID{}
	}
	return j
}

func (s *Session) onWaitForSessionResponse(ev streamxml.Event) {
	if ev.Kind != streamxml.StreamElement || ev.Name.Local != "iq" {
		return
	}
	_, typ := attrValue(ev.Start, "type")
	if typ == "error" {
		s.replyPendingErr(newErr(ErrBind, firstErrorCondition(ev.Raw)))
		s.state = StreamOpened
		return
	}
	s.state = LoggedIn
	j := ""
	if s.creds != nil {
		j = s.creds.JID.String()
	}
	s.replyPendingOK(j)
	s.armPing()
}

func (s *Session) onWaitForRegisterResult(ev streamxml.Event) {
	if ev.Kind != streamxml.StreamElement || ev.Name.Local != "iq" {
		return
	}
	_, typ := attrValue(ev.Start, "type")
	if typ == "error" {
		s.replyPendingErr(newErr(ErrRegister, firstErrorCondition(ev.Raw)))
		s.state = StreamOpened
		return
	}
	s.replyPendingOK(nil)
	s.state = StreamOpened
}

func attrValue(start xml.StartElement, local string) (int, string) {
	for i, a := range start.Attr {
		if a.Name.Local == local {
			return i, a.Value
		}
	}
	return -1, ""
}

// firstErrorCondition extracts the RFC 6120 §8.3.3 condition local name
// from an iq's <error/> child, falling back to "undefined-condition".
func firstErrorCondition(raw []byte) string {
	var resp struct {
		XMLName xml.Name `xml:"iq"`
		Error   struct {
			Condition xml.Name `xml:",any"`
		} `xml:"error"`
	}
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return "undefined-condition"
	}
	if resp.Error.Condition.Local == "" {
		return "undefined-condition"
	}
	return resp.Error.Condition.Local
}
