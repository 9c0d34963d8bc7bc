// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package session

import (
	"encoding/xml"
	"fmt"
	"io"

	"github.com/xmppcore/session/internal"
)

// genID returns a fresh random stanza/request identifier, stable-prefixed
// per the packet-id assignment rule.
func genID() string {
	return "session" + internal.RandomID(internal.IDLen)
}

// writeStreamOpen writes the XML declaration and opening <stream:stream>
// tag for to/from over w, following the literal-template idiom used
// throughout this codebase for framing bytes that encoding/xml's Encoder
// cannot express directly (the namespaced stream:stream start tag).
func writeStreamOpen(w io.Writer, to, from, version string) error {
	_, err := fmt.Fprintf(w, `<?xml version="1.0"?><stream:stream to='`)
	if err != nil {
		return err
	}
	if err = xml.EscapeText(w, []byte(to)); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, `' from='`)
	if err != nil {
		return err
	}
	if err = xml.EscapeText(w, []byte(from)); err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, `' version='%s' xml:lang='en' xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams'>`, version)
	return err
}

func writeStreamClose(w io.Writer) error {
	_, err := fmt.Fprint(w, `</stream:stream>`)
	return err
}

func writeStartTLS(w io.Writer) error {
	_, err := fmt.Fprint(w, `<starttls xmlns='urn:ietf:params:xml:ns:xmpp-tls'/>`)
	return err
}

func writeCompressRequest(w io.Writer, method string) error {
	_, err := fmt.Fprintf(w, `<compress xmlns='http://jabber.org/protocol/compress'><method>%s</method></compress>`, method)
	return err
}

func writeSASLAuth(w io.Writer, mechanism string, initial []byte) error {
	payload := "="
	if len(initial) > 0 {
		payload = b64enc(initial)
	}
	_, err := fmt.Fprintf(w, `<auth xmlns='urn:ietf:params:xml:ns:xmpp-sasl' mechanism='%s'>%s</auth>`, mechanism, payload)
	return err
}

func writeSASLResponse(w io.Writer, data []byte) error {
	_, err := fmt.Fprintf(w, `<response xmlns='urn:ietf:params:xml:ns:xmpp-sasl'>%s</response>`, b64enc(data))
	return err
}

func writeSASLAbort(w io.Writer) error {
	_, err := fmt.Fprint(w, `<abort xmlns='urn:ietf:params:xml:ns:xmpp-sasl'/>`)
	return err
}

func writeBindRequest(w io.Writer, id, resource string) error {
	if resource == "" {
		_, err := fmt.Fprintf(w, `<iq id='%s' type='set'><bind xmlns='urn:ietf:params:xml:ns:xmpp-bind'/></iq>`, id)
		return err
	}
	_, err := fmt.Fprintf(w, `<iq id='%s' type='set'><bind xmlns='urn:ietf:params:xml:ns:xmpp-bind'><resource>%s</resource></bind></iq>`, id, xmlEscape(resource))
	return err
}

func writeSessionRequest(w io.Writer, id string) error {
	_, err := fmt.Fprintf(w, `<iq id='%s' type='set'><session xmlns='urn:ietf:params:xml:ns:xmpp-session'/></iq>`, id)
	return err
}

func writeLegacyAuthRequest(w io.Writer, id, username string) error {
	_, err := fmt.Fprintf(w, `<iq id='%s' type='get'><query xmlns='jabber:iq:auth'><username>%s</username></query></iq>`, id, xmlEscape(username))
	return err
}

func writeLegacyAuthPlain(w io.Writer, id, username, password, resource string) error {
	_, err := fmt.Fprintf(w,
		`<iq id='%s' type='set'><query xmlns='jabber:iq:auth'><username>%s</username><password>%s</password><resource>%s</resource></query></iq>`,
		id, xmlEscape(username), xmlEscape(password), xmlEscape(resource))
	return err
}

func writeLegacyAuthDigest(w io.Writer, id, username, digest, resource string) error {
	_, err := fmt.Fprintf(w,
		`<iq id='%s' type='set'><query xmlns='jabber:iq:auth'><username>%s</username><digest>%s</digest><resource>%s</resource></query></iq>`,
		id, xmlEscape(username), digest, xmlEscape(resource))
	return err
}

func writeRegisterSubmit(w io.Writer, id, username, password string) error {
	_, err := fmt.Fprintf(w,
		`<iq id='%s' type='set'><query xmlns='jabber:iq:register'><username>%s</username><password>%s</password></query></iq>`,
		id, xmlEscape(username), xmlEscape(password))
	return err
}

func xmlEscape(s string) string {
	var buf []byte
	w := bytesBuf{b: &buf}
	_ = xml.EscapeText(&w, []byte(s))
	return string(buf)
}

type bytesBuf struct{ b *[]byte }

func (w *bytesBuf) Write(p []byte) (int, error) {
	*w.b = append(*w.b, p...)
	return len(p), nil
}
