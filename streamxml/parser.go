// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

// Package streamxml adapts the standard library's encoding/xml decoder into
// the incremental XML stream parser the session FSM drives: it tokenizes
// bytes fed to it and raises one event per stream-level occurrence (stream
// open, top-level element, stream close, or malformed input) rather than
// handing back raw xml.Tokens.
package streamxml // import "github.com/xmppcore/session/streamxml"

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
)

// NS is the namespace of the <stream:stream> wrapper element.
const NS = "http://etherx.jabber.org/streams"

// Kind identifies which of the four events in RFC 6120 terms a Event
// represents.
type Kind int

const (
	// StreamStart is raised when the opening <stream:stream> tag is seen.
	StreamStart Kind = iota
	// StreamElement is raised for every complete top-level child element of
	// the stream (stanzas, <features/>, SASL challenges, etc).
	StreamElement
	// StreamEnd is raised when the closing </stream:stream> tag is seen.
	StreamEnd
	// StreamError is raised when bytes could not be tokenized at all.
	StreamError
)

// Event is a single occurrence raised by the parser while consuming the
// stream. Only the fields relevant to Kind are populated.
type Event struct {
	Kind Kind

	// Attrs holds the opening stream tag's attributes (StreamStart only),
	// keyed by local name: "to", "from", "id", "version", "xmlns", "lang".
	Attrs map[string]string

	// Name is the qualified name of the top-level element (StreamElement
	// only).
	Name xml.Name

	// Start is the decoded opening tag of the top-level element
	// (StreamElement only); its Attr slice gives quick access to attributes
	// such as "type" or "id" without re-decoding Raw.
	Start xml.StartElement

	// Raw is the element's wire-equivalent serialization, suitable for
	// forwarding to the owner or for further unmarshaling via
	// xml.NewDecoder(bytes.NewReader(Raw)) / xml.Unmarshal.
	Raw []byte

	// Err is the tokenizer failure (StreamError only).
	Err error
}

// MalformedXml is returned (wrapped) in Event.Err when the underlying bytes
// cannot be tokenized as XML.
type MalformedXml struct {
	Err error
}

func (e *MalformedXml) Error() string { return fmt.Sprintf("streamxml: malformed XML: %v", e.Err) }
func (e *MalformedXml) Unwrap() error { return e.Err }

// Parser incrementally decodes one XMPP stream from an io.Reader, raising
// the four stream-level events described by Kind.
type Parser struct {
	dec *xml.Decoder
	// awaitingStart is true until the opening <stream:stream> tag has been
	// consumed; every other top-level StartElement closes out as a
	// StreamElement.
	awaitingStart bool
}

// New creates a Parser reading from r. The first event Next returns will
// always attempt to match the opening stream tag.
func New(r io.Reader) *Parser {
	return &Parser{dec: xml.NewDecoder(r), awaitingStart: true}
}

// Reset discards any parser state and begins decoding from r. This must be
// called whenever a new <stream:stream> is opened on the same transport: on
// SASL success, after a STARTTLS <proceed/>, and after stream compression is
// negotiated.
func (p *Parser) Reset(r io.Reader) {
	p.dec = xml.NewDecoder(r)
	p.awaitingStart = true
}

// Next blocks until the next stream-level event can be produced from p's
// underlying reader.
func (p *Parser) Next() Event {
	for {
		tok, err := p.dec.Token()
		if err != nil {
			if err == io.EOF {
				return Event{Kind: StreamEnd}
			}
			return Event{Kind: StreamError, Err: &MalformedXml{Err: err}}
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if p.awaitingStart {
				p.awaitingStart = false
				return Event{Kind: StreamStart, Attrs: attrMap(t), Name: t.Name}
			}
			raw, start, err := captureElement(p.dec, t)
			if err != nil {
				return Event{Kind: StreamError, Err: &MalformedXml{Err: err}}
			}
			return Event{Kind: StreamElement, Name: t.Name, Start: start, Raw: raw}
		case xml.EndElement:
			if t.Name.Space == NS && t.Name.Local == "stream" {
				return Event{Kind: StreamEnd}
			}
			// A stray top-level end element outside of the stream close is a
			// framing violation.
			return Event{Kind: StreamError, Err: &MalformedXml{Err: fmt.Errorf("unexpected end element %v", t.Name)}}
		default:
			// Whitespace, comments, etc. between top-level elements; ignore
			// and keep reading.
		}
	}
}

func attrMap(start xml.StartElement) map[string]string {
	m := make(map[string]string, len(start.Attr)+1)
	m["xmlns"] = start.Name.Space
	for _, a := range start.Attr {
		m[a.Name.Local] = a.Value
	}
	return m
}

// captureElement reads the remainder of the element started by start
// (including its children, to matching depth zero) and re-serializes it into
// raw XML, returning the original opening tag for cheap attribute access.
func captureElement(dec *xml.Decoder, start xml.StartElement) ([]byte, xml.StartElement, error) {
	toks := []xml.Token{xml.CopyToken(start)}
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return nil, start, err
		}
		tok = xml.CopyToken(tok)
		toks = append(toks, tok)
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	for _, tok := range toks {
		if err := enc.EncodeToken(tok); err != nil {
			return nil, start, err
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, start, err
	}
	return buf.Bytes(), start, nil
}

// Tokens returns a token reader over a StreamElement event's element
// (including its opening and closing tags). It re-parses Raw with a new
// xml.Decoder on every call.
func (e Event) Tokens() xml.TokenReader {
	return xml.NewDecoder(bytes.NewReader(e.Raw))
}
