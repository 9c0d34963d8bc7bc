// Copyright 2015 The Mellium Contributors.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"

	"mellium.im/xmlstream"
	"github.com/xmppcore/session/internal/ns"
	"github.com/xmppcore/session/jid"
)

// Message is an XMPP stanza that encapsulates data sent between XMPP
// entities in a one-to-one or one-to-many, push-oriented fashion.
type Message struct {
	XMLName xml.Name    `xml:"message"`
	ID      string      `xml:"id,attr"`
	To      *jid.JID    `xml:"to,attr"`
	From    *jid.JID    `xml:"from,attr"`
	Lang    string      `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Type    MessageType `xml:"type,attr,omitempty"`
}

// MessageType is the type of a message stanza.
// It should normally be one of the constants defined in this package.
type MessageType string

const (
	// NormalMessage is a standalone message that is sent outside the context
	// of a one-to-one conversation or groupchat, and to which it is expected
	// that the recipient will reply.
	NormalMessage MessageType = "normal"

	// ChatMessage is sent in the context of a one-to-one chat session.
	ChatMessage MessageType = "chat"

	// HeadlineMessage provides an alert, a notification, or other transient
	// information to which no reply is expected.
	HeadlineMessage MessageType = "headline"

	// ErrorMessage indicates that an error has occurred regarding processing
	// of a previously sent message stanza.
	ErrorMessage MessageType = "error"
)

// StartElement returns an XML start element that encodes the message's
// attributes. The element name's local part is always "message"; the
// namespace is taken from the message's XMLName.
func (msg Message) StartElement() xml.StartElement {
	name := msg.XMLName
	name.Local = "message"
	attrs := []xml.Attr{
		{Name: xml.Name{Local: "id"}, Value: msg.ID},
	}
	if msg.To != nil {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "to"}, Value: msg.To.String()})
	}
	if msg.From != nil {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "from"}, Value: msg.From.String()})
	}
	if msg.Lang != "" {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Space: ns.XML, Local: "lang"}, Value: msg.Lang})
	}
	attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "type"}, Value: string(msg.Type)})
	return xml.StartElement{Name: name, Attr: attrs}
}

// Wrap wraps the payload in a message stanza using the message's
// to/from/id/type attributes.
func (msg Message) Wrap(payload xml.TokenReader) xml.TokenReader {
	return xmlstream.Wrap(payload, msg.StartElement())
}

// NewMessage creates a new Message from an XML start element. It returns an
// error if the element's local name is not "message".
func NewMessage(start xml.StartElement) (Message, error) {
	if start.Name.Local != "message" {
		return Message{}, xml.UnmarshalError("expected element type <message> but have <" + start.Name.Local + ">")
	}
	msg := Message{XMLName: start.Name}
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "id":
			msg.ID = a.Value
		case "to":
			j, err := jid.New(a.Value)
			if err != nil {
				return msg, err
			}
			msg.To = &j
		case "from":
			j, err := jid.New(a.Value)
			if err != nil {
				return msg, err
			}
			msg.From = &j
		case "lang":
			if a.Name.Space == ns.XML {
				msg.Lang = a.Value
			}
		case "type":
			msg.Type = MessageType(a.Value)
		}
	}
	return msg, nil
}
