// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"
	"errors"

	"mellium.im/xmlstream"
	"github.com/xmppcore/session/internal/ns"
	"github.com/xmppcore/session/jid"
)

// Errors returned by the stanza package.
var (
	ErrEmptyIQType = errors.New("stanza: empty IQ type")
)

// IQ ("Information Query") is used as a general request response mechanism.
// IQ's are one-to-one, provide get and set semantics, and always require a
// response in the form of a result or an error.
type IQ struct {
	XMLName xml.Name `xml:"iq"`
	ID      string   `xml:"id,attr"`
	To      *jid.JID `xml:"to,attr"`
	From    *jid.JID `xml:"from,attr"`
	Lang    string   `xml:"http://www.w3.org/XML/1998/namespace lang,attr,omitempty"`
	Type    IQType   `xml:"type,attr"`
}

// IQType is the type of an IQ stanza.
// It should normally be one of the constants defined in this package.
type IQType string

const (
	// GetIQ is used to query another entity for information.
	GetIQ IQType = "get"

	// SetIQ is used to provide data to another entity, set new values, and
	// replace existing values.
	SetIQ IQType = "set"

	// ResultIQ is sent in response to a successful get or set IQ.
	ResultIQ IQType = "result"

	// ErrorIQ is sent to report that an error occurred during the delivery or
	// processing of a get or set IQ.
	ErrorIQ IQType = "error"
)

// MarshalXMLAttr satisfies the xml.MarshalerAttr interface for IQType.
// It returns ErrEmptyIQType when trying to marshal a IQ stanza with an empty
// type attribute.
func (t IQType) MarshalXMLAttr(name xml.Name) (attr xml.Attr, err error) {
	s := string(t)
	if s == "" {
		return attr, ErrEmptyIQType
	}
	attr.Name = name
	attr.Value = s
	return attr, nil
}

// StartElement returns an XML start element that encodes the IQ's
// attributes. The element name's local part is always "iq"; the namespace
// is taken from the IQ's XMLName.
func (iq IQ) StartElement() xml.StartElement {
	name := iq.XMLName
	name.Local = "iq"
	attrs := []xml.Attr{
		{Name: xml.Name{Local: "type"}, Value: string(iq.Type)},
	}
	if iq.To != nil {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "to"}, Value: iq.To.String()})
	}
	if iq.From != nil {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "from"}, Value: iq.From.String()})
	}
	attrs = append(attrs, xml.Attr{Name: xml.Name{Local: "id"}, Value: iq.ID})
	if iq.Lang != "" {
		attrs = append(attrs, xml.Attr{Name: xml.Name{Space: ns.XML, Local: "lang"}, Value: iq.Lang})
	}
	return xml.StartElement{Name: name, Attr: attrs}
}

// Wrap wraps the payload in an IQ stanza using the IQ's to/from/id/type
// attributes.
func (iq IQ) Wrap(payload xml.TokenReader) xml.TokenReader {
	return xmlstream.Wrap(payload, iq.StartElement())
}

// Result returns a new IQ with the to/from attributes swapped and the type
// set to ResultIQ, wrapping payload. This is the typical response to a get
// or set IQ.
func (iq IQ) Result(payload xml.TokenReader) xml.TokenReader {
	reply := IQ{
		XMLName: iq.XMLName,
		ID:      iq.ID,
		To:      iq.From,
		From:    iq.To,
		Lang:    iq.Lang,
		Type:    ResultIQ,
	}
	return reply.Wrap(payload)
}

// NewIQ creates a new IQ from an XML start element without validating that
// the element's local name is actually "iq"; this lets callers inspect IQ
// payloads that were embedded in a larger stanza or wrapped by middleware.
func NewIQ(start xml.StartElement) (IQ, error) {
	iq := IQ{XMLName: start.Name}
	for _, a := range start.Attr {
		switch a.Name.Local {
		case "id":
			iq.ID = a.Value
		case "to":
			j, err := jid.New(a.Value)
			if err != nil {
				return iq, err
			}
			iq.To = &j
		case "from":
			j, err := jid.New(a.Value)
			if err != nil {
				return iq, err
			}
			iq.From = &j
		case "lang":
			if a.Name.Space == ns.XML {
				iq.Lang = a.Value
			}
		case "type":
			iq.Type = IQType(a.Value)
		}
	}
	return iq, nil
}
