// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package stanza

import (
	"encoding/xml"
	"strings"

	"github.com/xmppcore/session/internal/attr"
)

// Kind identifies which of the three stanza families (or a bare stream
// error) a Notification was classified from.
type Kind int

// Kinds of notifications a Classify call can produce.
const (
	UnknownKind Kind = iota
	MessageKind
	PresenceKind
	IQKind
	StreamErrorKind
)

// String returns a human readable name for k.
func (k Kind) String() string {
	switch k {
	case MessageKind:
		return "message"
	case PresenceKind:
		return "presence"
	case IQKind:
		return "iq"
	case StreamErrorKind:
		return "stream error"
	default:
		return "unknown"
	}
}

// Notification is the result of classifying a top-level stream element for
// delivery to the entity that owns a session.
type Notification struct {
	Kind Kind
	Type string
	From string
	ID   string

	// QueryNS is the namespace of an IQ's first child element, if any. It is
	// only populated for IQKind notifications.
	QueryNS string

	// Condition is the stanza-error or stream-error condition, if any.
	Condition string

	Raw xml.StartElement
}

// Classify inspects a top-level start element and builds the Notification
// an owning client should receive for it, per the dispatch rules for
// message, presence, iq, and error elements. The returned bool reports
// whether start was recognized as one of these; unrecognized elements
// should be forwarded to the owner unmodified by the caller.
func Classify(start xml.StartElement, payload []xml.Token) (Notification, bool) {
	n := Notification{Raw: start}
	local := start.Name.Local
	switch local {
	case "message":
		n.Kind = MessageKind
	case "presence":
		n.Kind = PresenceKind
	case "iq":
		n.Kind = IQKind
	case "error":
		n.Kind = StreamErrorKind
	default:
		return n, false
	}

	_, n.Type = attr.Get(start.Attr, "type")
	_, from := attr.Get(start.Attr, "from")
	n.From = normalizeFrom(from)
	_, n.ID = attr.Get(start.Attr, "id")

	switch n.Kind {
	case IQKind:
		for _, tok := range payload {
			if child, ok := tok.(xml.StartElement); ok {
				n.QueryNS = child.Name.Space
				break
			}
		}
	case StreamErrorKind:
		for _, tok := range payload {
			if child, ok := tok.(xml.StartElement); ok {
				n.Condition = child.Name.Local
				break
			}
		}
	}
	return n, true
}

// normalizeFrom canonicalizes a raw "from" attribute value per the
// dispatcher's normalization rule: an absent or empty attribute yields the
// empty string (treated by callers as "no sender"), otherwise the JID text
// is lowercased.
func normalizeFrom(from string) string {
	if from == "" {
		return ""
	}
	return strings.ToLower(from)
}
