// Copyright 2014 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package jid

import (
	"encoding/xml"
	"errors"
	"fmt"
	"net"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/precis"
)

// JID represents an XMPP address comprising a localpart, domainpart, and
// resourcepart, eg. "node@domain/resource". All parts are normalized and
// guaranteed to be valid UTF-8; any part except the domainpart may be empty.
type JID struct {
	localpart    string
	domainpart   string
	resourcepart string
}

// New constructs a JID from a string representation such as
// "alice@example.org/phone".
func New(s string) (JID, error) {
	localpart, domainpart, resourcepart, err := SplitString(s)
	if err != nil {
		return JID{}, err
	}
	return FromParts(localpart, domainpart, resourcepart)
}

// FromParts constructs and normalizes a JID from its three components.
func FromParts(localpart, domainpart, resourcepart string) (JID, error) {
	// Ensure that parts are valid UTF-8 (and short circuit the rest of the
	// process if they're not). We'll check the domainpart after performing
	// the IDNA ToUnicode operation.
	if !utf8.ValidString(localpart) || !utf8.ValidString(resourcepart) {
		return JID{}, errors.New("jid: part contains invalid UTF-8")
	}

	// RFC 7622 §3.2.1: the domainpart slot only allows code points valid in
	// NR-LDH/U-labels, so any A-labels must be converted during preparation.
	domainpart, err := idna.ToUnicode(domainpart)
	if err != nil {
		return JID{}, err
	}
	if !utf8.ValidString(domainpart) {
		return JID{}, errors.New("jid: domainpart contains invalid UTF-8")
	}

	localpart, err = precis.UsernameCaseMapped.String(localpart)
	if err != nil {
		return JID{}, err
	}
	resourcepart, err = precis.OpaqueString.String(resourcepart)
	if err != nil {
		return JID{}, err
	}

	if err := commonChecks(localpart, domainpart, resourcepart); err != nil {
		return JID{}, err
	}

	return JID{
		localpart:    localpart,
		domainpart:   domainpart,
		resourcepart: resourcepart,
	}, nil
}

// MustParse is like New but panics if s is not a valid JID. It is intended for
// use with constants.
func MustParse(s string) JID {
	j, err := New(s)
	if err != nil {
		panic(err)
	}
	return j
}

// Localpart gets the localpart of a JID (eg. "alice").
func (j JID) Localpart() string { return j.localpart }

// Domainpart gets the domainpart of a JID (eg. "example.org").
func (j JID) Domainpart() string { return j.domainpart }

// Resourcepart gets the resourcepart of a JID (eg. "phone").
func (j JID) Resourcepart() string { return j.resourcepart }

// Bare returns a copy of the JID without a resourcepart. This is sometimes
// called the "bare JID".
func (j JID) Bare() JID {
	j.resourcepart = ""
	return j
}

// WithResource returns a copy of the JID with the resourcepart replaced.
func (j JID) WithResource(resourcepart string) (JID, error) {
	return FromParts(j.localpart, j.domainpart, resourcepart)
}

// IsZero reports whether j is the zero-value JID.
func (j JID) IsZero() bool {
	return j.localpart == "" && j.domainpart == "" && j.resourcepart == ""
}

// String converts a JID to its string representation.
func (j JID) String() string {
	s := j.domainpart
	if j.localpart != "" {
		s = j.localpart + "@" + s
	}
	if j.resourcepart != "" {
		s = s + "/" + j.resourcepart
	}
	return s
}

// Equal performs an octet-for-octet comparison with the given JID.
func (j JID) Equal(j2 JID) bool {
	return j.localpart == j2.localpart &&
		j.domainpart == j2.domainpart &&
		j.resourcepart == j2.resourcepart
}

// MarshalXMLAttr satisfies xml.MarshalerAttr so a JID can be used directly as
// an element attribute (eg. a stanza's "to" or "from").
func (j JID) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{Name: name, Value: j.String()}, nil
}

// UnmarshalXMLAttr satisfies xml.UnmarshalerAttr. An empty attribute value
// yields the zero JID.
func (j *JID) UnmarshalXMLAttr(attr xml.Attr) error {
	if attr.Value == "" {
		*j = JID{}
		return nil
	}
	parsed, err := New(attr.Value)
	if err != nil {
		return err
	}
	*j = parsed
	return nil
}

var _ fmt.Stringer = JID{}

// SplitString splits out the localpart, domainpart, and resourcepart from a
// string representation of a JID. The parts are not guaranteed to be valid,
// and each part must be 1023 bytes or less.
func SplitString(s string) (localpart, domainpart, resourcepart string, err error) {
	// RFC 7622 §3.1: match the separator characters '@' and '/' before
	// applying any transformation algorithm that might decompose certain
	// Unicode code points into the separator characters.
	//
	// First strip the resourcepart (RFC 7622 §3.2: everything after the
	// first unescaped '/').
	parts := strings.SplitAfterN(s, "/", 2)

	if strings.HasSuffix(parts[0], "/") {
		if len(parts) == 2 && parts[1] != "" {
			resourcepart = parts[1]
		} else {
			err = errors.New("jid: resourcepart must be larger than 0 bytes")
			return
		}
	}

	norp := strings.TrimSuffix(parts[0], "/")

	// Then strip the localpart (everything up to the first unescaped '@').
	nolp := strings.SplitAfterN(norp, "@", 2)
	if nolp[0] == "@" {
		err = errors.New("jid: localpart must be larger than 0 bytes")
		return
	}

	switch len(nolp) {
	case 1:
		domainpart = nolp[0]
	case 2:
		domainpart = nolp[1]
		localpart = strings.TrimSuffix(nolp[0], "@")
	}

	// Trailing dots on domainparts are ignored per RFC 7622 §3.2.
	domainpart = strings.TrimSuffix(domainpart, ".")

	return
}

func checkIP6String(domainpart string) error {
	if l := len(domainpart); l > 2 && strings.HasPrefix(domainpart, "[") &&
		strings.HasSuffix(domainpart, "]") {
		if ip := net.ParseIP(domainpart[1 : l-1]); ip == nil || ip.To4() != nil {
			return errors.New("jid: domainpart is not a valid IPv6 address")
		}
	}
	return nil
}

func commonChecks(localpart, domainpart, resourcepart string) error {
	if l := len(localpart); l > 1023 {
		return errors.New("jid: localpart must be smaller than 1024 bytes")
	}

	// RFC 7622 §3.3.1 forbids these characters in localparts even though the
	// IdentifierClass/UsernameCaseMapped profile doesn't.
	if strings.ContainsAny(localpart, "\"&'/:<>@") {
		return errors.New("jid: localpart contains forbidden characters")
	}

	if l := len(resourcepart); l > 1023 {
		return errors.New("jid: resourcepart must be smaller than 1024 bytes")
	}

	if l := len(domainpart); l < 1 || l > 1023 {
		return errors.New("jid: domainpart must be between 1 and 1023 bytes")
	}

	return checkIP6String(domainpart)
}
