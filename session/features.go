// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package session

import (
	"bytes"
	"encoding/xml"

	"github.com/xmppcore/session/internal/ns"
)

// streamFeatures is the parsed content of a <stream:features/> element: the
// subset of RFC 6120/XEP-0138 features this FSM negotiates.
type streamFeatures struct {
	startTLS         bool
	startTLSRequired bool
	mechanisms       []string
	compressMethods  []string
	bind             bool
	session          bool
}

// parseFeatures decodes the children of a <stream:features/> top-level
// element (already captured by the parser as raw bytes) into a
// streamFeatures value.
func parseFeatures(raw []byte) (streamFeatures, error) {
	var f streamFeatures
	dec := xml.NewDecoder(bytes.NewReader(raw))

	// Skip the opening <stream:features> tag itself.
	if _, err := dec.Token(); err != nil {
		return f, err
	}

	depth := 0
	var stack []xml.Name
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			stack = append(stack, t.Name)
			switch {
			case len(stack) == 1 && t.Name.Space == ns.StartTLS && t.Name.Local == "starttls":
				f.startTLS = true
			case len(stack) == 2 && t.Name.Local == "required" && stack[0].Space == ns.StartTLS:
				f.startTLSRequired = true
			case len(stack) == 1 && t.Name.Space == ns.SASL && t.Name.Local == "mechanisms":
				// handled via child <mechanism/> elements below
			case len(stack) == 2 && t.Name.Local == "mechanism" && stack[0].Space == ns.SASL:
				var m string
				if err := dec.DecodeElement(&m, &t); err == nil {
					f.mechanisms = append(f.mechanisms, m)
				}
				depth--
				stack = stack[:len(stack)-1]
				continue
			case len(stack) == 1 && t.Name.Space == ns.CompressFeature && t.Name.Local == "compression":
				// handled via child <method/> elements below
			case len(stack) == 2 && t.Name.Local == "method" && stack[0].Space == ns.CompressFeature:
				var m string
				if err := dec.DecodeElement(&m, &t); err == nil {
					f.compressMethods = append(f.compressMethods, m)
				}
				depth--
				stack = stack[:len(stack)-1]
				continue
			case len(stack) == 1 && t.Name.Space == ns.Bind && t.Name.Local == "bind":
				f.bind = true
			case len(stack) == 1 && t.Name.Space == ns.Session && t.Name.Local == "session":
				f.session = true
			}
		case xml.EndElement:
			depth--
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			if depth <= 0 && len(stack) == 0 {
				return f, nil
			}
		}
	}
	return f, nil
}
