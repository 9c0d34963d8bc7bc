// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package streamxml_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/xmppcore/session/streamxml"
)

func TestStreamStart(t *testing.T) {
	p := streamxml.New(strings.NewReader(
		`<stream:stream xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams' to='example.net' id='abc' version='1.0'>`,
	))
	ev := p.Next()
	if ev.Kind != streamxml.StreamStart {
		t.Fatalf("expected StreamStart, got %v (err=%v)", ev.Kind, ev.Err)
	}
	if got, want := ev.Attrs["id"], "abc"; got != want {
		t.Errorf("wrong id: want=%q, got=%q", want, got)
	}
	if got, want := ev.Attrs["version"], "1.0"; got != want {
		t.Errorf("wrong version: want=%q, got=%q", want, got)
	}
}

func TestStreamElementAndEnd(t *testing.T) {
	p := streamxml.New(strings.NewReader(
		`<stream:stream xmlns='jabber:client' xmlns:stream='http://etherx.jabber.org/streams'>` +
			`<message from='a@b' id='1'><body>hi</body></message>` +
			`</stream:stream>`,
	))
	if ev := p.Next(); ev.Kind != streamxml.StreamStart {
		t.Fatalf("expected StreamStart, got %v", ev.Kind)
	}

	ev := p.Next()
	if ev.Kind != streamxml.StreamElement {
		t.Fatalf("expected StreamElement, got %v (err=%v)", ev.Kind, ev.Err)
	}
	if ev.Name.Local != "message" {
		t.Errorf("wrong element name: got=%q", ev.Name.Local)
	}
	if !strings.Contains(string(ev.Raw), "hi") {
		t.Errorf("expected Raw to contain element body, got %q", ev.Raw)
	}

	ev = p.Next()
	if ev.Kind != streamxml.StreamEnd {
		t.Fatalf("expected StreamEnd, got %v (err=%v)", ev.Kind, ev.Err)
	}
}

func TestMalformedXML(t *testing.T) {
	p := streamxml.New(strings.NewReader(`<stream:stream><unterminated`))
	// Drain the StreamStart event first.
	_ = p.Next()
	ev := p.Next()
	if ev.Kind != streamxml.StreamError {
		t.Fatalf("expected StreamError, got %v", ev.Kind)
	}
	var malformed *streamxml.MalformedXml
	if !errors.As(ev.Err, &malformed) {
		t.Errorf("expected *MalformedXml error, got %T", ev.Err)
	}
}

func TestReset(t *testing.T) {
	p := streamxml.New(strings.NewReader(`<stream:stream>`))
	_ = p.Next()
	p.Reset(strings.NewReader(`<stream:stream xmlns:stream='http://etherx.jabber.org/streams' id='new'>`))
	ev := p.Next()
	if ev.Kind != streamxml.StreamStart {
		t.Fatalf("expected StreamStart after reset, got %v", ev.Kind)
	}
	if got, want := ev.Attrs["id"], "new"; got != want {
		t.Errorf("wrong id after reset: want=%q, got=%q", want, got)
	}
}
