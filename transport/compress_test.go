// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package transport

import (
	"bytes"
	"io"
	"testing"
)

// loopback lets a single buffer be read back by the peer that wrote it,
// standing in for the two sides of a real TCP connection in-process.
type loopback struct {
	toPeer   *bytes.Buffer
	fromPeer *bytes.Buffer
}

func (l *loopback) Write(p []byte) (int, error) { return l.toPeer.Write(p) }
func (l *loopback) Read(p []byte) (int, error)  { return l.fromPeer.Read(p) }

func newLoopbackPair() (a, b *loopback) {
	buf1, buf2 := &bytes.Buffer{}, &bytes.Buffer{}
	a = &loopback{toPeer: buf1, fromPeer: buf2}
	b = &loopback{toPeer: buf2, fromPeer: buf1}
	return a, b
}

func TestZlibRoundTrip(t *testing.T) {
	client, server := newLoopbackPair()

	cz, err := zlibWrap(client)
	if err != nil {
		t.Fatalf("unexpected error wrapping client: %v", err)
	}
	sz, err := zlibWrap(server)
	if err != nil {
		t.Fatalf("unexpected error wrapping server: %v", err)
	}

	msg := []byte("<message>hello</message>")
	if _, err := cz.Write(msg); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	got := make([]byte, len(msg))
	if _, err := io.ReadFull(sz, got); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, msg) {
		t.Errorf("wrong payload: want=%q got=%q", msg, got)
	}
}

func TestZlibCloseBeforeFirstRead(t *testing.T) {
	client, _ := newLoopbackPair()
	cz, err := zlibWrap(client)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := cz.Close(); err != nil {
		t.Errorf("unexpected error closing: %v", err)
	}
}
