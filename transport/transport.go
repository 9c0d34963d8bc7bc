// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

// Package transport implements the byte-level carriers the session FSM can
// drive: plain TCP, STARTTLS upgrade in place, XEP-0138 stream compression,
// and BOSH. Every transport satisfies Transport so the FSM can treat them
// uniformly. WPing is a no-op on BOSH; an upgrade a transport cannot perform
// (StartTLS or Compress on BOSH, or on a stream that is already compressed)
// returns an error.
package transport // import "github.com/xmppcore/session/transport"

import (
	"crypto/tls"
	"errors"
	"io"
)

// ErrNotSupported is returned by GetProperty for property names a transport
// does not expose.
var ErrNotSupported = errors.New("transport: property not supported")

// ErrUpgradeFailed is returned by StartTLS when the underlying connection
// cannot be upgraded (eg. it is not a *tls.Conn-capable net.Conn).
var ErrUpgradeFailed = errors.New("transport: connection cannot be upgraded to TLS")

// Transport is the capability set the session FSM requires from any concrete
// byte carrier (C1). Implementations are not safe for concurrent use; the
// FSM goroutine is the sole owner of a Transport once Connect returns.
type Transport interface {
	io.ReadWriteCloser

	// StartTLS performs a TLS handshake in place over the current connection
	// and returns the upgraded Transport. cfg may be nil, in which case a
	// default client configuration is used.
	StartTLS(cfg *tls.Config) (Transport, error)

	// Compress engages zlib stream compression in place and returns the
	// upgraded Transport.
	Compress() (Transport, error)

	// WPing emits a single whitespace byte as an application-layer keepalive.
	// Transports for which this is meaningless (BOSH) treat it as a no-op.
	WPing() error

	// GetProperty returns a transport-specific property value, or
	// ErrNotSupported if name is not recognized by this transport.
	GetProperty(name string) (interface{}, error)
}

// Property names recognized by GetProperty across transports.
const (
	PropPeerCertificates = "peer-certificates"
	PropLocalAddr        = "local-addr"
	PropRemoteAddr       = "remote-addr"
)
