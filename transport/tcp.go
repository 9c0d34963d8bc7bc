// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package transport

import (
	"crypto/tls"
	"net"
)

// tcpTransport wraps a net.Conn (plain or already TLS-wrapped) and is the
// Transport implementation used for the connect_tcp and connect_tls owner
// commands.
type tcpTransport struct {
	net.Conn
}

// NewTCP wraps an already-established net.Conn (plain or TLS) as a
// Transport. It's used when a caller dials an explicit host:port itself
// instead of going through Dialer's SRV discovery.
func NewTCP(conn net.Conn) Transport {
	return &tcpTransport{Conn: conn}
}

func (t *tcpTransport) StartTLS(cfg *tls.Config) (Transport, error) {
	if cfg == nil {
		cfg = &tls.Config{}
	}
	tlsConn := tls.Client(t.Conn, cfg)
	if err := tlsConn.Handshake(); err != nil {
		return nil, err
	}
	return &tcpTransport{Conn: tlsConn}, nil
}

func (t *tcpTransport) Compress() (Transport, error) {
	wrapped, err := zlibWrap(t.Conn)
	if err != nil {
		return nil, err
	}
	return &rwTransport{ReadWriteCloser: wrapped, closeUnderlying: t}, nil
}

func (t *tcpTransport) WPing() error {
	_, err := t.Conn.Write([]byte{' '})
	return err
}

func (t *tcpTransport) GetProperty(name string) (interface{}, error) {
	switch name {
	case PropLocalAddr:
		return t.Conn.LocalAddr(), nil
	case PropRemoteAddr:
		return t.Conn.RemoteAddr(), nil
	case PropPeerCertificates:
		if tlsConn, ok := t.Conn.(*tls.Conn); ok {
			return tlsConn.ConnectionState().PeerCertificates, nil
		}
		return nil, ErrNotSupported
	}
	return nil, ErrNotSupported
}
