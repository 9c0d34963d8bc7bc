// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package transport

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"
)

// serviceName is the SRV service label used for client-to-server discovery
// per RFC 6120 §3.2: "_xmpp-client._tcp.<domain>".
const serviceName = "xmpp-client"

// Dialer discovers and connects to an XMPP server on behalf of the session
// FSM's connect_tcp and connect_tls owner commands.
type Dialer struct {
	net.Dialer

	// Resolver performs the SRV lookup. If nil, net.DefaultResolver is used.
	Resolver *net.Resolver

	// NoLookup skips SRV discovery entirely and dials domain directly on the
	// default client port.
	NoLookup bool
}

// DialTCP discovers (via DNS SRV, falling back to domain/default port) and
// connects a plain TCP Transport to the XMPP server responsible for domain.
func (d *Dialer) DialTCP(ctx context.Context, domain string) (Transport, error) {
	conn, err := d.dial(ctx, domain)
	if err != nil {
		return nil, err
	}
	return &tcpTransport{Conn: conn}, nil
}

// DialTLS is like DialTCP but performs an implicit ("old-style") TLS
// handshake immediately after connecting, before any XMPP bytes are
// exchanged. cfg may be nil for a default client configuration.
func (d *Dialer) DialTLS(ctx context.Context, domain string, cfg *tls.Config) (Transport, error) {
	conn, err := d.dial(ctx, domain)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = &tls.Config{ServerName: domain}
	}
	tlsConn := tls.Client(conn, cfg)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return &tcpTransport{Conn: tlsConn}, nil
}

func (d *Dialer) dial(ctx context.Context, domain string) (net.Conn, error) {
	if d.NoLookup {
		port, err := lookupPort("tcp", serviceName)
		if err != nil {
			return nil, err
		}
		return d.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(domain, strconv.FormatUint(uint64(port), 10)))
	}

	resolver := d.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}

	addrs, err := lookupService(ctx, resolver, domain)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, addr := range addrs {
		conn, e := d.Dialer.DialContext(ctx, "tcp", net.JoinHostPort(addr.Target, strconv.FormatUint(uint64(addr.Port), 10)))
		if e != nil {
			lastErr = e
			continue
		}
		return conn, nil
	}
	return nil, lastErr
}

// lookupService looks up SRV records for the XMPP client service at domain.
// If the lookup fails or finds no records, it returns a single synthetic
// record pointing at domain and the default client port instead.
func lookupService(ctx context.Context, resolver *net.Resolver, domain string) ([]*net.SRV, error) {
	_, addrs, err := resolver.LookupSRV(ctx, serviceName, "tcp", domain)
	if err != nil || len(addrs) == 0 {
		port, perr := lookupPort("tcp", serviceName)
		if perr != nil {
			return nil, perr
		}
		return []*net.SRV{{Target: domain, Port: port}}, nil
	}

	// RFC 6120 §3.2.1 / RFC 2782: a single record with Target "." means the
	// service is decidedly not available at this domain.
	if len(addrs) == 1 && addrs[0].Target == "." {
		port, perr := lookupPort("tcp", serviceName)
		if perr != nil {
			return nil, perr
		}
		return []*net.SRV{{Target: domain, Port: port}}, nil
	}

	return addrs, nil
}

// lookupPort returns the default port for the given network/service using
// net.LookupPort, falling back to the well-known XMPP ports when the host's
// service database does not list them.
func lookupPort(network, service string) (uint16, error) {
	p, err := net.LookupPort(network, service)
	if err == nil {
		return uint16(p), nil
	}
	switch service {
	case "xmpp-client":
		return 5222, nil
	case "xmpp-server":
		return 5269, nil
	case "xmpp-bosh":
		return 5280, nil
	}
	return 0, err
}

// connectTimeout is a 30-second dial timeout. Nothing references it;
// session.Options.ConnectTimeout falls back to the session package's own
// 5-second default.
const connectTimeout = 30 * time.Second
