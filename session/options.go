// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package session

import "time"

// Toggle is a tri-state enabled/disabled configuration switch; the zero
// value means "use the documented default" rather than "disabled".
type Toggle int

const (
	// Default defers to the documented default for the option in question.
	Default Toggle = iota
	// Enabled turns the feature on.
	Enabled
	// Disabled turns the feature off.
	Disabled
)

func (t Toggle) enabled(def bool) bool {
	switch t {
	case Enabled:
		return true
	case Disabled:
		return false
	default:
		return def
	}
}

// SocketType selects whether connect_tcp dials plain TCP or performs an
// implicit TLS handshake immediately after connecting.
type SocketType int

const (
	// PlainSocket dials a plaintext TCP socket; STARTTLS may upgrade it later.
	PlainSocket SocketType = iota
	// TLS performs an implicit ("old-style") TLS handshake on connect.
	TLS
)

// Options holds the recognized per-session configuration (C4), mirroring
// the keys enumerated in the external interfaces section: local_ip,
// local_port, domain, starttls, compression, whitespace_ping, timeout and
// socket_type.
type Options struct {
	// LocalIP and LocalPort bind the source endpoint used to dial out.
	LocalIP   string
	LocalPort int

	// Domain overrides the XMPP domain used in the stream `to=` attribute
	// independent of the TCP host dialed.
	Domain string

	// StartTLS toggles whether the FSM negotiates STARTTLS when offered.
	// Default: Enabled.
	StartTLS Toggle

	// Compression toggles whether the FSM negotiates XEP-0138 stream
	// compression when offered. Default: Enabled.
	Compression Toggle

	// WhitespacePing is the idle interval after which the FSM emits a
	// single whitespace byte while LoggedIn. Zero means never.
	WhitespacePing time.Duration

	// ConnectTimeout bounds connect_tcp/connect_tls/connect_bosh and the
	// login/register round trip. Default: 5s.
	ConnectTimeout time.Duration

	// SocketType selects plain vs. implicit-TLS dialing for connect_tcp.
	SocketType SocketType

	// StreamVersion is the version attribute the opening <stream:stream>
	// advertises: "1.0" (modern; required for SASL/TLS/compression) or
	// "0.0" (legacy). Empty defaults to "1.0", matching start()'s default.
	StreamVersion string
}

// defaultConnectTimeout is used whenever Options.ConnectTimeout is zero.
const defaultConnectTimeout = 5 * time.Second

func (o Options) connectTimeout() time.Duration {
	if o.ConnectTimeout <= 0 {
		return defaultConnectTimeout
	}
	return o.ConnectTimeout
}

func (o Options) starttlsEnabled() bool    { return o.StartTLS.enabled(true) }
func (o Options) compressionEnabled() bool { return o.Compression.enabled(true) }
