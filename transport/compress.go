// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package transport

import (
	"compress/zlib"
	"crypto/tls"
	"errors"
	"io"
	"sync"
)

// ErrAlreadyCompressed is returned by Compress when stream compression has
// already been engaged on this transport.
var ErrAlreadyCompressed = errors.New("transport: stream compression already engaged")

// zlibWrap wraps rw in a zlib reader/writer pair implementing XEP-0138.
// Reader construction is deferred until the first Read: zlib readers try to
// consume header bytes immediately, but a client must send its own
// <stream:stream> before the peer's compressed header arrives.
func zlibWrap(rw io.ReadWriter) (io.ReadWriteCloser, error) {
	return &zlibConn{raw: rw, w: zlib.NewWriter(rw)}, nil
}

type zlibConn struct {
	rm, wm sync.Mutex

	raw io.ReadWriter
	w   *zlib.Writer
	r   io.ReadCloser
}

func (z *zlibConn) Write(p []byte) (int, error) {
	z.wm.Lock()
	defer z.wm.Unlock()
	n, err := z.w.Write(p)
	if err != nil {
		return n, err
	}
	return n, z.w.Flush()
}

func (z *zlibConn) Read(p []byte) (int, error) {
	z.rm.Lock()
	defer z.rm.Unlock()
	if z.r == nil {
		r, err := zlib.NewReader(z.raw)
		if err != nil {
			return 0, err
		}
		z.r = r
	}
	return z.r.Read(p)
}

func (z *zlibConn) Close() error {
	z.wm.Lock()
	werr := z.w.Close()
	z.wm.Unlock()

	z.rm.Lock()
	var rerr error
	if z.r != nil {
		rerr = z.r.Close()
	}
	z.rm.Unlock()

	if werr != nil {
		return werr
	}
	return rerr
}

// rwTransport adapts an already-compressed io.ReadWriteCloser to the
// Transport interface. closeUnderlying, if non-nil, is closed alongside the
// zlib streams so the TCP connection itself still shuts down.
type rwTransport struct {
	io.ReadWriteCloser
	closeUnderlying io.Closer
}

func (t *rwTransport) Close() error {
	err := t.ReadWriteCloser.Close()
	if t.closeUnderlying != nil {
		if uerr := t.closeUnderlying.Close(); err == nil {
			err = uerr
		}
	}
	return err
}

func (t *rwTransport) StartTLS(cfg *tls.Config) (Transport, error) {
	return nil, ErrUpgradeFailed
}

func (t *rwTransport) Compress() (Transport, error) {
	return nil, ErrAlreadyCompressed
}

func (t *rwTransport) WPing() error {
	_, err := t.Write([]byte{' '})
	return err
}

func (t *rwTransport) GetProperty(name string) (interface{}, error) {
	if getter, ok := t.closeUnderlying.(interface {
		GetProperty(string) (interface{}, error)
	}); ok {
		return getter.GetProperty(name)
	}
	return nil, ErrNotSupported
}
