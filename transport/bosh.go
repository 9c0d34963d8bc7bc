// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
)

const boshNS = "http://jabber.org/protocol/httpbind"

// BOSHOptions configures a BOSH transport per XEP-0124/0206.
type BOSHOptions struct {
	// URL is the BOSH connection manager endpoint, eg.
	// "https://im.example.com/http-bind".
	URL string

	// Client performs the HTTP requests. If nil, http.DefaultClient is used.
	Client *http.Client

	// Wait is the longest the connection manager should wait before
	// responding to a request with no payload, in seconds.
	Wait int
}

// boshTransport implements Transport over XEP-0124 HTTP binding. Every Write
// is wrapped in a <body/> envelope and POSTed; every Read blocks for the next
// payload delivered by a (possibly long-polled) response. WPing is a no-op:
// BOSH has no notion of an idle TCP connection to keep alive.
type boshTransport struct {
	opts   BOSHOptions
	client *http.Client

	mu   sync.Mutex
	sid  string
	rid  uint64
	read *io.PipeReader
	pw   *io.PipeWriter

	closed int32
}

// DialBOSH establishes a new BOSH session against opts.URL, per XEP-0124 §7.
func DialBOSH(ctx context.Context, domain string, opts BOSHOptions) (Transport, error) {
	if _, err := url.Parse(opts.URL); err != nil {
		return nil, fmt.Errorf("transport: invalid BOSH url: %w", err)
	}
	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}

	t := &boshTransport{opts: opts, client: client, rid: initialRid()}
	pr, pw := io.Pipe()
	t.read, t.pw = pr, pw

	body := fmt.Sprintf(
		`<body rid='%d' xmlns='%s' to='%s' xml:lang='en' wait='%d' hold='1' ver='1.6' xmpp:version='1.0' xmlns:xmpp='urn:xmpp:xbosh'/>`,
		atomic.AddUint64(&t.rid, 1), boshNS, domain, opts.Wait,
	)
	resp, err := t.post(ctx, body)
	if err != nil {
		return nil, err
	}
	sid, err := boshSid(resp)
	if err != nil {
		return nil, err
	}
	t.sid = sid
	return t, nil
}

func initialRid() uint64 {
	// The starting rid is a fixed value, not a random one, so every BOSH
	// session begins at the same rid.
	return 1<<32 - 1
}

func (t *boshTransport) post(ctx context.Context, body string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.opts.URL, bytes.NewReader([]byte(body)))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// Write wraps p (a single stanza's wire bytes) in a BOSH <body/> and POSTs
// it to the connection manager, delivering the response payload's children
// to the next Read.
func (t *boshTransport) Write(p []byte) (int, error) {
	t.mu.Lock()
	rid := atomic.AddUint64(&t.rid, 1)
	sid := t.sid
	t.mu.Unlock()

	envelope := fmt.Sprintf(`<body rid='%d' sid='%s' xmlns='%s'>%s</body>`, rid, sid, boshNS, p)
	resp, err := t.post(context.Background(), envelope)
	if err != nil {
		return 0, err
	}
	payload, err := boshPayload(resp)
	if err != nil {
		return 0, err
	}
	if len(payload) > 0 {
		go func() { _, _ = t.pw.Write(payload) }()
	}
	return len(p), nil
}

func (t *boshTransport) Read(p []byte) (int, error) {
	return t.read.Read(p)
}

func (t *boshTransport) Close() error {
	if !atomic.CompareAndSwapInt32(&t.closed, 0, 1) {
		return nil
	}
	t.mu.Lock()
	rid := atomic.AddUint64(&t.rid, 1)
	sid := t.sid
	t.mu.Unlock()
	_, _ = t.post(context.Background(), fmt.Sprintf(`<body rid='%d' sid='%s' type='terminate' xmlns='%s'/>`, rid, sid, boshNS))
	return t.pw.Close()
}

func (t *boshTransport) StartTLS(cfg *tls.Config) (Transport, error) {
	return nil, ErrUpgradeFailed
}

func (t *boshTransport) Compress() (Transport, error) {
	return nil, ErrNotSupported
}

// WPing is a no-op on BOSH per the transport contract.
func (t *boshTransport) WPing() error { return nil }

func (t *boshTransport) GetProperty(name string) (interface{}, error) {
	if name == "bosh-sid" {
		return t.sid, nil
	}
	return nil, ErrNotSupported
}

func boshSid(raw []byte) (string, error) {
	var body struct {
		XMLName xml.Name `xml:"body"`
		Sid     string   `xml:"sid,attr"`
	}
	if err := xml.Unmarshal(raw, &body); err != nil {
		return "", err
	}
	if body.Sid == "" {
		return "", fmt.Errorf("transport: BOSH response missing sid")
	}
	return body.Sid, nil
}

// boshPayload extracts the raw inner XML of a BOSH <body/> response so it
// can be fed to the stream parser as if it had arrived over a raw socket.
func boshPayload(raw []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	for {
		if err != nil {
			if err == io.EOF {
				return nil, nil
			}
			return nil, err
		}
		if _, ok := tok.(xml.StartElement); ok {
			break
		}
		tok, err = dec.Token()
	}

	start := tok.(xml.StartElement)
	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	depth := 0
	for {
		tok, err = dec.Token()
		if err != nil {
			return nil, err
		}
		if end, ok := tok.(xml.EndElement); ok && end.Name == start.Name && depth == 0 {
			break
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
		if err := enc.EncodeToken(xml.CopyToken(tok)); err != nil {
			return nil, err
		}
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
