// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

// The xmppc command connects to an XMPP server, authenticates, and logs the
// stream errors it receives until interrupted; received stanzas are logged
// only with -v. Given -to and -message it instead sends one chat message and
// exits. It exists as
// a living integration smoke test for the session engine rather than a
// full client.
//
// For more information try running:
//
//	xmppc -help
package main

import (
	"bytes"
	"context"
	"encoding/xml"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/xmppcore/session/jid"
	"github.com/xmppcore/session/session"
)

// xmlAttrEscape escapes s for safe use inside a single-quoted XML attribute
// or as character data in the hand-written stanza templates below.
func xmlAttrEscape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

/* #nosec */
const (
	envAddr = "XMPP_ADDR"
	envPass = "XMPP_PASS"
)

func main() {
	logger := log.New(os.Stderr, "", log.LstdFlags)
	debug := log.New(ioutil.Discard, "DEBUG ", log.LstdFlags)

	var (
		addr       = os.Getenv(envAddr)
		domain     string
		legacy     bool
		noStarttls bool
		noCompress bool
		presence   bool
		message    string
		to         string
		timeout    time.Duration
		verbose    bool
	)
	flags := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flags.Usage = func() {
		fmt.Fprintf(flags.Output(), "Usage of %s:\n", flags.Name())
		fmt.Fprintf(flags.Output(), "\n  $%s: the JID to authenticate as\n  $%s: its password\n\n", envAddr, envPass)
		flags.PrintDefaults()
	}
	flags.StringVar(&domain, "domain", "", "override the domain dialed (defaults to the JID's domainpart)")
	flags.BoolVar(&legacy, "legacy", false, "authenticate with XEP-0078 legacy plaintext auth instead of SASL PLAIN")
	flags.BoolVar(&noStarttls, "no-starttls", false, "never negotiate STARTTLS even if the server offers it")
	flags.BoolVar(&noCompress, "no-compress", false, "never negotiate stream compression even if the server offers it")
	flags.BoolVar(&presence, "presence", true, "send initial available presence after logging in")
	flags.StringVar(&to, "to", "", "if set with -message, send a chat message to this JID and exit")
	flags.StringVar(&message, "message", "", "body of the message to send to -to")
	flags.DurationVar(&timeout, "timeout", 10*time.Second, "connect/login timeout")
	flags.BoolVar(&verbose, "v", false, "turn on verbose debug logging")

	switch err := flags.Parse(os.Args[1:]); err {
	case flag.ErrHelp:
		return
	case nil:
	default:
		logger.Fatal(err)
	}

	if addr == "" {
		logger.Fatalf("address not specified, set $%s", envAddr)
	}
	if verbose {
		debug.SetOutput(os.Stderr)
	}
	pass := os.Getenv(envPass)
	if pass == "" {
		debug.Printf("the environment variable $%s is empty", envPass)
	}

	j, err := jid.New(addr)
	if err != nil {
		logger.Fatalf("error parsing address %q: %v", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		select {
		case <-ctx.Done():
		case <-c:
			cancel()
		}
	}()

	opts := session.Options{
		Domain:         domain,
		ConnectTimeout: timeout,
	}
	if noStarttls {
		opts.StartTLS = session.Disabled
	}
	if noCompress {
		opts.Compression = session.Disabled
	}

	s := session.New(opts)
	defer s.Stop()

	s.SetControllingProcess(session.NotifierFunc(func(n session.Notification) {
		if n.StreamError {
			logger.Printf("stream error: %s", n.Condition)
			return
		}
		debug.Printf("%s id=%q from=%q type=%q", n.Kind, n.ID, n.From, n.Type)
	}))

	authMethod := session.Plain
	if legacy {
		authMethod = session.Password
	}
	if err := s.SetAuth(authMethod, j, pass); err != nil {
		logger.Fatalf("error configuring credentials: %v", err)
	}

	if _, err := s.ConnectTCP(ctx, "", 0); err != nil {
		logger.Fatalf("error connecting: %v", err)
	}

	boundJID, err := s.Login()
	if err != nil {
		logger.Fatalf("error logging in: %v", err)
	}
	logger.Printf("logged in as %s", boundJID)

	if presence {
		if _, err := s.SendPacket([]byte(`<presence/>`)); err != nil {
			logger.Printf("error sending initial presence: %v", err)
		}
	}

	if to != "" && message != "" {
		payload := fmt.Sprintf(`<message to='%s' type='chat'><body>%s</body></message>`, xmlAttrEscape(to), xmlAttrEscape(message))
		if _, err := s.SendPacket([]byte(payload)); err != nil {
			logger.Fatalf("error sending message: %v", err)
		}
		return
	}

	logger.Println("waiting for stanzas; press ctrl-c to exit")
	<-ctx.Done()
	logger.Println("shutting down")
}
