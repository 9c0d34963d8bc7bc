// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package sasl

import (
	"mellium.im/sasl"
)

// PlainDriver implements the PLAIN mechanism (RFC 4616) over
// mellium.im/sasl's client negotiator: initial response is
// "\0 authcid \0 password", and the server's <success/> (or <failure/>)
// concludes negotiation in a single round.
type PlainDriver struct {
	client *sasl.Client
}

func (d *PlainDriver) Name() string { return "PLAIN" }

type plainState struct{}

func (d *PlainDriver) Init(username, host, domain, password string) (State, error) {
	d.client = sasl.NewClient(sasl.Plain, sasl.Credentials(username, password))
	return plainState{}, nil
}

func (d *PlainDriver) InitialResponse(state State) []byte {
	_, resp, err := d.client.Step(nil)
	if err != nil {
		return nil
	}
	return resp
}

// Step satisfies Driver. PLAIN completes after the initial response; any
// challenge reaching Step is the server's final <success/> or <failure/>,
// which the FSM has already classified by element name before calling in, so
// Step here only needs to report completion.
func (d *PlainDriver) Step(state State, challenge []byte) Result {
	return Result{Step: StepDone, State: state}
}
