// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package sasl

// AnonymousDriver implements the ANONYMOUS mechanism (RFC 4505): the initial
// response is empty and negotiation always completes in a single round.
type AnonymousDriver struct{}

func (d *AnonymousDriver) Name() string { return "ANONYMOUS" }

func (d *AnonymousDriver) Init(username, host, domain, password string) (State, error) {
	return nil, nil
}

func (d *AnonymousDriver) InitialResponse(state State) []byte {
	return nil
}

func (d *AnonymousDriver) Step(state State, challenge []byte) Result {
	return Result{Step: StepDone}
}
