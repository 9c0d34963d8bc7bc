// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause license that can be
// found in the LICENSE file.

package sasl_test

import (
	"testing"

	"github.com/xmppcore/session/sasl"
)

func TestLookupKnownMechanisms(t *testing.T) {
	for _, name := range []string{"PLAIN", "ANONYMOUS", "DIGEST-MD5"} {
		d, err := sasl.Lookup(name)
		if err != nil {
			t.Errorf("%s: unexpected error: %v", name, err)
			continue
		}
		if got := d.Name(); got != name {
			t.Errorf("wrong name: want=%q got=%q", name, got)
		}
	}
}

func TestLookupUnknownMechanism(t *testing.T) {
	if _, err := sasl.Lookup("GSSAPI"); err != sasl.ErrMechanismNotFound {
		t.Errorf("expected ErrMechanismNotFound, got %v", err)
	}
}

func TestAnonymousCompletesImmediately(t *testing.T) {
	d, err := sasl.Lookup("ANONYMOUS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	state, err := d.Init("", "", "example.net", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp := d.InitialResponse(state); len(resp) != 0 {
		t.Errorf("expected empty initial response, got %q", resp)
	}
	result := d.Step(state, nil)
	if result.Step != sasl.StepDone {
		t.Errorf("expected StepDone, got %v", result.Step)
	}
}
