// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package session

import "time"

// armPing (re)starts the whitespace-ping idle timer. It must run on the
// actor goroutine. Any input processed while LoggedIn re-arms the timer,
// per the idle-timer semantics in the concurrency model.
func (s *Session) armPing() {
	if s.opts.WhitespacePing <= 0 || s.state != LoggedIn {
		return
	}
	if s.pingTimer != nil {
		s.pingTimer.Stop()
	}
	s.pingTimer = time.AfterFunc(s.opts.WhitespacePing, func() {
		select {
		case s.actorCh <- func() {
			if s.state != LoggedIn {
				return
			}
			_ = s.transport.WPing()
			s.armPing()
		}:
		case <-s.stopCh:
		}
	})
}
