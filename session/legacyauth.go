// Copyright 2016 Sam Whited.
// Use of this source code is governed by the BSD 2-clause
// license that can be found in the LICENSE file.

package session

import (
	"crypto/sha1"
	"encoding/hex"
)

// legacyDigest computes the XEP-0078 digest-SHA1 authentication value:
// the hex-encoded SHA-1 hash of the stream id concatenated with the
// password, per XEP-0078 §4.2.
func legacyDigest(streamID, password string) string {
	h := sha1.New()
	h.Write([]byte(streamID))
	h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}
