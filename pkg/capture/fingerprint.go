// Package capture implements the client-facing capture path: turning a live
// failure or a user-supplied event into a canonical envelope.Envelope and
// handing it to a transport.Dispatcher.
package capture

import (
	"crypto/md5" //nolint:gosec // fingerprint, not a security boundary
	"encoding/hex"
	"strconv"
	"strings"
)

// Fingerprint computes the grouping hash over (level, class name,
// traceback-minus-last-two-lines, or message when traceback is empty).
// Dropping the last two traceback lines strips the per-incident exception
// text so textually identical call stacks fold into one group regardless of
// message wording.
func Fingerprint(level int, className, traceback, message string) string {
	h := md5.New() //nolint:gosec

	h.Write([]byte(strconv.Itoa(level)))
	h.Write([]byte(className))

	if traceback != "" {
		lines := strings.Split(traceback, "\n")
		if len(lines) > 2 {
			lines = lines[:len(lines)-2]
		} else {
			lines = nil
		}
		h.Write([]byte(strings.Join(lines, "\n")))
	} else {
		h.Write([]byte(message))
	}

	return hex.EncodeToString(h.Sum(nil))
}
