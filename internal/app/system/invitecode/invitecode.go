// Package invitecode generates workspace invite codes: random bytes rendered
// as lowercase hex, so a code is always 2*n characters of [0-9a-f].
package invitecode

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"

	"github.com/gorilla/securecookie"
)

// DefaultBytes is the random byte length of a code.
const DefaultBytes = 8

var errRandom = errors.New("invitecode: random source failed")

// Generator returns a fresh code on each call.
type Generator func() (string, error)

// New returns a Generator producing codes of n random bytes.
func New(n int) Generator {
	if n <= 0 {
		n = DefaultBytes
	}
	return func() (string, error) {
		b := securecookie.GenerateRandomKey(n)
		if b == nil {
			return "", errRandom
		}
		return hex.EncodeToString(b), nil
	}
}

// Pattern returns the regexp every code of n bytes matches.
func Pattern(n int) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf("^[0-9a-f]{%d}$", 2*n))
}
