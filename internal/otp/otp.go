// Package otp generates and compares the 6-digit one-time codes used by the
// password-reset and account-verification flows. Both flows share this single
// routine.
package otp

import (
	"crypto/rand"
	"crypto/subtle"
)

// CodeLength is the fixed length of a generated code.
const CodeLength = 6

// GenerateCode returns a 6-digit numeric code (e.g. "042931"). Digits are
// independent and uniform; leading zeros are allowed. Uses crypto/rand.
func GenerateCode() (string, error) {
	s := make([]byte, CodeLength)
	buf := make([]byte, 1)
	for i := 0; i < CodeLength; {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		// Reject bytes >= 250 so the mod-10 mapping stays uniform.
		if buf[0] >= 250 {
			continue
		}
		s[i] = '0' + buf[0]%10
		i++
	}
	return string(s), nil
}

// Equal compares a submitted code with the stored one in constant time.
func Equal(submitted, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) == 1
}
