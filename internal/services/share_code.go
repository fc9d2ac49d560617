package services

import (
	"crypto/rand"
	"errors"
	"io"
)

const shareCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// Bytes at or above this bound are rejected so every alphabet symbol is equally likely.
const shareCodeRejectBound = 256 - 256%len(shareCodeAlphabet)

// NewShareCodeGenerator returns a generator of length-character codes over [a-z0-9] drawn
// from r, or from crypto/rand when r is nil.
func NewShareCodeGenerator(r io.Reader, length int) func() (string, error) {
	if r == nil {
		r = rand.Reader
	}
	return func() (string, error) {
		if length <= 0 {
			return "", errors.New("share code: length must be positive")
		}
		out := make([]byte, 0, length)
		buf := make([]byte, length)
		for len(out) < length {
			if _, err := io.ReadFull(r, buf); err != nil {
				return "", err
			}
			for _, b := range buf {
				if int(b) >= shareCodeRejectBound {
					continue
				}
				out = append(out, shareCodeAlphabet[int(b)%len(shareCodeAlphabet)])
				if len(out) == length {
					break
				}
			}
		}
		return string(out), nil
	}
}
