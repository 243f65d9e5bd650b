package booking

import (
	"crypto/rand"
)

const (
	pnrLength   = 6
	pnrAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// largest multiple of len(pnrAlphabet) below 256, keeps the draw unbiased
	pnrCutoff = 252
)

// GeneratePNR returns a 6-character locator of uppercase letters and digits.
func GeneratePNR() (string, error) {
	out := make([]byte, 0, pnrLength)
	buf := make([]byte, pnrLength*2)
	for len(out) < pnrLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= pnrCutoff {
				continue
			}
			out = append(out, pnrAlphabet[int(b)%len(pnrAlphabet)])
			if len(out) == pnrLength {
				break
			}
		}
	}
	return string(out), nil
}
