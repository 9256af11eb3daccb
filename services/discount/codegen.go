package discount

import (
	"context"
	"crypto/rand"
	"math/big"

	"adserve-engine/pkg/errutil"
)

const codeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

const (
	defaultCodeLength   = 8
	maxGenerateAttempts = 5
)

// GenerateCode returns a random unused code of the given length, re-rolling
// on collision a bounded number of times. A non-positive length falls back
// to the configured default.
func (s *Service) GenerateCode(ctx context.Context, length int) (string, error) {
	if length <= 0 {
		length = s.codeLen
	}

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		code, err := randomCode(length)
		if err != nil {
			return "", err
		}
		n, err := s.codes.Count(ctx, &DiscountCode{Code: code})
		if err != nil {
			return "", err
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", errutil.Internal("could not generate an unused discount code", nil)
}

func randomCode(length int) (string, error) {
	alphabetLen := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, length)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
