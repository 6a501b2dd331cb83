package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"math/big"
	"time"
)

// TokenID is 128 bits of crypto/rand output.
type TokenID [16]byte

func NewTokenID() (TokenID, error) {
	var id TokenID
	_, err := rand.Read(id[:])
	return id, err
}

func (t TokenID) Bytes() []byte {
	return t[:]
}

func (t TokenID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(t[:])
}

func ParseTokenID(tokenID string) (TokenID, error) {
	var id TokenID

	raw, err := base64.RawURLEncoding.DecodeString(tokenID)
	if err != nil {
		return id, err
	}
	if len(raw) != len(id) {
		return id, errors.New("invalid token id size")
	}

	copy(id[:], raw)
	return id, nil
}

// RandomIndex returns a uniform value in [0, n).
func RandomIndex(n int) (int, error) {
	if n <= 0 {
		return 0, errors.New("invalid index range")
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// Jitter returns a random duration in [min, max].
func Jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	span := int(max - min)
	n, err := RandomIndex(span + 1)
	if err != nil {
		return min
	}
	return min + time.Duration(n)
}
