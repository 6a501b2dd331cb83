package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/goReset/internal"
)

const (
	tokenRecordVersionV1 = 1

	flagConsumed byte = 1 << 0
)

var (
	ErrTokenNotFound     = errors.New("reset token not found")
	ErrTokenExpired      = errors.New("reset token expired")
	ErrTokenAlreadyUsed  = errors.New("reset token already used")
	ErrWrongAnswer       = errors.New("reset captcha answer mismatch")
	ErrTooManyAttempts   = errors.New("reset attempts exceeded")
	ErrTokenConflict     = errors.New("reset token id conflict")
	ErrStoreUnavailable  = errors.New("reset store unavailable")
	ErrChallengeMismatch = errors.New("reset challenge unresolvable")
)

// TokenRecord is one outstanding reset token.
type TokenRecord struct {
	TokenID           string
	TenantID          string
	AccountRef        string
	ChallengeID       int
	IssuedAt          time.Time
	ExpiresAt         time.Time
	Consumed          bool
	AttemptsRemaining uint16
}

// AnswerMatcher resolves a challenge id and compares a supplied answer
// against its expected answer.
type AnswerMatcher interface {
	Match(challengeID int, supplied string) (bool, error)
}

// TokenStore is implemented by every reset token backend. ConsumeIfValid
// must be atomic per token id.
type TokenStore interface {
	Create(ctx context.Context, tenantID, accountRef string, challengeID int, ttl time.Duration, maxAttempts int) (TokenRecord, error)
	ConsumeIfValid(ctx context.Context, tenantID, tokenID, answer string) (TokenRecord, error)
	Get(ctx context.Context, tenantID, tokenID string) (TokenRecord, error)
	SweepExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

func newTokenRecord(tenantID, accountRef string, challengeID int, now time.Time, ttl time.Duration, maxAttempts int) (TokenRecord, error) {
	id, err := internal.NewTokenID()
	if err != nil {
		return TokenRecord{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if maxAttempts < 0 {
		maxAttempts = 0
	}
	if maxAttempts > 65535 {
		maxAttempts = 65535
	}

	issued := now.UTC().Truncate(time.Millisecond)
	return TokenRecord{
		TokenID:           id.String(),
		TenantID:          normalizeTenantID(tenantID),
		AccountRef:        accountRef,
		ChallengeID:       challengeID,
		IssuedAt:          issued,
		ExpiresAt:         issued.Add(ttl),
		AttemptsRemaining: uint16(maxAttempts),
	}, nil
}

// applyAttempt evaluates one verification attempt against rec and mutates it
// in place. changed reports whether rec must be written back.
func applyAttempt(rec *TokenRecord, now time.Time, answer string, answers AnswerMatcher) (changed bool, err error) {
	if now.After(rec.ExpiresAt) {
		return false, ErrTokenExpired
	}
	if rec.Consumed {
		return false, ErrTokenAlreadyUsed
	}

	ok, err := answers.Match(rec.ChallengeID, answer)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeMismatch, err)
	}
	if !ok {
		if rec.AttemptsRemaining == 0 {
			return false, ErrWrongAnswer
		}
		rec.AttemptsRemaining--
		if rec.AttemptsRemaining == 0 {
			rec.Consumed = true
			return true, ErrTooManyAttempts
		}
		return true, ErrWrongAnswer
	}

	rec.Consumed = true
	return true, nil
}

// isVerdict reports whether err is a verification outcome rather than a
// backend failure.
func isVerdict(err error) bool {
	return errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenAlreadyUsed) ||
		errors.Is(err, ErrWrongAnswer) ||
		errors.Is(err, ErrTooManyAttempts) ||
		errors.Is(err, ErrChallengeMismatch)
}

func normalizeTenantID(tenantID string) string {
	if tenantID == "" {
		return "0"
	}
	return tenantID
}

func encodeTokenRecord(rec *TokenRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(tokenRecordVersionV1)

	var flags byte
	if rec.Consumed {
		flags |= flagConsumed
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, rec.AttemptsRemaining); err != nil {
		return nil, err
	}
	if rec.ChallengeID < 0 || rec.ChallengeID > 1<<31-1 {
		return nil, errors.New("token record challenge id out of range")
	}
	if err := binary.Write(&buf, binary.BigEndian, int32(rec.ChallengeID)); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.IssuedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}

	if len(rec.AccountRef) > 65535 {
		return nil, errors.New("token record account ref too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(rec.AccountRef))); err != nil {
		return nil, err
	}
	buf.WriteString(rec.AccountRef)

	return buf.Bytes(), nil
}

func decodeTokenRecord(data []byte) (*TokenRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != tokenRecordVersionV1 {
		return nil, errors.New("invalid token record version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	rec := &TokenRecord{
		Consumed: flags&flagConsumed != 0,
	}

	if err := binary.Read(reader, binary.BigEndian, &rec.AttemptsRemaining); err != nil {
		return nil, err
	}

	var challengeID int32
	if err := binary.Read(reader, binary.BigEndian, &challengeID); err != nil {
		return nil, err
	}
	rec.ChallengeID = int(challengeID)

	var issued, expires int64
	if err := binary.Read(reader, binary.BigEndian, &issued); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expires); err != nil {
		return nil, err
	}
	rec.IssuedAt = time.UnixMilli(issued).UTC()
	rec.ExpiresAt = time.UnixMilli(expires).UTC()

	var refLen uint16
	if err := binary.Read(reader, binary.BigEndian, &refLen); err != nil {
		return nil, err
	}
	ref := make([]byte, refLen)
	if _, err := io.ReadFull(reader, ref); err != nil {
		return nil, err
	}
	rec.AccountRef = string(ref)

	return rec, nil
}
