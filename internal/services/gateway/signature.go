package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	SignatureHeader  = "Stripe-Signature"
	DefaultTolerance = 300 * time.Second
)

var (
	ErrNotSigned        = errors.New("webhook has no valid signature header")
	ErrInvalidHeader    = errors.New("webhook signature header is malformed")
	ErrTooOld           = errors.New("webhook timestamp outside tolerance")
	ErrNoValidSignature = errors.New("webhook has no matching v1 signature")
)

// Hmac256 returns the hex-encoded HMAC-SHA256 of body under key.
func Hmac256(body, key []byte) string {
	hash := hmac.New(sha256.New, key)
	hash.Write(body)
	return hex.EncodeToString(hash.Sum(nil))
}

type signedHeader struct {
	timestamp  time.Time
	signatures []string
}

func parseSignatureHeader(header string) (*signedHeader, error) {
	if header == "" {
		return nil, ErrNotSigned
	}

	sh := &signedHeader{}
	for _, pair := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, ErrInvalidHeader
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return nil, ErrInvalidHeader
			}
			sh.timestamp = time.Unix(ts, 0)
		case "v1":
			sh.signatures = append(sh.signatures, value)
		}
	}

	if sh.timestamp.IsZero() {
		return nil, ErrInvalidHeader
	}
	if len(sh.signatures) == 0 {
		return nil, ErrNoValidSignature
	}
	return sh, nil
}

// VerifySignature checks a "t=<unix>,v1=<hex>" header against
// HMAC-SHA256("{t}.{payload}") and rejects timestamps further than
// tolerance from now.
func VerifySignature(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	sh, err := parseSignatureHeader(header)
	if err != nil {
		return err
	}

	if tolerance > 0 {
		age := now.Sub(sh.timestamp)
		if age > tolerance || age < -tolerance {
			return ErrTooOld
		}
	}

	expected := Hmac256(signedPayload(sh.timestamp, payload), []byte(secret))
	for _, sig := range sh.signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return nil
		}
	}
	return ErrNoValidSignature
}

// SignPayload builds a header accepted by VerifySignature.
func SignPayload(payload []byte, secret string, ts time.Time) string {
	sig := Hmac256(signedPayload(ts, payload), []byte(secret))
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), sig)
}

func signedPayload(ts time.Time, payload []byte) []byte {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(ts.Unix(), 10))
	b.WriteByte('.')
	b.Write(payload)
	return []byte(b.String())
}
