package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

func GenerateCode(n int) (string, error) {
	// Make a slice of nBytes random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// GenerateMessageID returns an RFC 5322 Message-ID for the given sender
// domain, e.g. <1713542400000.9F3A1C2B@tropitech.ch>.
func GenerateMessageID(domain string) (string, error) {
	code, err := GenerateCode(8)
	if err != nil {
		return "", err
	}
	if domain == "" {
		domain = "localhost"
	}
	return fmt.Sprintf("<%d.%s@%s>", time.Now().UnixMilli(), code, domain), nil
}
